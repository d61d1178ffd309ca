package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/helpdesk-backend/internal/data/db"
	"github.com/yungbote/helpdesk-backend/internal/platform/envutil"
)

type Config struct {
	Port    string `yaml:"port"`
	LogMode string `yaml:"log_mode"`

	DB    DBConfig    `yaml:"db"`
	Redis RedisConfig `yaml:"redis"`

	JWTSecretKey   string        `yaml:"jwt_secret_key"`
	AccessTokenTTL time.Duration `yaml:"access_token_ttl"`

	WS WSConfig `yaml:"ws"`

	MetricsAddr     string        `yaml:"metrics_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DBConfig struct {
	Driver     string `yaml:"driver"`
	SQLitePath string `yaml:"sqlite_path"`
	Host       string `yaml:"host"`
	Port       string `yaml:"port"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	Name       string `yaml:"name"`
	MaxConns   int    `yaml:"max_conns"`
}

type RedisConfig struct {
	Addrs    []string `yaml:"addrs"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
}

type WSConfig struct {
	Heartbeat      time.Duration `yaml:"heartbeat"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	SendBuffer     int           `yaml:"send_buffer"`
	ReadLimit      int64         `yaml:"read_limit"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

func (c DBConfig) toDB() db.Config {
	return db.Config{
		Driver:     c.Driver,
		SQLitePath: c.SQLitePath,
		Host:       c.Host,
		Port:       c.Port,
		User:       c.User,
		Password:   c.Password,
		Name:       c.Name,
		MaxConns:   c.MaxConns,
	}
}

// LoadConfig reads the environment, then overlays the YAML file named by
// CONFIG_FILE when set. Keys present in the file win. A dotenv file (ENV_FILE,
// or ./.env when present) fills variables the process environment lacks.
func LoadConfig() (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}
	cfg := Config{
		Port:    envutil.String("PORT", "8080"),
		LogMode: envutil.String("LOG_MODE", "development"),
		DB: DBConfig{
			Driver:     envutil.String("DB_DRIVER", db.DriverPostgres),
			SQLitePath: envutil.String("SQLITE_PATH", "helpdesk.db"),
			Host:       envutil.String("POSTGRES_HOST", "localhost"),
			Port:       envutil.String("POSTGRES_PORT", "5432"),
			User:       envutil.String("POSTGRES_USER", "postgres"),
			Password:   envutil.String("POSTGRES_PASSWORD", ""),
			Name:       envutil.String("POSTGRES_NAME", "helpdesk"),
			MaxConns:   envutil.Int("POSTGRES_MAX_CONNS", 20),
		},
		Redis: RedisConfig{
			Addrs:    envutil.List("REDIS_ADDR", nil),
			Password: envutil.String("REDIS_PASSWORD", ""),
			DB:       envutil.Int("REDIS_DB", 0),
		},
		JWTSecretKey:   envutil.String("JWT_SECRET_KEY", ""),
		AccessTokenTTL: envutil.Seconds("ACCESS_TOKEN_TTL", time.Hour),
		WS: WSConfig{
			Heartbeat:      envutil.Seconds("WS_HEARTBEAT_SECONDS", 30*time.Second),
			WriteTimeout:   envutil.Seconds("WS_WRITE_TIMEOUT_SECONDS", 10*time.Second),
			SendBuffer:     envutil.Int("WS_SEND_BUFFER", 64),
			ReadLimit:      int64(envutil.Int("WS_READ_LIMIT_BYTES", 64<<10)),
			AllowedOrigins: envutil.List("WS_ALLOWED_ORIGINS", nil),
		},
		MetricsAddr:     envutil.String("METRICS_ADDR", ":9090"),
		ShutdownTimeout: envutil.Seconds("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
	}
	if path := envutil.String("CONFIG_FILE", ""); path != "" {
		if err := cfg.overlay(path); err != nil {
			return Config{}, err
		}
	}
	return cfg, cfg.validate()
}

func loadDotEnv() error {
	path := envutil.String("ENV_FILE", "")
	if path == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func (c *Config) overlay(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.DB.Driver)) {
	case db.DriverPostgres, db.DriverSQLite:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver)
	}
	if strings.TrimSpace(c.Port) == "" {
		return fmt.Errorf("missing PORT")
	}
	if c.WS.Heartbeat <= 0 || c.WS.WriteTimeout <= 0 {
		return fmt.Errorf("websocket heartbeat and write timeout must be positive")
	}
	return nil
}

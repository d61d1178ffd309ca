package app

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("WS_HEARTBEAT_SECONDS", "")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != "8080" || cfg.WS.Heartbeat != 30*time.Second || cfg.WS.SendBuffer != 64 {
		t.Fatalf("defaults: %+v", cfg)
	}
}

func TestLoadConfigYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "helpdesk.yaml")
	body := []byte(`
port: "9000"
db:
  driver: sqlite
  sqlite_path: /tmp/desk.db
ws:
  heartbeat: 5s
  allowed_origins: ["https://desk.example.com"]
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "8081")
	t.Setenv("WS_SEND_BUFFER", "128")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != "9000" {
		t.Fatalf("port: want=9000 got=%s", cfg.Port)
	}
	if cfg.DB.Driver != "sqlite" || cfg.DB.SQLitePath != "/tmp/desk.db" {
		t.Fatalf("db: %+v", cfg.DB)
	}
	if cfg.WS.Heartbeat != 5*time.Second {
		t.Fatalf("heartbeat: want=5s got=%s", cfg.WS.Heartbeat)
	}
	if cfg.WS.SendBuffer != 128 {
		t.Fatalf("env value not in file should survive: want=128 got=%d", cfg.WS.SendBuffer)
	}
	if want := []string{"https://desk.example.com"}; !reflect.DeepEqual(cfg.WS.AllowedOrigins, want) {
		t.Fatalf("origins: want=%v got=%v", want, cfg.WS.AllowedOrigins)
	}
}

func TestLoadConfigRejectsUnknownDriver(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DB_DRIVER", "mysql")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("unknown driver should fail")
	}
}

func TestLoadConfigDotEnvFillsMissingVars(t *testing.T) {
	path := filepath.Join(t.TempDir(), "desk.env")
	body := []byte("WS_SEND_BUFFER=256\nPORT=7000\nDB_DRIVER=sqlite\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("ENV_FILE", path)
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "8082")
	// registered for cleanup, then cleared so the file can supply them
	t.Setenv("WS_SEND_BUFFER", "1")
	t.Setenv("DB_DRIVER", "postgres")
	_ = os.Unsetenv("WS_SEND_BUFFER")
	_ = os.Unsetenv("DB_DRIVER")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.WS.SendBuffer != 256 {
		t.Fatalf("send buffer: want=256 got=%d", cfg.WS.SendBuffer)
	}
	if cfg.Port != "8082" {
		t.Fatalf("process env should win over dotenv: want=8082 got=%s", cfg.Port)
	}
}

func TestLoadConfigMissingEnvFileFails(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("explicit ENV_FILE that does not exist should fail")
	}
}

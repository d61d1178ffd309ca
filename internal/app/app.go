package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/helpdesk-backend/internal/platform/redis"
	"github.com/yungbote/helpdesk-backend/internal/data/db"
	"github.com/yungbote/helpdesk-backend/internal/http"
	"github.com/yungbote/helpdesk-backend/internal/observability"
	"github.com/yungbote/helpdesk-backend/internal/platform/envutil"
	"github.com/yungbote/helpdesk-backend/internal/platform/logger"
)

const serviceName = "helpdesk"

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Redis    goredis.UniversalClient
	Router   *gin.Engine
	Cfg      Config
	Repos    Repos
	Services Services
	Realtime Realtime
	Metrics  *observability.Metrics

	dbService    *db.Service
	otelShutdown func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if strings.EqualFold(cfg.LogMode, "production") {
		gin.SetMode(gin.ReleaseMode)
	}

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: serviceName,
		Environment: envutil.String("APP_ENV", cfg.LogMode),
		Version:     envutil.String("APP_VERSION", "dev"),
	})
	metrics := observability.Init(log)

	dbService, err := db.NewService(cfg.DB.toDB(), log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init db: %w", err)
	}
	if err := dbService.AutoMigrateAll(); err != nil {
		_ = dbService.Close()
		log.Sync()
		return nil, fmt.Errorf("db automigrate: %w", err)
	}
	theDB := dbService.DB()

	var rdb goredis.UniversalClient
	if len(cfg.Redis.Addrs) > 0 {
		rdb, err = redis.NewClient(ctx, redis.Config{
			Addrs:    cfg.Redis.Addrs,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, log)
		if err != nil {
			_ = dbService.Close()
			log.Sync()
			return nil, fmt.Errorf("init redis: %w", err)
		}
	}

	reposet := wireRepos(theDB, rdb, log)
	rt := wireRealtime(log, cfg, reposet)
	serviceset := wireServices(theDB, log, cfg, reposet, rt)
	handlerset := wireHandlers(log, theDB, cfg, serviceset, rt)
	middleware := wireMiddleware(log, serviceset)
	router := wireRouter(log, cfg, metrics, handlerset, middleware)

	return &App{
		Log:          log,
		DB:           theDB,
		Redis:        rdb,
		Router:       router,
		Cfg:          cfg,
		Repos:        reposet,
		Services:     serviceset,
		Realtime:     rt,
		Metrics:      metrics,
		dbService:    dbService,
		otelShutdown: otelShutdown,
	}, nil
}

// Run serves until ctx is cancelled or a component fails. The registry loop
// and the HTTP server stop together.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	g, gctx := errgroup.WithContext(ctx)

	a.Metrics.StartServer(gctx, a.Log, a.Cfg.MetricsAddr)
	a.Metrics.StartPostgresCollector(gctx, a.Log, a.DB)
	a.Metrics.StartRedisCollector(gctx, a.Log, a.Redis)

	g.Go(func() error {
		return a.Realtime.Registry.Run(gctx)
	})
	g.Go(func() error {
		server := &http.Server{Engine: a.Router}
		addr := ":" + strings.TrimPrefix(a.Cfg.Port, ":")
		a.Log.Info("http server listening", "addr", addr)
		return server.Run(gctx, addr, a.Cfg.ShutdownTimeout)
	})
	return g.Wait()
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.Cfg.ShutdownTimeout)
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
		cancel()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.dbService != nil {
		_ = a.dbService.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}

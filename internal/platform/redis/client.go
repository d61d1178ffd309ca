package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/helpdesk-backend/internal/platform/logger"
)

type Config struct {
	// Addrs is one address for a single node, several for cluster or sentinel.
	Addrs    []string
	Password string
	DB       int
}

// NewClient connects and pings. A failed ping closes the client.
func NewClient(ctx context.Context, cfg Config, log *logger.Logger) (goredis.UniversalClient, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	var addrs []string
	for _, a := range cfg.Addrs {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:       addrs,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	log.With("client", "Redis").Info("redis connected", "addrs", strings.Join(addrs, ","))
	return rdb, nil
}

package cache

import (
	"context"
	"time"

	"github.com/feerecon/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const pingTimeout = 5 * time.Second

// NewTokenCache returns a Redis-backed cache when Redis is enabled and reachable,
// and an in-memory cache otherwise.
func NewTokenCache(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (TokenCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		logger.Info("Using in-memory token cache")
		return NewInMemoryTokenCache(0), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		logger.Warn("Redis unavailable, falling back to in-memory token cache. "+
			"Each instance will refresh its own CRM token.",
			zap.String("addr", cfg.Addr()),
			zap.Error(err),
		)
		return NewInMemoryTokenCache(0), nil
	}

	logger.Info("Using Redis token cache", zap.String("addr", cfg.Addr()))
	return NewRedisTokenCache(client, ""), nil
}

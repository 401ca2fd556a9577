package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"main/internal/config"
	"main/internal/domain/interfaces"
)

// Redis implements cache invalidation over a shared Redis instance. The API
// tier caches reads under `<domain>:all` and `<domain>:<code>` keys; the
// ingestion engine only ever deletes them.
type Redis struct {
	client *redis.Client
	logger *logrus.Entry
}

var _ interfaces.InvalidationCache = (*Redis)(nil)

func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *logrus.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &Redis{
		client: client,
		logger: logger.WithField("component", "cache"),
	}, nil
}

// DeleteByPattern removes every key matching pattern via SCAN, so large
// keyspaces are walked without blocking the server the way KEYS would.
func (r *Redis) DeleteByPattern(ctx context.Context, pattern string) error {
	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	deleted := 0
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("delete key %s: %w", iter.Val(), err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan pattern %s: %w", pattern, err)
	}
	if deleted > 0 {
		r.logger.WithFields(logrus.Fields{
			"pattern": pattern,
			"deleted": deleted,
		}).Debug("cache keys invalidated")
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

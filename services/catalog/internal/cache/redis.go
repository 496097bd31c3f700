package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "nimestream:catalog:"

// Redis shares cached bodies between catalog server replicas.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, keyPrefix+key, value, ttl).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

// Open returns a Redis cache when addr is set and reachable, and an
// in-memory cache otherwise.
func Open(ctx context.Context, addr string, logger *zap.Logger) Cache {
	if addr == "" {
		return NewMemory(time.Minute)
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable, falling back to in-memory cache",
			zap.String("addr", addr), zap.Error(fmt.Errorf("ping: %w", err)))
		_ = client.Close()
		return NewMemory(time.Minute)
	}
	logger.Info("redis cache connected", zap.String("addr", addr))
	return NewRedis(client)
}

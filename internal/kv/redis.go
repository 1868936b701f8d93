package kv

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"saludables/internal/logger"
)

// Redis：以 ns 为前缀的 Redis 字符串键；不设过期，新鲜度由缓存层的时间戳判断
type Redis struct {
	rc *redis.Client
	ns string
}

func OpenRedis(addr, pass string, db int, ns string) *Redis {
	logger.L().Debug("redis_open", "addr", addr, "db", db)
	return &Redis{rc: redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}), ns: ns}
}

func NewRedis(rc *redis.Client, ns string) *Redis { return &Redis{rc: rc, ns: ns} }

func (s *Redis) Ping(ctx context.Context) error { return s.rc.Ping(ctx).Err() }

func (s *Redis) Get(ctx context.Context, key string) (string, error) {
	v, err := s.rc.Get(ctx, s.ns+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return v, err
}

func (s *Redis) Set(ctx context.Context, key, value string) error {
	return s.rc.Set(ctx, s.ns+key, value, 0).Err()
}

func (s *Redis) Delete(ctx context.Context, key string) error {
	return s.rc.Del(ctx, s.ns+key).Err()
}

func (s *Redis) Close() error { return s.rc.Close() }

package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores each slot under prefix+name.  Expiration bounds how
// long an abandoned slot survives in Redis; it is independent of the
// document TTL enforced by the session manager.  Zero keeps keys forever.
type RedisBackend struct {
	client     *redis.Client
	prefix     string
	expiration time.Duration
}

func NewRedisBackend(client *redis.Client, prefix string, expiration time.Duration) *RedisBackend {
	return &RedisBackend{client: client, prefix: prefix, expiration: expiration}
}

func (b *RedisBackend) Slot(name string) Slot { return &redisSlot{b: b, name: name} }

type redisSlot struct {
	b    *RedisBackend
	name string
}

func (s *redisSlot) Name() string { return s.name }
func (s *redisSlot) key() string  { return s.b.prefix + s.name }

func (s *redisSlot) Read(ctx context.Context) (string, bool, error) {
	v, err := s.b.client.Get(ctx, s.key()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return v, true, nil
}

func (s *redisSlot) Write(ctx context.Context, value string) error {
	return s.b.client.Set(ctx, s.key(), value, s.b.expiration).Err()
}

func (s *redisSlot) Remove(ctx context.Context) error {
	return s.b.client.Del(ctx, s.key()).Err()
}

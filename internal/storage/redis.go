package storage

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedis stores snapshots as plain redis strings.
// A zero ttl keeps keys forever; otherwise each write gets ttl plus up to maxJitter.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{
		client:    client,
		baseTTL:   ttl,
		maxJitter: 5 * time.Minute,
	}
}

type Redis struct {
	client    *redis.Client
	baseTTL   time.Duration
	maxJitter time.Duration
}

func (r Redis) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

func (r Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, redisKey(key), value, r.ttl()).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r Redis) ttl() time.Duration {
	if r.baseTTL <= 0 {
		return 0
	}
	jitter := time.Duration(rand.Int63n(int64(r.maxJitter) + 1))
	return r.baseTTL + jitter
}

func redisKey(key string) string {
	return fmt.Sprintf("kv:%s", key)
}

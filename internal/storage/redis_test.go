package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and a Redis storage pointing at it
func setupTestRedis(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return NewRedis(client, ttl), mr, cleanup
}

func TestRedisGet_Success(t *testing.T) {
	s, mr, cleanup := setupTestRedis(t, 0)
	defer cleanup()

	require.NoError(t, mr.Set(redisKey("@RocketShoes:cart"), `[{"id":1,"amount":2}]`))

	got, err := s.Get(context.Background(), "@RocketShoes:cart")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":1,"amount":2}]`, string(got))
}

func TestRedisGet_Missing(t *testing.T) {
	s, _, cleanup := setupTestRedis(t, 0)
	defer cleanup()

	got, err := s.Get(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, got)
}

func TestRedisGet_ServerDown(t *testing.T) {
	s, mr, cleanup := setupTestRedis(t, 0)
	defer cleanup()
	mr.Close()

	_, err := s.Get(context.Background(), "@RocketShoes:cart")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.ErrorContains(t, err, "redis get failed")
}

func TestRedisSet_NoTTL(t *testing.T) {
	s, mr, cleanup := setupTestRedis(t, 0)
	defer cleanup()

	require.NoError(t, s.Set(context.Background(), "@RocketShoes:cart", []byte(`[]`)))

	stored, err := mr.Get(redisKey("@RocketShoes:cart"))
	require.NoError(t, err)
	assert.Equal(t, `[]`, stored)
	assert.Equal(t, time.Duration(0), mr.TTL(redisKey("@RocketShoes:cart")))
}

func TestRedisSet_WithTTL(t *testing.T) {
	s, mr, cleanup := setupTestRedis(t, 15*time.Minute)
	defer cleanup()

	require.NoError(t, s.Set(context.Background(), "@RocketShoes:cart", []byte(`[]`)))

	ttl := mr.TTL(redisKey("@RocketShoes:cart"))
	assert.True(t, ttl >= 15*time.Minute, "TTL should be at least base TTL")
	assert.True(t, ttl <= 20*time.Minute, "TTL should be base + max jitter")
}

func TestRedisDelete(t *testing.T) {
	s, mr, cleanup := setupTestRedis(t, 0)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "@RocketShoes:cart", []byte(`[]`)))
	assert.True(t, mr.Exists(redisKey("@RocketShoes:cart")))

	require.NoError(t, s.Delete(ctx, "@RocketShoes:cart"))
	assert.False(t, mr.Exists(redisKey("@RocketShoes:cart")))

	// Deleting non-existent key should not error
	assert.NoError(t, s.Delete(ctx, "nonexistent"))
}

func TestRedisKey_Format(t *testing.T) {
	assert.Equal(t, "kv:@RocketShoes:cart", redisKey("@RocketShoes:cart"))
}

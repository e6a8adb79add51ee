package storage

import (
	"context"
	"errors"
)

// Storage persists opaque snapshots under string keys.
// Consumers define what the bytes mean; implementations only move them.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

var ErrNotFound = errors.New("key not found")

package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fjod/shoes_cart/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		HTTPPort:      "0",
		StorageDriver: "memory",
		APIBaseURL:    "http://localhost:3333",
		StorageKey:    "@RocketShoes:cart",
	}
}

func TestRun_InvalidConfigIsReturned(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := testConfig()
	cfg.StorageDriver = "dynamo"

	err := run(cfg, logger)
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestRun_FailureAfterStorageOpenIsReturned(t *testing.T) {
	logger, hook := test.NewNullLogger()
	cfg := testConfig()
	cfg.APIBaseURL = "localhost:3333"

	err := run(cfg, logger)
	require.ErrorContains(t, err, "invalid API base URL")

	for _, e := range hook.AllEntries() {
		assert.NotEqual(t, logrus.FatalLevel, e.Level)
	}
}

func TestOpenStorage_Memory(t *testing.T) {
	logger, _ := test.NewNullLogger()

	s, closeFn, err := openStorage(context.Background(), testConfig(), logrus.NewEntry(logger))
	require.NoError(t, err)
	defer closeFn()

	require.NoError(t, s.Set(context.Background(), "k", []byte("v")))
	got, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))
}

func TestOpenStorage_SQLiteRunsMigrations(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := testConfig()
	cfg.StorageDriver = "sqlite"
	cfg.SQLDSN = filepath.Join(t.TempDir(), "cart.db")

	s, closeFn, err := openStorage(context.Background(), cfg, logrus.NewEntry(logger))
	require.NoError(t, err)
	defer closeFn()

	require.NoError(t, s.Set(context.Background(), cfg.StorageKey, []byte(`[]`)))
}

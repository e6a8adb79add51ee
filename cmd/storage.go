package main

import (
	"context"
	"fmt"

	"github.com/fjod/shoes_cart/internal/config"
	"github.com/fjod/shoes_cart/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// openStorage builds the snapshot backend named by cfg.StorageDriver. The
// returned close func releases its connections.
func openStorage(ctx context.Context, cfg *config.Config, log *logrus.Entry) (storage.Storage, func(), error) {
	switch cfg.StorageDriver {
	case "memory":
		log.Warn("using in-memory storage, the cart will not survive a restart")
		return storage.NewMemory(), func() {}, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		log.WithField("addr", cfg.RedisAddr).Info("connected to Redis")
		return storage.NewRedis(client, cfg.RedisTTL), func() { _ = client.Close() }, nil

	case "mongo":
		db, err := storage.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, nil, err
		}
		log.WithField("database", cfg.MongoDBName).Info("connected to MongoDB")
		closeFn := func() {
			if err := db.Client().Disconnect(context.Background()); err != nil {
				log.WithError(err).Error("error disconnecting from MongoDB")
			}
		}
		return storage.NewMongo(db), closeFn, nil

	case storage.DriverSQLite, storage.DriverPostgres:
		s, err := storage.NewSQL(cfg.StorageDriver, cfg.SQLDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := s.RunMigrations(); err != nil {
			_ = s.Close()
			return nil, nil, err
		}
		log.WithField("driver", cfg.StorageDriver).Info("database ready")
		closeFn := func() {
			if err := s.Close(); err != nil {
				log.WithError(err).Error("error closing database")
			}
		}
		return s, closeFn, nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}

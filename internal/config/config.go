// Package config reads process configuration from the environment.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort        string
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
	LogLevel        string

	APIBaseURL string
	APITimeout time.Duration

	StorageKey    string
	StorageDriver string // memory, redis, mongo, sqlite, postgres

	RedisAddr     string
	RedisPassword string
	RedisTTL      time.Duration

	MongoURI    string
	MongoDBName string

	SQLDSN string

	KafkaBrokers []string
	KafkaTopic   string

	OTLPEndpoint string
}

// Load reads the environment, after merging an optional .env file from the
// working directory. Variables already set win over the file.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		RequestTimeout:  getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		LogLevel:        getEnv("LOG_LEVEL", "info"),

		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:3333"),
		APITimeout: getEnvDuration("API_TIMEOUT", 10*time.Second),

		StorageKey:    getEnv("CART_STORAGE_KEY", "@RocketShoes:cart"),
		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", "sqlite")),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTTL:      getEnvDuration("REDIS_TTL", 0),

		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName: getEnv("MONGO_DB_NAME", "cartdb"),

		SQLDSN: getEnv("SQL_DSN", "cart.db"),

		KafkaBrokers: getEnvList("KAFKA_BROKERS"),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "cart-updates"),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
}

var errUnknownDriver = errors.New("STORAGE_DRIVER must be one of memory, redis, mongo, sqlite, postgres")

func (c *Config) Validate() error {
	switch c.StorageDriver {
	case "memory", "redis", "mongo", "sqlite", "postgres":
	default:
		return errUnknownDriver
	}
	if c.StorageKey == "" {
		return errors.New("CART_STORAGE_KEY must not be empty")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	// bare numbers are seconds
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

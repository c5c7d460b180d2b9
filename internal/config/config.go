package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	LedgerMySQL = "mysql"
	LedgerRedis = "redis"
)

type Config struct {
	HTTPAddr        string
	GRPCAddr        string
	MySQLDSN        string
	RedisAddr       string
	RedisPoolSize   int
	LedgerBackend   string
	WorkerCount     int
	QueueSize       int
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	IdempotencyTTL  time.Duration
	LogLevel        string
}

// Load reads the configuration from the environment, falling back to local
// development defaults.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		GRPCAddr:      getEnv("GRPC_ADDR", ":50051"),
		MySQLDSN:      getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/seckill?parseTime=true"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		LedgerBackend: getEnv("LEDGER_BACKEND", LedgerMySQL),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.RedisPoolSize, err = getInt("REDIS_POOL_SIZE", 100); err != nil {
		return nil, err
	}
	if cfg.WorkerCount, err = getInt("WORKER_COUNT", 10); err != nil {
		return nil, err
	}
	if cfg.QueueSize, err = getInt("QUEUE_SIZE", 10000); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = getDuration("REQUEST_TIMEOUT", 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.IdempotencyTTL, err = getDuration("IDEMPOTENCY_TTL", 24*time.Hour); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.LedgerBackend {
	case LedgerMySQL, LedgerRedis:
	default:
		return fmt.Errorf("LEDGER_BACKEND must be %q or %q, got %q", LedgerMySQL, LedgerRedis, c.LedgerBackend)
	}
	if c.WorkerCount < 1 {
		return fmt.Errorf("WORKER_COUNT must be at least 1")
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("QUEUE_SIZE must not be negative")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

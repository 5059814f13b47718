// Package config loads service configuration from environment variables with
// defaults, failing fast on missing or malformed values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all addressd settings.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Worker   WorkerConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        // SERVER_HOST, default 0.0.0.0
	Port            int           // SERVER_PORT, default 8080
	ReadTimeout     time.Duration // SERVER_READ_TIMEOUT, default 15s
	WriteTimeout    time.Duration // SERVER_WRITE_TIMEOUT, default 30s
	ShutdownTimeout time.Duration // SERVER_SHUTDOWN_TIMEOUT, default 30s
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	URL      string // DATABASE_URL, required
	MinConns int32  // DB_MIN_CONNS, default 2
	MaxConns int32  // DB_MAX_CONNS, default 10
}

// WorkerConfig holds queue daemon settings.
type WorkerConfig struct {
	Count        int           // WORKER_COUNT, default 4
	PollInterval time.Duration // WORKER_POLL_INTERVAL, default 5s
	MaxAttempts  int           // WORKER_MAX_ATTEMPTS, default 5
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string // LOG_LEVEL, default info
	Format string // LOG_FORMAT, text or json, default text
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            envString("SERVER_HOST", "0.0.0.0"),
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			URL:      os.Getenv("DATABASE_URL"),
			MinConns: 2,
			MaxConns: 10,
		},
		Worker: WorkerConfig{
			Count:        4,
			PollInterval: 5 * time.Second,
			MaxAttempts:  5,
		},
		Logging: LoggingConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "text"),
		},
	}

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("config: DATABASE_URL is required")
	}

	var err error
	if cfg.Server.Port, err = envInt("SERVER_PORT", cfg.Server.Port); err != nil {
		return nil, err
	}
	if cfg.Server.ReadTimeout, err = envDuration("SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout); err != nil {
		return nil, err
	}
	if cfg.Server.WriteTimeout, err = envDuration("SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout); err != nil {
		return nil, err
	}
	if cfg.Server.ShutdownTimeout, err = envDuration("SERVER_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout); err != nil {
		return nil, err
	}
	if cfg.Database.MinConns, err = envInt32("DB_MIN_CONNS", cfg.Database.MinConns); err != nil {
		return nil, err
	}
	if cfg.Database.MaxConns, err = envInt32("DB_MAX_CONNS", cfg.Database.MaxConns); err != nil {
		return nil, err
	}
	if cfg.Worker.Count, err = envInt("WORKER_COUNT", cfg.Worker.Count); err != nil {
		return nil, err
	}
	if cfg.Worker.PollInterval, err = envDuration("WORKER_POLL_INTERVAL", cfg.Worker.PollInterval); err != nil {
		return nil, err
	}
	if cfg.Worker.MaxAttempts, err = envInt("WORKER_MAX_ATTEMPTS", cfg.Worker.MaxAttempts); err != nil {
		return nil, err
	}

	if cfg.Worker.Count < 1 {
		return nil, fmt.Errorf("config: WORKER_COUNT must be at least 1")
	}

	return cfg, nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s=%q: %w", key, v, err)
	}
	return n, nil
}

func envInt32(key string, def int32) (int32, error) {
	n, err := envInt(key, int(def))
	return int32(n), err
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s=%q: %w", key, v, err)
	}
	return d, nil
}

package main

import (
	"os"
	"strconv"
	"time"

	"seedgraph/internal/metadata"
	"seedgraph/pkg/numerator"
)

type config struct {
	LogLevel    string
	Development bool

	Port         string
	WriteTimeout time.Duration

	ScanMode      metadata.ScanMode
	CacheSize     int
	SequenceRange int

	DatabaseURL string
	Migrate     bool
}

func loadConfig() (config, error) {
	cfg := config{
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		Development:   getEnv("APP_ENV", "development") == "development",
		Port:          getEnv("APP_PORT", "8080"),
		WriteTimeout:  getEnvDuration("APP_WRITE_TIMEOUT", 30*time.Second),
		CacheSize:     getEnvInt("SEED_CACHE_SIZE", 0),
		SequenceRange: getEnvInt("SEED_SEQUENCE_RANGE", 1),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		Migrate:       getEnv("DB_MIGRATE", "true") == "true",
	}
	raw := getEnv("SEED_SCAN_MODE", "ignore-optional")
	mode, ok := metadata.ParseScanMode(raw)
	if !ok {
		return cfg, &envError{key: "SEED_SCAN_MODE", value: raw}
	}
	cfg.ScanMode = mode
	return cfg, nil
}

// sequenceOptions switches to range allocation when SequenceRange > 1.
func (c config) sequenceOptions() *numerator.Options {
	opts := numerator.DefaultOptions()
	if c.SequenceRange > 1 {
		opts.Strategy = numerator.StrategyCached
		opts.RangeSize = int64(c.SequenceRange)
	}
	return opts
}

type envError struct{ key, value string }

func (e *envError) Error() string { return "invalid " + e.key + ": " + strconv.Quote(e.value) }

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}

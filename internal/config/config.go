package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Application
	AppName string
	AppEnv  string
	Port    string

	// Database (optional driver switch via ENV, default: sqlite)
	DBDriver     string
	DBConnection string

	// Sessions
	SessionTTL time.Duration

	// Uploads
	MaxUploadBytes int64

	// Storage (local filesystem or any S3-compatible backend)
	StorageDriver string
	StoragePath   string
	S3Region      string
	S3Bucket      string
	S3AccessKey   string
	S3SecretKey   string
	S3Endpoint    string // Optional: for S3-compatible services (MinIO, R2, etc.)

	// Observability (optional)
	SentryDSN string
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg := &Config{
		AppName: envString("APP_NAME", "FileDrop"),
		AppEnv:  envRequired("APP_ENV"), // Required: 'development' or 'production'
		Port:    envString("PORT", "8090"),

		DBDriver:     envString("DB_DRIVER", "sqlite"),
		DBConnection: envString("DB_CONNECTION", "./data/filedrop.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"),

		SessionTTL: envDuration("SESSION_TTL", 24*time.Hour),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 50<<20), // 50MB

		StorageDriver: envString("STORAGE_DRIVER", "local"),
		StoragePath:   envString("STORAGE_PATH", "./storage"),
		S3Region:      envString("S3_REGION", ""),
		S3Bucket:      envString("S3_BUCKET", ""),
		S3AccessKey:   envString("S3_ACCESS_KEY", ""),
		S3SecretKey:   envString("S3_SECRET_KEY", ""),
		S3Endpoint:    envString("S3_ENDPOINT", ""),

		SentryDSN: envString("SENTRY_DSN", ""),
	}

	if cfg.StorageDriver == "s3" {
		validateS3(cfg)
	}

	return cfg
}

// validateS3 ensures the S3 driver has the settings it cannot run without.
func validateS3(cfg *Config) {
	for key, value := range map[string]string{
		"S3_REGION":     cfg.S3Region,
		"S3_BUCKET":     cfg.S3Bucket,
		"S3_ACCESS_KEY": cfg.S3AccessKey,
		"S3_SECRET_KEY": cfg.S3SecretKey,
	} {
		if value == "" {
			slog.Error("config required env var missing for s3 storage", "key", key)
			os.Exit(1)
		}
	}
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envInt64(key string, def int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		slog.Warn("config invalid integer, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

func envRequired(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Error("config required env var missing", "key", key)
	os.Exit(1)
	return ""
}

package config

import (
	"log/slog"
	"os"
	"strings"
	"time"
)

// Config holds all service configuration.
type Config struct {
	MongoURI  string
	MongoDB   string
	RedisAddr string
	HTTPPort  string

	// AbandonAfter is how long a session may sit idle before the sweep flips
	// it to abandoned.
	AbandonAfter time.Duration

	// SweepSchedule is the cron expression for the abandon sweep.
	SweepSchedule string

	JWTSecret string

	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:       getEnv("MONGO_DB", "pulsedb"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		HTTPPort:      getEnv("HTTP_PORT", "8080"),
		AbandonAfter:  getDuration("ABANDON_AFTER", 24*time.Hour),
		SweepSchedule: getEnv("SWEEP_SCHEDULE", "@hourly"),
		JWTSecret:     getEnv("JWT_SECRET", "change-me-in-production"),
		LogFile:       getEnv("LOG_FILE", "/tmp/pulse.log"),
		LogLevel:      ParseLogLevel(getEnv("LOG_LEVEL", "INFO")),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// ParseLogLevel maps a level name onto slog's levels, defaulting to INFO.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

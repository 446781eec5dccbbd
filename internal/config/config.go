package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port           string
	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string
	DBSSLMode      string
	DBMaxOpenConns int
	DBLogLevel     string // silent, error, warn, info
	JWTSecret      string
	AdminEmail     string
	AdminFullName  string
	// Core engine
	OpTimeout         time.Duration // per-operation bound; exceeded -> unavailable
	ReconcileSchedule string        // cron spec for the repair pass; "off" disables it
}

func Load() *Config {
	return &Config{
		Port:              getenv("PORT", "8080"),
		DBHost:            getenv("DB_HOST", "localhost"),
		DBPort:            getenv("DB_PORT", "5432"),
		DBUser:            getenv("DB_USER", "postgres"),
		DBPassword:        getenv("DB_PASSWORD", "postgres"),
		DBName:            getenv("DB_NAME", "simlab_db"),
		DBSSLMode:         getenv("DB_SSLMODE", "disable"),
		DBMaxOpenConns:    getenvInt("DB_MAX_OPEN_CONNS", 20),
		DBLogLevel:        getenv("DB_LOG_LEVEL", "warn"),
		JWTSecret:         getenv("JWT_SECRET", "supersecret_change_me"),
		AdminEmail:        getenv("ADMIN_EMAIL", "admin@example.com"),
		AdminFullName:     getenv("ADMIN_FULL_NAME", "Administrator"),
		OpTimeout:         time.Duration(getenvInt("OP_TIMEOUT_SECONDS", 5)) * time.Second,
		ReconcileSchedule: getenv("RECONCILE_SCHEDULE", "@every 10m"),
	}
}

func getenv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

package config

import (
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

// Config is read once at startup and never mutated afterwards.
type Config struct {
	SiteURL      string
	HTTPPort     string
	GatewayURL   string
	GatewayToken string

	DBUsername string
	DBPassword string
	DBHost     string
	DBPort     string
	DBDatabase string
	DBSchema   string

	CacheTTL          time.Duration
	ReconcileInterval time.Duration
	StuckThreshold    time.Duration

	KafkaBroker string
}

func Load() Config {
	return Config{
		SiteURL:      getEnv("CHECKOUT_SITE_URL", "http://localhost:8080"),
		HTTPPort:     getEnv("CHECKOUT_HTTP_PORT", "8080"),
		GatewayURL:   getEnv("CHECKOUT_GATEWAY_URL", "https://api.fastpay.test"),
		GatewayToken: os.Getenv("CHECKOUT_GATEWAY_TOKEN"),

		DBUsername: getEnv("CHECKOUT_DB_USERNAME", "postgres"),
		DBPassword: getEnv("CHECKOUT_DB_PASSWORD", "postgres"),
		DBHost:     getEnv("CHECKOUT_DB_HOST", "localhost"),
		DBPort:     getEnv("CHECKOUT_DB_PORT", "5432"),
		DBDatabase: getEnv("CHECKOUT_DB_DATABASE", "checkout"),
		DBSchema:   getEnv("CHECKOUT_DB_SCHEMA", "public"),

		CacheTTL:          getDuration("CHECKOUT_CACHE_TTL", 60*time.Second),
		ReconcileInterval: getDuration("CHECKOUT_RECONCILE_INTERVAL", 30*time.Second),
		StuckThreshold:    getDuration("CHECKOUT_STUCK_THRESHOLD", time.Minute),

		KafkaBroker: os.Getenv("KAFKA_BROKER"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	// Bare integers are taken as seconds.
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

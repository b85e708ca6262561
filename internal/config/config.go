package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	AdminToken         string
	CORSAllowedOrigins []string

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Scheduling defaults applied when a clinic has no override
	ClinicTimezone          string
	HistoryWindowMonths     int
	VisitLookbackYears      int
	SlotGranularityMinutes  int
	CollaboratorTimeout     time.Duration
	SnapshotCacheTTL        time.Duration
	BookingLockTTL          time.Duration
	ImplausibleIntervalDays int
	DisplayLocale           string

	// Booking event delivery
	AWSRegion             string
	AWSAccessKeyID        string
	AWSSecretAccessKey    string
	AWSEndpointOverride   string
	BookingEventsQueueURL string
	OutboxPollInterval    time.Duration
}

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		AdminToken:         getEnv("ADMIN_TOKEN", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		ClinicTimezone:          getEnv("CLINIC_TIMEZONE", "Asia/Tokyo"),
		HistoryWindowMonths:     getEnvAsInt("HISTORY_WINDOW_MONTHS", 6),
		VisitLookbackYears:      getEnvAsInt("VISIT_LOOKBACK_YEARS", 2),
		SlotGranularityMinutes:  getEnvAsInt("SLOT_GRANULARITY_MINUTES", 30),
		CollaboratorTimeout:     getEnvAsDuration("COLLABORATOR_TIMEOUT", 5*time.Second),
		SnapshotCacheTTL:        getEnvAsDuration("SNAPSHOT_CACHE_TTL", 5*time.Minute),
		BookingLockTTL:          getEnvAsDuration("BOOKING_LOCK_TTL", 15*time.Second),
		ImplausibleIntervalDays: getEnvAsInt("IMPLAUSIBLE_INTERVAL_DAYS", 365),
		DisplayLocale:           strings.ToLower(strings.TrimSpace(getEnv("DISPLAY_LOCALE", "ja"))),

		AWSRegion:             getEnv("AWS_REGION", "ap-northeast-1"),
		AWSAccessKeyID:        getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:    getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride:   getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		BookingEventsQueueURL: getEnv("BOOKING_EVENTS_QUEUE_URL", ""),
		OutboxPollInterval:    getEnvAsDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping empty entries.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

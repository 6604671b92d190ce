package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the full service configuration. It is loaded once in main and
// passed into constructors; handlers never read the environment themselves.
type Config struct {
	Port string

	// Twilio credentials and caller ID
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioPhoneNumber string

	// BaseURL is the public origin all webhook URLs are built from,
	// e.g. https://calls.example.com
	BaseURL string

	// RingTimeoutSeconds is passed to the provider as the ring timeout
	RingTimeoutSeconds int

	// Poller settings
	PollInterval        time.Duration
	DispatchWindow      time.Duration
	StuckCallThreshold  time.Duration
	DispatchHTTPTimeout time.Duration

	// Recording download
	DownloadHTTPTimeout time.Duration

	// Storage settings: "gcs" with a bucket name, or "local" with a directory
	StorageType string
	StoragePath string

	// Redis (optional; the poller runs unlocked without it)
	RedisHost     string
	RedisPort     string
	RedisPassword string

	EnableCORS bool
}

// LoadFromEnv builds a Config from environment variables with defaults.
func LoadFromEnv() *Config {
	return &Config{
		Port: getEnvOrDefault("PORT", "8080"),

		TwilioAccountSID:  getEnvOrDefault("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:   getEnvOrDefault("TWILIO_AUTH_TOKEN", ""),
		TwilioPhoneNumber: getEnvOrDefault("TWILIO_PHONE_NUMBER", ""),

		BaseURL: getEnvOrDefault("BASE_URL", ""),

		RingTimeoutSeconds: getEnvAsIntOrDefault("RING_TIMEOUT_SECONDS", 60),

		PollInterval:        getEnvAsDurationOrDefault("POLL_INTERVAL", time.Minute),
		DispatchWindow:      getEnvAsDurationOrDefault("DISPATCH_WINDOW", 5*time.Minute),
		StuckCallThreshold:  getEnvAsDurationOrDefault("STUCK_CALL_THRESHOLD", 10*time.Minute),
		DispatchHTTPTimeout: getEnvAsDurationOrDefault("DISPATCH_HTTP_TIMEOUT", 30*time.Second),

		DownloadHTTPTimeout: getEnvAsDurationOrDefault("DOWNLOAD_HTTP_TIMEOUT", 60*time.Second),

		StorageType: getEnvOrDefault("STORAGE_TYPE", "gcs"),
		StoragePath: getEnvOrDefault("STORAGE_PATH", ""),

		RedisHost:     getEnvOrDefault("REDIS_HOST", ""),
		RedisPort:     getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),

		EnableCORS: getEnvAsBoolOrDefault("ENABLE_CORS", true),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

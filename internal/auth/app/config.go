package app

import (
	"os"
	"strconv"
	"time"
)

// Config holds everything read from the environment at startup.
type Config struct {
	Env       string
	LogLevel  string
	LogFormat string
	Port      string

	Issuer       string
	DatabaseFile string
	PepperFile   string
	SessionKey   string

	SessionTTL   time.Duration
	ChallengeTTL time.Duration

	RetainSecretOnDisable bool

	ShutdownGracePeriod  time.Duration
	HousekeepingInterval time.Duration
}

// LoadConfig reads configuration from environment variables, falling back to
// development-friendly defaults.
func LoadConfig() Config {
	return Config{
		Env:       getEnvOrDefault("ENV", "dev"),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),
		Port:      getEnvOrDefault("PORT", "8080"),

		Issuer:       getEnvOrDefault("AUTH_ISSUER", "authgate"),
		DatabaseFile: getEnvOrDefault("AUTH_DATABASE_FILE", "authgate.db"),
		PepperFile:   getEnvOrDefault("AUTH_PEPPER_FILE", "data/pepper"),
		SessionKey:   getEnvOrDefault("AUTH_SESSION_KEY_FILE", "data/session.pem"),

		SessionTTL:   getDurationOrDefault("AUTH_SESSION_TTL", 15*time.Minute),
		ChallengeTTL: getDurationOrDefault("AUTH_CHALLENGE_TTL", 5*time.Minute),

		RetainSecretOnDisable: getBoolOrDefault("AUTH_RETAIN_SECRET_ON_DISABLE", false),

		ShutdownGracePeriod:  getDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getDurationOrDefault("HOUSEKEEPING_INTERVAL", 5*time.Minute),
	}
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDurationOrDefault(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getBoolOrDefault(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

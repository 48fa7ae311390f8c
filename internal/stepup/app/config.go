package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	AuthorityURL string // Required: base URL of the verification authority

	DatabaseFile string // Optional: path to SQLite state database (default: ./stepup.db)
	StateKeyFile string // Optional: path to state sealing key file (falls back to STEPUP_STATE_KEY env)

	PollInterval time.Duration // Optional: out-of-band confirmation poll interval (default: 2s)
	PollMaxWait  time.Duration // Optional: poll deadline, 0 waits until canceled (default: 10m)

	TOTPIssuer string // Optional: issuer shown in authenticator apps (default: stepup)
	TOTPPeriod uint   // Optional: TOTP time step in seconds (default: 30)
	TOTPDigits uint   // Optional: TOTP code length (default: 6)
	TOTPSkew   uint   // Optional: accepted steps either side of now (default: 1)

	Env       string // Environment (dev, staging, prod) (default: dev)
	LogLevel  string // Log level (debug, info, warn, error) (default: info)
	LogFormat string // Log format (json, text) (default: json)
}

func LoadConfig() Config {
	cfg := Config{
		AuthorityURL: getEnvOrDefault("STEPUP_AUTHORITY_URL", "http://localhost:8080"),
		DatabaseFile: getEnvOrDefault("STEPUP_DATABASE_FILE", "stepup.db"),
		StateKeyFile: os.Getenv("STEPUP_STATE_KEY_FILE"), // Optional
		PollInterval: getEnvDurationOrDefault("STEPUP_POLL_INTERVAL", 2*time.Second),
		PollMaxWait:  getEnvDurationOrDefault("STEPUP_POLL_MAX_WAIT", 10*time.Minute),
		TOTPIssuer:   getEnvOrDefault("STEPUP_TOTP_ISSUER", "stepup"),
		TOTPPeriod:   getEnvUintOrDefault("STEPUP_TOTP_PERIOD", 30),
		TOTPDigits:   getEnvUintOrDefault("STEPUP_TOTP_DIGITS", 6),
		TOTPSkew:     getEnvUintOrDefault("STEPUP_TOTP_SKEW", 1),
		Env:          getEnvOrDefault("ENV", "dev"),
		LogLevel:     getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:    getEnvOrDefault("LOG_FORMAT", "json"),
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvUintOrDefault(key string, defaultValue uint) uint {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if uintValue, err := strconv.ParseUint(value, 10, 32); err == nil {
		return uint(uintValue)
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}

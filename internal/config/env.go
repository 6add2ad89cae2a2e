package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GetEnv returns the value of an environment variable, or fallback when the
// variable is unset or empty. Empty is treated the same as unset so that a
// blank entry in a .env file does not override a server default.
func GetEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// GetIntEnv parses an integer environment variable such as PORT or
// METRICS_PORT. Unset, empty, or unparseable values yield fallback.
func GetIntEnv(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

// GetDurationEnv parses a duration environment variable such as
// POLL_INTERVAL or STREAM_KEEPALIVE, in time.ParseDuration syntax ("30s",
// "2m"). Unset, empty, or unparseable values yield fallback.
func GetDurationEnv(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// GetSecretFile reads a secret such as the API key from a mounted file
// (API_KEY_FILE typically points under /run/secrets/ in Docker or a secret
// volume in Kubernetes). Trailing whitespace is trimmed so a file ending in
// a newline compares equal to the raw key. An empty path or unreadable file
// yields "", which callers treat as not configured.
func GetSecretFile(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

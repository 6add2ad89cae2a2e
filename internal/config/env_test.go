package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("TEST_GET_ENV", "value")

	if got := GetEnv("TEST_GET_ENV", "default"); got != "value" {
		t.Errorf("GetEnv = %q, want %q", got, "value")
	}
	if got := GetEnv("TEST_GET_ENV_MISSING", "default"); got != "default" {
		t.Errorf("GetEnv = %q, want %q", got, "default")
	}
}

func TestGetIntEnv(t *testing.T) {
	t.Setenv("TEST_INT_ENV", "42")
	t.Setenv("TEST_INT_ENV_BAD", "not-a-number")

	if got := GetIntEnv("TEST_INT_ENV", 7); got != 42 {
		t.Errorf("GetIntEnv = %d, want 42", got)
	}
	if got := GetIntEnv("TEST_INT_ENV_BAD", 7); got != 7 {
		t.Errorf("GetIntEnv with invalid value = %d, want 7", got)
	}
	if got := GetIntEnv("TEST_INT_ENV_MISSING", 7); got != 7 {
		t.Errorf("GetIntEnv with missing value = %d, want 7", got)
	}
}

func TestGetDurationEnv(t *testing.T) {
	t.Setenv("TEST_DUR_ENV", "90s")
	t.Setenv("TEST_DUR_ENV_BAD", "ninety")

	if got := GetDurationEnv("TEST_DUR_ENV", time.Second); got != 90*time.Second {
		t.Errorf("GetDurationEnv = %v, want 90s", got)
	}
	if got := GetDurationEnv("TEST_DUR_ENV_BAD", time.Second); got != time.Second {
		t.Errorf("GetDurationEnv with invalid value = %v, want 1s", got)
	}
}

func TestGetSecretFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "secret")
	if err := os.WriteFile(path, []byte("  hunter2\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if got := GetSecretFile(path); got != "hunter2" {
		t.Errorf("GetSecretFile = %q, want %q", got, "hunter2")
	}
	if got := GetSecretFile(""); got != "" {
		t.Errorf("GetSecretFile with empty path = %q, want empty", got)
	}
	if got := GetSecretFile("/nonexistent/secret"); got != "" {
		t.Errorf("GetSecretFile with missing file = %q, want empty", got)
	}
}

func TestLoadBatchConfig_Defaults(t *testing.T) {
	cfg := LoadBatchConfig()

	if cfg.PollInterval != 60*time.Second {
		t.Errorf("PollInterval = %v, want 60s", cfg.PollInterval)
	}
	if cfg.LogGroup != "/aws/batch/job" {
		t.Errorf("LogGroup = %q, want /aws/batch/job", cfg.LogGroup)
	}
}

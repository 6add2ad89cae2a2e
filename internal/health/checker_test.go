package health

import (
	"context"
	"errors"
	"testing"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

type fakeBackend struct{ err error }

func (f fakeBackend) Ready(ctx context.Context) error { return f.err }

func TestChecker_Liveness(t *testing.T) {
	t.Parallel()
	checker := NewChecker(nil, nil)

	response := checker.Liveness(context.Background())

	if response.Status != StatusHealthy {
		t.Errorf("Expected healthy status, got %s", response.Status)
	}
}

func TestChecker_Readiness_AllHealthy(t *testing.T) {
	t.Parallel()
	checker := NewChecker(fakePinger{}, fakeBackend{})

	response := checker.Readiness(context.Background())

	if response.Status != StatusHealthy {
		t.Errorf("Expected healthy status, got %s", response.Status)
	}
	for _, name := range []string{"database", "batch"} {
		check, ok := response.Checks[name]
		if !ok {
			t.Fatalf("Expected %s check to be present", name)
		}
		if check.Status != StatusHealthy {
			t.Errorf("Expected %s check healthy, got %s", name, check.Status)
		}
	}
}

func TestChecker_Readiness_DatabaseDown(t *testing.T) {
	t.Parallel()
	checker := NewChecker(fakePinger{err: errors.New("connection refused")}, fakeBackend{})

	response := checker.Readiness(context.Background())

	if response.Status != StatusUnhealthy {
		t.Errorf("Expected unhealthy status, got %s", response.Status)
	}
	if response.Checks["database"].Status != StatusUnhealthy {
		t.Error("Expected database check to be unhealthy")
	}
	if response.Checks["batch"].Status != StatusHealthy {
		t.Error("Expected batch check to stay healthy")
	}
}

func TestChecker_Readiness_NotConfigured(t *testing.T) {
	t.Parallel()
	checker := NewChecker(nil, nil)

	response := checker.Readiness(context.Background())

	if response.Status != StatusUnhealthy {
		t.Errorf("Expected unhealthy status, got %s", response.Status)
	}
}

func TestChecker_Readiness_ShuttingDown(t *testing.T) {
	t.Parallel()
	checker := NewChecker(fakePinger{}, fakeBackend{})
	checker.SetShuttingDown()

	response := checker.Readiness(context.Background())

	if response.Status != StatusUnhealthy {
		t.Errorf("Expected unhealthy status during shutdown, got %s", response.Status)
	}
	if _, ok := response.Checks["shutdown"]; !ok {
		t.Error("Expected shutdown check to be present")
	}
}

func TestResponse_IsHealthy(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		status   Status
		expected bool
	}{
		{"healthy", StatusHealthy, true},
		{"unhealthy", StatusUnhealthy, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			response := &Response{Status: tt.status}
			if response.IsHealthy() != tt.expected {
				t.Errorf("IsHealthy() = %v, want %v", response.IsHealthy(), tt.expected)
			}
		})
	}
}

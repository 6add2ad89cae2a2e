package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"validation", Validation("method", "unknown analysis method"), ErrValidation},
		{"not found", NotFound("job", "abc123"), ErrNotFound},
		{"conflict", Conflict("dataset", "cohort-a", "dataset already exists"), ErrConflict},
		{"unavailable", Unavailable("store.ping", errors.New("connection refused")), ErrUnavailable},
		{"internal", Internal("batch.submit", errors.New("boom")), ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false, want true", tt.err, tt.sentinel)
			}
		})
	}
}

func TestErrorClassification_Wrapped(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("handling request: %w", NotFound("job", "abc123"))
	if !errors.Is(err, ErrNotFound) {
		t.Error("wrapped error lost its classification")
	}
}

func TestHTTPStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{Validation("dataset", "dataset is required"), http.StatusBadRequest},
		{NotFound("job", "abc123"), http.StatusNotFound},
		{Conflict("job", "abc123", "already running"), http.StatusConflict},
		{Unavailable("batch.describe", errors.New("timeout")), http.StatusServiceUnavailable},
		{Internal("store.complete", errors.New("boom")), http.StatusInternalServerError},
		{errors.New("unclassified"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

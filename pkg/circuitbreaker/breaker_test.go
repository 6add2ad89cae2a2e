package circuitbreaker

import (
	"testing"
	"time"
)

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	t.Parallel()

	b := New(Config{Threshold: 3, Cooldown: time.Minute})

	for i := 0; i < 2; i++ {
		b.RecordFailure()
	}
	if !b.Allow() {
		t.Error("breaker opened before threshold")
	}

	b.RecordFailure()
	if b.Allow() {
		t.Error("breaker still allowing after threshold failures")
	}
	if b.State() != Open {
		t.Errorf("state = %v, want open", b.State())
	}
}

func TestBreaker_SuccessResets(t *testing.T) {
	t.Parallel()

	b := New(Config{Threshold: 2, Cooldown: time.Minute})
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()

	if !b.Allow() {
		t.Error("success did not reset the failure count")
	}
}

func TestBreaker_HalfOpenAfterCooldown(t *testing.T) {
	t.Parallel()

	b := New(Config{Threshold: 1, Cooldown: 10 * time.Millisecond})
	b.RecordFailure()
	if b.Allow() {
		t.Fatal("expected open circuit")
	}

	time.Sleep(20 * time.Millisecond)
	if !b.Allow() {
		t.Fatal("expected half-open probe after cooldown")
	}
	if b.State() != HalfOpen {
		t.Errorf("state = %v, want half-open", b.State())
	}

	// Probe failure reopens immediately.
	b.RecordFailure()
	if b.State() != Open {
		t.Errorf("state after failed probe = %v, want open", b.State())
	}
}

func TestRegistry_SharedBreakers(t *testing.T) {
	t.Parallel()

	r := NewRegistry(Config{Threshold: 1, Cooldown: time.Minute})
	b1 := r.Get("example.com")
	b2 := r.Get("example.com")
	if b1 != b2 {
		t.Error("expected the same breaker for the same key")
	}

	b1.RecordFailure()
	stats := r.Stats()
	if stats.Total != 1 || stats.Open != 1 {
		t.Errorf("stats = %+v, want 1 total, 1 open", stats)
	}
}

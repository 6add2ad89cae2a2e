package job

import (
	"context"
	"sync"
	"time"
)

// Registry maps job keys to ephemeral notification channels. Each channel
// holds at most one pending notification (buffer of one); it is created
// lazily by the first stream attach or poller publish and removed once it is
// observed empty. All map mutation happens under one mutex, which is what
// makes ReleaseIfEmpty's check-then-delete atomic with respect to Publish:
// a channel can never disappear while a notification is pending.
//
// The registry is per-process state. A multi-instance deployment needs
// session affinity between submission and stream requests; consumers that
// miss a publish recover through the persisted job record.
type Registry struct {
	mu       sync.Mutex
	channels map[string]chan Notification
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[string]chan Notification),
	}
}

// GetOrCreate returns the notification channel for key, creating it if
// absent. Concurrent callers racing on the same key all get the one channel.
func (r *Registry) GetOrCreate(key string) <-chan Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.channels[key]
	if !ok {
		ch = make(chan Notification, 1)
		r.channels[key] = ch
	}
	return ch
}

// Has reports whether a channel currently exists for key.
func (r *Registry) Has(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.channels[key]
	return ok
}

// Publish delivers n to the channel for key. If no channel exists the
// notification is dropped: the poller persists the authoritative result
// before publishing, so a drop only costs immediacy, never information.
// Returns true if the notification was queued.
func (r *Registry) Publish(key string, n Notification) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.channels[key]
	if !ok {
		return false
	}
	select {
	case ch <- n:
		return true
	default:
		// Pending slot already occupied; the earlier notification stands.
		return false
	}
}

// TryConsume waits up to timeout for the next notification on key's channel.
// Returns ok=false on timeout, on context cancellation, or when no channel
// exists. The channel itself is never removed here.
func (r *Registry) TryConsume(ctx context.Context, key string, timeout time.Duration) (Notification, bool) {
	r.mu.Lock()
	ch, ok := r.channels[key]
	r.mu.Unlock()
	if !ok {
		return Notification{}, false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case n := <-ch:
		return n, true
	case <-timer.C:
		return Notification{}, false
	case <-ctx.Done():
		return Notification{}, false
	}
}

// ReleaseIfEmpty removes key's channel if it holds no pending notification.
// A publish racing with the release wins: both run under the registry mutex,
// so the channel is only deleted when it is observed empty at that instant.
// Returns true if the channel was removed.
func (r *Registry) ReleaseIfEmpty(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.channels[key]
	if !ok {
		return false
	}
	if len(ch) > 0 {
		return false
	}
	delete(r.channels, key)
	return true
}

// Len returns the number of live channels.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels)
}

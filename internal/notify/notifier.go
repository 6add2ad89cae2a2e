// Package notify delivers job-completion webhooks asynchronously, with
// buffering, retry, and per-host circuit breaking.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/broadinstitute/dig-job-server/pkg/backoff"
	"github.com/broadinstitute/dig-job-server/pkg/circuitbreaker"
	"github.com/broadinstitute/dig-job-server/pkg/webhook"
)

// ErrBufferFull is returned when the notifier's buffer is full and the event is dropped.
var ErrBufferFull = errors.New("notifier buffer full, event dropped")

const (
	defaultMaxRetries       = 3
	defaultBreakerThreshold = 5
	defaultBreakerCooldown  = 30 * time.Second
)

// Delivery is one webhook event bound for a callback URL.
type Delivery struct {
	Event      *webhook.Event
	URL        string
	SigningKey string // HMAC key, empty = unsigned
}

// MetricsRecorder is an optional interface for recording delivery metrics.
type MetricsRecorder interface {
	RecordWebhookDelivered(ctx context.Context)
	RecordWebhookFailed(ctx context.Context)
	RecordWebhookDropped(ctx context.Context)
}

// Config for the notifier. Zero values use defaults.
type Config struct {
	BufferSize  int           // default 256
	Workers     int           // default 2
	HTTPTimeout time.Duration // default 10s
}

func (c Config) withDefaults() Config {
	if c.BufferSize <= 0 {
		c.BufferSize = 256
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 10 * time.Second
	}
	return c
}

// Notifier queues webhook deliveries in a bounded channel and delivers them
// with a worker pool. If the buffer is full, events are dropped: the
// authoritative job result is already persisted, so callbacks are
// best-effort by design.
type Notifier struct {
	queue    chan *Delivery
	sender   *webhook.Sender
	breakers *circuitbreaker.Registry
	logger   *slog.Logger
	metrics  MetricsRecorder

	delivered atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64

	wg       sync.WaitGroup
	shutdown chan struct{}
	closed   atomic.Bool
}

// New creates and starts a notifier.
func New(cfg Config, metrics MetricsRecorder) *Notifier {
	cfg = cfg.withDefaults()

	n := &Notifier{
		queue:  make(chan *Delivery, cfg.BufferSize),
		sender: webhook.NewSender(cfg.HTTPTimeout),
		breakers: circuitbreaker.NewRegistry(circuitbreaker.Config{
			Threshold: defaultBreakerThreshold,
			Cooldown:  defaultBreakerCooldown,
		}),
		logger:   slog.With("component", "notifier"),
		metrics:  metrics,
		shutdown: make(chan struct{}),
	}

	n.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go n.worker()
	}

	n.logger.Info("Notifier started", "workers", cfg.Workers, "buffer", cfg.BufferSize)
	return n
}

// Dispatch queues a delivery. Non-blocking.
func (n *Notifier) Dispatch(d *Delivery) error {
	if n.closed.Load() {
		return fmt.Errorf("notifier is closed")
	}

	select {
	case n.queue <- d:
		return nil
	default:
		n.dropped.Add(1)
		if n.metrics != nil {
			n.metrics.RecordWebhookDropped(context.Background())
		}
		n.logger.Warn("Webhook dropped, buffer full",
			"destination", extractHost(d.URL),
			"jobKey", d.Event.JobKey,
		)
		return ErrBufferFull
	}
}

// Stats holds notifier statistics.
type Stats struct {
	QueueDepth int
	Delivered  int64
	Failed     int64
	Dropped    int64
}

// Stats returns current notifier statistics.
func (n *Notifier) Stats() Stats {
	return Stats{
		QueueDepth: len(n.queue),
		Delivered:  n.delivered.Load(),
		Failed:     n.failed.Load(),
		Dropped:    n.dropped.Load(),
	}
}

// Close gracefully shuts down, attempting to deliver queued events.
// The context deadline controls how long to wait for the drain.
func (n *Notifier) Close(ctx context.Context) error {
	if n.closed.Swap(true) {
		return nil // already closed
	}

	n.logger.Info("Notifier shutting down", "queued", len(n.queue))
	close(n.shutdown)

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		n.logger.Info("Notifier shutdown complete",
			"delivered", n.delivered.Load(),
			"failed", n.failed.Load(),
			"dropped", n.dropped.Load(),
		)
		return nil
	case <-ctx.Done():
		n.logger.Warn("Notifier shutdown timed out", "remaining", len(n.queue))
		return ctx.Err()
	}
}

func (n *Notifier) worker() {
	defer n.wg.Done()

	for {
		select {
		case <-n.shutdown:
			n.drainQueue()
			return
		case d := <-n.queue:
			n.deliver(d)
		}
	}
}

func (n *Notifier) drainQueue() {
	for {
		select {
		case d := <-n.queue:
			n.deliver(d)
		default:
			return
		}
	}
}

func (n *Notifier) deliver(d *Delivery) {
	host := extractHost(d.URL)
	breaker := n.breakers.Get(host)

	if !breaker.Allow() {
		n.failed.Add(1)
		if n.metrics != nil {
			n.metrics.RecordWebhookFailed(context.Background())
		}
		n.logger.Warn("Webhook skipped, circuit open", "destination", host, "jobKey", d.Event.JobKey)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := n.sendWithRetry(ctx, d); err != nil {
		breaker.RecordFailure()
		n.failed.Add(1)
		if n.metrics != nil {
			n.metrics.RecordWebhookFailed(ctx)
		}
		n.logger.Warn("Webhook delivery failed", "destination", host, "jobKey", d.Event.JobKey, "error", err)
		return
	}

	breaker.RecordSuccess()
	n.delivered.Add(1)
	if n.metrics != nil {
		n.metrics.RecordWebhookDelivered(ctx)
	}
}

func (n *Notifier) sendWithRetry(ctx context.Context, d *Delivery) error {
	var lastErr error
	for attempt := range defaultMaxRetries + 1 {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff.Exponential(attempt, nil)):
			}
		}

		lastErr = n.sender.Send(ctx, d.URL, d.Event, d.SigningKey)
		if lastErr == nil {
			return nil
		}
		if webhook.IsClientError(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// extractHost extracts the host from a URL for circuit breaker keying.
func extractHost(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}
	return parsed.Host
}

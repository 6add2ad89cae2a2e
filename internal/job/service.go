package job

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/broadinstitute/dig-job-server/internal/batch"
	"github.com/broadinstitute/dig-job-server/internal/notify"
	"github.com/broadinstitute/dig-job-server/internal/observability"
	"github.com/broadinstitute/dig-job-server/internal/store"
)

// Callback is an optional webhook destination for a submission.
type Callback struct {
	URL        string
	SigningKey string
}

// Submission describes one analysis job to start.
type Submission struct {
	Owner    string
	Dataset  string
	Method   string
	Spec     batch.JobSpec
	Callback *Callback
}

// ServiceConfig holds dependencies and tunables for the job service.
type ServiceConfig struct {
	Store        store.JobStore
	Backend      batch.Backend
	Registry     *Registry
	Notifier     *notify.Notifier       // optional
	Metrics      *observability.Metrics // optional
	PollInterval time.Duration          // default 60s
}

// Service starts pollers for submitted jobs and answers status/log reads.
//
// Pollers are fire-and-forget relative to the triggering request: Start
// returns immediately and the poller runs on a background context, surviving
// any number of stream attach/detach cycles for its key. Service shutdown is
// the only thing that interrupts a running poller.
type Service struct {
	store        store.JobStore
	backend      batch.Backend
	registry     *Registry
	notifier     *notify.Notifier
	metrics      *observability.Metrics
	pollInterval time.Duration
	logger       *slog.Logger

	wg       sync.WaitGroup
	shutdown chan struct{}
	closed   atomic.Bool
}

// NewService creates a job service.
func NewService(cfg ServiceConfig) *Service {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Service{
		store:        cfg.Store,
		backend:      cfg.Backend,
		registry:     cfg.Registry,
		notifier:     cfg.Notifier,
		metrics:      cfg.Metrics,
		pollInterval: interval,
		logger:       slog.With("component", "jobs"),
		shutdown:     make(chan struct{}),
	}
}

// Registry returns the notification registry shared with status streams.
func (s *Service) Registry() *Registry {
	return s.registry
}

// Start begins polling the submission asynchronously and returns its job
// key. The caller is not blocked and never observes poller errors directly;
// failures are logged and leave the record in its last persisted state.
func (s *Service) Start(sub Submission) string {
	key := Key(sub.Dataset, sub.Owner)

	if s.metrics != nil {
		s.metrics.RecordJobSubmitted(context.Background(), sub.Method)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		p := &poller{
			svc: s,
			key: key,
			sub: sub,
			logger: s.logger.With(
				"jobKey", key,
				"dataset", sub.Dataset,
				"method", sub.Method,
				"owner", sub.Owner,
			),
		}
		p.run(context.Background())
	}()

	return key
}

// Status returns the persisted status for a job key.
func (s *Service) Status(ctx context.Context, key string) (string, error) {
	return s.store.GetStatus(ctx, key)
}

// Log returns the persisted status and the decompressed log transcript.
// available is false while the job is running or when the stored blob cannot
// be decoded; a corrupt blob is reported as "log unavailable", never as an
// error to the caller.
func (s *Service) Log(ctx context.Context, key string) (status, logText string, available bool, err error) {
	status, blob, err := s.store.GetLog(ctx, key)
	if err != nil {
		return "", "", false, err
	}
	if blob == nil {
		return status, "", false, nil
	}
	text, decErr := DecodeLog(blob)
	if decErr != nil {
		s.logger.Warn("Stored log blob is unreadable", "jobKey", key, "error", decErr)
		return status, "", false, nil
	}
	return status, text, true, nil
}

// Close stops issuing new polls and waits for in-flight pollers to notice,
// bounded by the context deadline.
func (s *Service) Close(ctx context.Context) error {
	if !s.closed.Swap(true) {
		close(s.shutdown)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package job

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/broadinstitute/dig-job-server/internal/batch"
	"github.com/broadinstitute/dig-job-server/internal/notify"
	"github.com/broadinstitute/dig-job-server/pkg/webhook"

	"github.com/google/uuid"
)

// poller drives one submitted job to completion: it marks the record
// RUNNING, submits to the backend, polls until a terminal state, persists
// the outcome, and only then publishes the notification. That ordering is
// what lets a stream that missed the publish fall back to the store and
// still see a result at least as fresh as the notification it missed.
type poller struct {
	svc    *Service
	key    string
	sub    Submission
	logger *slog.Logger
}

func (p *poller) run(ctx context.Context) {
	s := p.svc
	started := time.Now()

	if err := s.store.UpsertRunning(ctx, p.key, p.sub.Owner, RunningStatus(p.sub.Method)); err != nil {
		p.logger.Error("Failed to record job start", "error", err)
		return
	}

	execID, err := s.backend.Submit(ctx, p.sub.Spec)
	if err != nil {
		// Fatal to this poller: no retry, the record stays RUNNING until
		// the user resubmits.
		p.logger.Error("Job submission failed", "error", err)
		return
	}
	p.logger.Info("Job submitted", "executionId", execID)

	for {
		exec, err := s.backend.Describe(ctx, execID)
		if s.metrics != nil {
			s.metrics.RecordPoll(ctx, err != nil)
		}
		if err != nil {
			// The external job keeps running whether or not this describe
			// succeeded; treat the failure as non-terminal and ask again
			// next interval.
			p.logger.Warn("Describe failed, retrying next interval", "executionId", execID, "error", err)
		} else if batch.IsTerminalState(exec.State) {
			p.finish(ctx, execID, exec, started)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-s.shutdown:
			p.logger.Info("Shutdown while polling, job left RUNNING", "executionId", execID)
			return
		case <-time.After(s.pollInterval):
		}
	}
}

func (p *poller) finish(ctx context.Context, execID string, exec batch.Execution, started time.Time) {
	s := p.svc

	lines, err := s.backend.FetchLog(ctx, exec.LogLocation)
	if err != nil {
		p.logger.Error("Failed to fetch job log", "executionId", execID, "error", err)
		return
	}

	status := TerminalStatus(p.sub.Method, exec.State)
	if err := s.store.Complete(ctx, p.key, status, EncodeLog(strings.Join(lines, "\n"))); err != nil {
		p.logger.Error("Failed to persist job completion", "error", err)
		return
	}

	delivered := s.registry.Publish(p.key, Notification{
		Status:  status,
		Dataset: p.sub.Dataset,
		Method:  p.sub.Method,
	})
	p.logger.Info("Job finished",
		"executionId", execID,
		"status", status,
		"notified", delivered,
		"duration", time.Since(started),
	)

	if s.metrics != nil {
		s.metrics.RecordJobCompleted(ctx, p.sub.Method, exec.State, time.Since(started).Seconds())
	}

	if s.notifier != nil && p.sub.Callback != nil && p.sub.Callback.URL != "" {
		event := webhook.New(webhook.TypeJobCompleted, "job-server", p.key, uuid.NewString(), map[string]any{
			"status":  status,
			"dataset": p.sub.Dataset,
			"method":  p.sub.Method,
		})
		if err := s.notifier.Dispatch(&notify.Delivery{
			Event:      event,
			URL:        p.sub.Callback.URL,
			SigningKey: p.sub.Callback.SigningKey,
		}); err != nil {
			p.logger.Warn("Completion webhook not queued", "error", err)
		}
	}
}

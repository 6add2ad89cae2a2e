// Package observability provides application metrics via the OpenTelemetry
// metric API with a Prometheus exporter.
package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds all application metrics: HTTP traffic, job lifecycle,
// status streams, and webhook delivery.
type Metrics struct {
	meter metric.Meter

	// HTTP metrics
	HTTPRequestDuration metric.Float64Histogram
	HTTPRequestsTotal   metric.Int64Counter
	HTTPErrorsTotal     metric.Int64Counter

	// Job metrics
	JobsSubmitted metric.Int64Counter
	JobsCompleted metric.Int64Counter
	JobDuration   metric.Float64Histogram
	PollsTotal    metric.Int64Counter
	PollErrors    metric.Int64Counter

	// Stream metrics
	StreamsActive   metric.Int64UpDownCounter
	KeepalivesTotal metric.Int64Counter

	// Webhook metrics
	WebhooksDelivered metric.Int64Counter
	WebhooksFailed    metric.Int64Counter
	WebhooksDropped   metric.Int64Counter
}

// NewMetrics creates and registers all metrics with a Prometheus exporter.
func NewMetrics(ctx context.Context) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter("job-server")
	m := &Metrics{meter: meter}

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPErrorsTotal, err = meter.Int64Counter(
		"http_errors_total",
		metric.WithDescription("Total number of HTTP errors (4xx and 5xx)"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobsSubmitted, err = meter.Int64Counter(
		"jobs_submitted_total",
		metric.WithDescription("Total number of analysis jobs submitted"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobsCompleted, err = meter.Int64Counter(
		"jobs_completed_total",
		metric.WithDescription("Total number of jobs that reached a terminal state"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobDuration, err = meter.Float64Histogram(
		"job_duration_seconds",
		metric.WithDescription("Wall time from submission to terminal state"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(60, 300, 600, 1800, 3600, 7200, 14400, 28800),
	)
	if err != nil {
		return nil, nil, err
	}

	m.PollsTotal, err = meter.Int64Counter(
		"backend_polls_total",
		metric.WithDescription("Total describe calls against the batch backend"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.PollErrors, err = meter.Int64Counter(
		"backend_poll_errors_total",
		metric.WithDescription("Describe calls that failed and were retried"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.StreamsActive, err = meter.Int64UpDownCounter(
		"status_streams_active",
		metric.WithDescription("Currently open status streams"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.KeepalivesTotal, err = meter.Int64Counter(
		"status_stream_keepalives_total",
		metric.WithDescription("Keepalive events emitted on status streams"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.WebhooksDelivered, err = meter.Int64Counter(
		"webhooks_delivered_total",
		metric.WithDescription("Completion webhooks successfully delivered"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.WebhooksFailed, err = meter.Int64Counter(
		"webhooks_failed_total",
		metric.WithDescription("Completion webhooks that failed after retries"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.WebhooksDropped, err = meter.Int64Counter(
		"webhooks_dropped_total",
		metric.WithDescription("Completion webhooks dropped due to a full buffer"),
	)
	if err != nil {
		return nil, nil, err
	}

	return m, promhttp.Handler(), nil
}

// RecordHTTPRequest records latency, traffic, and error metrics for a request.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, durationSeconds float64) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", status),
	)
	m.HTTPRequestDuration.Record(ctx, durationSeconds, attrs)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
	if status >= 400 {
		m.HTTPErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordJobSubmitted records a job submission.
func (m *Metrics) RecordJobSubmitted(ctx context.Context, method string) {
	m.JobsSubmitted.Add(ctx, 1, metric.WithAttributes(attribute.String("analysis", method)))
}

// RecordJobCompleted records a terminal state plus the job's wall time.
func (m *Metrics) RecordJobCompleted(ctx context.Context, method, state string, durationSeconds float64) {
	attrs := metric.WithAttributes(
		attribute.String("analysis", method),
		attribute.String("state", state),
	)
	m.JobsCompleted.Add(ctx, 1, attrs)
	m.JobDuration.Record(ctx, durationSeconds, attrs)
}

// RecordPoll records one describe call against the backend.
func (m *Metrics) RecordPoll(ctx context.Context, failed bool) {
	m.PollsTotal.Add(ctx, 1)
	if failed {
		m.PollErrors.Add(ctx, 1)
	}
}

// StreamOpened records a status stream attach.
func (m *Metrics) StreamOpened(ctx context.Context) {
	m.StreamsActive.Add(ctx, 1)
}

// StreamClosed records a status stream detach.
func (m *Metrics) StreamClosed(ctx context.Context) {
	m.StreamsActive.Add(ctx, -1)
}

// RecordKeepalive records a keepalive event on a stream.
func (m *Metrics) RecordKeepalive(ctx context.Context) {
	m.KeepalivesTotal.Add(ctx, 1)
}

// RecordWebhookDelivered records a successful webhook delivery.
func (m *Metrics) RecordWebhookDelivered(ctx context.Context) {
	m.WebhooksDelivered.Add(ctx, 1)
}

// RecordWebhookFailed records a webhook that failed after retries.
func (m *Metrics) RecordWebhookFailed(ctx context.Context) {
	m.WebhooksFailed.Add(ctx, 1)
}

// RecordWebhookDropped records a webhook dropped for lack of buffer space.
func (m *Metrics) RecordWebhookDropped(ctx context.Context) {
	m.WebhooksDropped.Add(ctx, 1)
}

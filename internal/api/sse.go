package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/broadinstitute/dig-job-server/internal/job"
)

// streamEvent is the payload of a "message" event on a job status stream.
type streamEvent struct {
	JobKey  string `json:"jobKey"`
	Status  string `json:"status"`
	Dataset string `json:"dataset,omitempty"`
	Method  string `json:"method,omitempty"`
}

// StreamJob handles GET /api/jobs/{jobKey}/stream as a server-sent event
// stream. The first event always carries the persisted status; if the job is
// still running the stream then waits on the notification registry, emitting
// a keepalive whenever an interval passes with no news, and closes after
// relaying a terminal status.
//
// A client that attaches after completion never hangs: the completion was
// persisted before it was published, so the initial store read already shows
// the terminal status.
func (h *Handler) StreamJob(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("jobKey")
	if key == "" {
		h.writeError(w, http.StatusBadRequest, "Job key is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	ctx := r.Context()

	// Subscribe before the initial read so a completion landing between the
	// two is either visible in the store or delivered on the channel.
	registry := h.svc.Registry()
	registry.GetOrCreate(key)
	defer registry.ReleaseIfEmpty(key)

	status, err := h.svc.Status(ctx, key)
	if err != nil {
		registry.ReleaseIfEmpty(key)
		h.handleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if h.metrics != nil {
		h.metrics.StreamOpened(ctx)
		defer h.metrics.StreamClosed(ctx)
	}

	h.emit(w, flusher, "message", streamEvent{JobKey: key, Status: status})
	if job.IsTerminalStatus(status) {
		return
	}

	for {
		// Re-subscribe every pass. A peer stream on the same key that
		// consumed the notification and exited releases the shared channel;
		// without a fresh lookup this stream would be waiting on a dead
		// reference.
		ch := registry.GetOrCreate(key)
		timer := time.NewTimer(h.keepAlive)
		select {
		case n := <-ch:
			timer.Stop()
			h.emit(w, flusher, "message", streamEvent{
				JobKey:  key,
				Status:  n.Status,
				Dataset: n.Dataset,
				Method:  n.Method,
			})
			if job.IsTerminalStatus(n.Status) {
				return
			}
		case <-timer.C:
			// A peer stream may have consumed the one notification; fall
			// back to the store before saying keepalive.
			status, err := h.svc.Status(ctx, key)
			if err == nil && job.IsTerminalStatus(status) {
				// Drain the publish that raced with this store read so the
				// deferred release can reclaim the channel.
				registry.TryConsume(ctx, key, 10*time.Millisecond)
				h.emit(w, flusher, "message", streamEvent{JobKey: key, Status: status})
				return
			}
			if h.metrics != nil {
				h.metrics.RecordKeepalive(ctx)
			}
			h.emitKeepalive(w, flusher)
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

func (h *Handler) emit(w http.ResponseWriter, flusher http.Flusher, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	flusher.Flush()
}

// emitKeepalive writes a keepalive event with an empty data line.
func (h *Handler) emitKeepalive(w http.ResponseWriter, flusher http.Flusher) {
	fmt.Fprint(w, "event: keepalive\ndata:\n\n")
	flusher.Flush()
}

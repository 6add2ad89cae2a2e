// Package api provides the HTTP API handlers and routing for the job server.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/broadinstitute/dig-job-server/internal/apperrors"
	"github.com/broadinstitute/dig-job-server/internal/batch"
	"github.com/broadinstitute/dig-job-server/internal/health"
	"github.com/broadinstitute/dig-job-server/internal/job"
	"github.com/broadinstitute/dig-job-server/internal/observability"
	"github.com/broadinstitute/dig-job-server/internal/store"
)

// maxRequestBodySize limits request body to 1MB to prevent memory exhaustion
const maxRequestBodySize = 1 << 20 // 1 MB

// Handler contains HTTP handlers for the job server API
type Handler struct {
	svc       *job.Service
	store     store.Store
	metrics   *observability.Metrics
	health    *health.Checker
	queue     string
	jobDef    string
	keepAlive time.Duration
}

// HandlerConfig holds dependencies for the API handler.
type HandlerConfig struct {
	JobService    *job.Service
	Store         store.Store
	Metrics       *observability.Metrics
	HealthChecker *health.Checker
	JobQueue      string
	JobDefinition string
	KeepAlive     time.Duration // stream keepalive interval, default 30s
}

// NewHandler creates a new API handler
func NewHandler(cfg HandlerConfig) *Handler {
	keepAlive := cfg.KeepAlive
	if keepAlive <= 0 {
		keepAlive = 30 * time.Second
	}
	return &Handler{
		svc:       cfg.JobService,
		store:     cfg.Store,
		metrics:   cfg.Metrics,
		health:    cfg.HealthChecker,
		queue:     cfg.JobQueue,
		jobDef:    cfg.JobDefinition,
		keepAlive: keepAlive,
	}
}

// analysisRequest is the body of POST /api/analyses.
type analysisRequest struct {
	Dataset        string            `json:"dataset"`
	Owner          string            `json:"owner"`
	Method         string            `json:"method"`
	Parameters     map[string]string `json:"parameters,omitempty"`
	CallbackURL    string            `json:"callbackUrl,omitempty"`
	CallbackSecret string            `json:"callbackSecret,omitempty"`
}

// SubmitAnalysis handles POST /api/analyses.
// It starts an asynchronous batch job and returns immediately; the accepted
// response carries the job key used by all later status and log reads.
func (h *Handler) SubmitAnalysis(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req analysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.Dataset == "" {
		h.handleError(w, r, apperrors.Validation("dataset", "dataset is required"))
		return
	}
	if req.Owner == "" {
		h.handleError(w, r, apperrors.Validation("owner", "owner is required"))
		return
	}
	if !job.ValidMethod(req.Method) {
		h.handleError(w, r, apperrors.Validation("method", "method must be one of: sumstats, sldsc"))
		return
	}

	sub := job.Submission{
		Owner:   req.Owner,
		Dataset: req.Dataset,
		Method:  req.Method,
		Spec: batch.JobSpec{
			Name:       req.Method + "-" + req.Dataset,
			Queue:      h.queue,
			Definition: h.jobDef,
			Parameters: req.Parameters,
		},
	}
	if req.CallbackURL != "" {
		sub.Callback = &job.Callback{URL: req.CallbackURL, SigningKey: req.CallbackSecret}
	}

	key := h.svc.Start(sub)

	h.writeJSON(w, http.StatusAccepted, map[string]string{
		"jobKey": key,
		"status": job.RunningStatus(req.Method),
	})
}

// GetJob handles GET /api/jobs/{jobKey}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("jobKey")
	if key == "" {
		h.writeError(w, http.StatusBadRequest, "Job key is required")
		return
	}

	status, err := h.svc.Status(r.Context(), key)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"jobKey": key,
		"status": status,
	})
}

// GetJobLog handles GET /api/jobs/{jobKey}/log.
// The log is only available once the job reached a terminal state; before
// that (or when the stored blob is unreadable) available is false and the
// log field is empty.
func (h *Handler) GetJobLog(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("jobKey")
	if key == "" {
		h.writeError(w, http.StatusBadRequest, "Job key is required")
		return
	}

	status, logText, available, err := h.svc.Log(r.Context(), key)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"jobKey":    key,
		"status":    status,
		"log":       logText,
		"available": available,
	})
}

// datasetRequest is the body of POST /api/datasets.
type datasetRequest struct {
	Name     string         `json:"name"`
	Owner    string         `json:"owner"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type datasetResponse struct {
	Key        string         `json:"key"`
	Name       string         `json:"name"`
	Owner      string         `json:"owner"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	UploadedAt time.Time      `json:"uploadedAt"`
}

func toDatasetResponse(d store.Dataset) datasetResponse {
	return datasetResponse{
		Key:        d.Key,
		Name:       d.Name,
		Owner:      d.Owner,
		Metadata:   d.Metadata,
		UploadedAt: d.UploadedAt,
	}
}

// CreateDataset handles POST /api/datasets.
// The dataset key is derived from the name/owner pair the same way job keys
// are, so a dataset and its analysis jobs share an identifier space.
func (h *Handler) CreateDataset(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req datasetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.Name == "" {
		h.handleError(w, r, apperrors.Validation("name", "name is required"))
		return
	}
	if req.Owner == "" {
		h.handleError(w, r, apperrors.Validation("owner", "owner is required"))
		return
	}

	d := store.Dataset{
		Key:      job.Key(req.Name, req.Owner),
		Name:     req.Name,
		Owner:    req.Owner,
		Metadata: req.Metadata,
	}
	if err := h.store.CreateDataset(r.Context(), d); err != nil {
		h.handleError(w, r, err)
		return
	}

	created, err := h.store.GetDataset(r.Context(), d.Key)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toDatasetResponse(created))
}

// ListDatasets handles GET /api/datasets. The optional owner query param
// narrows the listing to one uploader.
func (h *Handler) ListDatasets(w http.ResponseWriter, r *http.Request) {
	datasets, err := h.store.ListDatasets(r.Context(), r.URL.Query().Get("owner"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	resp := make([]datasetResponse, 0, len(datasets))
	for _, d := range datasets {
		resp = append(resp, toDatasetResponse(d))
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"datasets": resp})
}

// GetDataset handles GET /api/datasets/{key}
func (h *Handler) GetDataset(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" {
		h.writeError(w, http.StatusBadRequest, "Dataset key is required")
		return
	}

	d, err := h.store.GetDataset(r.Context(), key)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toDatasetResponse(d))
}

// DeleteDataset handles DELETE /api/datasets/{key}.
// Any job record sharing the key is removed as well.
func (h *Handler) DeleteDataset(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" {
		h.writeError(w, http.StatusBadRequest, "Dataset key is required")
		return
	}

	if err := h.store.DeleteDataset(r.Context(), key); err != nil {
		h.handleError(w, r, err)
		return
	}
	if err := h.store.Delete(r.Context(), key); err != nil && apperrors.HTTPStatus(err) != http.StatusNotFound {
		h.handleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Livez handles GET /livez - liveness probe.
// Returns 200 if the process is alive. Does not check dependencies.
func (h *Handler) Livez(w http.ResponseWriter, r *http.Request) {
	response := h.health.Liveness(r.Context())
	h.writeJSON(w, http.StatusOK, response)
}

// Readyz handles GET /readyz - readiness probe.
// Returns 200 if the service is ready to accept traffic.
// Returns 503 if the database or batch backend is unavailable.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	response := h.health.Readiness(r.Context())

	status := http.StatusOK
	if !response.IsHealthy() {
		status = http.StatusServiceUnavailable
	}

	h.writeJSON(w, status, response)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// handleError handles errors from the service layer with appropriate HTTP status codes.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= 500 {
		slog.Error("Internal error", "error", err, "path", r.URL.Path)
	} else {
		slog.Warn("Client error", "error", err, "path", r.URL.Path, "status", status)
	}
	h.writeError(w, status, err.Error())
}

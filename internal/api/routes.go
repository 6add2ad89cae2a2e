package api

import (
	"net/http"

	"github.com/broadinstitute/dig-job-server/internal/observability"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	Handler *Handler
	Metrics *observability.Metrics
	APIKey  string
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(cfg RouterConfig) http.Handler {
	handler := cfg.Handler

	mux := http.NewServeMux()

	// Health check endpoints (liveness/readiness probes) - no auth required
	mux.HandleFunc("GET /livez", handler.Livez)
	mux.HandleFunc("GET /readyz", handler.Readyz)

	// Analysis and dataset endpoints - auth required
	authMiddleware := AuthMiddleware(cfg.APIKey)
	protected := func(h http.HandlerFunc) http.Handler {
		return authMiddleware(h)
	}

	mux.Handle("POST /api/analyses", protected(handler.SubmitAnalysis))
	mux.Handle("GET /api/jobs/{jobKey}", protected(handler.GetJob))
	mux.Handle("GET /api/jobs/{jobKey}/log", protected(handler.GetJobLog))
	mux.Handle("GET /api/jobs/{jobKey}/stream", protected(handler.StreamJob))

	mux.Handle("POST /api/datasets", protected(handler.CreateDataset))
	mux.Handle("GET /api/datasets", protected(handler.ListDatasets))
	mux.Handle("GET /api/datasets/{key}", protected(handler.GetDataset))
	mux.Handle("DELETE /api/datasets/{key}", protected(handler.DeleteDataset))

	// Apply middleware chain (order matters: outermost first)
	var h http.Handler = mux
	h = ContentTypeMiddleware()(h)
	h = CORSMiddleware()(h)
	if cfg.Metrics != nil {
		h = MetricsMiddleware(cfg.Metrics)(h)
	}
	h = LoggingMiddleware()(h)
	h = RecoveryMiddleware()(h)

	return h
}

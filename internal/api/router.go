package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/kiranshivaraju/medinventory/internal/api/middleware"
	"github.com/kiranshivaraju/medinventory/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	RateLimit *mw.RateLimit

	HealthHandler   http.HandlerFunc
	SubmitJob       http.HandlerFunc
	ListJobs        http.HandlerFunc
	PollJob         http.HandlerFunc
	CancelJob       http.HandlerFunc
	DownloadResult  http.HandlerFunc
	DownloadSummary http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.ClientKey)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Resource not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	r.Route("/api/v1/jobs", func(r chi.Router) {
		r.With(rateLimited(deps.RateLimit)).Post("/", orNotImplemented(deps.SubmitJob))
		r.Get("/", orNotImplemented(deps.ListJobs))

		r.Get("/{jobID}", orNotImplemented(deps.PollJob))
		r.Delete("/{jobID}", orNotImplemented(deps.CancelJob))
		r.Get("/{jobID}/result", orNotImplemented(deps.DownloadResult))
		r.Get("/{jobID}/summary", orNotImplemented(deps.DownloadSummary))
	})

	return r
}

// rateLimited returns the limiter middleware, or a pass-through when none is configured.
func rateLimited(rl *mw.RateLimit) func(http.Handler) http.Handler {
	if rl == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return rl.Limit
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}

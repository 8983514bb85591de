// Package api is the HTTP surface of the filecat server: REST endpoints under
// /api/v1, the push stream, health and metrics.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var timeNow = time.Now

// RouterConfig carries the pieces NewRouter wires together.
type RouterConfig struct {
	Handler *Handler
	// Events serves GET /api/v1/events. Optional.
	Events http.Handler
	// Auth protects everything except health and metrics. Nil disables auth.
	Auth   *JWTAuth
	Logger *slog.Logger
}

// NewRouter builds the chi router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(Metrics())
	r.Use(RequestLogger(cfg.Logger.With(slog.String("component", "api.http"))))
	if cfg.Auth != nil {
		r.Use(jwtAuthWithExclusions(cfg.Auth, "/health/", "/metrics"))
	}

	r.Get("/health/live", healthLive)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	h := cfg.Handler
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/files", func(r chi.Router) {
			r.Get("/", h.ListFiles)
			r.Get("/latest", h.LatestPerCategory)
			r.Get("/category/{category}", h.ListByCategory)
			r.Get("/{id}", h.GetFile)
			r.Put("/{id}", h.SetCategory)
			r.Delete("/{id}", h.DeleteFile)
			r.Patch("/{id}/not-show-again", h.NotShowAgain)
			r.Patch("/{id}/acknowledge", h.Acknowledge)
		})

		r.Get("/categories", h.Categories)

		r.Route("/actions", func(r chi.Router) {
			r.Post("/refresh-files", h.RefreshFiles)
			r.Post("/force-categorize", h.ForceCategorize)
			r.Post("/move-files", h.MoveFiles)
			r.Post("/train-model", h.TrainModel)
			r.Get("/jobs", h.ListJobs)
			r.Get("/jobs/{jobId}/status", h.JobStatus)
			r.Delete("/jobs/{jobId}", h.CancelJob)
			r.Get("/history", h.JobHistory)
		})

		r.Route("/configs", func(r chi.Router) {
			r.Get("/", h.ListConfigs)
			r.Put("/{key}", h.PutConfig)
			r.Delete("/{key}", h.DeleteConfig)
		})

		if cfg.Events != nil {
			r.Method(http.MethodGet, "/events", cfg.Events)
		}
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, CodeValidationError, "method not allowed")
	})
	return r
}

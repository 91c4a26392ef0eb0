// Package httpapi exposes the learner flow over JSON-over-HTTP plus a
// websocket stream of session snapshots.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/p-n-ai/mindshift/internal/events"
	"github.com/p-n-ai/mindshift/internal/platform/metrics"
	"github.com/p-n-ai/mindshift/internal/session"
)

const (
	maxBodyBytes = 1 << 20
	checkTimeout = 3 * time.Second
)

// Checker is a dependency probed by /readyz.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// Deps are the collaborators of the HTTP surface. Service is required.
type Deps struct {
	Service *session.Service
	// Events enables GET /api/sessions/{id}/events when set.
	Events  events.Reader
	Metrics *metrics.Metrics
	// Checks are probed by /readyz, keyed by name.
	Checks map[string]Checker
	// RateLimitPerMin caps generation requests per client IP. Zero disables it.
	RateLimitPerMin int
	Logger          *slog.Logger
}

type handler struct {
	svc    *session.Service
	events events.Reader
	checks map[string]Checker
	logger *slog.Logger
}

// New builds the router.
func New(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{
		svc:    deps.Service,
		events: deps.Events,
		checks: deps.Checks,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger(logger))
	r.Use(recoverer(logger))
	r.Use(deps.Metrics.Middleware)

	r.Get("/healthz", handleHealthz)
	r.Get("/readyz", h.handleReadyz)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", h.createSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getSession)
			r.Delete("/", h.deleteSession)
			r.Get("/history.xlsx", h.exportHistory)
			r.Get("/ws", h.streamSession)
			if h.events != nil {
				r.Get("/events", h.listEvents)
			}
			r.Put("/quizzes/{phase}/answers/{index}", h.recordAnswer)
			r.Post("/quizzes/{phase}/submit", h.submitQuiz)

			// Routes that call out to the course site or the AI provider.
			r.Group(func(r chi.Router) {
				if deps.RateLimitPerMin > 0 {
					r.Use(httprate.LimitByIP(deps.RateLimitPerMin, time.Minute))
				}
				r.Post("/course", h.scrapeCourse)
				r.Post("/quizzes/{phase}", h.generateQuiz)
				r.Post("/roadmap", h.generateRoadmap)
			})
		})
	})

	return r
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

type readiness struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *handler) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	resp := readiness{Status: "ready"}
	status := http.StatusOK
	for name, c := range h.checks {
		if resp.Checks == nil {
			resp.Checks = make(map[string]string, len(h.checks))
		}
		if err := c.HealthCheck(ctx); err != nil {
			h.logger.Warn("readiness check failed", "check", name, "error", err)
			resp.Checks[name] = err.Error()
			resp.Status = "not ready"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	h.writeJSON(w, status, resp)
}

// Package metrics exposes prometheus collectors for the learning pipeline.
package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	scrapes         *prometheus.CounterVec
	generations     *prometheus.CounterVec
	rejected        *prometheus.CounterVec
	scoreRatio      *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		gatherer: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindshift_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mindshift_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"method", "route"}),
		scrapes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindshift_course_scrapes_total",
			Help: "Course page scrapes by outcome",
		}, []string{"outcome"}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindshift_generations_total",
			Help: "Generative-text calls by kind and outcome",
		}, []string{"kind", "outcome"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindshift_rejected_questions_total",
			Help: "Generated questions dropped by validation",
		}, []string{"phase"}),
		scoreRatio: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mindshift_quiz_score_ratio",
			Help:    "Submitted quiz score as a fraction of the total",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}, []string{"phase"}),
	}
	reg.MustRegister(
		m.requests,
		m.requestDuration,
		m.scrapes,
		m.generations,
		m.rejected,
		m.scoreRatio,
	)
	return m
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Gatherer returns the underlying registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.gatherer
}

// ObserveScrape counts a scrape; outcome is "ok" or "error".
func (m *Metrics) ObserveScrape(outcome string) {
	if m == nil {
		return
	}
	m.scrapes.WithLabelValues(outcome).Inc()
}

// ObserveGeneration counts a quiz or roadmap generation.
func (m *Metrics) ObserveGeneration(kind, outcome string) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(kind, outcome).Inc()
}

// ObserveRejected adds n dropped questions for a quiz phase.
func (m *Metrics) ObserveRejected(phase string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rejected.WithLabelValues(phase).Add(float64(n))
}

// ObserveScore records a submitted score.
func (m *Metrics) ObserveScore(phase string, score, total int) {
	if m == nil || total <= 0 {
		return
	}
	m.scoreRatio.WithLabelValues(phase).Observe(float64(score) / float64(total))
}

// Middleware records request counts and durations labelled by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
		m.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack passes connection takeover through for websocket upgrades.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return h.Hijack()
}

// Unwrap lets http.ResponseController reach the underlying writer (websocket hijack).
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

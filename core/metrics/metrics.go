// Package metrics exports prometheus metrics for runs, tasks, tool calls and
// the HTTP layer.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adalundhe/crews/core/crew"
)

const Namespace = "crews"

type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	RunsTotal   *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec
	RunsActive  prometheus.Gauge

	TasksTotal   *prometheus.CounterVec
	TaskDuration *prometheus.HistogramVec

	ToolInvocationsTotal *prometheus.CounterVec

	WSConnectionsActive prometheus.Gauge
}

// New registers every metric on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
		RunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "runs_total",
				Help:      "Total crew runs by crew, provider and status",
			},
			[]string{"crew", "provider", "status"},
		),
		RunDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "run_duration_seconds",
				Help:      "Crew run duration in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
			},
			[]string{"crew", "status"},
		),
		RunsActive: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "runs_active",
				Help:      "Crew runs currently executing",
			},
		),
		TasksTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "tasks_total",
				Help:      "Total crew tasks by crew, task and status",
			},
			[]string{"crew", "task", "status"},
		),
		TaskDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "task_duration_seconds",
				Help:      "Crew task duration in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"crew", "task"},
		),
		ToolInvocationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "tool_invocations_total",
				Help:      "Total tool invocations by tool and status",
			},
			[]string{"tool", "status"},
		),
		WSConnectionsActive: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "websocket_connections_active",
				Help:      "Active WebSocket connections",
			},
		),
	}
}

// Registry exposes the underlying registry for gathering in tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// RunStarted marks a run as executing.
func (m *Metrics) RunStarted() {
	m.RunsActive.Inc()
}

// RunFinished records a completed or failed run.
func (m *Metrics) RunFinished(crewKind, provider string, elapsed time.Duration, err error) {
	m.RunsActive.Dec()
	s := status(err)
	m.RunsTotal.WithLabelValues(crewKind, provider, s).Inc()
	m.RunDuration.WithLabelValues(crewKind, s).Observe(elapsed.Seconds())
}

// ObserveTool records one tool invocation. It matches the answer tool's
// observer signature.
func (m *Metrics) ObserveTool(tool string, err error) {
	m.ToolInvocationsTotal.WithLabelValues(tool, status(err)).Inc()
}

// Crew observer methods.

func (m *Metrics) TaskStarted(string, crew.Task) {}

func (m *Metrics) TaskFinished(crewKind string, task crew.Task, elapsed time.Duration, err error) {
	m.TasksTotal.WithLabelValues(crewKind, task.Name, status(err)).Inc()
	m.TaskDuration.WithLabelValues(crewKind, task.Name).Observe(elapsed.Seconds())
}

func (m *Metrics) ToolInvoked(string, string, string, error) {}

// Middleware records request counts and latency.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		path := normalizePath(r.URL.Path)
		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Hijack passes through to the wrapped writer for websocket upgrades.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

// normalizePath replaces run ids with a placeholder to bound label cardinality.
func normalizePath(path string) string {
	for _, prefix := range []string{"/api/runs/", "/ws/runs/"} {
		rest, ok := strings.CutPrefix(path, prefix)
		if !ok || rest == "" {
			continue
		}
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			return prefix + "{id}" + rest[i:]
		}
		return prefix + "{id}"
	}
	return path
}

// Package metrics exposes Prometheus metrics for intents, operations and
// HTTP requests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ChatWallet/internal/execution"
	"ChatWallet/internal/intent"
)

// Registry owns the collectors of one process.
type Registry struct {
	registry          *prometheus.Registry
	intentsTotal      *prometheus.CounterVec
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// NewRegistry creates a Registry with Go and process collectors attached.
func NewRegistry() *Registry {
	intents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatwallet_intents_total",
		Help: "Recognized intents by kind",
	}, []string{"kind"})

	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatwallet_operations_total",
		Help: "Finished operations by kind, chain, phase and error code",
	}, []string{"kind", "chain", "phase", "code"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chatwallet_operation_duration_seconds",
		Help:    "Time from confirmation to terminal state",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"kind", "phase"})

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatwallet_http_requests_total",
		Help: "HTTP requests by route, method and status",
	}, []string{"handler", "method", "code"})

	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chatwallet_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"handler", "method"})

	r := prometheus.NewRegistry()
	r.MustRegister(
		intents, operations, duration, requests, latency,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return &Registry{
		registry:          r,
		intentsTotal:      intents,
		operationsTotal:   operations,
		operationDuration: duration,
		httpRequests:      requests,
		httpDuration:      latency,
	}
}

// ObserveIntent counts a recognized intent.
func (m *Registry) ObserveIntent(kind intent.Kind) {
	m.intentsTotal.WithLabelValues(string(kind)).Inc()
}

// ObserveOperation records a terminal operation state.
func (m *Registry) ObserveOperation(kind intent.Kind, chain string, state execution.State, elapsed time.Duration) {
	m.operationsTotal.WithLabelValues(string(kind), chain, string(state.Phase), string(state.Code)).Inc()
	m.operationDuration.WithLabelValues(string(kind), string(state.Phase)).Observe(elapsed.Seconds())
}

// ObserveHTTPRequest records one served request.
func (m *Registry) ObserveHTTPRequest(handler, method string, status int, duration time.Duration) {
	m.httpRequests.WithLabelValues(handler, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(handler, method).Observe(duration.Seconds())
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Instrument wraps next and records its requests under name.
func (m *Registry) Instrument(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		m.ObserveHTTPRequest(name, r.Method, sw.status, time.Since(start))
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

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

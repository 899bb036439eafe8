// Package metrics exposes Prometheus instruments for the airdrop service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "airdrop"

// Status labels an operation outcome
type Status string

const (
	StatusSuccess  Status = "success"
	StatusRejected Status = "rejected" // the state machine refused the operation
	StatusError    Status = "error"    // a collaborator failed
)

// StatusFromCode classifies an HTTP status code
func StatusFromCode(code int) Status {
	switch {
	case code >= http.StatusInternalServerError:
		return StatusError
	case code >= http.StatusBadRequest:
		return StatusRejected
	default:
		return StatusSuccess
	}
}

// Metrics holds the service instruments
type Metrics struct {
	BuildInfo         *prometheus.GaugeVec
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	Events            *prometheus.CounterVec
	RateLimited       prometheus.Counter
	HTTPRequests      *prometheus.CounterVec
	HTTPInFlight      prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New registers the instruments with reg
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		BuildInfo: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information of the airdrop service",
		}, []string{"version", "date"}),

		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Distribution operations by outcome",
		}, []string{"operation", "status"}),

		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of distribution operations in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		}, []string{"operation"}),

		Events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Committed distribution events by kind",
		}, []string{"kind"}),

		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-caller rate limit",
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "status"}),

		HTTPInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		}),

		gatherer: reg,
	}
}

// ObserveOperation records one operation outcome and its latency
func (m *Metrics) ObserveOperation(operation string, status Status, started time.Time) {
	m.Operations.WithLabelValues(operation, string(status)).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware counts requests by method and status
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.HTTPInFlight.Inc()
		defer m.HTTPInFlight.Dec()

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		m.HTTPRequests.WithLabelValues(r.Method, strconv.Itoa(sw.status)).Inc()
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

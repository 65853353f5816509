// Package observability collects Prometheus metrics for the engine.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics aggregates the Prometheus registry and base HTTP metrics.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	allocationsTotal    *prometheus.CounterVec
	reconcileOutcomes   *prometheus.CounterVec
	clearedBillsTotal   *prometheus.CounterVec
	rolledBackTxnsTotal prometheus.Counter
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bakeledger_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bakeledger_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	allocations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bakeledger_ledger_allocations_total",
		Help: "Units allocated from the batch ledger by path (fefo, pinned, counter).",
	}, []string{"path"})
	reconcile := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bakeledger_reconcile_outcomes_total",
		Help: "Credit note reconciliation outcomes per run.",
	}, []string{"outcome"})
	cleared := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bakeledger_settlement_bills_total",
		Help: "Settlement receipt bills by result (cleared, skipped).",
	}, []string{"result"})
	rolledBack := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bakeledger_rolled_back_txns_total",
		Help: "Ledger transactions rolled back on validation failure.",
	})
	registry.MustRegister(requests, duration, allocations, reconcile, cleared, rolledBack)
	return &Metrics{
		registry:            registry,
		handler:             promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:       requests,
		requestDuration:     duration,
		allocationsTotal:    allocations,
		reconcileOutcomes:   reconcile,
		clearedBillsTotal:   cleared,
		rolledBackTxnsTotal: rolledBack,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveAllocation counts units allocated through the given depletion path.
func (m *Metrics) ObserveAllocation(path string, units int64) {
	if m == nil {
		return
	}
	m.allocationsTotal.WithLabelValues(path).Add(float64(units))
}

// ObserveReconcileOutcome counts one reconciliation outcome.
func (m *Metrics) ObserveReconcileOutcome(outcome string) {
	if m == nil {
		return
	}
	m.reconcileOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveSettlementBill counts one settlement bill result.
func (m *Metrics) ObserveSettlementBill(result string) {
	if m == nil {
		return
	}
	m.clearedBillsTotal.WithLabelValues(result).Inc()
}

// ObserveRollback counts one rolled-back ledger transaction.
func (m *Metrics) ObserveRollback() {
	if m == nil {
		return
	}
	m.rolledBackTxnsTotal.Inc()
}

// Registerer exposes the registry for module-specific metrics.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}

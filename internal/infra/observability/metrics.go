package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"

	"github.com/ssraminder/financial-dashboard/internal/domain"
)

// Metrics holds all Prometheus metrics for the reconciliation backend.
type Metrics struct {
	// Registry owns these metrics; /metrics serves it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	commitRows      *prometheus.CounterVec
	balanceChecks   *prometheus.CounterVec
	staleSelections prometheus.Counter
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	activeSessions  prometheus.Gauge
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. A private registry keeps repeated calls
// (tests) from panicking on duplicate collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_operation_duration_seconds",
				Help:    "Duration of service operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_external_errors_total",
				Help: "Total errors from backend calls.",
			},
			[]string{"service"},
		),
		commitRows: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_commit_rows_total",
				Help: "Transaction rows written by statement commits.",
			},
			[]string{"outcome"},
		),
		balanceChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_balance_checks_total",
				Help: "Statement balance checks by outcome.",
			},
			[]string{"outcome"},
		),
		staleSelections: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ledger_stale_selections_total",
				Help: "Statement loads discarded because the selection changed.",
			},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		activeSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ledger_active_sessions",
				Help: "Open review sessions.",
			},
		),
	}
}

// Handler serves the private registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// RecordCommit counts saved and failed rows of one commit.
func (m *Metrics) RecordCommit(updated, failed int) {
	m.commitRows.WithLabelValues("updated").Add(float64(updated))
	m.commitRows.WithLabelValues("failed").Add(float64(failed))
}

// RecordBalanceCheck counts one balance check.
func (m *Metrics) RecordBalanceCheck(balanced bool) {
	if balanced {
		m.balanceChecks.WithLabelValues("balanced").Inc()
		return
	}
	m.balanceChecks.WithLabelValues("unbalanced").Inc()
}

// IncrStaleSelection counts a discarded statement load.
func (m *Metrics) IncrStaleSelection() {
	m.staleSelections.Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// SetActiveSessions reports the number of open sessions.
func (m *Metrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

// Snapshot returns cumulative reconciliation counters for
// GET /v1/metrics/reconcile.
func (m *Metrics) Snapshot() *domain.ReconcileMetrics {
	hits := sumCounterVec(m.cacheHits)
	misses := sumCounterVec(m.cacheMisses)
	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	return &domain.ReconcileMetrics{
		CommittedRows:    int64(getCounterValue(m.commitRows, "updated")),
		FailedRows:       int64(getCounterValue(m.commitRows, "failed")),
		BalancedChecks:   int64(getCounterValue(m.balanceChecks, "balanced")),
		UnbalancedChecks: int64(getCounterValue(m.balanceChecks, "unbalanced")),
		StaleSelections:  int64(readCounter(m.staleSelections)),
		ExternalErrors:   int64(sumCounterVec(m.externalErrors)),
		CacheHitRate:     hitRate,
		Period:           "all_time",
	}
}

// getCounterValue extracts the current value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	return readCounter(cv.WithLabelValues(label))
}

func readCounter(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

// sumCounterVec adds every label combination of a CounterVec.
func sumCounterVec(cv *prometheus.CounterVec) float64 {
	ch := make(chan prometheus.Metric, 16)
	go func() {
		cv.Collect(ch)
		close(ch)
	}()

	total := float64(0)
	for metric := range ch {
		m := &dto.Metric{}
		if err := metric.Write(m); err != nil {
			continue
		}
		if m.Counter != nil && m.Counter.Value != nil {
			total += *m.Counter.Value
		}
	}
	return total
}

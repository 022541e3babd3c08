package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/nexabudget/nexabudget-go/internal/domain"
)

// Metrics holds all Prometheus metrics for the backend.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	syncRuns        *prometheus.CounterVec
	entriesImported prometheus.Counter
	classifications *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nexabudget_request_duration_seconds",
				Help:    "Duration of operations by name.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexabudget_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexabudget_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexabudget_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		syncRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexabudget_sync_runs_total",
				Help: "Total bank sync runs by outcome.",
			},
			[]string{"outcome"},
		),
		entriesImported: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "nexabudget_entries_imported_total",
				Help: "Total ledger entries created from the provider feed.",
			},
		),
		classifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexabudget_classifications_total",
				Help: "Total categorization attempts by resolution source.",
			},
			[]string{"source"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrSyncRun increments the sync run counter with an outcome label
// (completed, failed, skipped).
func (m *Metrics) IncrSyncRun(outcome string) {
	m.syncRuns.WithLabelValues(outcome).Inc()
}

// AddEntriesImported adds to the imported entries counter.
func (m *Metrics) AddEntriesImported(n int) {
	m.entriesImported.Add(float64(n))
}

// IncrClassification increments the classification counter with a source
// label (cache, model, none).
func (m *Metrics) IncrClassification(source string) {
	m.classifications.WithLabelValues(source).Inc()
}

// GetSyncSnapshot returns a snapshot of sync-related metrics suitable for
// the GET /v1/metrics/sync endpoint.
func (m *Metrics) GetSyncSnapshot() *domain.SyncMetrics {
	completed := getCounterValue(m.syncRuns, "completed")
	failed := getCounterValue(m.syncRuns, "failed")
	skipped := getCounterValue(m.syncRuns, "skipped")
	imported := getCounterValueSingle(m.entriesImported)

	hits := getCounterValue(m.cacheHits, "semantic")
	misses := getCounterValue(m.cacheMisses, "semantic")
	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	resolved := getCounterValue(m.classifications, "cache") + getCounterValue(m.classifications, "model")
	none := getCounterValue(m.classifications, "none")
	failureRate := float64(0)
	if resolved+none > 0 {
		failureRate = none / (resolved + none)
	}

	return &domain.SyncMetrics{
		RunsCompleted:     int64(completed),
		RunsFailed:        int64(failed),
		RunsSkipped:       int64(skipped),
		EntriesImported:   int64(imported),
		SemanticHitRate:   hitRate,
		ClassifierFailure: failureRate,
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

func getCounterValueSingle(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

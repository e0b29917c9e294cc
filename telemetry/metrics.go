// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	UpstreamCalls     prometheus.Counter
	UpstreamErrors    prometheus.Counter
	CacheHits         prometheus.Counter
	CacheMisses       prometheus.Counter
	QuotaRefusals     prometheus.Counter
	SnapshotsRecorded prometheus.Counter
	AggregationCycles prometheus.Counter
	StaleResponses    prometheus.Counter

	// Histograms (seconds)
	FetchDuration prometheus.Observer

	// Gauges
	QuotaRemainingGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		UpstreamCalls = promauto.NewCounter(prometheus.CounterOpts{Name: "stats_upstream_calls_total", Help: "Number of upstream API calls issued"})
		UpstreamErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "stats_upstream_errors_total", Help: "Number of upstream API calls that failed"})
		CacheHits = promauto.NewCounter(prometheus.CounterOpts{Name: "stats_cache_hits_total", Help: "Number of cache hits"})
		CacheMisses = promauto.NewCounter(prometheus.CounterOpts{Name: "stats_cache_misses_total", Help: "Number of cache misses"})
		QuotaRefusals = promauto.NewCounter(prometheus.CounterOpts{Name: "stats_quota_refusals_total", Help: "Number of upstream calls refused by the quota tracker"})
		SnapshotsRecorded = promauto.NewCounter(prometheus.CounterOpts{Name: "stats_snapshots_recorded_total", Help: "Number of snapshots written to the store"})
		AggregationCycles = promauto.NewCounter(prometheus.CounterOpts{Name: "stats_aggregation_cycles_total", Help: "Number of aggregation job cycles"})
		StaleResponses = promauto.NewCounter(prometheus.CounterOpts{Name: "stats_stale_responses_total", Help: "Number of responses served from stale data"})
		FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "stats_upstream_fetch_duration_seconds", Help: "Upstream fetch duration seconds", Buckets: prometheus.DefBuckets})
		QuotaRemainingGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "stats_quota_remaining", Help: "Remaining upstream call budget in the current window"})
	})
}

// SetQuotaRemaining records the remaining upstream budget.
func SetQuotaRemaining(n int) {
	if QuotaRemainingGauge != nil {
		QuotaRemainingGauge.Set(float64(n))
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}

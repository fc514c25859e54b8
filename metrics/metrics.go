// Package metrics exposes prometheus collectors for index build and query
// stages. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors of one index.
type Metrics struct {
	// BuildDuration observes whole-index build time
	BuildDuration prometheus.Histogram
	// TablesBuilt counts hash tables built successfully
	TablesBuilt prometheus.Counter
	// BuildFailures counts failed hash table builds
	BuildFailures prometheus.Counter
	// TableBuckets observes the number of non-empty buckets per table
	TableBuckets prometheus.Histogram
	// QueryDuration observes the duration of one query batch
	QueryDuration prometheus.Histogram
	// QueryCandidates observes the merged candidate set size per query
	QueryCandidates prometheus.Histogram
	// TableMisses counts (query, table) lookups that found no bucket
	TableMisses prometheus.Counter
}

// New registers the collectors on reg. A nil reg falls back to the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		BuildDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "lsh_build_duration_seconds",
			Help:    "Time spent building all hash tables of an index",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		TablesBuilt: f.NewCounter(prometheus.CounterOpts{
			Name: "lsh_tables_built_total",
			Help: "Total number of hash tables built",
		}),
		BuildFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "lsh_table_build_failures_total",
			Help: "Total number of hash table builds that failed",
		}),
		TableBuckets: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "lsh_table_buckets",
			Help:    "Number of non-empty buckets per hash table",
			Buckets: prometheus.ExponentialBuckets(1, 4, 12),
		}),
		QueryDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "lsh_query_duration_seconds",
			Help:    "Time spent answering one query batch",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		}),
		QueryCandidates: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "lsh_query_candidates",
			Help:    "Deduplicated candidate set size per query",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),
		TableMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "lsh_table_misses_total",
			Help: "Total number of per-table lookups that matched no bucket",
		}),
	}
}

// ObserveBuild records a finished index build.
func (m *Metrics) ObserveBuild(start time.Time, err error) {
	if m == nil || err != nil {
		return
	}
	m.BuildDuration.Observe(time.Since(start).Seconds())
}

// ObserveTable records the outcome of one table build.
func (m *Metrics) ObserveTable(buckets int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.BuildFailures.Inc()
		return
	}
	m.TablesBuilt.Inc()
	m.TableBuckets.Observe(float64(buckets))
}

// ObserveQuery records a finished query batch and its candidate set sizes.
func (m *Metrics) ObserveQuery(start time.Time, candidates []uint32, misses int) {
	if m == nil {
		return
	}
	m.QueryDuration.Observe(time.Since(start).Seconds())
	for _, c := range candidates {
		m.QueryCandidates.Observe(float64(c))
	}
	m.TableMisses.Add(float64(misses))
}

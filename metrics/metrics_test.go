package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveTable(12, nil)
	m.ObserveTable(3, nil)
	m.ObserveTable(0, assert.AnError)
	m.ObserveBuild(time.Now(), nil)
	m.ObserveQuery(time.Now(), []uint32{1, 5, 0}, 4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TablesBuilt))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BuildFailures))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.TableMisses))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, name := range []string{
		"lsh_build_duration_seconds",
		"lsh_tables_built_total",
		"lsh_table_buckets",
		"lsh_query_duration_seconds",
		"lsh_query_candidates",
		"lsh_table_misses_total",
	} {
		assert.True(t, names[name], name)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveTable(1, nil)
		m.ObserveBuild(time.Now(), nil)
		m.ObserveQuery(time.Now(), []uint32{1}, 1)
	})
}

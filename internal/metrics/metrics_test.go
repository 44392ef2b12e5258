package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersEveryCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	require.NotNil(t, m)

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	require.Contains(t, names, "viewd_view_calls_total")
	require.Contains(t, names, "viewd_view_call_duration_seconds")
	require.Contains(t, names, "viewd_module_cache_hits_total")
	require.Contains(t, names, "viewd_module_cache_misses_total")
	require.Contains(t, names, "viewd_worker_replacements_total")
	require.Contains(t, names, "viewd_pool_idle_workers")
}

func TestNewPanicsOnDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	require.Panics(t, func() { New(reg) })
}

func TestOutcomeLabelsDriveCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ViewCallsTotal.WithLabelValues(OutcomeSuccess).Inc()
	m.ViewCallsTotal.WithLabelValues(OutcomePanic).Inc()
	m.ViewCallsTotal.WithLabelValues(OutcomePanic).Inc()

	require.Equal(t, float64(1), testutil.ToFloat64(m.ViewCallsTotal.WithLabelValues(OutcomeSuccess)))
	require.Equal(t, float64(2), testutil.ToFloat64(m.ViewCallsTotal.WithLabelValues(OutcomePanic)))
}

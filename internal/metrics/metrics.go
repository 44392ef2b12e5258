// Package metrics exposes the prometheus collectors the coordinator
// updates after each view call, covering its own outcomes as well as
// module cache hits/misses and worker pool state. It does not serve its
// own HTTP endpoint; cmd/viewd wires the registry into whatever server the
// deployment already runs.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups every collector this service registers.
type Metrics struct {
	ViewCallsTotal    *prometheus.CounterVec
	ViewCallDuration  *prometheus.HistogramVec
	CacheHitsTotal    prometheus.Counter
	CacheMissesTotal  prometheus.Counter
	WorkerReplacements prometheus.Counter
	PoolIdleWorkers   prometheus.Gauge
}

// New constructs and registers every collector against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ViewCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "viewd",
			Name:      "view_calls_total",
			Help:      "Total view calls, labeled by outcome.",
		}, []string{"outcome"}),
		ViewCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "viewd",
			Name:      "view_call_duration_seconds",
			Help:      "View call latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		CacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "viewd",
			Name:      "module_cache_hits_total",
			Help:      "Compiled module cache hits.",
		}),
		CacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "viewd",
			Name:      "module_cache_misses_total",
			Help:      "Compiled module cache misses (compiles triggered).",
		}),
		WorkerReplacements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "viewd",
			Name:      "worker_replacements_total",
			Help:      "Workers destroyed and replaced after a fatal execution fault.",
		}),
		PoolIdleWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "viewd",
			Name:      "pool_idle_workers",
			Help:      "Workers currently idle in the pool.",
		}),
	}

	reg.MustRegister(
		m.ViewCallsTotal,
		m.ViewCallDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.WorkerReplacements,
		m.PoolIdleWorkers,
	)

	// Create every outcome series up front so both vecs are exported (at
	// zero) before the first view call completes.
	for _, outcome := range []string{
		OutcomeSuccess, OutcomeCodeNotFound, OutcomeCodeCompilation, OutcomeMethodNotFound, OutcomePanic,
		OutcomeAbort, OutcomeNotImplemented, OutcomeTimeout, OutcomeTransient, OutcomeUnknown,
	} {
		m.ViewCallsTotal.WithLabelValues(outcome)
		m.ViewCallDuration.WithLabelValues(outcome)
	}

	return m
}

// Outcome labels used with ViewCallsTotal/ViewCallDuration.
const (
	OutcomeSuccess          = "success"
	OutcomeCodeNotFound     = "code_not_found"
	OutcomeCodeCompilation  = "code_compilation"
	OutcomeMethodNotFound   = "method_not_found"
	OutcomePanic            = "panic"
	OutcomeAbort            = "abort"
	OutcomeNotImplemented   = "not_implemented"
	OutcomeTimeout          = "timeout"
	OutcomeTransient        = "transient"
	OutcomeUnknown          = "unknown"
)

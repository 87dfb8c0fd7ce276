// Package metrics exposes prometheus instruments for the aggregation engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engine groups the engine's instruments. A nil *Engine records nothing.
type Engine struct {
	statements   *prometheus.CounterVec
	lookups      *prometheus.CounterVec
	decisions    *prometheus.CounterVec
	probes       *prometheus.CounterVec
	loadDuration prometheus.Histogram
	reloads      prometheus.Counter
}

// New registers the engine instruments with reg.
func New(reg prometheus.Registerer) *Engine {
	f := promauto.With(reg)
	return &Engine{
		statements: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aggnav_sql_statements_total",
			Help: "SQL statements issued, by purpose.",
		}, []string{"kind"}),
		lookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aggnav_segment_cache_lookups_total",
			Help: "Segment cache lookups, by result.",
		}, []string{"result"}),
		decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aggnav_navigator_decisions_total",
			Help: "Navigator decisions, by source kind.",
		}, []string{"source"}),
		probes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aggnav_cardinality_lookups_total",
			Help: "Cardinality and row count lookups, by result.",
		}, []string{"result"}),
		loadDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "aggnav_batch_load_duration_seconds",
			Help:    "Time spent loading one batch.",
			Buckets: prometheus.DefBuckets,
		}),
		reloads: f.NewCounter(prometheus.CounterOpts{
			Name: "aggnav_schema_reloads_total",
			Help: "Schema generations installed.",
		}),
	}
}

// Statement counts an issued SQL statement of kind (segment, tuples, cardinality, rowcount).
func (e *Engine) Statement(kind string) {
	if e == nil {
		return
	}
	e.statements.WithLabelValues(kind).Inc()
}

// Lookup counts a segment cache lookup: hit, null, or miss.
func (e *Engine) Lookup(result string) {
	if e == nil {
		return
	}
	e.lookups.WithLabelValues(result).Inc()
}

// Decision counts a navigator decision: aggregate, fact, or dimension.
func (e *Engine) Decision(source string) {
	if e == nil {
		return
	}
	e.decisions.WithLabelValues(source).Inc()
}

// Probe counts a cardinality lookup: hit or probe.
func (e *Engine) Probe(result string) {
	if e == nil {
		return
	}
	e.probes.WithLabelValues(result).Inc()
}

// ObserveLoad records how long a batch load took.
func (e *Engine) ObserveLoad(d time.Duration) {
	if e == nil {
		return
	}
	e.loadDuration.Observe(d.Seconds())
}

// Reload counts a schema reload.
func (e *Engine) Reload() {
	if e == nil {
		return
	}
	e.reloads.Inc()
}

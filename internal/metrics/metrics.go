// Package metrics exposes Prometheus collectors for store activity.
//
// A nil *Collector is valid and records nothing, so components take an
// optional collector without guarding every call site.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ormlite"

// Collector groups the counters recorded by the store, identity cache and
// schema manager.
type Collector struct {
	Statements      *prometheus.CounterVec
	StatementErrors *prometheus.CounterVec
	Retries         prometheus.Counter
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	Migrations      *prometheus.CounterVec
}

// New creates a collector and registers it with reg. A nil reg leaves the
// collectors unregistered, which is what tests usually want.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		Statements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "statements_total",
			Help:      "SQL statements executed, by kind.",
		}, []string{"kind"}),
		StatementErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "statement_errors_total",
			Help:      "Failed SQL statements, by error code.",
		}, []string{"code"}),
		Retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Statement retries after transient failures.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "identity_cache",
			Name:      "hits_total",
			Help:      "Identity cache lookups that found a live instance.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "identity_cache",
			Name:      "misses_total",
			Help:      "Identity cache lookups that found nothing.",
		}),
		Migrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "schema",
			Name:      "operations_total",
			Help:      "Schema operations applied, by operation.",
		}, []string{"op"}),
	}
	if reg != nil {
		reg.MustRegister(
			c.Statements,
			c.StatementErrors,
			c.Retries,
			c.CacheHits,
			c.CacheMisses,
			c.Migrations,
		)
	}
	return c
}

// Statement counts one executed statement of the given kind
// ("exec", "query").
func (c *Collector) Statement(kind string) {
	if c == nil {
		return
	}
	c.Statements.WithLabelValues(kind).Inc()
}

// StatementError counts one failed statement.
func (c *Collector) StatementError(code string) {
	if c == nil {
		return
	}
	c.StatementErrors.WithLabelValues(code).Inc()
}

// Retry counts one retry attempt.
func (c *Collector) Retry() {
	if c == nil {
		return
	}
	c.Retries.Inc()
}

// CacheLookup counts an identity cache hit or miss.
func (c *Collector) CacheLookup(hit bool) {
	if c == nil {
		return
	}
	if hit {
		c.CacheHits.Inc()
		return
	}
	c.CacheMisses.Inc()
}

// Migration counts one schema operation ("create", "add_column",
// "drop_columns").
func (c *Collector) Migration(op string) {
	if c == nil {
		return
	}
	c.Migrations.WithLabelValues(op).Inc()
}

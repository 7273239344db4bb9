// Package metrics exposes Prometheus counters for pager and table activity.
//
// A nil *Metrics is valid and records nothing, so components can take one
// unconditionally.
package metrics

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "rowstore"

// Metrics holds the collectors registered on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	PageLoads     prometheus.Counter
	PageAllocs    prometheus.Counter
	CacheHits     prometheus.Counter
	PageFlushes   prometheus.Counter
	ResidentPages prometheus.Gauge
	RowsInserted  prometheus.Counter
	TableFull     prometheus.Counter
}

// New creates a Metrics backed by a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		PageLoads: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pager",
			Name:      "page_loads_total",
			Help:      "Pages read from the table file on first access.",
		}),
		PageAllocs: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pager",
			Name:      "page_allocs_total",
			Help:      "Zero-filled pages created beyond the persisted range.",
		}),
		CacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pager",
			Name:      "cache_hits_total",
			Help:      "Page requests served from a resident buffer.",
		}),
		PageFlushes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pager",
			Name:      "page_flushes_total",
			Help:      "Pages written back to the table file.",
		}),
		ResidentPages: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pager",
			Name:      "resident_pages",
			Help:      "Pages currently held in memory.",
		}),
		RowsInserted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "table",
			Name:      "rows_inserted_total",
			Help:      "Rows successfully inserted.",
		}),
		TableFull: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "table",
			Name:      "table_full_total",
			Help:      "Inserts rejected because the root leaf is full.",
		}),
	}
}

// Registry returns the registry for exposition. It must not be called on
// a nil Metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObservePageLoad counts a page read from the file.
func (m *Metrics) ObservePageLoad() {
	if m != nil {
		m.PageLoads.Inc()
	}
}

// ObservePageAlloc counts a page allocated past the end of the file.
func (m *Metrics) ObservePageAlloc() {
	if m != nil {
		m.PageAllocs.Inc()
	}
}

// ObserveCacheHit counts a page served from memory.
func (m *Metrics) ObserveCacheHit() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

// ObserveFlush counts a page written back to the file.
func (m *Metrics) ObserveFlush() {
	if m != nil {
		m.PageFlushes.Inc()
	}
}

// SetResidentPages records how many pages are held in memory.
func (m *Metrics) SetResidentPages(n int) {
	if m != nil {
		m.ResidentPages.Set(float64(n))
	}
}

// ObserveInsert counts a stored row.
func (m *Metrics) ObserveInsert() {
	if m != nil {
		m.RowsInserted.Inc()
	}
}

// ObserveTableFull counts an insert rejected because the table is full.
func (m *Metrics) ObserveTableFull() {
	if m != nil {
		m.TableFull.Inc()
	}
}

// WriteText prints every collected value as "name: value", one per line.
func (m *Metrics) WriteText(w io.Writer) error {
	if m == nil {
		_, err := fmt.Fprintln(w, "metrics disabled")
		return err
	}

	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			var value float64
			switch {
			case metric.GetCounter() != nil:
				value = metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				value = metric.GetGauge().GetValue()
			default:
				continue
			}
			if _, err := fmt.Fprintf(w, "%s: %g\n", mf.GetName(), value); err != nil {
				return err
			}
		}
	}
	return nil
}

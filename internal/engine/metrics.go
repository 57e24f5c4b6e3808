package engine

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "prm"

type counterMetric struct {
	desc  *prometheus.Desc
	value func(Stats) int64
}

// Collector exports engine counters as Prometheus metrics labelled by
// engine name. Engines may be added while the collector is registered;
// names must be unique within one collector.
type Collector struct {
	mu       sync.Mutex
	engines  []*Engine
	counters []counterMetric
	live     *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a collector over engines.
func NewCollector(engines ...*Engine) *Collector {
	label := []string{"property"}
	counter := func(name, help string, value func(Stats) int64) counterMetric {
		return counterMetric{
			desc:  prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "", name), help, label, nil),
			value: value,
		}
	}
	return &Collector{
		engines: append([]*Engine(nil), engines...),
		counters: []counterMetric{
			counter("events_total", "Events processed.",
				func(s Stats) int64 { return s.Events }),
			counter("nodes_created_total", "Binding-tuple nodes created.",
				func(s Stats) int64 { return s.CreatedNodes }),
			counter("monitors_created_total", "Monitors created by creation events.",
				func(s Stats) int64 { return s.CreatedMonitors }),
			counter("monitors_derived_total", "Monitors derived from less informative monitors.",
				func(s Stats) int64 { return s.DerivedMonitors }),
			counter("monitors_updated_total", "Monitor transitions taken on events.",
				func(s Stats) int64 { return s.UpdatedMonitors }),
			counter("monitors_terminated_total", "Monitors terminated by a missing transition, a final state or a failed alive check.",
				func(s Stats) int64 { return s.TerminatedMonitors }),
			counter("monitors_orphaned_total", "Live monitors found under released bindings.",
				func(s Stats) int64 { return s.OrphanedMonitors }),
			counter("monitors_collected_total", "Orphaned monitors terminated because they can no longer match.",
				func(s Stats) int64 { return s.CollectedMonitors }),
			counter("bindings_collected_total", "Bindings released after their objects became unreachable.",
				func(s Stats) int64 { return s.CollectedBindings }),
			counter("matches_total", "Monitors that entered an accepting state.",
				func(s Stats) int64 { return s.Matches }),
		},
		live: prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "", "bindings_live"),
			"Bindings currently in the binding store.", label, nil),
	}
}

// Add starts exporting e.
func (c *Collector) Add(e *Engine) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.engines = append(c.engines, e)
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.counters {
		ch <- m.desc
	}
	ch <- c.live
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	engines := append([]*Engine(nil), c.engines...)
	c.mu.Unlock()

	for _, e := range engines {
		s := e.Stats()
		for _, m := range c.counters {
			ch <- prometheus.MustNewConstMetric(m.desc, prometheus.CounterValue, float64(m.value(s)), e.Name())
		}
		ch <- prometheus.MustNewConstMetric(c.live, prometheus.GaugeValue, float64(e.BindingCount()), e.Name())
	}
}

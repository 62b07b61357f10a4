// Package metrics provides a small metrics collector rendering Prometheus
// text exposition format, without pulling in prometheus/client_golang.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Collector is the process-wide collector.
var Collector = NewCollector()

// MetricsCollector aggregates counters, gauges, and histograms.
type MetricsCollector struct {
	mu         sync.Mutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
	startTime  time.Time
}

// NewCollector creates an empty collector.
func NewCollector() *MetricsCollector {
	return &MetricsCollector{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
		startTime:  time.Now(),
	}
}

// Counter is a monotonically increasing counter.
type Counter struct {
	name  string
	help  string
	value atomic.Int64
}

func (c *Counter) Inc()         { c.value.Add(1) }
func (c *Counter) Add(n int64)  { c.value.Add(n) }
func (c *Counter) Value() int64 { return c.value.Load() }

// Gauge is a value that can go up and down.
type Gauge struct {
	name  string
	help  string
	value atomic.Int64
}

func (g *Gauge) Inc()         { g.value.Add(1) }
func (g *Gauge) Dec()         { g.value.Add(-1) }
func (g *Gauge) Set(v int64)  { g.value.Store(v) }
func (g *Gauge) Value() int64 { return g.value.Load() }

// Histogram tracks the distribution of observed values.
type Histogram struct {
	name    string
	help    string
	mu      sync.Mutex
	count   int64
	sum     float64
	bounds  []float64
	buckets []int64
}

// Observe records a value.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i, le := range h.bounds {
		if v <= le {
			h.buckets[i]++
		}
	}
}

// Counter returns or registers a counter with the given name.
func (c *MetricsCollector) Counter(name, help string) *Counter {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctr, ok := c.counters[name]; ok {
		return ctr
	}
	ctr := &Counter{name: name, help: help}
	c.counters[name] = ctr
	return ctr
}

// Gauge returns or registers a gauge with the given name.
func (c *MetricsCollector) Gauge(name, help string) *Gauge {
	c.mu.Lock()
	defer c.mu.Unlock()
	if g, ok := c.gauges[name]; ok {
		return g
	}
	g := &Gauge{name: name, help: help}
	c.gauges[name] = g
	return g
}

// Histogram returns or registers a histogram with the given bucket bounds.
func (c *MetricsCollector) Histogram(name, help string, bounds []float64) *Histogram {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := c.histograms[name]; ok {
		return h
	}
	sort.Float64s(bounds)
	h := &Histogram{name: name, help: help, bounds: bounds, buckets: make([]int64, len(bounds))}
	c.histograms[name] = h
	return h
}

// Handler renders all registered metrics in Prometheus text format.
func (c *MetricsCollector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		var sb strings.Builder
		fmt.Fprintf(&sb, "# HELP askbridge_uptime_seconds Time since process start in seconds\n")
		fmt.Fprintf(&sb, "# TYPE askbridge_uptime_seconds gauge\n")
		fmt.Fprintf(&sb, "askbridge_uptime_seconds %d\n", int64(time.Since(c.startTime).Seconds()))

		c.mu.Lock()
		defer c.mu.Unlock()
		counters := sortedKeys(c.counters)
		gauges := sortedKeys(c.gauges)
		histograms := sortedKeys(c.histograms)

		for _, name := range counters {
			ctr := c.counters[name]
			fmt.Fprintf(&sb, "# HELP %s %s\n# TYPE %s counter\n%s %d\n", name, ctr.help, name, name, ctr.Value())
		}
		for _, name := range gauges {
			g := c.gauges[name]
			fmt.Fprintf(&sb, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n", name, g.help, name, name, g.Value())
		}
		for _, name := range histograms {
			h := c.histograms[name]
			h.mu.Lock()
			fmt.Fprintf(&sb, "# HELP %s %s\n# TYPE %s histogram\n", name, h.help, name)
			for i, le := range h.bounds {
				fmt.Fprintf(&sb, "%s_bucket{le=\"%g\"} %d\n", name, le, h.buckets[i])
			}
			fmt.Fprintf(&sb, "%s_bucket{le=\"+Inf\"} %d\n", name, h.count)
			fmt.Fprintf(&sb, "%s_count %d\n", name, h.count)
			fmt.Fprintf(&sb, "%s_sum %f\n", name, h.sum)
			h.mu.Unlock()
		}

		fmt.Fprint(w, sb.String())
	}
}

func sortedKeys[M map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Metrics used across the application.
var (
	AsksTotal           = Collector.Counter("askbridge_asks_total", "Total ask calls issued")
	AskRetriesTotal     = Collector.Counter("askbridge_ask_retries_total", "Total transient-error retries")
	AskFailuresTotal    = Collector.Counter("askbridge_ask_failures_total", "Total ask calls that ended in failure")
	StreamEventsTotal   = Collector.Counter("askbridge_stream_events_total", "Total stream events received")
	ContinuityFastPath  = Collector.Counter("askbridge_continuity_store_hits_total", "Continuation tokens resolved from the store")
	ContinuityFallback  = Collector.Counter("askbridge_continuity_marker_hits_total", "Continuation tokens recovered from legacy text markers")
	GateSuppressed      = Collector.Counter("askbridge_gate_suppressed_total", "Messages suppressed by the quality gate")
	AttachmentsDropped  = Collector.Counter("askbridge_attachments_dropped_total", "Attachments dropped (oversized or failed download)")
	InFlightAsks        = Collector.Gauge("askbridge_asks_in_flight", "Ask calls currently in flight")

	AskLatency = Collector.Histogram("askbridge_ask_latency_seconds", "End-to-end ask latency in seconds",
		[]float64{1, 5, 15, 30, 60, 120, 300, 600})
)

// Package metrics provides simple Prometheus-exposition-format metrics
// for a caqtigo resource pool: occupancy gauges, set from a pool's Stats()
// snapshot by Observe rather than pushed on every state transition, and
// counters for acquisition outcomes and health-check failures. The pool
// package does not increment these counters itself.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Counter is a monotonically increasing counter.
type Counter struct {
	value uint64
	name  string
	help  string
}

// NewCounter creates and registers a new counter.
func NewCounter(name, help string) *Counter {
	c := &Counter{name: name, help: help}
	defaultRegistry.register(c)
	return c
}

// Inc increments the counter by 1.
func (c *Counter) Inc() { atomic.AddUint64(&c.value, 1) }

// Add adds v to the counter.
func (c *Counter) Add(v uint64) { atomic.AddUint64(&c.value, v) }

// Value returns the counter's current value.
func (c *Counter) Value() uint64 { return atomic.LoadUint64(&c.value) }

func (c *Counter) prometheus() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# HELP %s %s\n", c.name, c.help))
	sb.WriteString(fmt.Sprintf("# TYPE %s counter\n", c.name))
	sb.WriteString(fmt.Sprintf("%s %d\n", c.name, c.Value()))
	return sb.String()
}

// Gauge is a metric that can move up and down.
type Gauge struct {
	value int64
	name  string
	help  string
}

// NewGauge creates and registers a new gauge.
func NewGauge(name, help string) *Gauge {
	g := &Gauge{name: name, help: help}
	defaultRegistry.register(g)
	return g
}

// Set sets the gauge to v.
func (g *Gauge) Set(v int64) { atomic.StoreInt64(&g.value, v) }

// Value returns the gauge's current value.
func (g *Gauge) Value() int64 { return atomic.LoadInt64(&g.value) }

func (g *Gauge) prometheus() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# HELP %s %s\n", g.name, g.help))
	sb.WriteString(fmt.Sprintf("# TYPE %s gauge\n", g.name))
	sb.WriteString(fmt.Sprintf("%s %d\n", g.name, g.Value()))
	return sb.String()
}

type metric interface{ prometheus() string }

// Registry holds a set of named metrics and exposes them in Prometheus
// exposition format.
type Registry struct {
	mu      sync.RWMutex
	metrics map[string]metric
}

var defaultRegistry = &Registry{metrics: make(map[string]metric)}

func (r *Registry) register(m metric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch v := m.(type) {
	case *Counter:
		r.metrics[v.name] = m
	case *Gauge:
		r.metrics[v.name] = m
	}
}

// Expose renders every registered metric in Prometheus exposition format.
func (r *Registry) Expose() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.metrics))
	for name := range r.metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		sb.WriteString(r.metrics[name].prometheus())
		sb.WriteString("\n")
	}
	return sb.String()
}

// Handler returns an http.Handler exposing the default registry.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.Write([]byte(defaultRegistry.Expose()))
	})
}

// Default pool metrics. They are process-wide: every pool observed through
// Observe writes to these same instances.
var (
	AcquireTotal     = NewCounter("caqtigo_pool_acquire_total", "Total Use/Acquire calls started")
	AcquireFailed    = NewCounter("caqtigo_pool_acquire_failed_total", "Acquire calls that returned a factory or context error")
	ReleaseTotal     = NewCounter("caqtigo_pool_release_total", "Total resources released back to the pool")
	ResourcesCreated = NewCounter("caqtigo_pool_resources_created_total", "Total resources successfully created by the factory")
	ResourcesDestroyed = NewCounter("caqtigo_pool_resources_destroyed_total", "Total resources destroyed (idle cap, use limit, health check, or drain)")
	HealthCheckFails = NewCounter("caqtigo_pool_healthcheck_failed_total", "Total health checks that returned false")

	PoolSize    = NewGauge("caqtigo_pool_size", "Current accounted pool size (idle + in-use + creating)")
	PoolIdle    = NewGauge("caqtigo_pool_idle", "Current idle entry count")
	PoolWaiting = NewGauge("caqtigo_pool_waiting", "Current waiter queue length")
)

// Stats is the subset of pool.Stats this package needs, expressed
// structurally so metrics doesn't have to import the generic pool
// package just to observe three integers.
type Stats struct {
	Size    int
	Idle    int
	Waiting int
}

// Observe updates the gauges from a pool snapshot. Call it on a timer or
// after every Release to keep /metrics current.
func Observe(s Stats) {
	PoolSize.Set(int64(s.Size))
	PoolIdle.Set(int64(s.Idle))
	PoolWaiting.Set(int64(s.Waiting))
}

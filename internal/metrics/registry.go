// Package metrics provides unified way of emitting metrics inside the library.
package metrics

import (
	"sort"
	"sync"
)

const prometheusPrefix = "memstream_"

// Registry groups together all metrics emitted by the library and allows
// in-process snapshots in addition to prometheus export.
type Registry struct {
	mu sync.Mutex

	// +checklocks:mu
	allCounters map[string]*CounterInt64
	// +checklocks:mu
	allGauges map[string]*GaugeInt64
}

// NewRegistry returns new metrics registry.
func NewRegistry() *Registry {
	return &Registry{
		allCounters: map[string]*CounterInt64{},
		allGauges:   map[string]*GaugeInt64{},
	}
}

// CounterInt64 gets a persistent int64 counter with the provided name.
func (r *Registry) CounterInt64(name, help string, labels map[string]string) *CounterInt64 {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	fullName := name + labelsSuffix(labels)

	if c, ok := r.allCounters[fullName]; ok {
		return c
	}

	c := &CounterInt64{
		prom: getPrometheusCounter(name, help, labels),
	}

	r.allCounters[fullName] = c

	return c
}

// GaugeInt64 gets a persistent int64 gauge with the provided name.
func (r *Registry) GaugeInt64(name, help string, labels map[string]string) *GaugeInt64 {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	fullName := name + labelsSuffix(labels)

	if g, ok := r.allGauges[fullName]; ok {
		return g
	}

	g := &GaugeInt64{
		prom: getPrometheusGauge(name, help, labels),
	}

	r.allGauges[fullName] = g

	return g
}

// Snapshot returns the current values of all counters and gauges by name.
func (r *Registry) Snapshot() map[string]int64 {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	res := map[string]int64{}

	for n, c := range r.allCounters {
		res[n] = c.Snapshot()
	}

	for n, g := range r.allGauges {
		res[n] = g.Snapshot(false)
	}

	return res
}

func labelsSuffix(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	s := ""
	for _, k := range keys {
		s += "[" + k + ":" + labels[k] + "]"
	}

	return s
}

package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// GaugeInt64 is an int64 gauge. Nil receiver is supported and is a no-op.
type GaugeInt64 struct {
	value atomic.Int64

	prom prometheus.Gauge
}

// Set sets the gauge to the provided value.
func (g *GaugeInt64) Set(v int64) {
	if g == nil {
		return
	}

	g.value.Store(v)

	if g.prom != nil {
		g.prom.Set(float64(v))
	}
}

// Add adds the provided (possibly negative) value to the gauge.
func (g *GaugeInt64) Add(v int64) {
	if g == nil {
		return
	}

	g.value.Add(v)

	if g.prom != nil {
		g.prom.Add(float64(v))
	}
}

// Snapshot returns the current value of the gauge, optionally resetting it to
// zero.
func (g *GaugeInt64) Snapshot(reset bool) int64 {
	if g == nil {
		return 0
	}

	if reset {
		v := g.value.Swap(0)

		if g.prom != nil {
			g.prom.Set(0)
		}

		return v
	}

	return g.value.Load()
}

package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// CounterInt64 is a monotonically increasing int64 counter. Nil receiver is
// supported and is a no-op.
type CounterInt64 struct {
	value atomic.Int64

	prom prometheus.Counter
}

// Add adds the provided value to the counter.
func (c *CounterInt64) Add(v int64) {
	if c == nil {
		return
	}

	c.value.Add(v)

	if c.prom != nil {
		c.prom.Add(float64(v))
	}
}

// Snapshot returns the current value of the counter.
func (c *CounterInt64) Snapshot() int64 {
	if c == nil {
		return 0
	}

	return c.value.Load()
}

package telemetry

import "sync/atomic"

// Counter counts successful extractions for one strategy.
type Counter struct {
	n atomic.Int64
}

// Inc adds one and returns the new value.
func (c *Counter) Inc() int64 {
	return c.n.Add(1)
}

// Get returns the current value.
func (c *Counter) Get() int64 {
	return c.n.Load()
}

// Reset sets the counter back to zero.
func (c *Counter) Reset() {
	c.n.Store(0)
}

// Package counter implements the small monotonic counters the peer FSM
// uses for per-message-type session statistics (spec §3 "Session
// statistics"), surfaced both by the API transport's `show neighbor`
// output and by the Prometheus metrics in package metrics. The reactor is
// the sole goroutine that ever touches a Counter, so no atomics are
// needed here — the single-threaded invariant in spec §5 covers it.
package counter

import "fmt"

// Counter is a 64-bit monotonic counter.
type Counter struct {
	count uint64
}

// New creates a new zeroed counter.
func New() *Counter {
	return new(Counter)
}

// Reset zeroes the counter, used when a session re-establishes and its
// per-session statistics (distinct from lifetime process statistics)
// start over.
func (c *Counter) Reset() {
	c.count = 0
}

// Increment adds one to the counter.
func (c *Counter) Increment() {
	c.count++
}

// Add adds n to the counter, used for byte counters where messages vary
// in size.
func (c *Counter) Add(n uint64) {
	c.count += n
}

// Value returns the current count.
func (c *Counter) Value() uint64 {
	return c.count
}

// String implements fmt.Stringer.
func (c *Counter) String() string {
	return fmt.Sprintf("%d", c.count)
}

package tree

import "sync/atomic"

// Counter is a monotonic counter used for instruction numbers and for
// phase-bookkeeping node IDs.
//
// Instruction numbers record creation order and serve as the stable
// tie-break when two instructions quantise to the same tick, so they must
// be strictly increasing and never reused within a shot.
//
// Thread-safety: Counter is safe for concurrent use (atomic operations),
// though the shot's single-writer design means only one goroutine
// typically calls Next().
type Counter struct {
	seq atomic.Int64
}

// NewCounter creates a counter starting at 0.
func NewCounter() *Counter {
	return &Counter{}
}

// Next returns the current value and increments the counter. The first
// call returns 0.
func (c *Counter) Next() int64 {
	return c.seq.Add(1) - 1
}

// Current returns the number of values handed out so far.
func (c *Counter) Current() int64 {
	return c.seq.Load()
}

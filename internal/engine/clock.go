package engine

import "sync/atomic"

// Clock is the engine's logical clock. Every processed event is stamped
// with a strictly increasing sequence number; nodes record the stamp of
// their last event and monitors the stamp of their creation, and disable
// checks compare the two.
//
// The first stamp is 1, so a node that never saw an event (stamp 0) or the
// null node (stamp -1) never disables anything.
//
// Clock is safe for concurrent use, which lets metrics read the position
// while the engine runs.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific sequence number.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// Reset rewinds the clock to 0.
func (c *Clock) Reset() {
	c.seq.Store(0)
}

package engine

import "sync/atomic"

// LogicalClock stamps passes with sequence numbers.
// Implemented by Clock and by the resettable test clock in testutil.
type LogicalClock interface {
	Next() int64
	Current() int64
}

// Clock is a monotonic logical clock stamping evaluation passes.
//
// Pass order is defined by seq, never by wall time. Safe for concurrent
// use, although only the Run goroutine normally calls Next.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that resumes after a recorded history.
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

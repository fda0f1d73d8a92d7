package engine

import (
	"sync/atomic"
	"time"
)

// Clock supplies wall-clock time to the simulator. Reversion and confirmation
// deadlines are compared against Now.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the host clock. Go's time.Now carries a monotonic reading,
// so deadline comparisons are immune to wall-clock steps.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time {
	return time.Now()
}

// SteppedClock is advanced explicitly by its owner. Batch runs use it to
// stamp ticks with simulated time instead of elapsed time.
//
// Thread-safety: not safe for concurrent use.
type SteppedClock struct {
	now time.Time
}

// NewSteppedClock creates a clock reading start.
func NewSteppedClock(start time.Time) *SteppedClock {
	return &SteppedClock{now: start}
}

// Now returns the current simulated time.
func (c *SteppedClock) Now() time.Time {
	return c.now
}

// Advance moves the clock forward by d and returns the new time.
func (c *SteppedClock) Advance(d time.Duration) time.Time {
	c.now = c.now.Add(d)
	return c.now
}

// Sequence is a monotonic counter used to number alerts and commands.
//
// Thread-safety: Sequence is safe for concurrent use (atomic operations).
// In practice only the simulator's owner calls Next.
type Sequence struct {
	seq atomic.Int64
}

// NewSequence creates a sequence starting at 0.
func NewSequence() *Sequence {
	return &Sequence{}
}

// NewSequenceAt creates a sequence whose next value is start+1.
func NewSequenceAt(start int64) *Sequence {
	s := &Sequence{}
	s.seq.Store(start)
	return s
}

// Next increments the sequence and returns the new value.
func (s *Sequence) Next() int64 {
	return s.seq.Add(1)
}

// Current returns the last value handed out without incrementing.
func (s *Sequence) Current() int64 {
	return s.seq.Load()
}

package engine

import "time"

// confirmGate implements the two-press ECCS activation. The first press arms
// the gate; a second press strictly before the deadline confirms. An expired
// gate disarms silently.
type confirmGate struct {
	window   time.Duration
	deadline time.Time
	armed    bool
}

func (g *confirmGate) expire(now time.Time) {
	if g.armed && !now.Before(g.deadline) {
		g.armed = false
		g.deadline = time.Time{}
	}
}

// press returns true when this press confirms a pending one.
func (g *confirmGate) press(now time.Time) bool {
	g.expire(now)
	if g.armed {
		g.armed = false
		g.deadline = time.Time{}
		return true
	}
	g.armed = true
	g.deadline = now.Add(g.window)
	return false
}

func (g *confirmGate) pending() bool {
	return g.armed
}

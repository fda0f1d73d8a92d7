package testutil

import "sync"

// ConstantRand always returns the same value from Float64.
//
// ConstantRand(0.5) removes every random term from the plant model: the grid
// demand walk stands still and the cosmetic noise is zero.
type ConstantRand float64

// Float64 returns r.
func (r ConstantRand) Float64() float64 {
	return float64(r)
}

// ScriptedRand replays a fixed sequence of values, wrapping around at the end.
// An empty script behaves like ConstantRand(0.5).
type ScriptedRand struct {
	mu     sync.Mutex
	values []float64
	idx    int
}

// NewScriptedRand creates a ScriptedRand over values.
func NewScriptedRand(values ...float64) *ScriptedRand {
	return &ScriptedRand{values: values}
}

// Float64 returns the next scripted value.
func (r *ScriptedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.values) == 0 {
		return 0.5
	}
	v := r.values[r.idx%len(r.values)]
	r.idx++
	return v
}

// Calls reports how many values have been drawn.
func (r *ScriptedRand) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.idx
}

package engine

import (
	"time"

	"github.com/tanudai/Nuclear-SCADA/internal/plant"
)

// HistorySample is a published state tagged with the tick that produced it.
type HistorySample struct {
	Tick  int64       `json:"tick"`
	At    time.Time   `json:"timestamp"`
	State plant.State `json:"state"`
}

// historyRing is a fixed-capacity ring of samples; the oldest is evicted on
// overflow.
type historyRing struct {
	buf   []HistorySample
	start int
	n     int
}

func newHistoryRing(capacity int) *historyRing {
	return &historyRing{buf: make([]HistorySample, capacity)}
}

func (r *historyRing) push(s HistorySample) {
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = s
		r.n++
		return
	}
	r.buf[r.start] = s
	r.start = (r.start + 1) % len(r.buf)
}

func (r *historyRing) len() int {
	return r.n
}

// samples returns a copy in tick order.
func (r *historyRing) samples() []HistorySample {
	out := make([]HistorySample, r.n)
	for i := 0; i < r.n; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

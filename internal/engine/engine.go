package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Engine is the single-writer simulation loop.
//
// CRITICAL: All mutations happen in the Run goroutine. Scheduled ticks and
// Submit-ed commands are processed one at a time in arrival order, so a
// command is always applied between two ticks.
//
// Thread-safety model:
//   - Submit(), Snapshot(), Subscribe(), Stop(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine, once
type Engine struct {
	sim       *Simulator
	logger    *slog.Logger
	period    time.Duration
	ticks     <-chan time.Time
	observers []Observer

	requests *queue[request]
	outbox   *queue[Report]
	snapshot atomic.Pointer[Snapshot]
	done     chan struct{}

	subsMu  sync.Mutex
	subs    map[int]chan *Snapshot
	nextSub int
	closed  bool
}

type request struct {
	cmd   Command
	reply chan Outcome
}

// New creates an Engine around a fresh Simulator. Options are shared with
// NewSimulator; WithObserver and WithTicks apply to the loop only.
func New(cfg Config, opts ...Option) *Engine {
	st := newSettings(cfg, opts)
	cfg = cfg.withDefaults()

	e := &Engine{
		sim:       newSimulator(cfg, st),
		logger:    st.logger,
		period:    cfg.TickPeriod,
		ticks:     st.ticks,
		observers: st.observers,
		requests:  newQueue[request](),
		outbox:    newQueue[Report](),
		done:      make(chan struct{}),
		subs:      make(map[int]chan *Snapshot),
	}
	e.snapshot.Store(e.sim.Snapshot())
	return e
}

// RunID identifies the run driven by this engine.
func (e *Engine) RunID() string {
	return e.sim.RunID()
}

// Run drives the simulation until ctx is cancelled or Stop is called.
//
// Pending commands are drained before each tick. On shutdown the in-flight
// step completes, queued reports are flushed to observers and subscriber
// channels are closed.
//
// ERROR HANDLING: observer failures are logged and processing continues
// ("log and continue"); Run only returns ctx.Err() or nil after Stop.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting",
		"run_id", e.sim.RunID(),
		"tick_period", e.period,
	)

	ticks := e.ticks
	if ticks == nil {
		ticker := time.NewTicker(e.period)
		defer ticker.Stop()
		ticks = ticker.C
	}

	flushed := make(chan struct{})
	go e.deliver(context.WithoutCancel(ctx), flushed)
	defer func() {
		e.requests.Close()
		e.outbox.Close()
		<-flushed
		e.closeSubscribers()
		close(e.done)
	}()

	for {
		if req, ok := e.requests.TryDequeue(); ok {
			e.handle(req)
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			return ctx.Err()

		case <-e.requests.Wait():
			if e.requests.Drained() {
				e.logger.Info("engine stopping: queue closed")
				return nil
			}

		case <-ticks:
			e.step(e.sim.Tick())
		}
	}
}

// Submit queues cmd and waits for it to be applied.
//
// Returns ErrStopped if the loop has shut down, or ctx.Err() if ctx ends
// first. A command that was already queued when ctx ended may still be
// applied.
func (e *Engine) Submit(ctx context.Context, cmd Command) (Outcome, error) {
	req := request{cmd: cmd, reply: make(chan Outcome, 1)}
	if !e.requests.Enqueue(req) {
		return 0, ErrStopped
	}

	select {
	case out := <-req.reply:
		return out, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-e.done:
		select {
		case out := <-req.reply:
			return out, nil
		default:
			return 0, ErrStopped
		}
	}
}

// Snapshot returns the latest published snapshot. It never blocks and never
// returns nil.
func (e *Engine) Snapshot() *Snapshot {
	return e.snapshot.Load()
}

// Subscribe returns a channel that receives every new snapshot. A slow
// reader only sees the latest one; the writer never waits for it. The
// channel is closed when Run returns or cancel is called.
func (e *Engine) Subscribe() (<-chan *Snapshot, func()) {
	ch := make(chan *Snapshot, 1)

	e.subsMu.Lock()
	defer e.subsMu.Unlock()

	if e.closed {
		close(ch)
		return ch, func() {}
	}

	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	ch <- e.snapshot.Load()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			e.subsMu.Lock()
			defer e.subsMu.Unlock()
			if c, ok := e.subs[id]; ok {
				delete(e.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel
}

// Stop asks Run to return after draining queued commands.
func (e *Engine) Stop() {
	e.requests.Close()
}

// Done is closed once Run has returned and observers are flushed.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// handle applies a command. The snapshot is published before the reply so
// the submitter reads its own write.
// CRITICAL: Called only from Run() goroutine - single-writer guarantee.
func (e *Engine) handle(req request) {
	report := e.sim.Apply(req.cmd)
	e.step(report)
	req.reply <- report.Command.Outcome
}

func (e *Engine) step(r Report) {
	snap := e.sim.Snapshot()
	e.snapshot.Store(snap)
	e.broadcast(snap)
	if len(e.observers) > 0 {
		e.outbox.Enqueue(r)
	}
}

func (e *Engine) broadcast(snap *Snapshot) {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()

	for _, ch := range e.subs {
		select {
		case ch <- snap:
		default:
			// Drop the stale snapshot and replace it with the latest.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func (e *Engine) closeSubscribers() {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()

	e.closed = true
	for id, ch := range e.subs {
		delete(e.subs, id)
		close(ch)
	}
}

// deliver hands reports to observers until the outbox is closed and empty.
func (e *Engine) deliver(ctx context.Context, flushed chan<- struct{}) {
	defer close(flushed)
	for {
		if r, ok := e.outbox.TryDequeue(); ok {
			Notify(ctx, e.logger, e.observers, r)
			continue
		}
		<-e.outbox.Wait()
		if e.outbox.Drained() {
			return
		}
	}
}

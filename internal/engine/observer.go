package engine

import (
	"context"
	"log/slog"
)

// Observer receives every Report the simulation produces: one per tick and
// one per command, in order. Journals and telemetry sinks implement it.
type Observer interface {
	Observe(ctx context.Context, r Report) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, r Report) error

// Observe calls f.
func (f ObserverFunc) Observe(ctx context.Context, r Report) error {
	return f(ctx, r)
}

// Notify delivers r to each observer in registration order.
//
// ERROR HANDLING: a failing observer is logged and the remaining observers
// still run. Observer errors never reach the simulation.
func Notify(ctx context.Context, logger *slog.Logger, observers []Observer, r Report) {
	for _, o := range observers {
		if err := o.Observe(ctx, r); err != nil {
			logger.Error("observer failed",
				"run_id", r.RunID,
				"tick", r.Tick,
				"error", err,
			)
		}
	}
}

// Package engine owns the running plant simulation.
//
// The package has two layers:
//
//   - Simulator is the deterministic core. It holds the plant state, the
//     control-mode machine, the ECCS confirmation gate, the alert log and the
//     history ring. Tick and Apply advance it; nothing else mutates it. It is
//     not safe for concurrent use and never starts goroutines, so tests drive
//     it directly with a fake clock and a scripted random source.
//
//   - Engine wraps a Simulator in a single-writer event loop. Scheduled ticks
//     and operator commands are serialized through one goroutine (Run), so a
//     command is always applied between two ticks, never during one.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// Run selects over the tick source, the command queue and the context. Every
// event produces a Report and a fresh immutable Snapshot. Readers load the
// latest Snapshot through an atomic pointer and never block the writer.
//
// Timers:
// The 20 second manual reversion and the 5 second ECCS confirmation window are
// deadlines compared against Clock.Now at the start of every Tick and Apply.
// Re-arming overwrites the deadline, so a superseded timer cannot fire.
//
// Observers:
// Reports are handed to observers (journal, telemetry) from a separate
// outbox goroutine. A failing observer is logged and skipped; it never stalls
// or stops the simulation.
package engine

// Package plant models the reactor, turbine and cooling plant as plain values.
//
// Everything in this package is pure: State is a value type that is replaced
// wholesale on every tick, Step computes the next State from the previous one,
// and DeriveStatus maps a handful of readings to an overall Status. There is no
// clock, no goroutine and no I/O here; the engine package owns scheduling,
// control modes and alerting.
//
// # Tick algorithm
//
// Every smoothed quantity moves by exponential convergence toward a target:
//
//	value += (target - value) * smoothing
//
// which gives a first-order lag instead of jumps. The order of evaluation in
// Step is significant (later steps read values produced by earlier ones) and
// mirrors the dashboard this model feeds:
//
//  1. grid demand random walk in [250, 1000] MW
//  2. automatic rod target adjustment (Auto mode only)
//  3. rod position convergence
//  4. coolant flow convergence toward the pump capacity
//  5. heat balance and reactor temperature
//  6. ECCS rapid cooling and reservoir drain
//  7. turbine speed
//  8. electrical output
//  9. derived pressures, radiation and containment readings
//  10. grid synchronisation
//  11. cosmetic noise
//  12. overall status
//
// # Precision
//
// Step works at full float64 precision. Published snapshots are rounded per
// field by State.Rounded; callers decide whether the rounded value is fed back
// into the next tick.
package plant

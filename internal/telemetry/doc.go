// Package telemetry exports simulation reports to external systems.
//
// Both sinks implement engine.Observer and are registered with
// engine.WithObserver. NATSSink publishes alerts, samples and commands as
// JSON messages; InfluxSink writes one point per sample and per alert for
// trend dashboards.
//
// Sinks run on the engine's observer goroutine, never on the simulation
// loop, so a slow broker delays exports but not ticks.
package telemetry

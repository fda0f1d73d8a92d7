// Package harness runs scripted plant scenarios against the simulator.
//
// A scenario starts the deterministic simulator with a fake clock and a
// constant random source, applies operator commands at given ticks, then
// checks assertions over the alerts, status timeline and final state.
//
// # Scenario Format
//
//	name: eccs-activation
//	description: "ECCS runs until the reservoir is empty"
//	ticks: 60
//	simulation:
//	  initial:
//	    grid_sync_status: Disconnected
//	steps:
//	  - at: 0
//	    kind: activate_eccs
//	    expect: awaiting_confirmation
//	  - at: 5
//	    kind: set_rods
//	    position: 80
//	assertions:
//	  - type: alert_emitted
//	    message: "Control system returned to AUTO mode."
//	    tick: 20
//	  - type: final_state
//	    expect: { eccs_status: Fault, control_mode: AUTO }
//
// A step with at: k runs after tick k, when the clock reads start + k
// tick periods; at: 0 runs before the first tick. Steps sharing a tick run
// in file order.
//
// # Assertion Types
//
//   - alert_emitted: an alert with the message was raised, optionally at tick
//   - alert_count: the message was raised exactly count times
//   - alert_order: the messages were first raised in this order
//   - status_reached: the overall status was published, optionally first at tick
//   - status_never: the overall status was never published
//   - final_state: subset match over the final published state and mode
//
// # Deterministic Testing
//
// Every run uses testutil.FakeClock at testutil.Epoch, a fixed run id and
// testutil.ConstantRand (0.5 unless the scenario sets noise), so traces are
// byte-identical across runs and can be compared with golden files.
package harness

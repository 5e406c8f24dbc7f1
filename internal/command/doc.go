// Package command implements the control layer in front of the aggregate
// transmitter.
//
// The orchestrator validates operator commands, runs them on the event loop
// that owns the aggregate within the command timeout, writes audit entries
// and publishes command, state, timeout and latency events to the telemetry
// hub. Operator text commands are parsed by ParseCommand and run by Execute.
package command

// Package tx defines the transmitter backend contract.
//
// Every transmitter variant (hardware keyed, dummy, the multi-transmitter
// aggregate itself) implements Transmitter. Backends push events upward
// through Handlers tables registered with Subscribe; they never reach into
// the state of whoever owns them.
//
// Backends are constructed by name through a Registry, which reads the
// backend's configuration section and dispatches on its TYPE key.
package tx

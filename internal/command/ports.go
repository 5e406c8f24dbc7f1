package command

import (
	"context"
	"errors"
	"time"

	"github.com/radio-control/txagg/internal/multitx"
	"github.com/radio-control/txagg/internal/tx"
)

// Aggregate is the logical transmitter the orchestrator drives.
type Aggregate interface {
	tx.Transmitter
	Status() multitx.Status
	Member(name string) tx.Transmitter
}

// Compile-time assertion that multitx.MultiTx implements Aggregate
var _ Aggregate = (*multitx.MultiTx)(nil)

// AuditLogger records control actions.
type AuditLogger interface {
	LogControlAction(ctx context.Context, action, transmitter string, params map[string]interface{}, latency time.Duration, err error)
}

// LatencySetter is implemented by transmitters whose own latency can be
// changed at runtime.
type LatencySetter interface {
	SetLatency(latencyMs int) error
}

var (
	// ErrTimeout indicates the command did not run within the command
	// timeout.
	ErrTimeout = errors.New("TIMEOUT")

	// ErrUnavailable indicates the event loop is no longer running.
	ErrUnavailable = errors.New("UNAVAILABLE")

	// ErrInvalidParameter indicates a missing or malformed argument.
	ErrInvalidParameter = tx.ErrInvalidParameter
)

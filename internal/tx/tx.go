package tx

import (
	"fmt"
	"strings"

	"github.com/radio-control/txagg/internal/audio"
)

// CtrlMode selects how a transmitter decides when to key up.
type CtrlMode int

const (
	// CtrlOff keeps the transmitter unkeyed.
	CtrlOff CtrlMode = iota
	// CtrlOn keys the transmitter regardless of audio.
	CtrlOn
	// CtrlAuto keys the transmitter while audio is being sent.
	CtrlAuto
)

// String returns the configuration spelling of the mode.
func (m CtrlMode) String() string {
	switch m {
	case CtrlOff:
		return "off"
	case CtrlOn:
		return "on"
	case CtrlAuto:
		return "auto"
	default:
		return fmt.Sprintf("CtrlMode(%d)", int(m))
	}
}

// ParseCtrlMode parses "off", "on" or "auto" (case-insensitive).
func ParseCtrlMode(s string) (CtrlMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off":
		return CtrlOff, nil
	case "on":
		return CtrlOn, nil
	case "auto":
		return CtrlAuto, nil
	}
	return CtrlOff, fmt.Errorf("%w: unknown control mode %q", ErrInvalidParameter, s)
}

// Handlers is the event handler table a transmitter delivers to. Nil
// entries are skipped.
type Handlers struct {
	// TxTimeout fires when the transmitter gave up transmitting because it
	// was keyed for too long.
	TxTimeout func()

	// TransmitterStateChange fires when the transmitter keys up or down.
	TransmitterStateChange func(isTransmitting bool)

	// LatencyChanged fires when the transmitter's own audio latency
	// requirement changes.
	LatencyChanged func(latencyMs int, src Transmitter)
}

// Transmitter is the capability contract every backend implements.
type Transmitter interface {
	audio.Sink

	// Name returns the configuration section name of the transmitter.
	Name() string

	// Initialize performs backend setup. It is called exactly once, before
	// any other control call.
	Initialize() error

	// SetCtrlMode sets the keying mode.
	SetCtrlMode(mode CtrlMode)

	// EnableCtcss turns the CTCSS subtone on or off.
	EnableCtcss(enable bool)

	// SendDtmf queues DTMF digits for transmission.
	SendDtmf(digits string)

	// SetTransmittedSignalStrength forwards a signal strength estimate to be
	// embedded in the transmission.
	SetTransmittedSignalStrength(level float32)

	// IsTransmitting reports whether the transmitter is keyed right now.
	IsTransmitting() bool

	// SetSystemLatency informs the backend of the end-to-end audio latency,
	// in milliseconds, that is being enforced across all transmitters.
	SetSystemLatency(latencyMs int)

	// Subscribe registers an event handler table.
	Subscribe(h Handlers)

	// Close releases the backend. Close is safe to call more than once.
	Close() error
}

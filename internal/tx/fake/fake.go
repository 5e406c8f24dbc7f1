// Package fake provides a scriptable transmitter for testing.
//
// A fake records every control call, lets the test drive its events, and
// can be told to fail initialization or to re-enter its owner from inside
// SetSystemLatency.
package fake

import (
	"fmt"

	"github.com/radio-control/txagg/internal/tx"
)

// Call is one recorded control call.
type Call struct {
	Tx     string
	Method string
	Arg    interface{}
}

// Journal collects calls from several fakes in the order they happened.
type Journal struct {
	Calls []Call
}

// Methods returns the "tx.method" strings of the recorded calls matching
// method, or of all calls when method is empty.
func (j *Journal) Methods(method string) []string {
	out := []string{}
	for _, c := range j.Calls {
		if method == "" || c.Method == method {
			out = append(out, c.Tx+"."+c.Method)
		}
	}
	return out
}

// FakeTx implements tx.Transmitter for testing purposes.
type FakeTx struct {
	tx.Base

	// Current state
	transmitting   bool
	mode           tx.CtrlMode
	ctcss          bool
	dtmf           string
	signalStrength float32
	systemLatency  int

	// Lifecycle
	initCount int
	closed    bool

	// Recorded calls
	Calls   []Call
	journal *Journal

	// InitErr is returned by Initialize when set.
	InitErr error

	// CloseErr is returned by the first Close when set.
	CloseErr error

	// AcceptLimit caps the samples accepted per WriteSamples call. Zero
	// accepts everything.
	AcceptLimit int
	Samples     []float32
	Flushes     int

	// OnSetSystemLatency runs inside SetSystemLatency after the value is
	// stored, to simulate backends that report back synchronously.
	OnSetSystemLatency func(latencyMs int)
}

// Compile-time assertion that FakeTx implements tx.Transmitter
var _ tx.Transmitter = (*FakeTx)(nil)

// NewFakeTx creates a new fake transmitter.
func NewFakeTx(name string) *FakeTx {
	return &FakeTx{
		Base: tx.Base{TxName: name},
		mode: tx.CtrlAuto,
	}
}

// WithJournal makes the fake also record its calls into j.
func (f *FakeTx) WithJournal(j *Journal) *FakeTx {
	f.journal = j
	return f
}

func (f *FakeTx) record(method string, arg interface{}) {
	c := Call{Tx: f.Name(), Method: method, Arg: arg}
	f.Calls = append(f.Calls, c)
	if f.journal != nil {
		f.journal.Calls = append(f.journal.Calls, c)
	}
}

// Initialize records the call and returns InitErr.
func (f *FakeTx) Initialize() error {
	f.initCount++
	f.record("Initialize", nil)
	if f.initCount > 1 {
		return fmt.Errorf("%w: %s initialized twice", tx.ErrInitFailed, f.Name())
	}
	return f.InitErr
}

// SetCtrlMode records the mode.
func (f *FakeTx) SetCtrlMode(mode tx.CtrlMode) {
	f.mode = mode
	f.record("SetCtrlMode", mode)
}

// EnableCtcss records the flag.
func (f *FakeTx) EnableCtcss(enable bool) {
	f.ctcss = enable
	f.record("EnableCtcss", enable)
}

// SendDtmf records the digits.
func (f *FakeTx) SendDtmf(digits string) {
	f.dtmf += digits
	f.record("SendDtmf", digits)
}

// SetTransmittedSignalStrength records the level.
func (f *FakeTx) SetTransmittedSignalStrength(level float32) {
	f.signalStrength = level
	f.record("SetTransmittedSignalStrength", level)
}

// IsTransmitting returns the scripted transmit state.
func (f *FakeTx) IsTransmitting() bool {
	return f.transmitting
}

// SetSystemLatency records the latency and runs OnSetSystemLatency.
func (f *FakeTx) SetSystemLatency(latencyMs int) {
	f.systemLatency = latencyMs
	f.record("SetSystemLatency", latencyMs)
	if f.OnSetSystemLatency != nil {
		f.OnSetSystemLatency(latencyMs)
	}
}

// WriteSamples accepts up to AcceptLimit samples.
func (f *FakeTx) WriteSamples(samples []float32) int {
	n := len(samples)
	if f.AcceptLimit > 0 && n > f.AcceptLimit {
		n = f.AcceptLimit
	}
	f.Samples = append(f.Samples, samples[:n]...)
	return n
}

// FlushSamples counts flushes.
func (f *FakeTx) FlushSamples() {
	f.Flushes++
}

// Close marks the fake closed.
func (f *FakeTx) Close() error {
	if f.closed {
		return nil
	}
	f.record("Close", nil)
	f.closed = true
	f.ClearHandlers()
	return f.CloseErr
}

// SetTransmitting changes the transmit state and emits the state change
// event if the state actually changed.
func (f *FakeTx) SetTransmitting(on bool) {
	if f.transmitting == on {
		return
	}
	f.transmitting = on
	f.EmitTransmitterStateChange(on)
}

// ReportLatency emits a latency report.
func (f *FakeTx) ReportLatency(latencyMs int) {
	f.EmitLatencyChanged(latencyMs, f)
}

// FireTimeout emits a transmit timeout.
func (f *FakeTx) FireTimeout() {
	f.EmitTxTimeout()
}

// SystemLatency returns the last latency pushed to the fake.
func (f *FakeTx) SystemLatency() int { return f.systemLatency }

// CtrlMode returns the last control mode set.
func (f *FakeTx) CtrlMode() tx.CtrlMode { return f.mode }

// CtcssEnabled returns the last CTCSS setting.
func (f *FakeTx) CtcssEnabled() bool { return f.ctcss }

// Dtmf returns all digits sent so far.
func (f *FakeTx) Dtmf() string { return f.dtmf }

// SignalStrength returns the last signal strength set.
func (f *FakeTx) SignalStrength() float32 { return f.signalStrength }

// Closed reports whether Close was called.
func (f *FakeTx) Closed() bool { return f.closed }

// Initialized reports whether Initialize was called.
func (f *FakeTx) Initialized() bool { return f.initCount > 0 }

// CallsTo returns the recorded calls to method.
func (f *FakeTx) CallsTo(method string) []Call {
	out := []Call{}
	for _, c := range f.Calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Factory hands out fakes by name and remembers everything it built.
type Factory struct {
	// Fail makes Create fail for the named transmitters.
	Fail map[string]error

	// InitFail makes the named fakes fail Initialize.
	InitFail map[string]error

	// CloseFail makes the named fakes fail Close.
	CloseFail map[string]error

	// Journal, when set, is attached to every fake created.
	Journal *Journal

	Created []*FakeTx
}

// Compile-time assertion that Factory implements tx.Factory
var _ tx.Factory = (*Factory)(nil)

// NewFactory creates an empty fake factory.
func NewFactory() *Factory {
	return &Factory{
		Fail:      make(map[string]error),
		InitFail:  make(map[string]error),
		CloseFail: make(map[string]error),
	}
}

// Create builds a fake named name.
func (fa *Factory) Create(name string) (tx.Transmitter, error) {
	if err, ok := fa.Fail[name]; ok {
		return nil, err
	}
	f := NewFakeTx(name).WithJournal(fa.Journal)
	f.InitErr = fa.InitFail[name]
	f.CloseErr = fa.CloseFail[name]
	fa.Created = append(fa.Created, f)
	return f, nil
}

// Get returns the most recently created fake with the given name.
func (fa *Factory) Get(name string) *FakeTx {
	for i := len(fa.Created) - 1; i >= 0; i-- {
		if fa.Created[i].Name() == name {
			return fa.Created[i]
		}
	}
	return nil
}

package tx

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapConfig map[string]map[string]string

func (c mapConfig) Value(section, key string) (string, bool) {
	s, ok := c[section]
	if !ok {
		return "", false
	}
	v, ok := s[key]
	return v, ok
}

// stubTx is the smallest Transmitter needed to exercise the registry.
type stubTx struct {
	Base
}

func (s *stubTx) WriteSamples(samples []float32) int   { return len(samples) }
func (s *stubTx) FlushSamples()                        {}
func (s *stubTx) Initialize() error                    { return nil }
func (s *stubTx) SetCtrlMode(CtrlMode)                 {}
func (s *stubTx) EnableCtcss(bool)                     {}
func (s *stubTx) SendDtmf(string)                      {}
func (s *stubTx) SetTransmittedSignalStrength(float32) {}
func (s *stubTx) IsTransmitting() bool                 { return false }
func (s *stubTx) SetSystemLatency(int)                 {}
func (s *stubTx) Close() error                         { return nil }

func TestParseCtrlMode(t *testing.T) {
	tests := []struct {
		in      string
		want    CtrlMode
		wantErr bool
	}{
		{"off", CtrlOff, false},
		{"ON", CtrlOn, false},
		{" Auto ", CtrlAuto, false},
		{"sometimes", CtrlOff, true},
	}

	for _, tt := range tests {
		got, err := ParseCtrlMode(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidParameter, "ParseCtrlMode(%q)", tt.in)
		} else {
			assert.NoError(t, err, "ParseCtrlMode(%q)", tt.in)
		}
		assert.Equal(t, tt.want, got, "ParseCtrlMode(%q)", tt.in)
	}
}

func TestCtrlModeString(t *testing.T) {
	for _, m := range []CtrlMode{CtrlOff, CtrlOn, CtrlAuto} {
		parsed, err := ParseCtrlMode(m.String())
		assert.NoError(t, err)
		assert.Equal(t, m, parsed, "mode %d survives String/Parse", int(m))
	}
	assert.Equal(t, "CtrlMode(7)", CtrlMode(7).String())
}

func TestBaseDeliversInSubscriptionOrder(t *testing.T) {
	var b Base
	var order []string

	b.Subscribe(Handlers{TransmitterStateChange: func(on bool) { order = append(order, "first") }})
	b.Subscribe(Handlers{}) // nil entries are skipped
	b.Subscribe(Handlers{TransmitterStateChange: func(on bool) { order = append(order, "second") }})

	b.EmitTransmitterStateChange(true)

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestBaseSubscribeDuringDelivery(t *testing.T) {
	var b Base
	calls := 0

	b.Subscribe(Handlers{TxTimeout: func() {
		calls++
		b.Subscribe(Handlers{TxTimeout: func() { calls += 10 }})
	}})

	b.EmitTxTimeout()
	assert.Equal(t, 1, calls, "handler added during delivery must not run in the same delivery")

	b.EmitTxTimeout()
	assert.Equal(t, 12, calls, "both handlers run on the second delivery")
}

func TestBaseLatencyCarriesSource(t *testing.T) {
	src := &stubTx{Base: Base{TxName: "Tx1"}}
	var gotName string
	var gotLatency int

	src.Subscribe(Handlers{LatencyChanged: func(ms int, from Transmitter) {
		gotLatency = ms
		gotName = from.Name()
	}})
	src.EmitLatencyChanged(25, src)

	assert.Equal(t, 25, gotLatency)
	assert.Equal(t, "Tx1", gotName)

	src.ClearHandlers()
	gotLatency = 0
	src.EmitLatencyChanged(30, src)
	assert.Zero(t, gotLatency, "no delivery after ClearHandlers")
}

func TestRegistryCreate(t *testing.T) {
	cfg := mapConfig{
		"Tx1":     {"TYPE": "Stub"},
		"NoType":  {"FOO": "bar"},
		"Strange": {"TYPE": "Warp"},
		"Broken":  {"TYPE": "failing"},
	}
	r := NewRegistry(cfg)
	r.Register("stub", func(cfg Config, name string) (Transmitter, error) {
		return &stubTx{Base: Base{TxName: name}}, nil
	})
	r.Register("Failing", func(cfg Config, name string) (Transmitter, error) {
		return nil, errors.New("no hardware")
	})

	got, err := r.Create("Tx1")
	require.NoError(t, err)
	assert.Equal(t, "Tx1", got.Name())

	_, err = r.Create("Missing")
	assert.ErrorIs(t, err, ErrUnknownTransmitter, "missing section")
	_, err = r.Create("NoType")
	assert.ErrorIs(t, err, ErrUnknownTransmitter, "section without TYPE")
	_, err = r.Create("Strange")
	assert.ErrorIs(t, err, ErrUnknownType)
	_, err = r.Create("Broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no hardware")

	assert.Equal(t, []string{"failing", "stub"}, r.Types())
}

func TestInitError(t *testing.T) {
	cause := errors.New("PTT device busy")
	err := NewInitError("Tx2", cause)

	assert.ErrorIs(t, err, ErrInitFailed)
	assert.ErrorIs(t, err, cause, "original cause stays reachable")
	assert.Contains(t, err.Error(), "Tx2")

	unknown := NewInitError("Tx9", ErrUnknownType)
	assert.ErrorIs(t, unknown, ErrUnknownType)
	assert.NotErrorIs(t, unknown, ErrInitFailed, "normalized code is kept")

	var initErr *InitError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, "Tx2", initErr.Name)
}

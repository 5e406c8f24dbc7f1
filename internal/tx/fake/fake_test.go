package fake

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radio-control/txagg/internal/tx"
	"github.com/radio-control/txagg/internal/txtest"
)

// TestFakeTxConformance runs the conformance suite on the fake transmitter.
func TestFakeTxConformance(t *testing.T) {
	txtest.RunConformance(t, func(t *testing.T) (tx.Transmitter, func()) {
		f := NewFakeTx("fake-tx")
		require.NoError(t, f.Initialize())
		return f, nil
	}, txtest.Capabilities{})
}

func TestFakeTxRecordsCalls(t *testing.T) {
	j := &Journal{}
	a := NewFakeTx("A").WithJournal(j)
	b := NewFakeTx("B").WithJournal(j)

	a.SendDtmf("12")
	b.SendDtmf("34")
	a.SendDtmf("5")
	a.EnableCtcss(true)

	assert.Equal(t, "125", a.Dtmf())
	assert.Equal(t, "34", b.Dtmf())
	assert.Len(t, a.CallsTo("SendDtmf"), 2)
	assert.Equal(t, []string{"A.SendDtmf", "B.SendDtmf", "A.SendDtmf"}, j.Methods("SendDtmf"))
	assert.Len(t, j.Methods(""), 4)
}

func TestFakeTxEvents(t *testing.T) {
	f := NewFakeTx("A")
	var states []bool
	var latencies []int
	timeouts := 0
	f.Subscribe(tx.Handlers{
		TxTimeout:              func() { timeouts++ },
		TransmitterStateChange: func(on bool) { states = append(states, on) },
		LatencyChanged:         func(ms int, src tx.Transmitter) { latencies = append(latencies, ms) },
	})

	f.SetTransmitting(true)
	f.SetTransmitting(true)
	f.SetTransmitting(false)
	f.ReportLatency(40)
	f.FireTimeout()

	assert.Equal(t, []bool{true, false}, states)
	assert.Equal(t, []int{40}, latencies)
	assert.Equal(t, 1, timeouts)
}

func TestFakeTxInitializeTwiceFails(t *testing.T) {
	f := NewFakeTx("A")
	require.NoError(t, f.Initialize())
	assert.ErrorIs(t, f.Initialize(), tx.ErrInitFailed)
}

func TestFakeTxCloseReturnsCloseErrOnce(t *testing.T) {
	f := NewFakeTx("A")
	f.CloseErr = errors.New("PTT stuck")

	assert.EqualError(t, f.Close(), "PTT stuck")
	assert.True(t, f.Closed())
	assert.NoError(t, f.Close(), "a closed fake closes cleanly")
	assert.Len(t, f.CallsTo("Close"), 1)
}

func TestFakeTxAcceptLimit(t *testing.T) {
	f := NewFakeTx("A")
	f.AcceptLimit = 3
	assert.Equal(t, 3, f.WriteSamples(make([]float32, 10)))
	assert.Len(t, f.Samples, 3)
}

func TestFactory(t *testing.T) {
	fa := NewFactory()
	fa.Fail["Bad"] = tx.ErrUnknownTransmitter
	fa.InitFail["Flaky"] = errors.New("flaky hardware")
	fa.CloseFail["Sticky"] = errors.New("relay stuck")

	_, err := fa.Create("Bad")
	assert.ErrorIs(t, err, tx.ErrUnknownTransmitter)

	got, err := fa.Create("Flaky")
	require.NoError(t, err)
	assert.Error(t, got.Initialize())
	assert.Same(t, got, fa.Get("Flaky"))
	assert.Nil(t, fa.Get("Nope"))

	sticky, err := fa.Create("Sticky")
	require.NoError(t, err)
	assert.EqualError(t, sticky.Close(), "relay stuck")
}

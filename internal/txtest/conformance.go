// Package txtest provides backend-agnostic conformance testing for
// transmitters.
//
// Every tx.Transmitter variant must pass RunConformance: commands are fire
// and forget and safe in any transmit state, IsTransmitting has no side
// effects, audio backpressure is reported honestly and Close is idempotent.
package txtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radio-control/txagg/internal/tx"
)

// Capabilities describes what the transmitter under test is expected to do.
type Capabilities struct {
	// Keyable transmitters key up on CtrlOn and down on CtrlOff.
	Keyable bool

	// KeysOnAudio transmitters key up on audio in CtrlAuto and down on flush.
	KeysOnAudio bool
}

// Setup constructs and initializes a transmitter. The returned settle
// function runs any work the transmitter scheduled asynchronously, such as
// queued event loop tasks; it may be nil.
type Setup func(t *testing.T) (transmitter tx.Transmitter, settle func())

// eventLog counts events delivered to a subscribed handler table.
type eventLog struct {
	states   []bool
	timeouts int
}

func subscribe(t tx.Transmitter) *eventLog {
	log := &eventLog{}
	t.Subscribe(tx.Handlers{
		TxTimeout:              func() { log.timeouts++ },
		TransmitterStateChange: func(on bool) { log.states = append(log.states, on) },
	})
	return log
}

// start runs setup and closes the transmitter when the subtest ends.
func start(t *testing.T, setup Setup) (tx.Transmitter, func()) {
	tr, settle := setup(t)
	t.Cleanup(func() { assert.NoError(t, tr.Close(), "Close") })
	return tr, settle
}

func settleIfNeeded(settle func()) {
	if settle != nil {
		settle()
	}
}

// RunConformance runs the complete conformance suite.
func RunConformance(t *testing.T, setup Setup, caps Capabilities) {
	t.Run("CommandsInAnyState", func(t *testing.T) {
		tr, settle := start(t, setup)
		settleIfNeeded(settle)

		for _, mode := range []tx.CtrlMode{tx.CtrlOff, tx.CtrlOn, tx.CtrlAuto} {
			tr.SetCtrlMode(mode)
			tr.EnableCtcss(true)
			tr.EnableCtcss(true)
			tr.SendDtmf("123#")
			tr.SendDtmf("")
			tr.SetTransmittedSignalStrength(42.5)
			tr.SetSystemLatency(30)
			tr.SetSystemLatency(30)
			tr.EnableCtcss(false)
		}
		settleIfNeeded(settle)
	})

	t.Run("IsTransmittingSideEffectFree", func(t *testing.T) {
		tr, settle := start(t, setup)
		settleIfNeeded(settle)
		log := subscribe(tr)

		first := tr.IsTransmitting()
		for i := 0; i < 5; i++ {
			require.Equal(t, first, tr.IsTransmitting(), "IsTransmitting changed between calls without any command")
		}
		assert.Empty(t, log.states, "IsTransmitting emitted state changes")
	})

	t.Run("SetSystemLatencyDoesNotKey", func(t *testing.T) {
		tr, settle := start(t, setup)
		settleIfNeeded(settle)
		log := subscribe(tr)

		tr.SetCtrlMode(tx.CtrlOff)
		log.states = nil
		tr.SetSystemLatency(100)
		tr.SetSystemLatency(0)

		assert.False(t, tr.IsTransmitting(), "SetSystemLatency must not key")
		assert.Empty(t, log.states, "SetSystemLatency must not change the transmit state")
	})

	t.Run("WriteSamplesCount", func(t *testing.T) {
		tr, settle := start(t, setup)
		settleIfNeeded(settle)

		samples := make([]float32, 160)
		n := tr.WriteSamples(samples)
		assert.GreaterOrEqual(t, n, 0)
		assert.LessOrEqual(t, n, len(samples))
		tr.FlushSamples()
	})

	if caps.Keyable {
		t.Run("CtrlModeKeying", func(t *testing.T) {
			tr, settle := start(t, setup)
			settleIfNeeded(settle)
			log := subscribe(tr)

			tr.SetCtrlMode(tx.CtrlOn)
			require.True(t, tr.IsTransmitting(), "keyed in CtrlOn")
			tr.SetCtrlMode(tx.CtrlOn)
			tr.SetCtrlMode(tx.CtrlOff)
			require.False(t, tr.IsTransmitting(), "unkeyed in CtrlOff")

			assert.Equal(t, []bool{true, false}, log.states)
		})
	}

	if caps.KeysOnAudio {
		t.Run("AutoKeysOnAudio", func(t *testing.T) {
			tr, settle := start(t, setup)
			settleIfNeeded(settle)
			log := subscribe(tr)

			tr.SetCtrlMode(tx.CtrlAuto)
			require.False(t, tr.IsTransmitting(), "idle in CtrlAuto without audio")
			tr.WriteSamples(make([]float32, 160))
			require.True(t, tr.IsTransmitting(), "keyed by audio in CtrlAuto")
			tr.FlushSamples()
			require.False(t, tr.IsTransmitting(), "unkeyed after flush")
			assert.Len(t, log.states, 2)
		})
	}

	t.Run("CloseIdempotent", func(t *testing.T) {
		tr, settle := setup(t)
		settleIfNeeded(settle)
		require.NoError(t, tr.Close())
		assert.NoError(t, tr.Close(), "second Close")
		assert.False(t, tr.IsTransmitting(), "closed transmitter reports transmitting")
	})
}

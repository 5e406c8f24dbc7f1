// Package local implements a hardware-keyed transmitter: a PTT line that is
// driven according to the control mode and the presence of audio, with a
// transmit timeout and a self-reported audio latency.
package local

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/radio-control/txagg/internal/eventloop"
	"github.com/radio-control/txagg/internal/tx"
)

// TypeName is the TYPE value selecting this backend.
const TypeName = "Local"

// Tx is a locally attached transmitter.
type Tx struct {
	tx.Base

	loop *eventloop.Loop
	cfg  tx.Config
	ptt  PTT

	// Configuration
	timeout    time.Duration
	ownLatency int

	// Current state
	mode           tx.CtrlMode
	transmitting   bool
	audioActive    bool
	timedOut       bool
	ctcss          bool
	signalStrength float32
	systemLatency  int
	timeoutTimer   *eventloop.Timer
	dtmfSent       int
	samples        int64
}

// Compile-time assertion that Tx implements tx.Transmitter
var _ tx.Transmitter = (*Tx)(nil)

// NewConstructor returns a registry constructor that schedules timers and
// asynchronous events on loop.
func NewConstructor(loop *eventloop.Loop) tx.Constructor {
	return func(cfg tx.Config, name string) (tx.Transmitter, error) {
		return New(loop, cfg, name), nil
	}
}

// New creates a local transmitter. Configuration is read by Initialize.
func New(loop *eventloop.Loop, cfg tx.Config, name string) *Tx {
	return &Tx{
		Base: tx.Base{TxName: name},
		loop: loop,
		cfg:  cfg,
		mode: tx.CtrlAuto,
	}
}

// Initialize reads TIMEOUT, LATENCY, PTT_TYPE, PTT_PIN and PTT_INVERTED.
func (t *Tx) Initialize() error {
	if t.ptt != nil {
		return fmt.Errorf("%w: %s already initialized", tx.ErrInitFailed, t.Name())
	}

	if v, ok := t.cfg.Value(t.Name(), "TIMEOUT"); ok {
		sec, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || sec < 0 {
			return fmt.Errorf("%w: %s/TIMEOUT %q", tx.ErrInvalidParameter, t.Name(), v)
		}
		t.timeout = time.Duration(sec * float64(time.Second))
	}

	if v, ok := t.cfg.Value(t.Name(), "LATENCY"); ok {
		ms, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || ms < 0 {
			return fmt.Errorf("%w: %s/LATENCY %q", tx.ErrInvalidParameter, t.Name(), v)
		}
		t.ownLatency = ms
	}

	pttType, _ := t.cfg.Value(t.Name(), "PTT_TYPE")
	pin, _ := t.cfg.Value(t.Name(), "PTT_PIN")
	inverted, _ := t.cfg.Value(t.Name(), "PTT_INVERTED")
	ptt, err := newPTT(t.Name(), pttType, pin, parseBool(inverted))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", tx.ErrInitFailed, t.Name(), err)
	}
	if err := ptt.SetState(false); err != nil {
		_ = ptt.Close()
		return fmt.Errorf("%w: %s: %v", tx.ErrInitFailed, t.Name(), err)
	}
	t.ptt = ptt

	// The owner subscribes after Initialize returns, so the initial report
	// goes through the loop.
	if t.ownLatency > 0 {
		latency := t.ownLatency
		_ = t.loop.Post(func() {
			if t.ptt != nil {
				t.EmitLatencyChanged(latency, t)
			}
		})
	}

	logrus.WithFields(logrus.Fields{
		"transmitter": t.Name(),
		"timeout":     t.timeout,
		"latency_ms":  t.ownLatency,
		"ptt_type":    pttType,
	}).Info("Local transmitter initialized")
	return nil
}

// SetCtrlMode keys (On), unkeys (Off) or follows audio (Auto).
func (t *Tx) SetCtrlMode(mode tx.CtrlMode) {
	t.mode = mode
	t.timedOut = false
	switch mode {
	case tx.CtrlOff:
		t.setTransmit(false)
	case tx.CtrlOn:
		t.setTransmit(true)
	case tx.CtrlAuto:
		t.setTransmit(t.audioActive)
	}
}

func (t *Tx) EnableCtcss(enable bool) {
	t.ctcss = enable
}

func (t *Tx) SendDtmf(digits string) {
	if digits == "" {
		return
	}
	t.dtmfSent += len(digits)
	logrus.WithFields(logrus.Fields{
		"transmitter": t.Name(),
		"digits":      digits,
	}).Debug("Sending DTMF")
}

func (t *Tx) SetTransmittedSignalStrength(level float32) {
	t.signalStrength = level
}

func (t *Tx) IsTransmitting() bool {
	return t.transmitting
}

func (t *Tx) SetSystemLatency(latencyMs int) {
	t.systemLatency = latencyMs
}

// WriteSamples accepts all samples and keys the transmitter in Auto mode.
func (t *Tx) WriteSamples(samples []float32) int {
	if len(samples) == 0 {
		return 0
	}
	t.audioActive = true
	t.samples += int64(len(samples))
	if t.mode == tx.CtrlAuto && !t.timedOut {
		t.setTransmit(true)
	}
	return len(samples)
}

// FlushSamples ends the current audio stream; in Auto mode the transmitter
// unkeys.
func (t *Tx) FlushSamples() {
	t.audioActive = false
	t.timedOut = false
	if t.mode == tx.CtrlAuto {
		t.setTransmit(false)
	}
}

// SetLatency changes the transmitter's own latency requirement and reports
// it to subscribers.
func (t *Tx) SetLatency(latencyMs int) error {
	if latencyMs < 0 {
		return fmt.Errorf("%w: negative latency %d", tx.ErrInvalidParameter, latencyMs)
	}
	t.ownLatency = latencyMs
	t.EmitLatencyChanged(latencyMs, t)
	return nil
}

// ExtraDelay returns how much audio must be held back, in milliseconds, so
// that this transmitter matches the system latency.
func (t *Tx) ExtraDelay() int {
	if t.systemLatency > t.ownLatency {
		return t.systemLatency - t.ownLatency
	}
	return 0
}

// SystemLatency returns the last latency pushed by the owner.
func (t *Tx) SystemLatency() int { return t.systemLatency }

// Close unkeys and releases the PTT.
func (t *Tx) Close() error {
	t.timeoutTimer.Stop()
	t.timeoutTimer = nil
	t.ClearHandlers()
	if t.ptt == nil {
		return nil
	}
	t.transmitting = false
	err := t.ptt.Close()
	t.ptt = nil
	return err
}

func (t *Tx) setTransmit(on bool) {
	if on == t.transmitting || t.ptt == nil {
		return
	}

	if err := t.ptt.SetState(on); err != nil {
		logrus.WithFields(logrus.Fields{
			"transmitter": t.Name(),
			"ptt":         on,
			"error":       err,
		}).Error("Failed to set PTT")
		if on {
			return
		}
	}
	t.transmitting = on

	t.timeoutTimer.Stop()
	t.timeoutTimer = nil
	if on && t.timeout > 0 {
		t.timeoutTimer = t.loop.AfterFunc(t.timeout, t.onTxTimeout)
	}

	logrus.WithFields(logrus.Fields{
		"transmitter":  t.Name(),
		"transmitting": on,
	}).Debug("Transmitter state change")
	t.EmitTransmitterStateChange(on)
}

func (t *Tx) onTxTimeout() {
	t.timeoutTimer = nil
	if !t.transmitting {
		return
	}
	logrus.WithFields(logrus.Fields{
		"transmitter": t.Name(),
		"timeout":     t.timeout,
	}).Warn("Transmitter timeout")
	t.timedOut = true
	t.EmitTxTimeout()
	t.setTransmit(false)
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

package command

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/radio-control/txagg/internal/eventloop"
	"github.com/radio-control/txagg/internal/multitx"
	"github.com/radio-control/txagg/internal/telemetry"
	"github.com/radio-control/txagg/internal/tx"
)

// DefaultAudioRetry is how long the audio feed waits before offering
// samples the aggregate did not accept.
const DefaultAudioRetry = 20 * time.Millisecond

// dtmfDigits are the characters a DTMF sequence may contain.
const dtmfDigits = "0123456789ABCD*#"

// Orchestrator routes operator commands to the aggregate.
type Orchestrator struct {
	loop    *eventloop.Loop
	agg     Aggregate
	hub     *telemetry.Hub
	audit   AuditLogger
	timeout time.Duration

	// Audio feed, touched only on the loop.
	audioRetry   time.Duration
	pending      []float32
	flushPending bool
	retryTimer   *eventloop.Timer
}

// NewOrchestrator creates an orchestrator for agg, which must only be used
// on loop. hub may be nil.
func NewOrchestrator(loop *eventloop.Loop, agg Aggregate, hub *telemetry.Hub, timeout time.Duration) *Orchestrator {
	return &Orchestrator{
		loop:       loop,
		agg:        agg,
		hub:        hub,
		timeout:    timeout,
		audioRetry: DefaultAudioRetry,
	}
}

// SetAuditLogger sets the audit logger.
func (o *Orchestrator) SetAuditLogger(logger AuditLogger) {
	o.audit = logger
}

// SetAudioRetry sets the audio backpressure retry interval.
func (o *Orchestrator) SetAudioRetry(d time.Duration) {
	if d > 0 {
		o.audioRetry = d
	}
}

// Attach subscribes to the aggregate's upward events and relays them to
// telemetry. It must be called before the loop starts or from the loop.
func (o *Orchestrator) Attach() {
	name := o.agg.Name()
	o.agg.Subscribe(tx.Handlers{
		TxTimeout: func() {
			logrus.WithField("transmitter", name).Warn("Transmitter timeout")
			o.publish(telemetry.Event{Type: telemetry.EventTimeout})
		},
		TransmitterStateChange: func(isTransmitting bool) {
			o.publish(telemetry.Event{
				Type: telemetry.EventState,
				Data: map[string]interface{}{"transmitting": isTransmitting},
			})
		},
	})
}

// SetCtrlMode sets the control mode of every transmitter.
func (o *Orchestrator) SetCtrlMode(ctx context.Context, mode tx.CtrlMode) error {
	params := map[string]interface{}{"mode": mode.String()}
	if mode < tx.CtrlOff || mode > tx.CtrlAuto {
		return o.reject(ctx, "setCtrlMode", params, fmt.Errorf("%w: control mode %d", ErrInvalidParameter, mode))
	}
	return o.run(ctx, "setCtrlMode", params, func() error {
		o.agg.SetCtrlMode(mode)
		return nil
	})
}

// EnableCtcss switches the CTCSS tone on every transmitter.
func (o *Orchestrator) EnableCtcss(ctx context.Context, enable bool) error {
	return o.run(ctx, "enableCtcss", map[string]interface{}{"enable": enable}, func() error {
		o.agg.EnableCtcss(enable)
		return nil
	})
}

// SendDtmf sends digits on every transmitter.
func (o *Orchestrator) SendDtmf(ctx context.Context, digits string) error {
	digits = strings.ToUpper(digits)
	params := map[string]interface{}{"digits": digits}
	if digits == "" || strings.Trim(digits, dtmfDigits) != "" {
		return o.reject(ctx, "sendDtmf", params, fmt.Errorf("%w: DTMF digits %q", ErrInvalidParameter, digits))
	}
	return o.run(ctx, "sendDtmf", params, func() error {
		o.agg.SendDtmf(digits)
		return nil
	})
}

// SetSignalStrength sets the transmitted signal strength on every
// transmitter.
func (o *Orchestrator) SetSignalStrength(ctx context.Context, level float32) error {
	params := map[string]interface{}{"level": level}
	if math.IsNaN(float64(level)) || math.IsInf(float64(level), 0) {
		return o.reject(ctx, "setSignalStrength", params, fmt.Errorf("%w: signal strength %v", ErrInvalidParameter, level))
	}
	return o.run(ctx, "setSignalStrength", params, func() error {
		o.agg.SetTransmittedSignalStrength(level)
		return nil
	})
}

// SetLatency changes the own latency of the member named member. The
// aggregate learns about it through the member's latency report.
func (o *Orchestrator) SetLatency(ctx context.Context, member string, latencyMs int) error {
	params := map[string]interface{}{"member": member, "latencyMs": latencyMs}
	if latencyMs < 0 {
		return o.reject(ctx, "setLatency", params, fmt.Errorf("%w: negative latency %d", ErrInvalidParameter, latencyMs))
	}
	return o.run(ctx, "setLatency", params, func() error {
		t := o.agg.Member(member)
		if t == nil {
			return fmt.Errorf("%w: %s", tx.ErrUnknownTransmitter, member)
		}
		setter, ok := t.(LatencySetter)
		if !ok {
			return fmt.Errorf("%w: %s has no adjustable latency", ErrInvalidParameter, member)
		}
		return setter.SetLatency(latencyMs)
	})
}

// Status returns a snapshot of the aggregate.
func (o *Orchestrator) Status(ctx context.Context) (multitx.Status, error) {
	var st multitx.Status
	result := make(chan multitx.Status, 1)
	err := o.call(ctx, func() error {
		result <- o.agg.Status()
		return nil
	})
	if err == nil {
		st = <-result
	}
	return st, err
}

// WriteAudio queues samples for the aggregate. Samples the aggregate does
// not accept are offered again after the retry interval.
func (o *Orchestrator) WriteAudio(samples []float32) error {
	buf := append([]float32(nil), samples...)
	return o.post(func() {
		o.pending = append(o.pending, buf...)
		o.drainAudio()
	})
}

// FlushAudio ends the current audio stream once every queued sample has
// been accepted.
func (o *Orchestrator) FlushAudio() error {
	return o.post(func() {
		o.flushPending = true
		o.drainAudio()
	})
}

func (o *Orchestrator) drainAudio() {
	if len(o.pending) > 0 {
		n := o.agg.WriteSamples(o.pending)
		o.pending = o.pending[n:]
	}

	if len(o.pending) > 0 {
		if o.retryTimer == nil {
			o.retryTimer = o.loop.AfterFunc(o.audioRetry, func() {
				o.retryTimer = nil
				o.drainAudio()
			})
		}
		return
	}

	o.pending = nil
	if o.flushPending {
		o.flushPending = false
		o.agg.FlushSamples()
	}
}

func (o *Orchestrator) post(fn func()) error {
	if err := o.loop.Post(fn); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// call runs fn on the loop within the command timeout.
func (o *Orchestrator) call(ctx context.Context, fn func() error) error {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	result := make(chan error, 1)
	err := o.loop.Call(ctx, func() { result <- fn() })
	switch {
	case err == nil:
		return <-result
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: command not executed within %v", ErrTimeout, o.timeout)
	case errors.Is(err, eventloop.ErrStopped):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	default:
		return err
	}
}

// run executes a control action on the loop, audits it and publishes it.
func (o *Orchestrator) run(ctx context.Context, action string, params map[string]interface{}, fn func() error) error {
	start := time.Now()
	err := o.call(ctx, fn)
	o.record(ctx, action, params, time.Since(start), err)
	return err
}

// reject records an action refused before reaching the loop.
func (o *Orchestrator) reject(ctx context.Context, action string, params map[string]interface{}, err error) error {
	o.record(ctx, action, params, 0, err)
	return err
}

func (o *Orchestrator) record(ctx context.Context, action string, params map[string]interface{}, latency time.Duration, err error) {
	fields := logrus.Fields{
		"action":      action,
		"transmitter": o.agg.Name(),
		"latency":     latency,
	}
	if err != nil {
		logrus.WithFields(fields).WithError(err).Warn("Command failed")
	} else {
		logrus.WithFields(fields).Info("Command executed")
	}

	if o.audit != nil {
		o.audit.LogControlAction(ctx, action, o.agg.Name(), params, latency, err)
	}

	data := map[string]interface{}{"action": action, "params": params, "ok": err == nil}
	if err != nil {
		data["error"] = err.Error()
	}
	o.publish(telemetry.Event{Type: telemetry.EventCommand, Data: data})
}

func (o *Orchestrator) publish(event telemetry.Event) {
	if o.hub == nil {
		return
	}
	if err := o.hub.PublishTransmitter(o.agg.Name(), event); err != nil {
		logrus.WithError(err).WithField("type", event.Type).Debug("Telemetry publish failed")
	}
}

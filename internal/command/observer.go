package command

import (
	"github.com/radio-control/txagg/internal/multitx"
	"github.com/radio-control/txagg/internal/telemetry"
)

// TelemetryObserver publishes latency decisions of aggregates to the hub
// and forwards every observation to Next.
type TelemetryObserver struct {
	Hub  *telemetry.Hub
	Next multitx.Observer
}

var _ multitx.Observer = (*TelemetryObserver)(nil)

// NewTelemetryObserver returns an observer publishing to hub. A nil next
// defaults to multitx.NopObserver.
func NewTelemetryObserver(hub *telemetry.Hub, next multitx.Observer) *TelemetryObserver {
	if next == nil {
		next = multitx.NopObserver{}
	}
	return &TelemetryObserver{Hub: hub, Next: next}
}

func (o *TelemetryObserver) Initialized(aggregate string, members []string, simulcast bool) {
	o.Next.Initialized(aggregate, members, simulcast)
}

func (o *TelemetryObserver) ReleaseFailed(aggregate, member string, err error) {
	o.Next.ReleaseFailed(aggregate, member, err)
}

func (o *TelemetryObserver) LatencyApplied(aggregate string, latencyMs int, holder string) {
	o.Next.LatencyApplied(aggregate, latencyMs, holder)
	o.publish(aggregate, map[string]interface{}{
		"phase":     "applied",
		"latencyMs": latencyMs,
		"holder":    holder,
	})
}

func (o *TelemetryObserver) LatencyStaged(aggregate string, nextMs, systemMs int) {
	o.Next.LatencyStaged(aggregate, nextMs, systemMs)
	o.publish(aggregate, map[string]interface{}{
		"phase":           "staged",
		"nextLatencyMs":   nextMs,
		"systemLatencyMs": systemMs,
	})
}

func (o *TelemetryObserver) LatencyCommitted(aggregate string, fromMs, toMs int) {
	o.Next.LatencyCommitted(aggregate, fromMs, toMs)
	o.publish(aggregate, map[string]interface{}{
		"phase":     "committed",
		"fromMs":    fromMs,
		"latencyMs": toMs,
	})
}

// EdgeEmitted is only forwarded; state edges reach telemetry through the
// orchestrator's subscription.
func (o *TelemetryObserver) EdgeEmitted(aggregate string, transmitting bool) {
	o.Next.EdgeEmitted(aggregate, transmitting)
}

func (o *TelemetryObserver) publish(aggregate string, data map[string]interface{}) {
	if o.Hub == nil {
		return
	}
	_ = o.Hub.PublishTransmitter(aggregate, telemetry.Event{Type: telemetry.EventLatency, Data: data})
}

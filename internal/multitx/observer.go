package multitx

import "github.com/sirupsen/logrus"

// Observer is notified at the aggregate's lifecycle and state transitions. Calls are made
// on the aggregate's execution context and must not block.
type Observer interface {
	// Initialized is called once every member is built and attached.
	Initialized(aggregate string, members []string, simulcast bool)

	// ReleaseFailed is called when closing a member after a failed
	// initialization returns an error.
	ReleaseFailed(aggregate, member string, err error)

	// LatencyApplied is called when the system latency is raised
	// immediately. holder is empty when the simulcast floor was applied.
	LatencyApplied(aggregate string, latencyMs int, holder string)

	// LatencyStaged is called when a reduction is computed but deferred.
	LatencyStaged(aggregate string, nextMs, systemMs int)

	// LatencyCommitted is called when a staged value changes the system
	// latency at a transmit-state transition.
	LatencyCommitted(aggregate string, fromMs, toMs int)

	// EdgeEmitted is called for every aggregate transmit-state change.
	EdgeEmitted(aggregate string, transmitting bool)
}

// NopObserver ignores everything.
type NopObserver struct{}

func (NopObserver) Initialized(string, []string, bool)  {}
func (NopObserver) ReleaseFailed(string, string, error) {}
func (NopObserver) LatencyApplied(string, int, string)  {}
func (NopObserver) LatencyStaged(string, int, int)      {}
func (NopObserver) LatencyCommitted(string, int, int)   {}
func (NopObserver) EdgeEmitted(string, bool)            {}

// LogObserver logs transitions through logrus.
type LogObserver struct {
	Logger logrus.FieldLogger
}

// NewLogObserver creates an observer logging to logger, or to the standard
// logrus logger when logger is nil.
func NewLogObserver(logger logrus.FieldLogger) *LogObserver {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogObserver{Logger: logger}
}

func (o *LogObserver) Initialized(aggregate string, members []string, simulcast bool) {
	o.Logger.WithFields(logrus.Fields{
		"aggregate":    aggregate,
		"transmitters": members,
		"simulcast":    simulcast,
	}).Info("Multi transmitter initialized")
}

func (o *LogObserver) ReleaseFailed(aggregate, member string, err error) {
	o.Logger.WithFields(logrus.Fields{
		"aggregate":   aggregate,
		"transmitter": member,
		"error":       err,
	}).Warn("Failed to release transmitter")
}

func (o *LogObserver) LatencyApplied(aggregate string, latencyMs int, holder string) {
	o.Logger.WithFields(logrus.Fields{
		"aggregate":  aggregate,
		"latency_ms": latencyMs,
		"holder":     holder,
	}).Info("System latency raised")
}

func (o *LogObserver) LatencyStaged(aggregate string, nextMs, systemMs int) {
	o.Logger.WithFields(logrus.Fields{
		"aggregate":  aggregate,
		"next_ms":    nextMs,
		"latency_ms": systemMs,
	}).Debug("Latency change staged")
}

func (o *LogObserver) LatencyCommitted(aggregate string, fromMs, toMs int) {
	o.Logger.WithFields(logrus.Fields{
		"aggregate": aggregate,
		"from_ms":   fromMs,
		"to_ms":     toMs,
	}).Info("Staged latency committed")
}

func (o *LogObserver) EdgeEmitted(aggregate string, transmitting bool) {
	o.Logger.WithFields(logrus.Fields{
		"aggregate":    aggregate,
		"transmitting": transmitting,
	}).Debug("Aggregate transmit state changed")
}

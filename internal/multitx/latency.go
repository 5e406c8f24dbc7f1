package multitx

import "github.com/radio-control/txagg/internal/tx"

// latencyState is the phase of the latency consensus.
type latencyState int

const (
	// latencyStable means no reduction is waiting; next equals system.
	latencyStable latencyState = iota

	// latencyReductionPending means a lower value is staged in next and
	// takes effect at the next aggregate transmit-state transition.
	latencyReductionPending
)

func (s latencyState) String() string {
	switch s {
	case latencyStable:
		return "stable"
	case latencyReductionPending:
		return "reduction-pending"
	default:
		return "unknown"
	}
}

// latencyAction tells the aggregate what a report requires of it.
type latencyAction int

const (
	latencyRecorded latencyAction = iota // nothing to push
	latencyApplied                       // system raised, push now
	latencyStaged                        // next recomputed, push at next edge
)

type latencyReport struct {
	src tx.Transmitter
	ms  int
}

// latencyConsensus keeps one system latency for a set of transmitters whose
// own requirements change at arbitrary times. Increases apply immediately;
// reductions are staged and only take effect through commit.
type latencyConsensus struct {
	state  latencyState
	system int
	next   int
	floor  int
	holder tx.Transmitter

	// Last report per transmitter, in order of first report.
	reports []latencyReport
}

// setFloor establishes the minimum latency. A floor above the current
// system latency applies immediately, and reports whether it did.
func (c *latencyConsensus) setFloor(ms int) bool {
	c.floor = ms
	if ms > c.system {
		c.system = ms
		c.next = ms
		c.state = latencyStable
		return true
	}
	if c.next < ms {
		c.next = ms
		if c.next == c.system {
			c.state = latencyStable
		}
	}
	return false
}

// report records ms for src and advances the consensus.
func (c *latencyConsensus) report(src tx.Transmitter, ms int) latencyAction {
	c.record(src, ms)

	if ms > c.system {
		c.system = ms
		c.next = ms
		c.holder = src
		c.state = latencyStable
		return latencyApplied
	}

	// While a reduction is pending every report restages, so that a
	// transmitter raising its value below system is not lost at commit.
	if c.state == latencyReductionPending || (src == c.holder && ms < c.system) {
		c.stage()
		return latencyStaged
	}
	return latencyRecorded
}

// commit applies the staged value. It reports whether system changed.
func (c *latencyConsensus) commit() bool {
	prev := c.system
	c.system = c.next
	c.state = latencyStable
	return c.system != prev
}

func (c *latencyConsensus) stage() {
	next := c.floor
	var holder tx.Transmitter
	best := -1
	for _, r := range c.reports {
		if r.ms > best {
			best = r.ms
			holder = r.src
		}
	}
	if best > next {
		next = best
	}

	c.next = next
	c.holder = holder
	if c.next == c.system {
		c.state = latencyStable
	} else {
		c.state = latencyReductionPending
	}
}

func (c *latencyConsensus) record(src tx.Transmitter, ms int) {
	for i := range c.reports {
		if c.reports[i].src == src {
			c.reports[i].ms = ms
			return
		}
	}
	c.reports = append(c.reports, latencyReport{src: src, ms: ms})
}

// latencyOf returns the last value src reported.
func (c *latencyConsensus) latencyOf(src tx.Transmitter) (int, bool) {
	for _, r := range c.reports {
		if r.src == src {
			return r.ms, true
		}
	}
	return 0, false
}

func (c *latencyConsensus) pending() bool {
	return c.state == latencyReductionPending
}

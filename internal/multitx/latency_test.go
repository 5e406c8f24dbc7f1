package multitx

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/radio-control/txagg/internal/tx/fake"
)

func TestLatencyConsensusIncreaseAppliesImmediately(t *testing.T) {
	var c latencyConsensus
	a, b := fake.NewFakeTx("A"), fake.NewFakeTx("B")

	assert.Equal(t, latencyApplied, c.report(a, 10))
	assert.Equal(t, latencyApplied, c.report(b, 30))
	assert.Equal(t, 30, c.system)
	assert.Equal(t, 30, c.next)
	assert.Same(t, b, c.holder)
	assert.False(t, c.pending())
}

func TestLatencyConsensusNonHolderDecreaseOnlyRecords(t *testing.T) {
	var c latencyConsensus
	a, b := fake.NewFakeTx("A"), fake.NewFakeTx("B")

	c.report(a, 10)
	c.report(b, 30)
	assert.Equal(t, latencyRecorded, c.report(a, 5))
	assert.Equal(t, 30, c.system)
	assert.False(t, c.pending())

	ms, ok := c.latencyOf(a)
	assert.True(t, ok)
	assert.Equal(t, 5, ms)
}

func TestLatencyConsensusHolderDecreaseStages(t *testing.T) {
	var c latencyConsensus
	a, b, d := fake.NewFakeTx("A"), fake.NewFakeTx("B"), fake.NewFakeTx("C")

	c.report(a, 10)
	c.report(b, 30)
	c.report(d, 20)

	assert.Equal(t, latencyStaged, c.report(b, 5))
	assert.Equal(t, 30, c.system)
	assert.Equal(t, 20, c.next)
	assert.Same(t, d, c.holder)
	assert.True(t, c.pending())

	assert.True(t, c.commit())
	assert.Equal(t, 20, c.system)
	assert.False(t, c.pending())
	assert.False(t, c.commit(), "second commit must not change anything")
}

func TestLatencyConsensusPendingRestagesOnAnyReport(t *testing.T) {
	var c latencyConsensus
	a, b := fake.NewFakeTx("A"), fake.NewFakeTx("B")

	c.report(a, 10)
	c.report(b, 30)
	c.report(b, 5)
	assert.Equal(t, 10, c.next)

	// A raises below system; the staged value must follow or the commit
	// would under-provision A.
	assert.Equal(t, latencyStaged, c.report(a, 25))
	assert.Equal(t, 25, c.next)
	assert.Same(t, a, c.holder)
}

func TestLatencyConsensusHolderBackToSystemCancelsReduction(t *testing.T) {
	var c latencyConsensus
	a, b := fake.NewFakeTx("A"), fake.NewFakeTx("B")

	c.report(a, 30)
	c.report(b, 30)
	assert.Same(t, a, c.holder)

	assert.Equal(t, latencyStaged, c.report(a, 10))
	assert.Equal(t, 30, c.next)
	assert.False(t, c.pending(), "B still needs 30")
	assert.Same(t, b, c.holder)
}

func TestLatencyConsensusFloor(t *testing.T) {
	var c latencyConsensus
	a := fake.NewFakeTx("A")

	assert.True(t, c.setFloor(10))
	assert.Equal(t, 10, c.system)

	assert.Equal(t, latencyRecorded, c.report(a, 5))
	assert.Equal(t, latencyApplied, c.report(a, 40))
	assert.Equal(t, latencyStaged, c.report(a, 2))
	assert.Equal(t, 10, c.next, "staged value respects the floor")

	c.commit()
	assert.Equal(t, 10, c.system)
	assert.False(t, c.setFloor(5))
}

func TestLatencyStateString(t *testing.T) {
	assert.Equal(t, "stable", latencyStable.String())
	assert.Equal(t, "reduction-pending", latencyReductionPending.String())
	assert.Equal(t, "unknown", latencyState(7).String())
}

package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// limitedSink accepts at most limit samples per call and records everything
// it accepted.
type limitedSink struct {
	limit    int
	received []float32
	flushes  int
}

func (s *limitedSink) WriteSamples(samples []float32) int {
	n := len(samples)
	if s.limit > 0 && n > s.limit {
		n = s.limit
	}
	s.received = append(s.received, samples[:n]...)
	return n
}

func (s *limitedSink) FlushSamples() {
	s.flushes++
}

func ramp(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i)
	}
	return out
}

func TestSplitterNoSinksAcceptsEverything(t *testing.T) {
	s := NewSplitter()
	assert.Equal(t, 10, s.WriteSamples(ramp(10)))
}

func TestSplitterDuplicatesToAllSinks(t *testing.T) {
	s := NewSplitter()
	a, b := &limitedSink{}, &limitedSink{}
	s.AddSink(a)
	s.AddSink(b)

	in := ramp(8)
	require.Equal(t, 8, s.WriteSamples(in))
	assert.Equal(t, in, a.received)
	assert.Equal(t, in, b.received)
}

func TestSplitterBackpressureRetryDeliversEachSampleOnce(t *testing.T) {
	s := NewSplitter()
	fast := &limitedSink{}
	slow := &limitedSink{limit: 3}
	s.AddSink(fast)
	s.AddSink(slow)

	in := ramp(10)
	remaining := in
	for rounds := 0; len(remaining) > 0; rounds++ {
		require.Less(t, rounds, 10, "splitter made no progress")
		n := s.WriteSamples(remaining)
		remaining = remaining[n:]
	}

	assert.Equal(t, in, fast.received, "fast sink must not see duplicated samples")
	assert.Equal(t, in, slow.received)
}

func TestSplitterReturnsSmallestAcceptedCount(t *testing.T) {
	s := NewSplitter()
	s.AddSink(&limitedSink{limit: 5})
	s.AddSink(&limitedSink{limit: 2})

	assert.Equal(t, 2, s.WriteSamples(ramp(10)))
}

func TestSplitterFlushResetsPartialBlocks(t *testing.T) {
	s := NewSplitter()
	fast := &limitedSink{}
	slow := &limitedSink{limit: 1}
	s.AddSink(fast)
	s.AddSink(slow)

	require.Equal(t, 1, s.WriteSamples(ramp(4)))
	s.FlushSamples()

	assert.Equal(t, 1, fast.flushes)
	assert.Equal(t, 1, slow.flushes)

	fast.received = nil
	s.WriteSamples([]float32{42})
	assert.Equal(t, []float32{42}, fast.received)
}

func TestSplitterRemoveSink(t *testing.T) {
	s := NewSplitter()
	a, b := &limitedSink{}, &limitedSink{}
	s.AddSink(a)
	s.AddSink(b)
	s.RemoveSink(a)
	s.RemoveSink(&limitedSink{})

	require.Equal(t, 1, s.Len())
	s.WriteSamples(ramp(3))
	assert.Empty(t, a.received)
	assert.Len(t, b.received, 3)
}

func TestSamplesFor(t *testing.T) {
	assert.Equal(t, FrameSize, SamplesFor(20*time.Millisecond))
	assert.Equal(t, SampleRate, SamplesFor(time.Second))
}

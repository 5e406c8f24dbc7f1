package audio

import "time"

// SampleRate is the internal sample rate of every audio path, in Hz.
const SampleRate = 16000

// FrameSize is the number of samples in one 20 ms block.
const FrameSize = SampleRate / 50

// Sink receives audio samples.
type Sink interface {
	// WriteSamples offers samples to the sink and returns how many were
	// accepted. A short count means the caller must retry the rest later.
	WriteSamples(samples []float32) int

	// FlushSamples tells the sink that the current stream has ended.
	FlushSamples()
}

// SamplesFor returns the number of samples covering d at SampleRate.
func SamplesFor(d time.Duration) int {
	return int(d * SampleRate / time.Second)
}

// branch tracks how far one sink has consumed the block currently offered
// to the splitter.
type branch struct {
	sink  Sink
	ahead int
}

// Splitter duplicates a single audio stream to any number of sinks, each
// with independent backpressure.
//
// The splitter returns the smallest count accepted by any sink. Sinks that
// accepted more are not offered those samples again when the source retries
// the remainder.
type Splitter struct {
	branches []*branch
}

// NewSplitter creates an empty splitter.
func NewSplitter() *Splitter {
	return &Splitter{}
}

// AddSink appends a sink. Sinks are written in the order they were added.
func (s *Splitter) AddSink(sink Sink) {
	s.branches = append(s.branches, &branch{sink: sink})
}

// RemoveSink detaches a sink. Removing an unknown sink is a no-op.
func (s *Splitter) RemoveSink(sink Sink) {
	for i, b := range s.branches {
		if b.sink == sink {
			s.branches = append(s.branches[:i], s.branches[i+1:]...)
			return
		}
	}
}

// Len returns the number of attached sinks.
func (s *Splitter) Len() int {
	return len(s.branches)
}

// WriteSamples offers samples to every sink and returns the number of
// samples accepted by all of them.
func (s *Splitter) WriteSamples(samples []float32) int {
	if len(s.branches) == 0 {
		return len(samples)
	}

	accepted := len(samples)
	for _, b := range s.branches {
		if b.ahead < len(samples) {
			b.ahead += b.sink.WriteSamples(samples[b.ahead:])
		}
		if b.ahead < accepted {
			accepted = b.ahead
		}
	}

	for _, b := range s.branches {
		b.ahead -= accepted
	}
	return accepted
}

// FlushSamples flushes every sink and forgets partially consumed blocks.
func (s *Splitter) FlushSamples() {
	for _, b := range s.branches {
		b.ahead = 0
		b.sink.FlushSamples()
	}
}

// Package audio provides the sample sink contract and the fan-out node that
// duplicates one audio stream to several transmitters.
//
// Audio moves as blocks of float32 samples at SampleRate. A sink may accept
// fewer samples than offered; the returned count is the backpressure signal
// and the source retries the remainder later. Nothing in this package blocks.
package audio

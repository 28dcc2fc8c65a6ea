package sdr

import (
	"context"
	"errors"
)

var (
	// ErrAlreadyStreaming is returned when Start is called on a running streamer
	ErrAlreadyStreaming = errors.New("streamer is already running")

	// ErrStreamStopped is delivered when a stream ends without being asked to
	ErrStreamStopped = errors.New("stream stopped unexpectedly")
)

// Sample is a single complex baseband sample: float32 I and Q.
type Sample = complex64

// Sink receives batches of samples from a streamer. Write is called from the
// streaming goroutine, must not block and must not retain the slice.
type Sink interface {
	Write(samples []Sample)
}

// StreamConfig is what a streamer needs to know to begin producing samples.
type StreamConfig struct {
	SampleRate       float64 // Hz
	CenterFreq       float64 // Hz
	IntermediateFreq float64 // Hz, transmitted tone mixed out of the receive path
	Gain             float64 // dB, clamped by the streamer to its hardware range
}

// Streamer is a radio front end that can be told to begin streaming complex
// samples into a sink and to stop again.
type Streamer interface {
	// Start begins streaming. The returned channel is closed once streaming
	// has stopped; it receives an error first if streaming ended abnormally.
	Start(ctx context.Context, cfg StreamConfig, sink Sink) (<-chan error, error)

	// Stop ends streaming and waits for the producer to exit. No sink writes
	// happen after Stop returns.
	Stop()

	// IsStreaming reports whether samples are currently being produced.
	IsStreaming() bool
}

package sdr

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// SyntheticBlockSize is the default number of samples produced per tick
	SyntheticBlockSize = 16384
)

// WithSyntheticLogger sets the logger for the synthetic streamer
func WithSyntheticLogger(logger *slog.Logger) func(s *Synthetic) {
	return func(s *Synthetic) {
		s.logger = logger.With(slog.String("device", "synthetic"))
	}
}

// WithBeat sets the Doppler shift of the simulated target echo in Hz. The echo
// is received at IF + freq and mixed as tx·conj(rx), so the samples written to
// the sink carry the beat at -freq: an approaching target (positive shift)
// shows up below 0 Hz in the baseband spectrum.
func WithBeat(freq float64) func(s *Synthetic) {
	return func(s *Synthetic) {
		s.beat = freq
	}
}

// WithEcho sets the amplitude of the simulated target echo
func WithEcho(amplitude float64) func(s *Synthetic) {
	return func(s *Synthetic) {
		s.echo = amplitude
	}
}

// WithLeakage sets the amplitude of direct transmit bleed into the receiver
func WithLeakage(amplitude float64) func(s *Synthetic) {
	return func(s *Synthetic) {
		s.leakage = amplitude
	}
}

// WithNoise sets the standard deviation of the receiver noise per component
func WithNoise(stdDev float64) func(s *Synthetic) {
	return func(s *Synthetic) {
		s.noise = stdDev
	}
}

// WithBlockSize sets the number of samples delivered to the sink per write
func WithBlockSize(n int) func(s *Synthetic) {
	return func(s *Synthetic) {
		if n > 0 {
			s.blockSize = n
		}
	}
}

// WithSeed makes the generated noise reproducible
func WithSeed(seed uint64) func(s *Synthetic) {
	return func(s *Synthetic) {
		s.seed = seed
	}
}

// Synthetic is a streamer that simulates the radar receive path: a Doppler
// shifted echo of the IF tone, transmit leakage and Gaussian noise, mixed
// against the IF reference exactly as the hardware path is. Samples are
// paced to the configured sample rate.
type Synthetic struct {
	beat      float64
	echo      float64
	leakage   float64
	noise     float64
	blockSize int
	seed      uint64

	isStreaming atomic.Bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup

	logger *slog.Logger
}

// NewSynthetic creates a synthetic streamer with a discard logger
func NewSynthetic(options ...func(s *Synthetic)) *Synthetic {
	s := Synthetic{
		echo:      1,
		leakage:   0.5,
		noise:     0.1,
		blockSize: SyntheticBlockSize,
		seed:      uint64(time.Now().UnixNano()),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

func (s *Synthetic) Start(ctx context.Context, cfg StreamConfig, sink Sink) (<-chan error, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %.0f", cfg.SampleRate)
	}
	if !s.isStreaming.CompareAndSwap(false, true) {
		return nil, ErrAlreadyStreaming
	}

	ctx, s.cancel = context.WithCancel(ctx)
	stopped := make(chan error, 1)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(stopped)
		defer s.isStreaming.Store(false)

		s.logger.Info("starting synthetic stream...",
			slog.Float64("sampleRate", cfg.SampleRate),
			slog.Float64("beat", s.beat))

		s.run(ctx, cfg, sink)

		s.logger.Info("synthetic stream stopped")
	}()

	return stopped, nil
}

func (s *Synthetic) Stop() {
	if s.cancel == nil {
		return // never started
	}

	s.cancel()
	s.wg.Wait()
}

func (s *Synthetic) IsStreaming() bool {
	return s.isStreaming.Load()
}

func (s *Synthetic) run(ctx context.Context, cfg StreamConfig, sink Sink) {
	var (
		echo  = NewOscillator(cfg.IntermediateFreq+s.beat, cfg.SampleRate)
		leak  = NewOscillator(cfg.IntermediateFreq, cfg.SampleRate)
		mixer = NewMixer(cfg.IntermediateFreq, cfg.SampleRate)
		rng   = rand.New(rand.NewPCG(s.seed, s.seed^0x9e3779b97f4a7c15))
		block = make([]Sample, s.blockSize)
	)

	period := time.Duration(float64(s.blockSize) / cfg.SampleRate * float64(time.Second))
	ticker := time.NewTicker(max(period, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for i := range block {
			rx := complex(s.echo, 0)*echo.Next() + complex(s.leakage, 0)*leak.Next()
			rx += complex(rng.NormFloat64()*s.noise, rng.NormFloat64()*s.noise)
			block[i] = complex64(rx)
		}
		mixer.Mix(block, block)

		sink.Write(block)
	}
}

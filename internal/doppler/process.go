// Package doppler turns a saved radar capture into a track of dominant beat
// frequencies and the peak radial velocity of the target.
package doppler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/cw-radar/internal/config"
	"github.com/roman-kulish/cw-radar/internal/dsp"
	"github.com/roman-kulish/cw-radar/internal/iq"
)

var (
	// ErrEmptyCapture is returned when there are no samples to analyse,
	// including when no capture file was ever written
	ErrEmptyCapture = errors.New("empty capture")
)

// Result is the outcome of analysing one capture.
type Result struct {
	Samples       int     // raw samples analysed
	DecimatedRate float64 // Hz
	Grid          *Grid
	Track         *Track
	PeakVelocity  float64 // m/s, largest absolute velocity over the track
	PeakFrequency float64 // Hz, dominant frequency of the peak column
	PeakTime      float64 // s, from the start of the capture
	Elapsed       time.Duration
}

// WithLogger sets the logger for the processor
func WithLogger(logger *slog.Logger) func(p *Processor) {
	return func(p *Processor) {
		p.logger = logger.With(slog.String("component", "doppler"))
	}
}

// WithWorkers limits the number of goroutines computing spectrogram columns
func WithWorkers(n int) func(p *Processor) {
	return func(p *Processor) {
		p.workers = n
	}
}

// Processor runs the offline analysis pipeline: leakage rejection, anti-alias
// filtering and decimation, spectrogram, power gating and Doppler inversion.
type Processor struct {
	workers int
	logger  *slog.Logger
}

// NewProcessor creates a Processor with a discard logger
func NewProcessor(options ...func(p *Processor)) *Processor {
	p := Processor{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&p)
	}

	return &p
}

// ProcessCapture analyses the capture file at path with the default processor.
func ProcessCapture(ctx context.Context, path string, cfg config.Config) (*Result, error) {
	return NewProcessor().ProcessCapture(ctx, path, cfg)
}

// ProcessCapture reads a raw capture file and analyses it. The file is
// headerless, so the rate and all filter parameters come from cfg. A missing
// or zero-length file is reported as ErrEmptyCapture.
func (p *Processor) ProcessCapture(ctx context.Context, path string, cfg config.Config) (*Result, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}

	samples, err := iq.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", ErrEmptyCapture, err)
		}
		return nil, fmt.Errorf("error reading capture: %w", err)
	}

	p.logger.Info("capture loaded",
		slog.String("path", path),
		slog.Int("samples", len(samples)),
		slog.String("size", humanize.IBytes(uint64(len(samples)*iq.SampleBytes))))

	return p.Process(ctx, samples, cfg)
}

// Process analyses captured samples.
func (p *Processor) Process(ctx context.Context, samples []complex64, cfg config.Config) (*Result, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, ErrEmptyCapture
	}

	started := time.Now()

	x := make([]complex128, len(samples))
	for i, s := range samples {
		x[i] = complex128(s)
	}

	x, err := dsp.HighPass(x, cfg.SampleRate, cfg.HighPassCutoff)
	if err != nil {
		return nil, fmt.Errorf("high pass: %w", err)
	}
	if err = ctx.Err(); err != nil {
		return nil, err
	}

	x, err = dsp.LowPassDecimate(x, cfg.SampleRate, cfg.EffectiveLowPassCutoff(), cfg.Decimation)
	if err != nil {
		return nil, fmt.Errorf("low pass: %w", err)
	}
	if err = ctx.Err(); err != nil {
		return nil, err
	}

	Normalize(x)

	rate := cfg.DecimatedRate()
	grid, err := Spectrogram(ctx, x, rate, cfg.FFTSize, cfg.FFTOverlap, p.workers)
	if err != nil {
		return nil, fmt.Errorf("spectrogram: %w", err)
	}

	track := DominantTrack(grid, cfg.CarrierFreq)
	peak := track.Peak()

	result := Result{
		Samples:       len(samples),
		DecimatedRate: rate,
		Grid:          grid,
		Track:         track,
		PeakVelocity:  track.PeakVelocity(),
		PeakFrequency: track.Frequency[peak],
		PeakTime:      track.Times[peak],
		Elapsed:       time.Since(started),
	}

	p.logger.Info("capture processed",
		slog.Int("columns", len(track.Times)),
		slog.Float64("threshold", track.Threshold),
		slog.Float64("peakVelocity", result.PeakVelocity),
		slog.String("peakFrequency", humanize.SIWithDigits(result.PeakFrequency, 1, "Hz")),
		slog.Duration("elapsed", result.Elapsed))

	return &result, nil
}

// validate rejects parameter sets before any samples are touched.
func validate(cfg config.Config) error {
	if err := cfg.ValidateProcessing(); err != nil {
		return err
	}
	if err := dsp.ValidateHighPass(cfg.SampleRate, cfg.HighPassCutoff); err != nil {
		return err
	}
	return dsp.ValidateLowPassDecimate(cfg.SampleRate, cfg.EffectiveLowPassCutoff(), cfg.Decimation)
}

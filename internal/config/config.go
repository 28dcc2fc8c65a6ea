package config

import (
	"fmt"
	"math"
	"time"
)

const (
	SampleRateMin       = 1_000_000
	SampleRateMax       = 10_000_000
	IntermediateFreqMin = 1_000_000
	GainMin             = 0
	GainMax             = 60
	RecordWindowMax     = 10 * time.Second

	// BufferCapacityMax bounds the ingest buffer to 2 GiB of samples.
	BufferCapacityMax = 1 << 28

	// BufferWindows is the number of record windows held by the ingest buffer:
	// one before the trigger and one after it.
	BufferWindows = 2
)

// ValidationError reports an out-of-range configuration parameter.
type ValidationError struct {
	Field string
	msg   string
}

func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, msg: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config.Config: invalid %s: %s", e.Field, e.msg)
}

// Config is an immutable radar session configuration. It is built once per
// session and passed by value to the capture controller and to the offline
// processing pipeline.
type Config struct {
	SampleRate       float64  `yaml:"sampleRate" json:"sampleRate"`             // Hz, complex samples per second
	RFFreq           float64  `yaml:"rfFreq" json:"rfFreq"`                     // Hz, front end centre frequency
	CarrierFreq      float64  `yaml:"carrierFreq" json:"carrierFreq"`           // Hz, physical carrier used for Doppler inversion
	IntermediateFreq float64  `yaml:"intermediateFreq" json:"intermediateFreq"` // Hz, transmitted IF tone
	Gain             float64  `yaml:"gain" json:"gain"`                         // dB
	RecordWindow     Duration `yaml:"recordWindow" json:"recordWindow"`         // symmetric pre/post trigger interval

	Decimation     int     `yaml:"decimation" json:"decimation"`
	HighPassCutoff float64 `yaml:"highPassCutoff" json:"highPassCutoff"` // Hz, at the raw rate
	LowPassCutoff  float64 `yaml:"lowPassCutoff" json:"lowPassCutoff"`   // Hz, 0 means IntermediateFreq / Decimation
	FFTSize        int     `yaml:"fftSize" json:"fftSize"`
	FFTOverlap     int     `yaml:"fftOverlap" json:"fftOverlap"`

	OutputPath string `yaml:"outputPath" json:"outputPath"`
}

// Default returns the configuration the radar has been calibrated with.
func Default() Config {
	return Config{
		SampleRate:       6_000_000,
		RFFreq:           1_000_000_000,
		CarrierFreq:      85_000_000_000,
		IntermediateFreq: 1_500_000,
		Gain:             27,
		RecordWindow:     NewDuration(2 * time.Second),
		Decimation:       80,
		HighPassCutoff:   1_000,
		FFTSize:          1024,
		FFTOverlap:       512,
		OutputPath:       "capture.bin",
	}
}

// Validate checks the parameters required to arm the radar. A session that
// passes can also be processed once the capture is saved.
func (c Config) Validate() error {
	if !inRange(c.SampleRate, SampleRateMin, SampleRateMax) {
		return NewValidationError("sampleRate", "%.0f Hz, must be between %d and %d Hz", c.SampleRate, SampleRateMin, SampleRateMax)
	}
	if !inRange(c.IntermediateFreq, IntermediateFreqMin, math.MaxFloat64) {
		return NewValidationError("intermediateFreq", "%.0f Hz, must be at least %d Hz", c.IntermediateFreq, IntermediateFreqMin)
	}
	if !inRange(c.Gain, GainMin, GainMax) {
		return NewValidationError("gain", "%.1f dB, must be between %d and %d dB", c.Gain, GainMin, GainMax)
	}
	if !(c.RFFreq > 0 && c.RFFreq <= math.MaxFloat64) {
		return NewValidationError("rfFreq", "must be positive: %.0f", c.RFFreq)
	}
	if err := c.RecordWindow.Validate(); err != nil {
		return NewValidationError("recordWindow", "%s", err)
	}
	if c.RecordWindow.Duration() > RecordWindowMax {
		return NewValidationError("recordWindow", "%s, must be at most %s", c.RecordWindow, RecordWindowMax)
	}
	if n := c.BufferCapacity(); n < 1 || n > BufferCapacityMax {
		return NewValidationError("recordWindow", "%s at %.0f Hz buffers %d samples, must be between 1 and %d",
			c.RecordWindow, c.SampleRate, n, BufferCapacityMax)
	}
	if c.OutputPath == "" {
		return NewValidationError("outputPath", "must not be empty")
	}

	if err := c.ValidateProcessing(); err != nil {
		return err
	}
	if hp := c.HighPassCutoff; !(hp > 0 && hp < c.SampleRate/2) {
		return NewValidationError("highPassCutoff", "%.0f Hz, must be in (0, %.0f) Hz", hp, c.SampleRate/2)
	}
	if lp, nyquist := c.EffectiveLowPassCutoff(), c.DecimatedRate()/2; !(lp > 0 && lp < nyquist) {
		return NewValidationError("lowPassCutoff", "%.0f Hz, must be in (0, %.0f) Hz after decimation by %d", lp, nyquist, c.Decimation)
	}

	return nil
}

// ValidateProcessing checks the parameters required to analyse a capture.
// Filter cutoffs are checked by the filter stage itself.
func (c Config) ValidateProcessing() error {
	if !(c.SampleRate > 0 && c.SampleRate <= math.MaxFloat64) {
		return NewValidationError("sampleRate", "must be positive: %.0f", c.SampleRate)
	}
	if !(c.CarrierFreq > 0 && c.CarrierFreq <= math.MaxFloat64) {
		return NewValidationError("carrierFreq", "must be positive: %.0f", c.CarrierFreq)
	}
	if c.Decimation < 1 {
		return NewValidationError("decimation", "must be at least 1: %d", c.Decimation)
	}
	if c.FFTSize < 2 {
		return NewValidationError("fftSize", "must be at least 2: %d", c.FFTSize)
	}
	if c.FFTOverlap < 0 || c.FFTOverlap >= c.FFTSize {
		return NewValidationError("fftOverlap", "%d, must be in [0, %d)", c.FFTOverlap, c.FFTSize)
	}

	return nil
}

// BufferCapacity is the number of samples retained by the ingest buffer.
// Parameters that do not describe a buffer give 0; sizes beyond
// BufferCapacityMax saturate at BufferCapacityMax + 1.
func (c Config) BufferCapacity() int {
	n := c.SampleRate * c.RecordWindow.Seconds() * BufferWindows
	switch {
	case !(n >= 1):
		return 0
	case n > BufferCapacityMax:
		return BufferCapacityMax + 1
	}
	return int(n)
}

// EffectiveLowPassCutoff returns the anti-alias cutoff applied before
// decimation.
func (c Config) EffectiveLowPassCutoff() float64 {
	if c.LowPassCutoff > 0 {
		return c.LowPassCutoff
	}
	if c.Decimation < 1 {
		return c.IntermediateFreq
	}
	return c.IntermediateFreq / float64(c.Decimation)
}

// DecimatedRate is the sample rate after the low-pass/decimate stage.
func (c Config) DecimatedRate() float64 {
	if c.Decimation < 1 {
		return c.SampleRate
	}
	return c.SampleRate / float64(c.Decimation)
}

// inRange reports whether lo <= x <= hi. NaN is never in range.
func inRange(x, lo, hi float64) bool {
	return x >= lo && x <= hi
}

package config

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
		field  string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"rate at lower bound", func(c *Config) {
			c.SampleRate = 1_000_000
			c.LowPassCutoff = 5_000
		}, ""},
		{"rate at upper bound", func(c *Config) { c.SampleRate = 10_000_000 }, ""},
		{"rate too low", func(c *Config) { c.SampleRate = 999_999 }, "sampleRate"},
		{"rate too high", func(c *Config) { c.SampleRate = 10_000_001 }, "sampleRate"},
		{"if too low", func(c *Config) { c.IntermediateFreq = 500_000 }, "intermediateFreq"},
		{"gain negative", func(c *Config) { c.Gain = -1 }, "gain"},
		{"gain too high", func(c *Config) { c.Gain = 61 }, "gain"},
		{"gain at upper bound", func(c *Config) { c.Gain = 60 }, ""},
		{"zero window", func(c *Config) { c.RecordWindow = 0 }, "recordWindow"},
		{"window at upper bound", func(c *Config) { c.RecordWindow = NewDuration(RecordWindowMax) }, ""},
		{"window too long", func(c *Config) { c.RecordWindow = NewDuration(8760 * time.Hour) }, "recordWindow"},
		{"longest window at highest rate", func(c *Config) {
			c.SampleRate = SampleRateMax
			c.RecordWindow = NewDuration(RecordWindowMax)
		}, ""},
		{"window shorter than a sample", func(c *Config) { c.RecordWindow = NewDuration(time.Nanosecond) }, "recordWindow"},
		{"no output", func(c *Config) { c.OutputPath = "" }, "outputPath"},
		{"nan rate", func(c *Config) { c.SampleRate = math.NaN() }, "sampleRate"},
		{"nan gain", func(c *Config) { c.Gain = math.NaN() }, "gain"},
		{"nan intermediate frequency", func(c *Config) { c.IntermediateFreq = math.NaN() }, "intermediateFreq"},
		{"infinite intermediate frequency", func(c *Config) { c.IntermediateFreq = math.Inf(1) }, "intermediateFreq"},
		{"infinite rf", func(c *Config) { c.RFFreq = math.Inf(1) }, "rfFreq"},
		{"nan carrier", func(c *Config) { c.CarrierFreq = math.NaN() }, "carrierFreq"},
		{"zero decimation", func(c *Config) { c.Decimation = 0 }, "decimation"},
		{"overlap equals window", func(c *Config) { c.FFTOverlap = c.FFTSize }, "fftOverlap"},
		{"nan high pass", func(c *Config) { c.HighPassCutoff = math.NaN() }, "highPassCutoff"},
		{"high pass above nyquist", func(c *Config) { c.HighPassCutoff = 3_000_000 }, "highPassCutoff"},
		{"low pass above decimated nyquist", func(c *Config) { c.LowPassCutoff = 37_500 }, "lowPassCutoff"},
		{"default low pass at lowest rate", func(c *Config) { c.SampleRate = 1_000_000 }, "lowPassCutoff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.modify(&c)

			err := c.Validate()
			if tt.field == "" {
				require.NoError(t, err)
				return
			}

			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestConfig_ValidateProcessing(t *testing.T) {
	c := Default()
	require.NoError(t, c.ValidateProcessing())

	c.FFTOverlap = c.FFTSize
	assert.Error(t, c.ValidateProcessing())

	c = Default()
	c.Decimation = 0
	assert.Error(t, c.ValidateProcessing())
}

func TestConfig_Derived(t *testing.T) {
	c := Default()

	assert.Equal(t, 24_000_000, c.BufferCapacity())

	c.RecordWindow = NewDuration(8760 * time.Hour)
	assert.Equal(t, BufferCapacityMax+1, c.BufferCapacity(), "saturates instead of overflowing")

	c.SampleRate = math.NaN()
	assert.Zero(t, c.BufferCapacity())

	c = Default()
	assert.InDelta(t, 18_750.0, c.EffectiveLowPassCutoff(), 1e-9)
	assert.InDelta(t, 75_000.0, c.DecimatedRate(), 1e-9)

	c.LowPassCutoff = 10_000
	assert.InDelta(t, 10_000.0, c.EffectiveLowPassCutoff(), 1e-9)
}

func TestDuration_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"recordWindow: 2s", 2 * time.Second},
		{"recordWindow: 1500ms", 1500 * time.Millisecond},
		{"recordWindow: 3", 3 * time.Second},
		{"recordWindow: 0.5", 500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var c Config
			require.NoError(t, yaml.Unmarshal([]byte(tt.in), &c))
			assert.Equal(t, tt.want, c.RecordWindow.Duration())
		})
	}

	var c Config
	assert.Error(t, yaml.Unmarshal([]byte("recordWindow: soon"), &c))
}

func TestDuration_JSON(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"250ms"`)))
	assert.Equal(t, 250*time.Millisecond, d.Duration())

	require.NoError(t, d.UnmarshalJSON([]byte(`2`)))
	assert.Equal(t, 2*time.Second, d.Duration())

	b, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"2s"`, string(b))
}

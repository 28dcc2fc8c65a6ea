package app

import (
	"context"
	"image/jpeg"
	"io"
	"log/slog"
	"math"
	"math/cmplx"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/cw-radar/internal/iq"
	"github.com/roman-kulish/cw-radar/internal/plot"
)

func TestNewConfigFromCLI(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		c, err := NewConfigFromCLI([]string{"-i", "capture.bin", "-o", "out"}, io.Discard)
		require.NoError(t, err)
		assert.Equal(t, "out.png", c.OutputFile)
		assert.Equal(t, plot.ImagePNG, c.Format)
		assert.Equal(t, plot.EnhancedTheme, c.Theme)
		assert.Equal(t, 80, c.Radar.Decimation)
	})

	t.Run("overrides", func(t *testing.T) {
		c, err := NewConfigFromCLI([]string{
			"-i", "capture.bin", "-o", "out", "-f", "JPG", "-theme", "Marine",
			"-rate", "1000000", "-decimation", "20", "-fft", "256", "-overlap", "128",
			"-max-freq", "5000", "-no-track",
		}, io.Discard)
		require.NoError(t, err)
		assert.Equal(t, "out.jpeg", c.OutputFile)
		assert.Equal(t, plot.MarineTheme, c.Theme)
		assert.Equal(t, 1_000_000.0, c.Radar.SampleRate)
		assert.Equal(t, 20, c.Radar.Decimation)
		assert.Equal(t, 5000.0, c.MaxFrequency)
		assert.True(t, c.NoTrack)
	})

	tests := []struct {
		name string
		args []string
	}{
		{name: "no input", args: []string{"-o", "out"}},
		{name: "no output", args: []string{"-i", "capture.bin"}},
		{name: "bad format", args: []string{"-i", "capture.bin", "-o", "out", "-f", "bmp"}},
		{name: "bad theme", args: []string{"-i", "capture.bin", "-o", "out", "-theme", "rainbow"}},
		{name: "bad overlap", args: []string{"-i", "capture.bin", "-o", "out", "-overlap", "1024"}},
		{name: "unknown flag", args: []string{"-i", "capture.bin", "-o", "out", "-db", "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfigFromCLI(tt.args, io.Discard)
			assert.Error(t, err)
		})
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "capture.bin")

	x := make([]complex64, 200_000)
	for i := range x {
		x[i] = complex64(cmplx.Rect(1, -2*math.Pi*1500*float64(i)/1e6))
	}
	require.NoError(t, iq.NewWriter().WriteRaw(context.Background(), input, x))

	c, err := NewConfigFromCLI([]string{
		"-i", input, "-o", filepath.Join(dir, "spectrogram"), "-f", "jpeg",
		"-rate", "1000000", "-decimation", "20", "-lpf", "10000", "-fft", "256", "-overlap", "128",
	}, io.Discard)
	require.NoError(t, err)

	require.NoError(t, Run(context.Background(), c, slog.New(slog.NewTextHandler(io.Discard, nil))))

	f, err := os.Open(c.OutputFile)
	require.NoError(t, err)
	defer f.Close()

	_, err = jpeg.DecodeConfig(f)
	assert.NoError(t, err)

	c.InputPath = filepath.Join(dir, "missing.bin")
	assert.ErrorIs(t, Run(context.Background(), c, slog.New(slog.NewTextHandler(io.Discard, nil))), os.ErrNotExist)
}

package app

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/roman-kulish/cw-radar/internal/config"
	"github.com/roman-kulish/cw-radar/internal/plot"
)

type Config struct {
	InputPath     string
	OutputFile    string
	Format        plot.ImageFormat
	Theme         plot.ColorTheme
	MaxFrequency  float64
	Workers       int
	Verbose       bool
	NoAnnotations bool
	NoTrack       bool

	Radar config.Config
}

func NewConfig() *Config {
	return &Config{
		Format: plot.ImagePNG,
		Theme:  plot.EnhancedTheme,
		Radar:  config.Default(),
	}
}

// NewConfigFromCLI parses args, without the program name. Usage and errors
// are written to output.
func NewConfigFromCLI(args []string, output io.Writer) (*Config, error) {
	c := NewConfig()

	fs := flag.NewFlagSet("spectrogram", flag.ContinueOnError)
	fs.SetOutput(output)

	var imageFormat, theme string
	fs.StringVar(&c.InputPath, "i", "", "Path to the capture file")
	fs.StringVar(&c.OutputFile, "o", "", "Path to the output file, without extension")
	fs.StringVar(&imageFormat, "f", string(plot.ImagePNG), "Output image format. [png, jpeg]")
	fs.StringVar(&theme, "theme", string(plot.EnhancedTheme), "Color theme. [enhanced, classic, grayscale, jungle, thermal, marine]")
	fs.Float64Var(&c.MaxFrequency, "max-freq", 0, "Limit the frequency axis to ±Hz (0 draws the whole band)")
	fs.IntVar(&c.Workers, "workers", 0, "Spectrogram goroutines (0 uses all CPUs)")
	fs.BoolVar(&c.Verbose, "verbose", false, "Enable more verbose output")
	fs.BoolVar(&c.NoAnnotations, "no-annotations", false, "Disable annotations such as time and frequency scales")
	fs.BoolVar(&c.NoTrack, "no-track", false, "Do not overlay the Doppler track")

	fs.Float64Var(&c.Radar.SampleRate, "rate", c.Radar.SampleRate, "Capture sample rate in Hz")
	fs.Float64Var(&c.Radar.CarrierFreq, "carrier", c.Radar.CarrierFreq, "Radar carrier frequency in Hz")
	fs.Float64Var(&c.Radar.IntermediateFreq, "if", c.Radar.IntermediateFreq, "Intermediate frequency in Hz")
	fs.IntVar(&c.Radar.Decimation, "decimation", c.Radar.Decimation, "Decimation factor")
	fs.Float64Var(&c.Radar.HighPassCutoff, "hpf", c.Radar.HighPassCutoff, "High-pass cutoff in Hz")
	fs.Float64Var(&c.Radar.LowPassCutoff, "lpf", c.Radar.LowPassCutoff, "Low-pass cutoff in Hz (0 uses IF / decimation)")
	fs.IntVar(&c.Radar.FFTSize, "fft", c.Radar.FFTSize, "Analysis window size")
	fs.IntVar(&c.Radar.FFTOverlap, "overlap", c.Radar.FFTOverlap, "Analysis window overlap")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	var err error
	switch {
	case c.InputPath == "":
		err = errors.New("input path is required")
	case c.OutputFile == "":
		err = errors.New("output file is required")
	case c.Workers < 0:
		err = fmt.Errorf("invalid workers: %d", c.Workers)
	}
	if err == nil {
		c.Format, err = plot.ParseImageFormat(imageFormat)
	}
	if err == nil {
		c.Theme, err = plot.ParseColorTheme(strings.ToLower(theme))
	}
	if err == nil {
		err = c.Radar.ValidateProcessing()
	}

	if err != nil {
		fs.Usage()
		return nil, err
	}

	c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	return c, nil
}

package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/cw-radar/internal/doppler"
	"github.com/roman-kulish/cw-radar/internal/plot"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.InputPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("capture file '%s' does not exist: %w", config.InputPath, err)
	}

	processor := doppler.NewProcessor(doppler.WithLogger(logger), doppler.WithWorkers(config.Workers))

	logger.Info("processing capture", slog.String("path", config.InputPath))

	result, err := processor.ProcessCapture(ctx, config.InputPath, config.Radar)
	if err != nil {
		return fmt.Errorf("processing capture: %w", err)
	}

	logger.Info("finished processing capture",
		slog.Group("stats",
			slog.Int("columns", len(result.Grid.Times)),
			slog.Int("bins", len(result.Grid.Freqs)),
			slog.String("rate", humanize.SIWithDigits(result.DecimatedRate, 2, "Hz")),
			slog.String("peakVelocity", fmt.Sprintf("%0.3fm/s", result.PeakVelocity)),
			slog.String("peakFrequency", humanize.SIWithDigits(result.PeakFrequency, 3, "Hz")),
			slog.String("threshold", fmt.Sprintf("%0.2fdB", result.Track.Threshold)),
		))

	renderer := plot.NewRenderer(plot.RenderConfig{
		ColorTheme:    config.Theme,
		MaxFrequency:  config.MaxFrequency,
		NoTrack:       config.NoTrack,
		NoAnnotations: config.NoAnnotations,
	})

	img, err := renderer.Render(result.Grid, result.Track)
	if err != nil {
		return fmt.Errorf("rendering spectrogram: %w", err)
	}

	logger.Info("writing spectrogram",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.String("theme", string(config.Theme)),
			slog.Int("width", img.Bounds().Dx()),
			slog.Int("height", img.Bounds().Dy()),
		))

	return plot.WriteFile(config.OutputFile, img, config.Format)
}

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/cw-radar/internal/capture"
	"github.com/roman-kulish/cw-radar/internal/config"
	"github.com/roman-kulish/cw-radar/internal/doppler"
	"github.com/roman-kulish/cw-radar/internal/iq"
	"github.com/roman-kulish/cw-radar/internal/plot"
	"github.com/roman-kulish/cw-radar/internal/sdr"
	"github.com/roman-kulish/cw-radar/internal/sdr/soapy"
	"github.com/roman-kulish/cw-radar/internal/storage"
	"github.com/roman-kulish/cw-radar/internal/trigger"
)

const timestampFormat = "20060102_150405"

// App wires the radar packages together for one command.
type App struct {
	cli    *CLI
	config *Config
	out    io.Writer
	logger *slog.Logger

	store     storage.Store
	processor *doppler.Processor
}

// Run executes the command selected on the command line. Reports are written
// to out, diagnostics to the logger.
func Run(ctx context.Context, cli *CLI, config *Config, out io.Writer, logger *slog.Logger) error {
	a := App{
		cli:    cli,
		config: config,
		out:    out,
		logger: logger,
		processor: doppler.NewProcessor(
			doppler.WithLogger(logger),
			doppler.WithWorkers(config.Settings.Workers),
		),
	}

	if path := config.CatalogPath(); path != "" {
		store := storage.NewSqliteStore(path)
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error("closing catalog", slog.String("error", err.Error()))
			}
		}()
		a.store = store
	}

	switch cli.Command {
	case CommandArm:
		return a.arm(ctx)
	case CommandProcess:
		return a.process(ctx)
	case CommandSessions:
		return a.sessions(ctx)
	default:
		return fmt.Errorf("unknown command '%s'", cli.Command)
	}
}

func (a *App) arm(ctx context.Context) error {
	streamer, err := createStreamer(&a.config.Device, a.logger)
	if err != nil {
		return fmt.Errorf("creating device: %w", err)
	}

	controller := capture.NewController(streamer, iq.NewWriter(iq.WithLogger(a.logger)),
		capture.WithLogger(a.logger),
		capture.WithOnComplete(func(o capture.Outcome) {
			a.logger.Debug("session complete",
				slog.String("path", o.Path),
				slog.Duration("duration", o.Duration),
				slog.Duration("armed", o.CompletedAt.Sub(o.ArmedAt)))
		}))

	source, err := openTrigger(a.config.Trigger, a.logger)
	if err != nil {
		return err
	}
	defer source.Close()

	triggerCtx, stopTrigger := context.WithCancel(ctx)
	defer stopTrigger()

	go func() {
		if err := source.Run(triggerCtx, controller); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("trigger source failed", slog.String("error", err.Error()))
		}
	}()

	for n := 0; a.cli.Sessions == 0 || n < a.cli.Sessions; n++ {
		done, err := a.session(ctx, controller)
		if err != nil || done {
			return err
		}
	}
	return nil
}

// session runs one arm/trigger/save cycle. done reports that the operator
// interrupted the radar.
func (a *App) session(ctx context.Context, controller *capture.Controller) (done bool, err error) {
	radar := a.config.Radar
	if a.config.Settings.Timestamped {
		radar.OutputPath = timestamped(radar.OutputPath, time.Now())
	}

	if err = controller.Arm(ctx, radar); err != nil {
		return false, fmt.Errorf("arming radar: %w", err)
	}

	a.logger.Info("radar armed, waiting for trigger",
		slog.String("trigger", a.config.Trigger.Source),
		slog.String("output", radar.OutputPath))

	// a cancelled ctx aborts the session itself; wait for it to wind down
	waitCtx := context.WithoutCancel(ctx)

	outcome, sessionErr := controller.Wait(waitCtx)
	if outcome == nil {
		return false, sessionErr
	}

	captureID, err := a.recordCapture(waitCtx, outcome)
	if err != nil {
		return false, err
	}

	switch {
	case ctx.Err() != nil:
		a.logger.Info("radar disarmed")
		return true, nil
	case errors.Is(sessionErr, capture.ErrDisarmed):
		return true, nil
	case sessionErr != nil:
		return false, fmt.Errorf("capture session: %w", sessionErr)
	}

	if a.config.Settings.Process || a.cli.PlotPath != "" {
		path := a.cli.PlotPath
		if path != "" && a.config.Settings.Timestamped {
			path = timestamped(path, outcome.ArmedAt)
		}
		if err = a.analyse(ctx, outcome.Path, outcome.Config, captureID, path); err != nil {
			return false, err
		}
	}
	return false, nil
}

func (a *App) recordCapture(ctx context.Context, outcome *capture.Outcome) (*int64, error) {
	if a.store == nil {
		return nil, nil
	}

	id, err := a.store.StoreCapture(ctx, outcome)
	if err != nil {
		return nil, fmt.Errorf("recording capture: %w", err)
	}
	return &id, nil
}

func (a *App) process(ctx context.Context) error {
	var captureID *int64
	if a.cli.CaptureID > 0 {
		captureID = &a.cli.CaptureID
	}
	return a.analyse(ctx, a.cli.InputPath, a.config.Radar, captureID, a.cli.PlotPath)
}

// analyse estimates the velocity of a capture file, reports and catalogues
// the result and optionally plots it.
func (a *App) analyse(ctx context.Context, path string, cfg config.Config, captureID *int64, plotPath string) error {
	result, err := a.processor.ProcessCapture(ctx, path, cfg)
	if err != nil {
		return fmt.Errorf("processing '%s': %w", path, err)
	}

	fmt.Fprintf(a.out, "%s: peak velocity %.3f m/s at %.3f s (%s Doppler)\n",
		path,
		result.PeakVelocity,
		result.PeakTime,
		humanize.SIWithDigits(result.PeakFrequency, 3, "Hz"))

	if a.store != nil {
		resultID, err := a.store.StoreResult(ctx, captureID, path, cfg.CarrierFreq, result)
		if err != nil {
			return fmt.Errorf("recording result: %w", err)
		}
		a.logger.Debug("result catalogued", slog.Int64("resultID", resultID))
	}

	if plotPath == "" {
		return nil
	}
	return a.plot(result, plotPath)
}

func (a *App) plot(result *doppler.Result, path string) error {
	theme, err := plot.ParseColorTheme(a.config.Plot.Theme)
	if err != nil {
		return err
	}

	renderer := plot.NewRenderer(plot.RenderConfig{
		ColorTheme:   theme,
		MaxFrequency: a.config.Plot.MaxFrequency,
	})

	img, err := renderer.Render(result.Grid, result.Track)
	if err != nil {
		return fmt.Errorf("rendering spectrogram: %w", err)
	}

	format := plot.FormatFromPath(path)
	if err = plot.WriteFile(path, img, format); err != nil {
		return fmt.Errorf("writing '%s': %w", path, err)
	}

	a.logger.Info("spectrogram written",
		slog.Group("image",
			slog.String("destination", path),
			slog.String("format", string(format)),
			slog.String("theme", string(theme)),
			slog.Int("width", img.Bounds().Dx()),
			slog.Int("height", img.Bounds().Dy()),
		))
	return nil
}

func (a *App) sessions(ctx context.Context) error {
	if a.store == nil {
		return errors.New("the capture catalog is disabled")
	}

	if a.cli.ResultsOf > 0 {
		return a.results(ctx, a.cli.ResultsOf)
	}

	records, err := a.store.Captures(ctx)
	if err != nil {
		return fmt.Errorf("listing captures: %w", err)
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tARMED\tSTATUS\tSAMPLES\tPATH\tERROR")
	for _, r := range records {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.ArmedAt.Local().Format(time.DateTime),
			r.Status,
			humanize.Comma(int64(r.Samples)),
			deref(r.Path),
			deref(r.Error))
	}
	return w.Flush()
}

func (a *App) results(ctx context.Context, captureID int64) error {
	records, err := a.store.Results(ctx, captureID)
	if err != nil {
		return fmt.Errorf("listing results: %w", err)
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPROCESSED\tPEAK VELOCITY\tPEAK TIME\tDOPPLER\tTRACKED")
	for _, r := range records {
		tracked, err := a.trackedColumns(ctx, r.ID)
		if err != nil {
			return err
		}

		fmt.Fprintf(w, "%d\t%s\t%.3f m/s\t%.3f s\t%s\t%d\n",
			r.ID,
			r.ProcessedAt.Local().Format(time.DateTime),
			r.PeakVelocity,
			r.PeakTime,
			humanize.SIWithDigits(r.PeakFrequency, 3, "Hz"),
			tracked)
	}
	return w.Flush()
}

// trackedColumns counts the columns of a result that passed the power gate.
func (a *App) trackedColumns(ctx context.Context, resultID int64) (n int, err error) {
	reader, err := a.store.ReadTrack(ctx, resultID, storage.WithoutGated())
	if err != nil {
		return 0, fmt.Errorf("reading track: %w", err)
	}
	defer func() {
		if cErr := reader.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	for reader.Next(ctx) {
		n++
	}
	return n, reader.Error()
}

func createStreamer(config *DeviceConfig, logger *slog.Logger) (sdr.Streamer, error) {
	switch config.Type {
	case DeviceSynthetic:
		opts := []func(*sdr.Synthetic){
			sdr.WithSyntheticLogger(logger),
			sdr.WithBeat(config.Synthetic.Beat),
		}
		if config.Synthetic.Echo > 0 {
			opts = append(opts, sdr.WithEcho(config.Synthetic.Echo))
		}
		if config.Synthetic.Leakage > 0 {
			opts = append(opts, sdr.WithLeakage(config.Synthetic.Leakage))
		}
		if config.Synthetic.Noise > 0 {
			opts = append(opts, sdr.WithNoise(config.Synthetic.Noise))
		}
		if config.Synthetic.Seed > 0 {
			opts = append(opts, sdr.WithSeed(config.Synthetic.Seed))
		}
		return sdr.NewSynthetic(opts...), nil

	case DeviceSoapy:
		handler, err := soapy.New(config.Soapy)
		if err != nil {
			return nil, fmt.Errorf("creating SoapySDR device: %w", err)
		}
		return sdr.NewDevice(config.Name, handler, sdr.WithLogger(logger)), nil

	default:
		return nil, fmt.Errorf("unknown type '%s'", config.Type)
	}
}

// timestamped inserts t before the extension of path.
func timestamped(path string, t time.Time) string {
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s_%s%s", strings.TrimSuffix(path, ext), t.UTC().Format(timestampFormat), ext)
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

// openTrigger opens a serial trigger device when the source is "auto" or a
// baud rate is set, and the terminal or a plain file otherwise.
func openTrigger(cfg TriggerConfig, logger *slog.Logger) (*trigger.LineSource, error) {
	options := []func(s *trigger.LineSource){
		trigger.WithLogger(logger),
		trigger.WithMatch(cfg.Match),
	}

	if cfg.Source == trigger.Auto || cfg.BaudRate > 0 {
		return trigger.OpenSerial(trigger.SerialConfig{
			Port:        cfg.Source,
			Description: cfg.Description,
			BaudRate:    cfg.BaudRate,
		}, options...)
	}

	return trigger.Open(cfg.Source, options...)
}

package sdr

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/cw-radar/internal/iq"
)

const (
	// BlockSize is the default number of samples decoded per sink write
	BlockSize = 16384

	// PipeSize is the requested kernel buffer size of the receive pipe
	PipeSize = 1 << 20
)

var (
	// ErrBrokenPipe is returned when there's an error reading from stdout or stderr
	ErrBrokenPipe = errors.New("broken pipe")
)

// Handler builds the receive command for an SDR tool that writes
// interleaved little-endian float32 I/Q samples to stdout.
type Handler interface {
	Cmd(ctx context.Context, cfg StreamConfig) (*exec.Cmd, error)
	Device() string
}

// Transmitter is implemented by handlers that also drive the transmit path.
// The command reads interleaved float32 I/Q samples of the IF tone from
// stdin.
type Transmitter interface {
	TxCmd(ctx context.Context, cfg StreamConfig) (*exec.Cmd, error)
}

// WithLogger sets the logger for the device
func WithLogger(logger *slog.Logger) func(d *Device) {
	return func(d *Device) {
		d.logger = logger.With(
			slog.String("device", d.handler.Device()),
			slog.String("deviceID", d.deviceID),
		)
	}
}

// WithDeviceBlockSize sets the number of samples per sink write
func WithDeviceBlockSize(n int) func(d *Device) {
	return func(d *Device) {
		if n > 0 {
			d.blockSize = n
		}
	}
}

// Device is a streamer backed by external SDR command line tools. The
// receive tool's output is mixed against the IF reference and written to the
// sink; the optional transmit tool is fed the IF tone.
type Device struct {
	deviceID  string
	handler   Handler
	blockSize int

	isStreaming atomic.Bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup

	logger *slog.Logger
}

// NewDevice creates a new Device instance with a discard logger
func NewDevice(deviceID string, h Handler, options ...func(d *Device)) *Device {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	d := Device{
		deviceID:  deviceID,
		handler:   h,
		blockSize: BlockSize,
		logger:    logger,
	}

	for _, option := range options {
		option(&d)
	}

	return &d
}

type process struct {
	name   string
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stdin  io.WriteCloser
	stderr io.ReadCloser
}

// Start launches the receive (and, if supported, transmit) tools and begins
// writing mixed samples to the sink.
func (d *Device) Start(ctx context.Context, cfg StreamConfig, sink Sink) (<-chan error, error) {
	if !d.isStreaming.CompareAndSwap(false, true) {
		return nil, ErrAlreadyStreaming
	}

	ctx, d.cancel = context.WithCancel(ctx)

	rx, err := d.startReceiver(ctx, cfg)
	if err != nil {
		d.cancel()
		d.isStreaming.Store(false) // Reset running state on error
		return nil, err
	}

	var tx *process
	if t, ok := d.handler.(Transmitter); ok {
		if tx, err = d.startTransmitter(ctx, t, cfg); err != nil {
			d.cancel()
			_ = rx.cmd.Wait()
			d.isStreaming.Store(false)
			return nil, err
		}
	}

	streamStopped := make(chan error, 1)

	d.wg.Add(1)
	go func() {
		defer close(streamStopped)

		d.logger.Info("starting stream...",
			slog.String("sampleRate", humanize.SIWithDigits(cfg.SampleRate, 2, "S/s")),
			slog.String("centerFreq", humanize.SIWithDigits(cfg.CenterFreq, 3, "Hz")),
			slog.Float64("gain", cfg.Gain))

		done := make(chan error, 6)
		workers := 3

		// pipes must be drained before Wait closes them
		var rxPipes, txPipes sync.WaitGroup

		rxPipes.Add(2)
		go func() {
			defer rxPipes.Done()
			d.handleStdout(ctx, rx.stdout, NewMixer(cfg.IntermediateFreq, cfg.SampleRate), sink, done)
		}()
		go func() {
			defer rxPipes.Done()
			d.handleStderr(rx.name, rx.stderr, done)
		}()
		go d.handleCmdWait(ctx, rx.cmd, &rxPipes, done)

		if tx != nil {
			workers += 3

			txPipes.Add(1)
			go d.handleStdin(ctx, tx.stdin, NewOscillator(cfg.IntermediateFreq, cfg.SampleRate), done)
			go func() {
				defer txPipes.Done()
				d.handleStderr(tx.name, tx.stderr, done)
			}()
			go d.handleCmdWait(ctx, tx.cmd, &txPipes, done)
		}

		var errs []error
		for i := 0; i < workers; i++ {
			if err := <-done; err != nil {
				d.cancel() // cancel context on error
				d.logger.Error(err.Error())

				errs = append(errs, err)
			}
		}

		d.logger.Info("stream stopped")

		d.isStreaming.Store(false)
		d.wg.Done()

		if len(errs) > 0 {
			streamStopped <- errors.Join(errs...)
		}
	}()

	return streamStopped, nil
}

func (d *Device) startReceiver(ctx context.Context, cfg StreamConfig) (*process, error) {
	cmd, err := d.handler.Cmd(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("error creating receive command: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("error creating stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("error creating stderr pipe: %w", err)
	}

	if err = cmd.Start(); err != nil {
		return nil, fmt.Errorf("error starting receive command: %w", err)
	}

	if err = enlargePipe(stdout, PipeSize); err != nil {
		d.logger.Debug(fmt.Sprintf("could not enlarge receive pipe: %s", err.Error()))
	}

	return &process{name: "rx", cmd: cmd, stdout: stdout, stderr: stderr}, nil
}

func (d *Device) startTransmitter(ctx context.Context, t Transmitter, cfg StreamConfig) (*process, error) {
	cmd, err := t.TxCmd(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("error creating transmit command: %w", err)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("error creating stdin pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("error creating stderr pipe: %w", err)
	}

	if err = cmd.Start(); err != nil {
		return nil, fmt.Errorf("error starting transmit command: %w", err)
	}

	return &process{name: "tx", cmd: cmd, stdin: stdin, stderr: stderr}, nil
}

// Stop terminates the SDR tools and waits until no more samples are written
func (d *Device) Stop() {
	if d.cancel == nil {
		return // never started
	}

	d.cancel()
	d.wg.Wait()
	d.isStreaming.Store(false)
}

// IsStreaming returns true if the device is running
func (d *Device) IsStreaming() bool {
	return d.isStreaming.Load()
}

// handleStdout decodes samples from stdout, mixes them down and writes them to the sink.
func (d *Device) handleStdout(ctx context.Context, stdout io.Reader, mixer *Mixer, sink Sink, done chan<- error) {
	defer d.cancel() // the stream is over once the receiver output ends

	var (
		reader = bufio.NewReaderSize(stdout, d.blockSize*iq.SampleBytes)
		raw    = make([]byte, d.blockSize*iq.SampleBytes)
		block  = make([]Sample, d.blockSize)
	)

	for {
		n, err := io.ReadFull(reader, raw)
		if k := iq.Decode(block, raw[:n-n%iq.SampleBytes]); k > 0 && ctx.Err() == nil {
			mixer.Mix(block[:k], block[:k])
			sink.Write(block[:k])
		}

		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, fs.ErrClosed) {
			break
		}

		done <- fmt.Errorf("%w: error reading stdout: %w", ErrBrokenPipe, err)
		return
	}

	if ctx.Err() == nil {
		done <- ErrStreamStopped
		return
	}

	done <- nil
}

// handleStdin feeds the IF tone to the transmit tool until the context is done.
func (d *Device) handleStdin(ctx context.Context, stdin io.WriteCloser, tone *Oscillator, done chan<- error) {
	defer stdin.Close()

	var (
		block = make([]Sample, d.blockSize)
		raw   = make([]byte, d.blockSize*iq.SampleBytes)
	)

	for ctx.Err() == nil {
		tone.Fill(block)
		iq.Encode(raw, block)

		if _, err := stdin.Write(raw); err != nil {
			if ctx.Err() != nil {
				break
			}

			done <- fmt.Errorf("%w: error writing stdin: %w", ErrBrokenPipe, err)
			return
		}
	}

	done <- nil
}

// handleStderr reads from stderr and logs errors.
func (d *Device) handleStderr(name string, stderr io.Reader, done chan<- error) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()
		line = strings.TrimSpace(line)

		if line == "" {
			continue
		}

		d.logger.Warn(fmt.Sprintf("%s %s >> %s", d.handler.Device(), name, line)) // simple logging here
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		done <- fmt.Errorf("%w: error reading stderr: %w", ErrBrokenPipe, err)
		return
	}

	done <- nil
}

// handleCmdWait waits for the pipe readers and the command to exit and sends the error to the error channel
func (d *Device) handleCmdWait(ctx context.Context, cmd *exec.Cmd, pipes *sync.WaitGroup, done chan<- error) {
	pipes.Wait()

	if err := cmd.Wait(); err != nil && ctx.Err() == nil {
		done <- fmt.Errorf("command exited with error: %w", err)
		return
	}

	done <- nil
}

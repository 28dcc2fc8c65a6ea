// Package capture implements the arm/trigger/save lifecycle of the radar.
// While armed the front end streams continuously into a ring buffer holding
// two record windows. A trigger starts the post-trigger record window; when it
// elapses the buffer is snapshotted, so the saved capture is centred on the
// trigger instant.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/cw-radar/internal/config"
	"github.com/roman-kulish/cw-radar/internal/iq"
	"github.com/roman-kulish/cw-radar/internal/sdr"
)

// Persister writes a capture snapshot to path. It must honour ctx and leave
// no partial file behind when cancelled.
type Persister interface {
	WriteRaw(ctx context.Context, path string, samples []complex64) error
}

// Session describes the session in progress.
type Session struct {
	State        State
	ArmedAt      time.Time
	TriggeredAt  time.Time
	RecordWindow time.Duration
	OutputPath   string
}

// Outcome is the result of a finished session.
type Outcome struct {
	Path        string
	Samples     int
	Duration    time.Duration // of captured signal
	ArmedAt     time.Time
	TriggeredAt time.Time
	CompletedAt time.Time
	Config      config.Config
	Err         error
}

// WithLogger sets the logger for the controller
func WithLogger(logger *slog.Logger) func(c *Controller) {
	return func(c *Controller) {
		c.logger = logger.With(slog.String("component", "capture"))
	}
}

// WithOnComplete registers a function called with the outcome of every
// session, before Wait returns it.
func WithOnComplete(fn func(Outcome)) func(c *Controller) {
	return func(c *Controller) {
		c.onComplete = fn
	}
}

// cycle is the private state of one arm/disarm cycle.
type cycle struct {
	cfg     config.Config
	cancel  context.CancelFunc
	trigger chan struct{}
	done    chan struct{}
	outcome Outcome
}

// Controller owns the capture state machine, the ingest buffer and the
// radio front end stream.
type Controller struct {
	streamer  sdr.Streamer
	persister Persister

	mu      sync.Mutex
	state   State
	session Session
	buffer  *sdr.RingBuffer
	current *cycle

	beginSave atomic.Bool
	saving    atomic.Bool
	disarming atomic.Bool

	onComplete func(Outcome)
	logger     *slog.Logger
}

// NewController creates a Controller in the Idle state with a discard logger
func NewController(streamer sdr.Streamer, persister Persister, options ...func(c *Controller)) *Controller {
	c := Controller{
		streamer:  streamer,
		persister: persister,
		state:     Idle,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&c)
	}

	return &c
}

// Arm validates cfg, starts the front end streaming into a fresh ingest
// buffer and waits for a trigger in the background. A validation error
// leaves the controller Idle without touching the hardware; a failure to
// start streaming is returned as *HardwareStartError.
func (c *Controller) Arm(ctx context.Context, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Idle {
		return fmt.Errorf("%w: %s", ErrBusy, c.state)
	}

	if err := c.resetBuffer(cfg.BufferCapacity()); err != nil {
		return err
	}

	c.beginSave.Store(false)
	c.saving.Store(false)
	c.disarming.Store(false)

	ctx, cancel := context.WithCancel(ctx)

	stopped, err := c.streamer.Start(ctx, sdr.StreamConfig{
		SampleRate:       cfg.SampleRate,
		CenterFreq:       cfg.RFFreq,
		IntermediateFreq: cfg.IntermediateFreq,
		Gain:             cfg.Gain,
	}, c.buffer)
	if err != nil {
		cancel()
		return &HardwareStartError{Err: err}
	}

	cy := cycle{
		cfg:     cfg,
		cancel:  cancel,
		trigger: make(chan struct{}),
		done:    make(chan struct{}),
	}

	c.current = &cy
	c.session = Session{
		ArmedAt:      time.Now(),
		RecordWindow: cfg.RecordWindow.Duration(),
		OutputPath:   cfg.OutputPath,
	}
	c.setState(Armed)

	c.logger.Info("armed",
		slog.String("sampleRate", humanize.SIWithDigits(cfg.SampleRate, 2, "S/s")),
		slog.Duration("recordWindow", cfg.RecordWindow.Duration()),
		slog.String("buffer", humanize.IBytes(uint64(c.buffer.Cap()*iq.SampleBytes))),
		slog.String("outputPath", cfg.OutputPath))

	go c.run(ctx, &cy, stopped)

	return nil
}

// TriggerSave marks the trigger instant and starts the post-trigger record
// window. Repeated triggers within a session are ignored.
func (c *Controller) TriggerSave() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case Armed:
	case Capturing:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrNotArmed, c.state)
	}

	if c.beginSave.CompareAndSwap(false, true) {
		c.session.TriggeredAt = time.Now()
		c.setState(Capturing)
		close(c.current.trigger)
	}

	return nil
}

// Disarm ends the session in progress: the stream is stopped, any pending
// snapshot or file write is abandoned and no capture file is produced. It
// returns once the controller is Idle again.
func (c *Controller) Disarm() error {
	c.mu.Lock()
	if !c.state.Active() {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotArmed, state)
	}

	c.disarming.Store(true)
	c.setState(Disarmed)
	cy := c.current
	c.mu.Unlock()

	cy.cancel()
	c.streamer.Stop()
	<-cy.done

	return nil
}

// Wait blocks until the current or most recent session has finished and
// returns its outcome. The error is the session error, also recorded in
// Outcome.Err.
func (c *Controller) Wait(ctx context.Context) (*Outcome, error) {
	c.mu.Lock()
	cy := c.current
	c.mu.Unlock()

	if cy == nil {
		return nil, ErrNotArmed
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-cy.done:
		outcome := cy.outcome
		return &outcome, outcome.Err
	}
}

// State returns the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Session returns a copy of the session in progress
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	s.State = c.state
	return s
}

// SamplesWritten returns the number of samples streamed in the current
// session.
func (c *Controller) SamplesWritten() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.buffer == nil {
		return 0
	}
	return c.buffer.Written()
}

// IsSaving reports whether a snapshot is being written.
func (c *Controller) IsSaving() bool {
	return c.saving.Load()
}

func (c *Controller) resetBuffer(capacity int) error {
	if c.buffer != nil && c.buffer.Cap() == capacity {
		c.buffer.Reset()
		return nil
	}

	buffer, err := sdr.NewRingBuffer(capacity)
	if err != nil {
		return fmt.Errorf("error allocating ingest buffer: %w", err)
	}

	c.buffer = buffer
	return nil
}

// setState must be called with the lock held.
func (c *Controller) setState(s State) {
	c.logger.Debug("state changed", slog.String("from", c.state.String()), slog.String("to", s.String()))
	c.state = s
}

// transition moves from one state to another unless a concurrent Disarm got
// there first.
func (c *Controller) transition(from, to State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != from {
		return false
	}

	c.setState(to)
	return true
}

func (c *Controller) run(ctx context.Context, cy *cycle, stopped <-chan error) {
	defer close(cy.done)

	samples, err := c.capture(ctx, cy, stopped)

	c.streamer.Stop()
	cy.cancel()

	c.mu.Lock()
	cy.outcome = Outcome{
		Path:        cy.cfg.OutputPath,
		Samples:     samples,
		Duration:    time.Duration(float64(samples) / cy.cfg.SampleRate * float64(time.Second)),
		ArmedAt:     c.session.ArmedAt,
		TriggeredAt: c.session.TriggeredAt,
		CompletedAt: time.Now(),
		Config:      cy.cfg,
		Err:         err,
	}
	if err != nil {
		cy.outcome.Path = ""
	}
	c.session = Session{}
	c.setState(Idle)
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("capture session ended", slog.String("error", err.Error()))
	} else {
		c.logger.Info("capture saved",
			slog.String("path", cy.outcome.Path),
			slog.Int("samples", samples),
			slog.Duration("duration", cy.outcome.Duration))
	}

	if c.onComplete != nil {
		c.onComplete(cy.outcome)
	}
}

// capture waits for the trigger, then for the record window, then writes a
// snapshot of the buffer. It returns the number of samples written.
func (c *Controller) capture(ctx context.Context, cy *cycle, stopped <-chan error) (int, error) {
	select {
	case <-ctx.Done():
		return 0, c.abort(ctx, nil)
	case err := <-stopped:
		return 0, c.abort(ctx, err)
	case <-cy.trigger:
	}

	c.logger.Info("triggered, recording...", slog.Duration("window", cy.cfg.RecordWindow.Duration()))

	timer := time.NewTimer(cy.cfg.RecordWindow.Duration())
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return 0, c.abort(ctx, nil)
	case err := <-stopped:
		return 0, c.abort(ctx, err)
	case <-timer.C:
	}

	if !c.transition(Capturing, Saving) {
		return 0, c.abort(ctx, nil)
	}

	c.saving.Store(true)
	defer c.saving.Store(false)

	snapshot := c.buffer.Snapshot()

	if err := c.persister.WriteRaw(ctx, cy.cfg.OutputPath, snapshot); err != nil {
		if c.disarming.Load() || ctx.Err() != nil {
			return 0, c.abort(ctx, nil)
		}
		return 0, &PersistenceError{Path: cy.cfg.OutputPath, Err: err}
	}

	// a Disarm that lands after the rename still discards the capture
	if c.disarming.Load() {
		if err := os.Remove(cy.cfg.OutputPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("failed to remove disarmed capture", slog.String("path", cy.cfg.OutputPath), slog.String("error", err.Error()))
		}
		return 0, ErrDisarmed
	}

	return len(snapshot), nil
}

// abort maps the reason a session stopped early to its error.
func (c *Controller) abort(ctx context.Context, streamErr error) error {
	if c.disarming.Load() {
		return ErrDisarmed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if streamErr == nil {
		streamErr = sdr.ErrStreamStopped
	}

	return fmt.Errorf("stream ended during capture: %w", streamErr)
}

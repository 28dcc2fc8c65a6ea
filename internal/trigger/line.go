// Package trigger turns external events into capture save requests. A line
// on the operator's terminal or a line from a serial trigger device is one
// event.
package trigger

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Stdin names the operator's terminal as a trigger source.
const Stdin = "-"

// Triggerer receives save requests. It is satisfied by capture.Controller.
type Triggerer interface {
	TriggerSave() error
}

// WithLogger sets the logger for the source.
func WithLogger(logger *slog.Logger) func(s *LineSource) {
	return func(s *LineSource) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMatch limits the lines that fire a trigger to those starting with
// prefix, after surrounding white space is trimmed. Serial trigger devices
// often print status lines between events.
func WithMatch(prefix string) func(s *LineSource) {
	return func(s *LineSource) {
		s.match = prefix
	}
}

// LineSource fires a trigger for every line read from a terminal, file or
// serial device.
type LineSource struct {
	name   string
	r      io.Reader
	closer io.Closer
	match  string
	logger *slog.Logger
}

// NewLineSource creates a source reading from r. The caller keeps ownership
// of r.
func NewLineSource(name string, r io.Reader, options ...func(s *LineSource)) *LineSource {
	s := LineSource{
		name:   name,
		r:      r,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&s)
	}

	s.logger = s.logger.With(slog.String("component", "trigger"), slog.String("source", name))

	return &s
}

// Open creates a source for path, where Stdin or an empty path is the
// operator's terminal and anything else is opened for reading as is. Use
// OpenSerial for a serial trigger device that needs its line configured.
func Open(path string, options ...func(s *LineSource)) (*LineSource, error) {
	if path == "" || path == Stdin {
		return NewLineSource("stdin", os.Stdin, options...), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening trigger source: %w", err)
	}

	s := NewLineSource(path, f, options...)
	s.closer = f
	return s, nil
}

// Name returns the name of the source.
func (s *LineSource) Name() string {
	return s.name
}

// Run reads lines until the source is exhausted or ctx is cancelled and
// requests a save for each matching line. Save requests the capture
// controller rejects are logged and do not stop the source. Run returns nil
// at end of input.
func (s *LineSource) Run(ctx context.Context, t Triggerer) error {
	lines := make(chan string)
	readErr := make(chan error, 1)

	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(s.r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	s.logger.Info("listening for triggers")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case line, ok := <-lines:
			if !ok {
				if err := ctx.Err(); err != nil {
					return err
				}

				var err error
				select {
				case err = <-readErr:
				default:
				}
				if err != nil && !errors.Is(err, os.ErrClosed) {
					return fmt.Errorf("reading %s: %w", s.name, err)
				}
				s.logger.Info("trigger source closed")
				return nil
			}

			line = strings.TrimSpace(line)
			if s.match != "" && !strings.HasPrefix(line, s.match) {
				s.logger.Debug("ignoring line", slog.String("line", line))
				continue
			}

			if err := t.TriggerSave(); err != nil {
				s.logger.Warn("trigger rejected", slog.String("error", err.Error()))
				continue
			}
			s.logger.Info("trigger fired")
		}
	}
}

// Close releases the device opened by Open. Sources created with
// NewLineSource leave their reader open.
func (s *LineSource) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

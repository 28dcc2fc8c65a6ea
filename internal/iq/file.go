package iq

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
)

// chunkSamples is the number of samples encoded between context checks.
const chunkSamples = 1 << 16

var (
	// ErrTruncated is returned when a capture file does not hold a whole
	// number of samples
	ErrTruncated = errors.New("truncated capture file")
)

// WithLogger sets the logger for the writer
func WithLogger(logger *slog.Logger) func(w *Writer) {
	return func(w *Writer) {
		w.logger = logger.With(slog.String("component", "iq"))
	}
}

// Writer persists captured windows as raw files.
type Writer struct {
	logger *slog.Logger
}

// NewWriter creates a Writer with a discard logger
func NewWriter(options ...func(w *Writer)) *Writer {
	w := Writer{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&w)
	}

	return &w
}

// WriteRaw writes samples to path, replacing any existing file. Data is
// written to a temporary file in the same directory, synced and renamed into
// place, so path never holds a partial capture. Cancelling ctx aborts the
// write and removes the temporary file.
func (w *Writer) WriteRaw(ctx context.Context, path string, samples []complex64) (err error) {
	dir := filepath.Dir(path)
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}

	f, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}

	tmpPath := f.Name()
	defer func() {
		if err != nil {
			err = errors.Join(err, removeIfExists(tmpPath))
		}
	}()
	defer closeWithError(f, &err)

	bw := bufio.NewWriterSize(f, chunkSamples*SampleBytes)
	raw := make([]byte, chunkSamples*SampleBytes)

	for i := 0; i < len(samples); i += chunkSamples {
		if err = ctx.Err(); err != nil {
			return err
		}

		chunk := samples[i:min(i+chunkSamples, len(samples))]
		Encode(raw, chunk)

		if _, err = bw.Write(raw[:len(chunk)*SampleBytes]); err != nil {
			return fmt.Errorf("error writing samples: %w", err)
		}
	}

	if err = bw.Flush(); err != nil {
		return fmt.Errorf("error flushing samples: %w", err)
	}
	if err = f.Sync(); err != nil {
		return fmt.Errorf("error syncing file: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("error closing file: %w", err)
	}
	if err = ctx.Err(); err != nil {
		return err
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("error renaming capture file: %w", err)
	}

	w.logger.Info("capture written",
		slog.String("path", path),
		slog.Int("samples", len(samples)),
		slog.String("size", humanize.IBytes(uint64(len(samples)*SampleBytes))))

	return nil
}

// ReadFile loads a whole capture file.
func ReadFile(path string) ([]complex64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("error reading file info: %w", err)
	}

	return Read(f, info.Size())
}

// Read decodes size bytes of samples from r.
func Read(r io.Reader, size int64) ([]complex64, error) {
	if size%SampleBytes != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrTruncated, size, SampleBytes)
	}

	samples := make([]complex64, size/SampleBytes)
	raw := make([]byte, chunkSamples*SampleBytes)
	br := bufio.NewReaderSize(r, len(raw))

	for i := 0; i < len(samples); i += chunkSamples {
		n := min(chunkSamples, len(samples)-i)
		if _, err := io.ReadFull(br, raw[:n*SampleBytes]); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: %w", ErrTruncated, err)
			}
			return nil, fmt.Errorf("error reading samples: %w", err)
		}

		Decode(samples[i:i+n], raw)
	}

	return samples, nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func closeWithError(cl io.Closer, err *error) {
	if closeErr := cl.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
		*err = errors.Join(*err, closeErr)
	}
}

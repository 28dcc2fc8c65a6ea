package storage

import (
	"context"

	"github.com/roman-kulish/cw-radar/internal/capture"
	"github.com/roman-kulish/cw-radar/internal/doppler"
)

// Store catalogues radar captures and their analysis results. Raw samples
// stay in their capture files; the catalog keeps session metadata, the peak
// velocity of each analysis and its per-column Doppler track.
type Store interface {
	// StoreCapture records the outcome of a capture session, including
	// sessions that were disarmed or failed.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - outcome: Session outcome reported by the capture controller
	//
	// Returns:
	//   - captureID: Unique identifier for the stored capture
	//   - error: If storage fails or context is cancelled
	StoreCapture(ctx context.Context, outcome *capture.Outcome) (captureID int64, err error)

	// Capture retrieves a capture record by its ID.
	Capture(ctx context.Context, id int64) (*CaptureRecord, error)

	// Captures returns all capture records ordered by arm time.
	Captures(ctx context.Context) ([]*CaptureRecord, error)

	// StoreResult saves an analysis result and its whole track in a single
	// transaction.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - captureID: Optional ID of the capture the file came from
	//   - path: Capture file that was analysed
	//   - carrierFreq: Carrier the velocities were computed for, in Hz
	//   - result: Analysis result
	//
	// Returns:
	//   - resultID: Unique identifier for the stored result
	//   - error: If storage fails or context is cancelled
	StoreResult(ctx context.Context, captureID *int64, path string, carrierFreq float64, result *doppler.Result) (resultID int64, err error)

	// Result retrieves a result record by its ID.
	Result(ctx context.Context, id int64) (*ResultRecord, error)

	// Results returns the results of a capture ordered by processing time.
	Results(ctx context.Context, captureID int64) ([]*ResultRecord, error)

	// ReadTrack returns a reader over the track of a result. The reader must
	// be closed after use.
	ReadTrack(ctx context.Context, resultID int64, opts ...ReaderOption) (TrackReader, error)

	// Close releases all database connections and resources.
	// It is safe to call Close multiple times.
	Close() error
}

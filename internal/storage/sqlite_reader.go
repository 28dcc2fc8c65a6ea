package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
)

// TrackReader provides an iterator-based interface for reading the Doppler
// track of a result with optional time filtering.
type TrackReader interface {
	// Result returns the result this reader is accessing.
	Result() *ResultRecord

	// Next advances the iterator and returns true if there is another point
	// to read, false when the iteration is complete or if an error occurred.
	Next(context.Context) bool

	// Current returns the current point in the iteration.
	// If called after Next() returns false, the behavior is undefined.
	Current() *TrackPoint

	// Error returns any error that occurred during iteration.
	// If Next() returns false, Error() should be checked to distinguish
	// between end of data and an error condition.
	Error() error

	// Close releases any resources associated with the reader.
	// After Close is called, the reader should not be used.
	Close() error
}

// ReaderOption configures a TrackReader with specific filtering criteria.
type ReaderOption func(*SqliteTrackReader)

// WithStartTime excludes points before t seconds from the start of the
// capture.
func WithStartTime(t float64) ReaderOption {
	return func(r *SqliteTrackReader) {
		r.startTime = &t
	}
}

// WithEndTime excludes points after t seconds from the start of the capture.
func WithEndTime(t float64) ReaderOption {
	return func(r *SqliteTrackReader) {
		r.endTime = &t
	}
}

// WithTimeRange sets both start and end time filters.
func WithTimeRange(start, end float64) ReaderOption {
	return func(r *SqliteTrackReader) {
		r.startTime = &start
		r.endTime = &end
	}
}

// WithoutGated excludes columns that fell below the power gate.
func WithoutGated() ReaderOption {
	return func(r *SqliteTrackReader) {
		r.withoutGated = true
	}
}

// newSqliteTrackReader creates a new TrackReader instance, applying optional
// filters.
func newSqliteTrackReader(ctx context.Context, db *sql.DB, resultID int64, opts ...ReaderOption) (*SqliteTrackReader, error) {
	tr := &SqliteTrackReader{
		db:       db,
		resultID: resultID,
	}
	for _, opt := range opts {
		opt(tr)
	}
	if err := tr.init(ctx); err != nil {
		return nil, fmt.Errorf("initializing reader: %w", err)
	}
	return tr, nil
}

// SqliteTrackReader implements TrackReader for the sqlite backend.
type SqliteTrackReader struct {
	db *sql.DB

	resultID     int64
	result       *ResultRecord
	startTime    *float64 // Optional start of time range filter
	endTime      *float64 // Optional end of time range filter
	withoutGated bool

	current *TrackPoint
	rows    *sql.Rows
	err     error
}

func (tr *SqliteTrackReader) init(ctx context.Context) error {
	if tr.db == nil {
		return errors.New("database connection required")
	}
	if tr.resultID <= 0 {
		return errors.New("result ID required")
	}

	steps := []struct {
		msg string
		fn  func(context.Context) error
	}{
		{msg: "loading result", fn: tr.loadResult},
		{msg: "initializing filters", fn: tr.initFilters},
		{msg: "initializing query", fn: tr.initQuery},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.msg, err)
		}
	}
	return nil
}

func (tr *SqliteTrackReader) loadResult(ctx context.Context) (err error) {
	stmt, err := tr.db.PrepareContext(ctx, selectResultSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	var data resultData
	if err = scanResult(stmt.QueryRowContext(ctx, tr.resultID), &data); err != nil {
		return fmt.Errorf("querying result: %w", err)
	}

	tr.result = data.record()
	return
}

func (tr *SqliteTrackReader) initFilters(context.Context) error {
	if tr.startTime != nil && tr.endTime != nil && *tr.startTime > *tr.endTime {
		return fmt.Errorf("start time %g s is after end time %g s", *tr.startTime, *tr.endTime)
	}

	if tr.startTime == nil {
		start := -math.MaxFloat64
		tr.startTime = &start
	}
	if tr.endTime == nil {
		end := math.MaxFloat64
		tr.endTime = &end
	}
	return nil
}

func (tr *SqliteTrackReader) initQuery(ctx context.Context) (err error) {
	stmt, err := tr.db.PrepareContext(ctx, selectTrackPointsSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	var survivorsOnly int
	if tr.withoutGated {
		survivorsOnly = 1
	}

	if tr.rows, err = stmt.QueryContext(ctx, tr.resultID, *tr.startTime, *tr.endTime, survivorsOnly); err != nil {
		return err
	}
	return nil
}

func (tr *SqliteTrackReader) Result() *ResultRecord {
	return tr.result
}

func (tr *SqliteTrackReader) Next(ctx context.Context) bool {
	if tr.err != nil || tr.rows == nil {
		return false
	}

	if tr.err = ctx.Err(); tr.err != nil {
		return false
	}

	if !tr.rows.Next() {
		tr.current = nil
		return false
	}

	var data trackPointData
	if err := tr.rows.Scan(&data.Time, &data.Frequency, &data.Velocity, &data.PeakDB); err != nil {
		tr.err = fmt.Errorf("scanning track point: %w", err)
		return false
	}

	tr.current = data.point()
	return true
}

func (tr *SqliteTrackReader) Current() *TrackPoint {
	return tr.current
}

func (tr *SqliteTrackReader) Error() error {
	if tr.err != nil {
		return tr.err
	}
	if tr.rows != nil {
		return tr.rows.Err()
	}
	return nil
}

func (tr *SqliteTrackReader) Close() error {
	if tr.rows != nil {
		err := tr.rows.Close()
		tr.current = nil
		tr.rows = nil
		return err
	}
	return nil
}

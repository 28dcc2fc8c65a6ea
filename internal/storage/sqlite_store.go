package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/cw-radar/internal/capture"
	"github.com/roman-kulish/cw-radar/internal/doppler"
)

// maxPointsPerInsert keeps a batch insert below the sqlite variable limit.
const maxPointsPerInsert = 1000

var _ Store = (*SqliteStore)(nil)

// SqliteStore is a Store backed by a single sqlite file. Writes go through a
// WAL-mode connection which creates the schema; reads use a separate
// read-only connection.
type SqliteStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewSqliteStore creates a new store. Connections are opened lazily.
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SqliteStore) StoreCapture(ctx context.Context, outcome *capture.Outcome) (captureID int64, err error) {
	config, err := json.Marshal(outcome.Config)
	if err != nil {
		err = fmt.Errorf("marshaling config: %w", err)
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertCaptureSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	data := toCaptureData(outcome, config)

	result, err := stmt.ExecContext(
		ctx,
		data.ArmedAt,
		data.TriggeredAt,
		data.CompletedAt,
		data.Path,
		data.Samples,
		data.SampleRate,
		data.Status,
		data.Error,
		data.Config,
	)
	if err != nil {
		err = fmt.Errorf("inserting capture: %w", err)
		return
	}

	captureID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting capture ID: %w", err)
	}
	return
}

func (s *SqliteStore) Capture(ctx context.Context, id int64) (record *CaptureRecord, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, selectCaptureSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	var data captureData
	if err = scanCapture(stmt.QueryRowContext(ctx, id), &data); err != nil {
		err = fmt.Errorf("scanning capture: %w", err)
		return
	}

	return data.record(), nil
}

func (s *SqliteStore) Captures(ctx context.Context) (records []*CaptureRecord, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectCapturesSQL)
	if err != nil {
		err = fmt.Errorf("querying captures: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var data captureData
		if err = scanCapture(rows, &data); err != nil {
			err = fmt.Errorf("scanning capture: %w", err)
			return
		}
		records = append(records, data.record())
	}
	err = rows.Err()
	return
}

func (s *SqliteStore) StoreResult(ctx context.Context, captureID *int64, path string, carrierFreq float64, result *doppler.Result) (resultID int64, err error) {
	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		err = fmt.Errorf("beginning transaction: %w", err)
		return
	}
	defer rollbackWithError(tx, &err)

	data := toResultData(captureID, path, carrierFreq, result)

	res, err := tx.ExecContext(
		ctx,
		insertResultSQL,
		data.CaptureID,
		data.ProcessedAt,
		data.Path,
		data.CarrierFreq,
		data.DecimatedRate,
		data.PeakVelocity,
		data.PeakFrequency,
		data.PeakTime,
		data.Threshold,
	)
	if err != nil {
		err = fmt.Errorf("inserting result: %w", err)
		return
	}

	if resultID, err = res.LastInsertId(); err != nil {
		err = fmt.Errorf("getting result ID: %w", err)
		return
	}

	track := result.Track
	for start := 0; start < len(track.Times); start += maxPointsPerInsert {
		end := min(start+maxPointsPerInsert, len(track.Times))
		if err = insertTrackPoints(ctx, tx, resultID, track, start, end); err != nil {
			return
		}
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("committing transaction: %w", err)
	}
	return
}

// insertTrackPoints stores columns [start, end) of a track in a single batch
// insert.
func insertTrackPoints(ctx context.Context, tx *sql.Tx, resultID int64, track *doppler.Track, start, end int) error {
	// Prepare values array
	values := make([]any, 0, (end-start)*5)

	// Build batch insert query
	valuesPlaceholder := "(?, ?, ?, ?, ?)"

	var sb strings.Builder

	sb.WriteString(insertTrackPointSQL)

	for i := start; i < end; i++ {
		data := toTrackPointData(track, i)
		values = append(values,
			resultID,
			data.Time,
			data.Frequency,
			data.Velocity,
			data.PeakDB,
		)

		if i > start {
			sb.WriteString(", ")
		}
		sb.WriteString(valuesPlaceholder)
	}

	if _, err := tx.ExecContext(ctx, sb.String(), values...); err != nil {
		return fmt.Errorf("batch inserting track points: %w", err)
	}

	return nil
}

func (s *SqliteStore) Result(ctx context.Context, id int64) (record *ResultRecord, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, selectResultSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	var data resultData
	if err = scanResult(stmt.QueryRowContext(ctx, id), &data); err != nil {
		err = fmt.Errorf("scanning result: %w", err)
		return
	}

	return data.record(), nil
}

func (s *SqliteStore) Results(ctx context.Context, captureID int64) (records []*ResultRecord, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectResultsSQL, captureID)
	if err != nil {
		err = fmt.Errorf("querying results: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var data resultData
		if err = scanResult(rows, &data); err != nil {
			err = fmt.Errorf("scanning result: %w", err)
			return
		}
		records = append(records, data.record())
	}
	err = rows.Err()
	return
}

// ReadTrack creates a TrackReader over the Doppler track of a result. Points
// are returned in time order, optionally limited to a time range or to
// columns that passed the power gate.
//
// The returned TrackReader must be closed after use to release database
// resources. Each reader instance should only be used from a single
// goroutine.
func (s *SqliteStore) ReadTrack(ctx context.Context, resultID int64, opts ...ReaderOption) (TrackReader, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}
	return newSqliteTrackReader(ctx, db, resultID, opts...)
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			_ = runSQLCommand(s.writeDB, initIndexesSQL)

			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		s.closeErr = errors.Join(writeErr, readErr)
	})

	return s.closeErr
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCapture(row scanner, data *captureData) error {
	return row.Scan(
		&data.ID,
		&data.ArmedAt,
		&data.TriggeredAt,
		&data.CompletedAt,
		&data.Path,
		&data.Samples,
		&data.SampleRate,
		&data.Status,
		&data.Error,
		&data.Config,
	)
}

func scanResult(row scanner, data *resultData) error {
	return row.Scan(
		&data.ID,
		&data.CaptureID,
		&data.ProcessedAt,
		&data.Path,
		&data.CarrierFreq,
		&data.DecimatedRate,
		&data.PeakVelocity,
		&data.PeakFrequency,
		&data.PeakTime,
		&data.Threshold,
	)
}

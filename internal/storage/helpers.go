package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/roman-kulish/cw-radar/internal/capture"
	"github.com/roman-kulish/cw-radar/internal/doppler"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if rbErr := rb.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) && *err == nil {
		*err = rbErr
	}
}

func captureStatus(err error) CaptureStatus {
	switch {
	case err == nil:
		return CaptureSaved
	case errors.Is(err, capture.ErrDisarmed), errors.Is(err, context.Canceled):
		return CaptureDisarmed
	default:
		return CaptureFailed
	}
}

func toCaptureData(o *capture.Outcome, config []byte) *captureData {
	data := captureData{
		ArmedAt:     o.ArmedAt.UTC(),
		CompletedAt: o.CompletedAt.UTC(),
		Samples:     o.Samples,
		SampleRate:  o.Config.SampleRate,
		Status:      string(captureStatus(o.Err)),
		TriggeredAt: sql.NullTime{Time: o.TriggeredAt.UTC(), Valid: !o.TriggeredAt.IsZero()},
		Path:        sql.NullString{String: o.Path, Valid: o.Path != ""},
		Config:      sql.NullString{String: string(config), Valid: len(config) > 0},
	}
	if o.Err != nil {
		data.Error = sql.NullString{String: o.Err.Error(), Valid: true}
	}

	return &data
}

func (d *captureData) record() *CaptureRecord {
	r := CaptureRecord{
		ID:          d.ID,
		ArmedAt:     d.ArmedAt,
		CompletedAt: d.CompletedAt,
		Samples:     d.Samples,
		SampleRate:  d.SampleRate,
		Status:      CaptureStatus(d.Status),
		TriggeredAt: fromNull(d.TriggeredAt.Time, d.TriggeredAt.Valid),
		Path:        fromNull(d.Path.String, d.Path.Valid),
		Error:       fromNull(d.Error.String, d.Error.Valid),
		Config:      fromNull(d.Config.String, d.Config.Valid),
	}
	return &r
}

func toResultData(captureID *int64, path string, carrierFreq float64, r *doppler.Result) *resultData {
	data := resultData{
		ProcessedAt:   time.Now().UTC(),
		Path:          path,
		CarrierFreq:   carrierFreq,
		DecimatedRate: r.DecimatedRate,
		PeakVelocity:  r.PeakVelocity,
		PeakFrequency: r.PeakFrequency,
		PeakTime:      r.PeakTime,
		Threshold:     r.Track.Threshold,
	}
	if captureID != nil {
		data.CaptureID = sql.NullInt64{Int64: *captureID, Valid: true}
	}

	return &data
}

func (d *resultData) record() *ResultRecord {
	return &ResultRecord{
		ID:            d.ID,
		CaptureID:     fromNull(d.CaptureID.Int64, d.CaptureID.Valid),
		ProcessedAt:   d.ProcessedAt,
		Path:          d.Path,
		CarrierFreq:   d.CarrierFreq,
		DecimatedRate: d.DecimatedRate,
		PeakVelocity:  d.PeakVelocity,
		PeakFrequency: d.PeakFrequency,
		PeakTime:      d.PeakTime,
		Threshold:     d.Threshold,
	}
}

// toTrackPointData converts column i of a track. Gated columns are stored
// with a NULL frequency and velocity.
func toTrackPointData(t *doppler.Track, i int) *trackPointData {
	gated := t.PeakDB[i] < t.Threshold

	return &trackPointData{
		Time:      t.Times[i],
		Frequency: sql.NullFloat64{Float64: t.Frequency[i], Valid: !gated},
		Velocity:  sql.NullFloat64{Float64: t.Velocity[i], Valid: !gated},
		PeakDB:    t.PeakDB[i],
	}
}

func (d *trackPointData) point() *TrackPoint {
	return &TrackPoint{
		Time:      d.Time,
		Frequency: fromNull(d.Frequency.Float64, d.Frequency.Valid),
		Velocity:  fromNull(d.Velocity.Float64, d.Velocity.Valid),
		PeakDB:    d.PeakDB,
	}
}

func fromNull[T any](v T, valid bool) *T {
	if !valid {
		return nil
	}
	return &v
}

package storage

import (
	"database/sql"
	"time"
)

const (
	CaptureSaved    CaptureStatus = "saved"
	CaptureDisarmed CaptureStatus = "disarmed"
	CaptureFailed   CaptureStatus = "failed"
)

// CaptureStatus is how a capture session ended.
type CaptureStatus string

// CaptureRecord is one arm/disarm cycle of the radar.
type CaptureRecord struct {
	ID          int64         `json:"ID"`
	ArmedAt     time.Time     `json:"armedAt"`
	TriggeredAt *time.Time    `json:"triggeredAt,omitempty"` // nil if never triggered
	CompletedAt time.Time     `json:"completedAt"`
	Path        *string       `json:"path,omitempty"` // nil unless a file was written
	Samples     int           `json:"samples"`
	SampleRate  float64       `json:"sampleRate"` // Hz
	Status      CaptureStatus `json:"status"`
	Error       *string       `json:"error,omitempty"`
	Config      *string       `json:"config,omitempty"` // session configuration in JSON format
}

// ResultRecord is the analysis of one capture file.
type ResultRecord struct {
	ID            int64     `json:"ID"`
	CaptureID     *int64    `json:"captureID,omitempty"` // nil for files processed outside a session
	ProcessedAt   time.Time `json:"processedAt"`
	Path          string    `json:"path"`
	CarrierFreq   float64   `json:"carrierFreq"`   // Hz
	DecimatedRate float64   `json:"decimatedRate"` // Hz
	PeakVelocity  float64   `json:"peakVelocity"`  // m/s
	PeakFrequency float64   `json:"peakFrequency"` // Hz
	PeakTime      float64   `json:"peakTime"`      // s
	Threshold     float64   `json:"threshold"`     // dB
}

// TrackPoint is one spectrogram column of a result.
type TrackPoint struct {
	Time      float64  `json:"time"`                // s from the start of the capture
	Frequency *float64 `json:"frequency,omitempty"` // Hz, nil where the column was gated
	Velocity  *float64 `json:"velocity,omitempty"`  // m/s, nil where the column was gated
	PeakDB    float64  `json:"peakDB"`
}

type captureData struct {
	ID          int64
	ArmedAt     time.Time
	TriggeredAt sql.NullTime
	CompletedAt time.Time
	Path        sql.NullString
	Samples     int
	SampleRate  float64
	Status      string
	Error       sql.NullString
	Config      sql.NullString
}

type resultData struct {
	ID            int64
	CaptureID     sql.NullInt64
	ProcessedAt   time.Time
	Path          string
	CarrierFreq   float64
	DecimatedRate float64
	PeakVelocity  float64
	PeakFrequency float64
	PeakTime      float64
	Threshold     float64
}

type trackPointData struct {
	Time      float64
	Frequency sql.NullFloat64
	Velocity  sql.NullFloat64
	PeakDB    float64
}

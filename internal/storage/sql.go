package storage

import (
	_ "embed"
)

//go:embed schema.sql
var initSchemaSQL string

const (
	initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_results_capture ON results (capture_id);
CREATE INDEX IF NOT EXISTS idx_track_points_result_time ON track_points (result_id, time);`

	insertCaptureSQL = `
INSERT INTO captures (armed_at,
                      triggered_at,
                      completed_at,
                      path,
                      samples,
                      sample_rate,
                      status,
                      error,
                      config)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectCaptureColumns = `
SELECT
    id,
    armed_at,
    triggered_at,
    completed_at,
    path,
    samples,
    sample_rate,
    status,
    error,
    config
FROM captures`

	selectCaptureSQL = selectCaptureColumns + `
WHERE
    id = ?`

	selectCapturesSQL = selectCaptureColumns + `
ORDER BY armed_at, id`

	insertResultSQL = `
INSERT INTO results (capture_id,
                     processed_at,
                     path,
                     carrier_freq,
                     decimated_rate,
                     peak_velocity,
                     peak_frequency,
                     peak_time,
                     threshold)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectResultColumns = `
SELECT
    id,
    capture_id,
    processed_at,
    path,
    carrier_freq,
    decimated_rate,
    peak_velocity,
    peak_frequency,
    peak_time,
    threshold
FROM results`

	selectResultSQL = selectResultColumns + `
WHERE
    id = ?`

	selectResultsSQL = selectResultColumns + `
WHERE
    capture_id = ?
ORDER BY processed_at, id`

	insertTrackPointSQL = `
INSERT INTO track_points (result_id,
                          time,
                          frequency,
                          velocity,
                          peak_db)
VALUES `

	selectTrackPointsSQL = `
SELECT
    time,
    frequency,
    velocity,
    peak_db
FROM track_points
WHERE
    result_id = ?
    AND time BETWEEN ? AND ?
    AND (? = 0 OR frequency IS NOT NULL)
ORDER BY time`
)

package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/cw-radar/internal/capture"
	"github.com/roman-kulish/cw-radar/internal/config"
	"github.com/roman-kulish/cw-radar/internal/doppler"
)

func newTestStore(t *testing.T) *SqliteStore {
	t.Helper()

	store := NewSqliteStore(filepath.Join(t.TempDir(), "catalog.sqlite"))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testResult() *doppler.Result {
	grid := &doppler.Grid{
		Freqs: []float64{-200, -100, 0, 100},
		Times: []float64{0.1, 0.2, 0.3, 0.4},
		Power: [][]float64{
			{1, 1, 1, 1},
			{8, 1, 1, 1},
			{1, 9, 1, 1},
			{1, 1, 2, 1},
		},
	}
	track := doppler.DominantTrack(grid, 85e9)
	peak := track.Peak()

	return &doppler.Result{
		Samples:       4096,
		DecimatedRate: 75_000,
		Grid:          grid,
		Track:         track,
		PeakVelocity:  track.PeakVelocity(),
		PeakFrequency: track.Frequency[peak],
		PeakTime:      track.Times[peak],
	}
}

func TestSqliteStore_Captures(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	armed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cfg := config.Default()

	saved := &capture.Outcome{
		Path:        "/data/capture.bin",
		Samples:     24_000_000,
		Duration:    4 * time.Second,
		ArmedAt:     armed,
		TriggeredAt: armed.Add(3 * time.Second),
		CompletedAt: armed.Add(5 * time.Second),
		Config:      cfg,
	}
	disarmed := &capture.Outcome{
		ArmedAt:     armed.Add(time.Minute),
		CompletedAt: armed.Add(2 * time.Minute),
		Config:      cfg,
		Err:         capture.ErrDisarmed,
	}
	failed := &capture.Outcome{
		ArmedAt:     armed.Add(time.Hour),
		CompletedAt: armed.Add(time.Hour),
		Config:      cfg,
		Err:         &capture.PersistenceError{Path: "/data/capture.bin", Err: errors.New("disk full")},
	}

	var ids []int64
	for _, o := range []*capture.Outcome{saved, disarmed, failed} {
		id, err := store.StoreCapture(ctx, o)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	records, err := store.Captures(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, ids[0], records[0].ID)
	assert.Equal(t, CaptureSaved, records[0].Status)
	require.NotNil(t, records[0].Path)
	assert.Equal(t, "/data/capture.bin", *records[0].Path)
	require.NotNil(t, records[0].TriggeredAt)
	assert.True(t, saved.TriggeredAt.Equal(*records[0].TriggeredAt))
	assert.True(t, armed.Equal(records[0].ArmedAt))
	assert.Equal(t, 24_000_000, records[0].Samples)
	assert.Equal(t, cfg.SampleRate, records[0].SampleRate)
	assert.Nil(t, records[0].Error)
	require.NotNil(t, records[0].Config)
	assert.Contains(t, *records[0].Config, `"sampleRate":6000000`)

	assert.Equal(t, CaptureDisarmed, records[1].Status)
	assert.Nil(t, records[1].Path)
	assert.Nil(t, records[1].TriggeredAt)

	assert.Equal(t, CaptureFailed, records[2].Status)
	require.NotNil(t, records[2].Error)
	assert.Contains(t, *records[2].Error, "disk full")

	record, err := store.Capture(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, CaptureDisarmed, record.Status)

	_, err = store.Capture(ctx, 999)
	assert.Error(t, err)
}

func TestSqliteStore_Results(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	captureID, err := store.StoreCapture(ctx, &capture.Outcome{
		Path:        "capture.bin",
		ArmedAt:     time.Now(),
		CompletedAt: time.Now(),
		Config:      config.Default(),
	})
	require.NoError(t, err)

	result := testResult()

	resultID, err := store.StoreResult(ctx, &captureID, "capture.bin", 85e9, result)
	require.NoError(t, err)

	// a file processed outside a session has no capture
	_, err = store.StoreResult(ctx, nil, "other.bin", 85e9, result)
	require.NoError(t, err)

	records, err := store.Results(ctx, captureID)
	require.NoError(t, err)
	require.Len(t, records, 1)

	record := records[0]
	assert.Equal(t, resultID, record.ID)
	require.NotNil(t, record.CaptureID)
	assert.Equal(t, captureID, *record.CaptureID)
	assert.Equal(t, "capture.bin", record.Path)
	assert.Equal(t, result.PeakVelocity, record.PeakVelocity)
	assert.Equal(t, -200.0, record.PeakFrequency)
	assert.Equal(t, 0.2, record.PeakTime)
	assert.Equal(t, result.Track.Threshold, record.Threshold)

	t.Run("whole track", func(t *testing.T) {
		reader, err := store.ReadTrack(ctx, resultID)
		require.NoError(t, err)
		defer reader.Close()

		assert.Equal(t, resultID, reader.Result().ID)

		var points []*TrackPoint
		for reader.Next(ctx) {
			points = append(points, reader.Current())
		}
		require.NoError(t, reader.Error())
		require.Len(t, points, 4)

		assert.Nil(t, points[0].Frequency, "gated")
		assert.Nil(t, points[0].Velocity, "gated")
		require.NotNil(t, points[1].Frequency)
		assert.Equal(t, -200.0, *points[1].Frequency)
		require.NotNil(t, points[2].Velocity)
		assert.InDelta(t, doppler.Velocity(-100, 85e9), *points[2].Velocity, 1e-12)
		assert.Nil(t, points[3].Frequency, "gated")
	})

	t.Run("surviving columns in range", func(t *testing.T) {
		reader, err := store.ReadTrack(ctx, resultID, WithTimeRange(0.15, 0.5), WithoutGated())
		require.NoError(t, err)
		defer reader.Close()

		var times []float64
		for reader.Next(ctx) {
			times = append(times, reader.Current().Time)
		}
		require.NoError(t, reader.Error())
		assert.Equal(t, []float64{0.2, 0.3}, times)
	})

	t.Run("invalid range", func(t *testing.T) {
		_, err := store.ReadTrack(ctx, resultID, WithStartTime(1), WithEndTime(0.5))
		assert.Error(t, err)
	})
}

func TestSqliteStore_LongTrack(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	n := 2*maxPointsPerInsert + 17
	grid := &doppler.Grid{
		Freqs: []float64{-100, 0, 100},
		Times: make([]float64, n),
		Power: make([][]float64, n),
	}
	for i := range grid.Times {
		grid.Times[i] = float64(i) * 0.01
		grid.Power[i] = []float64{1, 1, 2}
	}

	result := &doppler.Result{Grid: grid, Track: doppler.DominantTrack(grid, 85e9)}

	resultID, err := store.StoreResult(ctx, nil, "long.bin", 85e9, result)
	require.NoError(t, err)

	reader, err := store.ReadTrack(ctx, resultID)
	require.NoError(t, err)
	defer reader.Close()

	count := 0
	for reader.Next(ctx) {
		count++
	}
	require.NoError(t, reader.Error())
	assert.Equal(t, n, count)
}

func TestSqliteStore_Close(t *testing.T) {
	store := NewSqliteStore(filepath.Join(t.TempDir(), "catalog.sqlite"))

	_, err := store.StoreCapture(context.Background(), &capture.Outcome{Config: config.Default()})
	require.NoError(t, err)

	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}

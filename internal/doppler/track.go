package doppler

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	// GateDB is how far below the strongest column a column's peak may fall
	// before it is treated as having no target return
	GateDB = 5.0

	// powerFloor keeps the dB conversion finite for silent columns
	powerFloor = 1e-10
)

// Track is the dominant Doppler component of each spectrogram column.
type Track struct {
	Times     []float64 // s
	Frequency []float64 // Hz, zero where gated
	Velocity  []float64 // m/s, zero where gated
	PeakDB    []float64 // power of the strongest bin of each column
	Threshold float64   // dB, columns below it are gated
}

// DominantTrack picks the strongest frequency bin of every column and
// converts it to radial velocity for carrier f0. Columns whose peak power is
// more than GateDB below the strongest column report zero. The strongest
// column always survives, even when the whole capture is noise.
func DominantTrack(grid *Grid, f0 float64) *Track {
	n := len(grid.Power)

	track := Track{
		Times:     grid.Times,
		Frequency: make([]float64, n),
		Velocity:  make([]float64, n),
		PeakDB:    make([]float64, n),
	}
	if n == 0 {
		return &track
	}

	bins := make([]int, n)
	for t, col := range grid.Power {
		bins[t] = floats.MaxIdx(col)
		track.PeakDB[t] = 10 * math.Log10(col[bins[t]]+powerFloor)
	}

	track.Threshold = floats.Max(track.PeakDB) - GateDB

	for t := range bins {
		if track.PeakDB[t] < track.Threshold {
			continue
		}

		f := grid.Freqs[bins[t]]
		track.Frequency[t] = f
		track.Velocity[t] = Velocity(f, f0)
	}

	return &track
}

// Peak returns the index of the column with the largest absolute velocity.
func (t *Track) Peak() int {
	best := 0
	for i, v := range t.Velocity {
		if math.Abs(v) > math.Abs(t.Velocity[best]) {
			best = i
		}
	}
	return best
}

// PeakVelocity is the largest absolute radial velocity over the track.
func (t *Track) PeakVelocity() float64 {
	if len(t.Velocity) == 0 {
		return 0
	}
	return math.Abs(t.Velocity[t.Peak()])
}

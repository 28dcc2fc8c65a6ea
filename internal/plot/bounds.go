package plot

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

const (
	defaultMinPower = -120.0 // dB
	defaultMaxPower = 0.0    // dB

	// For 20 samples:
	// - 5% percentile  = 1 sample
	// - 95% percentile = 19th sample
	minimumSampleCount = 20

	// minimumRange keeps a flat spectrogram from being stretched over the
	// whole gradient
	minimumRange = 30.0 // dB
)

// PowerBounds represents the power range mapped onto the color gradient.
type PowerBounds struct {
	Min  float64 // 5th percentile power level in dB, less a margin
	Max  float64 // 95th percentile power level in dB, plus a margin
	Mean float64 // Mean power level in dB
}

func defaultPowerBounds() PowerBounds {
	return PowerBounds{
		Min:  defaultMinPower,
		Max:  defaultMaxPower,
		Mean: (defaultMinPower + defaultMaxPower) / 2,
	}
}

// PercentileBounds returns bounds spanning the 5th to the 95th percentile of
// the finite values in db, widened to at least 30 dB and padded by 10%.
// Fewer than 20 values yield the default bounds.
func PercentileBounds(db []float64) PowerBounds {
	values := make([]float64, 0, len(db))
	for _, v := range db {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			values = append(values, v)
		}
	}
	if len(values) < minimumSampleCount {
		return defaultPowerBounds()
	}

	slices.Sort(values)

	lo := stat.Quantile(0.05, stat.Empirical, values, nil)
	hi := stat.Quantile(0.95, stat.Empirical, values, nil)
	mean := stat.Mean(values, nil)

	if hi-lo < minimumRange {
		center := (hi + lo) / 2
		lo = center - minimumRange/2
		hi = center + minimumRange/2
	}

	margin := (hi - lo) / 10
	return PowerBounds{
		Min:  lo - margin,
		Max:  hi + margin,
		Mean: mean,
	}
}

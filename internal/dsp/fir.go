package dsp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
)

// tapsPerFactor sets the FIR length used for decimation: 20·D+1 taps.
const tapsPerFactor = 20

// FIRWin designs a linear phase low pass FIR filter with a Hamming window.
// cutoff is a fraction of the Nyquist frequency, in (0, 1). The taps are
// normalised to unit gain at DC.
func FIRWin(numTaps int, cutoff float64) ([]float64, error) {
	if numTaps < 1 {
		return nil, fmt.Errorf("%w: at least one tap is required: %d", ErrInvalidFilterSpec, numTaps)
	}
	if !(cutoff > 0 && cutoff < 1) {
		return nil, fmt.Errorf("%w: normalized cutoff must be in (0, 1): %g", ErrInvalidFilterSpec, cutoff)
	}

	h := make([]float64, numTaps)
	alpha := 0.5 * float64(numTaps-1)
	for i := range h {
		h[i] = cutoff * sinc(cutoff*(float64(i)-alpha))
	}
	if numTaps > 1 {
		window.Hamming(h)
	}

	floats.Scale(1/floats.Sum(h), h)

	return h, nil
}

// Decimate low pass filters x with a 20·factor+1 tap Hamming FIR at 1/factor
// of the Nyquist frequency and keeps every factor-th sample. The filter is
// centred on each kept sample, so the output has no delay. The result holds
// ceil(len(x)/factor) samples.
func Decimate(x []complex128, factor int) ([]complex128, error) {
	if factor < 1 {
		return nil, fmt.Errorf("%w: decimation factor must be at least 1: %d", ErrInvalidFilterSpec, factor)
	}
	if factor == 1 {
		y := make([]complex128, len(x))
		copy(y, x)
		return y, nil
	}

	h, err := FIRWin(tapsPerFactor*factor+1, 1/float64(factor))
	if err != nil {
		return nil, err
	}

	half := (len(h) - 1) / 2
	y := make([]complex128, (len(x)+factor-1)/factor)

	for m := range y {
		centre := m*factor + half

		// taps i for which x[centre-i] exists
		lo := max(0, centre-len(x)+1)
		hi := min(len(h)-1, centre)

		var acc complex128
		for i := lo; i <= hi; i++ {
			acc += complex(h[i], 0) * x[centre-i]
		}
		y[m] = acc
	}

	return y, nil
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	return math.Sin(math.Pi*x) / (math.Pi * x)
}

package dsp

import (
	"errors"
	"math"
	"math/cmplx"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func tone(n int, freq, rate float64) []complex128 {
	x := make([]complex128, n)
	for i := range x {
		x[i] = cmplx.Rect(1, 2*math.Pi*freq*float64(i)/rate)
	}
	return x
}

func noise(n int, seed uint64) []complex128 {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	x := make([]complex128, n)
	for i := range x {
		x[i] = complex(rng.NormFloat64(), rng.NormFloat64())
	}
	return x
}

func meanPower(x []complex128) float64 {
	var p float64
	for _, v := range x {
		p += real(v)*real(v) + imag(v)*imag(v)
	}
	return p / float64(len(x))
}

func TestButterworth_Response(t *testing.T) {
	for _, wn := range []float64{0.00625, 0.1, 0.5} {
		sos, err := Butterworth(6, wn, Lowpass)
		require.NoError(t, err)
		require.Len(t, sos, 3)

		assert.InDelta(t, 1, cmplx.Abs(sos.Response(0)), 1e-9, "DC gain at wn=%g", wn)
		assert.InDelta(t, 1/math.Sqrt2, cmplx.Abs(sos.Response(wn)), 1e-6, "-3 dB point at wn=%g", wn)
		assert.Less(t, cmplx.Abs(sos.Response(math.Min(1, 4*wn))), 1e-3, "stop band at wn=%g", wn)
	}

	sos, err := Butterworth(5, 0.3, Highpass)
	require.NoError(t, err)
	assert.InDelta(t, 0, cmplx.Abs(sos.Response(0)), 1e-9)
	assert.InDelta(t, 1, cmplx.Abs(sos.Response(1)), 1e-9)
}

func TestChebyshev1_Response(t *testing.T) {
	ripple := math.Pow(10, -HighPassRipple/20)

	for _, wn := range []float64{2 * 1000 / 6e6, 0.05, 0.3} {
		sos, err := Chebyshev1(HighPassOrder, HighPassRipple, wn, Highpass)
		require.NoError(t, err)

		assert.InDelta(t, 0, cmplx.Abs(sos.Response(0)), 1e-9, "DC rejected at wn=%g", wn)
		assert.InDelta(t, ripple, cmplx.Abs(sos.Response(wn)), 1e-6, "band edge at wn=%g", wn)

		for _, f := range []float64{1.5 * wn, 3 * wn, 0.9, 1} {
			if f > 1 {
				continue
			}
			g := cmplx.Abs(sos.Response(f))
			assert.GreaterOrEqual(t, g, ripple-1e-6, "pass band at f=%g wn=%g", f, wn)
			assert.LessOrEqual(t, g, 1+1e-6, "pass band at f=%g wn=%g", f, wn)
		}

		assert.Less(t, cmplx.Abs(sos.Response(wn/4)), 1e-3, "stop band at wn=%g", wn)
	}
}

func TestDesign_Invalid(t *testing.T) {
	for _, wn := range []float64{0, 1, -0.1, 1.5} {
		_, err := Butterworth(6, wn, Lowpass)
		assert.ErrorIs(t, err, ErrInvalidFilterSpec, "wn=%g", wn)
	}

	_, err := Chebyshev1(0, 0.5, 0.2, Highpass)
	assert.ErrorIs(t, err, ErrInvalidFilterSpec)
}

func TestSOS_FiltFilt(t *testing.T) {
	sos, err := Butterworth(6, 0.1, Lowpass)
	require.NoError(t, err)

	t.Run("constant passes unchanged", func(t *testing.T) {
		x := make([]complex128, 500)
		for i := range x {
			x[i] = complex(2, -1)
		}

		for i, v := range sos.FiltFilt(x) {
			require.InDelta(t, 2, real(v), 1e-6, "sample %d", i)
			require.InDelta(t, -1, imag(v), 1e-6, "sample %d", i)
		}
	})

	t.Run("no phase shift in pass band", func(t *testing.T) {
		x := tone(4000, 0.01, 2) // 0.01 of Nyquist
		y := sos.FiltFilt(x)

		for i := 500; i < len(x)-500; i++ {
			require.InDelta(t, 0, cmplx.Abs(y[i]-x[i]), 1e-3, "sample %d", i)
		}
	})

	t.Run("short input", func(t *testing.T) {
		assert.Len(t, sos.FiltFilt([]complex128{1, 2, 3}), 3)
		assert.Empty(t, sos.FiltFilt(nil))
	})
}

func TestFIRWin(t *testing.T) {
	h, err := FIRWin(161, 1.0/8)
	require.NoError(t, err)

	assert.InDelta(t, 1, floats.Sum(h), 1e-12)
	for i := range h {
		assert.InDelta(t, h[i], h[len(h)-1-i], 1e-12, "symmetry at %d", i)
	}
	assert.Equal(t, 80, floats.MaxIdx(h))
}

func TestDecimate_Length(t *testing.T) {
	for _, tt := range []struct{ n, factor int }{
		{1000, 10}, {1001, 10}, {999, 10}, {80, 80}, {81, 80}, {7, 3}, {5, 1},
	} {
		x := noise(tt.n, 1)
		y, err := Decimate(x, tt.factor)
		require.NoError(t, err)

		assert.Equal(t, (tt.n+tt.factor-1)/tt.factor, len(y), "n=%d factor=%d", tt.n, tt.factor)
		assert.InDelta(t, tt.n/tt.factor, len(y), 1, "n=%d factor=%d", tt.n, tt.factor)
	}
}

func TestLowPassDecimate(t *testing.T) {
	const (
		rate   = 6_000_000.0
		factor = 80
		cutoff = rate / factor / 4
	)

	x := tone(16_000, 2000, rate)
	y, err := LowPassDecimate(x, rate, cutoff, factor)
	require.NoError(t, err)
	require.Len(t, y, 200)

	// a pass band tone keeps its amplitude and phase at the decimated instants
	for m := 40; m < len(y)-40; m++ {
		require.InDelta(t, 0, cmplx.Abs(y[m]-x[m*factor]), 5e-3, "sample %d", m)
	}
}

func TestLowPassDecimate_DoesNotAddPower(t *testing.T) {
	const rate = 1_000_000.0

	for _, factor := range []int{1, 4} {
		cutoff := rate / float64(factor) / 4

		x := noise(40_000, uint64(factor))
		once, err := LowPassDecimate(x, rate, cutoff, factor)
		require.NoError(t, err)

		twice, err := LowPassDecimate(once, rate/float64(factor), cutoff, 1)
		require.NoError(t, err)

		assert.LessOrEqual(t, meanPower(once), meanPower(x), "factor %d", factor)
		assert.LessOrEqual(t, meanPower(twice), meanPower(once)*1.001, "factor %d", factor)
	}
}

func TestValidateLowPassDecimate(t *testing.T) {
	const rate = 6_000_000.0
	nyquist := rate / 80 / 2

	tests := []struct {
		name    string
		cutoff  float64
		factor  int
		invalid bool
	}{
		{"below nyquist", nyquist - 0.01, 80, false},
		{"at nyquist", nyquist, 80, true},
		{"above nyquist", nyquist + 1, 80, true},
		{"zero cutoff", 0, 80, true},
		{"zero factor", 1000, 0, true},
		{"reference parameters", 1_500_000.0 / 80, 80, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLowPassDecimate(rate, tt.cutoff, tt.factor)
			assert.Equal(t, tt.invalid, errors.Is(err, ErrInvalidFilterSpec), "error: %v", err)

			_, err = LowPassDecimate(make([]complex128, 200), rate, tt.cutoff, tt.factor)
			assert.Equal(t, tt.invalid, errors.Is(err, ErrInvalidFilterSpec), "error: %v", err)
		})
	}
}

func TestHighPass(t *testing.T) {
	const rate = 1_000_000.0

	_, err := HighPass(make([]complex128, 10), rate, rate/2)
	assert.ErrorIs(t, err, ErrInvalidFilterSpec)

	_, err = HighPass(make([]complex128, 10), rate, 0)
	assert.ErrorIs(t, err, ErrInvalidFilterSpec)

	// DC leakage plus a 20 kHz beat
	x := tone(200_000, 20_000, rate)
	for i := range x {
		x[i] += 3
	}

	y, err := HighPass(x, rate, 1000)
	require.NoError(t, err)
	require.Len(t, y, len(x))

	settled := y[100_000:]

	var mean complex128
	for _, v := range settled {
		mean += v
	}
	mean /= complex(float64(len(settled)), 0)

	assert.Less(t, cmplx.Abs(mean), 0.01, "DC removed")
	assert.InDelta(t, 1, math.Sqrt(meanPower(settled)), 0.07, "beat kept within ripple")
}

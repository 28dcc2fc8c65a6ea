package doppler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// TukeyAlpha is the taper fraction of the analysis window.
const TukeyAlpha = 0.25

var (
	// ErrShortCapture is returned when the signal is shorter than one
	// analysis window
	ErrShortCapture = errors.New("capture shorter than one analysis window")
)

// Grid is a two-sided power spectral density over time. Power is indexed
// [time][frequency]; Freqs ascend from -rate/2 with zero Doppler in the
// middle.
type Grid struct {
	Freqs []float64 // Hz
	Times []float64 // s, centre of each analysis window
	Power [][]float64
}

// Spectrogram splits x into windows of nfft samples overlapping by overlap
// samples and returns the power spectral density of each. Every window is
// mean-detrended and tapered with a periodic Tukey window before the
// transform. Columns are computed by up to workers goroutines; workers < 1
// uses GOMAXPROCS.
func Spectrogram(ctx context.Context, x []complex128, rate float64, nfft, overlap, workers int) (*Grid, error) {
	if nfft < 2 || overlap < 0 || overlap >= nfft {
		return nil, fmt.Errorf("invalid analysis window: size %d, overlap %d", nfft, overlap)
	}
	if rate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %g", rate)
	}
	if len(x) < nfft {
		return nil, fmt.Errorf("%w: %d samples, window %d", ErrShortCapture, len(x), nfft)
	}

	step := nfft - overlap
	columns := (len(x) - overlap) / step

	// periodic window: symmetric over nfft+1 points with the last one dropped
	win := window.NewValues(window.Tukey{Alpha: TukeyAlpha}.Transform, nfft+1)[:nfft]

	var winPower float64
	for _, w := range win {
		winPower += w * w
	}
	scale := 1 / (rate * winPower)

	fft := fourier.NewCmplxFFT(nfft)

	grid := Grid{
		Freqs: make([]float64, nfft),
		Times: make([]float64, columns),
		Power: make([][]float64, columns),
	}
	for i := range grid.Freqs {
		grid.Freqs[i] = fft.Freq(fft.ShiftIdx(i)) * rate
	}
	for t := range grid.Times {
		grid.Times[t] = (float64(nfft)/2 + float64(t*step)) / rate
	}

	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, columns)

	var (
		wg   sync.WaitGroup
		next = make(chan int)
	)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			var (
				plan  = fourier.NewCmplxFFT(nfft)
				seg   = make([]complex128, nfft)
				coeff = make([]complex128, nfft)
			)

			for t := range next {
				start := t * step
				copy(seg, x[start:start+nfft])

				var mean complex128
				for _, v := range seg {
					mean += v
				}
				mean /= complex(float64(nfft), 0)
				for i := range seg {
					seg[i] -= mean
				}

				win.TransformComplexTo(seg, seg)
				plan.Coefficients(coeff, seg)

				col := make([]float64, nfft)
				for i := range col {
					c := coeff[plan.ShiftIdx(i)]
					col[i] = (real(c)*real(c) + imag(c)*imag(c)) * scale
				}
				grid.Power[t] = col
			}
		}()
	}

	var err error
feed:
	for t := 0; t < columns; t++ {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		case next <- t:
		}
	}
	close(next)
	wg.Wait()

	if err != nil {
		return nil, err
	}

	return &grid, nil
}

// Normalize scales x in place so that its largest magnitude is one. A
// silent signal is left unchanged.
func Normalize(x []complex128) {
	var peak float64
	for _, v := range x {
		peak = math.Max(peak, math.Hypot(real(v), imag(v)))
	}
	if peak == 0 {
		return
	}

	s := complex(1/peak, 0)
	for i := range x {
		x[i] *= s
	}
}

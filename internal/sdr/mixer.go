package sdr

import (
	"math"
	"math/cmplx"
)

// renormalizeEvery bounds the drift of the oscillator phasor magnitude.
const renormalizeEvery = 1024

// Oscillator produces a complex exponential at a fixed frequency by phasor
// rotation.
type Oscillator struct {
	phase complex128
	step  complex128
	n     int
}

// NewOscillator creates an oscillator at freq Hz for the given sample rate.
func NewOscillator(freq, sampleRate float64) *Oscillator {
	return &Oscillator{
		phase: 1,
		step:  cmplx.Rect(1, 2*math.Pi*freq/sampleRate),
	}
}

// Next returns the current phasor and advances by one sample.
func (o *Oscillator) Next() complex128 {
	p := o.phase
	o.phase *= o.step

	o.n++
	if o.n == renormalizeEvery {
		o.phase /= complex(cmplx.Abs(o.phase), 0)
		o.n = 0
	}

	return p
}

// Fill writes the next len(dst) oscillator samples.
func (o *Oscillator) Fill(dst []Sample) {
	for i := range dst {
		dst[i] = complex64(o.Next())
	}
}

// Mixer multiplies the transmitted IF reference by the conjugate of the
// received signal, leaving the Doppler beat at baseband.
type Mixer struct {
	lo *Oscillator
}

func NewMixer(intermediateFreq, sampleRate float64) *Mixer {
	return &Mixer{lo: NewOscillator(intermediateFreq, sampleRate)}
}

// Mix writes tx·conj(rx) for each received sample into dst. dst and rx may
// be the same slice.
func (m *Mixer) Mix(dst, rx []Sample) {
	for i, s := range rx {
		dst[i] = complex64(m.lo.Next() * cmplx.Conj(complex128(s)))
	}
}

// Package dsp implements the stateless filtering stage applied to a saved
// capture before spectral analysis.
package dsp

import (
	"errors"
	"fmt"
)

const (
	// HighPassOrder and HighPassRipple define the leakage rejection filter
	HighPassOrder  = 6
	HighPassRipple = 0.5 // dB

	// LowPassOrder defines the anti-alias filter applied before decimation
	LowPassOrder = 6
)

var (
	// ErrInvalidFilterSpec is returned when a cutoff, rate or decimation
	// factor combination cannot be realised below the Nyquist frequency
	ErrInvalidFilterSpec = errors.New("invalid filter spec")
)

// ValidateHighPass checks that cutoff lies strictly between zero and the
// Nyquist frequency of rate.
func ValidateHighPass(rate, cutoff float64) error {
	if rate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive: %g", ErrInvalidFilterSpec, rate)
	}
	if cutoff <= 0 || cutoff >= rate/2 {
		return fmt.Errorf("%w: high pass cutoff %g Hz must be in (0, %g) Hz", ErrInvalidFilterSpec, cutoff, rate/2)
	}

	return nil
}

// ValidateLowPassDecimate checks that cutoff lies strictly below the
// Nyquist frequency of the decimated rate.
func ValidateLowPassDecimate(rate, cutoff float64, factor int) error {
	if rate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive: %g", ErrInvalidFilterSpec, rate)
	}
	if factor < 1 {
		return fmt.Errorf("%w: decimation factor must be at least 1: %d", ErrInvalidFilterSpec, factor)
	}

	nyquist := rate / float64(factor) / 2
	if cutoff <= 0 || cutoff >= nyquist {
		return fmt.Errorf("%w: low pass cutoff %g Hz must be in (0, %g) Hz for decimation by %d",
			ErrInvalidFilterSpec, cutoff, nyquist, factor)
	}

	return nil
}

// HighPass removes transmit leakage and DC offset below cutoff with a
// causal Chebyshev type I filter.
func HighPass(x []complex128, rate, cutoff float64) ([]complex128, error) {
	if err := ValidateHighPass(rate, cutoff); err != nil {
		return nil, err
	}

	sos, err := Chebyshev1(HighPassOrder, HighPassRipple, cutoff/(rate/2), Highpass)
	if err != nil {
		return nil, err
	}

	return sos.Filter(x), nil
}

// LowPassDecimate removes content above cutoff with a zero phase
// Butterworth filter and reduces the rate by factor. The output holds
// ceil(len(x)/factor) samples aligned with every factor-th input sample.
func LowPassDecimate(x []complex128, rate, cutoff float64, factor int) ([]complex128, error) {
	if err := ValidateLowPassDecimate(rate, cutoff, factor); err != nil {
		return nil, err
	}

	sos, err := Butterworth(LowPassOrder, cutoff/(rate/2), Lowpass)
	if err != nil {
		return nil, err
	}

	return Decimate(sos.FiltFilt(x), factor)
}

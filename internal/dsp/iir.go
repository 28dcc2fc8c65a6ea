package dsp

import (
	"fmt"
	"math"
	"math/cmplx"
	"sort"
)

// realTolerance is the largest imaginary part treated as a real root.
const realTolerance = 1e-10

// Response selects the pass band of a filter design.
type Response int

const (
	Lowpass Response = iota
	Highpass
)

func (r Response) String() string {
	switch r {
	case Lowpass:
		return "lowpass"
	case Highpass:
		return "highpass"
	default:
		return fmt.Sprintf("Response(%d)", int(r))
	}
}

// Section is a biquad with real coefficients; A[0] is always 1.
type Section struct {
	B [3]float64
	A [3]float64
}

// SOS is a cascade of second-order sections.
type SOS []Section

// zpk is a filter in zero-pole-gain form.
type zpk struct {
	z []complex128
	p []complex128
	k float64
}

// Butterworth designs a digital Butterworth filter of the given order. wn is
// the cutoff as a fraction of the Nyquist frequency, in (0, 1).
func Butterworth(order int, wn float64, resp Response) (SOS, error) {
	if order < 1 {
		return nil, fmt.Errorf("%w: order must be at least 1: %d", ErrInvalidFilterSpec, order)
	}

	p := make([]complex128, order)
	for i := range p {
		m := float64(2*i - order + 1)
		p[i] = -cmplx.Exp(complex(0, math.Pi*m/float64(2*order)))
	}

	return design(zpk{p: p, k: 1}, wn, resp)
}

// Chebyshev1 designs a digital Chebyshev type I filter with rippleDB of
// pass band ripple. wn is the cutoff as a fraction of the Nyquist frequency,
// in (0, 1).
func Chebyshev1(order int, rippleDB, wn float64, resp Response) (SOS, error) {
	if order < 1 {
		return nil, fmt.Errorf("%w: order must be at least 1: %d", ErrInvalidFilterSpec, order)
	}
	if rippleDB <= 0 {
		return nil, fmt.Errorf("%w: ripple must be positive: %g dB", ErrInvalidFilterSpec, rippleDB)
	}

	eps := math.Sqrt(math.Pow(10, 0.1*rippleDB) - 1)
	mu := math.Asinh(1/eps) / float64(order)

	p := make([]complex128, order)
	for i := range p {
		m := float64(2*i - order + 1)
		p[i] = -cmplx.Sinh(complex(mu, math.Pi*m/float64(2*order)))
	}

	k := real(prodNeg(p))
	if order%2 == 0 {
		k /= math.Sqrt(1 + eps*eps)
	}

	return design(zpk{p: p, k: k}, wn, resp)
}

// design maps an analog low pass prototype to a digital filter by frequency
// transformation and the bilinear transform with pre-warping.
func design(proto zpk, wn float64, resp Response) (SOS, error) {
	if !(wn > 0 && wn < 1) {
		return nil, fmt.Errorf("%w: normalized cutoff must be in (0, 1): %g", ErrInvalidFilterSpec, wn)
	}

	const fs = 2.0
	warped := 2 * fs * math.Tan(math.Pi*wn/fs)

	var analog zpk
	switch resp {
	case Lowpass:
		analog = lowpassToLowpass(proto, warped)
	case Highpass:
		analog = lowpassToHighpass(proto, warped)
	default:
		return nil, fmt.Errorf("%w: unsupported response %s", ErrInvalidFilterSpec, resp)
	}

	return toSOS(bilinear(analog, fs))
}

func lowpassToLowpass(f zpk, wo float64) zpk {
	out := zpk{
		z: scale(f.z, wo),
		p: scale(f.p, wo),
		k: f.k * math.Pow(wo, float64(len(f.p)-len(f.z))),
	}
	return out
}

func lowpassToHighpass(f zpk, wo float64) zpk {
	degree := len(f.p) - len(f.z)

	out := zpk{
		z: make([]complex128, 0, len(f.z)+degree),
		p: make([]complex128, len(f.p)),
		k: f.k * real(prodNeg(f.z)/prodNeg(f.p)),
	}
	for _, z := range f.z {
		out.z = append(out.z, complex(wo, 0)/z)
	}
	for i, p := range f.p {
		out.p[i] = complex(wo, 0) / p
	}
	for i := 0; i < degree; i++ {
		out.z = append(out.z, 0) // zeros at infinity move to the origin
	}

	return out
}

func bilinear(f zpk, fs float64) zpk {
	fs2 := complex(2*fs, 0)
	degree := len(f.p) - len(f.z)

	out := zpk{
		z: make([]complex128, 0, len(f.z)+degree),
		p: make([]complex128, len(f.p)),
	}

	num, den := complex(1, 0), complex(1, 0)
	for _, z := range f.z {
		out.z = append(out.z, (fs2+z)/(fs2-z))
		num *= fs2 - z
	}
	for i, p := range f.p {
		out.p[i] = (fs2 + p) / (fs2 - p)
		den *= fs2 - p
	}
	for i := 0; i < degree; i++ {
		out.z = append(out.z, -1) // zeros at infinity move to Nyquist
	}
	out.k = f.k * real(num/den)

	return out
}

// toSOS groups conjugate roots into real second-order sections. Sections are
// ordered with the poles closest to the unit circle last; the gain goes into
// the first section.
func toSOS(f zpk) (SOS, error) {
	if len(f.z) != len(f.p) {
		return nil, fmt.Errorf("dsp: %d zeros for %d poles", len(f.z), len(f.p))
	}

	poles, err := pairRoots(f.p)
	if err != nil {
		return nil, fmt.Errorf("dsp: poles: %w", err)
	}
	zeros, err := pairRoots(f.z)
	if err != nil {
		return nil, fmt.Errorf("dsp: zeros: %w", err)
	}
	if len(poles) != len(zeros) {
		return nil, fmt.Errorf("dsp: cannot pair %d pole groups with %d zero groups", len(poles), len(zeros))
	}

	sort.SliceStable(poles, func(i, j int) bool {
		return cmplx.Abs(poles[i][0]) < cmplx.Abs(poles[j][0])
	})

	sos := make(SOS, len(poles))
	for i := range poles {
		sos[i] = Section{
			B: quadratic(zeros[i]),
			A: quadratic(poles[i]),
		}
	}

	for j := range sos[0].B {
		sos[0].B[j] *= f.k
	}

	return sos, nil
}

// pairRoots returns groups of one or two roots whose product polynomial has
// real coefficients: conjugate pairs first, then real roots two at a time.
func pairRoots(roots []complex128) ([][]complex128, error) {
	var (
		groups [][]complex128
		reals  []float64
		upper  int
		lower  int
	)

	for _, r := range roots {
		switch {
		case imag(r) > realTolerance:
			groups = append(groups, []complex128{r, cmplx.Conj(r)})
			upper++
		case imag(r) < -realTolerance:
			lower++
		default:
			reals = append(reals, real(r))
		}
	}
	if upper != lower {
		return nil, fmt.Errorf("%d roots without a conjugate", upper-lower)
	}

	sort.Float64s(reals)
	for i := 0; i < len(reals); i += 2 {
		if i+1 < len(reals) {
			groups = append(groups, []complex128{complex(reals[i], 0), complex(reals[i+1], 0)})
		} else {
			groups = append(groups, []complex128{complex(reals[i], 0)})
		}
	}

	return groups, nil
}

// quadratic expands the monic polynomial with the given one or two roots.
func quadratic(roots []complex128) [3]float64 {
	if len(roots) == 1 {
		return [3]float64{1, -real(roots[0]), 0}
	}
	return [3]float64{1, -real(roots[0] + roots[1]), real(roots[0] * roots[1])}
}

func scale(roots []complex128, s float64) []complex128 {
	out := make([]complex128, len(roots))
	for i, r := range roots {
		out[i] = r * complex(s, 0)
	}
	return out
}

func prodNeg(roots []complex128) complex128 {
	p := complex(1, 0)
	for _, r := range roots {
		p *= -r
	}
	return p
}

// Response evaluates the frequency response at f, a fraction of the
// Nyquist frequency.
func (s SOS) Response(f float64) complex128 {
	zinv := cmplx.Exp(complex(0, -math.Pi*f))
	zinv2 := zinv * zinv

	h := complex(1, 0)
	for _, sec := range s {
		num := complex(sec.B[0], 0) + complex(sec.B[1], 0)*zinv + complex(sec.B[2], 0)*zinv2
		den := complex(sec.A[0], 0) + complex(sec.A[1], 0)*zinv + complex(sec.A[2], 0)*zinv2
		h *= num / den
	}

	return h
}

// Filter applies the cascade causally from a zero initial state and returns
// a new slice.
func (s SOS) Filter(x []complex128) []complex128 {
	y := make([]complex128, len(x))
	copy(y, x)
	s.filterInPlace(y, make([][2]complex128, len(s)))
	return y
}

// FiltFilt applies the cascade forward and then backward, giving zero phase
// shift and the squared magnitude response. The signal is extended at both
// ends by odd reflection and each pass starts from the steady-state response
// to its first sample, which suppresses start-up transients.
func (s SOS) FiltFilt(x []complex128) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}

	padLen := min(3*(2*len(s)+1), len(x)-1)
	ext := make([]complex128, len(x)+2*padLen)

	first, last := x[0], x[len(x)-1]
	for i := 0; i < padLen; i++ {
		ext[i] = 2*first - x[padLen-i]
		ext[len(ext)-1-i] = 2*last - x[len(x)-1-(padLen-i)]
	}
	copy(ext[padLen:], x)

	zi := s.steadyState()
	state := make([][2]complex128, len(s))

	scaleState(state, zi, ext[0])
	s.filterInPlace(ext, state)

	reverse(ext)
	scaleState(state, zi, ext[0])
	s.filterInPlace(ext, state)
	reverse(ext)

	y := make([]complex128, len(x))
	copy(y, ext[padLen:padLen+len(x)])
	return y
}

// filterInPlace runs each section in transposed direct form II.
func (s SOS) filterInPlace(x []complex128, state [][2]complex128) {
	for n, v := range x {
		for i := range s {
			sec := &s[i]
			z := &state[i]

			y := complex(sec.B[0], 0)*v + z[0]
			z[0] = complex(sec.B[1], 0)*v - complex(sec.A[1], 0)*y + z[1]
			z[1] = complex(sec.B[2], 0)*v - complex(sec.A[2], 0)*y
			v = y
		}
		x[n] = v
	}
}

// steadyState returns the per-section state for a unit step input that has
// been applied forever.
func (s SOS) steadyState() [][2]float64 {
	zi := make([][2]float64, len(s))

	gain := 1.0
	for i, sec := range s {
		b, a := sec.B, sec.A

		b0 := b[1] - a[1]*b[0]
		b1 := b[2] - a[2]*b[0]
		z0 := (b0 + b1) / (1 + a[1] + a[2])
		z1 := b1 - a[2]*z0

		zi[i] = [2]float64{gain * z0, gain * z1}
		gain *= (b[0] + b[1] + b[2]) / (a[0] + a[1] + a[2])
	}

	return zi
}

func scaleState(dst [][2]complex128, zi [][2]float64, x0 complex128) {
	for i := range dst {
		dst[i][0] = complex(zi[i][0], 0) * x0
		dst[i][1] = complex(zi[i][1], 0) * x0
	}
}

func reverse(x []complex128) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}

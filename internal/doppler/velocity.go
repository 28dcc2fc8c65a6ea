package doppler

// SpeedOfLight in m/s.
const SpeedOfLight = 299_792_458.0

// Velocity converts a two-way Doppler beat frequency f (Hz) observed on a
// carrier f0 (Hz) to radial velocity in m/s using the exact relation
// v = f·c / (2·f0 + f).
func Velocity(f, f0 float64) float64 {
	return f * SpeedOfLight / (2*f0 + f)
}

// BeatFrequency is the inverse of Velocity: f = 2·f0·v / (c - v).
func BeatFrequency(v, f0 float64) float64 {
	return 2 * f0 * v / (SpeedOfLight - v)
}

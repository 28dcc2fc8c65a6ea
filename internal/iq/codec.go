// Package iq reads and writes headerless raw capture files: a flat sequence
// of interleaved little-endian float32 I and Q values.
package iq

import (
	"encoding/binary"
	"math"
)

// SampleBytes is the encoded size of one complex sample.
const SampleBytes = 8

// Encode writes samples into dst, which must hold len(samples)*SampleBytes
// bytes.
func Encode(dst []byte, samples []complex64) {
	for i, s := range samples {
		binary.LittleEndian.PutUint32(dst[i*SampleBytes:], math.Float32bits(real(s)))
		binary.LittleEndian.PutUint32(dst[i*SampleBytes+4:], math.Float32bits(imag(s)))
	}
}

// Decode fills dst from whole samples in src and returns the number decoded.
func Decode(dst []complex64, src []byte) int {
	n := min(len(dst), len(src)/SampleBytes)
	for i := 0; i < n; i++ {
		re := math.Float32frombits(binary.LittleEndian.Uint32(src[i*SampleBytes:]))
		im := math.Float32frombits(binary.LittleEndian.Uint32(src[i*SampleBytes+4:]))
		dst[i] = complex(re, im)
	}

	return n
}

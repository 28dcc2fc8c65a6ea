package sdr

import (
	"fmt"
	"math"
	"sync/atomic"
)

// RingBuffer is a fixed-capacity, drop-oldest buffer of complex samples
// shared between a single streaming producer and any number of snapshot
// readers.
//
// Samples live in an arena of 64-bit words (float32 I and Q bits packed
// together) so each slot is written and read with a single atomic operation.
// Positions are addressed by a monotonically increasing cursor taken modulo
// the capacity. The producer advances the reserved cursor before touching any
// slot and publishes the head cursor after the slots are stored; a reader
// copies up to head and then uses the reserved cursor to discard any prefix
// the producer may have overwritten during the copy.
type RingBuffer struct {
	slots    []atomic.Uint64
	capacity uint64

	reserved atomic.Uint64 // one past the last position claimed by the producer
	head     atomic.Uint64 // one past the last position fully written
}

// MaxBufferCapacity is the largest ring buffer NewRingBuffer allocates.
const MaxBufferCapacity = 1 << 30

// NewRingBuffer creates a ring buffer holding up to capacity samples.
func NewRingBuffer(capacity int) (*RingBuffer, error) {
	if capacity <= 0 || capacity > MaxBufferCapacity {
		return nil, fmt.Errorf("invalid buffer capacity: %d", capacity)
	}

	return &RingBuffer{
		slots:    make([]atomic.Uint64, capacity),
		capacity: uint64(capacity),
	}, nil
}

// Write appends samples, evicting the oldest ones once the buffer is full.
// It never blocks and never fails. Only one goroutine may call Write at a
// time.
func (b *RingBuffer) Write(samples []Sample) {
	n := uint64(len(samples))
	if n == 0 {
		return
	}

	start := b.head.Load()
	end := start + n

	// only the freshest capacity samples of an oversized batch can survive
	if n > b.capacity {
		samples = samples[n-b.capacity:]
		start = end - b.capacity
	}

	b.reserved.Store(end)
	for i, s := range samples {
		b.slots[(start+uint64(i))%b.capacity].Store(pack(s))
	}
	b.head.Store(end)
}

// Snapshot returns an ordered copy of the buffered samples, oldest first.
// It can run concurrently with Write: the copy is always a contiguous run of
// fully written samples, possibly missing the oldest few that were evicted
// while copying.
func (b *RingBuffer) Snapshot() []Sample {
	end := b.head.Load()
	start := end - min(end, b.capacity)

	out := make([]Sample, end-start)
	for i := range out {
		out[i] = unpack(b.slots[(start+uint64(i))%b.capacity].Load())
	}

	// positions below reserved-capacity may have been overwritten mid-copy
	if r := b.reserved.Load(); r > b.capacity && r-b.capacity > start {
		drop := min(r-b.capacity-start, uint64(len(out)))
		out = out[drop:]
	}

	return out
}

// Len returns the number of samples currently held.
func (b *RingBuffer) Len() int {
	return int(min(b.head.Load(), b.capacity))
}

// Cap returns the buffer capacity in samples.
func (b *RingBuffer) Cap() int {
	return int(b.capacity)
}

// Written returns the total number of samples written since the last reset.
func (b *RingBuffer) Written() uint64 {
	return b.head.Load()
}

// Reset empties the buffer. It must not be called while a producer is
// writing.
func (b *RingBuffer) Reset() {
	b.reserved.Store(0)
	b.head.Store(0)
}

func pack(s Sample) uint64 {
	return uint64(math.Float32bits(real(s)))<<32 | uint64(math.Float32bits(imag(s)))
}

func unpack(v uint64) Sample {
	return complex(math.Float32frombits(uint32(v>>32)), math.Float32frombits(uint32(v)))
}

package sdr

import (
	"sync"
	"sync/atomic"
	"testing"
)

// counterSample encodes a sequence number so that torn or reordered samples
// are detectable: I carries n and Q carries -n. Both are exact in float32 for
// n below 2^24.
func counterSample(n int) Sample {
	return complex(float32(n), -float32(n))
}

func TestRingBuffer_InvalidCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1, MaxBufferCapacity + 1} {
		if _, err := NewRingBuffer(capacity); err == nil {
			t.Fatalf("expected error for capacity %d", capacity)
		}
	}
}

func TestRingBuffer_KeepsMostRecent(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		batches  []int
	}{
		{"partial fill", 10, []int{3, 4}},
		{"exact fill", 10, []int{5, 5}},
		{"wraps once", 10, []int{7, 7}},
		{"many small writes", 16, []int{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1}},
		{"oversized batch", 8, []int{3, 25}},
		{"oversized first batch", 8, []int{40}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewRingBuffer(tt.capacity)
			if err != nil {
				t.Fatalf("failed to create buffer: %v", err)
			}

			var next int
			for _, size := range tt.batches {
				batch := make([]Sample, size)
				for i := range batch {
					batch[i] = counterSample(next)
					next++
				}
				b.Write(batch)
			}

			want := min(next, tt.capacity)
			got := b.Snapshot()
			if len(got) != want {
				t.Fatalf("expected %d samples, got %d", want, len(got))
			}
			if b.Len() != want {
				t.Errorf("expected Len %d, got %d", want, b.Len())
			}

			first := next - want
			for i, s := range got {
				if s != counterSample(first+i) {
					t.Fatalf("sample %d: expected %v, got %v", i, counterSample(first+i), s)
				}
			}
		})
	}
}

func TestRingBuffer_Reset(t *testing.T) {
	b, _ := NewRingBuffer(4)
	b.Write([]Sample{1, 2, 3})
	b.Reset()

	if n := len(b.Snapshot()); n != 0 {
		t.Fatalf("expected empty snapshot after reset, got %d samples", n)
	}
	if b.Written() != 0 {
		t.Errorf("expected written counter to be reset, got %d", b.Written())
	}

	b.Write([]Sample{5})
	if got := b.Snapshot(); len(got) != 1 || got[0] != 5 {
		t.Errorf("unexpected snapshot after reset: %v", got)
	}
}

func TestRingBuffer_ConcurrentSnapshot(t *testing.T) {
	const (
		capacity = 4096
		total    = 2_000_000
		batch    = 333
	)

	b, err := NewRingBuffer(capacity)
	if err != nil {
		t.Fatalf("failed to create buffer: %v", err)
	}

	var (
		wg   sync.WaitGroup
		done atomic.Bool
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer done.Store(true)

		buf := make([]Sample, batch)
		for n := 0; n < total; {
			k := min(batch, total-n)
			for i := 0; i < k; i++ {
				buf[i] = counterSample(n + i)
			}
			b.Write(buf[:k])
			n += k
		}
	}()

	var snapshots int
	for !done.Load() {
		snap := b.Snapshot()
		snapshots++

		if len(snap) > capacity {
			t.Fatalf("snapshot longer than capacity: %d", len(snap))
		}
		for i, s := range snap {
			if real(s) != -imag(s) {
				t.Fatalf("torn sample at %d: %v", i, s)
			}
			if i > 0 && real(s) != real(snap[i-1])+1 {
				t.Fatalf("gap or duplicate at %d: %v follows %v", i, s, snap[i-1])
			}
		}
	}

	wg.Wait()

	final := b.Snapshot()
	if len(final) != capacity {
		t.Fatalf("expected %d samples after producer finished, got %d", capacity, len(final))
	}
	if final[len(final)-1] != counterSample(total-1) {
		t.Errorf("expected last sample %v, got %v", counterSample(total-1), final[len(final)-1])
	}
	t.Logf("checked %d concurrent snapshots", snapshots)
}

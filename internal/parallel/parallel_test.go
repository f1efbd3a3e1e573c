package parallel

import (
	"sync/atomic"
	"testing"
)

func TestFor(t *testing.T) {
	cfg := DefaultConfig()

	var counter int64
	n := 100000

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	if counter != int64(n) {
		t.Errorf("Expected %d, got %d", n, counter)
	}
}

func TestFor_Sequential(t *testing.T) {
	cfg := Config{Enabled: false}

	var counter int64
	For(100, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	if counter != 100 {
		t.Errorf("Expected 100, got %d", counter)
	}
}

func TestForChunks_CoversRange(t *testing.T) {
	cfg := DefaultConfig()

	n := 100000
	seen := make([]int32, n)

	ForChunks(n, func(start, end int) {
		for i := start; i < end; i++ {
			atomic.AddInt32(&seen[i], 1)
		}
	}, cfg)

	for i, c := range seen {
		if c != 1 {
			t.Fatalf("Index %d visited %d times", i, c)
		}
	}
}

func TestForChunks_SmallFallsBackToSingleRange(t *testing.T) {
	cfg := DefaultConfig()

	var calls int64
	n := cfg.MinChunkSize - 1

	ForChunks(n, func(start, end int) {
		atomic.AddInt64(&calls, 1)
		if start != 0 || end != n {
			t.Errorf("Expected single range [0, %d), got [%d, %d)", n, start, end)
		}
	}, cfg)

	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestWithWorkers(t *testing.T) {
	cfg := WithWorkers(4)
	if !cfg.Enabled || cfg.NumWorkers != 4 {
		t.Errorf("WithWorkers(4) = %+v", cfg)
	}

	seq := WithWorkers(1)
	if seq.Enabled {
		t.Error("WithWorkers(1) should disable parallelism")
	}
}

func BenchmarkForChunks(b *testing.B) {
	cfg := DefaultConfig()
	n := 1 << 20
	data := make([]float32, n)

	b.Run("parallel", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			ForChunks(n, func(start, end int) {
				for j := start; j < end; j++ {
					data[j] += 1
				}
			}, cfg)
		}
	})

	b.Run("sequential", func(b *testing.B) {
		cfgSeq := cfg
		cfgSeq.Enabled = false
		for i := 0; i < b.N; i++ {
			ForChunks(n, func(start, end int) {
				for j := start; j < end; j++ {
					data[j] += 1
				}
			}, cfgSeq)
		}
	})
}

package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFor(t *testing.T) {
	cfg := DefaultConfig()

	var counter int64
	n := 3 * cfg.MinChunkSize

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	assert.Equal(t, int64(n), counter)
}

func TestForBatch(t *testing.T) {
	cfg := DefaultConfig().Coarse()

	batch, channels := 4, 8
	results := make([][]bool, batch)
	for b := range results {
		results[b] = make([]bool, channels)
	}

	ForBatch(batch, channels, func(b, c int) {
		results[b][c] = true
	}, cfg)

	for b := 0; b < batch; b++ {
		for c := 0; c < channels; c++ {
			assert.True(t, results[b][c], "missing result at [%d][%d]", b, c)
		}
	}
}

func TestFor_Sequential(t *testing.T) {
	cfg := Config{Enabled: false}

	var counter int64
	For(100, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	assert.Equal(t, int64(100), counter)
}

func TestRange_CoversEveryIndexOnce(t *testing.T) {
	tests := []struct {
		name string
		n    int
		cfg  Config
	}{
		{"sequential", 10, Config{}},
		{"coarse", 7, Config{Enabled: true, NumWorkers: 3, MinChunkSize: 1}},
		{"more workers than items", 2, Config{Enabled: true, NumWorkers: 16, MinChunkSize: 1}},
		{"below chunk size", 100, DefaultConfig()},
		{"empty", 0, DefaultConfig()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits := make([]int32, tt.n)
			Range(tt.n, func(start, end int) {
				for i := start; i < end; i++ {
					atomic.AddInt32(&hits[i], 1)
				}
			}, tt.cfg)
			for i, h := range hits {
				assert.Equal(t, int32(1), h, "index %d", i)
			}
		})
	}
}

func BenchmarkFor(b *testing.B) {
	cfg := DefaultConfig()
	n := 1 << 16

	b.Run("parallel", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var sum int64
			For(n, func(j int) {
				atomic.AddInt64(&sum, int64(j))
			}, cfg)
		}
	})

	b.Run("sequential", func(b *testing.B) {
		seq := Config{Enabled: false}
		for i := 0; i < b.N; i++ {
			var sum int64
			For(n, func(j int) {
				atomic.AddInt64(&sum, int64(j))
			}, seq)
		}
	})
}

// Package parallel fans CPU kernel loops out over goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns defaults based on CPU count, sized for element-wise loops.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 4096,
	}
}

// Coarse returns a copy of cfg for loops whose iterations are expensive
// (a whole feature-map plane or a GEMM per item).
func (cfg Config) Coarse() Config {
	cfg.MinChunkSize = 1
	return cfg
}

// For executes f(i) for i in [0, n) with optional parallelism.
// Falls back to sequential execution if parallelism is disabled or n is too small.
func For(n int, f func(i int), cfg Config) {
	Range(n, func(start, end int) {
		for i := start; i < end; i++ {
			f(i)
		}
	}, cfg)
}

// Range splits [0, n) into contiguous chunks and calls f(start, end) for
// each chunk, concurrently when enabled.
func Range(n int, f func(start, end int), cfg Config) {
	if n <= 0 {
		return
	}
	workers := max(cfg.NumWorkers, 1)
	if !cfg.Enabled || workers == 1 || n < 2*max(cfg.MinChunkSize, 1) {
		f(0, n)
		return
	}

	chunkSize := max((n+workers-1)/workers, cfg.MinChunkSize, 1)

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			f(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ForBatch iterates the batch*channels pattern common in CNN kernels.
func ForBatch(batch, channels int, f func(b, c int), cfg Config) {
	For(batch*channels, func(k int) {
		f(k/channels, k%channels)
	}, cfg)
}

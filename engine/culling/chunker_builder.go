package culling

import "github.com/Carmen-Shannon/oxy-cull/config"

// ChunkerOption is a functional option applied to a Chunker during construction via NewChunker.
type ChunkerOption func(*Chunker)

// WithBatchCount lowers the number of records per chunk. Values outside (0, BatchCount] are ignored.
//
// Parameters:
//   - n: the records per chunk
//
// Returns:
//   - ChunkerOption: a function that applies the option to a Chunker
func WithBatchCount(n int) ChunkerOption {
	return func(c *Chunker) {
		if n > 0 && n <= config.BatchCount {
			c.batchCount = n
		}
	}
}

// WithCapacity lowers the draw slot and chunk limits, typically to match smaller buffers.
// Zero values keep the config defaults; larger values are clamped to MaxDrawsIndirect and
// MaxBatchesPerFrame, which size the per-frame buffers.
//
// Parameters:
//   - maxDraws: the draw slot capacity
//   - maxBatches: the chunk capacity
//
// Returns:
//   - ChunkerOption: a function that applies the option to a Chunker
func WithCapacity(maxDraws, maxBatches int) ChunkerOption {
	return func(c *Chunker) {
		if maxDraws > 0 {
			c.maxDraws = min(maxDraws, config.MaxDrawsIndirect)
		}
		if maxBatches > 0 {
			c.maxBatches = min(maxBatches, config.MaxBatchesPerFrame)
		}
	}
}

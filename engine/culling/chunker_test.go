package culling

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-cull/config"
	"github.com/Carmen-Shannon/oxy-cull/engine/mesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func survivorsOf(t *testing.T, geom *mesh.Geometry, perMesh []int) []Survivor {
	t.Helper()
	var out []Survivor
	for m, n := range perMesh {
		for c := range n {
			out = append(out, Survivor{Mesh: uint32(m), Cluster: uint32(c), ViewMask: 1})
		}
	}
	require.LessOrEqual(t, len(out), geom.ClusterCount())
	return out
}

func TestChunker_CapacityAndConservation(t *testing.T) {
	geom := scene(t, 1, strip("a", 4, 0), strip("b", 3, 0), strip("c", 3, 0))
	survivors := survivorsOf(t, geom, []int{4, 3, 3})

	var (
		sizes   []int
		records []SmallBatchData
	)
	result, err := NewChunker(WithBatchCount(3)).Run(geom, survivors, func(c *BatchChunk) error {
		assert.LessOrEqual(t, c.Len(), 3)
		assert.Equal(t, len(sizes), c.Index())
		sizes = append(sizes, c.Len())
		records = append(records, c.Records()...)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []int{3, 3, 3, 1}, sizes, "the last partial chunk is flushed")
	assert.Equal(t, 4, result.Chunks)
	assert.Equal(t, len(survivors), result.Records)
	assert.Len(t, records, len(survivors))

	require.Len(t, result.DrawSlots, 3)
	assert.Equal(t, uint32(0), result.DrawSlots[0].OutputOffset)
	assert.Equal(t, uint32(12), result.DrawSlots[1].OutputOffset)
	assert.Equal(t, uint32(21), result.DrawSlots[2].OutputOffset)
	assert.Equal(t, uint32(30), result.OutputIndices)

	// Slot bookkeeping carries across chunk boundaries.
	for i := 1; i < len(records); i++ {
		assert.GreaterOrEqual(t, records[i].DrawSlot, records[i-1].DrawSlot)
	}
	assert.Equal(t, uint32(0), records[3].DrawSlot, "record 3 starts chunk 2 inside mesh a")
	assert.Equal(t, uint32(1), records[4].DrawSlot)
	assert.Equal(t, uint32(12), records[4].OutputOffset)
	assert.Equal(t, uint32(9), records[3].IndexOffset)
}

func TestChunker_NoSurvivorsNoDispatch(t *testing.T) {
	geom := scene(t, 1, strip("a", 2, 0))
	result, err := NewChunker().Run(geom, nil, func(*BatchChunk) error {
		t.Fatal("dispatch without survivors")
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, result.Chunks)
	assert.Empty(t, result.DrawSlots)
}

func TestChunker_CapacityErrorsBeforeDispatch(t *testing.T) {
	geom := scene(t, 1, strip("a", 2, 0), strip("b", 2, 0))
	survivors := survivorsOf(t, geom, []int{2, 2})
	never := func(*BatchChunk) error {
		t.Fatal("dispatched past a capacity violation")
		return nil
	}

	tests := []struct {
		name    string
		options []ChunkerOption
		want    error
	}{
		{"draw slots", []ChunkerOption{WithCapacity(1, 0)}, ErrDrawCapacity},
		{"batches", []ChunkerOption{WithBatchCount(1), WithCapacity(0, 3)}, ErrBatchCapacity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewChunker(tt.options...).Run(geom, survivors, never)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, config.ErrCapacity)
		})
	}
}

func TestChunker_RejectsUnorderedSurvivors(t *testing.T) {
	geom := scene(t, 1, strip("a", 2, 0), strip("b", 2, 0))
	survivors := []Survivor{{Mesh: 1, Cluster: 0, ViewMask: 1}, {Mesh: 0, Cluster: 0, ViewMask: 1}}
	_, err := NewChunker().Run(geom, survivors, func(*BatchChunk) error { return nil })
	assert.Error(t, err)
}

func TestChunker_DispatchErrorStops(t *testing.T) {
	geom := scene(t, 1, strip("a", 4, 0))
	survivors := survivorsOf(t, geom, []int{4})
	boom := errors.New("boom")

	calls := 0
	_, err := NewChunker(WithBatchCount(2)).Run(geom, survivors, func(*BatchChunk) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestBatchChunk_Marshal(t *testing.T) {
	var c BatchChunk
	c.records[0] = SmallBatchData{MeshIndex: 1, IndexOffset: 2, TriangleCount: 3, OutputOffset: 4, DrawSlot: 5, ViewMask: 3}
	c.n = 1
	raw := c.Marshal()
	require.Len(t, raw, BatchWords*4)
	assert.Equal(t, byte(5), raw[16])
	assert.Equal(t, byte(3), raw[20])
}

func TestWithCapacity_ClampsToBufferLimits(t *testing.T) {
	tests := []struct {
		name                 string
		maxDraws, maxBatches int
		wantDraws, wantBatch int
	}{
		{"defaults", 0, 0, config.MaxDrawsIndirect, config.MaxBatchesPerFrame},
		{"lowered", 8, 2, 8, 2},
		{"above buffers", config.MaxDrawsIndirect + 1, config.MaxBatchesPerFrame * 2, config.MaxDrawsIndirect, config.MaxBatchesPerFrame},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChunker(WithCapacity(tt.maxDraws, tt.maxBatches))
			assert.Equal(t, tt.wantDraws, c.maxDraws)
			assert.Equal(t, tt.wantBatch, c.maxBatches)
		})
	}
}

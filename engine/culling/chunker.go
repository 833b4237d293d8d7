package culling

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/config"
	"github.com/Carmen-Shannon/oxy-cull/engine/mesh"
)

var (
	// ErrDrawCapacity is returned when a frame needs more draw slots than MaxDrawsIndirect.
	ErrDrawCapacity = fmt.Errorf("draw slots: %w", config.ErrCapacity)

	// ErrBatchCapacity is returned when a frame needs more filter dispatches than MaxBatchesPerFrame.
	ErrBatchCapacity = fmt.Errorf("batch chunks: %w", config.ErrCapacity)
)

// SmallBatchData is one cluster's work item for the triangle filtering kernel.
type SmallBatchData struct {
	// MeshIndex is the mesh the cluster belongs to.
	MeshIndex uint32
	// IndexOffset is the cluster's first index in the global index buffer.
	IndexOffset uint32
	// TriangleCount is the number of triangles in the cluster.
	TriangleCount uint32
	// OutputOffset is the start of the mesh's region in each view's filtered stream.
	OutputOffset uint32
	// DrawSlot is the mesh's accumulated draw index this frame.
	DrawSlot uint32
	// ViewMask selects the views the cluster survived.
	ViewMask uint32
}

// BatchChunk is a reusable buffer of up to BatchCount records, consumed by one filter dispatch.
type BatchChunk struct {
	records [config.BatchCount]SmallBatchData
	n       int
	index   int
}

// Records returns the records of the chunk.
func (c *BatchChunk) Records() []SmallBatchData {
	return c.records[:c.n]
}

// Len returns the number of records in the chunk.
func (c *BatchChunk) Len() int {
	return c.n
}

// Index returns the chunk's position among the frame's dispatches.
func (c *BatchChunk) Index() int {
	return c.index
}

// Marshal serializes the records as GPUSmallBatchData.
//
// Returns:
//   - []byte: BatchWords*4 bytes per record
func (c *BatchChunk) Marshal() []byte {
	out := make([]byte, 0, c.n*BatchWords*4)
	for _, r := range c.records[:c.n] {
		g := GPUSmallBatchData{
			MeshIndex:     r.MeshIndex,
			IndexOffset:   r.IndexOffset,
			TriangleCount: r.TriangleCount,
			OutputOffset:  r.OutputOffset,
			DrawSlot:      r.DrawSlot,
			ViewMask:      r.ViewMask,
		}
		out = append(out, g.Marshal()...)
	}
	return out
}

func (c *BatchChunk) reset() {
	c.n = 0
}

// DrawSlotInfo describes the draw slot allocated to one mesh with surviving clusters.
type DrawSlotInfo struct {
	MeshIndex    uint32
	GeometrySet  mesh.GeometrySet
	OutputOffset uint32
	IndexCount   uint32
}

// ChunkResult summarizes one Chunker run.
type ChunkResult struct {
	// Chunks is the number of dispatched chunks.
	Chunks int
	// Records is the number of dispatched records, one per surviving cluster.
	Records int
	// DrawSlots holds one entry per allocated draw slot, indexed by slot.
	DrawSlots []DrawSlotInfo
	// OutputIndices is the total size of the allocated filtered stream regions.
	OutputIndices uint32
}

// SlotRecords packs the draw slots for the compaction kernel.
//
// Returns:
//   - []byte: DrawSlotWords*4 bytes per slot
func (r *ChunkResult) SlotRecords() []byte {
	out := make([]byte, 0, len(r.DrawSlots)*DrawSlotWords*4)
	for _, s := range r.DrawSlots {
		g := GPUDrawSlot{
			MeshIndex:    s.MeshIndex,
			GeometrySet:  uint32(s.GeometrySet),
			OutputOffset: s.OutputOffset,
			IndexCount:   s.IndexCount,
		}
		out = append(out, g.Marshal()...)
	}
	return out
}

// Chunker turns pre-filter survivors into filter dispatches. It keeps its chunk and slot
// storage between frames and is not safe for concurrent use.
type Chunker struct {
	batchCount int
	maxDraws   int
	maxBatches int

	chunk BatchChunk
	slots []DrawSlotInfo
}

// NewChunker creates a chunker sized by the config capacities, with options applied.
//
// Parameters:
//   - options: functional options for the chunker
//
// Returns:
//   - *Chunker: the chunker
func NewChunker(options ...ChunkerOption) *Chunker {
	c := &Chunker{
		batchCount: config.BatchCount,
		maxDraws:   config.MaxDrawsIndirect,
		maxBatches: config.MaxBatchesPerFrame,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Run walks survivors in order and hands every full chunk, then the last partial one, to
// dispatch. Draw slots and output regions are allocated on a mesh's first surviving cluster
// and carry across chunk boundaries, so slots are contiguous and increase monotonically.
// Capacities are checked before the first dispatch.
//
// The DrawSlots of the result are reused by the next call to Run.
//
// Parameters:
//   - geom: the scene geometry
//   - survivors: the pre-filter output, grouped by mesh in mesh order
//   - dispatch: receives each chunk; the chunk is reset after it returns
//
// Returns:
//   - ChunkResult: the dispatch summary
//   - error: ErrDrawCapacity, ErrBatchCapacity, or the first dispatch error
func (c *Chunker) Run(geom *mesh.Geometry, survivors []Survivor, dispatch func(*BatchChunk) error) (ChunkResult, error) {
	meshes := geom.Meshes()

	draws := 0
	for i, s := range survivors {
		if int(s.Mesh) >= len(meshes) {
			return ChunkResult{}, fmt.Errorf("survivor %d names mesh %d of %d", i, s.Mesh, len(meshes))
		}
		if i > 0 && s.Mesh < survivors[i-1].Mesh {
			return ChunkResult{}, errors.New("survivors are not grouped in mesh order")
		}
		if i == 0 || s.Mesh != survivors[i-1].Mesh {
			draws++
		}
		clusters := meshes[s.Mesh].Clusters()
		if int(s.Cluster) >= len(clusters) {
			return ChunkResult{}, fmt.Errorf("mesh %d has no cluster %d", s.Mesh, s.Cluster)
		}
		if n := clusters[s.Cluster].TriangleCount; n > config.ClusterTriangleCount {
			return ChunkResult{}, fmt.Errorf("mesh %d cluster %d has %d triangles, kernel groups hold %d: %w",
				s.Mesh, s.Cluster, n, config.ClusterTriangleCount, config.ErrCapacity)
		}
	}
	if draws > c.maxDraws {
		return ChunkResult{}, fmt.Errorf("%d meshes survived, %d slots: %w", draws, c.maxDraws, ErrDrawCapacity)
	}
	chunks := int(common.CeilDiv(uint32(len(survivors)), uint32(c.batchCount)))
	if chunks > c.maxBatches {
		return ChunkResult{}, fmt.Errorf("%d clusters need %d chunks, %d allowed: %w", len(survivors), chunks, c.maxBatches, ErrBatchCapacity)
	}

	c.slots = c.slots[:0]
	c.chunk.reset()
	c.chunk.index = 0

	var (
		result     ChunkResult
		batchStart uint32
		current    = -1
	)
	flush := func() error {
		if err := dispatch(&c.chunk); err != nil {
			return fmt.Errorf("dispatch chunk %d: %w", c.chunk.index, err)
		}
		result.Chunks++
		result.Records += c.chunk.n
		c.chunk.reset()
		c.chunk.index++
		return nil
	}

	for _, s := range survivors {
		m := meshes[s.Mesh]
		if int(s.Mesh) != current {
			current = int(s.Mesh)
			c.slots = append(c.slots, DrawSlotInfo{
				MeshIndex:    m.Index(),
				GeometrySet:  m.GeometrySet(),
				OutputOffset: batchStart,
				IndexCount:   m.IndexCount(),
			})
			batchStart += m.IndexCount()
		}
		cl := m.Clusters()[s.Cluster]
		slot := len(c.slots) - 1
		c.chunk.records[c.chunk.n] = SmallBatchData{
			MeshIndex:     m.Index(),
			IndexOffset:   m.IndexOffset() + 3*cl.TriangleOffset,
			TriangleCount: cl.TriangleCount,
			OutputOffset:  c.slots[slot].OutputOffset,
			DrawSlot:      uint32(slot),
			ViewMask:      s.ViewMask,
		}
		c.chunk.n++
		if c.chunk.n == c.batchCount {
			if err := flush(); err != nil {
				return result, err
			}
		}
	}
	if c.chunk.n > 0 {
		if err := flush(); err != nil {
			return result, err
		}
	}

	result.DrawSlots = c.slots
	result.OutputIndices = batchStart
	return result, nil
}

package mesh

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/config"
	"github.com/Carmen-Shannon/oxy-cull/engine/cluster"
	"github.com/chewxy/math32"
)

// Geometry is the scene's static geometry arena. Meshes are appended during scene load; the
// arena is read-only afterwards and shared by every frame in flight.
type Geometry struct {
	mu        sync.RWMutex
	positions [][3]float32
	indices   []uint32
	meshes    []Mesh
	clusters  int
}

// NewGeometry creates an empty geometry arena.
//
// Returns:
//   - *Geometry: the arena
func NewGeometry() *Geometry {
	return &Geometry{}
}

// AddMesh appends an imported mesh to the arena, rebasing its indices onto the global vertex
// buffer and building its clusters.
//
// Parameters:
//   - src: the imported mesh
//   - options: functional options for this mesh
//
// Returns:
//   - Mesh: the added mesh
//   - error: an error if the mesh is malformed
func (g *Geometry) AddMesh(src common.ImportedMesh, options ...MeshBuilderOption) (Mesh, error) {
	opts := &meshOptions{}
	for _, option := range options {
		option(opts)
	}
	if len(src.Indices)%3 != 0 {
		return nil, fmt.Errorf("mesh %q: index count %d is not a multiple of 3", src.Name, len(src.Indices))
	}
	for _, idx := range src.Indices {
		if int(idx) >= len(src.Positions) {
			return nil, fmt.Errorf("mesh %q: index %d out of range of %d vertices", src.Name, idx, len(src.Positions))
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	m := &mesh{
		name:         src.Name,
		index:        uint32(len(g.meshes)),
		materialID:   src.MaterialID,
		twoSided:     src.TwoSided,
		indexOffset:  uint32(len(g.indices)),
		indexCount:   uint32(len(src.Indices)),
		vertexOffset: uint32(len(g.positions)),
		vertexCount:  uint32(len(src.Positions)),
		transform:    src.Transform,
	}
	if src.AlphaTested {
		m.geometrySet = GeometrySetAlphaTested
		m.alpha = src.Alpha
		m.alphaCutoff = src.AlphaCutoff
	}
	if m.transform == ([16]float32{}) {
		m.transform = common.IdentityMatrix()
	}
	if !common.Invert4(m.inverseTransform[:], m.transform[:]) {
		return nil, fmt.Errorf("mesh %q: transform is not invertible", src.Name)
	}
	// alpha-tested geometry is never facing-rejected, so its cones must not be either
	m.clusters = cluster.Build(src.Positions, src.Indices, src.TwoSided || src.AlphaTested, opts.clusterOptions...)

	g.positions = append(g.positions, src.Positions...)
	for _, idx := range src.Indices {
		g.indices = append(g.indices, idx+m.vertexOffset)
	}
	g.meshes = append(g.meshes, m)
	g.clusters += len(m.clusters)
	return m, nil
}

// Meshes returns the meshes in load order.
//
// Returns:
//   - []Mesh: the meshes
func (g *Geometry) Meshes() []Mesh {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.meshes
}

// Positions returns the global vertex positions.
//
// Returns:
//   - [][3]float32: the positions
func (g *Geometry) Positions() [][3]float32 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.positions
}

// Indices returns the global, rebased index buffer.
//
// Returns:
//   - []uint32: the indices
func (g *Geometry) Indices() []uint32 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.indices
}

// TriangleCount returns the total number of triangles in the arena.
//
// Returns:
//   - int: the triangle count
func (g *Geometry) TriangleCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.indices) / 3
}

// ClusterCount returns the total number of clusters in the arena.
//
// Returns:
//   - int: the cluster count
func (g *Geometry) ClusterCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.clusters
}

// PositionWords encodes the vertex positions as vec4<f32> words (w = 1) for the GPU.
//
// Returns:
//   - []uint32: four words per vertex
func (g *Geometry) PositionWords() []uint32 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	words := make([]uint32, len(g.positions)*4)
	for i, p := range g.positions {
		words[i*4] = math32.Float32bits(p[0])
		words[i*4+1] = math32.Float32bits(p[1])
		words[i*4+2] = math32.Float32bits(p[2])
		words[i*4+3] = math32.Float32bits(1)
	}
	return words
}

// MeshConstants builds the GPU record of every mesh, indexed by mesh index.
//
// Returns:
//   - []GPUMeshConstants: one record per mesh
func (g *Geometry) MeshConstants() []GPUMeshConstants {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]GPUMeshConstants, len(g.meshes))
	for i, m := range g.meshes {
		out[i] = NewGPUMeshConstants(m)
	}
	return out
}

// Validate checks the arena against the fixed capacities.
//
// Returns:
//   - error: a config.ErrCapacity wrapped error if the scene cannot fit
func (g *Geometry) Validate() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if len(g.meshes) > config.MaxDrawsIndirect {
		return fmt.Errorf("%d meshes exceed %d draw slots: %w", len(g.meshes), config.MaxDrawsIndirect, config.ErrCapacity)
	}
	if limit := config.MaxBatchesPerFrame * config.BatchCount; g.clusters > limit {
		return fmt.Errorf("%d clusters exceed %d batch records: %w", g.clusters, limit, config.ErrCapacity)
	}
	return nil
}

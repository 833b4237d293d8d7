// Package mesh holds the static scene geometry: meshes, their clusters, and the shared vertex
// and index arena uploaded once at load.
package mesh

import (
	"github.com/Carmen-Shannon/oxy-cull/engine/cluster"
)

// GeometrySet partitions draw calls by the pipeline state they are rendered with.
type GeometrySet uint32

const (
	// GeometrySetOpaque holds fully opaque geometry; back-face rejection applies.
	GeometrySetOpaque GeometrySet = iota

	// GeometrySetAlphaTested holds alpha-tested geometry, which skips back-face rejection.
	GeometrySetAlphaTested
)

// String returns the set name used in labels and logs.
func (s GeometrySet) String() string {
	switch s {
	case GeometrySetOpaque:
		return "opaque"
	case GeometrySetAlphaTested:
		return "alpha_tested"
	default:
		return "unknown"
	}
}

// mesh is the implementation of the Mesh interface.
type mesh struct {
	name        string
	index       uint32
	materialID  uint32
	twoSided    bool
	geometrySet GeometrySet
	alpha       float32
	alphaCutoff float32

	indexOffset  uint32
	indexCount   uint32
	vertexOffset uint32
	vertexCount  uint32

	transform        [16]float32
	inverseTransform [16]float32

	clusters []cluster.Cluster
}

// Mesh defines the interface for one immutable mesh of the scene. A Mesh owns an ordered list of
// clusters and knows where its triangles live inside the shared geometry arena.
type Mesh interface {
	// Name returns the mesh identifier used in logs.
	//
	// Returns:
	//   - string: the mesh name
	Name() string

	// Index returns the position of the mesh in the scene, which is also its slot in the
	// mesh constants buffer.
	//
	// Returns:
	//   - uint32: the mesh index
	Index() uint32

	// MaterialID returns the opaque material reference of the mesh.
	//
	// Returns:
	//   - uint32: the material id
	MaterialID() uint32

	// TwoSided reports whether back-face rejection is disabled for the mesh.
	//
	// Returns:
	//   - bool: true for two-sided geometry
	TwoSided() bool

	// GeometrySet returns the set the mesh's draw call belongs to.
	//
	// Returns:
	//   - GeometrySet: opaque or alpha-tested
	GeometrySet() GeometrySet

	// Alpha returns the material coverage compared against AlphaCutoff by the alpha-tested
	// pipelines.
	//
	// Returns:
	//   - float32: the coverage
	Alpha() float32

	// AlphaCutoff returns the coverage below which alpha-tested fragments are discarded.
	//
	// Returns:
	//   - float32: the cutoff, zero for geometry that is never discarded
	AlphaCutoff() float32

	// IndexOffset returns the first index of the mesh in the global index buffer.
	//
	// Returns:
	//   - uint32: the global index offset
	IndexOffset() uint32

	// IndexCount returns the number of indices of the mesh.
	//
	// Returns:
	//   - uint32: three times the triangle count
	IndexCount() uint32

	// VertexOffset returns the first vertex of the mesh in the global vertex buffer.
	// Indices stored in the arena are already rebased by this offset.
	//
	// Returns:
	//   - uint32: the global vertex offset
	VertexOffset() uint32

	// VertexCount returns the number of vertices of the mesh.
	//
	// Returns:
	//   - uint32: the vertex count
	VertexCount() uint32

	// TriangleCount returns the number of triangles of the mesh.
	//
	// Returns:
	//   - uint32: the triangle count
	TriangleCount() uint32

	// Transform returns the object-to-world matrix (column-major).
	//
	// Returns:
	//   - [16]float32: the model matrix
	Transform() [16]float32

	// InverseTransform returns the world-to-object matrix (column-major), used to bring eye
	// positions into object space for the cone test.
	//
	// Returns:
	//   - [16]float32: the inverse model matrix
	InverseTransform() [16]float32

	// Clusters returns the mesh's clusters in triangle order. The slice must not be modified.
	//
	// Returns:
	//   - []cluster.Cluster: the clusters
	Clusters() []cluster.Cluster
}

var _ Mesh = &mesh{}

func (m *mesh) Name() string                  { return m.name }
func (m *mesh) Index() uint32                 { return m.index }
func (m *mesh) MaterialID() uint32            { return m.materialID }
func (m *mesh) TwoSided() bool                { return m.twoSided }
func (m *mesh) GeometrySet() GeometrySet      { return m.geometrySet }
func (m *mesh) Alpha() float32                { return m.alpha }
func (m *mesh) AlphaCutoff() float32          { return m.alphaCutoff }
func (m *mesh) IndexOffset() uint32           { return m.indexOffset }
func (m *mesh) IndexCount() uint32            { return m.indexCount }
func (m *mesh) VertexOffset() uint32          { return m.vertexOffset }
func (m *mesh) VertexCount() uint32           { return m.vertexCount }
func (m *mesh) TriangleCount() uint32         { return m.indexCount / 3 }
func (m *mesh) Transform() [16]float32        { return m.transform }
func (m *mesh) InverseTransform() [16]float32 { return m.inverseTransform }
func (m *mesh) Clusters() []cluster.Cluster   { return m.clusters }

// Package model defines loaded models: named groups of imported meshes with their materials.
package model

import (
	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/chewxy/math32"
)

// model is the implementation of the Model interface.
type model struct {
	name           string
	meshes         []common.ImportedMesh
	materials      []Material
	boundingRadius float32
}

// Model defines the interface for a loaded 3D model.
// It is produced by the Loader and placed into a scene through game objects.
type Model interface {
	// Name retrieves the model identifier.
	//
	// Returns:
	//   - string: the model name
	Name() string

	// Meshes retrieves the model's meshes in model space.
	//
	// Returns:
	//   - []common.ImportedMesh: the meshes, which must not be modified
	Meshes() []common.ImportedMesh

	// Materials retrieves the model's materials, indexed by ImportedMesh.MaterialID.
	//
	// Returns:
	//   - []Material: the materials
	Materials() []Material

	// TriangleCount returns the total number of triangles across all meshes.
	//
	// Returns:
	//   - int: the triangle count
	TriangleCount() int

	// BoundingRadius returns the distance from the model-space origin to its farthest vertex.
	//
	// Returns:
	//   - float32: the radius
	BoundingRadius() float32
}

var _ Model = &model{}

// NewModel creates a new Model with the given options. The bounding radius is computed from the
// meshes unless set explicitly.
//
// Parameters:
//   - options: functional options to configure the model
//
// Returns:
//   - Model: the model
func NewModel(options ...ModelBuilderOption) Model {
	m := &model{boundingRadius: -1}
	for _, option := range options {
		option(m)
	}
	if m.boundingRadius < 0 {
		m.boundingRadius = computeBoundingRadius(m.meshes)
	}
	return m
}

// FromImported wraps an import result into a Model.
//
// Parameters:
//   - imported: the import result
//
// Returns:
//   - Model: the model
func FromImported(imported *ImportedModel) Model {
	return NewModel(
		WithName(imported.Name),
		WithMeshes(imported.Meshes...),
		WithMaterials(imported.Materials...),
	)
}

func (m *model) Name() string                  { return m.name }
func (m *model) Meshes() []common.ImportedMesh { return m.meshes }
func (m *model) Materials() []Material         { return m.materials }
func (m *model) BoundingRadius() float32       { return m.boundingRadius }

func (m *model) TriangleCount() int {
	n := 0
	for i := range m.meshes {
		n += m.meshes[i].TriangleCount()
	}
	return n
}

// computeBoundingRadius measures vertices after each mesh's own transform.
func computeBoundingRadius(meshes []common.ImportedMesh) float32 {
	var maxSq float32
	for _, mesh := range meshes {
		transform := mesh.Transform
		if transform == ([16]float32{}) {
			transform = common.IdentityMatrix()
		}
		for _, p := range mesh.Positions {
			w := common.TransformPoint(transform[:], p)
			maxSq = max(maxSq, common.Dot3(w, w))
		}
	}
	return math32.Sqrt(maxSq)
}

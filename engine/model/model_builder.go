package model

import "github.com/Carmen-Shannon/oxy-cull/common"

// ModelBuilderOption is a functional option for configuring a Model via NewModel.
type ModelBuilderOption func(*model)

// WithName sets the model name.
//
// Parameters:
//   - name: the model identifier
//
// Returns:
//   - ModelBuilderOption: a function that applies the name option to a model
func WithName(name string) ModelBuilderOption {
	return func(m *model) {
		m.name = name
	}
}

// WithMeshes appends meshes to the model.
//
// Parameters:
//   - meshes: the model-space meshes
//
// Returns:
//   - ModelBuilderOption: a function that applies the meshes to a model
func WithMeshes(meshes ...common.ImportedMesh) ModelBuilderOption {
	return func(m *model) {
		m.meshes = append(m.meshes, meshes...)
	}
}

// WithMaterials appends materials to the model.
func WithMaterials(materials ...Material) ModelBuilderOption {
	return func(m *model) {
		m.materials = append(m.materials, materials...)
	}
}

// WithBoundingRadius overrides the computed bounding radius.
//
// Parameters:
//   - radius: the bounding radius in model space
//
// Returns:
//   - ModelBuilderOption: a function that applies the radius to a model
func WithBoundingRadius(radius float32) ModelBuilderOption {
	return func(m *model) {
		m.boundingRadius = radius
	}
}

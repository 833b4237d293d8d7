package model

import "github.com/Carmen-Shannon/oxy-cull/common"

// AlphaMode is how a material's coverage is decided.
type AlphaMode int

const (
	// AlphaModeOpaque ignores alpha.
	AlphaModeOpaque AlphaMode = iota
	// AlphaModeMask discards fragments below a cutoff.
	AlphaModeMask
	// AlphaModeBlend blends; it is drawn with the alpha-tested pipeline state.
	AlphaModeBlend
)

// Material is the subset of a source material that decides how its triangles are culled and drawn.
type Material struct {
	Name        string
	AlphaMode   AlphaMode
	AlphaCutoff float32
	// Alpha is the base colour alpha factor.
	Alpha       float32
	DoubleSided bool
}

// AlphaTested reports whether geometry using the material belongs to the alpha-tested set.
func (m Material) AlphaTested() bool {
	return m.AlphaMode != AlphaModeOpaque
}

// ImportedModel is the CPU-side result of a model import, before it is wrapped into a Model.
type ImportedModel struct {
	// Name is the model identifier, from the source scene or its path.
	Name string

	// Meshes holds one entry per triangle primitive instance, with node transforms applied.
	Meshes []common.ImportedMesh

	// Materials is indexed by ImportedMesh.MaterialID.
	Materials []Material
}

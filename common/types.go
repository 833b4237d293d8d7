// package common contains common types and helpers that are used throughout this engine. They are not
// interface-wrapped structs, just plain structs and pure functions shared by several packages.
package common

// ImportedMesh holds triangle geometry extracted from a model file or generated procedurally,
// before it is placed into the scene's geometry arena.
type ImportedMesh struct {
	// Name is the mesh identifier from the source, used for logging only.
	Name string

	// Positions holds the object-space vertex positions.
	Positions [][3]float32

	// Indices holds three vertex indices per triangle, counter-clockwise front faces.
	Indices []uint32

	// TwoSided marks geometry that must never be back-face culled.
	TwoSided bool

	// AlphaTested marks geometry drawn with the alpha-tested pipeline state.
	AlphaTested bool

	// Alpha is the material coverage of alpha-tested geometry. Its fragments are discarded
	// when Alpha is below AlphaCutoff; the zero values keep every fragment.
	Alpha       float32
	AlphaCutoff float32

	// MaterialID is an opaque material reference carried through to the draw arguments.
	MaterialID uint32

	// Transform is the object-to-world matrix (column-major). The zero matrix is treated as identity.
	Transform [16]float32
}

// TriangleCount returns the number of whole triangles described by Indices.
//
// Returns:
//   - int: len(Indices) / 3
func (m *ImportedMesh) TriangleCount() int {
	return len(m.Indices) / 3
}

package model

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/stretchr/testify/assert"
)

func TestModel_TriangleCountAndRadius(t *testing.T) {
	var moved [16]float32
	common.BuildModelMatrix(moved[:], [3]float32{0, 4, 0}, [3]float32{}, [3]float32{1, 1, 1})

	m := NewModel(
		WithName("pair"),
		WithMeshes(
			common.ImportedMesh{Positions: [][3]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}, Indices: []uint32{0, 1, 2}},
			common.ImportedMesh{Positions: [][3]float32{{0, 1, 0}, {1, 0, 0}, {0, 0, 0}}, Indices: []uint32{0, 1, 2, 2, 1, 0}, Transform: moved},
		),
	)
	assert.Equal(t, "pair", m.Name())
	assert.Equal(t, 3, m.TriangleCount())
	assert.InDelta(t, 5, m.BoundingRadius(), 1e-6, "the moved vertex (0, 5, 0) is farthest")

	assert.Equal(t, float32(2), NewModel(WithBoundingRadius(2)).BoundingRadius())
}

func TestMaterial_AlphaTested(t *testing.T) {
	assert.False(t, Material{}.AlphaTested())
	assert.True(t, Material{AlphaMode: AlphaModeMask}.AlphaTested())
	assert.True(t, Material{AlphaMode: AlphaModeBlend}.AlphaTested())
}

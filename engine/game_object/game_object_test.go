package game_object

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGameObject_WorldMeshesComposeTransforms(t *testing.T) {
	var local [16]float32
	common.BuildModelMatrix(local[:], [3]float32{1, 0, 0}, [3]float32{}, [3]float32{1, 1, 1})

	obj := NewGameObject(
		WithPosition(0, 5, 0),
		WithScale(2, 2, 2),
		WithMeshes(common.ImportedMesh{Name: "plain"}, common.ImportedMesh{Name: "offset", Transform: local}),
	)

	world := obj.WorldMeshes()
	require.Len(t, world, 2)
	assert.Equal(t, obj.Transform(), world[0].Transform, "a zero mesh transform takes the object transform")

	p := common.TransformPoint(world[1].Transform[:], [3]float32{})
	assert.InDelta(t, 2, p[0], 1e-5, "local offset is scaled by the object")
	assert.InDelta(t, 5, p[1], 1e-5)

	assert.Equal(t, [16]float32{}, obj.Meshes()[0].Transform, "source meshes are not modified")
}

func TestGameObject_Defaults(t *testing.T) {
	obj := NewGameObject(WithName("crate"))
	assert.Equal(t, "crate", obj.Name())
	assert.Equal(t, [3]float32{1, 1, 1}, obj.Scale())
	assert.Equal(t, common.IdentityMatrix(), obj.Transform())
	assert.Nil(t, obj.Light())
	assert.Empty(t, obj.MeshIndices())
}

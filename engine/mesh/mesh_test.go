package mesh

import (
	"encoding/binary"
	"testing"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/cluster"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quad(name string) common.ImportedMesh {
	return common.ImportedMesh{
		Name:      name,
		Positions: [][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}},
		Indices:   []uint32{0, 1, 2, 0, 2, 3},
	}
}

func TestGeometry_AddMeshRebasesIndices(t *testing.T) {
	g := NewGeometry()
	a, err := g.AddMesh(quad("a"))
	require.NoError(t, err)
	b, err := g.AddMesh(quad("b"))
	require.NoError(t, err)

	assert.Equal(t, uint32(0), a.Index())
	assert.Equal(t, uint32(1), b.Index())
	assert.Equal(t, uint32(6), b.IndexOffset())
	assert.Equal(t, uint32(4), b.VertexOffset())
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3, 4, 5, 6, 4, 6, 7}, g.Indices())
	assert.Equal(t, 4, g.TriangleCount())
	assert.Equal(t, 2, g.ClusterCount())
	assert.Equal(t, common.IdentityMatrix(), a.Transform(), "zero transform becomes identity")
}

func TestGeometry_AddMeshFlags(t *testing.T) {
	g := NewGeometry()
	src := quad("foliage")
	src.TwoSided = true
	src.AlphaTested = true
	src.MaterialID = 9
	m, err := g.AddMesh(src, WithClusterOptions(cluster.WithTriangleCount(1)))
	require.NoError(t, err)

	assert.Equal(t, GeometrySetAlphaTested, m.GeometrySet())
	assert.Len(t, m.Clusters(), 2)
	for _, c := range m.Clusters() {
		assert.False(t, c.Valid)
	}

	gc := NewGPUMeshConstants(m)
	assert.Equal(t, MeshFlagTwoSided|MeshFlagAlphaTested, gc.Flags)
	assert.Equal(t, uint32(9), gc.MaterialID)
}

func TestGeometry_AddMeshCoverage(t *testing.T) {
	tests := []struct {
		name        string
		alphaTested bool
		wantAlpha   float32
		wantCutoff  float32
	}{
		{name: "alpha tested keeps its coverage", alphaTested: true, wantAlpha: 0.3, wantCutoff: 0.5},
		{name: "opaque is never discarded", alphaTested: false, wantAlpha: 0, wantCutoff: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := quad("leaf")
			src.AlphaTested = tt.alphaTested
			src.Alpha = 0.3
			src.AlphaCutoff = 0.5
			m, err := NewGeometry().AddMesh(src)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAlpha, m.Alpha())
			assert.Equal(t, tt.wantCutoff, m.AlphaCutoff())

			raw := MarshalMeshConstants([]GPUMeshConstants{NewGPUMeshConstants(m)})
			assert.Equal(t, tt.wantAlpha, math32.Float32frombits(binary.LittleEndian.Uint32(raw[84:])))
			assert.Equal(t, tt.wantCutoff, math32.Float32frombits(binary.LittleEndian.Uint32(raw[88:])))
		})
	}
}

func TestGeometry_AddMeshRejectsMalformed(t *testing.T) {
	g := NewGeometry()
	bad := quad("bad")
	bad.Indices = []uint32{0, 1}
	_, err := g.AddMesh(bad)
	assert.Error(t, err)

	bad = quad("oob")
	bad.Indices = []uint32{0, 1, 9}
	_, err = g.AddMesh(bad)
	assert.Error(t, err)

	assert.Empty(t, g.Meshes())
}

func TestGPUMeshConstants_Layout(t *testing.T) {
	g := NewGeometry()
	src := quad("a")
	common.BuildModelMatrix(src.Transform[:], [3]float32{5, 0, 0}, [3]float32{}, [3]float32{1, 1, 1})
	_, err := g.AddMesh(src)
	require.NoError(t, err)
	_, err = g.AddMesh(quad("b"))
	require.NoError(t, err)

	records := g.MeshConstants()
	require.Len(t, records, 2)
	assert.Equal(t, 96, records[0].Size())

	raw := MarshalMeshConstants(records)
	require.Len(t, raw, 192)
	// second record's index offset lives at 96 + 64
	assert.Equal(t, uint32(6), binary.LittleEndian.Uint32(raw[96+64:]))
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(raw[96+72:]))
}

func TestGeometry_PositionWords(t *testing.T) {
	g := NewGeometry()
	_, err := g.AddMesh(quad("a"))
	require.NoError(t, err)
	words := g.PositionWords()
	require.Len(t, words, 16)
	assert.Equal(t, uint32(0x3f800000), words[3], "w is 1.0")
	assert.Equal(t, uint32(0x3f800000), words[4], "vertex 1 x is 1.0")
}

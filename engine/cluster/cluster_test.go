package cluster

import (
	"math/rand/v2"
	"testing"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bumpyPatch builds an n x n grid in the XY plane facing +Z with a small height field.
func bumpyPatch(n int, amplitude float32, rng *rand.Rand) ([][3]float32, []uint32) {
	positions := make([][3]float32, 0, (n+1)*(n+1))
	for y := 0; y <= n; y++ {
		for x := 0; x <= n; x++ {
			z := (rng.Float32()*2 - 1) * amplitude
			positions = append(positions, [3]float32{float32(x), float32(y), z})
		}
	}
	var indices []uint32
	stride := uint32(n + 1)
	for y := uint32(0); y < uint32(n); y++ {
		for x := uint32(0); x < uint32(n); x++ {
			i := y*stride + x
			indices = append(indices, i, i+1, i+stride+1, i, i+stride+1, i+stride)
		}
	}
	return positions, indices
}

func TestBuild_Empty(t *testing.T) {
	assert.Empty(t, Build(nil, nil, false))
	assert.Empty(t, Build([][3]float32{{0, 0, 0}}, []uint32{0, 0}, false))
}

func TestBuild_CoversEveryTriangleOnce(t *testing.T) {
	positions, indices := bumpyPatch(10, 0, rand.New(rand.NewPCG(1, 2)))
	clusters := Build(positions, indices, false, WithTriangleCount(16))

	require.Len(t, clusters, 13) // 200 triangles / 16
	next := uint32(0)
	for _, c := range clusters {
		assert.Equal(t, next, c.TriangleOffset)
		assert.LessOrEqual(t, c.TriangleCount, uint32(16))
		next += c.TriangleCount
	}
	assert.Equal(t, uint32(200), next)
}

func TestBuild_FlatPatchCone(t *testing.T) {
	positions, indices := bumpyPatch(4, 0, rand.New(rand.NewPCG(1, 2)))
	clusters := Build(positions, indices, false)
	require.Len(t, clusters, 1)

	c := clusters[0]
	assert.True(t, c.Valid)
	assert.InDelta(t, 1, c.Axis[2], 1e-5)
	assert.InDelta(t, 1, c.AngleCos, 1e-5)
	assert.InDelta(t, 2, c.Apex[0], 1e-5)
	assert.InDelta(t, 2, c.Apex[1], 1e-5)
	assert.Greater(t, c.Radius, float32(2.8))
}

func TestBuild_InvalidClusters(t *testing.T) {
	positions, indices := bumpyPatch(2, 0, rand.New(rand.NewPCG(1, 2)))

	twoSided := Build(positions, indices, true)
	require.NotEmpty(t, twoSided)
	assert.False(t, twoSided[0].Valid, "two-sided clusters never use the cone test")
	assert.False(t, twoSided[0].ConeCull([3]float32{2, 2, -100}))

	degenerate := Build([][3]float32{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}}, []uint32{0, 1, 2}, false)
	require.Len(t, degenerate, 1)
	assert.False(t, degenerate[0].Valid)

	// a closed box: normals cover every direction
	box := [][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}, {0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1}}
	boxIdx := []uint32{
		0, 2, 1, 0, 3, 2, 4, 5, 6, 4, 6, 7,
		0, 1, 5, 0, 5, 4, 2, 3, 7, 2, 7, 6,
		1, 2, 6, 1, 6, 5, 0, 4, 7, 0, 7, 3,
	}
	closed := Build(box, boxIdx, false)
	require.Len(t, closed, 1)
	assert.False(t, closed[0].Valid)
}

func TestConeCull_FrontAndBack(t *testing.T) {
	positions, indices := bumpyPatch(4, 0, rand.New(rand.NewPCG(1, 2)))
	c := Build(positions, indices, false)[0]

	assert.False(t, c.ConeCull([3]float32{2, 2, 10}), "viewed from the front")
	assert.True(t, c.ConeCull([3]float32{2, 2, -10}), "viewed from behind")
	assert.False(t, c.ConeCull([3]float32{2, 2, -1}), "eye inside the bounding sphere")
}

// TestConeCull_EyeInsideVisibilityConeIsKept checks that eyes in front of the cluster, within
// the cone of directions its normals span, are never rejected.
func TestConeCull_EyeInsideVisibilityConeIsKept(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	positions, indices := bumpyPatch(6, 0.2, rng)
	clusters := Build(positions, indices, false, WithTriangleCount(8))

	for _, c := range clusters {
		if !c.Valid {
			continue
		}
		for i := 0; i < 200; i++ {
			dir := common.Normalize3([3]float32{rng.Float32()*2 - 1, rng.Float32()*2 - 1, rng.Float32()*2 - 1})
			if common.Dot3(dir, c.Axis) <= 0 {
				dir = common.Scale3(dir, -1)
			}
			eye := common.Add3(c.Apex, common.Scale3(dir, 1+rng.Float32()*50))
			assert.False(t, c.ConeCull(eye), "eye %v in front of cluster at %v", eye, c.Apex)
		}
	}
}

// TestConeCull_Soundness checks that every rejection is justified: all triangles of a rejected
// cluster must be back-facing from the eye.
func TestConeCull_Soundness(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	positions, indices := bumpyPatch(8, 0.3, rng)
	clusters := Build(positions, indices, false, WithTriangleCount(12))

	rejected := 0
	for i := 0; i < 2000; i++ {
		eye := [3]float32{rng.Float32()*40 - 16, rng.Float32()*40 - 16, rng.Float32()*40 - 20}
		for _, c := range clusters {
			if !c.ConeCull(eye) {
				continue
			}
			rejected++
			for tri := c.TriangleOffset; tri < c.TriangleOffset+c.TriangleCount; tri++ {
				a := positions[indices[tri*3]]
				b := positions[indices[tri*3+1]]
				d := positions[indices[tri*3+2]]
				n := common.Cross3(common.Sub3(b, a), common.Sub3(d, a))
				require.Greater(t, common.Dot3(n, common.Sub3(a, eye)), float32(0),
					"triangle %d rejected while front-facing from %v", tri, eye)
			}
		}
	}
	assert.Positive(t, rejected, "the sample should exercise rejections")
}

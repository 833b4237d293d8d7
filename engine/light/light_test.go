package light

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/config"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/shader"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sentinel = 0xDEADBEEF

type fakeBindings map[int][]uint32

func (f fakeBindings) Words(group, binding int) []uint32 {
	if group != 0 {
		return nil
	}
	return f[binding]
}

const aspect = float32(16) / 9

func projection() [16]float32 {
	var proj [16]float32
	common.Perspective(proj[:], math32.Pi/3, aspect, 0.1, 100)
	return proj
}

// cellCenter returns the view-space point at depth d projecting to the center of cell (x, y).
func cellCenter(x, y int, d float32) [3]float32 {
	tanHalf := math32.Tan(math32.Pi / 6)
	ndcX := (float32(x)+0.5)/config.LightGridWidth*2 - 1
	ndcY := 1 - (float32(y)+0.5)/config.LightGridHeight*2
	return [3]float32{ndcX * d * tanHalf * aspect, ndcY * d * tanHalf, -d}
}

func gridParams(count int) GPULightGridParams {
	return GPULightGridParams{
		View:       common.IdentityMatrix(),
		Proj:       projection(),
		LightCount: uint32(count),
		Near:       0.1,
	}
}

func pointLights(n int, pos [3]float32, radius float32) []Light {
	lights := make([]Light, n)
	for i := range lights {
		lights[i] = NewLight(LightTypePoint, WithPosition(pos[0], pos[1], pos[2]), WithRange(radius))
	}
	return lights
}

func runClusterer(t *testing.T, lights []Light, grid []uint32) {
	t.Helper()
	packed, count, err := PackLights(lights)
	require.NoError(t, err)
	params := gridParams(int(count))
	b := fakeBindings{
		BindingGridParams: common.BytesToWords(params.Marshal()),
		BindingLights:     common.BytesToWords(packed),
		BindingGrid:       grid,
	}
	for wg := range ClusterWorkgroups(count) {
		ClusterKernel([3]uint32{wg, 0, 0}, b)
	}
}

func TestPackLights(t *testing.T) {
	lights := []Light{
		NewLight(LightTypePoint, WithPosition(1, 2, 3), WithRange(4), WithColor(0.5, 0.25, 1), WithIntensity(2)),
		NewLight(LightTypeDirectional, WithDirection(0, -2, 0)),
		NewLight(LightTypePoint, WithEnabled(false)),
	}
	packed, count, err := PackLights(lights)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), count)

	words := common.BytesToWords(packed)
	require.Len(t, words, LightWords)
	assert.Equal(t, float32(3), math32.Float32frombits(words[2]))
	assert.Equal(t, float32(4), math32.Float32frombits(words[3]))
	assert.Equal(t, float32(2), math32.Float32frombits(words[7]))
	assert.Equal(t, [3]float32{0, -1, 0}, lights[1].Direction())
}

func TestPackLights_TooMany(t *testing.T) {
	lights := pointLights(config.MaxLights+1, [3]float32{}, 1)
	_, _, err := PackLights(lights)
	assert.ErrorIs(t, err, ErrTooManyLights)
	assert.ErrorIs(t, err, config.ErrCapacity)

	_, count, err := PackLights(lights[:config.MaxLights])
	require.NoError(t, err)
	assert.Equal(t, uint32(config.MaxLights), count)
}

func TestProjectSphere(t *testing.T) {
	proj := projection()

	t.Run("small sphere covers one cell", func(t *testing.T) {
		rect, ok := ProjectSphere(cellCenter(8, 4, 10), 0.05, proj, 0.1)
		require.True(t, ok)
		assert.Equal(t, CellRect{MinX: 8, MinY: 4, MaxX: 8, MaxY: 4}, rect)
	})

	t.Run("top left corner", func(t *testing.T) {
		rect, ok := ProjectSphere(cellCenter(0, 0, 20), 0.05, proj, 0.1)
		require.True(t, ok)
		assert.Equal(t, CellRect{}, rect)
	})

	t.Run("behind the camera", func(t *testing.T) {
		_, ok := ProjectSphere([3]float32{0, 0, 5}, 1, proj, 0.1)
		assert.False(t, ok)
	})

	t.Run("off screen", func(t *testing.T) {
		_, ok := ProjectSphere([3]float32{100, 0, -10}, 1, proj, 0.1)
		assert.False(t, ok)
	})

	t.Run("sphere around the camera covers the grid", func(t *testing.T) {
		rect, ok := ProjectSphere([3]float32{}, 5, proj, 0.1)
		require.True(t, ok)
		assert.Equal(t, GridCellCount, rect.Cells())
	})
}

func TestClusterKernel_CellIsBounded(t *testing.T) {
	grid := make([]uint32, GridWords)
	for i := range grid {
		grid[i] = sentinel
	}
	const cell = 4*config.LightGridWidth + 8
	grid[cell*GridCellWords] = 0

	lights := pointLights(config.MaxLightsPerCell+8, cellCenter(8, 4, 10), 0.05)
	runClusterer(t, lights, grid)

	assert.Equal(t, uint32(config.MaxLightsPerCell), grid[cell*GridCellWords])
	stored := CellLights(grid, cell)
	require.Len(t, stored, config.MaxLightsPerCell)
	for i, l := range stored {
		assert.Equal(t, uint32(i), l)
	}
	for i, w := range grid {
		if i >= cell*GridCellWords && i < (cell+1)*GridCellWords {
			continue
		}
		if w != sentinel {
			t.Fatalf("word %d outside the cell was written: %#x", i, w)
		}
	}
}

func TestClusterKernel_ClearThenCluster(t *testing.T) {
	grid := make([]uint32, GridWords)
	for i := range grid {
		grid[i] = sentinel
	}
	b := fakeBindings{BindingGrid: grid}
	for wg := range ClearGridWorkgroups() {
		ClearGridKernel([3]uint32{wg, 0, 0}, b)
	}
	for cell := range uint32(GridCellCount) {
		require.Empty(t, CellLights(grid, cell))
	}

	var lights []Light
	for i := range 100 {
		x, y := i%config.LightGridWidth, (i/config.LightGridWidth)%config.LightGridHeight
		lights = append(lights, pointLights(1, cellCenter(x, y, 15), 0.05)...)
	}
	runClusterer(t, lights, grid)

	total := 0
	for cell := range uint32(GridCellCount) {
		for _, l := range CellLights(grid, cell) {
			i := int(l)
			assert.Equal(t, cell, uint32((i/config.LightGridWidth)%config.LightGridHeight*config.LightGridWidth+i%config.LightGridWidth))
			total++
		}
	}
	assert.Equal(t, 100, total, "two workgroups of lights")
}

func TestShadowVolume(t *testing.T) {
	sun := NewLight(LightTypeDirectional, WithDirection(-0.4, -1, -0.3), WithCastsShadows(true))
	vol := NewShadowVolume(sun, [3]float32{2, 0, 1}, 0)
	assert.Equal(t, DefaultShadowHalfExtent, vol.HalfExtent)

	vp := vol.ViewProj()
	c := common.MulVec4(vp[:], [4]float32{2, 0, 1, 1})
	assert.InDelta(t, 0, c[0], 1e-4)
	assert.InDelta(t, 0, c[1], 1e-4)
	assert.Greater(t, c[2], float32(0))
	assert.Less(t, c[2], float32(1))
	assert.Equal(t, common.ClipInside, common.ClipMask(c))

	down := NewShadowVolume(NewLight(LightTypeDirectional, WithDirection(0, -1, 0)), [3]float32{}, 10)
	vp = down.ViewProj()
	for _, v := range vp {
		assert.False(t, math32.IsNaN(v))
	}
}

func TestPipelines(t *testing.T) {
	pipelines, err := Pipelines(shader.NewPreProcessor(Includes()))
	require.NoError(t, err)
	require.Len(t, pipelines, 2)

	cluster := pipelines[1].Shader(shader.ShaderTypeCompute)
	for _, b := range []int{BindingGridParams, BindingLights, BindingGrid} {
		_, ok := cluster.Binding(0, b)
		assert.True(t, ok, "binding %d", b)
	}
	for _, p := range pipelines {
		err := shader.Validate(p.Shader(shader.ShaderTypeCompute))
		if shader.Unsupported(err) {
			t.Logf("naga limitation: %v", err)
			continue
		}
		assert.NoError(t, err)
	}
}

package culling

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/config"
	"github.com/Carmen-Shannon/oxy-cull/engine/mesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCulling_EndToEnd(t *testing.T) {
	geom := scene(t, 64, strip("visible", 10, -2), strip("outside", 20, 50))
	r := runCulling(t, geom, []View{cameraView()})

	require.Equal(t, uint32(1), r.drawCount(mesh.GeometrySetOpaque, 0))
	assert.Zero(t, r.drawCount(mesh.GeometrySetAlphaTested, 0))
	assert.Equal(t, uint32(10), r.triangles(0))

	d := r.draws(mesh.GeometrySetOpaque, 0)[0]
	assert.Equal(t, uint32(30), d[0])
	assert.Equal(t, uint32(1), d[1], "instance count")
	assert.Equal(t, uint32(0), d[3], "base vertex")
	assert.Equal(t, uint32(0), d[4], "mesh index")
	assert.Equal(t, geom.Indices()[:30], r.filteredIndices(0, d))
}

func TestCulling_PartiallyVisibleMesh(t *testing.T) {
	// The frustum edge at z = 0 sits near x = 5.77; triangles 9 and up lie beyond it.
	geom := scene(t, 64, strip("edge", 20, 4))
	r := runCulling(t, geom, []View{cameraView()})

	require.Equal(t, uint32(1), r.drawCount(mesh.GeometrySetOpaque, 0))
	assert.Equal(t, uint32(9), r.triangles(0))

	d := r.draws(mesh.GeometrySetOpaque, 0)[0]
	assert.Equal(t, geom.Indices()[:27], r.filteredIndices(0, d))
}

func TestCulling_ShadowViewKeepsBackFaces(t *testing.T) {
	geom := scene(t, 4, flipped(strip("away", 6, -1)))
	require.Equal(t, CullModeNone, shadowView().CullMode)
	r := runCulling(t, geom, []View{cameraView(), shadowView()})

	assert.Zero(t, r.drawCount(mesh.GeometrySetOpaque, 0))
	require.Equal(t, uint32(1), r.drawCount(mesh.GeometrySetOpaque, 1))
	assert.Equal(t, uint32(6), r.triangles(1))

	got := r.filteredIndices(1, r.draws(mesh.GeometrySetOpaque, 1)[0])
	assert.ElementsMatch(t, geom.Indices(), got)
}

func TestCulling_GeometrySets(t *testing.T) {
	leaves := flipped(strip("leaves", 4, 1))
	leaves.AlphaTested = true
	geom := scene(t, 64, strip("wall", 4, -2), leaves)
	r := runCulling(t, geom, []View{cameraView()})

	require.Equal(t, uint32(1), r.drawCount(mesh.GeometrySetOpaque, 0))
	require.Equal(t, uint32(1), r.drawCount(mesh.GeometrySetAlphaTested, 0))

	opaque := r.draws(mesh.GeometrySetOpaque, 0)[0]
	alpha := r.draws(mesh.GeometrySetAlphaTested, 0)[0]
	assert.Equal(t, uint32(0), opaque[4])
	assert.Equal(t, uint32(1), alpha[4])
	assert.Equal(t, uint32(12), alpha[0], "alpha-tested geometry skips facing rejection")
	assert.Equal(t, uint32(12), alpha[2], "first index is the slot's region start")
}

func TestCulling_CountersResetForNextFrame(t *testing.T) {
	geom := scene(t, 2, strip("a", 5, -2), strip("b", 5, 0))
	r := runCulling(t, geom, []View{cameraView(), shadowView()})

	require.Equal(t, uint32(2), r.drawCount(mesh.GeometrySetOpaque, 0))
	for i, c := range r.filter.Words(1, BindingUncompacted) {
		if c != 0 {
			t.Fatalf("counter %d left at %d", i, c)
		}
	}

	again := runCulling(t, geom, []View{cameraView(), shadowView()})
	assert.Equal(t, r.draws(mesh.GeometrySetOpaque, 0), again.draws(mesh.GeometrySetOpaque, 0))
	assert.Equal(t, r.triangles(1), again.triangles(1))
}

func TestCompactKernel_Dense(t *testing.T) {
	slots := []GPUDrawSlot{
		{MeshIndex: 0, GeometrySet: 0, OutputOffset: 0, IndexCount: 30},
		{MeshIndex: 1, GeometrySet: 0, OutputOffset: 30, IndexCount: 60},
		{MeshIndex: 2, GeometrySet: 0, OutputOffset: 90, IndexCount: 9},
	}
	var raw []byte
	for _, s := range slots {
		raw = append(raw, s.Marshal()...)
	}
	fc, err := FrameConstants([]View{cameraView()}, uint32(len(slots)), 99, 0)
	require.NoError(t, err)

	counters := make([]uint32, config.MaxViews*config.MaxDrawsIndirect)
	counters[0] = 30
	counters[2] = 6
	b := fakeBindings{
		{0, BindingFrame}:       common.BytesToWords(fc.Marshal()),
		{0, BindingDrawSlots}:   common.BytesToWords(raw),
		{0, BindingUncompacted}: counters,
		{0, BindingArgs}:        make([]uint32, ArgsSectionCount*ArgsSectionWords),
	}
	for wg := range CompactWorkgroups() {
		CompactKernel([3]uint32{wg, 0, 0}, b)
	}

	args := b.Words(0, BindingArgs)
	assert.Equal(t, uint32(2), args[ArgsCounterWord])
	assert.Equal(t, []uint32{30, 1, 0, 0, 0}, args[0:5])
	assert.Equal(t, []uint32{6, 1, 90, 0, 2}, args[5:10])
	assert.Equal(t, make([]uint32, 5), args[10:15])
	assert.Zero(t, counters[0])
	assert.Zero(t, counters[2])
}

func TestClearArgsKernel(t *testing.T) {
	args := make([]uint32, ArgsSectionCount*ArgsSectionWords)
	for i := range args {
		args[i] = 7
	}
	b := fakeBindings{{0, BindingArgs}: args}
	for wg := range ClearArgsWorkgroups() {
		ClearArgsKernel([3]uint32{wg, 0, 0}, b)
	}
	assert.Equal(t, make([]uint32, len(args)), args)
}

func TestFacingRejected(t *testing.T) {
	ccw := [3][4]float32{{0, 0, 0, 1}, {1, 0, 0, 1}, {0, 1, 0, 1}}
	cw := [3][4]float32{ccw[0], ccw[2], ccw[1]}
	flat := [3][4]float32{{0, 0, 0, 1}, {1, 1, 0, 1}, {2, 2, 0, 1}}
	behind := [3][4]float32{{0, 0, 0, 1}, {1, 0, 0, -1}, {0, 1, 0, 1}}

	tests := []struct {
		name string
		tri  [3][4]float32
		mode CullMode
		want bool
	}{
		{"front facing, back culling", ccw, CullModeBack, false},
		{"back facing, back culling", cw, CullModeBack, true},
		{"front facing, front culling", ccw, CullModeFront, true},
		{"back facing, front culling", cw, CullModeFront, false},
		{"back facing, no culling", cw, CullModeNone, false},
		{"zero area, back culling", flat, CullModeBack, true},
		{"zero area, front culling", flat, CullModeFront, true},
		{"crosses w = 0", behind, CullModeBack, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FacingRejected(tt.tri[0], tt.tri[1], tt.tri[2], tt.mode))
		})
	}
}

func TestFilterKernel_SkipsWritesPastFilteredBuffer(t *testing.T) {
	geom := scene(t, 64, strip("visible", 4, -2))
	views := []View{cameraView()}
	survivors, err := NewPreFilter().Run(geom, views)
	require.NoError(t, err)

	capacity := uint32(len(geom.Indices()))
	fc, err := FrameConstants(views, 0, capacity, 0)
	require.NoError(t, err)

	// One triangle short of the survivors; the sentinel marks the end of the buffer.
	filtered := make([]uint32, capacity-3)
	for i := range filtered {
		filtered[i] = 0xDEADBEEF
	}
	counters := make([]uint32, config.MaxViews*config.MaxDrawsIndirect)
	b := fakeBindings{
		{0, BindingPositions}:   geom.PositionWords(),
		{0, BindingIndices}:     geom.Indices(),
		{0, BindingMeshes}:      common.BytesToWords(mesh.MarshalMeshConstants(geom.MeshConstants())),
		{1, BindingFrame}:       common.BytesToWords(fc.Marshal()),
		{1, BindingUncompacted}: counters,
		{1, BindingFiltered}:    filtered,
	}
	_, err = NewChunker().Run(geom, survivors, func(c *BatchChunk) error {
		b[[2]int{1, BindingBatches}] = common.BytesToWords(c.Marshal())
		for i := range c.Len() {
			assert.NotPanics(t, func() { FilterKernel([3]uint32{uint32(i), 0, 0}, b) })
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, capacity, counters[0], "survivors are still counted")
	for _, w := range filtered {
		assert.Equal(t, uint32(0xDEADBEEF), w)
	}
}

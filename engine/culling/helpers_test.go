package culling

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/config"
	"github.com/Carmen-Shannon/oxy-cull/engine/cluster"
	"github.com/Carmen-Shannon/oxy-cull/engine/mesh"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/require"
)

// strip builds a row of small triangles in the z = 0 plane starting at x, facing +Z.
func strip(name string, triangles int, x float32) common.ImportedMesh {
	m := common.ImportedMesh{Name: name}
	for i := range triangles {
		x0 := x + float32(i)*0.2
		base := uint32(len(m.Positions))
		m.Positions = append(m.Positions, [3]float32{x0, 0, 0}, [3]float32{x0 + 0.15, 0, 0}, [3]float32{x0, 0.15, 0})
		m.Indices = append(m.Indices, base, base+1, base+2)
	}
	return m
}

// flipped reverses the winding of every triangle so the strip faces -Z.
func flipped(m common.ImportedMesh) common.ImportedMesh {
	out := m
	out.Indices = make([]uint32, len(m.Indices))
	for i := 0; i < len(m.Indices); i += 3 {
		out.Indices[i], out.Indices[i+1], out.Indices[i+2] = m.Indices[i], m.Indices[i+2], m.Indices[i+1]
	}
	return out
}

func scene(t *testing.T, clusterSize uint32, meshes ...common.ImportedMesh) *mesh.Geometry {
	t.Helper()
	g := mesh.NewGeometry()
	for _, m := range meshes {
		_, err := g.AddMesh(m, mesh.WithClusterOptions(cluster.WithTriangleCount(clusterSize)))
		require.NoError(t, err)
	}
	return g
}

// cameraView looks from +Z at the origin with a 60 degree field of view.
func cameraView() View {
	var proj, view, vp [16]float32
	common.Perspective(proj[:], math32.Pi/3, 1, 0.1, 100)
	eye := [3]float32{0, 0, 10}
	common.LookAt(view[:], eye, [3]float32{}, [3]float32{0, 1, 0})
	common.Mul4(vp[:], proj[:], view[:])
	return NewCameraView(vp, eye, 512, 512)
}

// shadowView looks from -Z at the origin through a 20x20 orthographic volume.
func shadowView() View {
	var proj, view, vp [16]float32
	common.Ortho(proj[:], -10, 10, -10, 10, 0.1, 50)
	eye := [3]float32{0, 0, -10}
	common.LookAt(view[:], eye, [3]float32{}, [3]float32{0, 1, 0})
	common.Mul4(vp[:], proj[:], view[:])
	return NewShadowView(vp, eye, 1024)
}

// fakeBindings is a KernelBindings over plain word slices.
type fakeBindings map[[2]int][]uint32

func (f fakeBindings) Words(group, binding int) []uint32 {
	return f[[2]int{group, binding}]
}

// kernelRun holds the buffers of one CPU culling pass over a scene.
type kernelRun struct {
	geom     *mesh.Geometry
	views    []View
	filter   fakeBindings
	compact  fakeBindings
	capacity uint32
	result   ChunkResult
}

// runCulling runs pre-filter, chunker, filter and compaction kernels over geom.
func runCulling(t *testing.T, geom *mesh.Geometry, views []View, options ...PreFilterOption) *kernelRun {
	t.Helper()
	r := &kernelRun{geom: geom, views: views, capacity: uint32(len(geom.Indices()))}

	survivors, err := NewPreFilter(options...).Run(geom, views)
	require.NoError(t, err)

	counters := make([]uint32, config.MaxViews*config.MaxDrawsIndirect)
	filtered := make([]uint32, config.MaxViews*int(r.capacity))
	positions := geom.PositionWords()
	indices := geom.Indices()
	meshes := common.BytesToWords(mesh.MarshalMeshConstants(geom.MeshConstants()))

	fc, err := FrameConstants(views, 0, r.capacity, 0)
	require.NoError(t, err)
	r.filter = fakeBindings{
		{0, BindingPositions}:   positions,
		{0, BindingIndices}:     indices,
		{0, BindingMeshes}:      meshes,
		{1, BindingFrame}:       common.BytesToWords(fc.Marshal()),
		{1, BindingUncompacted}: counters,
		{1, BindingFiltered}:    filtered,
	}
	r.result, err = NewChunker().Run(geom, survivors, func(c *BatchChunk) error {
		r.filter[[2]int{1, BindingBatches}] = common.BytesToWords(c.Marshal())
		for i := range c.Len() {
			FilterKernel([3]uint32{uint32(i), 0, 0}, r.filter)
		}
		return nil
	})
	require.NoError(t, err)

	fc, err = FrameConstants(views, uint32(len(r.result.DrawSlots)), r.capacity, 0)
	require.NoError(t, err)
	r.compact = fakeBindings{
		{0, BindingFrame}:       common.BytesToWords(fc.Marshal()),
		{0, BindingDrawSlots}:   common.BytesToWords(r.result.SlotRecords()),
		{0, BindingUncompacted}: counters,
		{0, BindingArgs}:        make([]uint32, ArgsSectionCount*ArgsSectionWords),
	}
	for wg := range ClearArgsWorkgroups() {
		ClearArgsKernel([3]uint32{wg, 0, 0}, r.compact)
	}
	for wg := range CompactWorkgroups() {
		CompactKernel([3]uint32{wg, 0, 0}, r.compact)
	}
	return r
}

// drawCount returns the draw counter of an args section.
func (r *kernelRun) drawCount(set mesh.GeometrySet, view int) uint32 {
	return r.compact.Words(0, BindingArgs)[ArgsSectionIndex(int(set), view)*ArgsSectionWords+ArgsCounterWord]
}

// draws returns the dense records of an args section.
func (r *kernelRun) draws(set mesh.GeometrySet, view int) [][DrawArgsWords]uint32 {
	args := r.compact.Words(0, BindingArgs)
	base := ArgsSectionIndex(int(set), view) * ArgsSectionWords
	n := int(r.drawCount(set, view))
	out := make([][DrawArgsWords]uint32, n)
	for i := range out {
		copy(out[i][:], args[base+i*DrawArgsWords:])
	}
	return out
}

// triangles sums the index counts of a view's draws over every geometry set.
func (r *kernelRun) triangles(view int) uint32 {
	var n uint32
	for set := range config.GeometrySetCount {
		for _, d := range r.draws(mesh.GeometrySet(set), view) {
			n += d[0] / 3
		}
	}
	return n
}

// filteredIndices returns the indices a draw references in its view's stream.
func (r *kernelRun) filteredIndices(view int, d [DrawArgsWords]uint32) []uint32 {
	stream := r.filter.Words(1, BindingFiltered)[uint32(view)*r.capacity:]
	return stream[d[2] : d[2]+d[0]]
}

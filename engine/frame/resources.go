package frame

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/config"
	"github.com/Carmen-Shannon/oxy-cull/engine/culling"
	"github.com/Carmen-Shannon/oxy-cull/engine/light"
	"github.com/Carmen-Shannon/oxy-cull/engine/mesh"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer"
	bgp "github.com/Carmen-Shannon/oxy-cull/engine/renderer/bind_group_provider"
)

// minBufferSize keeps every allocation non-empty and uniform buffers at their binding granularity.
const minBufferSize = 256

// SceneResources holds the static geometry shared by every frame in flight. It is uploaded once.
type SceneResources struct {
	Positions bgp.Buffer
	Indices   bgp.Buffer
	Meshes    bgp.Buffer
	// Identity holds the indices 0..IndexCapacity-1. Geometry passes draw through it and pull
	// the real vertex from the filtered stream, so vertex_index names a stream slot.
	Identity bgp.Buffer

	// Provider binds positions, indices and mesh constants at the culling scene locations.
	Provider bgp.BindGroupProvider

	// IndexCapacity is the per-view capacity of a filtered stream: every index of the scene.
	IndexCapacity uint32
}

// NewSceneResources allocates and uploads the static geometry buffers.
//
// Parameters:
//   - r: the renderer
//   - geom: the scene geometry
//
// Returns:
//   - *SceneResources: the uploaded geometry
//   - error: an error if the geometry is invalid or allocation fails
func NewSceneResources(r renderer.Renderer, geom *mesh.Geometry) (*SceneResources, error) {
	if err := geom.Validate(); err != nil {
		return nil, err
	}
	positions := common.WordsToBytes(geom.PositionWords())
	indices := common.WordsToBytes(geom.Indices())
	meshes := mesh.MarshalMeshConstants(geom.MeshConstants())
	identity := make([]uint32, len(geom.Indices()))
	for i := range identity {
		identity[i] = uint32(i)
	}

	s := &SceneResources{IndexCapacity: uint32(len(geom.Indices()))}
	uploads := []struct {
		dst   *bgp.Buffer
		name  string
		data  []byte
		usage bgp.BufferUsage
	}{
		{&s.Positions, "Scene Positions", positions, bgp.BufferUsageStorage},
		{&s.Indices, "Scene Indices", indices, bgp.BufferUsageStorage},
		{&s.Meshes, "Scene Meshes", meshes, bgp.BufferUsageStorage},
		{&s.Identity, "Scene Identity Indices", common.WordsToBytes(identity), bgp.BufferUsageIndex},
	}
	for _, u := range uploads {
		buf, err := r.CreateBuffer(u.name, bufferSize(len(u.data)), u.usage|bgp.BufferUsageCopyDst)
		if err != nil {
			s.Release(r)
			return nil, err
		}
		*u.dst = buf
		if len(u.data) > 0 {
			if err := r.WriteBuffer(buf, 0, u.data); err != nil {
				s.Release(r)
				return nil, fmt.Errorf("upload %s: %w", u.name, err)
			}
		}
	}

	s.Provider = bgp.NewBindGroupProvider("Scene",
		bgp.WithBuffer(culling.BindingPositions, s.Positions),
		bgp.WithBuffer(culling.BindingIndices, s.Indices),
		bgp.WithBuffer(culling.BindingMeshes, s.Meshes),
	)
	return s, nil
}

// IdentitySection returns the identity indices bound by the camera's geometry passes.
//
// Returns:
//   - bgp.BufferSection: IndexCapacity indices
func (s *SceneResources) IdentitySection() bgp.BufferSection {
	return bgp.Whole(s.Identity).Sub(0, uint64(s.IndexCapacity)*4)
}

// Release frees the scene buffers.
func (s *SceneResources) Release(r renderer.Renderer) {
	for _, b := range []bgp.Buffer{s.Positions, s.Indices, s.Meshes, s.Identity} {
		if b != nil {
			r.DestroyBuffer(b)
		}
	}
	if s.Provider != nil {
		s.Provider.Release()
	}
}

// FrameResources are the buffers and bind groups owned by one frame in flight. They are
// rewritten only after the frame's fences have signaled.
type FrameResources struct {
	Constants  bgp.Buffer
	Batches    bgp.Buffer
	Filtered   bgp.Buffer
	Args       bgp.Buffer
	Slots      bgp.Buffer
	Counters   bgp.Buffer
	Lights     bgp.Buffer
	GridParams bgp.Buffer
	Grid       bgp.Buffer

	// Filter holds one group-1 provider per batch chunk of the filter kernel.
	Filter []bgp.BindGroupProvider
	// Compact binds the compaction and clear kernels.
	Compact bgp.BindGroupProvider
	// Light binds the light clusterer kernels and the shade pass's light group.
	Light bgp.BindGroupProvider
	// Frame binds the frame constants, the camera stream and the scene buffers the render
	// passes pull vertices and rebuild triangles from.
	Frame bgp.BindGroupProvider

	indexCapacity uint32
}

// NewFrameResources allocates the buffers of frame index i.
//
// Parameters:
//   - r: the renderer
//   - i: the frame index, used in labels
//   - scene: the uploaded scene; its index capacity sizes the filtered streams
//
// Returns:
//   - *FrameResources: the frame's resources
//   - error: an error if allocation fails
func NewFrameResources(r renderer.Renderer, i int, scene *SceneResources) (*FrameResources, error) {
	indexCapacity := scene.IndexCapacity
	f := &FrameResources{indexCapacity: indexCapacity}
	allocs := []struct {
		dst   *bgp.Buffer
		name  string
		size  int
		usage bgp.BufferUsage
	}{
		{&f.Constants, "Frame Constants", (&culling.GPUFrameConstants{}).Size(), bgp.BufferUsageUniform | bgp.BufferUsageCopyDst},
		{&f.Batches, "Batch Chunks", config.MaxBatchesPerFrame * culling.ChunkBytes, bgp.BufferUsageStorage | bgp.BufferUsageCopyDst},
		{&f.Filtered, "Filtered Indices", config.MaxViews * int(indexCapacity) * 4, bgp.BufferUsageStorage | bgp.BufferUsageIndex | bgp.BufferUsageCopySrc},
		{&f.Args, "Draw Args", culling.ArgsSectionCount * culling.ArgsSectionBytes, bgp.BufferUsageStorage | bgp.BufferUsageIndirect | bgp.BufferUsageCopySrc},
		{&f.Slots, "Draw Slots", config.MaxDrawsIndirect * culling.DrawSlotWords * 4, bgp.BufferUsageStorage | bgp.BufferUsageCopyDst},
		{&f.Counters, "Uncompacted Counters", config.MaxViews * config.MaxDrawsIndirect * 4, bgp.BufferUsageStorage | bgp.BufferUsageCopySrc},
		{&f.Lights, "Lights", config.MaxLights * light.LightWords * 4, bgp.BufferUsageStorage | bgp.BufferUsageCopyDst},
		{&f.GridParams, "Light Grid Params", light.GridParamsWords * 4, bgp.BufferUsageUniform | bgp.BufferUsageCopyDst},
		{&f.Grid, "Light Grid", light.GridWords * 4, bgp.BufferUsageStorage | bgp.BufferUsageCopySrc},
	}
	for _, a := range allocs {
		buf, err := r.CreateBuffer(fmt.Sprintf("%s %d", a.name, i), bufferSize(a.size), a.usage)
		if err != nil {
			f.Release(r)
			return nil, err
		}
		*a.dst = buf
	}

	constants := bgp.Whole(f.Constants)
	f.Filter = make([]bgp.BindGroupProvider, config.MaxBatchesPerFrame)
	for c := range f.Filter {
		f.Filter[c] = bgp.NewBindGroupProvider(fmt.Sprintf("Filter %d.%d", i, c),
			bgp.WithSection(culling.BindingFrame, constants),
			bgp.WithSection(culling.BindingBatches, bgp.Whole(f.Batches).Sub(uint64(c)*culling.ChunkBytes, culling.ChunkBytes)),
			bgp.WithBuffer(culling.BindingUncompacted, f.Counters),
			bgp.WithBuffer(culling.BindingFiltered, f.Filtered),
		)
	}
	f.Compact = bgp.NewBindGroupProvider(fmt.Sprintf("Compact %d", i),
		bgp.WithSection(culling.BindingFrame, constants),
		bgp.WithBuffer(culling.BindingDrawSlots, f.Slots),
		bgp.WithBuffer(culling.BindingUncompacted, f.Counters),
		bgp.WithBuffer(culling.BindingArgs, f.Args),
	)
	f.Light = bgp.NewBindGroupProvider(fmt.Sprintf("Lights %d", i),
		bgp.WithBuffer(light.BindingGridParams, f.GridParams),
		bgp.WithBuffer(light.BindingLights, f.Lights),
		bgp.WithBuffer(light.BindingGrid, f.Grid),
	)
	camera := f.IndexSection(0)
	if indexCapacity == 0 {
		// bindings must not be empty
		camera = bgp.Whole(f.Filtered)
	}
	f.Frame = bgp.NewBindGroupProvider(fmt.Sprintf("Frame %d", i),
		bgp.WithSection(BindingFrameConstants, constants),
		bgp.WithSection(BindingCameraIndices, camera),
		bgp.WithBuffer(BindingScenePositions, scene.Positions),
		bgp.WithBuffer(BindingSceneMeshes, scene.Meshes),
	)
	return f, nil
}

// IndexSection returns view v's filtered index stream.
//
// Parameters:
//   - view: the view index
//
// Returns:
//   - bgp.BufferSection: the stream, IndexCapacity indices long
func (f *FrameResources) IndexSection(view int) bgp.BufferSection {
	size := uint64(f.indexCapacity) * 4
	return bgp.Whole(f.Filtered).Sub(uint64(view)*size, size)
}

// ArgsSection returns the dense draw records of a geometry set and view.
//
// Parameters:
//   - set: the geometry set
//   - view: the view index
//
// Returns:
//   - bgp.BufferSection: MaxDrawsIndirect five-word records
func (f *FrameResources) ArgsSection(set mesh.GeometrySet, view int) bgp.BufferSection {
	base := uint64(culling.ArgsSectionIndex(int(set), view)) * culling.ArgsSectionBytes
	return bgp.Whole(f.Args).Sub(base, config.MaxDrawsIndirect*culling.DrawArgsWords*4)
}

// CountSection returns the draw counter of a geometry set and view.
//
// Parameters:
//   - set: the geometry set
//   - view: the view index
//
// Returns:
//   - bgp.BufferSection: the 4-byte counter
func (f *FrameResources) CountSection(set mesh.GeometrySet, view int) bgp.BufferSection {
	base := uint64(culling.ArgsSectionIndex(int(set), view)) * culling.ArgsSectionBytes
	return bgp.Whole(f.Args).Sub(base+culling.ArgsCounterWord*4, 4)
}

// Release frees the frame's buffers and bind groups.
func (f *FrameResources) Release(r renderer.Renderer) {
	for _, p := range f.Filter {
		p.Release()
	}
	for _, p := range []bgp.BindGroupProvider{f.Compact, f.Light, f.Frame} {
		if p != nil {
			p.Release()
		}
	}
	for _, b := range []bgp.Buffer{f.Constants, f.Batches, f.Filtered, f.Args, f.Slots, f.Counters, f.Lights, f.GridParams, f.Grid} {
		if b != nil {
			r.DestroyBuffer(b)
		}
	}
}

// upload writes the host-side inputs of a frame: constants, draw slots, lights and grid params.
func (f *FrameResources) upload(r renderer.Renderer, constants, slots, lights, gridParams []byte) error {
	writes := []struct {
		buf  bgp.Buffer
		data []byte
	}{
		{f.Constants, constants},
		{f.Slots, slots},
		{f.Lights, lights},
		{f.GridParams, gridParams},
	}
	var errs []error
	for _, w := range writes {
		if len(w.data) == 0 {
			continue
		}
		if err := r.WriteBuffer(w.buf, 0, w.data); err != nil {
			errs = append(errs, fmt.Errorf("write %s: %w", w.buf.Label(), err))
		}
	}
	return errors.Join(errs...)
}

// bufferSize rounds n up to a multiple of 4 with a floor of minBufferSize.
func bufferSize(n int) uint64 {
	return uint64(max(minBufferSize, (n+3)/4*4))
}

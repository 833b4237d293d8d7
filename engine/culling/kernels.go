package culling

import (
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/config"
	"github.com/Carmen-Shannon/oxy-cull/engine/mesh"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/pipeline"
	"github.com/chewxy/math32"
)

// meshConstantsWords is the size of one GPUMeshConstants record in words.
const meshConstantsWords = 24

// Bind group locations shared by the CPU kernels and the WGSL sources.
//
// Filter, group 0 (scene): positions, indices, meshes.
// Filter, group 1 (frame): frame constants, batches, uncompacted counters, filtered indices.
// Compact, group 0: frame constants, draw slots, uncompacted counters, args.
// ClearArgs, group 0: args at binding 3.
const (
	BindingPositions   = 0
	BindingIndices     = 1
	BindingMeshes      = 2
	BindingFrame       = 0
	BindingBatches     = 1
	BindingUncompacted = 2
	BindingFiltered    = 3
	BindingDrawSlots   = 1
	BindingArgs        = 3
)

// FilterKernel is the CPU form of filter_triangles.wgsl. Workgroup x selects one
// SmallBatchData record; each of its triangles is tested against every view in the record's
// mask. Survivors of a view reserve their output range with a single atomic add of 3*count on
// the (view, slot) counter and are written at OutputOffset + reserved in that view's stream.
//
// Parameters:
//   - workgroup: the workgroup id
//   - b: the bound buffers
func FilterKernel(workgroup [3]uint32, b pipeline.KernelBindings) {
	batches := b.Words(1, BindingBatches)
	base := int(workgroup[0]) * BatchWords
	if base+BatchWords > len(batches) {
		return
	}
	rec := batches[base : base+BatchWords]
	meshIndex, indexOffset, triCount, outputOffset, drawSlot, viewMask := rec[0], rec[1], rec[2], rec[3], rec[4], rec[5]
	if triCount == 0 || viewMask == 0 {
		return
	}
	triCount = min(triCount, config.ClusterTriangleCount)

	positions := b.Words(0, BindingPositions)
	indices := b.Words(0, BindingIndices)
	meshes := b.Words(0, BindingMeshes)
	frame := decodeFrameConstants(b.Words(1, BindingFrame))
	counters := b.Words(1, BindingUncompacted)
	filtered := b.Words(1, BindingFiltered)

	mc := meshes[meshIndex*meshConstantsWords : (meshIndex+1)*meshConstantsWords]
	var model [16]float32
	for i := range model {
		model[i] = math32.Float32frombits(mc[i])
	}
	facingCull := mc[19]&(mesh.MeshFlagTwoSided|mesh.MeshFlagAlphaTested) == 0

	var (
		mvp       [16]float32
		survivors [config.ClusterTriangleCount]uint32
		masks     [3]uint8
		clip      [3][4]float32
	)
	for v := uint32(0); v < frame.ViewCount; v++ {
		if viewMask&(1<<v) == 0 {
			continue
		}
		view := &frame.Views[v]
		common.Mul4(mvp[:], view.ViewProj[:], model[:])

		n := 0
		for t := uint32(0); t < triCount; t++ {
			for k := range 3 {
				vi := indices[indexOffset+3*t+uint32(k)] * 4
				p := [4]float32{
					math32.Float32frombits(positions[vi]),
					math32.Float32frombits(positions[vi+1]),
					math32.Float32frombits(positions[vi+2]),
					1,
				}
				clip[k] = common.MulVec4(mvp[:], p)
				masks[k] = common.ClipMask(clip[k])
			}
			if common.TriviallyOutside(masks[:]...) {
				continue
			}
			if facingCull && FacingRejected(clip[0], clip[1], clip[2], CullMode(view.CullMode)) {
				continue
			}
			survivors[n] = t
			n++
		}
		if n == 0 {
			continue
		}

		reserved := atomic.AddUint32(&counters[v*config.MaxDrawsIndirect+drawSlot], uint32(3*n)) - uint32(3*n)
		out := v*frame.IndexCapacity + outputOffset + reserved
		if int(out)+3*n > len(filtered) {
			continue
		}
		for i := range n {
			first := indexOffset + 3*survivors[i]
			filtered[out] = indices[first]
			filtered[out+1] = indices[first+1]
			filtered[out+2] = indices[first+2]
			out += 3
		}
	}
}

// FacingRejected reports whether a clip-space triangle is rejected by mode. Orientation comes
// from the 3x3 determinant of the (x, y, w) rows, which has the sign of the screen-space area
// while every w is positive. Triangles crossing w = 0 are never rejected.
// Counter-clockwise triangles are front facing; zero-area triangles are rejected by both
// back and front culling.
//
// Parameters:
//   - a, b, c: the clip-space vertices
//   - mode: the view's cull mode
//
// Returns:
//   - bool: true if the triangle faces away according to mode
func FacingRejected(a, b, c [4]float32, mode CullMode) bool {
	if mode == CullModeNone || a[3] <= 0 || b[3] <= 0 || c[3] <= 0 {
		return false
	}
	det := a[0]*(b[1]*c[3]-c[1]*b[3]) -
		a[1]*(b[0]*c[3]-c[0]*b[3]) +
		a[3]*(b[0]*c[1]-c[0]*b[1])
	if mode == CullModeBack {
		return det <= 0
	}
	return det >= 0
}

// ClearArgsKernel is the CPU form of clear_args.wgsl: each invocation zeroes one word of the
// args buffer, ClearThreadCount invocations per workgroup.
//
// Parameters:
//   - workgroup: the workgroup id
//   - b: the bound buffers
func ClearArgsKernel(workgroup [3]uint32, b pipeline.KernelBindings) {
	args := b.Words(0, BindingArgs)
	start := workgroup[0] * config.ClearThreadCount
	for i := start; i < start+config.ClearThreadCount && int(i) < len(args); i++ {
		atomic.StoreUint32(&args[i], 0)
	}
}

// CompactKernel is the CPU form of compact_args.wgsl. Each invocation owns one draw slot; for
// every view with a non-zero counter it appends a dense {indexCount, 1, firstIndex, 0, mesh}
// record to the (geometry set, view) section, bumping that section's draw counter, and zeroes
// the counter for the next frame.
//
// Parameters:
//   - workgroup: the workgroup id
//   - b: the bound buffers
func CompactKernel(workgroup [3]uint32, b pipeline.KernelBindings) {
	frame := decodeFrameConstants(b.Words(0, BindingFrame))
	slots := b.Words(0, BindingDrawSlots)
	counters := b.Words(0, BindingUncompacted)
	args := b.Words(0, BindingArgs)

	start := workgroup[0] * config.ClearThreadCount
	for slot := start; slot < start+config.ClearThreadCount && slot < config.MaxDrawsIndirect; slot++ {
		for v := uint32(0); v < config.MaxViews; v++ {
			ci := v*config.MaxDrawsIndirect + slot
			count := atomic.SwapUint32(&counters[ci], 0)
			if count == 0 || slot >= frame.DrawSlotCount {
				continue
			}
			info := slots[slot*DrawSlotWords : (slot+1)*DrawSlotWords]
			section := uint32(ArgsSectionIndex(int(info[1]), int(v))) * ArgsSectionWords
			draw := atomic.AddUint32(&args[section+ArgsCounterWord], 1) - 1
			if draw >= config.MaxDrawsIndirect {
				continue
			}
			rec := section + draw*DrawArgsWords
			atomic.StoreUint32(&args[rec], count)
			atomic.StoreUint32(&args[rec+1], 1)
			atomic.StoreUint32(&args[rec+2], info[2])
			atomic.StoreUint32(&args[rec+3], 0)
			atomic.StoreUint32(&args[rec+4], info[0])
		}
	}
}

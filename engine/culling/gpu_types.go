package culling

import (
	_ "embed"
	"encoding/binary"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-cull/config"
	"github.com/chewxy/math32"
)

// Word layout of the per-frame buffers shared by the filter and compaction kernels.
const (
	// BatchWords is the size of one GPUSmallBatchData record in 32-bit words.
	BatchWords = 8

	// DrawSlotWords is the size of one GPUDrawSlot record in 32-bit words.
	DrawSlotWords = 4

	// DrawArgsWords is the size of one DrawIndexedIndirect record in 32-bit words.
	DrawArgsWords = 5

	// ArgsCounterWord is the word index of the draw counter inside an args section.
	ArgsCounterWord = config.MaxDrawsIndirect * DrawArgsWords

	// ArgsSectionBytes is the stride between args sections, aligned for storage and
	// indirect buffer offsets.
	ArgsSectionBytes = (ArgsCounterWord*4 + 4 + 255) / 256 * 256

	// ArgsSectionWords is ArgsSectionBytes in words.
	ArgsSectionWords = ArgsSectionBytes / 4

	// ArgsSectionCount is the number of args sections per frame: one per geometry set and view.
	ArgsSectionCount = config.GeometrySetCount * config.MaxViews

	// ChunkBytes is the size of one uploaded BatchChunk.
	ChunkBytes = config.BatchCount * BatchWords * 4
)

// ArgsSectionIndex returns the args section of a geometry set and view.
//
// Parameters:
//   - set: the geometry set index
//   - view: the view index
//
// Returns:
//   - int: the section index
func ArgsSectionIndex(set, view int) int {
	return set*config.MaxViews + view
}

// GPUFrameConstantsSource is the canonical WGSL definition of the FrameConstants and ViewConstants
// structs together with the capacity constants the kernels are compiled against.
//
//go:embed assets/frame_constants.wgsl
var GPUFrameConstantsSource string

// GPUViewConstants is the GPU-aligned per-view record.
// Size: 96 bytes.
type GPUViewConstants struct {
	ViewProj       [16]float32 // offset  0: world-to-clip matrix
	Eye            [4]float32  // offset 64: world-space eye, w unused
	CullMode       uint32      // offset 80: CullMode
	ViewportWidth  float32     // offset 84
	ViewportHeight float32     // offset 88
	_pad           uint32      // offset 92
}

// GPUFrameConstants is the per-frame constant block read by every kernel and pass.
// Size: 208 bytes.
type GPUFrameConstants struct {
	Views         [config.MaxViews]GPUViewConstants // offset   0
	ViewCount     uint32                            // offset 192
	DrawSlotCount uint32                            // offset 196
	IndexCapacity uint32                            // offset 200: words per view in the filtered index buffer
	LightCount    uint32                            // offset 204
}

// Size returns the size of the GPUFrameConstants struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (208)
func (g *GPUFrameConstants) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUFrameConstants struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 208-byte buffer ready for GPU upload
func (g *GPUFrameConstants) Marshal() []byte {
	buf := make([]byte, g.Size())
	for v := range g.Views {
		view := &g.Views[v]
		base := v * 96
		for i := range 16 {
			binary.LittleEndian.PutUint32(buf[base+i*4:], math32.Float32bits(view.ViewProj[i]))
		}
		for i := range 4 {
			binary.LittleEndian.PutUint32(buf[base+64+i*4:], math32.Float32bits(view.Eye[i]))
		}
		binary.LittleEndian.PutUint32(buf[base+80:], view.CullMode)
		binary.LittleEndian.PutUint32(buf[base+84:], math32.Float32bits(view.ViewportWidth))
		binary.LittleEndian.PutUint32(buf[base+88:], math32.Float32bits(view.ViewportHeight))
	}
	binary.LittleEndian.PutUint32(buf[192:], g.ViewCount)
	binary.LittleEndian.PutUint32(buf[196:], g.DrawSlotCount)
	binary.LittleEndian.PutUint32(buf[200:], g.IndexCapacity)
	binary.LittleEndian.PutUint32(buf[204:], g.LightCount)
	return buf
}

// decodeFrameConstants reads the fields the CPU kernels need back out of the uniform words.
func decodeFrameConstants(words []uint32) GPUFrameConstants {
	var g GPUFrameConstants
	for v := range g.Views {
		base := v * 24
		for i := range 16 {
			g.Views[v].ViewProj[i] = math32.Float32frombits(words[base+i])
		}
		for i := range 4 {
			g.Views[v].Eye[i] = math32.Float32frombits(words[base+16+i])
		}
		g.Views[v].CullMode = words[base+20]
		g.Views[v].ViewportWidth = math32.Float32frombits(words[base+21])
		g.Views[v].ViewportHeight = math32.Float32frombits(words[base+22])
	}
	g.ViewCount = words[48]
	g.DrawSlotCount = words[49]
	g.IndexCapacity = words[50]
	g.LightCount = words[51]
	return g
}

// GPUSmallBatchDataSource is the canonical WGSL definition of the SmallBatchData struct.
//
//go:embed assets/batch_data.wgsl
var GPUSmallBatchDataSource string

// GPUSmallBatchData is the GPU-aligned form of SmallBatchData.
// Size: 32 bytes.
type GPUSmallBatchData struct {
	MeshIndex     uint32 // offset  0
	IndexOffset   uint32 // offset  4: first index of the cluster in the global index buffer
	TriangleCount uint32 // offset  8
	OutputOffset  uint32 // offset 12: start of the draw slot's region in the filtered stream
	DrawSlot      uint32 // offset 16: accumulated draw index of the mesh
	ViewMask      uint32 // offset 20: bit v set when the cluster survived view v
	_pad          [2]uint32
}

// Size returns the size of the GPUSmallBatchData struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (32)
func (g *GPUSmallBatchData) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUSmallBatchData struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 32-byte buffer ready for GPU upload
func (g *GPUSmallBatchData) Marshal() []byte {
	buf := make([]byte, 32)
	binary.LittleEndian.PutUint32(buf[0:], g.MeshIndex)
	binary.LittleEndian.PutUint32(buf[4:], g.IndexOffset)
	binary.LittleEndian.PutUint32(buf[8:], g.TriangleCount)
	binary.LittleEndian.PutUint32(buf[12:], g.OutputOffset)
	binary.LittleEndian.PutUint32(buf[16:], g.DrawSlot)
	binary.LittleEndian.PutUint32(buf[20:], g.ViewMask)
	return buf
}

// GPUDrawSlot describes one draw slot to the compaction kernel.
// Size: 16 bytes.
type GPUDrawSlot struct {
	MeshIndex    uint32 // offset  0
	GeometrySet  uint32 // offset  4
	OutputOffset uint32 // offset  8: first index of the slot's region in the filtered stream
	IndexCount   uint32 // offset 12: capacity of the region
}

// Size returns the size of the GPUDrawSlot struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (16)
func (g *GPUDrawSlot) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUDrawSlot struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 16-byte buffer ready for GPU upload
func (g *GPUDrawSlot) Marshal() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:], g.MeshIndex)
	binary.LittleEndian.PutUint32(buf[4:], g.GeometrySet)
	binary.LittleEndian.PutUint32(buf[8:], g.OutputOffset)
	binary.LittleEndian.PutUint32(buf[12:], g.IndexCount)
	return buf
}

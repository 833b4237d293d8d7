package mesh

import (
	_ "embed"
	"encoding/binary"
	"unsafe"

	"github.com/chewxy/math32"
)

// Flags stored in GPUMeshConstants.Flags.
const (
	MeshFlagTwoSided    uint32 = 1 << 0
	MeshFlagAlphaTested uint32 = 1 << 1
)

// GPUMeshConstantsSource is the canonical WGSL definition of the MeshConstants struct.
// Matches GPUMeshConstants layout exactly (96 bytes, std430 aligned).
//
//go:embed assets/mesh_constants.wgsl
var GPUMeshConstantsSource string

// GPUMeshConstants is the GPU-aligned, read-only per-mesh record shared by all frames.
// Size: 96 bytes.
type GPUMeshConstants struct {
	Model        [16]float32 // offset  0: object-to-world matrix
	IndexOffset  uint32      // offset 64: first index in the global index buffer
	IndexCount   uint32      // offset 68
	VertexOffset uint32      // offset 72
	Flags        uint32      // offset 76: MeshFlag bits
	MaterialID   uint32      // offset 80
	Alpha        float32     // offset 84: coverage of alpha-tested meshes
	AlphaCutoff  float32     // offset 88: fragments below it are discarded
	_pad         uint32      // offset 92: padding to 96 bytes
}

// NewGPUMeshConstants builds the GPU record of m.
//
// Parameters:
//   - m: the mesh
//
// Returns:
//   - GPUMeshConstants: the record
func NewGPUMeshConstants(m Mesh) GPUMeshConstants {
	g := GPUMeshConstants{
		Model:        m.Transform(),
		IndexOffset:  m.IndexOffset(),
		IndexCount:   m.IndexCount(),
		VertexOffset: m.VertexOffset(),
		MaterialID:   m.MaterialID(),
		Alpha:        m.Alpha(),
		AlphaCutoff:  m.AlphaCutoff(),
	}
	if m.TwoSided() {
		g.Flags |= MeshFlagTwoSided
	}
	if m.GeometrySet() == GeometrySetAlphaTested {
		g.Flags |= MeshFlagAlphaTested
	}
	return g
}

// Size returns the size of the GPUMeshConstants struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (96)
func (g *GPUMeshConstants) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUMeshConstants struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUMeshConstants) Marshal() []byte {
	buf := make([]byte, g.Size())
	for i := range 16 {
		binary.LittleEndian.PutUint32(buf[i*4:], math32.Float32bits(g.Model[i]))
	}
	binary.LittleEndian.PutUint32(buf[64:], g.IndexOffset)
	binary.LittleEndian.PutUint32(buf[68:], g.IndexCount)
	binary.LittleEndian.PutUint32(buf[72:], g.VertexOffset)
	binary.LittleEndian.PutUint32(buf[76:], g.Flags)
	binary.LittleEndian.PutUint32(buf[80:], g.MaterialID)
	binary.LittleEndian.PutUint32(buf[84:], math32.Float32bits(g.Alpha))
	binary.LittleEndian.PutUint32(buf[88:], math32.Float32bits(g.AlphaCutoff))
	return buf
}

// MarshalMeshConstants serializes a slice of records back to back.
//
// Parameters:
//   - records: the records to serialize
//
// Returns:
//   - []byte: the concatenated records
func MarshalMeshConstants(records []GPUMeshConstants) []byte {
	if len(records) == 0 {
		return nil
	}
	out := make([]byte, 0, len(records)*records[0].Size())
	for i := range records {
		out = append(out, records[i].Marshal()...)
	}
	return out
}

package light

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-cull/config"
	"github.com/chewxy/math32"
)

// ErrTooManyLights is returned when a frame uploads more than MaxLights point lights.
var ErrTooManyLights = fmt.Errorf("lights: %w", config.ErrCapacity)

// Light grid layout. Each cell is a count word followed by MaxLightsPerCell light indices.
const (
	// GridCellCount is the number of cells in the light grid.
	GridCellCount = config.LightGridWidth * config.LightGridHeight

	// GridCellWords is the stride of one cell in words.
	GridCellWords = 1 + config.MaxLightsPerCell

	// GridWords is the size of the whole grid buffer in words.
	GridWords = GridCellCount * GridCellWords

	// LightWords is the size of one GPULight in words.
	LightWords = 8

	// GridParamsWords is the size of GPULightGridParams in words.
	GridParamsWords = 36
)

// GPULightSource is the canonical WGSL definition of the Light struct.
// Matches GPULight layout exactly (32 bytes, std430 aligned).
//
//go:embed assets/light.wgsl
var GPULightSource string

// GPULight is the GPU-aligned representation of a single point light.
// Matches the WGSL Light struct layout exactly (see GPULightSource).
// Size: 32 bytes.
type GPULight struct {
	Position  [3]float32 // offset  0: world-space position
	Range     float32    // offset 12: bounding sphere radius
	Color     [3]float32 // offset 16: RGB color
	Intensity float32    // offset 28: scalar multiplier
}

// Size returns the size of the GPULight struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (32)
func (g *GPULight) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPULight struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 32-byte buffer ready for GPU upload
func (g *GPULight) Marshal() []byte {
	buf := make([]byte, 32)
	binary.LittleEndian.PutUint32(buf[0:4], math32.Float32bits(g.Position[0]))
	binary.LittleEndian.PutUint32(buf[4:8], math32.Float32bits(g.Position[1]))
	binary.LittleEndian.PutUint32(buf[8:12], math32.Float32bits(g.Position[2]))
	binary.LittleEndian.PutUint32(buf[12:16], math32.Float32bits(g.Range))
	binary.LittleEndian.PutUint32(buf[16:20], math32.Float32bits(g.Color[0]))
	binary.LittleEndian.PutUint32(buf[20:24], math32.Float32bits(g.Color[1]))
	binary.LittleEndian.PutUint32(buf[24:28], math32.Float32bits(g.Color[2]))
	binary.LittleEndian.PutUint32(buf[28:32], math32.Float32bits(g.Intensity))
	return buf
}

// GPULightGridSource is the canonical WGSL definition of the LightGridParams and LightCell
// structs plus the grid constants.
//
//go:embed assets/light_grid.wgsl
var GPULightGridSource string

// GPULightGridParams is the uniform consumed by the light clusterer.
// Matches the WGSL LightGridParams struct layout exactly (see GPULightGridSource).
// Size: 144 bytes.
type GPULightGridParams struct {
	View       [16]float32 // offset   0: camera view matrix
	Proj       [16]float32 // offset  64: camera projection matrix
	LightCount uint32      // offset 128
	Near       float32     // offset 132: camera near plane distance
	_pad       [2]uint32
}

// Size returns the size of the GPULightGridParams struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (144)
func (g *GPULightGridParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPULightGridParams struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 144-byte buffer ready for GPU upload
func (g *GPULightGridParams) Marshal() []byte {
	buf := make([]byte, GridParamsWords*4)
	for i := range 16 {
		binary.LittleEndian.PutUint32(buf[i*4:], math32.Float32bits(g.View[i]))
		binary.LittleEndian.PutUint32(buf[64+i*4:], math32.Float32bits(g.Proj[i]))
	}
	binary.LittleEndian.PutUint32(buf[128:], g.LightCount)
	binary.LittleEndian.PutUint32(buf[132:], math32.Float32bits(g.Near))
	return buf
}

// decodeGridParams reads GPULightGridParams back from bound words.
func decodeGridParams(words []uint32) GPULightGridParams {
	var g GPULightGridParams
	if len(words) < GridParamsWords {
		return g
	}
	for i := range 16 {
		g.View[i] = math32.Float32frombits(words[i])
		g.Proj[i] = math32.Float32frombits(words[16+i])
	}
	g.LightCount = words[32]
	g.Near = math32.Float32frombits(words[33])
	return g
}

// ToGPULight converts a Light into its GPU representation.
//
// Parameters:
//   - l: the Light to convert
//
// Returns:
//   - GPULight: the GPU-aligned representation
func ToGPULight(l Light) GPULight {
	return GPULight{
		Position:  l.Position(),
		Range:     l.Range(),
		Color:     l.Color(),
		Intensity: l.Intensity(),
	}
}

// PackLights marshals the enabled point lights for the clusterer and the shade pass.
// Directional and disabled lights are skipped. Unlike a per-cell overflow, exceeding the
// buffer capacity is a fatal error.
//
// Parameters:
//   - lights: the scene lights
//
// Returns:
//   - []byte: LightWords*4 bytes per packed light
//   - uint32: the number of packed lights
//   - error: ErrTooManyLights when more than MaxLights point lights are enabled
func PackLights(lights []Light) ([]byte, uint32, error) {
	var count uint32
	for _, l := range lights {
		if l.Enabled() && l.Type() == LightTypePoint {
			count++
		}
	}
	if count > config.MaxLights {
		return nil, 0, fmt.Errorf("%d point lights, capacity %d: %w", count, config.MaxLights, ErrTooManyLights)
	}

	buf := make([]byte, 0, int(count)*LightWords*4)
	for _, l := range lights {
		if !l.Enabled() || l.Type() != LightTypePoint {
			continue
		}
		g := ToGPULight(l)
		buf = append(buf, g.Marshal()...)
	}
	return buf, count, nil
}

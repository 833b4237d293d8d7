// Package config holds the fixed capacity planning parameters of the culling pipeline and the
// runtime configuration loaded from TOML.
package config

import "errors"

// Capacity planning parameters. These size preallocated GPU buffers; changing them requires a rebuild
// and the WGSL constants in the shader assets must be kept in sync.
const (
	// ClusterTriangleCount is the maximum number of triangles in one cluster. It is also the
	// workgroup size of the triangle filtering kernel.
	ClusterTriangleCount = 64

	// BatchCount is the maximum number of SmallBatchData records in one BatchChunk, i.e. one
	// filtering kernel dispatch.
	BatchCount = 256

	// MaxBatchesPerFrame bounds the number of filtering dispatches in a frame.
	MaxBatchesPerFrame = 64

	// MaxDrawsIndirect bounds the number of draw slots (meshes with surviving clusters) per frame.
	MaxDrawsIndirect = 4096

	// MaxViews is the number of culling views: camera and shadow.
	MaxViews = 2

	// GeometrySetCount is the number of geometry sets: opaque and alpha-tested.
	GeometrySetCount = 2

	// MaxLights is the total light capacity of a frame.
	MaxLights = 1024

	// LightGridWidth and LightGridHeight are the fixed light-grid cell dimensions.
	LightGridWidth  = 16
	LightGridHeight = 9

	// MaxLightsPerCell is the capacity of one light-grid cell's index list.
	MaxLightsPerCell = 32

	// ClearThreadCount is the thread count of one group in the clear and compaction scans.
	ClearThreadCount = 256

	// FramesInFlight is the number of frames the CPU may record ahead of the GPU.
	FramesInFlight = 3
)

// ErrCapacity is wrapped by every fatal capacity violation.
var ErrCapacity = errors.New("capacity exceeded")

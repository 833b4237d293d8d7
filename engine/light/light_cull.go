package light

import (
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/config"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/pipeline"
	"github.com/chewxy/math32"
)

// LightThreadCount is the number of lights one cluster workgroup handles.
const LightThreadCount = 64

// Bindings of the clusterer's group 0, shared by both kernels and the shade pass.
const (
	BindingGridParams = 0
	BindingLights     = 1
	BindingGrid       = 2
)

// CellRect is an inclusive range of light-grid cells. Row 0 is the top of the screen.
type CellRect struct {
	MinX, MinY, MaxX, MaxY uint32
}

// Cells returns the number of cells in the rectangle.
func (r CellRect) Cells() int {
	return int(r.MaxX-r.MinX+1) * int(r.MaxY-r.MinY+1)
}

// ProjectSphere finds the grid cells overlapped by a view-space sphere. The sphere's
// view-space bounding box is clamped to the near plane before projection, so lights
// straddling the camera still cover the cells they can reach. The result is conservative.
//
// Parameters:
//   - center: the sphere center in view space (the camera looks down -Z)
//   - radius: the sphere radius
//   - proj: the camera projection matrix
//   - near: the camera near plane distance
//
// Returns:
//   - CellRect: the overlapped cells
//   - bool: false when the sphere lies entirely behind the near plane or off screen
func ProjectSphere(center [3]float32, radius float32, proj [16]float32, near float32) (CellRect, bool) {
	maxZ := min(center[2]+radius, -near)
	minZ := center[2] - radius
	if minZ > maxZ {
		return CellRect{}, false
	}

	lo := [2]float32{math32.Inf(1), math32.Inf(1)}
	hi := [2]float32{math32.Inf(-1), math32.Inf(-1)}
	for i := range 8 {
		corner := [4]float32{center[0] - radius, center[1] - radius, minZ, 1}
		if i&1 != 0 {
			corner[0] = center[0] + radius
		}
		if i&2 != 0 {
			corner[1] = center[1] + radius
		}
		if i&4 != 0 {
			corner[2] = maxZ
		}
		clip := common.MulVec4(proj[:], corner)
		if clip[3] <= 0 {
			return CellRect{}, false
		}
		for k := range 2 {
			ndc := clip[k] / clip[3]
			lo[k] = min(lo[k], ndc)
			hi[k] = max(hi[k], ndc)
		}
	}
	if hi[0] < -1 || lo[0] > 1 || hi[1] < -1 || lo[1] > 1 {
		return CellRect{}, false
	}

	return CellRect{
		MinX: gridCoord((lo[0]+1)/2, config.LightGridWidth),
		MaxX: gridCoord((hi[0]+1)/2, config.LightGridWidth),
		MinY: gridCoord((1-hi[1])/2, config.LightGridHeight),
		MaxY: gridCoord((1-lo[1])/2, config.LightGridHeight),
	}, true
}

// gridCoord maps a [0, 1] screen coordinate to a clamped cell index.
func gridCoord(t float32, cells uint32) uint32 {
	c := math32.Floor(t * float32(cells))
	if c < 0 {
		return 0
	}
	if c >= float32(cells) {
		return cells - 1
	}
	return uint32(c)
}

// AppendLight adds a light index to a grid cell with a compare-and-swap bounded append.
// The stored count never exceeds MaxLightsPerCell; a full cell drops the light.
//
// Parameters:
//   - grid: the grid words
//   - cell: the cell index
//   - light: the light index to append
//
// Returns:
//   - bool: false if the cell was full
func AppendLight(grid []uint32, cell, light uint32) bool {
	base := cell * GridCellWords
	for {
		n := atomic.LoadUint32(&grid[base])
		if n >= config.MaxLightsPerCell {
			return false
		}
		if atomic.CompareAndSwapUint32(&grid[base], n, n+1) {
			grid[base+1+n] = light
			return true
		}
	}
}

// ClearGridKernel is the CPU form of clear_grid.wgsl: one invocation per cell zeroes its count.
//
// Parameters:
//   - workgroup: the workgroup id
//   - b: the bound buffers
func ClearGridKernel(workgroup [3]uint32, b pipeline.KernelBindings) {
	grid := b.Words(0, BindingGrid)
	start := workgroup[0] * config.ClearThreadCount
	for cell := start; cell < start+config.ClearThreadCount && cell < GridCellCount; cell++ {
		atomic.StoreUint32(&grid[cell*GridCellWords], 0)
	}
}

// ClusterKernel is the CPU form of cluster_lights.wgsl: one invocation per light projects
// its bounding sphere through the camera and appends it into every overlapped cell.
//
// Parameters:
//   - workgroup: the workgroup id
//   - b: the bound buffers
func ClusterKernel(workgroup [3]uint32, b pipeline.KernelBindings) {
	params := decodeGridParams(b.Words(0, BindingGridParams))
	lights := b.Words(0, BindingLights)
	grid := b.Words(0, BindingGrid)

	start := workgroup[0] * LightThreadCount
	for i := start; i < start+LightThreadCount && i < params.LightCount; i++ {
		if int(i+1)*LightWords > len(lights) {
			return
		}
		rec := lights[i*LightWords : (i+1)*LightWords]
		world := [3]float32{
			math32.Float32frombits(rec[0]),
			math32.Float32frombits(rec[1]),
			math32.Float32frombits(rec[2]),
		}
		radius := math32.Float32frombits(rec[3])

		rect, ok := ProjectSphere(common.TransformPoint(params.View[:], world), radius, params.Proj, params.Near)
		if !ok {
			continue
		}
		for y := rect.MinY; y <= rect.MaxY; y++ {
			for x := rect.MinX; x <= rect.MaxX; x++ {
				AppendLight(grid, y*config.LightGridWidth+x, i)
			}
		}
	}
}

// ClusterWorkgroups returns the dispatch size for count lights. At least one workgroup is
// dispatched so an empty light list still produces a well-formed command stream.
//
// Parameters:
//   - count: the number of packed lights
//
// Returns:
//   - uint32: the workgroup count
func ClusterWorkgroups(count uint32) uint32 {
	return max(1, common.CeilDiv(count, LightThreadCount))
}

// ClearGridWorkgroups returns the dispatch size of the grid clear.
func ClearGridWorkgroups() uint32 {
	return common.CeilDiv(GridCellCount, config.ClearThreadCount)
}

// CellLights returns the light indices stored in one cell of a grid read back from the GPU.
//
// Parameters:
//   - grid: the grid words
//   - cell: the cell index
//
// Returns:
//   - []uint32: the stored light indices
func CellLights(grid []uint32, cell uint32) []uint32 {
	base := cell * GridCellWords
	n := min(grid[base], config.MaxLightsPerCell)
	return grid[base+1 : base+1+n]
}

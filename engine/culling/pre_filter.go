package culling

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/config"
	"github.com/Carmen-Shannon/oxy-cull/engine/cluster"
	"github.com/Carmen-Shannon/oxy-cull/engine/mesh"
	"github.com/chewxy/math32"
)

// Survivor is a cluster that passed the pre-filter for at least one view.
type Survivor struct {
	// Mesh is the index of the owning mesh in the geometry arena.
	Mesh uint32
	// Cluster is the index of the cluster within its mesh.
	Cluster uint32
	// ViewMask has bit v set when the cluster passed view v.
	ViewMask uint32
	// Distance is the camera distance to the cluster apex, filled only when sorting.
	Distance float32
}

// PreFilter runs the CPU cone and frustum tests over every cluster of the scene.
// It keeps its scratch state between frames and is not safe for concurrent use.
type PreFilter struct {
	clipMaskTest bool
	clusterSort  bool

	survivors []Survivor
	eyes      [config.MaxViews][3]float32
	mvp       [config.MaxViews][16]float32
}

// NewPreFilter creates a pre-filter with the given options applied.
//
// Parameters:
//   - options: functional options for the pre-filter
//
// Returns:
//   - *PreFilter: the pre-filter
func NewPreFilter(options ...PreFilterOption) *PreFilter {
	p := &PreFilter{}
	for _, option := range options {
		option(p)
	}
	return p
}

// Run tests every cluster of geom against views. A cluster survives when it passes for at
// least one view; it is culled only if every view rejects it. Survivors are grouped by mesh
// in mesh order, which the chunker relies on.
//
// The returned slice is reused by the next call to Run.
//
// Parameters:
//   - geom: the scene geometry
//   - views: the active views in view-index order
//
// Returns:
//   - []Survivor: the surviving clusters
//   - error: an error if the view list is empty or too long
func (p *PreFilter) Run(geom *mesh.Geometry, views []View) ([]Survivor, error) {
	if len(views) == 0 {
		return nil, errors.New("pre-filter needs at least one view")
	}
	if len(views) > config.MaxViews {
		return nil, fmt.Errorf("%d views exceed %d: %w", len(views), config.MaxViews, config.ErrCapacity)
	}

	p.survivors = p.survivors[:0]
	for _, m := range geom.Meshes() {
		model := m.Transform()
		inverse := m.InverseTransform()
		scale := maxScale(model)
		for v := range views {
			p.eyes[v] = common.TransformPoint(inverse[:], views[v].Eye)
			if p.clipMaskTest {
				common.Mul4(p.mvp[v][:], views[v].ViewProj[:], model[:])
			}
		}

		first := len(p.survivors)
		clusters := m.Clusters()
		for ci := range clusters {
			c := &clusters[ci]
			var mask uint32
			for v := range views {
				if p.visible(c, &views[v], v, model, scale) {
					mask |= 1 << v
				}
			}
			if mask == 0 {
				continue
			}
			s := Survivor{Mesh: m.Index(), Cluster: uint32(ci), ViewMask: mask}
			if p.clusterSort {
				s.Distance = common.Length3(common.Sub3(c.Apex, p.eyes[0])) * scale
			}
			p.survivors = append(p.survivors, s)
		}

		if p.clusterSort {
			slices.SortStableFunc(p.survivors[first:], func(a, b Survivor) int {
				switch {
				case a.Distance < b.Distance:
					return -1
				case a.Distance > b.Distance:
					return 1
				default:
					return 0
				}
			})
		}
	}
	return p.survivors, nil
}

// visible applies the cone, sphere and optional clip-mask tests of one view.
func (p *PreFilter) visible(c *cluster.Cluster, view *View, v int, model [16]float32, scale float32) bool {
	// Shadow views cull nothing on facing grounds, so neither may the cone.
	if view.CullMode == CullModeBack && c.ConeCull(p.eyes[v]) {
		return false
	}

	center, radius := c.BoundingSphere()
	frustum := view.Frustum()
	if frustum.SphereOutside(common.TransformPoint(model[:], center), radius*scale) {
		return false
	}

	if p.clipMaskTest {
		var masks [8]uint8
		for i := range masks {
			corner := [4]float32{center[0] - radius, center[1] - radius, center[2] - radius, 1}
			if i&1 != 0 {
				corner[0] += 2 * radius
			}
			if i&2 != 0 {
				corner[1] += 2 * radius
			}
			if i&4 != 0 {
				corner[2] += 2 * radius
			}
			masks[i] = common.ClipMask(common.MulVec4(p.mvp[v][:], corner))
		}
		if common.TriviallyOutside(masks[:]...) {
			return false
		}
	}
	return true
}

// maxScale returns the largest axis scale of an affine transform, bounding how much it can
// grow an object-space radius.
func maxScale(m [16]float32) float32 {
	sx := m[0]*m[0] + m[1]*m[1] + m[2]*m[2]
	sy := m[4]*m[4] + m[5]*m[5] + m[6]*m[6]
	sz := m[8]*m[8] + m[9]*m[9] + m[10]*m[10]
	return math32.Sqrt(max(sx, sy, sz))
}

// Package cluster partitions mesh triangles into fixed-size clusters and computes the bounding
// cone used for coarse back-face rejection on the CPU.
package cluster

import (
	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/config"
	"github.com/chewxy/math32"
)

// degenerateArea is the squared cross-product length below which a triangle has no usable normal.
const degenerateArea = 1e-12

// Cluster is a contiguous run of a mesh's triangles sharing one bounding cone.
// Clusters are immutable once built.
type Cluster struct {
	// TriangleOffset is the index of the first triangle, relative to the owning mesh.
	TriangleOffset uint32
	// TriangleCount is the number of triangles in the cluster.
	TriangleCount uint32

	// Apex is the centroid of the cluster's triangles in object space.
	Apex [3]float32
	// Axis is the normalized average triangle normal.
	Axis [3]float32
	// AngleCos is the cosine of the largest angle between any triangle normal and Axis.
	AngleCos float32
	// Radius bounds the distance from Apex to every vertex of the cluster.
	Radius float32

	// Valid is false when the cone cannot be used to reject the cluster: two-sided geometry,
	// degenerate triangles, or normals spread over a hemisphere or more.
	Valid bool
}

// Build partitions the triangles of a mesh into clusters in index order.
// A mesh without triangles produces an empty cluster list.
//
// Parameters:
//   - positions: object-space vertex positions
//   - indices: three vertex indices per triangle
//   - twoSided: whether the mesh is rendered without back-face culling
//   - options: functional options controlling the build
//
// Returns:
//   - []Cluster: the clusters covering every triangle exactly once
func Build(positions [][3]float32, indices []uint32, twoSided bool, options ...BuildOption) []Cluster {
	b := &builder{triangleCount: config.ClusterTriangleCount}
	for _, option := range options {
		option(b)
	}

	triCount := uint32(len(indices) / 3)
	if triCount == 0 {
		return nil
	}

	clusters := make([]Cluster, 0, common.CeilDiv(triCount, b.triangleCount))
	for first := uint32(0); first < triCount; first += b.triangleCount {
		count := min(b.triangleCount, triCount-first)
		c := buildCone(positions, indices[first*3:(first+count)*3])
		c.TriangleOffset = first
		c.TriangleCount = count
		if twoSided {
			c.Valid = false
		}
		clusters = append(clusters, c)
	}
	return clusters
}

// buildCone computes the bounding cone of one run of triangles.
func buildCone(positions [][3]float32, indices []uint32) Cluster {
	var c Cluster
	valid := true
	triCount := len(indices) / 3

	normals := make([][3]float32, triCount)
	var centroidSum, normalSum [3]float32
	for t := 0; t < triCount; t++ {
		a, b, d := positions[indices[t*3]], positions[indices[t*3+1]], positions[indices[t*3+2]]
		centroidSum = common.Add3(centroidSum, common.Scale3(common.Add3(common.Add3(a, b), d), 1.0/3.0))

		n := common.Cross3(common.Sub3(b, a), common.Sub3(d, a))
		if common.Dot3(n, n) < degenerateArea {
			valid = false
			continue
		}
		normals[t] = common.Normalize3(n)
		normalSum = common.Add3(normalSum, normals[t])
	}
	c.Apex = common.Scale3(centroidSum, 1/float32(triCount))

	for _, idx := range indices {
		c.Radius = max(c.Radius, common.Length3(common.Sub3(positions[idx], c.Apex)))
	}

	if common.Length3(normalSum) < 1e-6 {
		c.AngleCos = -1
		return c
	}
	c.Axis = common.Normalize3(normalSum)

	c.AngleCos = 1
	for t := 0; t < triCount; t++ {
		if normals[t] == ([3]float32{}) {
			continue
		}
		c.AngleCos = min(c.AngleCos, common.Dot3(normals[t], c.Axis))
	}
	// a cone spanning 90 degrees or more cannot prove anything about facing
	c.Valid = valid && c.AngleCos > 0
	return c
}

// ConeCull reports whether every triangle of the cluster faces away from eye, i.e. the eye lies
// outside the cluster's visibility cone. The test accounts for Radius, so a rejection implies
// that no triangle of the cluster is front-facing. Invalid clusters are never rejected.
//
// Parameters:
//   - eye: the viewer position in the cluster's object space
//
// Returns:
//   - bool: true if the cluster can be rejected for this eye
func (c *Cluster) ConeCull(eye [3]float32) bool {
	if !c.Valid {
		return false
	}
	v := common.Sub3(c.Apex, eye)
	dist := common.Length3(v)
	if dist <= c.Radius {
		return false
	}

	cosPhi := common.Dot3(v, c.Axis) / dist
	sinPhi := math32.Sqrt(max(0, 1-cosPhi*cosPhi))
	sinTheta := math32.Sqrt(max(0, 1-c.AngleCos*c.AngleCos))

	// cos(phi + theta) is the smallest cosine between the view direction and any normal in the cone
	return cosPhi*c.AngleCos-sinPhi*sinTheta > c.Radius/dist
}

// BoundingSphere returns the cluster's bounding sphere in object space.
//
// Returns:
//   - [3]float32: the sphere center (Apex)
//   - float32: the sphere radius
func (c *Cluster) BoundingSphere() ([3]float32, float32) {
	return c.Apex, c.Radius
}

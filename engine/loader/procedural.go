package loader

import (
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ShapeKind selects the signed distance function of a procedural shape.
type ShapeKind int

const (
	ShapeBox ShapeKind = iota
	ShapeSphere
	ShapeCylinder
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeBox:
		return "box"
	case ShapeSphere:
		return "sphere"
	case ShapeCylinder:
		return "cylinder"
	default:
		return fmt.Sprintf("ShapeKind(%d)", int(k))
	}
}

// Shape describes a procedural mesh centered on the origin.
type Shape struct {
	Kind ShapeKind
	// Size is the box dimensions; a sphere uses Size[0] as radius; a cylinder uses Size[0] as
	// radius and Size[1] as height along Z.
	Size [3]float32
	// Round is the edge rounding radius of boxes and cylinders.
	Round float32

	TwoSided    bool
	AlphaTested bool
}

// Box returns a box shape with the given dimensions.
func Box(x, y, z float32) Shape {
	return Shape{Kind: ShapeBox, Size: [3]float32{x, y, z}}
}

// Sphere returns a sphere shape.
func Sphere(radius float32) Shape {
	return Shape{Kind: ShapeSphere, Size: [3]float32{radius}}
}

// Cylinder returns a Z-aligned cylinder shape.
func Cylinder(height, radius float32) Shape {
	return Shape{Kind: ShapeCylinder, Size: [3]float32{radius, height}}
}

// key is the cache key of the shape; equal shapes share a tessellation.
func (s Shape) key() string {
	return fmt.Sprintf("%s(%g,%g,%g;r=%g;2s=%t;at=%t)", s.Kind, s.Size[0], s.Size[1], s.Size[2], s.Round, s.TwoSided, s.AlphaTested)
}

// sdf3 builds the signed distance function of the shape.
func (s Shape) sdf3() (sdf.SDF3, error) {
	switch s.Kind {
	case ShapeBox:
		return sdf.Box3D(v3.Vec{X: float64(s.Size[0]), Y: float64(s.Size[1]), Z: float64(s.Size[2])}, float64(s.Round))
	case ShapeSphere:
		return sdf.Sphere3D(float64(s.Size[0]))
	case ShapeCylinder:
		return sdf.Cylinder3D(float64(s.Size[1]), float64(s.Size[0]), float64(s.Round))
	default:
		return nil, fmt.Errorf("unknown shape kind %d", s.Kind)
	}
}

// tessellate runs marching cubes over the shape, welds coincident vertices and orients every
// triangle counter-clockwise seen from outside.
func tessellate(shape Shape, cells int) (common.ImportedMesh, error) {
	s, err := shape.sdf3()
	if err != nil {
		return common.ImportedMesh{}, err
	}
	triangles := render.ToTriangles(s, render.NewMarchingCubesUniform(cells))

	mesh := common.ImportedMesh{
		Name:        shape.key(),
		TwoSided:    shape.TwoSided,
		AlphaTested: shape.AlphaTested,
	}
	weld := make(map[[3]float32]uint32, len(triangles))
	vertex := func(v v3.Vec) uint32 {
		p := [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
		if idx, ok := weld[p]; ok {
			return idx
		}
		idx := uint32(len(mesh.Positions))
		weld[p] = idx
		mesh.Positions = append(mesh.Positions, p)
		return idx
	}

	for _, tri := range triangles {
		a, b, c := vertex(tri[0]), vertex(tri[1]), vertex(tri[2])
		if a == b || b == c || a == c {
			continue
		}
		if inward(s, tri[0], tri[1], tri[2]) {
			b, c = c, b
		}
		mesh.Indices = append(mesh.Indices, a, b, c)
	}
	if len(mesh.Indices) == 0 {
		return common.ImportedMesh{}, fmt.Errorf("%s produced no triangles", shape.key())
	}
	return mesh, nil
}

// inward reports whether the geometric normal of a, b, c points into the solid, judged by the
// distance field on either side of the centroid.
func inward(s sdf.SDF3, a, b, c v3.Vec) bool {
	e1 := [3]float64{b.X - a.X, b.Y - a.Y, b.Z - a.Z}
	e2 := [3]float64{c.X - a.X, c.Y - a.Y, c.Z - a.Z}
	n := [3]float64{
		e1[1]*e2[2] - e1[2]*e2[1],
		e1[2]*e2[0] - e1[0]*e2[2],
		e1[0]*e2[1] - e1[1]*e2[0],
	}
	length := math.Sqrt(n[0]*n[0] + n[1]*n[1] + n[2]*n[2])
	if length == 0 {
		return false
	}

	bb := s.BoundingBox()
	eps := 1e-3 * max(bb.Max.X-bb.Min.X, bb.Max.Y-bb.Min.Y, bb.Max.Z-bb.Min.Z, 1) / length
	cx, cy, cz := (a.X+b.X+c.X)/3, (a.Y+b.Y+c.Y)/3, (a.Z+b.Z+c.Z)/3
	outside := s.Evaluate(v3.Vec{X: cx + n[0]*eps, Y: cy + n[1]*eps, Z: cz + n[2]*eps})
	inside := s.Evaluate(v3.Vec{X: cx - n[0]*eps, Y: cy - n[1]*eps, Z: cz - n[2]*eps})
	return outside < inside
}

package loader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/model"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// gltfMeshExtractorImpl is the implementation of the gltfMeshExtractor interface.
type gltfMeshExtractorImpl struct {
	doc       *gltf.Document
	materials []model.Material

	// cache of decoded primitives keyed by mesh and primitive index; instanced meshes share them
	primitives map[[2]int]*common.ImportedMesh
}

// gltfMeshExtractor walks the scene graph and emits one ImportedMesh per triangle primitive
// instance, carrying the world transform of its node.
type gltfMeshExtractor interface {
	// ExtractScene extracts every mesh reachable from the default scene, or from every node
	// when the document declares no scene.
	//
	// Returns:
	//   - []common.ImportedMesh: the placed meshes
	//   - error: error if an accessor cannot be read
	ExtractScene() ([]common.ImportedMesh, error)
}

var _ gltfMeshExtractor = &gltfMeshExtractorImpl{}

// newGLTFMeshExtractor creates a mesh extractor. materials is indexed by glTF material index.
func newGLTFMeshExtractor(doc *gltf.Document, materials []model.Material) gltfMeshExtractor {
	return &gltfMeshExtractorImpl{
		doc:        doc,
		materials:  materials,
		primitives: make(map[[2]int]*common.ImportedMesh),
	}
}

func (e *gltfMeshExtractorImpl) ExtractScene() ([]common.ImportedMesh, error) {
	var roots []int
	switch {
	case e.doc.Scene != nil && *e.doc.Scene < len(e.doc.Scenes):
		roots = e.doc.Scenes[*e.doc.Scene].Nodes
	case len(e.doc.Scenes) > 0:
		roots = e.doc.Scenes[0].Nodes
	default:
		roots = e.rootNodes()
	}

	var out []common.ImportedMesh
	identity := common.IdentityMatrix()
	for _, n := range roots {
		var err error
		if out, err = e.walk(out, n, identity, 0); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// walk appends the meshes of node n and its children. depth guards against cyclic documents.
func (e *gltfMeshExtractorImpl) walk(out []common.ImportedMesh, n int, parent [16]float32, depth int) ([]common.ImportedMesh, error) {
	if n < 0 || n >= len(e.doc.Nodes) {
		return nil, fmt.Errorf("node index %d out of range", n)
	}
	if depth > len(e.doc.Nodes) {
		return nil, fmt.Errorf("node %d: cycle in scene graph", n)
	}
	node := e.doc.Nodes[n]

	local := gltfNodeMatrix(node)
	var world [16]float32
	common.Mul4(world[:], parent[:], local[:])

	if node.Mesh != nil {
		placed, err := e.extractMesh(*node.Mesh, world)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", node.Name, err)
		}
		out = append(out, placed...)
	}
	for _, child := range node.Children {
		var err error
		if out, err = e.walk(out, child, world, depth+1); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// extractMesh places every triangle primitive of a mesh with the given world transform.
func (e *gltfMeshExtractorImpl) extractMesh(meshIndex int, world [16]float32) ([]common.ImportedMesh, error) {
	if meshIndex < 0 || meshIndex >= len(e.doc.Meshes) {
		return nil, fmt.Errorf("mesh index %d out of range", meshIndex)
	}
	mesh := e.doc.Meshes[meshIndex]
	mirrored := determinant3(world) < 0

	var out []common.ImportedMesh
	for p, prim := range mesh.Primitives {
		if prim.Mode != gltf.PrimitiveTriangles {
			continue
		}
		src, err := e.primitive(meshIndex, p, mesh.Name, prim)
		if err != nil {
			return nil, err
		}
		if src == nil {
			continue
		}
		placed := *src
		placed.Transform = world
		if mirrored {
			// a mirroring transform turns counter-clockwise front faces clockwise
			placed.Indices = flipWinding(src.Indices)
		}
		out = append(out, placed)
	}
	return out, nil
}

// primitive decodes one primitive, or returns nil when it has no positions.
func (e *gltfMeshExtractorImpl) primitive(meshIndex, primIndex int, meshName string, prim *gltf.Primitive) (*common.ImportedMesh, error) {
	key := [2]int{meshIndex, primIndex}
	if cached, ok := e.primitives[key]; ok {
		return cached, nil
	}

	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		e.primitives[key] = nil
		return nil, nil
	}
	positions, err := modeler.ReadPosition(e.doc, e.doc.Accessors[posIdx], nil)
	if err != nil {
		return nil, fmt.Errorf("read positions of %q/%d: %w", meshName, primIndex, err)
	}

	var indices []uint32
	if prim.Indices != nil {
		indices, err = modeler.ReadIndices(e.doc, e.doc.Accessors[*prim.Indices], nil)
		if err != nil {
			return nil, fmt.Errorf("read indices of %q/%d: %w", meshName, primIndex, err)
		}
	} else {
		indices = make([]uint32, len(positions)/3*3)
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	indices = indices[:len(indices)/3*3]

	src := &common.ImportedMesh{
		Name:      fmt.Sprintf("%s/%d", meshName, primIndex),
		Positions: positions,
		Indices:   indices,
	}
	if prim.Material != nil && *prim.Material < len(e.materials) {
		mat := e.materials[*prim.Material]
		src.MaterialID = uint32(*prim.Material)
		src.TwoSided = mat.DoubleSided
		src.AlphaTested = mat.AlphaTested()
		src.Alpha = mat.Alpha
		if mat.AlphaMode == model.AlphaModeMask {
			src.AlphaCutoff = mat.AlphaCutoff
		}
	}
	e.primitives[key] = src
	return src, nil
}

// rootNodes returns the nodes that are nobody's child.
func (e *gltfMeshExtractorImpl) rootNodes() []int {
	isChild := make([]bool, len(e.doc.Nodes))
	for _, n := range e.doc.Nodes {
		for _, c := range n.Children {
			if c >= 0 && c < len(isChild) {
				isChild[c] = true
			}
		}
	}
	var roots []int
	for i, child := range isChild {
		if !child {
			roots = append(roots, i)
		}
	}
	return roots
}

// gltfNodeMatrix returns a node's local transform from its matrix or its TRS properties.
func gltfNodeMatrix(node *gltf.Node) [16]float32 {
	var out [16]float32
	if node.Matrix != [16]float64{} && node.Matrix != gltf.DefaultMatrix {
		for i, v := range node.Matrix {
			out[i] = float32(v)
		}
		return out
	}

	t := node.TranslationOrDefault()
	q := node.RotationOrDefault()
	s := node.ScaleOrDefault()
	x, y, z, w := float32(q[0]), float32(q[1]), float32(q[2]), float32(q[3])
	sx, sy, sz := float32(s[0]), float32(s[1]), float32(s[2])

	out[0] = (1 - 2*(y*y+z*z)) * sx
	out[1] = 2 * (x*y + z*w) * sx
	out[2] = 2 * (x*z - y*w) * sx

	out[4] = 2 * (x*y - z*w) * sy
	out[5] = (1 - 2*(x*x+z*z)) * sy
	out[6] = 2 * (y*z + x*w) * sy

	out[8] = 2 * (x*z + y*w) * sz
	out[9] = 2 * (y*z - x*w) * sz
	out[10] = (1 - 2*(x*x+y*y)) * sz

	out[12], out[13], out[14] = float32(t[0]), float32(t[1]), float32(t[2])
	out[15] = 1
	return out
}

// determinant3 is the determinant of the upper-left 3x3 of a column-major matrix.
func determinant3(m [16]float32) float32 {
	return m[0]*(m[5]*m[10]-m[9]*m[6]) -
		m[4]*(m[1]*m[10]-m[9]*m[2]) +
		m[8]*(m[1]*m[6]-m[5]*m[2])
}

// flipWinding returns a copy of indices with every triangle's winding reversed.
func flipWinding(indices []uint32) []uint32 {
	out := make([]uint32, len(indices))
	for i := 0; i+2 < len(indices); i += 3 {
		out[i], out[i+1], out[i+2] = indices[i], indices[i+2], indices[i+1]
	}
	return out
}

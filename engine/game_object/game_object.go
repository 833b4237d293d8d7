// Package game_object defines placed scene entities: imported meshes with a world transform
// and an optional attached light.
package game_object

import (
	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/light"
)

type gameObject struct {
	id     uint64
	name   string
	meshes []common.ImportedMesh

	position [3]float32
	rotation [3]float32
	scale    [3]float32

	attachedLight light.Light
	meshIndices   []uint32
}

// GameObject is one placed entity of the scene. Its meshes are copied into the scene's
// static geometry when it is added, so its transform is fixed from that point on.
type GameObject interface {
	// ID returns the object's unique identifier, zero until the scene assigns one.
	//
	// Returns:
	//   - uint64: the object ID
	ID() uint64

	// SetID sets the object's unique identifier.
	//
	// Parameters:
	//   - id: the ID to assign
	SetID(id uint64)

	// Name returns the object's label used in logs.
	Name() string

	// Meshes returns the object's source meshes in object space.
	//
	// Returns:
	//   - []common.ImportedMesh: the meshes, which must not be modified
	Meshes() []common.ImportedMesh

	// Position returns the object's world position.
	Position() [3]float32

	// Rotation returns the object's Euler rotation in radians.
	Rotation() [3]float32

	// Scale returns the object's scale factors.
	Scale() [3]float32

	// Transform builds the object-to-world matrix from position, rotation and scale.
	//
	// Returns:
	//   - [16]float32: the column-major model matrix
	Transform() [16]float32

	// WorldMeshes returns the meshes with the object transform composed onto each mesh's own
	// transform, ready for the geometry arena.
	//
	// Returns:
	//   - []common.ImportedMesh: copies of the meshes with world transforms
	WorldMeshes() []common.ImportedMesh

	// Light returns the attached light, or nil.
	//
	// Returns:
	//   - light.Light: the attached light or nil
	Light() light.Light

	// SetLight attaches a light. The scene moves the light to the object's position when the
	// object is added. Pass nil to detach.
	//
	// Parameters:
	//   - l: the light to attach, or nil
	SetLight(l light.Light)

	// MeshIndices returns the scene mesh indices assigned to the object's meshes.
	//
	// Returns:
	//   - []uint32: one mesh index per source mesh, empty before the object is added
	MeshIndices() []uint32

	// SetMeshIndices records the scene mesh indices of the object's meshes.
	//
	// Parameters:
	//   - indices: one mesh index per source mesh
	SetMeshIndices(indices []uint32)
}

var _ GameObject = &gameObject{}

// NewGameObject creates a new GameObject configured with the given options.
//
// Parameters:
//   - options: functional options to configure the object
//
// Returns:
//   - GameObject: the newly created object
func NewGameObject(options ...GameObjectBuilderOption) GameObject {
	obj := &gameObject{
		scale: [3]float32{1, 1, 1},
	}
	for _, option := range options {
		option(obj)
	}
	return obj
}

func (g *gameObject) ID() uint64                    { return g.id }
func (g *gameObject) SetID(id uint64)               { g.id = id }
func (g *gameObject) Name() string                  { return g.name }
func (g *gameObject) Meshes() []common.ImportedMesh { return g.meshes }
func (g *gameObject) Position() [3]float32          { return g.position }
func (g *gameObject) Rotation() [3]float32          { return g.rotation }
func (g *gameObject) Scale() [3]float32             { return g.scale }
func (g *gameObject) Light() light.Light            { return g.attachedLight }
func (g *gameObject) SetLight(l light.Light)        { g.attachedLight = l }
func (g *gameObject) MeshIndices() []uint32         { return g.meshIndices }

func (g *gameObject) SetMeshIndices(indices []uint32) {
	g.meshIndices = indices
}

func (g *gameObject) Transform() [16]float32 {
	var m [16]float32
	common.BuildModelMatrix(m[:], g.position, g.rotation, g.scale)
	return m
}

func (g *gameObject) WorldMeshes() []common.ImportedMesh {
	model := g.Transform()
	out := make([]common.ImportedMesh, len(g.meshes))
	for i, m := range g.meshes {
		out[i] = m
		if m.Transform == ([16]float32{}) {
			out[i].Transform = model
			continue
		}
		common.Mul4(out[i].Transform[:], model[:], m.Transform[:])
	}
	return out
}

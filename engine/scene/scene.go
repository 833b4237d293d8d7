// Package scene holds the static scene: placed objects, lights, the main camera and the optional
// shadow-casting directional light. A Scene is the frame orchestrator's SceneSource.
package scene

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/config"
	"github.com/Carmen-Shannon/oxy-cull/engine/camera"
	"github.com/Carmen-Shannon/oxy-cull/engine/cluster"
	"github.com/Carmen-Shannon/oxy-cull/engine/culling"
	"github.com/Carmen-Shannon/oxy-cull/engine/frame"
	"github.com/Carmen-Shannon/oxy-cull/engine/game_object"
	"github.com/Carmen-Shannon/oxy-cull/engine/light"
	"github.com/Carmen-Shannon/oxy-cull/engine/mesh"
)

// ErrSealed is returned when objects are added after the geometry was handed to the renderer.
var ErrSealed = errors.New("scene geometry is sealed")

// Scene manages the placed objects, lights and cameras of one level. Geometry is static:
// objects may only be added until Geometry() is first called, which seals the arena.
// Thread-safe for concurrent access.
type Scene interface {
	frame.SceneSource

	// Name returns the scene's identifier.
	Name() string

	// MainCamera returns the camera that drives view 0.
	MainCamera() camera.Camera

	// SetMainCamera replaces the main camera.
	//
	// Parameters:
	//   - cam: the new camera
	SetMainCamera(cam camera.Camera)

	// SetViewport sets the camera view's render target size, used by the small-triangle test,
	// and updates the camera aspect ratio.
	//
	// Parameters:
	//   - width, height: the render target size in pixels
	SetViewport(width, height int)

	// Add places an object's meshes into the static geometry and assigns the object an ID.
	// An attached light is moved to the object's position and added to the scene.
	//
	// Parameters:
	//   - obj: the object to add
	//
	// Returns:
	//   - uint64: the object ID
	//   - error: ErrSealed after Geometry() was called, or a mesh validation error
	Add(obj game_object.GameObject) (uint64, error)

	// Get returns the object with the given ID, or nil.
	Get(id uint64) game_object.GameObject

	// Count returns the number of objects in the scene.
	Count() int

	// AddLight adds a light. Lights may change every frame.
	//
	// Parameters:
	//   - l: the light to add
	AddLight(l light.Light)

	// RemoveLight removes a light if present.
	//
	// Parameters:
	//   - l: the light to remove
	RemoveLight(l light.Light)

	// SetShadowLight selects the directional light that adds the shadow view. Pass nil to
	// render without a shadow view.
	//
	// Parameters:
	//   - l: a directional light, or nil
	//   - halfExtent: half the width of the shadow volume around the camera target
	//   - mapSize: the shadow map size in texels
	SetShadowLight(l light.Light, halfExtent float32, mapSize int)

	// ShadowLight returns the shadow-casting light, or nil.
	ShadowLight() light.Light

	// Update advances the main camera from its controller. Call once per frame before rendering.
	Update()
}

type scene struct {
	mu sync.RWMutex

	name string
	cam  camera.Camera

	geom           *mesh.Geometry
	sealed         bool
	clusterOptions []cluster.BuildOption

	objects map[uint64]game_object.GameObject
	nextID  uint64

	lights []light.Light

	shadowLight  light.Light
	shadowExtent float32
	shadowSize   int

	width, height int
}

var _ Scene = &scene{}

// NewScene creates a scene with a default camera and a 1280x720 viewport, then applies options.
//
// Parameters:
//   - name: the scene identifier
//   - options: functional options to configure the scene
//
// Returns:
//   - Scene: the scene
//   - error: an error if an initial object cannot be added
func NewScene(name string, options ...SceneBuilderOption) (Scene, error) {
	s := &scene{
		name:       name,
		geom:       mesh.NewGeometry(),
		objects:    make(map[uint64]game_object.GameObject),
		nextID:     1,
		shadowSize: light.DefaultShadowMapSize,
		width:      1280,
		height:     720,
	}
	b := &sceneBuild{}
	for _, option := range options {
		option(s, b)
	}
	if s.cam == nil {
		s.cam = camera.NewCamera(camera.WithController(camera.NewOrbitController()))
	}
	s.cam.SetAspect(float32(s.width) / float32(s.height))

	for _, obj := range b.objects {
		if _, err := s.Add(obj); err != nil {
			return nil, err
		}
	}
	common.Logger().Debug("scene created",
		slog.String("scene", name),
		slog.Int("objects", len(s.objects)),
		slog.Int("lights", len(s.lights)))
	return s, nil
}

func (s *scene) Name() string {
	return s.name
}

func (s *scene) MainCamera() camera.Camera {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cam
}

func (s *scene) SetMainCamera(cam camera.Camera) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cam.SetAspect(float32(s.width) / float32(s.height))
	s.cam = cam
}

func (s *scene) SetViewport(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width, s.height = width, height
	s.cam.SetAspect(float32(width) / float32(height))
}

func (s *scene) Add(obj game_object.GameObject) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return 0, ErrSealed
	}

	opts := []mesh.MeshBuilderOption{}
	if len(s.clusterOptions) > 0 {
		opts = append(opts, mesh.WithClusterOptions(s.clusterOptions...))
	}
	world := obj.WorldMeshes()
	indices := make([]uint32, 0, len(world))
	for _, m := range world {
		added, err := s.geom.AddMesh(m, opts...)
		if err != nil {
			return 0, fmt.Errorf("add object %q: %w", obj.Name(), err)
		}
		indices = append(indices, added.Index())
	}

	if obj.ID() == 0 {
		obj.SetID(s.nextID)
	}
	s.nextID = max(s.nextID, obj.ID()) + 1
	obj.SetMeshIndices(indices)
	s.objects[obj.ID()] = obj

	if l := obj.Light(); l != nil {
		p := obj.Position()
		l.SetPosition(p[0], p[1], p[2])
		s.lights = append(s.lights, l)
	}
	return obj.ID(), nil
}

func (s *scene) Get(id uint64) game_object.GameObject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.objects[id]
}

func (s *scene) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

func (s *scene) AddLight(l light.Light) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lights = append(s.lights, l)
}

func (s *scene) RemoveLight(l light.Light) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.lights {
		if existing == l {
			s.lights = append(s.lights[:i], s.lights[i+1:]...)
			return
		}
	}
}

func (s *scene) SetShadowLight(l light.Light, halfExtent float32, mapSize int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shadowLight = l
	s.shadowExtent = halfExtent
	if mapSize > 0 {
		s.shadowSize = mapSize
	}
}

func (s *scene) ShadowLight() light.Light {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shadowLight
}

func (s *scene) Update() {
	s.MainCamera().Update()
}

// Geometry seals the scene and returns its static geometry.
func (s *scene) Geometry() *mesh.Geometry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.sealed {
		s.sealed = true
		common.Logger().Info("scene geometry sealed",
			slog.String("scene", s.name),
			slog.Int("meshes", len(s.geom.Meshes())),
			slog.Int("clusters", s.geom.ClusterCount()),
			slog.Int("triangles", s.geom.TriangleCount()))
	}
	return s.geom
}

// Views returns the camera view and, when a shadow light is set and enabled, the shadow view
// centered on the camera's orbit target.
func (s *scene) Views() []culling.View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	views := make([]culling.View, 0, config.MaxViews)
	views = append(views, culling.NewCameraView(s.cam.ViewProjectionMatrix(), s.cam.Eye(), float32(s.width), float32(s.height)))

	if s.shadowLight != nil && s.shadowLight.Enabled() && s.shadowLight.Type() == light.LightTypeDirectional {
		var center [3]float32
		if ctrl := s.cam.Controller(); ctrl != nil {
			center = ctrl.Target()
		}
		vol := light.NewShadowVolume(s.shadowLight, center, s.shadowExtent)
		views = append(views, culling.NewShadowView(vol.ViewProj(), vol.Eye(), float32(s.shadowSize)))
	}
	return views
}

func (s *scene) Camera() (view, proj [16]float32, near float32) {
	cam := s.MainCamera()
	return cam.ViewMatrix(), cam.ProjectionMatrix(), cam.Near()
}

// Lights returns a snapshot of the scene's lights.
func (s *scene) Lights() []light.Light {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]light.Light, len(s.lights))
	copy(out, s.lights)
	return out
}

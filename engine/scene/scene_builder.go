package scene

import (
	"github.com/Carmen-Shannon/oxy-cull/engine/camera"
	"github.com/Carmen-Shannon/oxy-cull/engine/cluster"
	"github.com/Carmen-Shannon/oxy-cull/engine/game_object"
	"github.com/Carmen-Shannon/oxy-cull/engine/light"
)

// sceneBuild collects builder inputs that are applied after the scene is configured.
type sceneBuild struct {
	objects []game_object.GameObject
}

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene, b *sceneBuild)

// WithCamera sets the main camera.
//
// Parameters:
//   - cam: the camera driving view 0
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithCamera(cam camera.Camera) SceneBuilderOption {
	return func(s *scene, _ *sceneBuild) {
		s.cam = cam
	}
}

// WithViewport sets the initial render target size.
//
// Parameters:
//   - width, height: the size in pixels; non-positive values are ignored
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithViewport(width, height int) SceneBuilderOption {
	return func(s *scene, _ *sceneBuild) {
		if width > 0 && height > 0 {
			s.width, s.height = width, height
		}
	}
}

// WithObjects adds initial objects to the scene once every other option is applied.
// Objects without IDs are assigned new IDs.
//
// Parameters:
//   - objects: the objects to add
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithObjects(objects ...game_object.GameObject) SceneBuilderOption {
	return func(_ *scene, b *sceneBuild) {
		b.objects = append(b.objects, objects...)
	}
}

// WithLights adds initial lights.
func WithLights(lights ...light.Light) SceneBuilderOption {
	return func(s *scene, _ *sceneBuild) {
		s.lights = append(s.lights, lights...)
	}
}

// WithShadowLight selects the directional light of the shadow view.
//
// Parameters:
//   - l: the directional light
//   - halfExtent: half the width of the shadow volume; zero selects the light package default
//   - mapSize: the shadow map size in texels; zero keeps the default
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithShadowLight(l light.Light, halfExtent float32, mapSize int) SceneBuilderOption {
	return func(s *scene, _ *sceneBuild) {
		s.shadowLight = l
		s.shadowExtent = halfExtent
		if mapSize > 0 {
			s.shadowSize = mapSize
		}
	}
}

// WithClusterTriangleCount overrides the cluster size used when objects are added.
//
// Parameters:
//   - n: triangles per cluster
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithClusterTriangleCount(n uint32) SceneBuilderOption {
	return func(s *scene, _ *sceneBuild) {
		s.clusterOptions = append(s.clusterOptions, cluster.WithTriangleCount(n))
	}
}

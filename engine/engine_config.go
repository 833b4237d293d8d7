package engine

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/config"
	"github.com/Carmen-Shannon/oxy-cull/engine/camera"
	"github.com/Carmen-Shannon/oxy-cull/engine/frame"
	"github.com/Carmen-Shannon/oxy-cull/engine/game_object"
	"github.com/Carmen-Shannon/oxy-cull/engine/light"
	"github.com/Carmen-Shannon/oxy-cull/engine/loader"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer"
	"github.com/Carmen-Shannon/oxy-cull/engine/scene"
	"github.com/Carmen-Shannon/oxy-cull/engine/window"
	"github.com/chewxy/math32"
)

// gridSpacing is the distance between neighbouring objects of the procedural grid.
const gridSpacing = 4

// proceduralShapes are cycled through the grid. Every fourth object is alpha-tested and every
// sixth is two-sided, so both geometry sets and the cone-test exemption are populated.
var proceduralShapes = []loader.Shape{
	{Kind: loader.ShapeBox, Size: [3]float32{2, 2, 2}, Round: 0.2},
	loader.Sphere(1.2),
	loader.Cylinder(2.5, 0.8),
}

// NewFromConfig builds the window, renderer, scene and engine described by cfg. The wgpu backend
// opens a window; the software backend runs headless.
//
// Parameters:
//   - cfg: a validated configuration
//   - options: extra engine options applied after the configured ones
//
// Returns:
//   - Engine: the engine
//   - error: an error if any part cannot be created
func NewFromConfig(cfg config.Config, options ...EngineBuilderOption) (Engine, error) {
	mode, err := frame.ParseRenderMode(cfg.Renderer.RenderMode)
	if err != nil {
		return nil, err
	}
	s, err := BuildScene(cfg, loader.NewLoader(loader.BackendTypeGLTF))
	if err != nil {
		return nil, err
	}

	present := renderer.PresentModeVSync
	if cfg.Renderer.PresentMode == "uncapped" {
		present = renderer.PresentModeUncapped
	}

	var (
		win window.Window
		r   renderer.Renderer
	)
	switch cfg.Renderer.Backend {
	case "wgpu":
		win, err = window.NewWindow(
			window.WithTitle(cfg.Window.Title),
			window.WithSize(cfg.Window.Width, cfg.Window.Height),
		)
		if err != nil {
			return nil, fmt.Errorf("create window: %w", err)
		}
		r, err = renderer.NewRenderer(renderer.BackendTypeWGPU,
			renderer.WithSurface(win),
			renderer.WithPresentMode(present),
			renderer.WithShadowMapSize(cfg.Shadow.MapSize),
		)
	default:
		r, err = renderer.NewRenderer(renderer.BackendTypeSoftware,
			renderer.WithSize(cfg.Window.Width, cfg.Window.Height),
			renderer.WithWorkers(cfg.Renderer.Workers),
			renderer.WithShadowMapSize(cfg.Shadow.MapSize),
		)
	}
	if err != nil {
		if win != nil {
			_ = win.Close()
		}
		return nil, fmt.Errorf("create renderer: %w", err)
	}

	opts := []EngineBuilderOption{
		WithOrchestratorOptions(
			frame.WithRenderMode(mode),
			frame.WithAsyncCompute(cfg.Renderer.AsyncCompute),
			frame.WithClipMaskTest(cfg.Renderer.ClipMaskPreFilter),
			frame.WithClusterSort(cfg.Renderer.ClusterSort),
		),
	}
	if win != nil {
		opts = append(opts, WithWindow(win))
	}
	e, err := NewEngine(r, s, append(opts, options...)...)
	if err != nil {
		r.Release()
		if win != nil {
			_ = win.Close()
		}
		return nil, err
	}
	return e, nil
}

// BuildScene creates the scene described by cfg: the camera, the glTF model or the procedural
// grid, the point lights and the shadow-casting directional light.
//
// Parameters:
//   - cfg: a validated configuration
//   - ld: the loader used for the glTF file and the procedural shapes
//
// Returns:
//   - scene.Scene: the populated, unsealed scene
//   - error: an error if the model cannot be loaded or placed
func BuildScene(cfg config.Config, ld loader.Loader) (scene.Scene, error) {
	ctrl := camera.NewOrbitController(camera.WithEye(cfg.Camera.Position, cfg.Camera.Target))
	cam := camera.NewCamera(
		camera.WithFov(cfg.Camera.FovY*math32.Pi/180),
		camera.WithDepthRange(cfg.Camera.Near, cfg.Camera.Far),
		camera.WithController(ctrl),
	)

	var (
		objects []game_object.GameObject
		name    string
		extent  float32
		err     error
	)
	if cfg.Scene.GLTF != "" {
		objects, extent, err = gltfObjects(ld, cfg.Scene.GLTF)
		name = cfg.Scene.GLTF
	} else {
		objects, extent, err = proceduralObjects(ld, cfg.Scene.Procedural)
		name = fmt.Sprintf("procedural-%dx%d", cfg.Scene.Procedural, cfg.Scene.Procedural)
	}
	if err != nil {
		return nil, err
	}

	options := []scene.SceneBuilderOption{
		scene.WithCamera(cam),
		scene.WithViewport(cfg.Window.Width, cfg.Window.Height),
		scene.WithObjects(objects...),
		scene.WithLights(pointLights(cfg.Scene.Lights, extent)...),
	}
	if cfg.Shadow.Enabled {
		d := cfg.Shadow.Direction
		sun := light.NewLight(light.LightTypeDirectional,
			light.WithDirection(d[0], d[1], d[2]),
			light.WithCastsShadows(true),
		)
		options = append(options, scene.WithShadowLight(sun, cfg.Shadow.Extent, cfg.Shadow.MapSize))
	}
	return scene.NewScene(name, options...)
}

// gltfObjects places a loaded model at the origin.
func gltfObjects(ld loader.Loader, path string) ([]game_object.GameObject, float32, error) {
	m, err := ld.Load(path)
	if err != nil {
		return nil, 0, err
	}
	obj := game_object.NewGameObject(
		game_object.WithName(m.Name()),
		game_object.WithMeshes(m.Meshes()...),
	)
	return []game_object.GameObject{obj}, max(m.BoundingRadius(), 1), nil
}

// proceduralObjects lays out n x n procedural shapes on the XZ plane above a ground slab.
func proceduralObjects(ld loader.Loader, n int) ([]game_object.GameObject, float32, error) {
	n = max(n, 1)
	extent := float32(n) * gridSpacing

	// A unit cube scaled flat; marching cubes would miss a slab thinner than one cell.
	ground, err := ld.Procedural(loader.Box(1, 1, 1))
	if err != nil {
		return nil, 0, err
	}
	thickness := extent / 24
	objects := []game_object.GameObject{game_object.NewGameObject(
		game_object.WithName("ground"),
		game_object.WithMeshes(ground.Meshes()...),
		game_object.WithPosition(0, -1.5-thickness/2, 0),
		game_object.WithScale(extent, thickness, extent),
	)}

	origin := -float32(n-1) * gridSpacing / 2
	for i := range n * n {
		shape := proceduralShapes[i%len(proceduralShapes)]
		shape.AlphaTested = i%4 == 3
		shape.TwoSided = i%6 == 5
		m, err := ld.Procedural(shape)
		if err != nil {
			return nil, 0, err
		}

		var rx float32
		if shape.Kind == loader.ShapeCylinder {
			rx = -math32.Pi / 2
		}
		x, z := origin+float32(i%n)*gridSpacing, origin+float32(i/n)*gridSpacing
		objects = append(objects, game_object.NewGameObject(
			game_object.WithName(fmt.Sprintf("%s-%d", shape.Kind, i)),
			game_object.WithMeshes(m.Meshes()...),
			game_object.WithPosition(x, 0, z),
			game_object.WithRotation(rx, float32(i)*0.37, 0),
		))
	}
	return objects, extent / 2, nil
}

// pointLights scatters count lights on a golden-angle spiral covering a disc of the given radius.
func pointLights(count int, radius float32) []light.Light {
	const goldenAngle = 2.39996323
	lights := make([]light.Light, 0, count)
	for i := range count {
		t := (float32(i) + 0.5) / float32(count)
		r := radius * math32.Sqrt(t)
		a := float32(i) * goldenAngle
		hue := float32(i) / float32(count) * 2 * math32.Pi
		lights = append(lights, light.NewLight(light.LightTypePoint,
			light.WithPosition(r*math32.Cos(a), 1.5+2*t, r*math32.Sin(a)),
			light.WithColor(hueChannel(hue), hueChannel(hue-2*math32.Pi/3), hueChannel(hue+2*math32.Pi/3)),
			light.WithRange(gridSpacing*1.5),
			light.WithIntensity(4),
		))
	}
	common.Logger().Debug("placed point lights", "count", count, "radius", radius)
	return lights
}

func hueChannel(a float32) float32 {
	return 0.5 + 0.5*math32.Cos(a)
}

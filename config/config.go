package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Render mode names accepted by renderer.render_mode.
const (
	RenderModeVisibility = "visibility"
	RenderModeDeferred   = "deferred"
)

// Config is the runtime configuration of the engine. Zero values are replaced by Default().
type Config struct {
	Renderer RendererConfig `toml:"renderer"`
	Window   WindowConfig   `toml:"window"`
	Camera   CameraConfig   `toml:"camera"`
	Shadow   ShadowConfig   `toml:"shadow"`
	Scene    SceneConfig    `toml:"scene"`
	Log      LogConfig      `toml:"log"`
}

// RendererConfig selects the backend and the per-frame pipeline behaviour.
type RendererConfig struct {
	// Backend is "wgpu" or "software".
	Backend string `toml:"backend"`
	// PresentMode is "vsync" or "uncapped".
	PresentMode string `toml:"present_mode"`
	// RenderMode is "visibility" or "deferred".
	RenderMode string `toml:"render_mode"`
	// AsyncCompute records filtering and light clustering on the compute queue.
	AsyncCompute bool `toml:"async_compute"`
	// ClipMaskPreFilter enables the clip-mask test on cluster bounds during pre-filtering.
	ClipMaskPreFilter bool `toml:"clip_mask_prefilter"`
	// ClusterSort sorts surviving clusters front to back within each mesh.
	ClusterSort bool `toml:"cluster_sort"`
	// Workers is the size of the software backend worker pool. Zero means one per CPU.
	Workers int `toml:"workers"`
}

// WindowConfig describes the output surface.
type WindowConfig struct {
	Title  string `toml:"title"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
}

// CameraConfig places the main camera.
type CameraConfig struct {
	Position [3]float32 `toml:"position"`
	Target   [3]float32 `toml:"target"`
	FovY     float32    `toml:"fov_y_degrees"`
	Near     float32    `toml:"near"`
	Far      float32    `toml:"far"`
}

// ShadowConfig describes the shadow-casting directional light view.
type ShadowConfig struct {
	Enabled   bool       `toml:"enabled"`
	Direction [3]float32 `toml:"direction"`
	Extent    float32    `toml:"extent"`
	MapSize   int        `toml:"map_size"`
}

// SceneConfig selects the scene source.
type SceneConfig struct {
	// GLTF is a path to a .gltf or .glb file. When empty a procedural scene is generated.
	GLTF string `toml:"gltf"`
	// Procedural is the number of procedural objects per axis of the generated grid.
	Procedural int `toml:"procedural"`
	// Lights is the number of procedural point lights.
	Lights int `toml:"lights"`
}

// LogConfig controls the slog handler installed by the CLI.
type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the configuration used when no file is given.
//
// Returns:
//   - Config: the default configuration
func Default() Config {
	return Config{
		Renderer: RendererConfig{
			Backend:           "wgpu",
			PresentMode:       "vsync",
			RenderMode:        RenderModeVisibility,
			AsyncCompute:      true,
			ClipMaskPreFilter: true,
		},
		Window: WindowConfig{Title: "oxy-cull", Width: 1280, Height: 720},
		Camera: CameraConfig{
			Position: [3]float32{0, 8, 30},
			Target:   [3]float32{0, 0, 0},
			FovY:     60,
			Near:     0.1,
			Far:      500,
		},
		Shadow: ShadowConfig{
			Enabled:   true,
			Direction: [3]float32{-0.4, -1, -0.3},
			Extent:    60,
			MapSize:   2048,
		},
		Scene: SceneConfig{Procedural: 8, Lights: 64},
		Log:   LogConfig{Level: "info"},
	}
}

// Load reads and validates a TOML configuration file. Fields missing from the file keep
// their default values.
//
// Parameters:
//   - path: the file to read
//
// Returns:
//   - Config: the loaded configuration
//   - error: an error if the file cannot be read, decoded or validated
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads a TOML configuration from r on top of Default(). Unknown keys are rejected.
//
// Parameters:
//   - r: the TOML source
//
// Returns:
//   - Config: the decoded configuration
//   - error: an error if decoding or validation fails
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(r).DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, fmt.Errorf("decode config: %s", strict.String())
		}
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enumerated values and ranges.
//
// Returns:
//   - error: the first invalid field found, or nil
func (c Config) Validate() error {
	switch c.Renderer.Backend {
	case "wgpu", "software":
	default:
		return fmt.Errorf("renderer.backend: unknown backend %q", c.Renderer.Backend)
	}
	switch c.Renderer.PresentMode {
	case "vsync", "uncapped":
	default:
		return fmt.Errorf("renderer.present_mode: unknown mode %q", c.Renderer.PresentMode)
	}
	switch c.Renderer.RenderMode {
	case RenderModeVisibility, RenderModeDeferred:
	default:
		return fmt.Errorf("renderer.render_mode: unknown mode %q", c.Renderer.RenderMode)
	}
	if c.Renderer.Workers < 0 {
		return errors.New("renderer.workers: must not be negative")
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("window: invalid size %dx%d", c.Window.Width, c.Window.Height)
	}
	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		return fmt.Errorf("camera: invalid depth range [%v, %v]", c.Camera.Near, c.Camera.Far)
	}
	if c.Camera.FovY <= 0 || c.Camera.FovY >= 180 {
		return fmt.Errorf("camera.fov_y_degrees: %v out of range", c.Camera.FovY)
	}
	if c.Scene.Lights > MaxLights {
		return fmt.Errorf("scene.lights: %d exceeds %d: %w", c.Scene.Lights, MaxLights, ErrCapacity)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// ParseLevel converts a level name into a slog.Level.
//
// Parameters:
//   - s: one of debug, info, warn, error (case-insensitive)
//
// Returns:
//   - slog.Level: the parsed level
//   - error: an error if the name is unknown
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}

package engine

import (
	"context"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-cull/config"
	"github.com/Carmen-Shannon/oxy-cull/engine/frame"
	"github.com/Carmen-Shannon/oxy-cull/engine/loader"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer"
	"github.com/Carmen-Shannon/oxy-cull/engine/window"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Renderer.Backend = "software"
	cfg.Renderer.Workers = 2
	cfg.Window.Width, cfg.Window.Height = 320, 180
	cfg.Scene.Procedural = 2
	cfg.Scene.Lights = 4
	cfg.Shadow.MapSize = 256
	return cfg
}

func newTestEngine(t *testing.T, options ...EngineBuilderOption) *engine {
	t.Helper()
	cfg := testConfig()
	s, err := BuildScene(cfg, loader.NewLoader(loader.BackendTypeGLTF, loader.WithMeshCells(12)))
	require.NoError(t, err)

	r, err := renderer.NewRenderer(renderer.BackendTypeSoftware,
		renderer.WithSize(cfg.Window.Width, cfg.Window.Height),
		renderer.WithWorkers(2))
	require.NoError(t, err)

	e, err := NewEngine(r, s, options...)
	require.NoError(t, err)
	t.Cleanup(e.Release)
	return e.(*engine)
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestBuildScene_Procedural(t *testing.T) {
	cfg := testConfig()
	s, err := BuildScene(cfg, loader.NewLoader(loader.BackendTypeGLTF, loader.WithMeshCells(12)))
	require.NoError(t, err)

	assert.Equal(t, "procedural-2x2", s.Name())
	assert.Equal(t, 5, s.Count(), "ground plus a 2x2 grid")
	assert.Len(t, s.Lights(), 4)
	require.NotNil(t, s.ShadowLight())
	assert.Len(t, s.Views(), 2, "camera and shadow view")

	cfg.Shadow.Enabled = false
	s, err = BuildScene(cfg, loader.NewLoader(loader.BackendTypeGLTF, loader.WithMeshCells(12)))
	require.NoError(t, err)
	assert.Len(t, s.Views(), 1)
}

func TestBuildScene_MissingModel(t *testing.T) {
	cfg := testConfig()
	cfg.Scene.GLTF = "does-not-exist.glb"
	_, err := BuildScene(cfg, loader.NewLoader(loader.BackendTypeGLTF))
	assert.Error(t, err)
}

func TestNewEngine_RequiresRendererAndScene(t *testing.T) {
	_, err := NewEngine(nil, nil)
	assert.Error(t, err)
}

func TestEngine_RunFrames(t *testing.T) {
	e := newTestEngine(t, WithStatsInterval(1))

	sum, err := e.RunFrames(testContext(t), config.FramesInFlight+2)
	require.NoError(t, err)
	assert.Equal(t, config.FramesInFlight+2, sum.Frames)
	assert.Zero(t, sum.Aborted)
	assert.Equal(t, sum.Frames, sum.Sampled)
	assert.Positive(t, sum.Survivors)
	assert.Positive(t, sum.Triangles)
	assert.Positive(t, sum.MeanTriangles())
}

func TestEngine_RenderCallback(t *testing.T) {
	e := newTestEngine(t, WithStatsInterval(0))
	calls := 0
	e.SetRenderCallback(func(float32) { calls++ })

	sum, err := e.RunFrames(testContext(t), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Zero(t, sum.Sampled, "read back disabled")
}

func TestEngine_RunHeadless(t *testing.T) {
	e := newTestEngine(t, WithMaxFrames(3), WithStatsInterval(0))
	require.NoError(t, e.Run(testContext(t)))
	assert.Equal(t, 3, e.Profiler().Total().Frames)
}

func TestEngine_QuitBeforeRun(t *testing.T) {
	e := newTestEngine(t)
	e.Quit()
	e.Quit()
	require.NoError(t, e.Run(testContext(t)))
	assert.Zero(t, e.Profiler().Total().Frames)
}

func TestEngine_RunStopsOnCancel(t *testing.T) {
	e := newTestEngine(t, WithStatsInterval(0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, e.Run(ctx))
}

func TestEngine_KeyBindings(t *testing.T) {
	e := newTestEngine(t)
	orch := e.Orchestrator()
	require.Equal(t, frame.RenderModeVisibilityBuffer, orch.RenderMode())

	e.handleKey(window.KeyM)
	assert.Equal(t, frame.RenderModeDeferred, orch.RenderMode())
	e.handleKey(window.KeyM)
	assert.Equal(t, frame.RenderModeVisibilityBuffer, orch.RenderMode())

	async := orch.AsyncCompute()
	e.handleKey(window.KeyC)
	assert.Equal(t, !async, orch.AsyncCompute())

	assert.False(t, e.ProfilingEnabled())
	e.handleKey(window.KeyP)
	assert.True(t, e.ProfilingEnabled())
	e.handleKey(window.KeyP)
	assert.False(t, e.ProfilingEnabled())

	ctrl := e.Scene().MainCamera().Controller()
	az := ctrl.Azimuth()
	e.handleKey(window.KeyRight)
	assert.Greater(t, ctrl.Azimuth(), az)
}

func TestEngine_ScrollZooms(t *testing.T) {
	e := newTestEngine(t)
	ctrl := e.Scene().MainCamera().Controller()
	r := ctrl.Radius()
	e.handleScroll(1)
	assert.Less(t, ctrl.Radius(), r)
}

func TestEngine_ResizeUpdatesAspect(t *testing.T) {
	e := newTestEngine(t)
	e.handleResize(400, 100)
	assert.InDelta(t, 4, e.Scene().MainCamera().Aspect(), 1e-6)

	views := e.Scene().Views()
	assert.Equal(t, float32(400), views[0].Width)
	assert.Equal(t, float32(100), views[0].Height)
}

func TestEngine_SetTickRate(t *testing.T) {
	e := newTestEngine(t)
	e.SetTickRate(120)
	assert.Equal(t, time.Second/120, e.engineTickRate)
	e.SetTickRate(0)
	assert.Equal(t, time.Second/60, e.engineTickRate)

	e.SetRenderFrameLimit(50)
	assert.Equal(t, 20*time.Millisecond, e.renderFrameLimit)
	e.SetRenderFrameLimit(-1)
	assert.Zero(t, e.renderFrameLimit)
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/frame"
	"github.com/Carmen-Shannon/oxy-cull/engine/profiler"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer"
	"github.com/Carmen-Shannon/oxy-cull/engine/scene"
	"github.com/Carmen-Shannon/oxy-cull/engine/window"
)

// engine implements the Engine interface.
// Coordinates the tick, render and window threads around one scene and its frame orchestrator.
type engine struct {
	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	running atomic.Bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once
	closeOnce   sync.Once
	errMu       sync.Mutex
	err         error

	window   window.Window
	renderer renderer.Renderer
	scene    scene.Scene

	orchestrator        *frame.Orchestrator
	orchestratorOptions []frame.OrchestratorOption

	profiler         *profiler.Profiler
	profilingEnabled atomic.Bool
	statsInterval    int

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32)

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
	maxFrames        int           // frames rendered by a headless Run; 0 = until Quit
}

// Engine is the main entry point for the engine.
// It owns the render loop driving the frame orchestrator, the optional window and the input mapping.
type Engine interface {
	// Window returns the window, or nil for a headless engine.
	Window() window.Window

	// Renderer returns the renderer the frames are recorded with.
	Renderer() renderer.Renderer

	// Scene returns the rendered scene.
	Scene() scene.Scene

	// Orchestrator returns the frame orchestrator.
	Orchestrator() *frame.Orchestrator

	// Profiler returns the profiler every rendered frame is reported to.
	Profiler() *profiler.Profiler

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// ProfilingEnabled reports whether profiling output is enabled.
	ProfilingEnabled() bool

	// SetTickRate sets the engine tick rate in frames per second.
	//
	// Parameters:
	//   - fps: target frames per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each rendered frame.
	//
	// Parameters:
	//   - callback: function to call each render frame, receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Run starts the engine. With a window it blocks until the window closes, Quit is called or
	// ctx is done. Without a window the render loop runs on the calling goroutine until the
	// frame limit set with WithMaxFrames is reached, Quit is called or ctx is done.
	//
	// Parameters:
	//   - ctx: cancels the engine
	//
	// Returns:
	//   - error: the error that stopped the render loop, or nil on a clean shutdown
	Run(ctx context.Context) error

	// RunFrames renders n frames on the calling goroutine and returns the profiler totals.
	// Aborted frames are counted and do not stop the run.
	//
	// Parameters:
	//   - ctx: bounds the frame waits
	//   - n: the number of frames to render
	//
	// Returns:
	//   - profiler.Summary: the totals accumulated since the engine was created
	//   - error: a device or context error that stopped the run early
	RunFrames(ctx context.Context, n int) (profiler.Summary, error)

	// Quit signals all engine goroutines to stop.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()

	// Release waits for the GPU and frees the orchestrator and the renderer.
	Release()
}

var _ Engine = &engine{}

// NewEngine creates an Engine rendering s with r. The orchestrator registers its pipelines and
// uploads the scene geometry, which seals the scene.
//
// Parameters:
//   - r: the renderer
//   - s: the scene to render
//   - options: functional options for engine configuration (profiling, tick rate, window, etc.)
//
// Returns:
//   - Engine: the newly created engine
//   - error: an error if the orchestrator cannot be created
func NewEngine(r renderer.Renderer, s scene.Scene, options ...EngineBuilderOption) (Engine, error) {
	if r == nil || s == nil {
		return nil, errors.New("engine: renderer and scene are required")
	}
	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		renderer:        r,
		scene:           s,
		engineTickRate:  time.Second / 60,
		statsInterval:   defaultStatsInterval,
	}

	for _, opt := range options {
		opt(e)
	}
	if e.profiler == nil {
		e.profiler = profiler.NewProfiler()
	}

	orch, err := frame.NewOrchestrator(r, s, e.orchestratorOptions...)
	if err != nil {
		return nil, fmt.Errorf("create orchestrator: %w", err)
	}
	e.orchestrator = orch

	if e.window != nil {
		s.SetViewport(e.window.Width(), e.window.Height())
		e.bindWindow()
	}
	common.Logger().Info("engine created",
		"scene", s.Name(),
		"backend", r.BackendType(),
		"render_mode", orch.RenderMode(),
		"async_compute", orch.AsyncCompute(),
		"windowed", e.window != nil)
	return e, nil
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) Scene() scene.Scene {
	return e.scene
}

func (e *engine) Orchestrator() *frame.Orchestrator {
	return e.orchestrator
}

func (e *engine) Profiler() *profiler.Profiler {
	return e.profiler
}

func (e *engine) Run(ctx context.Context) error {
	e.running.Store(true)
	defer e.running.Store(false)

	if e.window == nil {
		return e.runHeadless(ctx)
	}

	e.handle(ctx)
	e.window.ProcessMessages()

	e.signalQuit()
	e.wg.Wait()
	e.closeWindow()
	return e.loopErr()
}

func (e *engine) RunFrames(ctx context.Context, n int) (profiler.Summary, error) {
	last := time.Now()
	for range n {
		now := time.Now()
		dt := float32(now.Sub(last).Seconds())
		last = now
		if err := e.renderOnce(ctx, dt); err != nil {
			return e.profiler.Total(), err
		}
	}
	return e.profiler.Total(), nil
}

// Quit signals all engine goroutines to stop and shuts down the engine.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

func (e *engine) Release() {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if err := e.renderer.WaitIdle(ctx); err != nil {
		common.Logger().Warn("wait idle before release", "error", err)
	}
	e.orchestrator.Release()
	e.renderer.Release()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

// closeWindow destroys the window once. It must be called on the window's thread.
func (e *engine) closeWindow() {
	e.closeOnce.Do(func() {
		if err := e.window.Close(); err != nil {
			common.Logger().Debug("close window", "error", err)
		}
	})
}

func (e *engine) setErr(err error) {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	if e.err == nil {
		e.err = err
	}
}

func (e *engine) loopErr() error {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	return e.err
}

// handle launches the engine, render, and quit goroutines.
// Each goroutine is tracked by the engine's WaitGroup.
func (e *engine) handle(ctx context.Context) {
	e.wg.Add(3)
	go e.handleEngine()
	go e.handleRender(ctx)
	go e.handleQuit(ctx)
}

// handleEngine runs the fixed-rate engine tick loop in its own goroutine.
// Fires the tick callback at the configured tick rate and listens for dynamic rate changes
// via tickRateChannel. Exits when the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender runs the uncapped (or frame-limited) render loop in its own goroutine.
// Recovers from panics to avoid crashing the process and signals quit on recovery.
func (e *engine) handleRender(ctx context.Context) {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			e.setErr(fmt.Errorf("render goroutine panic: %v", r))
			common.Logger().Error("render goroutine recovered from panic", "panic", r)
			e.signalQuit()
		}
	}()

	if err := e.renderLoop(ctx); err != nil && ctx.Err() == nil {
		e.setErr(err)
	}
	e.signalQuit()
}

// handleQuit blocks until the quit channel is closed or ctx is done, then decrements the WaitGroup.
func (e *engine) handleQuit(ctx context.Context) {
	defer e.wg.Done()
	select {
	case <-e.quitChannel:
	case <-ctx.Done():
		e.signalQuit()
	}
}

// runHeadless renders on the calling goroutine until maxFrames, Quit or ctx.
func (e *engine) runHeadless(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-e.quitChannel:
			cancel()
		case <-ctx.Done():
		}
	}()
	if err := e.renderLoop(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// renderLoop renders frames until quit, ctx or the frame limit.
func (e *engine) renderLoop(ctx context.Context) error {
	lastRender := time.Now()
	for frames := 0; e.maxFrames <= 0 || frames < e.maxFrames; frames++ {
		select {
		case <-e.quitChannel:
			return nil
		case <-ctx.Done():
			return nil
		default:
		}

		now := time.Now()
		dt := float32(now.Sub(lastRender).Seconds())
		lastRender = now

		if err := e.renderOnce(ctx, dt); err != nil {
			return err
		}

		// Frame rate limiting
		if e.renderFrameLimit > 0 {
			elapsed := time.Since(lastRender)
			if remaining := e.renderFrameLimit - elapsed; remaining > 0 {
				time.Sleep(remaining)
			}
		}
	}
	return nil
}

// renderOnce advances the scene, renders one frame and reports it to the profiler. Capacity
// aborts are absorbed; device and context errors are returned.
func (e *engine) renderOnce(ctx context.Context, dt float32) error {
	e.scene.Update()

	report, err := e.orchestrator.RenderFrame(ctx)
	var stats *frame.FrameStats
	if err == nil && e.statsInterval > 0 && report.Frame%uint64(e.statsInterval) == 0 {
		s, rerr := e.orchestrator.ReadStats(ctx, report.Index)
		if rerr != nil {
			common.Logger().Warn("read frame stats", "frame", report.Frame, "error", rerr)
		} else {
			stats = &s
		}
	}
	e.profiler.Observe(report, stats, err)
	if e.profilingEnabled.Load() {
		e.profiler.Tick()
	}

	if e.renderCallback != nil {
		e.renderCallback(dt)
	}

	if err != nil && fatal(err) {
		return err
	}
	return nil
}

// fatal reports whether a RenderFrame error stops the render loop.
func fatal(err error) bool {
	return errors.Is(err, renderer.ErrDeviceLost) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled.Store(true)
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled.Store(false)
}

func (e *engine) ProfilingEnabled() bool {
	return e.profilingEnabled.Load()
}

// SetTickRate sets the engine tick rate in frames per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	if e.running.Load() {
		// Non-blocking send - if channel is full, replace the pending value
		select {
		case e.tickRateChannel <- newRate:
		default:
			select {
			case <-e.tickRateChannel:
			default:
			}
			e.tickRateChannel <- newRate
		}
	} else {
		e.engineTickRate = newRate
	}
}

// SetTickCallback registers the function called each engine tick.
func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

// SetRenderCallback registers the function called each render frame.
func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}

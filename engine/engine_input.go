package engine

import (
	"fmt"
	"time"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/frame"
	"github.com/Carmen-Shannon/oxy-cull/engine/window"
)

const (
	// defaultStatsInterval reads back the GPU counters of every 30th frame.
	defaultStatsInterval = 30

	// releaseTimeout bounds the GPU idle wait in Release.
	releaseTimeout = 5 * time.Second

	// dragSteps is the number of orbit steps per dragged pixel.
	dragSteps = 0.2

	// keySteps is the number of orbit steps per arrow key press.
	keySteps = 2
)

// bindWindow routes window resizes and input to the renderer, the scene camera and the
// orchestrator toggles.
func (e *engine) bindWindow() {
	e.window.SetResizeCallback(e.handleResize)
	e.window.SetDragCallback(func(dx, dy float32) {
		e.orbit(-dx*dragSteps, dy*dragSteps)
	})
	e.window.SetScrollCallback(e.handleScroll)
	e.window.SetKeyDownCallback(e.handleKey)
	e.window.SetUpdateCallback(func() {
		select {
		case <-e.quitChannel:
			// The render goroutine owns the surface until it returns.
			e.wg.Wait()
			e.closeWindow()
		default:
		}
	})
	e.updateTitle()
}

func (e *engine) handleResize(width, height int) {
	e.renderer.Resize(width, height)
	e.scene.SetViewport(width, height)
}

func (e *engine) handleScroll(delta float32) {
	if ctrl := e.scene.MainCamera().Controller(); ctrl != nil {
		ctrl.Zoom(delta)
	}
}

func (e *engine) orbit(azimuthSteps, elevationSteps float32) {
	if ctrl := e.scene.MainCamera().Controller(); ctrl != nil {
		ctrl.Orbit(azimuthSteps, elevationSteps)
	}
}

// handleKey maps the key bindings:
//
//	M       - toggle visibility buffer / deferred shading
//	C       - toggle async compute
//	P       - toggle profiler output
//	Arrows  - orbit the camera
func (e *engine) handleKey(keyCode uint32) {
	switch keyCode {
	case window.KeyM:
		mode := frame.RenderModeDeferred
		if e.orchestrator.RenderMode() == frame.RenderModeDeferred {
			mode = frame.RenderModeVisibilityBuffer
		}
		e.orchestrator.SetRenderMode(mode)
		common.Logger().Info("render mode", "mode", mode)
	case window.KeyC:
		async := !e.orchestrator.AsyncCompute()
		e.orchestrator.SetAsyncCompute(async)
		common.Logger().Info("async compute", "enabled", async)
	case window.KeyP:
		if e.ProfilingEnabled() {
			e.DisableProfiler()
		} else {
			e.EnableProfiler()
		}
	case window.KeyLeft:
		e.orbit(-keySteps, 0)
	case window.KeyRight:
		e.orbit(keySteps, 0)
	case window.KeyUp:
		e.orbit(0, keySteps)
	case window.KeyDown:
		e.orbit(0, -keySteps)
	default:
		return
	}
	e.updateTitle()
}

func (e *engine) updateTitle() {
	if e.window == nil {
		return
	}
	e.window.SetTitle(fmt.Sprintf("%s [%s, async=%t]",
		e.scene.Name(), e.orchestrator.RenderMode(), e.orchestrator.AsyncCompute()))
}

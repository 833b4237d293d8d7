package frame

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-cull/config"
	"github.com/Carmen-Shannon/oxy-cull/engine/mesh"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer"
	bgp "github.com/Carmen-Shannon/oxy-cull/engine/renderer/bind_group_provider"
)

// RenderMode selects how the geometry pass stores surface data for shading.
type RenderMode int

const (
	// RenderModeVisibilityBuffer writes only (mesh, triangle) ids; shading rebuilds the
	// triangle from the camera's filtered stream.
	RenderModeVisibilityBuffer RenderMode = iota
	// RenderModeDeferred writes ids and world normals.
	RenderModeDeferred
)

// String returns the configuration name of the mode.
func (m RenderMode) String() string {
	switch m {
	case RenderModeVisibilityBuffer:
		return config.RenderModeVisibility
	case RenderModeDeferred:
		return config.RenderModeDeferred
	default:
		return "unknown"
	}
}

// ParseRenderMode maps a configuration name to a RenderMode.
//
// Parameters:
//   - name: "visibility" or "deferred"
//
// Returns:
//   - RenderMode: the mode
//   - error: an error for any other name
func ParseRenderMode(name string) (RenderMode, error) {
	switch name {
	case config.RenderModeVisibility:
		return RenderModeVisibilityBuffer, nil
	case config.RenderModeDeferred:
		return RenderModeDeferred, nil
	default:
		return 0, fmt.Errorf("unknown render mode %q", name)
	}
}

// passContext is what a render path needs to record one frame's passes.
type passContext struct {
	r     renderer.Renderer
	scene *SceneResources
	res   *FrameResources
}

// geometryPass names the pipeline each geometry set is drawn with in one pass.
type geometryPass [config.GeometrySetCount]string

var (
	visibilityPass = geometryPass{
		mesh.GeometrySetOpaque:      VisibilityPipelineKey,
		mesh.GeometrySetAlphaTested: VisibilityAlphaPipelineKey,
	}
	gbufferPass = geometryPass{
		mesh.GeometrySetOpaque:      GBufferPipelineKey,
		mesh.GeometrySetAlphaTested: GBufferAlphaPipelineKey,
	}
	shadowPass = geometryPass{
		mesh.GeometrySetOpaque:      ShadowPipelineKey,
		mesh.GeometrySetAlphaTested: ShadowAlphaPipelineKey,
	}
)

// drawView records the indirect draws of every geometry set of one view, each set with its
// own pipeline. index is the index buffer the draw records' firstIndex is relative to.
func (pc *passContext) drawView(list *renderer.CommandList, view int, index bgp.BufferSection, pass geometryPass) {
	list.SetBindGroup(GroupScene, pc.scene.Provider)
	list.SetBindGroup(GroupFrame, pc.res.Frame)
	list.SetIndexBuffer(index)
	for set := range config.GeometrySetCount {
		gs := mesh.GeometrySet(set)
		list.SetPipeline(pc.r.Pipeline(pass[gs]))
		list.DrawIndexedIndirect(pc.res.ArgsSection(gs, view), pc.res.CountSection(gs, view), config.MaxDrawsIndirect)
	}
}

// shade records a full-screen shade pass with the given pipeline.
func (pc *passContext) shade(list *renderer.CommandList, key string) {
	list.BeginRenderPass(renderer.RenderPassShade)
	list.SetPipeline(pc.r.Pipeline(key))
	list.SetPassInputs(GroupPassInputs)
	list.SetBindGroup(GroupFrame, pc.res.Frame)
	list.SetBindGroup(GroupLights, pc.res.Light)
	list.Draw(3)
	list.EndRenderPass()
}

// renderPath records the geometry and shade passes of one render mode.
type renderPath interface {
	RecordGeometryPass(list *renderer.CommandList, pc *passContext)
	RecordShadePass(list *renderer.CommandList, pc *passContext)
}

// visibilityPath rasterizes ids only and shades from them.
type visibilityPath struct{}

func (visibilityPath) RecordGeometryPass(list *renderer.CommandList, pc *passContext) {
	list.BeginRenderPass(renderer.RenderPassVisibility)
	pc.drawView(list, 0, pc.scene.IdentitySection(), visibilityPass)
	list.EndRenderPass()
}

func (visibilityPath) RecordShadePass(list *renderer.CommandList, pc *passContext) {
	pc.shade(list, ShadeVisibilityPipelineKey)
}

// deferredPath rasterizes ids and normals into the g-buffer.
type deferredPath struct{}

func (deferredPath) RecordGeometryPass(list *renderer.CommandList, pc *passContext) {
	list.BeginRenderPass(renderer.RenderPassGBuffer)
	pc.drawView(list, 0, pc.scene.IdentitySection(), gbufferPass)
	list.EndRenderPass()
}

func (deferredPath) RecordShadePass(list *renderer.CommandList, pc *passContext) {
	pc.shade(list, ShadeDeferredPipelineKey)
}

// pathFor returns the render path of a mode.
func pathFor(m RenderMode) renderPath {
	if m == RenderModeDeferred {
		return deferredPath{}
	}
	return visibilityPath{}
}

// recordShadowPass draws the shadow view's streams depth-only.
func recordShadowPass(list *renderer.CommandList, pc *passContext, shadowView int) {
	list.BeginRenderPass(renderer.RenderPassShadow)
	pc.drawView(list, shadowView, pc.res.IndexSection(shadowView), shadowPass)
	list.EndRenderPass()
}

package frame

import (
	_ "embed"
	"maps"

	"github.com/Carmen-Shannon/oxy-cull/engine/culling"
	"github.com/Carmen-Shannon/oxy-cull/engine/light"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// Render pipeline keys registered by this package.
const (
	ShadowPipelineKey          = "shadow"
	ShadowAlphaPipelineKey     = "shadow_alpha"
	VisibilityPipelineKey      = "visibility"
	VisibilityAlphaPipelineKey = "visibility_alpha"
	GBufferPipelineKey         = "gbuffer"
	GBufferAlphaPipelineKey    = "gbuffer_alpha"
	ShadeVisibilityPipelineKey = "shade_visibility"
	ShadeDeferredPipelineKey   = "shade_deferred"
)

// Bind group indices of the render passes.
const (
	// GroupScene holds positions, indices and mesh constants in geometry passes.
	GroupScene = 0
	// GroupPassInputs holds the render targets sampled by the shade passes.
	GroupPassInputs = 0
	// GroupFrame holds the frame constants.
	GroupFrame = 1
	// GroupLights holds the light buffer and grid in the shade passes.
	GroupLights = 2
)

// Bindings of the frame group.
const (
	BindingFrameConstants = 0
	// BindingCameraIndices is the camera's filtered stream, read by vertex pulling and by
	// the visibility shade pass.
	BindingCameraIndices  = 1
	BindingScenePositions = 2
	BindingSceneMeshes    = 3
)

// Shadow rasterization depth bias, in depth units and slope scale.
const (
	shadowDepthBias      = 2
	shadowDepthBiasSlope = 2.0
)

var (
	//go:embed assets/geometry_vertex.wgsl
	geometryVertexSource string

	//go:embed assets/fullscreen.wgsl
	fullscreenSource string

	//go:embed assets/pulled_vertex.wgsl
	pulledVertexSource string

	//go:embed assets/coverage_opaque.wgsl
	coverageOpaqueSource string

	//go:embed assets/coverage_alpha.wgsl
	coverageAlphaSource string

	//go:embed assets/shadow.wgsl
	shadowSource string

	//go:embed assets/shadow_alpha.wgsl
	shadowAlphaSource string

	//go:embed assets/visibility.wgsl
	visibilitySource string

	//go:embed assets/gbuffer.wgsl
	gbufferSource string

	//go:embed assets/shade_visibility.wgsl
	shadeVisibilitySource string

	//go:embed assets/shade_deferred.wgsl
	shadeDeferredSource string
)

// Includes returns every WGSL include the frame's compute and render pipelines are written against.
//
// Returns:
//   - map[string]string: include names mapped to WGSL sources
func Includes() map[string]string {
	out := culling.Includes()
	maps.Copy(out, light.Includes())
	out["geometry_vertex"] = geometryVertexSource
	out["pulled_vertex"] = pulledVertexSource
	out["coverage_opaque"] = coverageOpaqueSource
	out["coverage_alpha"] = coverageAlphaSource
	out["fullscreen"] = fullscreenSource
	return out
}

// NewPreProcessor returns a pre-processor that knows every include of Includes.
func NewPreProcessor() shader.PreProcessor {
	return shader.NewPreProcessor(Includes())
}

// withCoverage prepends the coverage include of a geometry set to a geometry pass source.
// The alpha-tested variant discards fragments of meshes whose alpha is below their cutoff.
func withCoverage(source string, alpha bool) string {
	if alpha {
		return "// @oxy:include coverage_alpha\n" + source
	}
	return "// @oxy:include coverage_opaque\n" + source
}

// renderShaders parses the vertex stage and, when fragment is set, the fragment stage of one source.
func renderShaders(key, source string, fragment bool, pp shader.PreProcessor) (shader.Shader, shader.Shader, error) {
	vs, err := shader.NewShader(key+"_vs", shader.ShaderTypeVertex, source, pp)
	if err != nil {
		return nil, nil, err
	}
	if !fragment {
		return vs, nil, nil
	}
	fs, err := shader.NewShader(key+"_fs", shader.ShaderTypeFragment, source, pp)
	if err != nil {
		return nil, nil, err
	}
	return vs, fs, nil
}

// RenderPipelines builds the shadow, geometry and shade pipelines of both render modes.
//
// Parameters:
//   - pp: the pre-processor resolving includes; it must know Includes()
//
// Returns:
//   - []pipeline.Pipeline: the render pipelines
//   - error: an error if a shader fails to parse
func RenderPipelines(pp shader.PreProcessor) ([]pipeline.Pipeline, error) {
	var out []pipeline.Pipeline

	shadows := []struct {
		key      string
		source   string
		fragment bool
	}{
		{ShadowPipelineKey, shadowSource, false},
		{ShadowAlphaPipelineKey, shadowAlphaSource, true},
	}
	for _, s := range shadows {
		vs, fs, err := renderShaders(s.key, s.source, s.fragment, pp)
		if err != nil {
			return nil, err
		}
		// Shadow casters render both faces; the shadow view never facing-culls either.
		// The alpha-tested caster has a fragment stage that only discards.
		options := []pipeline.PipelineBuilderOption{
			pipeline.WithVertexShader(vs),
			pipeline.WithDepthFormat(wgpu.TextureFormatDepth32Float),
			pipeline.WithDepthTestEnabled(true),
			pipeline.WithDepthWriteEnabled(true),
			pipeline.WithDepthCompare(wgpu.CompareFunctionLess),
			pipeline.WithDepthBias(shadowDepthBias, shadowDepthBiasSlope),
			pipeline.WithCullMode(wgpu.CullModeNone),
		}
		if fs != nil {
			options = append(options, pipeline.WithFragmentShader(fs))
		}
		out = append(out, pipeline.NewPipeline(s.key, pipeline.PipelineTypeRender, options...))
	}

	visibilityTargets := []wgpu.TextureFormat{wgpu.TextureFormatRG32Uint}
	gbufferTargets := []wgpu.TextureFormat{wgpu.TextureFormatRG32Uint, wgpu.TextureFormatRGBA16Float}
	geometry := []struct {
		key     string
		source  string
		alpha   bool
		targets []wgpu.TextureFormat
	}{
		{VisibilityPipelineKey, visibilitySource, false, visibilityTargets},
		{VisibilityAlphaPipelineKey, visibilitySource, true, visibilityTargets},
		{GBufferPipelineKey, gbufferSource, false, gbufferTargets},
		{GBufferAlphaPipelineKey, gbufferSource, true, gbufferTargets},
	}
	for _, g := range geometry {
		vs, fs, err := renderShaders(g.key, withCoverage(g.source, g.alpha), true, pp)
		if err != nil {
			return nil, err
		}
		// Facing was already resolved per triangle by the filter kernel.
		out = append(out, pipeline.NewPipeline(g.key, pipeline.PipelineTypeRender,
			pipeline.WithVertexShader(vs),
			pipeline.WithFragmentShader(fs),
			pipeline.WithColorTargets(g.targets...),
			pipeline.WithDepthFormat(wgpu.TextureFormatDepth32Float),
			pipeline.WithDepthTestEnabled(true),
			pipeline.WithDepthWriteEnabled(true),
			pipeline.WithDepthCompare(wgpu.CompareFunctionLess),
			pipeline.WithCullMode(wgpu.CullModeNone),
		))
	}

	shade := []struct {
		key    string
		source string
	}{
		{ShadeVisibilityPipelineKey, shadeVisibilitySource},
		{ShadeDeferredPipelineKey, shadeDeferredSource},
	}
	for _, s := range shade {
		vs, fs, err := renderShaders(s.key, s.source, true, pp)
		if err != nil {
			return nil, err
		}
		out = append(out, pipeline.NewPipeline(s.key, pipeline.PipelineTypeRender,
			pipeline.WithVertexShader(vs),
			pipeline.WithFragmentShader(fs),
			pipeline.WithCullMode(wgpu.CullModeNone),
		))
	}
	return out, nil
}

// Pipelines builds every compute and render pipeline a frame uses.
//
// Returns:
//   - []pipeline.Pipeline: the culling, light and render pipelines
//   - error: an error if any shader fails to parse
func Pipelines() ([]pipeline.Pipeline, error) {
	pp := NewPreProcessor()
	var out []pipeline.Pipeline

	cull, err := culling.Pipelines(pp)
	if err != nil {
		return nil, err
	}
	for _, p := range cull {
		if err := culling.CheckShaderConstants(p); err != nil {
			return nil, err
		}
	}
	out = append(out, cull...)

	lights, err := light.Pipelines(pp)
	if err != nil {
		return nil, err
	}
	out = append(out, lights...)

	render, err := RenderPipelines(pp)
	if err != nil {
		return nil, err
	}
	return append(out, render...), nil
}

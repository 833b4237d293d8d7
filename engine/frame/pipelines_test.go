package frame

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-cull/engine/culling"
	"github.com/Carmen-Shannon/oxy-cull/engine/light"
	"github.com/Carmen-Shannon/oxy-cull/engine/mesh"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelines_Keys(t *testing.T) {
	pipelines, err := Pipelines()
	require.NoError(t, err)

	byKey := make(map[string]pipeline.Pipeline, len(pipelines))
	for _, p := range pipelines {
		byKey[p.PipelineKey()] = p
	}
	assert.Len(t, byKey, len(pipelines), "keys are unique")

	for _, key := range []string{
		culling.FilterPipelineKey, culling.ClearArgsPipelineKey, culling.CompactPipelineKey,
		light.ClearGridPipelineKey, light.ClusterPipelineKey,
	} {
		require.Contains(t, byKey, key)
		assert.Equal(t, pipeline.PipelineTypeCompute, byKey[key].Type())
		assert.NotNil(t, byKey[key].Kernel(), key)
	}
	for _, key := range []string{
		ShadowPipelineKey, ShadowAlphaPipelineKey,
		VisibilityPipelineKey, VisibilityAlphaPipelineKey,
		GBufferPipelineKey, GBufferAlphaPipelineKey,
		ShadeVisibilityPipelineKey, ShadeDeferredPipelineKey,
	} {
		require.Contains(t, byKey, key)
		assert.Equal(t, pipeline.PipelineTypeRender, byKey[key].Type())
	}
	assert.Nil(t, byKey[ShadowPipelineKey].Shader(shader.ShaderTypeFragment), "shadow pass is depth-only")

	alphaShadow := byKey[ShadowAlphaPipelineKey]
	require.NotNil(t, alphaShadow.Shader(shader.ShaderTypeFragment))
	assert.Empty(t, alphaShadow.ColorTargets(), "alpha-tested casters only write depth")
}

func TestGeometryPasses_DrawEachSetWithItsPipeline(t *testing.T) {
	pipelines, err := RenderPipelines(NewPreProcessor())
	require.NoError(t, err)
	byKey := make(map[string]pipeline.Pipeline, len(pipelines))
	for _, p := range pipelines {
		byKey[p.PipelineKey()] = p
	}

	tests := []struct {
		name string
		pass geometryPass
	}{
		{"visibility", visibilityPass},
		{"gbuffer", gbufferPass},
		{"shadow", shadowPass},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opaque := byKey[tt.pass[mesh.GeometrySetOpaque]]
			alpha := byKey[tt.pass[mesh.GeometrySetAlphaTested]]
			require.NotNil(t, opaque)
			require.NotNil(t, alpha)
			assert.NotEqual(t, opaque.PipelineKey(), alpha.PipelineKey())

			fs := alpha.Shader(shader.ShaderTypeFragment)
			require.NotNil(t, fs)
			assert.Contains(t, fs.Source(), "meshes[mesh].alpha < meshes[mesh].alpha_cutoff")
			assert.Contains(t, fs.Source(), "discard")
			if ofs := opaque.Shader(shader.ShaderTypeFragment); ofs != nil {
				assert.NotContains(t, ofs.Source(), "discard")
			}
		})
	}
}

func TestGeometryPipelines_PullTriangleIDs(t *testing.T) {
	pipelines, err := RenderPipelines(NewPreProcessor())
	require.NoError(t, err)

	pulled := map[string]bool{
		VisibilityPipelineKey: true, VisibilityAlphaPipelineKey: true,
		GBufferPipelineKey: true, GBufferAlphaPipelineKey: true,
	}
	for _, p := range pipelines {
		if !pulled[p.PipelineKey()] {
			continue
		}
		vs := p.Shader(shader.ShaderTypeVertex)
		b, ok := vs.Binding(GroupFrame, BindingCameraIndices)
		require.True(t, ok, "%s reads the camera stream", p.PipelineKey())
		assert.True(t, b.IsBuffer())
		assert.False(t, b.Writable())
		assert.Contains(t, vs.Source(), "slot / 3u", p.PipelineKey())
	}
}

func TestShadeVisibility_RebuildsTriangles(t *testing.T) {
	pipelines, err := RenderPipelines(NewPreProcessor())
	require.NoError(t, err)

	for _, p := range pipelines {
		if p.PipelineKey() != ShadeVisibilityPipelineKey {
			continue
		}
		fs := p.Shader(shader.ShaderTypeFragment)
		for _, binding := range []int{BindingCameraIndices, BindingScenePositions, BindingSceneMeshes} {
			b, ok := fs.Binding(GroupFrame, binding)
			require.True(t, ok, "binding %d", binding)
			assert.False(t, b.Writable())
		}
		assert.Contains(t, fs.Source(), "triangle_normal(ids.x, ids.y)")
		return
	}
	t.Fatal("visibility shade pipeline not registered")
}

func TestRenderPipelines_Bindings(t *testing.T) {
	pipelines, err := RenderPipelines(NewPreProcessor())
	require.NoError(t, err)

	for _, p := range pipelines {
		vs := p.Shader(shader.ShaderTypeVertex)
		require.NotNil(t, vs, p.PipelineKey())
		assert.Equal(t, "vs_main", vs.EntryPoint())

		frame, ok := vs.Binding(GroupFrame, 0)
		require.True(t, ok, "%s frame constants", p.PipelineKey())
		assert.Equal(t, shader.BindingUniform, frame.Kind)
	}

	shade := map[string][]string{
		ShadeVisibilityPipelineKey: {renderer.PassInputVisibilityIDs},
		ShadeDeferredPipelineKey:   {renderer.PassInputVisibilityIDs, renderer.PassInputNormals},
	}
	for _, p := range pipelines {
		inputs, ok := shade[p.PipelineKey()]
		if !ok {
			continue
		}
		names := map[string]bool{}
		for _, b := range p.Bindings() {
			if b.Group == GroupPassInputs && !b.IsBuffer() {
				names[b.Name] = true
			}
		}
		for _, in := range inputs {
			assert.True(t, names[in], "%s reads %s", p.PipelineKey(), in)
		}

		fs := p.Shader(shader.ShaderTypeFragment)
		_, ok = fs.Binding(GroupLights, light.BindingLights)
		assert.True(t, ok)
		grid, ok := fs.Binding(GroupLights, light.BindingGrid)
		require.True(t, ok)
		assert.False(t, grid.Writable(), "shading reads the grid")
	}
}

func TestRenderMode_Parse(t *testing.T) {
	for _, m := range []RenderMode{RenderModeVisibilityBuffer, RenderModeDeferred} {
		got, err := ParseRenderMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseRenderMode("forward")
	assert.Error(t, err)
}

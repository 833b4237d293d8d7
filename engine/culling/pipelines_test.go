package culling

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-cull/config"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelines(t *testing.T) {
	pipelines, err := Pipelines(shader.NewPreProcessor(Includes()))
	require.NoError(t, err)
	require.Len(t, pipelines, 3)

	keys := make([]string, 0, len(pipelines))
	for _, p := range pipelines {
		keys = append(keys, p.PipelineKey())
		assert.NoError(t, CheckShaderConstants(p))
	}
	assert.Equal(t, []string{FilterPipelineKey, ClearArgsPipelineKey, CompactPipelineKey}, keys)

	filter := pipelines[0].Shader(shader.ShaderTypeCompute)
	for _, loc := range [][2]int{
		{0, BindingPositions}, {0, BindingIndices}, {0, BindingMeshes},
		{1, BindingFrame}, {1, BindingBatches}, {1, BindingUncompacted}, {1, BindingFiltered},
	} {
		_, ok := filter.Binding(loc[0], loc[1])
		assert.True(t, ok, "filter binding %v", loc)
	}
	_, ok := pipelines[1].Shader(shader.ShaderTypeCompute).Binding(0, BindingArgs)
	assert.True(t, ok, "clear_args shares the args location with compaction")
}

func TestPipelines_UnknownInclude(t *testing.T) {
	_, err := Pipelines(shader.NewPreProcessor(nil))
	assert.Error(t, err)
}

func TestPipelines_Validate(t *testing.T) {
	pipelines, err := Pipelines(shader.NewPreProcessor(Includes()))
	require.NoError(t, err)
	for _, p := range pipelines {
		t.Run(p.PipelineKey(), func(t *testing.T) {
			err := shader.Validate(p.Shader(shader.ShaderTypeCompute))
			if shader.Unsupported(err) {
				t.Skipf("naga limitation: %v", err)
			}
			assert.NoError(t, err)
		})
	}
}

func TestWorkgroupCounts(t *testing.T) {
	assert.GreaterOrEqual(t, int(ClearArgsWorkgroups())*config.ClearThreadCount, ArgsSectionCount*ArgsSectionWords)
	assert.GreaterOrEqual(t, int(CompactWorkgroups())*config.ClearThreadCount, config.MaxDrawsIndirect)
}

func TestFilterShader_GuardsFilteredWrites(t *testing.T) {
	pipelines, err := Pipelines(shader.NewPreProcessor(Includes()))
	require.NoError(t, err)
	for _, p := range pipelines {
		if p.PipelineKey() != FilterPipelineKey {
			continue
		}
		assert.Contains(t, p.Shader(shader.ShaderTypeCompute).Source(), "dst + 3u <= arrayLength(&filtered)")
		return
	}
	t.Fatal("filter_triangles pipeline not registered")
}

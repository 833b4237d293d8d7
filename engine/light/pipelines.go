package light

import (
	_ "embed"
	"fmt"

	"github.com/Carmen-Shannon/oxy-cull/config"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/shader"
)

// Pipeline keys registered by this package.
const (
	ClearGridPipelineKey = "clear_light_grid"
	ClusterPipelineKey   = "cluster_lights"
)

var (
	//go:embed assets/clear_grid.wgsl
	clearGridSource string

	//go:embed assets/cluster_lights.wgsl
	clusterSource string
)

// Includes returns the WGSL include sources of the light buffer and grid.
func Includes() map[string]string {
	return map[string]string{
		"light":      GPULightSource,
		"light_grid": GPULightGridSource,
	}
}

// Pipelines builds the grid clear and light cluster compute pipelines.
//
// Parameters:
//   - pp: the pre-processor resolving includes; it must know Includes()
//
// Returns:
//   - []pipeline.Pipeline: the clear and cluster pipelines
//   - error: an error if a shader fails to parse or its workgroup size disagrees with the Go kernel
func Pipelines(pp shader.PreProcessor) ([]pipeline.Pipeline, error) {
	kernels := []struct {
		key    string
		source string
		kernel pipeline.Kernel
		size   uint32
	}{
		{ClearGridPipelineKey, clearGridSource, ClearGridKernel, config.ClearThreadCount},
		{ClusterPipelineKey, clusterSource, ClusterKernel, LightThreadCount},
	}

	out := make([]pipeline.Pipeline, 0, len(kernels))
	for _, k := range kernels {
		s, err := shader.NewShader(k.key, shader.ShaderTypeCompute, k.source, pp)
		if err != nil {
			return nil, err
		}
		if got := s.WorkgroupSize()[0]; got != k.size {
			return nil, fmt.Errorf("pipeline %s: workgroup size %d, want %d", k.key, got, k.size)
		}
		out = append(out, pipeline.NewPipeline(k.key, pipeline.PipelineTypeCompute,
			pipeline.WithComputeShader(s),
			pipeline.WithKernel(k.kernel),
		))
	}
	return out, nil
}

package culling

import (
	_ "embed"
	"fmt"

	"github.com/Carmen-Shannon/oxy-cull/config"
	"github.com/Carmen-Shannon/oxy-cull/engine/mesh"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/shader"
)

// Pipeline keys registered by this package.
const (
	FilterPipelineKey    = "filter_triangles"
	ClearArgsPipelineKey = "clear_args"
	CompactPipelineKey   = "compact_args"
)

var (
	//go:embed assets/filter_triangles.wgsl
	filterSource string

	//go:embed assets/clear_args.wgsl
	clearArgsSource string

	//go:embed assets/compact_args.wgsl
	compactSource string
)

// Includes returns the WGSL include sources the culling kernels and the passes that consume
// their output are written against.
//
// Returns:
//   - map[string]string: include names mapped to WGSL sources
func Includes() map[string]string {
	return map[string]string{
		"frame_constants": GPUFrameConstantsSource,
		"mesh_constants":  mesh.GPUMeshConstantsSource,
		"batch_data":      GPUSmallBatchDataSource,
	}
}

// Pipelines builds the filter, clear and compaction compute pipelines.
//
// Parameters:
//   - pp: the pre-processor resolving includes; it must know Includes()
//
// Returns:
//   - []pipeline.Pipeline: the pipelines, keyed by the package's pipeline keys
//   - error: an error if a shader fails to parse
func Pipelines(pp shader.PreProcessor) ([]pipeline.Pipeline, error) {
	kernels := []struct {
		key    string
		source string
		kernel pipeline.Kernel
	}{
		{FilterPipelineKey, filterSource, FilterKernel},
		{ClearArgsPipelineKey, clearArgsSource, ClearArgsKernel},
		{CompactPipelineKey, compactSource, CompactKernel},
	}

	out := make([]pipeline.Pipeline, 0, len(kernels))
	for _, k := range kernels {
		s, err := shader.NewShader(k.key, shader.ShaderTypeCompute, k.source, pp)
		if err != nil {
			return nil, err
		}
		out = append(out, pipeline.NewPipeline(k.key, pipeline.PipelineTypeCompute,
			pipeline.WithComputeShader(s),
			pipeline.WithKernel(k.kernel),
		))
	}
	return out, nil
}

// ClearArgsWorkgroups returns the dispatch size that clears every args section of a frame.
//
// Returns:
//   - uint32: the workgroup count
func ClearArgsWorkgroups() uint32 {
	return (ArgsSectionCount*ArgsSectionWords + config.ClearThreadCount - 1) / config.ClearThreadCount
}

// CompactWorkgroups returns the dispatch size of the bounded compaction scan.
//
// Returns:
//   - uint32: the workgroup count
func CompactWorkgroups() uint32 {
	return (config.MaxDrawsIndirect + config.ClearThreadCount - 1) / config.ClearThreadCount
}

// CheckShaderConstants verifies that a parsed kernel's workgroup size matches the capacity
// it was written for.
//
// Parameters:
//   - p: a pipeline returned by Pipelines
//
// Returns:
//   - error: an error describing the mismatch
func CheckShaderConstants(p pipeline.Pipeline) error {
	want := uint32(config.ClearThreadCount)
	if p.PipelineKey() == FilterPipelineKey {
		want = config.ClusterTriangleCount
	}
	s := p.Shader(shader.ShaderTypeCompute)
	if s == nil {
		return fmt.Errorf("pipeline %s has no compute shader", p.PipelineKey())
	}
	if got := s.WorkgroupSize()[0]; got != want {
		return fmt.Errorf("pipeline %s: workgroup size %d, want %d", p.PipelineKey(), got, want)
	}
	return nil
}

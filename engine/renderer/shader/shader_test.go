package shader

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKernel = `
// @oxy:include counters
const WORKGROUP: u32 = 64u;

@group(0) @binding(0) var<uniform> params: Params;
@group(0) @binding(1) var<storage, read> input: array<u32>;
@group(1) @binding(0) var<storage, read_write> output: array<Counter>;

@compute @workgroup_size(WORKGROUP)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    output[id.x].value = input[id.x] + params.bias;
}
`

const testCounters = `struct Params {
    bias: u32,
}

struct Counter {
    value: u32,
}
`

func TestNewShaderReflectsCompute(t *testing.T) {
	pp := NewPreProcessor(map[string]string{"counters": testCounters})
	s, err := NewShader("test.kernel", ShaderTypeCompute, testKernel, pp)
	require.NoError(t, err)

	assert.Equal(t, "main", s.EntryPoint())
	assert.Equal(t, [3]uint32{64, 1, 1}, s.WorkgroupSize())
	assert.Contains(t, s.Source(), "struct Counter")
	assert.NotContains(t, s.Source(), "@oxy:include")

	require.Len(t, s.Bindings(), 3)
	b, ok := s.Binding(1, 0)
	require.True(t, ok)
	assert.Equal(t, "output", b.Name)
	assert.Equal(t, BindingStorage, b.Kind)
	assert.True(t, b.Writable())

	b, ok = s.Binding(0, 1)
	require.True(t, ok)
	assert.Equal(t, BindingReadOnlyStorage, b.Kind)
	assert.False(t, b.Writable())

	_, ok = s.Binding(2, 0)
	assert.False(t, ok)
}

func TestNewShaderMissingEntryPoint(t *testing.T) {
	_, err := NewShader("frag", ShaderTypeFragment, testKernel, NewPreProcessor(map[string]string{"counters": testCounters}))
	assert.Error(t, err)
}

func TestNewShaderLiteralWorkgroup(t *testing.T) {
	src := "@compute @workgroup_size(8, 8)\nfn clear() {}\n"
	s, err := NewShader("clear", ShaderTypeCompute, src, nil)
	require.NoError(t, err)
	assert.Equal(t, [3]uint32{8, 8, 1}, s.WorkgroupSize())
	assert.Empty(t, s.Bindings())
}

func TestNewShaderUnknownWorkgroupConstant(t *testing.T) {
	src := "@compute @workgroup_size(SIZE)\nfn clear() {}\n"
	_, err := NewShader("clear", ShaderTypeCompute, src, nil)
	assert.Error(t, err)
}

func TestPreProcessorUnknownInclude(t *testing.T) {
	_, err := NewPreProcessor(nil).Process("// @oxy:include missing\n")
	assert.ErrorContains(t, err, "missing")
}

func TestPreProcessorDeduplicatesIncludes(t *testing.T) {
	pp := NewPreProcessor(nil)
	pp.Register("a", "struct A { x: u32, }")
	out, err := pp.Process("// @oxy:include a\n// @oxy:include a\nfn f() {}")
	require.NoError(t, err)
	assert.Equal(t, "struct A { x: u32, }\nfn f() {}", out)
}

func TestTextureBindings(t *testing.T) {
	src := `
@group(0) @binding(0) var ids: texture_2d<u32>;
@group(0) @binding(1) var normals: texture_2d<f32>;
@group(0) @binding(2) var shadow_map: texture_depth_2d;
@group(0) @binding(3) var shadow_sampler: sampler;

@fragment
fn fs_main() -> @location(0) vec4<f32> { return vec4<f32>(0.0); }
`
	s, err := NewShader("shade", ShaderTypeFragment, src, nil)
	require.NoError(t, err)
	kinds := []BindingKind{BindingUintTexture, BindingTexture, BindingDepthTexture, BindingSampler}
	for i, b := range s.Bindings() {
		assert.Equal(t, kinds[i], b.Kind, b.Name)
		assert.False(t, b.IsBuffer())
	}
}

func TestLayoutDescriptors(t *testing.T) {
	pp := NewPreProcessor(map[string]string{"counters": testCounters})
	s := MustShader("test.kernel", ShaderTypeCompute, testKernel, pp)

	descs := s.BindGroupLayoutDescriptors()
	require.Len(t, descs, 2)
	require.Len(t, descs[0].Entries, 2)
	assert.Equal(t, wgpu.BufferBindingTypeUniform, descs[0].Entries[0].Buffer.Type)
	assert.Equal(t, wgpu.BufferBindingTypeReadOnlyStorage, descs[0].Entries[1].Buffer.Type)
	assert.Equal(t, wgpu.BufferBindingTypeStorage, descs[1].Entries[0].Buffer.Type)
	assert.Equal(t, wgpu.ShaderStageCompute, descs[1].Entries[0].Visibility)
}

func TestLayoutDescriptorsSkipsDuplicates(t *testing.T) {
	b := Binding{Group: 0, Binding: 0, Name: "camera", Kind: BindingUniform}
	descs := LayoutDescriptors("draw", []Binding{b, b}, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment)
	require.Len(t, descs[0].Entries, 1)
}

func TestValidate(t *testing.T) {
	pp := NewPreProcessor(map[string]string{"counters": testCounters})
	s := MustShader("test.kernel", ShaderTypeCompute, testKernel, pp)
	err := Validate(s)
	if Unsupported(err) {
		t.Skipf("naga limitation: %v", err)
	}
	assert.NoError(t, err)
}

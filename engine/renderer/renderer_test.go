package renderer

import (
	"context"
	"encoding/binary"
	"slices"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-cull/common"
	bgp "github.com/Carmen-Shannon/oxy-cull/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fillSource = `
@group(0) @binding(0) var<storage, read_write> data: array<u32>;

@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
	data[id.x] = id.x * 2u;
}
`

const readSource = `
@group(0) @binding(0) var<storage, read> src: array<u32>;
@group(0) @binding(1) var<storage, read_write> dst: array<u32>;

@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
	dst[id.x] = src[id.x] + 1u;
}
`

const drawSource = `
@group(0) @binding(0) var<storage, read> positions: array<vec4<f32>>;

@vertex
fn vs_main(@builtin(vertex_index) i: u32) -> @builtin(position) vec4<f32> {
	return positions[i];
}
`

func fillPipeline() pipeline.Pipeline {
	return pipeline.NewPipeline("fill", pipeline.PipelineTypeCompute,
		pipeline.WithComputeShader(shader.MustShader("fill", shader.ShaderTypeCompute, fillSource, nil)),
		pipeline.WithKernel(func(wg [3]uint32, b pipeline.KernelBindings) {
			data := b.Words(0, 0)
			for i := uint32(0); i < 64; i++ {
				idx := wg[0]*64 + i
				if int(idx) < len(data) {
					data[idx] = idx * 2
				}
			}
		}),
	)
}

func incrementPipeline() pipeline.Pipeline {
	return pipeline.NewPipeline("increment", pipeline.PipelineTypeCompute,
		pipeline.WithComputeShader(shader.MustShader("increment", shader.ShaderTypeCompute, readSource, nil)),
		pipeline.WithKernel(func(wg [3]uint32, b pipeline.KernelBindings) {
			src, dst := b.Words(0, 0), b.Words(0, 1)
			for i := uint32(0); i < 64; i++ {
				idx := wg[0]*64 + i
				if int(idx) < len(dst) {
					dst[idx] = src[idx] + 1
				}
			}
		}),
	)
}

func newSoftwareRenderer(t *testing.T) Renderer {
	t.Helper()
	r, err := NewRenderer(BackendTypeSoftware, WithWorkers(4), WithSize(64, 64))
	require.NoError(t, err)
	t.Cleanup(r.Release)
	return r
}

func wordsOf(t *testing.T, r Renderer, s bgp.BufferSection) []uint32 {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	raw, err := r.ReadBuffer(ctx, s)
	require.NoError(t, err)
	return common.BytesToWords(raw)
}

func waitFence(t *testing.T, f Fence) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return f.Wait(ctx)
}

func TestSoftwareDispatchAndReadback(t *testing.T) {
	r := newSoftwareRenderer(t)
	fill := fillPipeline()
	require.NoError(t, r.RegisterPipelines(fill))

	buf, err := r.CreateBuffer("data", 200*4, bgp.BufferUsageStorage)
	require.NoError(t, err)
	provider := bgp.NewBindGroupProvider("data", bgp.WithBuffer(0, buf))

	list := NewCommandList("fill")
	list.SetPipeline(fill)
	list.SetBindGroup(0, provider)
	list.Dispatch(common.CeilDiv(200, 64), 1, 1)

	fence := r.CreateFence(false)
	require.NoError(t, r.Submit(QueueCompute, list, nil, nil, fence))
	require.NoError(t, waitFence(t, fence))
	assert.True(t, fence.Signaled())

	words := wordsOf(t, r, bgp.Whole(buf))
	require.Len(t, words, 200)
	for i, w := range words {
		assert.Equal(t, uint32(i*2), w)
	}

	stats := r.Stats()
	assert.Equal(t, uint64(1), stats.Submissions)
	assert.Equal(t, uint64(1), stats.Dispatches)
	assert.Equal(t, uint64(4), stats.Workgroups)
}

func TestSoftwareMissingBarrier(t *testing.T) {
	r := newSoftwareRenderer(t)
	fill, inc := fillPipeline(), incrementPipeline()
	require.NoError(t, r.RegisterPipelines(fill, inc))

	a, err := r.CreateBuffer("a", 64*4, bgp.BufferUsageStorage)
	require.NoError(t, err)
	b, err := r.CreateBuffer("b", 64*4, bgp.BufferUsageStorage)
	require.NoError(t, err)

	record := func(barrier bool) *CommandList {
		list := NewCommandList("chain")
		list.SetPipeline(fill)
		list.SetBindGroup(0, bgp.NewBindGroupProvider("fill", bgp.WithBuffer(0, a)))
		list.Dispatch(1, 1, 1)
		if barrier {
			list.Barrier(a)
		}
		list.SetPipeline(inc)
		list.SetBindGroup(0, bgp.NewBindGroupProvider("inc", bgp.WithBuffer(0, a), bgp.WithBuffer(1, b)))
		list.Dispatch(1, 1, 1)
		return list
	}

	t.Run("with barrier", func(t *testing.T) {
		fence := r.CreateFence(false)
		require.NoError(t, r.Submit(QueueCompute, record(true), nil, nil, fence))
		require.NoError(t, waitFence(t, fence))
		words := wordsOf(t, r, bgp.Whole(b))
		assert.Equal(t, uint32(1), words[0])
		assert.Equal(t, uint32(11), words[5])
	})

	t.Run("without barrier", func(t *testing.T) {
		fence := r.CreateFence(false)
		require.NoError(t, r.Submit(QueueCompute, record(false), nil, nil, fence))
		assert.ErrorIs(t, waitFence(t, fence), ErrMissingBarrier)
		assert.ErrorIs(t, r.Submit(QueueCompute, record(true), nil, nil, nil), ErrDeviceLost)
	})
}

func TestSoftwareSemaphoreOrdersQueues(t *testing.T) {
	r := newSoftwareRenderer(t)
	fill, inc := fillPipeline(), incrementPipeline()
	require.NoError(t, r.RegisterPipelines(fill, inc))

	a, err := r.CreateBuffer("a", 64*4, bgp.BufferUsageStorage)
	require.NoError(t, err)
	b, err := r.CreateBuffer("b", 64*4, bgp.BufferUsageStorage)
	require.NoError(t, err)

	consume := NewCommandList("consume")
	consume.SetPipeline(inc)
	consume.SetBindGroup(0, bgp.NewBindGroupProvider("inc", bgp.WithBuffer(0, a), bgp.WithBuffer(1, b)))
	consume.Dispatch(1, 1, 1)

	produce := NewCommandList("produce")
	produce.SetPipeline(fill)
	produce.SetBindGroup(0, bgp.NewBindGroupProvider("fill", bgp.WithBuffer(0, a)))
	produce.Dispatch(1, 1, 1)

	ready := r.CreateSemaphore("ready")
	done := r.CreateFence(false)

	// The consumer is submitted first and must not run until the producer signals.
	require.NoError(t, r.Submit(QueueGraphics, consume, []Semaphore{ready}, nil, done))
	assert.False(t, done.Signaled())
	require.NoError(t, r.Submit(QueueCompute, produce, nil, []Semaphore{ready}, nil))
	require.NoError(t, waitFence(t, done))

	words := wordsOf(t, r, bgp.Whole(b))
	assert.Equal(t, uint32(63*2+1), words[63])
}

func TestSoftwareIndirectDrawCountsTriangles(t *testing.T) {
	r := newSoftwareRenderer(t)
	draw := pipeline.NewPipeline("draw", pipeline.PipelineTypeRender,
		pipeline.WithVertexShader(shader.MustShader("draw", shader.ShaderTypeVertex, drawSource, nil)),
	)
	require.NoError(t, r.RegisterPipelines(draw))

	positions, err := r.CreateBuffer("positions", 16, bgp.BufferUsageStorage)
	require.NoError(t, err)
	index, err := r.CreateBuffer("index", 60*4, bgp.BufferUsageIndex)
	require.NoError(t, err)
	args, err := r.CreateBuffer("args", 4*20+4, bgp.BufferUsageIndirect)
	require.NoError(t, err)

	// Two valid records (3 and 2 triangles) plus a stale one past the count.
	records := []uint32{
		9, 1, 0, 0, 0,
		6, 1, 9, 0, 0,
		30, 1, 15, 0, 0,
		0, 0, 0, 0, 0,
		2,
	}
	require.NoError(t, r.WriteBuffer(args, 0, common.WordsToBytes(records)))

	list := NewCommandList("draw")
	list.BeginRenderPass(RenderPassVisibility)
	list.SetPipeline(draw)
	list.SetBindGroup(0, bgp.NewBindGroupProvider("positions", bgp.WithBuffer(0, positions)))
	list.SetIndexBuffer(bgp.Whole(index))
	list.DrawIndexedIndirect(bgp.Whole(args).Sub(0, 80), bgp.Whole(args).Sub(80, 4), 4)
	list.EndRenderPass()

	fence := r.CreateFence(false)
	require.NoError(t, r.Submit(QueueGraphics, list, nil, nil, fence))
	require.NoError(t, waitFence(t, fence))

	stats := r.Stats()
	assert.Equal(t, uint64(5), stats.Triangles[RenderPassVisibility])
	assert.Equal(t, uint64(2), stats.DrawCalls)
}

func TestWriteBufferValidation(t *testing.T) {
	r := newSoftwareRenderer(t)
	buf, err := r.CreateBuffer("small", 16, bgp.BufferUsageUniform)
	require.NoError(t, err)

	assert.Error(t, r.WriteBuffer(buf, 2, make([]byte, 4)))
	assert.Error(t, r.WriteBuffer(buf, 0, make([]byte, 3)))
	assert.Error(t, r.WriteBuffer(buf, 8, make([]byte, 12)))
	assert.NoError(t, r.WriteBuffer(buf, 0, nil))

	data := make([]byte, 8)
	binary.LittleEndian.PutUint32(data[4:], 7)
	provider := bgp.NewBindGroupProvider("small", bgp.WithBuffer(0, buf))
	require.NoError(t, r.WriteBuffers([]bgp.BufferWrite{{Provider: provider, Binding: 0, Offset: 8, Data: data}}))
	assert.Equal(t, []uint32{0, 0, 0, 7}, wordsOf(t, r, bgp.Whole(buf)))

	err = r.WriteBuffers([]bgp.BufferWrite{{Provider: provider, Binding: 3, Data: data}})
	assert.Error(t, err)
}

func TestCommandListRecordingErrors(t *testing.T) {
	fill := fillPipeline()
	draw := pipeline.NewPipeline("draw", pipeline.PipelineTypeRender)

	tests := []struct {
		name   string
		record func(l *CommandList)
	}{
		{"dispatch without pipeline", func(l *CommandList) { l.Dispatch(1, 1, 1) }},
		{"render pipeline outside pass", func(l *CommandList) { l.SetPipeline(draw) }},
		{"compute pipeline inside pass", func(l *CommandList) {
			l.BeginRenderPass(RenderPassShade)
			l.SetPipeline(fill)
		}},
		{"barrier inside pass", func(l *CommandList) {
			l.BeginRenderPass(RenderPassShade)
			l.Barrier()
		}},
		{"unterminated pass", func(l *CommandList) { l.BeginRenderPass(RenderPassUI) }},
		{"copy size mismatch", func(l *CommandList) {
			l.CopyBuffer(bgp.BufferSection{Size: 4}, bgp.BufferSection{Size: 8})
		}},
		{"indirect overrun", func(l *CommandList) {
			l.BeginRenderPass(RenderPassVisibility)
			l.SetPipeline(draw)
			l.DrawIndexedIndirect(bgp.BufferSection{Size: 20}, bgp.BufferSection{Size: 4}, 2)
			l.EndRenderPass()
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewCommandList(tt.name)
			tt.record(l)
			assert.Error(t, l.finish())
		})
	}

	l := NewCommandList("empty dispatch")
	l.SetPipeline(fill)
	l.Dispatch(0, 1, 1)
	require.NoError(t, l.finish())
	assert.Len(t, l.Commands(), 1)

	l.Reset()
	assert.Empty(t, l.Commands())
	assert.NoError(t, l.Err())
}

func TestFenceReset(t *testing.T) {
	f := newChanFence(true)
	assert.True(t, f.Signaled())
	f.Reset()
	assert.False(t, f.Signaled())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, f.Wait(ctx), context.DeadlineExceeded)

	f.signal(nil)
	assert.NoError(t, waitFence(t, f))
}

func TestSurfaceAcquirePresent(t *testing.T) {
	r := newSoftwareRenderer(t)
	require.NoError(t, r.AcquireNextSurface())
	assert.Error(t, r.AcquireNextSurface())
	require.NoError(t, r.Present())
	assert.NoError(t, r.AcquireNextSurface())
}

func TestNewRendererRequiresSurfaceForWGPU(t *testing.T) {
	_, err := NewRenderer(BackendTypeWGPU)
	assert.Error(t, err)
}

func TestDeviceFeatures(t *testing.T) {
	tests := []struct {
		name      string
		supported []wgpu.FeatureName
		want      []wgpu.FeatureName
		multiDraw bool
	}{
		{
			name:      "draw count unsupported",
			supported: []wgpu.FeatureName{wgpu.FeatureNameIndirectFirstInstance},
			want:      []wgpu.FeatureName{wgpu.FeatureNameIndirectFirstInstance},
		},
		{
			name:      "draw count supported",
			supported: []wgpu.FeatureName{wgpu.FeatureNameIndirectFirstInstance, wgpu.NativeFeatureMultiDrawIndirectCount},
			want:      []wgpu.FeatureName{wgpu.FeatureNameIndirectFirstInstance, wgpu.NativeFeatureMultiDrawIndirectCount},
			multiDraw: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, multiDraw := deviceFeatures(func(f wgpu.FeatureName) bool {
				return slices.Contains(tt.supported, f)
			})
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.multiDraw, multiDraw)
		})
	}
}

func TestColorFormats(t *testing.T) {
	surface := wgpu.TextureFormatBGRA8Unorm
	tests := []struct {
		name    string
		targets []wgpu.TextureFormat
		depth   wgpu.TextureFormat
		want    []wgpu.TextureFormat
	}{
		{name: "explicit targets", targets: []wgpu.TextureFormat{wgpu.TextureFormatRG32Uint}, depth: wgpu.TextureFormatDepth32Float, want: []wgpu.TextureFormat{wgpu.TextureFormatRG32Uint}},
		{name: "fullscreen pass writes the surface", depth: wgpu.TextureFormatUndefined, want: []wgpu.TextureFormat{surface}},
		{name: "depth-only pass has no targets", depth: wgpu.TextureFormatDepth32Float, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, colorFormats(tt.targets, tt.depth, surface))
		})
	}
}

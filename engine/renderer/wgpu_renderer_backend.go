package renderer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"sync"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// Pass input binding names recognized by SetPassInputs.
const (
	PassInputVisibilityIDs = "visibility_ids"
	PassInputNormals       = "gbuffer_normals"
	PassInputShadowMap     = "shadow_map"
)

// wgpuBuffer wraps a device buffer with the metadata the renderer needs.
type wgpuBuffer struct {
	label string
	size  uint64
	usage bind_group_provider.BufferUsage
	buf   *wgpu.Buffer
}

var _ bind_group_provider.Buffer = &wgpuBuffer{}

func (b *wgpuBuffer) Label() string {
	return b.label
}

func (b *wgpuBuffer) Size() uint64 {
	return b.size
}

func (b *wgpuBuffer) Usage() bind_group_provider.BufferUsage {
	return b.usage
}

// wgpuFence waits for queue completion by polling the device. The single wgpu queue
// executes submissions in order, so a blocking poll covers every earlier submission.
type wgpuFence struct {
	mu      sync.Mutex
	device  *wgpu.Device
	pending bool
}

var _ Fence = &wgpuFence{}

func (f *wgpuFence) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending {
		f.device.Poll(true, nil)
		f.pending = false
	}
	return nil
}

func (f *wgpuFence) Signaled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending && f.device.Poll(false, nil) {
		f.pending = false
	}
	return !f.pending
}

func (f *wgpuFence) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = true
}

// wgpuSemaphore is a label only. Both logical queues map onto the one wgpu queue, whose
// submission order already satisfies every semaphore the orchestrator records.
type wgpuSemaphore struct {
	label string
}

func (s *wgpuSemaphore) Label() string {
	return s.label
}

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	surfaceFormat *wgpu.TextureFormat
	presentMode   wgpu.PresentMode // defaults to PresentModeImmediate (Uncapped)

	// Size dependent render targets, recreated by ConfigureSurface.
	targets []*wgpu.Texture
	depth   *wgpu.TextureView
	visIDs  *wgpu.TextureView
	normals *wgpu.TextureView

	// The shadow map keeps its own fixed size.
	shadowMapSize uint32
	shadowTexture *wgpu.Texture
	shadowMap     *wgpu.TextureView

	// passInputs caches pass input bind groups per pipeline and group; cleared on resize.
	passInputs map[string]*wgpu.BindGroup

	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView

	// multiDrawCount is set when the device issues count-driven multi-draws natively.
	multiDrawCount bool

	lost  bool
	stats Stats
}

var _ RendererBackend = &wgpuRendererBackendImpl{}

func newWGPURendererBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter bool, shadowMapSize int) *wgpuRendererBackendImpl {
	runtime.LockOSThread()
	w := &wgpuRendererBackendImpl{
		mu:            &sync.Mutex{},
		instance:      wgpu.CreateInstance(nil),
		presentMode:   wgpu.PresentModeImmediate,
		shadowMapSize: uint32(common.Coalesce(shadowMapSize, 2048)),
		passInputs:    make(map[string]*wgpu.BindGroup),
	}
	w.surface = w.instance.CreateSurface(surfaceDescriptor)

	a, err := w.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    w.surface,
	})
	if err != nil {
		panic(err)
	}
	w.adapter = a

	// The filter kernel binds five storage buffers across two groups.
	limits := wgpu.DefaultLimits()
	limits.MaxBindGroups = 4
	limits.MaxStorageBuffersPerShaderStage = 10

	features, multiDrawCount := deviceFeatures(a.HasFeature)
	w.multiDrawCount = multiDrawCount
	common.Logger().Info("wgpu device features", "multi_draw_indirect_count", multiDrawCount)

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label:            "Main Device",
		RequiredFeatures: features,
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		panic(err)
	}
	w.device = d
	w.queue = d.GetQueue()

	shadow, err := d.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Shadow Map",
		Size: wgpu.Extent3D{
			Width:              w.shadowMapSize,
			Height:             w.shadowMapSize,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatDepth32Float,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding,
	})
	if err != nil {
		panic(err)
	}
	w.shadowTexture = shadow
	if w.shadowMap, err = shadow.CreateView(nil); err != nil {
		panic(err)
	}

	common.Logger().Info("wgpu device ready", "fallback", forceFallbackAdapter, "shadow_map", w.shadowMapSize)
	return w
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surfaceFormat = &capabilities.Formats[0]

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      *b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	for _, t := range b.targets {
		t.Release()
	}
	b.targets = b.targets[:0]
	for k, bg := range b.passInputs {
		bg.Release()
		delete(b.passInputs, k)
	}

	b.depth = b.createTarget("Depth Target", width, height, wgpu.TextureFormatDepth32Float)
	b.visIDs = b.createTarget("Visibility Target", width, height, wgpu.TextureFormatRG32Uint)
	b.normals = b.createTarget("Normal Target", width, height, wgpu.TextureFormatRGBA16Float)
}

// createTarget allocates a render target that later passes can also sample.
func (b *wgpuRendererBackendImpl) createTarget(label string, width, height int, format wgpu.TextureFormat) *wgpu.TextureView {
	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: label,
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding,
	})
	if err != nil {
		panic(err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		panic(err)
	}
	b.targets = append(b.targets, tex)
	return view
}

func (b *wgpuRendererBackendImpl) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch mode {
	case PresentModeVSync:
		b.presentMode = wgpu.PresentModeFifo
	case PresentModeUncapped:
		fallthrough
	default:
		b.presentMode = wgpu.PresentModeImmediate
	}
}

func (b *wgpuRendererBackendImpl) RegisterPipeline(p pipeline.Pipeline) error {
	switch p.Type() {
	case pipeline.PipelineTypeCompute:
		return b.registerComputePipeline(p)
	case pipeline.PipelineTypeRender:
		return b.registerRenderPipeline(p)
	default:
		return fmt.Errorf("unknown pipeline type %d", p.Type())
	}
}

func (b *wgpuRendererBackendImpl) createLayouts(label string, descriptors map[int]wgpu.BindGroupLayoutDescriptor) ([]*wgpu.BindGroupLayout, *wgpu.PipelineLayout, error) {
	maxGroup := -1
	for g := range descriptors {
		if g > maxGroup {
			maxGroup = g
		}
	}
	bindGroupLayouts := make([]*wgpu.BindGroupLayout, maxGroup+1)
	for g := 0; g <= maxGroup; g++ {
		desc, ok := descriptors[g]
		if !ok {
			desc = wgpu.BindGroupLayoutDescriptor{Label: label + " Group " + strconv.Itoa(g)}
		}
		layout, err := b.device.CreateBindGroupLayout(&desc)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create bind group layout for group %d: %w", g, err)
		}
		bindGroupLayouts[g] = layout
	}

	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            label,
		BindGroupLayouts: bindGroupLayouts,
	})
	if err != nil {
		return nil, nil, err
	}
	return bindGroupLayouts, pipelineLayout, nil
}

func (b *wgpuRendererBackendImpl) registerRenderPipeline(p pipeline.Pipeline) error {
	vertexShader := p.Shader(shader.ShaderTypeVertex)
	if vertexShader == nil {
		return errors.New("vertex shader must be set to create a render pipeline")
	}
	fragmentShader := p.Shader(shader.ShaderTypeFragment)

	vs, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: vertexShader.Key(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: vertexShader.Source(),
		},
	})
	if err != nil {
		return err
	}

	descriptors := vertexShader.BindGroupLayoutDescriptors()
	var fragment *wgpu.FragmentState
	if fragmentShader != nil {
		fs, fsErr := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
			Label: fragmentShader.Key(),
			WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
				Code: fragmentShader.Source(),
			},
		})
		if fsErr != nil {
			return fsErr
		}
		descriptors = mergeBindGroupLayouts(descriptors, fragmentShader.BindGroupLayoutDescriptors())

		formats := colorFormats(p.ColorTargets(), p.DepthFormat(), *b.surfaceFormat)
		targets := make([]wgpu.ColorTargetState, len(formats))
		for i, format := range formats {
			targets[i] = wgpu.ColorTargetState{
				Format:    format,
				WriteMask: p.WriteMask(),
			}
			if p.BlendEnabled() {
				targets[i].Blend = p.BlendState()
			}
		}
		fragment = &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: fragmentShader.EntryPoint(),
			Targets:    targets,
		}
	}

	bindGroupLayouts, pipelineLayout, err := b.createLayouts(p.PipelineKey(), descriptors)
	if err != nil {
		return err
	}

	var depthStencil *wgpu.DepthStencilState
	if p.DepthFormat() != wgpu.TextureFormatUndefined {
		depthCompare := p.DepthCompare()
		if !p.DepthTestEnabled() {
			depthCompare = wgpu.CompareFunctionAlways
		}
		depthStencil = &wgpu.DepthStencilState{
			Format:              p.DepthFormat(),
			DepthWriteEnabled:   p.DepthWriteEnabled(),
			DepthCompare:        depthCompare,
			DepthBias:           p.DepthBias(),
			DepthBiasSlopeScale: p.DepthBiasSlopeScale(),
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		}
	}

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  p.PipelineKey() + " Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: vertexShader.EntryPoint(),
		},
		Fragment: fragment,
		Primitive: wgpu.PrimitiveState{
			Topology:  p.Topology(),
			FrontFace: p.FrontFace(),
			CullMode:  p.CullMode(),
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: depthStencil,
	})
	if err != nil {
		return err
	}

	p.SetRenderPipeline(created)
	p.SetBindGroupLayouts(bindGroupLayouts)
	return nil
}

func (b *wgpuRendererBackendImpl) registerComputePipeline(p pipeline.Pipeline) error {
	computeShader := p.Shader(shader.ShaderTypeCompute)
	if computeShader == nil {
		return errors.New("compute shader must be set to create a compute pipeline")
	}

	s, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: computeShader.Key(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: computeShader.Source(),
		},
	})
	if err != nil {
		return err
	}

	bindGroupLayouts, layout, err := b.createLayouts(p.PipelineKey(), computeShader.BindGroupLayoutDescriptors())
	if err != nil {
		return err
	}

	created, err := b.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  p.PipelineKey() + " Compute Pipeline",
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     s,
			EntryPoint: computeShader.EntryPoint(),
		},
	})
	if err != nil {
		return err
	}

	p.SetComputePipeline(created)
	p.SetBindGroupLayouts(bindGroupLayouts)
	return nil
}

func toWGPUUsage(u bind_group_provider.BufferUsage) wgpu.BufferUsage {
	var out wgpu.BufferUsage
	if u.Has(bind_group_provider.BufferUsageStorage) {
		out |= wgpu.BufferUsageStorage
	}
	if u.Has(bind_group_provider.BufferUsageUniform) {
		out |= wgpu.BufferUsageUniform
	}
	if u.Has(bind_group_provider.BufferUsageIndirect) {
		out |= wgpu.BufferUsageIndirect
	}
	if u.Has(bind_group_provider.BufferUsageIndex) {
		out |= wgpu.BufferUsageIndex
	}
	if u.Has(bind_group_provider.BufferUsageCopySrc) {
		out |= wgpu.BufferUsageCopySrc
	}
	if u.Has(bind_group_provider.BufferUsageCopyDst) {
		out |= wgpu.BufferUsageCopyDst
	}
	if u.Has(bind_group_provider.BufferUsageMapRead) {
		out |= wgpu.BufferUsageMapRead
	}
	return out
}

func (b *wgpuRendererBackendImpl) CreateBuffer(label string, size uint64, usage bind_group_provider.BufferUsage) (bind_group_provider.Buffer, error) {
	size = common.AlignUp(size, 4)
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            label,
		Size:             size,
		Usage:            toWGPUUsage(usage | bind_group_provider.BufferUsageCopySrc | bind_group_provider.BufferUsageCopyDst),
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, fmt.Errorf("create buffer %s: %w", label, err)
	}
	return &wgpuBuffer{label: label, size: size, usage: usage, buf: buf}, nil
}

func (b *wgpuRendererBackendImpl) DestroyBuffer(buf bind_group_provider.Buffer) {
	if wb, ok := buf.(*wgpuBuffer); ok && wb.buf != nil {
		wb.buf.Release()
		wb.buf = nil
	}
}

func (b *wgpuRendererBackendImpl) WriteBuffer(buf bind_group_provider.Buffer, offset uint64, data []byte) error {
	wb, ok := buf.(*wgpuBuffer)
	if !ok || wb.buf == nil {
		return fmt.Errorf("buffer %s does not belong to the wgpu backend", buf.Label())
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queue.WriteBuffer(wb.buf, offset, data)
}

func (b *wgpuRendererBackendImpl) ReadBuffer(ctx context.Context, section bind_group_provider.BufferSection) ([]byte, error) {
	wb, ok := section.Buffer.(*wgpuBuffer)
	if !ok || wb.buf == nil {
		return nil, errors.New("section does not belong to the wgpu backend")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	staging, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: wb.label + " Readback",
		Size:  section.Size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	defer staging.Release()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	defer encoder.Release()
	if err := encoder.CopyBufferToBuffer(wb.buf, section.Offset, staging, 0, section.Size); err != nil {
		return nil, err
	}
	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return nil, err
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()

	var status wgpu.BufferMapAsyncStatus
	if err := staging.MapAsync(wgpu.MapModeRead, 0, section.Size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
	}); err != nil {
		return nil, err
	}
	b.device.Poll(true, nil)
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("readback of %s failed with status %d", wb.label, status)
	}
	out := make([]byte, section.Size)
	copy(out, staging.GetMappedRange(0, uint(section.Size)))
	staging.Unmap()
	return out, nil
}

func (b *wgpuRendererBackendImpl) CreateFence(signaled bool) Fence {
	return &wgpuFence{device: b.device, pending: !signaled}
}

func (b *wgpuRendererBackendImpl) CreateSemaphore(label string) Semaphore {
	return &wgpuSemaphore{label: label}
}

// wgpuPassState is the binding state while a command list is encoded.
type wgpuPassState struct {
	pipeline pipeline.Pipeline
	groups   map[int]bind_group_provider.BindGroupProvider
	inputs   map[int]*wgpu.BindGroup
	pass     *wgpu.RenderPassEncoder
	kind     RenderPassKind
}

func (b *wgpuRendererBackendImpl) Submit(queue QueueType, list *CommandList, wait, signal []Semaphore, fence Fence) error {
	if err := list.finish(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.lost {
		return ErrDeviceLost
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	defer encoder.Release()

	st := &wgpuPassState{
		groups: make(map[int]bind_group_provider.BindGroupProvider),
		inputs: make(map[int]*wgpu.BindGroup),
	}
	for i, cmd := range list.Commands() {
		if err := b.encode(encoder, st, cmd); err != nil {
			if st.pass != nil {
				st.pass.End()
			}
			return fmt.Errorf("command list %s, command %d: %w", list.Label(), i, err)
		}
	}

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		b.lost = true
		return fmt.Errorf("%w: %v", ErrDeviceLost, err)
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	b.stats.Submissions++

	if fence != nil {
		fence.Reset()
	}
	return nil
}

func (b *wgpuRendererBackendImpl) encode(encoder *wgpu.CommandEncoder, st *wgpuPassState, cmd Command) error {
	switch cmd.Kind {
	case CommandSetPipeline:
		if cmd.Pipeline.Pipeline() == nil {
			return fmt.Errorf("%w: %s", ErrUnknownPipeline, cmd.Pipeline.PipelineKey())
		}
		st.pipeline = cmd.Pipeline
		if st.pass != nil {
			st.pass.SetPipeline(cmd.Pipeline.Pipeline().(*wgpu.RenderPipeline))
		}

	case CommandSetBindGroup:
		st.groups[cmd.Group] = cmd.Provider

	case CommandDispatch:
		pass := encoder.BeginComputePass(nil)
		pass.SetPipeline(st.pipeline.Pipeline().(*wgpu.ComputePipeline))
		if err := b.setBindGroups(st, pass.SetBindGroup); err != nil {
			pass.End()
			return err
		}
		pass.DispatchWorkgroups(cmd.Workgroups[0], cmd.Workgroups[1], cmd.Workgroups[2])
		pass.End()
		b.stats.Dispatches++
		b.stats.Workgroups += uint64(cmd.Workgroups[0]) * uint64(cmd.Workgroups[1]) * uint64(cmd.Workgroups[2])

	case CommandBarrier:
		// wgpu inserts the required barriers between passes itself; every dispatch is
		// encoded as its own compute pass so producer writes are visible to consumers.
		b.stats.Barriers++

	case CommandBeginRenderPass:
		desc, err := b.passDescriptor(cmd.Pass)
		if err != nil {
			return err
		}
		st.pass = encoder.BeginRenderPass(desc)
		st.kind = cmd.Pass
		st.pipeline = nil
		clear(st.inputs)

	case CommandSetPassInputs:
		bg, err := b.passInputGroup(st.pipeline, cmd.Group)
		if err != nil {
			return err
		}
		st.inputs[cmd.Group] = bg

	case CommandSetIndexBuffer:
		wb, ok := cmd.Section.Buffer.(*wgpuBuffer)
		if !ok {
			return errors.New("index buffer does not belong to the wgpu backend")
		}
		st.pass.SetIndexBuffer(wb.buf, wgpu.IndexFormatUint32, cmd.Section.Offset, cmd.Section.Size)

	case CommandDrawIndexedIndirect:
		if err := b.setBindGroups(st, st.pass.SetBindGroup); err != nil {
			return err
		}
		args, ok := cmd.Section.Buffer.(*wgpuBuffer)
		if !ok {
			return errors.New("indirect arguments do not belong to the wgpu backend")
		}
		if b.multiDrawCount {
			count, ok := cmd.Count.Buffer.(*wgpuBuffer)
			if !ok {
				return errors.New("indirect draw count does not belong to the wgpu backend")
			}
			st.pass.MultiDrawIndexedIndirectCount(st.pass, *args.buf, cmd.Section.Offset, *count.buf, cmd.Count.Offset, cmd.MaxDraws)
			b.stats.DrawCalls++
			return nil
		}
		// Records past the draw count are zeroed by the clear kernel, so issuing the
		// upper bound of draws is equivalent to a draw-count indirect call.
		for i := uint64(0); i < uint64(cmd.MaxDraws); i++ {
			st.pass.DrawIndexedIndirect(args.buf, cmd.Section.Offset+i*20)
		}
		b.stats.DrawCalls += uint64(cmd.MaxDraws)

	case CommandDraw:
		if err := b.setBindGroups(st, st.pass.SetBindGroup); err != nil {
			return err
		}
		st.pass.Draw(cmd.VertexCount, 1, 0, 0)
		b.stats.DrawCalls++

	case CommandEndRenderPass:
		st.pass.End()
		st.pass = nil

	case CommandCopyBuffer:
		src, ok1 := cmd.Section.Buffer.(*wgpuBuffer)
		dst, ok2 := cmd.Count.Buffer.(*wgpuBuffer)
		if !ok1 || !ok2 {
			return errors.New("copy between foreign buffers")
		}
		return encoder.CopyBufferToBuffer(src.buf, cmd.Section.Offset, dst.buf, cmd.Count.Offset, cmd.Section.Size)

	default:
		return fmt.Errorf("unknown command kind %d", cmd.Kind)
	}
	return nil
}

// colorFormats resolves the fragment targets of a render pipeline. Pipelines without
// targets write the surface, unless they carry a depth attachment: those are
// depth-only passes whose fragment stage only discards.
func colorFormats(targets []wgpu.TextureFormat, depth, surface wgpu.TextureFormat) []wgpu.TextureFormat {
	if len(targets) > 0 || depth != wgpu.TextureFormatUndefined {
		return targets
	}
	return []wgpu.TextureFormat{surface}
}

// deviceFeatures returns the features to request from an adapter. firstInstance carries the
// mesh index of every indirect draw and is always required; the native draw-count feature is
// requested when the adapter has it.
//
// Parameters:
//   - has: reports whether the adapter supports a feature
//
// Returns:
//   - []wgpu.FeatureName: the features to require
//   - bool: whether indirect draws can read the compacted draw count on the GPU
func deviceFeatures(has func(wgpu.FeatureName) bool) ([]wgpu.FeatureName, bool) {
	features := []wgpu.FeatureName{wgpu.FeatureNameIndirectFirstInstance}
	if !has(wgpu.NativeFeatureMultiDrawIndirectCount) {
		return features, false
	}
	return append(features, wgpu.NativeFeatureMultiDrawIndirectCount), true
}

// setBindGroups binds every group the current pipeline declares.
func (b *wgpuRendererBackendImpl) setBindGroups(st *wgpuPassState, set func(uint32, *wgpu.BindGroup, []uint32)) error {
	if st.pipeline == nil {
		return errors.New("no pipeline bound")
	}
	for g := range st.pipeline.BindGroupLayouts() {
		if bg, ok := st.inputs[g]; ok {
			set(uint32(g), bg, nil)
			continue
		}
		provider, ok := st.groups[g]
		if !ok {
			return fmt.Errorf("pipeline %s: group %d not bound", st.pipeline.PipelineKey(), g)
		}
		bg, err := b.bindGroup(st.pipeline, g, provider)
		if err != nil {
			return err
		}
		set(uint32(g), bg, nil)
	}
	return nil
}

// bindGroup returns the provider's cached bind group for a pipeline group, creating it on first use.
func (b *wgpuRendererBackendImpl) bindGroup(p pipeline.Pipeline, group int, provider bind_group_provider.BindGroupProvider) (*wgpu.BindGroup, error) {
	key := p.PipelineKey() + "/" + strconv.Itoa(group)
	if bg, ok := provider.CachedBindGroup(key).(*wgpu.BindGroup); ok {
		return bg, nil
	}

	var entries []wgpu.BindGroupEntry
	seen := make(map[int]bool)
	for _, bd := range p.Bindings() {
		if bd.Group != group || seen[bd.Binding] {
			continue
		}
		seen[bd.Binding] = true
		if !bd.IsBuffer() {
			return nil, fmt.Errorf("pipeline %s: %s is not a buffer binding", p.PipelineKey(), bd.Name)
		}
		section, ok := provider.Section(bd.Binding)
		if !ok {
			return nil, fmt.Errorf("pipeline %s: %s (group %d binding %d) not bound by %s", p.PipelineKey(), bd.Name, group, bd.Binding, provider.Label())
		}
		wb, ok := section.Buffer.(*wgpuBuffer)
		if !ok {
			return nil, fmt.Errorf("binding %s does not belong to the wgpu backend", bd.Name)
		}
		entries = append(entries, wgpu.BindGroupEntry{
			Binding: uint32(bd.Binding),
			Buffer:  wb.buf,
			Offset:  section.Offset,
			Size:    section.Size,
		})
	}

	bg, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   provider.Label() + " Bind Group",
		Layout:  p.BindGroupLayouts()[group],
		Entries: entries,
	})
	if err != nil {
		return nil, err
	}
	provider.SetCachedBindGroup(key, bg)
	return bg, nil
}

// passInputGroup binds render targets to a pipeline group by binding name.
func (b *wgpuRendererBackendImpl) passInputGroup(p pipeline.Pipeline, group int) (*wgpu.BindGroup, error) {
	key := p.PipelineKey() + "/" + strconv.Itoa(group)
	if bg, ok := b.passInputs[key]; ok {
		return bg, nil
	}

	var entries []wgpu.BindGroupEntry
	for _, bd := range p.Bindings() {
		if bd.Group != group {
			continue
		}
		var view *wgpu.TextureView
		switch bd.Name {
		case PassInputVisibilityIDs:
			view = b.visIDs
		case PassInputNormals:
			view = b.normals
		case PassInputShadowMap:
			view = b.shadowMap
		default:
			return nil, fmt.Errorf("pipeline %s: unknown pass input %q", p.PipelineKey(), bd.Name)
		}
		entries = append(entries, wgpu.BindGroupEntry{Binding: uint32(bd.Binding), TextureView: view})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Binding < entries[j].Binding })

	bg, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   p.PipelineKey() + " Pass Inputs",
		Layout:  p.BindGroupLayouts()[group],
		Entries: entries,
	})
	if err != nil {
		return nil, err
	}
	b.passInputs[key] = bg
	return bg, nil
}

// passDescriptor builds the attachments of a render pass kind.
func (b *wgpuRendererBackendImpl) passDescriptor(kind RenderPassKind) (*wgpu.RenderPassDescriptor, error) {
	depth := func(view *wgpu.TextureView) *wgpu.RenderPassDepthStencilAttachment {
		return &wgpu.RenderPassDepthStencilAttachment{
			View:            view,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1.0,
		}
	}
	idTarget := wgpu.RenderPassColorAttachment{
		View:       b.visIDs,
		LoadOp:     wgpu.LoadOpClear,
		StoreOp:    wgpu.StoreOpStore,
		ClearValue: wgpu.Color{R: 0xFFFFFFFF, G: 0xFFFFFFFF},
	}

	switch kind {
	case RenderPassShadow:
		return &wgpu.RenderPassDescriptor{DepthStencilAttachment: depth(b.shadowMap)}, nil
	case RenderPassVisibility:
		return &wgpu.RenderPassDescriptor{
			ColorAttachments:       []wgpu.RenderPassColorAttachment{idTarget},
			DepthStencilAttachment: depth(b.depth),
		}, nil
	case RenderPassGBuffer:
		return &wgpu.RenderPassDescriptor{
			ColorAttachments: []wgpu.RenderPassColorAttachment{
				idTarget,
				{View: b.normals, LoadOp: wgpu.LoadOpClear, StoreOp: wgpu.StoreOpStore},
			},
			DepthStencilAttachment: depth(b.depth),
		}, nil
	case RenderPassShade, RenderPassUI:
		if b.frameView == nil {
			return nil, errors.New("no surface acquired")
		}
		loadOp := wgpu.LoadOpClear
		if kind == RenderPassUI {
			loadOp = wgpu.LoadOpLoad
		}
		return &wgpu.RenderPassDescriptor{
			ColorAttachments: []wgpu.RenderPassColorAttachment{{
				View:       b.frameView,
				LoadOp:     loadOp,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{R: 0.1, G: 0.1, B: 0.1, A: 1.0},
			}},
		}, nil
	default:
		return nil, fmt.Errorf("unknown render pass kind %d", kind)
	}
}

func (b *wgpuRendererBackendImpl) AcquireNextSurface() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	// If a previous frame's surface texture is still held, avoid acquiring another one.
	// wgpu-native rejects a second acquisition with "Surface image is already acquired".
	if b.frameSurface != nil {
		return fmt.Errorf("previous frame surface not yet presented")
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return err
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return err
	}
	b.frameSurface = surfaceTexture
	b.frameView = view
	return nil
}

func (b *wgpuRendererBackendImpl) Present() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	// If no frame surface is held, nothing to present.
	if b.frameSurface == nil {
		return nil
	}

	b.surface.Present()

	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	b.frameSurface.Release()
	b.frameSurface = nil
	return nil
}

func (b *wgpuRendererBackendImpl) WaitIdle(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.device.Poll(true, nil)
	return nil
}

func (b *wgpuRendererBackendImpl) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

func (b *wgpuRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for k, bg := range b.passInputs {
		bg.Release()
		delete(b.passInputs, k)
	}
	for _, t := range b.targets {
		t.Release()
	}
	b.targets = nil
	if b.shadowTexture != nil {
		b.shadowTexture.Release()
		b.shadowTexture = nil
	}
	b.queue.Release()
	b.device.Release()
	b.adapter.Release()
	b.surface.Release()
	b.instance.Release()
}

// mergeBindGroupLayouts merges the bind group layout descriptors from a vertex and fragment shader
// into a unified set of descriptors suitable for a render pipeline layout.
//
// For each group index present in either shader:
//   - Entries with the same binding number have their Visibility flags ORed together
//   - Entries unique to one shader are included with their original visibility
//
// Parameters:
//   - vertexLayouts: bind group layout descriptors from the vertex shader
//   - fragmentLayouts: bind group layout descriptors from the fragment shader
//
// Returns:
//   - map[int]wgpu.BindGroupLayoutDescriptor: the merged descriptors keyed by group index
func mergeBindGroupLayouts(
	vertexLayouts, fragmentLayouts map[int]wgpu.BindGroupLayoutDescriptor,
) map[int]wgpu.BindGroupLayoutDescriptor {
	merged := make(map[int]wgpu.BindGroupLayoutDescriptor)
	for g, desc := range vertexLayouts {
		merged[g] = desc
	}

	for g, fDesc := range fragmentLayouts {
		vDesc, ok := merged[g]
		if !ok {
			merged[g] = fDesc
			continue
		}

		entryMap := make(map[uint32]wgpu.BindGroupLayoutEntry)
		for _, e := range vDesc.Entries {
			entryMap[e.Binding] = e
		}
		for _, e := range fDesc.Entries {
			if existing, found := entryMap[e.Binding]; found {
				existing.Visibility |= e.Visibility
				entryMap[e.Binding] = existing
			} else {
				entryMap[e.Binding] = e
			}
		}

		entries := make([]wgpu.BindGroupLayoutEntry, 0, len(entryMap))
		for _, e := range entryMap {
			entries = append(entries, e)
		}
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].Binding < entries[j].Binding
		})
		merged[g] = wgpu.BindGroupLayoutDescriptor{Label: vDesc.Label, Entries: entries}
	}
	return merged
}

package renderer

import (
	"context"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/pipeline"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	pipelineCache map[string]pipeline.Pipeline

	backendType RendererBackendType
	backend     RendererBackend

	// Pre-creation config collected from builder options
	surface              SurfaceProvider
	forceFallbackAdapter bool
	workers              int
	shadowMapSize        int
	pendingPresentMode   *PresentMode
	width, height        int
}

// Renderer defines the interface for the rendering system.
//
// This is a high-level API over an explicit GPU model: buffers, pipelines, recorded command
// lists, two logical queues, semaphores between queues and fences back to the CPU.
// The Renderer manages a cache of pipelines and forwards everything else to its backend.
type Renderer interface {
	// BackendType returns the backend the renderer was created with.
	//
	// Returns:
	//   - RendererBackendType: the backend type
	BackendType() RendererBackendType

	// Pipeline retrieves the cached Pipeline associated with the given key.
	// If the Pipeline does not exist, this will return nil.
	//
	// Parameters:
	//   - key: the unique identifier for the Pipeline to retrieve
	//
	// Returns:
	//   - pipeline.Pipeline: the Pipeline associated with the key, or nil if not found
	Pipeline(key string) pipeline.Pipeline

	// Pipelines retrieves a copy of the Pipeline cache.
	//
	// Returns:
	//   - map[string]pipeline.Pipeline: a map of pipeline keys to their corresponding Pipeline objects
	Pipelines() map[string]pipeline.Pipeline

	// RegisterPipelines registers one or more pipelines by creating the corresponding backend
	// pipeline objects, then caching them by PipelineKey.
	// Pipelines whose keys are already registered are skipped to avoid duplicate resource creation.
	//
	// Parameters:
	//   - pipelines: the Pipelines to register
	//
	// Returns:
	//   - error: an error if pipeline creation fails
	RegisterPipelines(pipelines ...pipeline.Pipeline) error

	// CreateBuffer allocates a zero-initialized buffer.
	//
	// Parameters:
	//   - label: the debug label
	//   - size: the size in bytes
	//   - usage: the allowed usages
	//
	// Returns:
	//   - bind_group_provider.Buffer: the buffer
	//   - error: an error if allocation fails
	CreateBuffer(label string, size uint64, usage bind_group_provider.BufferUsage) (bind_group_provider.Buffer, error)

	// DestroyBuffer frees a buffer. Submissions still using it must have completed.
	//
	// Parameters:
	//   - buf: the buffer to free
	DestroyBuffer(buf bind_group_provider.Buffer)

	// WriteBuffer copies host data into a buffer. It is ordered before every later submission.
	//
	// Parameters:
	//   - buf: the destination buffer
	//   - offset: the byte offset, a multiple of 4
	//   - data: the bytes to copy, a multiple of 4 long
	//
	// Returns:
	//   - error: an error if the range is invalid
	WriteBuffer(buf bind_group_provider.Buffer, offset uint64, data []byte) error

	// WriteBuffers applies staged provider writes in order.
	//
	// Parameters:
	//   - writes: the writes to apply
	//
	// Returns:
	//   - error: the first failing write
	WriteBuffers(writes []bind_group_provider.BufferWrite) error

	// ReadBuffer copies a section back to the host. The caller must first wait on the fence
	// of the last submission writing it.
	//
	// Parameters:
	//   - ctx: bounds the readback
	//   - section: the section to read
	//
	// Returns:
	//   - []byte: the section contents
	//   - error: an error if the readback fails
	ReadBuffer(ctx context.Context, section bind_group_provider.BufferSection) ([]byte, error)

	// CreateFence creates a fence, optionally already signaled.
	//
	// Parameters:
	//   - signaled: the initial state
	//
	// Returns:
	//   - Fence: the fence
	CreateFence(signaled bool) Fence

	// CreateSemaphore creates a queue-to-queue semaphore.
	//
	// Parameters:
	//   - label: the debug label
	//
	// Returns:
	//   - Semaphore: the semaphore
	CreateSemaphore(label string) Semaphore

	// Submit schedules a command list. The submission starts after every wait semaphore is
	// signaled, signals every signal semaphore when done, and signals fence (which Submit
	// resets first). Execution errors surface through the fence; after one, every further
	// Submit returns ErrDeviceLost.
	//
	// Parameters:
	//   - queue: the logical queue
	//   - list: the recorded commands
	//   - wait: semaphores to wait on
	//   - signal: semaphores to signal
	//   - fence: an optional CPU fence
	//
	// Returns:
	//   - error: a recording error, or ErrDeviceLost
	Submit(queue QueueType, list *CommandList, wait, signal []Semaphore, fence Fence) error

	// AcquireNextSurface acquires the next presentable image.
	//
	// Returns:
	//   - error: an error if the previous image is still held or acquisition fails
	AcquireNextSurface() error

	// Present presents the acquired image.
	//
	// Returns:
	//   - error: an error if presentation fails
	Present() error

	// Resize configures the underlying backend to handle a new surface size.
	// This should be called when re-sizing the window or when the surface size should change.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	Resize(width, height int)

	// SetPresentMode sets the surface present mode which controls how frames are delivered to the display.
	// A call to Resize is required after changing this for the new mode to take effect.
	//
	// Parameters:
	//   - mode: the PresentMode to use (VSync or Uncapped)
	SetPresentMode(mode PresentMode)

	// WaitIdle blocks until every submission has completed.
	//
	// Parameters:
	//   - ctx: bounds the wait
	//
	// Returns:
	//   - error: ctx.Err() if the wait was abandoned
	WaitIdle(ctx context.Context) error

	// Stats returns cumulative backend counters.
	//
	// Returns:
	//   - Stats: the counters
	Stats() Stats

	// Release frees all pipelines and backend objects.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer instance with the specified backend type.
// The wgpu backend requires a surface supplied with WithSurface.
//
// Parameters:
//   - backendType: the type of rendering backend to use
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: a new instance of Renderer configured with the specified backend and options
//   - error: an error if the backend cannot be created
func NewRenderer(backendType RendererBackendType, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:            &sync.Mutex{},
		pipelineCache: make(map[string]pipeline.Pipeline),
		backendType:   backendType,
		width:         1280,
		height:        720,
	}

	// Apply options first so config flags (e.g. forceFallbackAdapter) are
	// available before the backend requests a GPU adapter.
	for _, opt := range options {
		opt(r)
	}

	switch backendType {
	case BackendTypeSoftware:
		r.backend = newSoftwareRendererBackend(r.workers)
	case BackendTypeWGPU:
		if r.surface == nil {
			return nil, fmt.Errorf("wgpu backend requires a surface")
		}
		r.width, r.height = r.surface.Width(), r.surface.Height()
		r.backend = newWGPURendererBackend(r.surface.SurfaceDescriptor(), r.forceFallbackAdapter, r.shadowMapSize)
	default:
		return nil, fmt.Errorf("unknown backend type %d", backendType)
	}
	common.Logger().Info("renderer created", "backend", backendType.String())

	if r.pendingPresentMode != nil {
		r.backend.SetPresentMode(*r.pendingPresentMode)
	}

	r.backend.ConfigureSurface(r.width, r.height)
	return r, nil
}

func (r *renderer) BackendType() RendererBackendType {
	return r.backendType
}

func (r *renderer) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	r.backend.ConfigureSurface(width, height)
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.backend.SetPresentMode(mode)
}

func (r *renderer) Pipeline(key string) pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipelineCache[key]
}

func (r *renderer) Pipelines() map[string]pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]pipeline.Pipeline, len(r.pipelineCache))
	for k, v := range r.pipelineCache {
		out[k] = v
	}
	return out
}

func (r *renderer) RegisterPipelines(pipelines ...pipeline.Pipeline) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range pipelines {
		key := p.PipelineKey()
		if _, exists := r.pipelineCache[key]; exists {
			continue
		}
		if err := r.backend.RegisterPipeline(p); err != nil {
			return fmt.Errorf("register pipeline %s: %w", key, err)
		}
		r.pipelineCache[key] = p
		common.Logger().Info("pipeline registered", "pipeline", key)
	}
	return nil
}

func (r *renderer) CreateBuffer(label string, size uint64, usage bind_group_provider.BufferUsage) (bind_group_provider.Buffer, error) {
	return r.backend.CreateBuffer(label, size, usage)
}

func (r *renderer) DestroyBuffer(buf bind_group_provider.Buffer) {
	if buf != nil {
		r.backend.DestroyBuffer(buf)
	}
}

func (r *renderer) WriteBuffer(buf bind_group_provider.Buffer, offset uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if offset%4 != 0 || len(data)%4 != 0 {
		return fmt.Errorf("write to %s at %d of %d bytes is not word aligned", buf.Label(), offset, len(data))
	}
	if offset+uint64(len(data)) > buf.Size() {
		return fmt.Errorf("write to %s at %d of %d bytes overruns %d", buf.Label(), offset, len(data), buf.Size())
	}
	return r.backend.WriteBuffer(buf, offset, data)
}

func (r *renderer) WriteBuffers(writes []bind_group_provider.BufferWrite) error {
	for _, w := range writes {
		buf, offset, err := w.Resolve()
		if err != nil {
			return err
		}
		if err := r.WriteBuffer(buf, offset, w.Data); err != nil {
			return err
		}
	}
	return nil
}

func (r *renderer) ReadBuffer(ctx context.Context, section bind_group_provider.BufferSection) ([]byte, error) {
	if err := section.Valid(); err != nil {
		return nil, err
	}
	return r.backend.ReadBuffer(ctx, section)
}

func (r *renderer) CreateFence(signaled bool) Fence {
	return r.backend.CreateFence(signaled)
}

func (r *renderer) CreateSemaphore(label string) Semaphore {
	return r.backend.CreateSemaphore(label)
}

func (r *renderer) Submit(queue QueueType, list *CommandList, wait, signal []Semaphore, fence Fence) error {
	if list == nil {
		return fmt.Errorf("submit to %s queue: nil command list", queue)
	}
	return r.backend.Submit(queue, list, wait, signal, fence)
}

func (r *renderer) AcquireNextSurface() error {
	return r.backend.AcquireNextSurface()
}

func (r *renderer) Present() error {
	return r.backend.Present()
}

func (r *renderer) WaitIdle(ctx context.Context) error {
	return r.backend.WaitIdle(ctx)
}

func (r *renderer) Stats() Stats {
	return r.backend.Stats()
}

func (r *renderer) Release() {
	r.mu.Lock()
	for _, p := range r.pipelineCache {
		p.Release()
	}
	r.pipelineCache = make(map[string]pipeline.Pipeline)
	r.mu.Unlock()
	r.backend.Release()
}

package renderer

import (
	"context"
	"errors"

	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU RendererBackendType = iota

	// BackendTypeSoftware selects the CPU backend. Compute pipelines run their Go kernels
	// on a worker pool and draws are counted rather than rasterized.
	BackendTypeSoftware
)

// String returns the configuration name of the backend.
func (t RendererBackendType) String() string {
	switch t {
	case BackendTypeWGPU:
		return "wgpu"
	case BackendTypeSoftware:
		return "software"
	default:
		return "unknown"
	}
}

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// QueueType selects the logical queue a command list is submitted to.
type QueueType int

const (
	// QueueGraphics executes render passes and, on the synchronous path, compute work.
	QueueGraphics QueueType = iota
	// QueueCompute executes compute work concurrently with the graphics queue.
	QueueCompute
)

// String returns the queue name.
func (q QueueType) String() string {
	if q == QueueCompute {
		return "compute"
	}
	return "graphics"
}

// RenderPassKind selects the attachments a render pass writes.
type RenderPassKind int

const (
	// RenderPassShadow writes the shadow depth map only.
	RenderPassShadow RenderPassKind = iota
	// RenderPassVisibility writes the visibility id target and scene depth.
	RenderPassVisibility
	// RenderPassGBuffer writes the id target, the normal target and scene depth.
	RenderPassGBuffer
	// RenderPassShade writes the surface color from the geometry targets.
	RenderPassShade
	// RenderPassUI draws over the shaded surface without clearing it.
	RenderPassUI

	renderPassKindCount
)

// String returns the pass name.
func (k RenderPassKind) String() string {
	switch k {
	case RenderPassShadow:
		return "shadow"
	case RenderPassVisibility:
		return "visibility"
	case RenderPassGBuffer:
		return "gbuffer"
	case RenderPassShade:
		return "shade"
	case RenderPassUI:
		return "ui"
	default:
		return "unknown"
	}
}

var (
	// ErrMissingBarrier is reported when a command accesses a buffer range written by a
	// different pipeline without an intervening Barrier.
	ErrMissingBarrier = errors.New("renderer: missing barrier between producer and consumer")

	// ErrDeviceLost is returned by every submission after a backend execution failure.
	ErrDeviceLost = errors.New("renderer: device lost")

	// ErrUnknownPipeline is returned when a command list references an unregistered pipeline.
	ErrUnknownPipeline = errors.New("renderer: unknown pipeline")
)

// Stats are cumulative backend counters.
type Stats struct {
	Submissions uint64
	Dispatches  uint64
	Workgroups  uint64
	Barriers    uint64
	DrawCalls   uint64

	// Triangles counts rasterized triangles per pass kind. Only the software backend
	// fills it, because indirect draw counts never reach the CPU on the GPU path.
	Triangles [renderPassKindCount]uint64
}

// SurfaceProvider supplies the native surface the wgpu backend presents to.
type SurfaceProvider interface {
	SurfaceDescriptor() *wgpu.SurfaceDescriptor
	Width() int
	Height() int
}

// RendererBackend is the contract a GPU API implementation fulfills for the Renderer.
type RendererBackend interface {
	// RegisterPipeline creates the backend objects for a pipeline description.
	RegisterPipeline(p pipeline.Pipeline) error

	// CreateBuffer allocates a zero-initialized buffer.
	CreateBuffer(label string, size uint64, usage bind_group_provider.BufferUsage) (bind_group_provider.Buffer, error)

	// DestroyBuffer frees a buffer created by CreateBuffer.
	DestroyBuffer(buf bind_group_provider.Buffer)

	// WriteBuffer copies host data into a buffer at a byte offset.
	WriteBuffer(buf bind_group_provider.Buffer, offset uint64, data []byte) error

	// ReadBuffer copies a buffer section back to the host.
	ReadBuffer(ctx context.Context, section bind_group_provider.BufferSection) ([]byte, error)

	// CreateFence creates a CPU-visible fence.
	CreateFence(signaled bool) Fence

	// CreateSemaphore creates a queue-to-queue semaphore.
	CreateSemaphore(label string) Semaphore

	// Submit schedules a recorded command list on a queue.
	Submit(queue QueueType, list *CommandList, wait, signal []Semaphore, fence Fence) error

	// AcquireNextSurface acquires the next presentable image.
	AcquireNextSurface() error

	// Present presents the acquired image.
	Present() error

	// ConfigureSurface (re)creates size dependent targets.
	ConfigureSurface(width, height int)

	// SetPresentMode selects the present mode applied by the next ConfigureSurface.
	SetPresentMode(mode PresentMode)

	// WaitIdle blocks until every queue has drained.
	WaitIdle(ctx context.Context) error

	// Stats returns the cumulative counters.
	Stats() Stats

	// Release frees every backend object.
	Release()
}

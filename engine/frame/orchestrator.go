// Package frame schedules one frame of the culling pipeline: CPU pre-filtering and chunking,
// GPU triangle filtering, compaction and light clustering, then the shadow, geometry and
// shade passes, with config.FramesInFlight frames recorded ahead of the GPU.
package frame

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/config"
	"github.com/Carmen-Shannon/oxy-cull/engine/culling"
	"github.com/Carmen-Shannon/oxy-cull/engine/light"
	"github.com/Carmen-Shannon/oxy-cull/engine/mesh"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer"
)

// SceneSource supplies the per-frame inputs of the orchestrator.
type SceneSource interface {
	// Geometry returns the static scene geometry. It must not change after the orchestrator
	// is created.
	Geometry() *mesh.Geometry

	// Views returns the active views: the camera at index 0 and optionally the shadow view at 1.
	Views() []culling.View

	// Camera returns the camera view and projection matrices and the near plane distance
	// used to bin lights.
	Camera() (view, proj [16]float32, near float32)

	// Lights returns the scene lights.
	Lights() []light.Light
}

// UIRecorder records an overlay pass after shading. It must begin and end its own
// renderer.RenderPassUI pass.
type UIRecorder func(list *renderer.CommandList)

// FrameReport summarizes the CPU side of one rendered frame.
type FrameReport struct {
	// Frame is the number of frames rendered before this one.
	Frame uint64
	// Index is the frame-in-flight slot the frame used.
	Index int
	// Views is the number of active views.
	Views int
	// Survivors is the number of clusters that passed the pre-filter.
	Survivors int
	// Chunks is the number of filter dispatches.
	Chunks int
	// DrawSlots is the number of meshes with surviving clusters.
	DrawSlots int
	// Lights is the number of uploaded point lights.
	Lights uint32
}

// Orchestrator owns the per-frame resources and sync records and renders frames in order.
// RenderFrame is not safe for concurrent use; SetRenderMode and SetAsyncCompute may be
// called from any goroutine and take effect on the next frame.
type Orchestrator struct {
	r      renderer.Renderer
	source SceneSource

	scene  *SceneResources
	frames []*FrameResources
	syncs  []*FrameSync

	compute  []*renderer.CommandList
	graphics []*renderer.CommandList

	preFilter *culling.PreFilter
	chunker   *culling.Chunker

	mode  atomic.Int32
	async atomic.Bool

	clipMaskTest bool
	clusterSort  bool
	ui           UIRecorder

	index    int
	rendered uint64
}

// NewOrchestrator registers every pipeline, uploads the static scene and allocates
// config.FramesInFlight sets of frame resources.
//
// Parameters:
//   - r: the renderer
//   - source: the scene inputs
//   - options: functional options
//
// Returns:
//   - *Orchestrator: the orchestrator
//   - error: an error if a pipeline, the scene or a frame's resources cannot be created
func NewOrchestrator(r renderer.Renderer, source SceneSource, options ...OrchestratorOption) (*Orchestrator, error) {
	o := &Orchestrator{r: r, source: source}
	for _, opt := range options {
		opt(o)
	}
	o.preFilter = culling.NewPreFilter(
		culling.WithClipMaskTest(o.clipMaskTest),
		culling.WithClusterSort(o.clusterSort),
	)
	o.chunker = culling.NewChunker()

	pipelines, err := Pipelines()
	if err != nil {
		return nil, fmt.Errorf("build pipelines: %w", err)
	}
	if err := r.RegisterPipelines(pipelines...); err != nil {
		return nil, fmt.Errorf("register pipelines: %w", err)
	}
	common.Logger().Info("registered frame pipelines", "count", len(pipelines), "backend", r.BackendType())

	o.scene, err = NewSceneResources(r, source.Geometry())
	if err != nil {
		return nil, fmt.Errorf("upload scene: %w", err)
	}
	for i := range config.FramesInFlight {
		res, err := NewFrameResources(r, i, o.scene)
		if err != nil {
			o.Release()
			return nil, fmt.Errorf("frame %d resources: %w", i, err)
		}
		o.frames = append(o.frames, res)
		o.syncs = append(o.syncs, NewFrameSync(r, i))
		o.compute = append(o.compute, renderer.NewCommandList(fmt.Sprintf("Frame %d Compute", i)))
		o.graphics = append(o.graphics, renderer.NewCommandList(fmt.Sprintf("Frame %d Graphics", i)))
	}
	return o, nil
}

// SetRenderMode selects the render path used from the next frame on.
//
// Parameters:
//   - m: the render mode
func (o *Orchestrator) SetRenderMode(m RenderMode) {
	o.mode.Store(int32(m))
}

// RenderMode returns the current render mode.
func (o *Orchestrator) RenderMode() RenderMode {
	return RenderMode(o.mode.Load())
}

// SetAsyncCompute moves filtering, compaction and light clustering to the compute queue.
//
// Parameters:
//   - enabled: true for the async path, false to record everything on the graphics queue
func (o *Orchestrator) SetAsyncCompute(enabled bool) {
	o.async.Store(enabled)
}

// AsyncCompute reports whether compute work is submitted on the compute queue.
func (o *Orchestrator) AsyncCompute() bool {
	return o.async.Load()
}

// Scene returns the uploaded static geometry.
func (o *Orchestrator) Scene() *SceneResources {
	return o.scene
}

// Frame returns the resources and sync record of a frame-in-flight slot.
//
// Parameters:
//   - i: the slot, in [0, config.FramesInFlight)
//
// Returns:
//   - *FrameResources: the slot's buffers
//   - *FrameSync: the slot's sync record
func (o *Orchestrator) Frame(i int) (*FrameResources, *FrameSync) {
	return o.frames[i], o.syncs[i]
}

// LastIndex returns the slot of the most recently rendered frame.
func (o *Orchestrator) LastIndex() int {
	return (o.index + config.FramesInFlight - 1) % config.FramesInFlight
}

// RenderFrame renders one frame: Acquire, Wait, CPU culling and upload, Record-Compute,
// Record-Graphics, Submit, Present. Any failure after the surface was acquired still
// presents it and aborts the frame; the frame slot is reused by the next call.
//
// Parameters:
//   - ctx: bounds the fence waits
//
// Returns:
//   - FrameReport: the CPU-side summary of the frame
//   - error: a fence, capacity, recording or device error
func (o *Orchestrator) RenderFrame(ctx context.Context) (FrameReport, error) {
	if err := o.r.AcquireNextSurface(); err != nil {
		return FrameReport{}, fmt.Errorf("acquire surface: %w", err)
	}

	report, err := o.renderFrame(ctx)
	if err != nil {
		if perr := o.r.Present(); perr != nil {
			err = errors.Join(err, fmt.Errorf("present: %w", perr))
		}
		common.Logger().Warn("frame aborted", "frame", o.rendered, "index", o.index, "error", err)
		return report, err
	}
	if err := o.r.Present(); err != nil {
		return report, fmt.Errorf("present: %w", err)
	}

	o.index = (o.index + 1) % config.FramesInFlight
	o.rendered++
	return report, nil
}

func (o *Orchestrator) renderFrame(ctx context.Context) (FrameReport, error) {
	idx := o.index
	res, fs := o.frames[idx], o.syncs[idx]
	report := FrameReport{Frame: o.rendered, Index: idx}

	if err := fs.Wait(ctx); err != nil {
		return report, fmt.Errorf("wait frame %d: %w", idx, err)
	}

	geom := o.source.Geometry()
	views := o.source.Views()
	report.Views = len(views)
	survivors, err := o.preFilter.Run(geom, views)
	if err != nil {
		return report, fmt.Errorf("pre-filter: %w", err)
	}
	report.Survivors = len(survivors)

	lights, lightCount, err := light.PackLights(o.source.Lights())
	if err != nil {
		return report, err
	}
	report.Lights = lightCount

	async := o.async.Load()
	graphics := o.graphics[idx]
	graphics.Reset()
	compute := graphics
	if async {
		compute = o.compute[idx]
		compute.Reset()
	}

	chunks, err := o.recordCompute(compute, res, geom, survivors, lightCount)
	if err != nil {
		return report, err
	}
	report.Chunks = chunks.Chunks
	report.DrawSlots = len(chunks.DrawSlots)

	constants, err := culling.FrameConstants(views, uint32(len(chunks.DrawSlots)), o.scene.IndexCapacity, lightCount)
	if err != nil {
		return report, err
	}
	camView, camProj, near := o.source.Camera()
	params := light.GPULightGridParams{View: camView, Proj: camProj, LightCount: lightCount, Near: near}
	if err := res.upload(o.r, constants.Marshal(), chunks.SlotRecords(), lights, params.Marshal()); err != nil {
		return report, err
	}

	pc := &passContext{r: o.r, scene: o.scene, res: res}
	if len(views) > 1 {
		recordShadowPass(graphics, pc, 1)
	}
	path := pathFor(o.RenderMode())
	path.RecordGeometryPass(graphics, pc)
	path.RecordShadePass(graphics, pc)
	if o.ui != nil {
		o.ui(graphics)
	}

	if err := graphics.Err(); err != nil {
		return report, err
	}
	if async {
		if err := compute.Err(); err != nil {
			return report, err
		}
		if err := o.r.Submit(renderer.QueueCompute, compute, nil, []renderer.Semaphore{fs.ComputeDone}, fs.ComputeFence); err != nil {
			return report, fmt.Errorf("submit compute: %w", err)
		}
		err = o.r.Submit(renderer.QueueGraphics, graphics, []renderer.Semaphore{fs.ComputeDone}, []renderer.Semaphore{fs.GraphicsDone}, fs.GraphicsFence)
	} else {
		err = o.r.Submit(renderer.QueueGraphics, graphics, nil, []renderer.Semaphore{fs.GraphicsDone}, fs.GraphicsFence)
	}
	if err != nil {
		return report, fmt.Errorf("submit graphics: %w", err)
	}

	common.Logger().Debug("frame submitted",
		"frame", report.Frame,
		"survivors", report.Survivors,
		"chunks", report.Chunks,
		"draw_slots", report.DrawSlots,
		"lights", report.Lights,
		"async", async,
	)
	return report, nil
}

// recordCompute records clear, filter and compaction of the draw arguments followed by the
// light grid clear and clustering, with a barrier between every producer and its consumer.
// Batch chunks are uploaded as the chunker produces them.
func (o *Orchestrator) recordCompute(list *renderer.CommandList, res *FrameResources, geom *mesh.Geometry, survivors []culling.Survivor, lightCount uint32) (culling.ChunkResult, error) {
	list.SetPipeline(o.r.Pipeline(culling.ClearArgsPipelineKey))
	list.SetBindGroup(0, res.Compact)
	list.Dispatch(culling.ClearArgsWorkgroups(), 1, 1)

	list.SetPipeline(o.r.Pipeline(culling.FilterPipelineKey))
	list.SetBindGroup(0, o.scene.Provider)
	result, err := o.chunker.Run(geom, survivors, func(c *culling.BatchChunk) error {
		if err := o.r.WriteBuffer(res.Batches, uint64(c.Index())*culling.ChunkBytes, c.Marshal()); err != nil {
			return err
		}
		list.SetBindGroup(1, res.Filter[c.Index()])
		list.Dispatch(uint32(c.Len()), 1, 1)
		return nil
	})
	if err != nil {
		return result, err
	}
	list.Barrier()

	list.SetPipeline(o.r.Pipeline(culling.CompactPipelineKey))
	list.SetBindGroup(0, res.Compact)
	list.Dispatch(culling.CompactWorkgroups(), 1, 1)

	list.SetPipeline(o.r.Pipeline(light.ClearGridPipelineKey))
	list.SetBindGroup(0, res.Light)
	list.Dispatch(light.ClearGridWorkgroups(), 1, 1)
	list.Barrier(res.Grid)

	list.SetPipeline(o.r.Pipeline(light.ClusterPipelineKey))
	list.SetBindGroup(0, res.Light)
	list.Dispatch(light.ClusterWorkgroups(lightCount), 1, 1)
	list.Barrier()

	return result, list.Err()
}

// Release waits for the GPU and frees every resource the orchestrator created.
func (o *Orchestrator) Release() {
	if err := o.r.WaitIdle(context.Background()); err != nil {
		common.Logger().Warn("wait idle on release", "error", err)
	}
	for _, f := range o.frames {
		f.Release(o.r)
	}
	o.frames = nil
	if o.scene != nil {
		o.scene.Release(o.r)
		o.scene = nil
	}
}

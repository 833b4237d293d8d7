package frame

import (
	"context"
	"fmt"

	"github.com/Carmen-Shannon/oxy-cull/engine/renderer"
)

// FrameSync is the synchronization record of one frame in flight.
//
// ComputeDone orders the graphics submission after the async compute submission of the same
// frame. GraphicsDone is signaled by every graphics submission for consumers outside the
// orchestrator. The fences let the CPU reuse the frame's resources once both submissions retire.
type FrameSync struct {
	ComputeDone   renderer.Semaphore
	GraphicsDone  renderer.Semaphore
	ComputeFence  renderer.Fence
	GraphicsFence renderer.Fence
}

// NewFrameSync creates the sync record for frame index i. Both fences start signaled so the
// first use of the frame does not wait.
//
// Parameters:
//   - r: the renderer owning the objects
//   - i: the frame index, used in labels
//
// Returns:
//   - *FrameSync: the sync record
func NewFrameSync(r renderer.Renderer, i int) *FrameSync {
	return &FrameSync{
		ComputeDone:   r.CreateSemaphore(fmt.Sprintf("frame %d compute done", i)),
		GraphicsDone:  r.CreateSemaphore(fmt.Sprintf("frame %d graphics done", i)),
		ComputeFence:  r.CreateFence(true),
		GraphicsFence: r.CreateFence(true),
	}
}

// Wait blocks until the frame's previous submissions have retired. The compute fence is
// only reset by async submissions, so on the synchronous path it is already signaled.
//
// Parameters:
//   - ctx: bounds the wait
//
// Returns:
//   - error: the first execution error or ctx.Err()
func (s *FrameSync) Wait(ctx context.Context) error {
	if err := s.GraphicsFence.Wait(ctx); err != nil {
		return fmt.Errorf("graphics fence: %w", err)
	}
	if err := s.ComputeFence.Wait(ctx); err != nil {
		return fmt.Errorf("compute fence: %w", err)
	}
	return nil
}

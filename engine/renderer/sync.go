package renderer

import (
	"context"
	"sync"
)

// Fence is a CPU-visible completion signal for one queue submission.
type Fence interface {
	// Wait blocks until the fence is signaled or ctx is done.
	//
	// Parameters:
	//   - ctx: bounds the wait
	//
	// Returns:
	//   - error: the execution error of the guarded submission, or ctx.Err()
	Wait(ctx context.Context) error

	// Signaled reports whether the guarded submission has completed.
	//
	// Returns:
	//   - bool: true once signaled
	Signaled() bool

	// Reset returns a signaled fence to the unsignaled state.
	Reset()
}

// Semaphore orders a submission on one queue after a submission on another.
type Semaphore interface {
	Label() string
}

// chanFence is a Fence backed by a closed-on-signal channel.
type chanFence struct {
	mu   sync.Mutex
	done chan struct{}
	err  error
}

var _ Fence = &chanFence{}

func newChanFence(signaled bool) *chanFence {
	f := &chanFence{done: make(chan struct{})}
	if signaled {
		close(f.done)
	}
	return f
}

func (f *chanFence) Wait(ctx context.Context) error {
	f.mu.Lock()
	done := f.done
	f.mu.Unlock()

	select {
	case <-done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *chanFence) Signaled() bool {
	f.mu.Lock()
	done := f.done
	f.mu.Unlock()

	select {
	case <-done:
		return true
	default:
		return false
	}
}

func (f *chanFence) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.done:
		f.done = make(chan struct{})
		f.err = nil
	default:
	}
}

// signal completes the fence with the submission's execution error.
func (f *chanFence) signal(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.done:
	default:
		f.err = err
		close(f.done)
	}
}

// chanSemaphore is a binary Semaphore backed by a single-slot channel.
type chanSemaphore struct {
	label string
	ch    chan struct{}
}

var _ Semaphore = &chanSemaphore{}

func newChanSemaphore(label string) *chanSemaphore {
	return &chanSemaphore{label: label, ch: make(chan struct{}, 1)}
}

func (s *chanSemaphore) Label() string {
	return s.label
}

func (s *chanSemaphore) signal() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

func (s *chanSemaphore) wait(ctx context.Context) error {
	select {
	case <-s.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

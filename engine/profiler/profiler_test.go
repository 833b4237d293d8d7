package profiler

import (
	"errors"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-cull/engine/frame"
	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestProfiler_TickInterval(t *testing.T) {
	clock := &fakeClock{t: time.Unix(100, 0)}
	p := NewProfiler(WithClock(clock.now), WithUpdateInterval(time.Second))

	p.Observe(frame.FrameReport{Survivors: 4}, nil, nil)
	assert.False(t, p.Tick())

	clock.t = clock.t.Add(1500 * time.Millisecond)
	assert.True(t, p.Tick())
	assert.False(t, p.Tick(), "the interval restarts after logging")
}

func TestProfiler_Totals(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	p := NewProfiler(WithClock(clock.now))

	stats := &frame.FrameStats{}
	stats.Draws[0][0] = 2
	stats.Draws[1][1] = 1
	stats.Triangles[0] = 30
	stats.Triangles[1] = 10

	p.Observe(frame.FrameReport{Survivors: 5, Chunks: 1, DrawSlots: 2}, stats, nil)
	p.Observe(frame.FrameReport{Survivors: 3, Chunks: 1, DrawSlots: 1}, nil, nil)
	p.Observe(frame.FrameReport{}, nil, errors.New("too many lights"))

	clock.t = clock.t.Add(2 * time.Second)
	total := p.Total()
	assert.Equal(t, 2, total.Frames)
	assert.Equal(t, 1, total.Aborted)
	assert.Equal(t, uint64(8), total.Survivors)
	assert.Equal(t, uint64(3), total.Draws)
	assert.Equal(t, uint64(40), total.Triangles)
	assert.Equal(t, 1, total.Sampled)
	assert.InDelta(t, 40, total.MeanTriangles(), 1e-9)
	assert.InDelta(t, 1, total.FPS(), 1e-9)
}

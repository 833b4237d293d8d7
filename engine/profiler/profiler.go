// Package profiler aggregates frame timing, memory and culling counters and logs them at an
// interval.
package profiler

import (
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/frame"
)

// Summary accumulates culling counters over a number of frames.
type Summary struct {
	Frames  int
	Aborted int
	Elapsed time.Duration

	Survivors uint64
	Chunks    uint64
	DrawSlots uint64

	// Draws and Triangles are summed over views, from frames whose stats were read back.
	Draws     uint64
	Triangles uint64
	Sampled   int
}

// FPS returns the frame rate over Elapsed.
func (s Summary) FPS() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Frames) / s.Elapsed.Seconds()
}

// MeanTriangles returns the average surviving triangles per sampled frame.
func (s Summary) MeanTriangles() float64 {
	if s.Sampled == 0 {
		return 0
	}
	return float64(s.Triangles) / float64(s.Sampled)
}

func (s *Summary) add(report frame.FrameReport) {
	s.Frames++
	s.Survivors += uint64(report.Survivors)
	s.Chunks += uint64(report.Chunks)
	s.DrawSlots += uint64(report.DrawSlots)
}

func (s *Summary) addStats(stats *frame.FrameStats) {
	s.Sampled++
	for view := range stats.Triangles {
		s.Draws += uint64(stats.DrawCount(view))
		s.Triangles += stats.Triangles[view]
	}
}

// Profiler tracks frame rate, memory and culling statistics. It logs at a configurable interval.
// Safe for concurrent use.
type Profiler struct {
	mu sync.Mutex

	now            func() time.Time
	updateInterval time.Duration
	start          time.Time
	lastTime       time.Time

	interval Summary
	total    Summary

	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
}

// NewProfiler creates a new Profiler. The update interval defaults to 1 second.
//
// Parameters:
//   - options: functional options to configure the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerOption) *Profiler {
	p := &Profiler{
		now:            time.Now,
		updateInterval: time.Second,
	}
	for _, option := range options {
		option(p)
	}
	p.start = p.now()
	p.lastTime = p.start
	return p
}

// Observe records one RenderFrame outcome. stats may be nil when the frame was not read back.
//
// Parameters:
//   - report: the frame report
//   - stats: the frame's read-back counters, or nil
//   - err: the RenderFrame error; an error counts the frame as aborted
func (p *Profiler) Observe(report frame.FrameReport, stats *frame.FrameStats, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.interval.Aborted++
		p.total.Aborted++
		return
	}
	p.interval.add(report)
	p.total.add(report)
	if stats != nil {
		p.interval.addStats(stats)
		p.total.addStats(stats)
	}
}

// Tick logs statistics when the update interval has elapsed since the last log. Call once per frame.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	current := p.now()
	elapsed := current.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}
	p.interval.Elapsed = elapsed

	runtime.ReadMemStats(&p.memStats)
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	allocRateMB := float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	// PauseNs is a circular buffer of the last 256 GC pauses
	gcCount := p.memStats.NumGC
	var maxPause time.Duration
	for i := max(p.lastGCCount, gcCount-min(gcCount, 256)); i < gcCount; i++ {
		maxPause = max(maxPause, time.Duration(p.memStats.PauseNs[i%256]))
	}

	s := p.interval
	perFrame := func(v uint64) float64 {
		if s.Frames == 0 {
			return 0
		}
		return float64(v) / float64(s.Frames)
	}
	common.Logger().Info("frame stats",
		slog.Float64("fps", s.FPS()),
		slog.Int("aborted", s.Aborted),
		slog.Float64("survivors", perFrame(s.Survivors)),
		slog.Float64("chunks", perFrame(s.Chunks)),
		slog.Float64("draw_slots", perFrame(s.DrawSlots)),
		slog.Float64("triangles", s.MeanTriangles()),
		slog.Float64("heap_mb", float64(p.memStats.Alloc)/1024/1024),
		slog.Float64("alloc_mb_s", allocRateMB),
		slog.Uint64("gc", uint64(gcCount)),
		slog.Duration("gc_max_pause", maxPause))

	p.interval = Summary{}
	p.lastTime = current
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}

// Total returns the counters accumulated since the profiler was created.
//
// Returns:
//   - Summary: the run totals with Elapsed measured to now
func (p *Profiler) Total() Summary {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.total
	s.Elapsed = p.now().Sub(p.start)
	return s
}

package frame

import (
	"context"
	"fmt"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/config"
	"github.com/Carmen-Shannon/oxy-cull/engine/culling"
	"github.com/Carmen-Shannon/oxy-cull/engine/light"
	bgp "github.com/Carmen-Shannon/oxy-cull/engine/renderer/bind_group_provider"
)

// FrameStats is the GPU-side outcome of a frame, read back after its fences.
type FrameStats struct {
	// Draws is the draw counter of every (geometry set, view) args section.
	Draws [config.GeometrySetCount][config.MaxViews]uint32
	// Triangles is the number of surviving triangles per view, summed over geometry sets.
	Triangles [config.MaxViews]uint64
	// LightRefs is the number of light indices stored across the grid.
	LightRefs int
	// SaturatedCells is the number of grid cells holding MaxLightsPerCell lights. Lights
	// appended past that were dropped.
	SaturatedCells int
}

// DrawCount returns the total number of indirect draws of a view.
func (s FrameStats) DrawCount(view int) uint32 {
	var n uint32
	for set := range s.Draws {
		n += s.Draws[set][view]
	}
	return n
}

// ReadStats waits for a frame slot's submissions and reads back its draw arguments and light grid.
//
// Parameters:
//   - ctx: bounds the wait and readback
//   - index: the frame-in-flight slot, usually LastIndex()
//
// Returns:
//   - FrameStats: the frame's counters
//   - error: a fence or readback error
func (o *Orchestrator) ReadStats(ctx context.Context, index int) (FrameStats, error) {
	var stats FrameStats
	res, fs := o.frames[index], o.syncs[index]
	if err := fs.Wait(ctx); err != nil {
		return stats, fmt.Errorf("wait frame %d: %w", index, err)
	}

	raw, err := o.r.ReadBuffer(ctx, bgp.Whole(res.Args))
	if err != nil {
		return stats, fmt.Errorf("read draw args: %w", err)
	}
	args := common.BytesToWords(raw)
	for set := range config.GeometrySetCount {
		for view := range config.MaxViews {
			base := culling.ArgsSectionIndex(set, view) * culling.ArgsSectionWords
			n := min(args[base+culling.ArgsCounterWord], config.MaxDrawsIndirect)
			stats.Draws[set][view] = n
			for d := range n {
				stats.Triangles[view] += uint64(args[base+int(d)*culling.DrawArgsWords] / 3)
			}
		}
	}

	raw, err = o.r.ReadBuffer(ctx, bgp.Whole(res.Grid))
	if err != nil {
		return stats, fmt.Errorf("read light grid: %w", err)
	}
	grid := common.BytesToWords(raw)
	for cell := range uint32(light.GridCellCount) {
		n := len(light.CellLights(grid, cell))
		stats.LightRefs += n
		if n == config.MaxLightsPerCell {
			stats.SaturatedCells++
		}
	}
	if stats.SaturatedCells > 0 {
		common.Logger().Warn("light grid cells saturated", "cells", stats.SaturatedCells, "capacity", config.MaxLightsPerCell)
	}
	common.Logger().Debug("frame stats",
		"index", index,
		"camera_draws", stats.DrawCount(0),
		"camera_triangles", stats.Triangles[0],
		"shadow_triangles", stats.Triangles[1],
		"light_refs", stats.LightRefs,
	)
	return stats, nil
}

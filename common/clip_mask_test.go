package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClipMask_InsideAllPlanes(t *testing.T) {
	tests := []struct {
		name string
		v    [4]float32
	}{
		{"origin", [4]float32{0, 0, 0, 1}},
		{"near corner", [4]float32{0.9, -0.9, 0.5, 1}},
		{"large w", [4]float32{-7, 3, 9, 10}},
		{"negative z inside", [4]float32{0.1, 0.1, -0.5, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, ClipInside, ClipMask(tt.v))
		})
	}
}

func TestClipMask_RightPlaneClearsBitZero(t *testing.T) {
	for _, x := range []float32{1.01, 2, 50} {
		m := ClipMask([4]float32{x, 0, 0, 1})
		assert.Zero(t, m&ClipRight, "x=%v", x)
		assert.NotZero(t, m&ClipLeft, "x=%v", x)
	}
}

func TestClipMask_EachPlane(t *testing.T) {
	tests := []struct {
		name string
		v    [4]float32
		bit  uint8
	}{
		{"right", [4]float32{2, 0, 0, 1}, ClipRight},
		{"left", [4]float32{-2, 0, 0, 1}, ClipLeft},
		{"top", [4]float32{0, 2, 0, 1}, ClipTop},
		{"bottom", [4]float32{0, -2, 0, 1}, ClipBottom},
		{"far", [4]float32{0, 0, 2, 1}, ClipFar},
		{"near", [4]float32{0, 0, -2, 1}, ClipNear},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, ClipInside&^tt.bit, ClipMask(tt.v))
		})
	}
}

func TestClipMasks_MatchesScalar(t *testing.T) {
	verts := [][4]float32{
		{0, 0, 0, 1}, {3, 0, 0, 1}, {0, -3, 0, 1}, {0, 0, 5, 1},
		{1, 1, 1, 1}, {-1, -1, -1, 1}, {0.5, 0.5, 0.5, 0.25},
	}
	got := make([]uint8, len(verts))
	ClipMasks(got, verts)
	for i, v := range verts {
		assert.Equal(t, ClipMask(v), got[i], "vertex %d", i)
	}
}

func TestTriviallyOutside(t *testing.T) {
	inside := ClipMask([4]float32{0, 0, 0, 1})
	right := ClipMask([4]float32{2, 0, 0, 1})
	left := ClipMask([4]float32{-2, 0, 0, 1})
	top := ClipMask([4]float32{0, 2, 0, 1})
	topRight := ClipMask([4]float32{2, 2, 0, 1})

	assert.False(t, TriviallyOutside())
	assert.False(t, TriviallyOutside(inside, inside, inside))
	assert.True(t, TriviallyOutside(right, right, topRight))
	// straddles the frustum: no single plane rejects all three vertices
	assert.False(t, TriviallyOutside(right, left, top))
	assert.False(t, TriviallyOutside(right, inside, right))
}

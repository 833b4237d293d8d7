package common

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvert4_RoundTrip(t *testing.T) {
	var m, inv, prod [16]float32
	BuildModelMatrix(m[:], [3]float32{1, -2, 3}, [3]float32{0.3, 1.1, -0.4}, [3]float32{2, 2, 2})
	require.True(t, Invert4(inv[:], m[:]))
	Mul4(prod[:], m[:], inv[:])
	id := IdentityMatrix()
	for i := range prod {
		assert.InDelta(t, id[i], prod[i], 1e-5, "element %d", i)
	}
}

func TestInvert4_Singular(t *testing.T) {
	var m, out [16]float32
	out[0] = 42
	assert.False(t, Invert4(out[:], m[:]))
	assert.Equal(t, float32(42), out[0])
}

func TestPerspective_DepthRange(t *testing.T) {
	var proj [16]float32
	Perspective(proj[:], math32.Pi/2, 1, 1, 100)

	near := MulVec4(proj[:], [4]float32{0, 0, -1, 1})
	far := MulVec4(proj[:], [4]float32{0, 0, -100, 1})
	assert.InDelta(t, 0, near[2]/near[3], 1e-5)
	assert.InDelta(t, 1, far[2]/far[3], 1e-4)
}

func TestLookAt_TargetOnNegativeZ(t *testing.T) {
	var view [16]float32
	LookAt(view[:], [3]float32{0, 0, 5}, [3]float32{0, 0, 0}, [3]float32{0, 1, 0})
	p := TransformPoint(view[:], [3]float32{0, 0, 0})
	assert.InDelta(t, 0, p[0], 1e-6)
	assert.InDelta(t, 0, p[1], 1e-6)
	assert.InDelta(t, -5, p[2], 1e-6)
}

func TestFrustum_SphereOutside(t *testing.T) {
	var view, proj, vp [16]float32
	LookAt(view[:], [3]float32{0, 0, 0}, [3]float32{0, 0, -1}, [3]float32{0, 1, 0})
	Perspective(proj[:], math32.Pi/2, 1, 0.1, 100)
	Mul4(vp[:], proj[:], view[:])
	f := ExtractFrustumFromMatrix(vp[:])

	tests := []struct {
		name    string
		center  [3]float32
		radius  float32
		outside bool
	}{
		{"ahead", [3]float32{0, 0, -10}, 1, false},
		{"behind", [3]float32{0, 0, 10}, 1, true},
		{"far left", [3]float32{-50, 0, -10}, 1, true},
		{"straddles left plane", [3]float32{-10.5, 0, -10}, 1, false},
		{"beyond far", [3]float32{0, 0, -200}, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.outside, f.SphereOutside(tt.center, tt.radius))
		})
	}
}

func TestWordsBytesRoundTrip(t *testing.T) {
	words := []uint32{0, 1, 0xDEADBEEF, math32.Float32bits(1.5)}
	assert.Equal(t, words, BytesToWords(WordsToBytes(words)))
}

func TestCeilDiv(t *testing.T) {
	assert.Equal(t, uint32(0), CeilDiv(0, 256))
	assert.Equal(t, uint32(1), CeilDiv(1, 256))
	assert.Equal(t, uint32(1), CeilDiv(256, 256))
	assert.Equal(t, uint32(2), CeilDiv(257, 256))
}

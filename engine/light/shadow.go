package light

import (
	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/chewxy/math32"
)

// DefaultShadowMapSize is the default width and height in texels of the shadow depth target.
const DefaultShadowMapSize = 2048

// DefaultShadowHalfExtent is the default orthographic half-extent (in world units)
// of the directional shadow volume.
const DefaultShadowHalfExtent float32 = 40.0

// DefaultShadowNear is the default near plane of the directional shadow projection.
const DefaultShadowNear float32 = 0.1

// DefaultShadowFar is the default far plane of the directional shadow projection.
const DefaultShadowFar float32 = 200.0

// ShadowVolume is the orthographic volume a directional light casts shadows through.
type ShadowVolume struct {
	// Direction is the normalized direction the light travels.
	Direction [3]float32
	// Center is the world-space point the volume is centered on.
	Center [3]float32
	// HalfExtent is half the width and height of the volume.
	HalfExtent float32
	// Near and Far bound the volume along Direction, measured from the eye.
	Near, Far float32
}

// NewShadowVolume creates a shadow volume for a directional light with default depth range.
//
// Parameters:
//   - l: the directional light
//   - center: the world-space center of the shadowed region
//   - halfExtent: half the width of the volume; zero selects DefaultShadowHalfExtent
//
// Returns:
//   - ShadowVolume: the volume
func NewShadowVolume(l Light, center [3]float32, halfExtent float32) ShadowVolume {
	if halfExtent <= 0 {
		halfExtent = DefaultShadowHalfExtent
	}
	return ShadowVolume{
		Direction:  l.Direction(),
		Center:     center,
		HalfExtent: halfExtent,
		Near:       DefaultShadowNear,
		Far:        max(DefaultShadowFar, 4*halfExtent),
	}
}

// Eye returns the light's virtual eye: behind the center, opposite the light direction,
// halfway down the depth range.
func (s ShadowVolume) Eye() [3]float32 {
	return common.Sub3(s.Center, common.Scale3(s.Direction, s.Far*0.5))
}

// ViewProj computes the orthographic view-projection of the volume.
//
// Returns:
//   - [16]float32: the column-major view-projection matrix
func (s ShadowVolume) ViewProj() [16]float32 {
	// a light pointing nearly straight up or down needs another up vector
	up := [3]float32{0, 1, 0}
	if math32.Abs(s.Direction[1]) > 0.99 {
		up = [3]float32{1, 0, 0}
	}

	var view, proj, vp [16]float32
	common.LookAt(view[:], s.Eye(), s.Center, up)
	common.Ortho(proj[:], -s.HalfExtent, s.HalfExtent, -s.HalfExtent, s.HalfExtent, s.Near, s.Far)
	common.Mul4(vp[:], proj[:], view[:])
	return vp
}

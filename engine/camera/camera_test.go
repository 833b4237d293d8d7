package camera

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrbitController_WithEye(t *testing.T) {
	cc := NewOrbitController(WithEye([3]float32{0, 8, 30}, [3]float32{0, 0, 0}))

	pos := cc.Position()
	assert.InDelta(t, 0, pos[0], 1e-4)
	assert.InDelta(t, 8, pos[1], 1e-4)
	assert.InDelta(t, 30, pos[2], 1e-4)
	assert.InDelta(t, math32.Sqrt(8*8+30*30), cc.Radius(), 1e-4)
	assert.InDelta(t, 0, cc.Azimuth(), 1e-6)
}

func TestOrbitController_ZoomClampsRadius(t *testing.T) {
	cc := NewOrbitController(WithRadius(10), WithRadiusBounds(2, 20), WithZoomSpeed(1))

	cc.Zoom(100)
	assert.Equal(t, float32(2), cc.Radius())
	cc.Zoom(-100)
	assert.Equal(t, float32(20), cc.Radius())
}

func TestOrbitController_OrbitClampsElevation(t *testing.T) {
	cc := NewOrbitController(WithElevation(0), WithOrbitSpeed(0.1))

	cc.Orbit(0, 1000)
	assert.Less(t, cc.Elevation(), math32.Pi/2)

	pos := cc.Position()
	assert.Less(t, pos[1], cc.Radius(), "the eye never reaches the pole")
}

func TestOrbitController_SetTargetKeepsOffset(t *testing.T) {
	cc := NewOrbitController(WithRadius(5), WithElevation(0))
	before := cc.Position()

	cc.SetTarget([3]float32{1, 2, 3})
	after := cc.Position()
	for i := range 3 {
		assert.InDelta(t, before[i]+[3]float32{1, 2, 3}[i], after[i], 1e-5)
	}
}

func TestCamera_TargetProjectsToCenter(t *testing.T) {
	target := [3]float32{1, 0, -2}
	cc := NewOrbitController(WithEye([3]float32{4, 3, 10}, target))
	cam := NewCamera(WithController(cc), WithAspect(16.0/9.0), WithDepthRange(0.5, 200))

	vp := cam.ViewProjectionMatrix()
	clip := common.MulVec4(vp[:], [4]float32{target[0], target[1], target[2], 1})
	require.Greater(t, clip[3], float32(0))
	assert.InDelta(t, 0, clip[0]/clip[3], 1e-4)
	assert.InDelta(t, 0, clip[1]/clip[3], 1e-4)

	eye := cam.Eye()
	assert.InDelta(t, 4, eye[0], 1e-4)
	assert.Equal(t, float32(0.5), cam.Near())
	assert.Equal(t, float32(200), cam.Far())
}

func TestCamera_UpdateFollowsController(t *testing.T) {
	cc := NewOrbitController(WithRadius(10))
	cam := NewCamera(WithController(cc))
	before := cam.ViewMatrix()

	cc.Orbit(10, 0)
	assert.Equal(t, before, cam.ViewMatrix(), "matrices change only on Update")
	cam.Update()
	assert.NotEqual(t, before, cam.ViewMatrix())
}

func TestCamera_SetAspectIgnoresDegenerate(t *testing.T) {
	cam := NewCamera(WithAspect(2))
	cam.SetAspect(0)
	assert.Equal(t, float32(2), cam.Aspect())
	cam.SetAspect(1.5)
	assert.Equal(t, float32(1.5), cam.Aspect())
}

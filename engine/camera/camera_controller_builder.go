package camera

import "github.com/chewxy/math32"

// OrbitControllerOption is a functional option for configuring an OrbitController.
type OrbitControllerOption func(*orbitController)

// WithRadius sets the initial orbit radius (distance from target).
//
// Parameters:
//   - radius: distance from the orbit target
//
// Returns:
//   - OrbitControllerOption: functional option to set the radius
func WithRadius(radius float32) OrbitControllerOption {
	return func(cc *orbitController) {
		cc.radius = radius
	}
}

// WithAzimuth sets the initial horizontal angle around the Y axis.
//
// Parameters:
//   - azimuth: horizontal angle in radians (0 = +Z axis)
//
// Returns:
//   - OrbitControllerOption: functional option to set the azimuth
func WithAzimuth(azimuth float32) OrbitControllerOption {
	return func(cc *orbitController) {
		cc.azimuth = azimuth
	}
}

// WithElevation sets the initial vertical angle from the horizontal plane.
//
// Parameters:
//   - elevation: vertical angle in radians (0 = horizontal)
//
// Returns:
//   - OrbitControllerOption: functional option to set the elevation
func WithElevation(elevation float32) OrbitControllerOption {
	return func(cc *orbitController) {
		cc.elevation = elevation
	}
}

// WithTarget sets the look-at/pivot point.
//
// Parameters:
//   - target: the world-space pivot
//
// Returns:
//   - OrbitControllerOption: functional option to set the target position
func WithTarget(target [3]float32) OrbitControllerOption {
	return func(cc *orbitController) {
		cc.target = target
	}
}

// WithEye derives target, radius and angles from an eye position looking at target.
// An eye on the target leaves the spherical coordinates unchanged.
//
// Parameters:
//   - eye: the world-space eye
//   - target: the look-at point
//
// Returns:
//   - OrbitControllerOption: functional option placing the eye
func WithEye(eye, target [3]float32) OrbitControllerOption {
	return func(cc *orbitController) {
		cc.target = target
		d := [3]float32{eye[0] - target[0], eye[1] - target[1], eye[2] - target[2]}
		r := math32.Sqrt(d[0]*d[0] + d[1]*d[1] + d[2]*d[2])
		if r < 1e-6 {
			return
		}
		cc.radius = r
		cc.elevation = math32.Asin(d[1] / r)
		cc.azimuth = math32.Atan2(d[0], d[2])
	}
}

// WithRadiusBounds sets the zoom limits.
//
// Parameters:
//   - minRadius, maxRadius: the closest and farthest allowed distances
//
// Returns:
//   - OrbitControllerOption: functional option to set the bounds
func WithRadiusBounds(minRadius, maxRadius float32) OrbitControllerOption {
	return func(cc *orbitController) {
		cc.minRadius, cc.maxRadius = minRadius, maxRadius
	}
}

// WithOrbitSpeed sets the angle of one orbit step.
//
// Parameters:
//   - speed: radians per step
//
// Returns:
//   - OrbitControllerOption: functional option to set the orbit speed
func WithOrbitSpeed(speed float32) OrbitControllerOption {
	return func(cc *orbitController) {
		cc.orbitSpeed = speed
	}
}

// WithZoomSpeed sets the distance of one zoom step.
//
// Parameters:
//   - speed: world units per step
//
// Returns:
//   - OrbitControllerOption: functional option to set the zoom speed
func WithZoomSpeed(speed float32) OrbitControllerOption {
	return func(cc *orbitController) {
		cc.zoomSpeed = speed
	}
}

package common

// Clip mask bits. A bit is set when the vertex lies on the inner side of the plane.
//
//	bit 0: w - x >= 0
//	bit 1: w + x >= 0
//	bit 2: w - y >= 0
//	bit 3: w + y >= 0
//	bit 4: w - z >= 0
//	bit 5: w + z >= 0
const (
	ClipRight  uint8 = 1 << 0
	ClipLeft   uint8 = 1 << 1
	ClipTop    uint8 = 1 << 2
	ClipBottom uint8 = 1 << 3
	ClipFar    uint8 = 1 << 4
	ClipNear   uint8 = 1 << 5

	// ClipInside is the mask of a vertex inside all six planes.
	ClipInside uint8 = 0x3F
)

// ClipMask computes the 6-bit inside mask of a homogeneous clip-space vertex.
// The near test uses w + z >= 0, which is conservative for [0, w] depth ranges.
//
// Parameters:
//   - v: the clip-space vertex (x, y, z, w)
//
// Returns:
//   - uint8: the packed inside bits, ClipInside when the vertex is inside every plane
func ClipMask(v [4]float32) uint8 {
	var m uint8
	if v[3]-v[0] >= 0 {
		m |= ClipRight
	}
	if v[3]+v[0] >= 0 {
		m |= ClipLeft
	}
	if v[3]-v[1] >= 0 {
		m |= ClipTop
	}
	if v[3]+v[1] >= 0 {
		m |= ClipBottom
	}
	if v[3]-v[2] >= 0 {
		m |= ClipFar
	}
	if v[3]+v[2] >= 0 {
		m |= ClipNear
	}
	return m
}

// ClipMasks computes ClipMask for every vertex in verts. It processes four vertices
// per step so the compiler can keep the comparisons in registers, then finishes the tail.
//
// Parameters:
//   - dst: destination masks, must be at least len(verts) long
//   - verts: clip-space vertices
func ClipMasks(dst []uint8, verts [][4]float32) {
	n := len(verts)
	i := 0
	for ; i+4 <= n; i += 4 {
		dst[i] = ClipMask(verts[i])
		dst[i+1] = ClipMask(verts[i+1])
		dst[i+2] = ClipMask(verts[i+2])
		dst[i+3] = ClipMask(verts[i+3])
	}
	for ; i < n; i++ {
		dst[i] = ClipMask(verts[i])
	}
}

// TriviallyOutside reports whether a primitive built from the given vertex masks lies
// entirely outside a single plane: the AND of the vertices' outside masks is non-zero.
// An empty mask list is never outside.
//
// Parameters:
//   - masks: the inside masks of the primitive's vertices
//
// Returns:
//   - bool: true if every vertex fails the same plane
func TriviallyOutside(masks ...uint8) bool {
	if len(masks) == 0 {
		return false
	}
	outside := ClipInside
	for _, m := range masks {
		outside &= ^m & ClipInside
	}
	return outside != 0
}

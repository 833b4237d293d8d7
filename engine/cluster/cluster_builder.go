package cluster

// builder carries the options of a Build call.
type builder struct {
	triangleCount uint32
}

// BuildOption is a functional option applied to a cluster Build call.
type BuildOption func(*builder)

// WithTriangleCount overrides the maximum number of triangles per cluster.
// Values of zero are ignored.
//
// Parameters:
//   - n: the maximum triangle count of one cluster
//
// Returns:
//   - BuildOption: a function that applies the triangle count to the build
func WithTriangleCount(n uint32) BuildOption {
	return func(b *builder) {
		if n > 0 {
			b.triangleCount = n
		}
	}
}

package mesh

import "github.com/Carmen-Shannon/oxy-cull/engine/cluster"

// MeshBuilderOption is a functional option applied to a mesh when it is added to the Geometry arena.
type MeshBuilderOption func(*meshOptions)

// meshOptions carries the per-call options of Geometry.AddMesh.
type meshOptions struct {
	clusterOptions []cluster.BuildOption
}

// WithClusterOptions forwards options to the cluster builder for this mesh.
//
// Parameters:
//   - options: the cluster build options
//
// Returns:
//   - MeshBuilderOption: a function that applies the cluster options
func WithClusterOptions(options ...cluster.BuildOption) MeshBuilderOption {
	return func(o *meshOptions) {
		o.clusterOptions = append(o.clusterOptions, options...)
	}
}

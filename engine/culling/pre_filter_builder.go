package culling

// PreFilterOption is a functional option applied to a PreFilter during construction via NewPreFilter.
type PreFilterOption func(*PreFilter)

// WithClipMaskTest enables the clip-mask test on each cluster's bounding cube after the
// sphere test passes.
//
// Parameters:
//   - enabled: true to run the clip-mask test
//
// Returns:
//   - PreFilterOption: a function that applies the option to a PreFilter
func WithClipMaskTest(enabled bool) PreFilterOption {
	return func(p *PreFilter) {
		p.clipMaskTest = enabled
	}
}

// WithClusterSort orders the survivors of each mesh front to back by camera distance.
// It only changes the order of records, never the surviving set.
//
// Parameters:
//   - enabled: true to sort survivors
//
// Returns:
//   - PreFilterOption: a function that applies the option to a PreFilter
func WithClusterSort(enabled bool) PreFilterOption {
	return func(p *PreFilter) {
		p.clusterSort = enabled
	}
}

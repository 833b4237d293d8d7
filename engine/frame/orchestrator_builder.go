package frame

// OrchestratorOption is a functional option used to configure an Orchestrator during construction.
type OrchestratorOption func(*Orchestrator)

// WithRenderMode sets the initial render mode.
//
// Parameters:
//   - m: the render mode
//
// Returns:
//   - OrchestratorOption: a function that sets the render mode
func WithRenderMode(m RenderMode) OrchestratorOption {
	return func(o *Orchestrator) {
		o.mode.Store(int32(m))
	}
}

// WithAsyncCompute submits filtering, compaction and light clustering to the compute queue.
//
// Parameters:
//   - enabled: true for the async path
//
// Returns:
//   - OrchestratorOption: a function that sets the queue layout
func WithAsyncCompute(enabled bool) OrchestratorOption {
	return func(o *Orchestrator) {
		o.async.Store(enabled)
	}
}

// WithClipMaskTest enables the pre-filter's bounding-box clip mask test.
//
// Parameters:
//   - enabled: true to enable the test
//
// Returns:
//   - OrchestratorOption: a function that configures the pre-filter
func WithClipMaskTest(enabled bool) OrchestratorOption {
	return func(o *Orchestrator) {
		o.clipMaskTest = enabled
	}
}

// WithClusterSort orders surviving clusters front to back within each mesh.
//
// Parameters:
//   - enabled: true to sort
//
// Returns:
//   - OrchestratorOption: a function that configures the pre-filter
func WithClusterSort(enabled bool) OrchestratorOption {
	return func(o *Orchestrator) {
		o.clusterSort = enabled
	}
}

// WithUIRecorder sets the overlay recorder called after the shade pass.
//
// Parameters:
//   - ui: the recorder, or nil for none
//
// Returns:
//   - OrchestratorOption: a function that sets the recorder
func WithUIRecorder(ui UIRecorder) OrchestratorOption {
	return func(o *Orchestrator) {
		o.ui = ui
	}
}

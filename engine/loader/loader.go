// Package loader imports scene geometry: glTF/GLB models and procedural shapes tessellated
// from signed distance functions.
package loader

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/model"
)

// LoaderBackendType identifies the model file format backend to use.
type LoaderBackendType int

const (
	// BackendTypeGLTF selects the glTF/GLB loader backend.
	BackendTypeGLTF LoaderBackendType = iota
)

// defaultMeshCells is the marching cubes resolution of procedural shapes.
const defaultMeshCells = 48

// loaderBackend decodes one model file format. Load resolves external resources relative to
// path; LoadReader accepts only self-contained streams.
type loaderBackend interface {
	Load(path string) (*model.ImportedModel, error)
	LoadReader(name string, r io.Reader) (*model.ImportedModel, error)
}

// loader is the implementation of the Loader interface.
type loader struct {
	mu sync.RWMutex

	modelCache map[string]model.Model
	meshCells  int

	backend loaderBackend
}

// Loader loads and caches models. It abstracts the file format behind a backend and
// generates procedural shapes on demand.
type Loader interface {
	// Load imports a model file and caches the result by path.
	// If the model is already cached, the cached version is returned.
	//
	// Parameters:
	//   - path: the file path to the model file
	//
	// Returns:
	//   - model.Model: the loaded and cached model
	//   - error: error if loading fails
	Load(path string) (model.Model, error)

	// LoadReader imports a self-contained model from a reader stream and caches it by name.
	//
	// Parameters:
	//   - name: the cache key for the loaded model
	//   - r: the reader providing model data
	//
	// Returns:
	//   - model.Model: the loaded model
	//   - error: error if loading fails
	LoadReader(name string, r io.Reader) (model.Model, error)

	// Procedural tessellates a procedural shape and caches it by the shape's name.
	//
	// Parameters:
	//   - shape: the shape to generate
	//
	// Returns:
	//   - model.Model: the generated model
	//   - error: error if the shape is invalid
	Procedural(shape Shape) (model.Model, error)

	// Get retrieves a cached model by name. Returns nil if not found.
	//
	// Parameters:
	//   - name: the cache key to look up
	//
	// Returns:
	//   - model.Model: the cached model or nil
	Get(name string) model.Model

	// Models returns a copy of the model cache.
	//
	// Returns:
	//   - map[string]model.Model: all cached models keyed by name
	Models() map[string]model.Model
}

var _ Loader = &loader{}

// NewLoader creates a new Loader instance with the specified backend type and options applied.
//
// Parameters:
//   - backendType: the type of loader backend to use (e.g., BackendTypeGLTF)
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: a new instance of Loader configured with the provided backend and options
func NewLoader(backendType LoaderBackendType, options ...LoaderBuilderOption) Loader {
	l := &loader{
		modelCache: make(map[string]model.Model),
		meshCells:  defaultMeshCells,
	}

	switch backendType {
	case BackendTypeGLTF:
		l.backend = gltfImporter{}
	}

	for _, option := range options {
		option(l)
	}
	return l
}

func (l *loader) Load(path string) (model.Model, error) {
	if cached := l.Get(path); cached != nil {
		return cached, nil
	}

	backend, err := l.resolveBackend(path)
	if err != nil {
		return nil, err
	}
	imported, err := backend.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return l.store(path, model.FromImported(imported)), nil
}

func (l *loader) LoadReader(name string, r io.Reader) (model.Model, error) {
	if cached := l.Get(name); cached != nil {
		return cached, nil
	}

	imported, err := l.backend.LoadReader(name, r)
	if err != nil {
		return nil, fmt.Errorf("failed to load from reader %q: %w", name, err)
	}
	return l.store(name, model.FromImported(imported)), nil
}

func (l *loader) Procedural(shape Shape) (model.Model, error) {
	key := shape.key()
	if cached := l.Get(key); cached != nil {
		return cached, nil
	}

	mesh, err := tessellate(shape, l.meshCells)
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s: %w", key, err)
	}
	return l.store(key, model.NewModel(model.WithName(key), model.WithMeshes(mesh))), nil
}

func (l *loader) Get(name string) model.Model {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.modelCache[name]
}

func (l *loader) Models() map[string]model.Model {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make(map[string]model.Model, len(l.modelCache))
	for k, v := range l.modelCache {
		result[k] = v
	}
	return result
}

// store caches m under key unless a concurrent load got there first, and returns the cached model.
func (l *loader) store(key string, m model.Model) model.Model {
	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.modelCache[key]; ok {
		return existing
	}
	l.modelCache[key] = m
	common.Logger().Debug("model loaded",
		slog.String("model", key),
		slog.Int("meshes", len(m.Meshes())),
		slog.Int("triangles", m.TriangleCount()))
	return m
}

// resolveBackend selects an appropriate loader backend based on the file extension.
// Currently only glTF/GLB is supported.
func (l *loader) resolveBackend(path string) (loaderBackend, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".gltf", ".glb":
		return l.backend, nil
	default:
		return nil, fmt.Errorf("unsupported model format: %s", ext)
	}
}

package loader

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-cull/engine/model"
	"github.com/qmuntal/gltf"
)

// gltfImporter is the loaderBackend for glTF/GLB. It decodes the document and runs the mesh
// and material extractors over the default scene.
type gltfImporter struct{}

var _ loaderBackend = gltfImporter{}

func (imp gltfImporter) Load(path string) (*model.ImportedModel, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return imp.importDocument(doc, path)
}

func (imp gltfImporter) LoadReader(name string, r io.Reader) (*model.ImportedModel, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(r).Decode(doc); err != nil {
		return nil, fmt.Errorf("failed to parse from reader: %w", err)
	}
	return imp.importDocument(doc, name)
}

// importDocument extracts materials first so mesh extraction can route primitives into the
// opaque or alpha-tested set.
func (imp gltfImporter) importDocument(doc *gltf.Document, fallbackName string) (*model.ImportedModel, error) {
	materials := newGLTFMaterialExtractor(doc).ExtractAllMaterials()

	meshes, err := newGLTFMeshExtractor(doc, materials).ExtractScene()
	if err != nil {
		return nil, fmt.Errorf("mesh extraction failed: %w", err)
	}

	return &model.ImportedModel{
		Name:      gltfExtractModelName(doc, fallbackName),
		Meshes:    meshes,
		Materials: materials,
	}, nil
}

// gltfExtractModelName derives a model name from the default scene or a path fallback.
func gltfExtractModelName(doc *gltf.Document, fallback string) string {
	if doc.Scene != nil && *doc.Scene < len(doc.Scenes) {
		if name := doc.Scenes[*doc.Scene].Name; name != "" {
			return name
		}
	}
	if fallback != "" {
		return strings.TrimSuffix(filepath.Base(fallback), filepath.Ext(fallback))
	}
	return "unnamed_model"
}

package loader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-cull/engine/model"
	"github.com/qmuntal/gltf"
)

// defaultAlphaCutoff is the glTF default for MASK materials without an explicit cutoff.
const defaultAlphaCutoff = 0.5

// gltfMaterialExtractorImpl is the implementation of the gltfMaterialExtractor interface.
type gltfMaterialExtractorImpl struct {
	doc *gltf.Document
}

// gltfMaterialExtractor reads the visibility-relevant material state: alpha mode, cutoff,
// base colour alpha and double-sidedness. Textures and the other PBR factors are not read.
type gltfMaterialExtractor interface {
	// ExtractAllMaterials converts every document material, preserving indices.
	//
	// Returns:
	//   - []model.Material: one entry per glTF material
	ExtractAllMaterials() []model.Material
}

var _ gltfMaterialExtractor = &gltfMaterialExtractorImpl{}

// newGLTFMaterialExtractor creates a material extractor over a decoded document.
func newGLTFMaterialExtractor(doc *gltf.Document) gltfMaterialExtractor {
	return &gltfMaterialExtractorImpl{doc: doc}
}

func (e *gltfMaterialExtractorImpl) ExtractAllMaterials() []model.Material {
	out := make([]model.Material, len(e.doc.Materials))
	for i, m := range e.doc.Materials {
		if m == nil {
			continue
		}
		mat := model.Material{
			Name:        m.Name,
			DoubleSided: m.DoubleSided,
			AlphaCutoff: defaultAlphaCutoff,
			Alpha:       1,
		}
		if m.PBRMetallicRoughness != nil {
			mat.Alpha = float32(m.PBRMetallicRoughness.BaseColorFactorOrDefault()[3])
		}
		if mat.Name == "" {
			mat.Name = fmt.Sprintf("material_%d", i)
		}
		switch m.AlphaMode {
		case gltf.AlphaMask:
			mat.AlphaMode = model.AlphaModeMask
		case gltf.AlphaBlend:
			mat.AlphaMode = model.AlphaModeBlend
		}
		if m.AlphaCutoff != nil {
			mat.AlphaCutoff = float32(*m.AlphaCutoff)
		}
		out[i] = mat
	}
	return out
}

// Package culling implements the per-frame visibility decision: the CPU cluster pre-filter,
// the batch chunker that feeds the triangle filtering kernel, and the kernels that filter
// triangles and compact the surviving draws into indirect arguments.
package culling

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/config"
)

// ViewKind identifies what a culling view renders for.
type ViewKind int

const (
	// ViewKindCamera is the main camera view.
	ViewKindCamera ViewKind = iota
	// ViewKindShadow is the shadow-casting light's view.
	ViewKindShadow
)

func (k ViewKind) String() string {
	switch k {
	case ViewKindCamera:
		return "camera"
	case ViewKindShadow:
		return "shadow"
	default:
		return fmt.Sprintf("ViewKind(%d)", int(k))
	}
}

// CullMode selects which triangle facing a view rejects.
type CullMode uint32

const (
	// CullModeBack rejects back-facing (clockwise on screen) triangles.
	CullModeBack CullMode = iota
	// CullModeFront rejects front-facing triangles.
	CullModeFront
	// CullModeNone rejects nothing on facing grounds. Shadow views use it so that open and
	// single-sided geometry still casts.
	CullModeNone
)

// View is one culling and rendering viewpoint with its own frustum.
type View struct {
	Kind     ViewKind
	ViewProj [16]float32
	Eye      [3]float32
	CullMode CullMode
	Width    float32
	Height   float32

	frustum common.Frustum
}

// NewCameraView creates the camera view.
//
// Parameters:
//   - viewProj: the column-major world-to-clip matrix
//   - eye: the world-space camera position
//   - width, height: the viewport size in pixels
//
// Returns:
//   - View: the view, culling back faces
func NewCameraView(viewProj [16]float32, eye [3]float32, width, height float32) View {
	return newView(ViewKindCamera, viewProj, eye, CullModeBack, width, height)
}

// NewShadowView creates the shadow view of a light. Directional lights have no finite eye;
// eye should be a point far back along the light direction so the cone test stays meaningful.
//
// Parameters:
//   - viewProj: the column-major world-to-clip matrix of the light
//   - eye: the world-space light position
//   - size: the shadow map edge length in texels
//
// Returns:
//   - View: the view, culling nothing on facing grounds
func NewShadowView(viewProj [16]float32, eye [3]float32, size float32) View {
	return newView(ViewKindShadow, viewProj, eye, CullModeNone, size, size)
}

func newView(kind ViewKind, viewProj [16]float32, eye [3]float32, mode CullMode, width, height float32) View {
	return View{
		Kind:     kind,
		ViewProj: viewProj,
		Eye:      eye,
		CullMode: mode,
		Width:    width,
		Height:   height,
		frustum:  common.ExtractFrustumFromMatrix(viewProj[:]),
	}
}

// Frustum returns the world-space frustum planes of the view.
//
// Returns:
//   - common.Frustum: the planes, inside facing
func (v *View) Frustum() common.Frustum {
	return v.frustum
}

// FrameConstants packs the views into the per-frame constant block.
//
// Parameters:
//   - views: the active views in view-index order
//   - drawSlots: the number of draw slots allocated this frame
//   - indexCapacity: the per-view capacity of the filtered index stream, in indices
//   - lights: the number of uploaded lights
//
// Returns:
//   - GPUFrameConstants: the constant block
//   - error: a config.ErrCapacity wrapped error if there are too many views
func FrameConstants(views []View, drawSlots, indexCapacity, lights uint32) (GPUFrameConstants, error) {
	if len(views) > config.MaxViews {
		return GPUFrameConstants{}, fmt.Errorf("%d views exceed %d: %w", len(views), config.MaxViews, config.ErrCapacity)
	}
	g := GPUFrameConstants{
		ViewCount:     uint32(len(views)),
		DrawSlotCount: drawSlots,
		IndexCapacity: indexCapacity,
		LightCount:    lights,
	}
	for i, v := range views {
		g.Views[i] = GPUViewConstants{
			ViewProj:       v.ViewProj,
			Eye:            [4]float32{v.Eye[0], v.Eye[1], v.Eye[2], 1},
			CullMode:       uint32(v.CullMode),
			ViewportWidth:  v.Width,
			ViewportHeight: v.Height,
		}
	}
	return g, nil
}

package shader

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// BindingKind classifies a WGSL resource declaration.
type BindingKind int

const (
	// BindingUniform is a var<uniform> buffer.
	BindingUniform BindingKind = iota
	// BindingStorage is a var<storage, read_write> buffer.
	BindingStorage
	// BindingReadOnlyStorage is a var<storage> or var<storage, read> buffer.
	BindingReadOnlyStorage
	// BindingTexture is a sampled float texture.
	BindingTexture
	// BindingUintTexture is a sampled unsigned integer texture.
	BindingUintTexture
	// BindingDepthTexture is a depth texture.
	BindingDepthTexture
	// BindingSampler is a filtering sampler.
	BindingSampler
)

// Binding is one resource declaration reflected from WGSL source.
type Binding struct {
	Group    int
	Binding  int
	Name     string
	Kind     BindingKind
	TypeName string
}

// Writable reports whether the shader may write through this binding.
func (b Binding) Writable() bool {
	return b.Kind == BindingStorage
}

// IsBuffer reports whether the binding is backed by a buffer.
func (b Binding) IsBuffer() bool {
	return b.Kind <= BindingReadOnlyStorage
}

var (
	bindingRegex       = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+);`)
	computeEntryRegex  = regexp.MustCompile(`@compute\s+@workgroup_size\(([^)]*)\)\s*fn\s+(\w+)`)
	vertexEntryRegex   = regexp.MustCompile(`@vertex\s+fn\s+(\w+)`)
	fragmentEntryRegex = regexp.MustCompile(`@fragment\s+fn\s+(\w+)`)
	constRegex         = regexp.MustCompile(`const\s+(\w+)\s*(?::\s*\w+)?\s*=\s*(\d+)u?\s*;`)
)

// parse reflects the entry point, workgroup size and resource bindings of the source.
func (s *shader) parse() error {
	switch s.shaderType {
	case ShaderTypeCompute:
		m := computeEntryRegex.FindStringSubmatch(s.source)
		if m == nil {
			return fmt.Errorf("no @compute entry point")
		}
		s.entryPoint = m[2]
		size, err := s.parseWorkgroupSize(m[1])
		if err != nil {
			return err
		}
		s.workGroupSize = size
	case ShaderTypeVertex:
		m := vertexEntryRegex.FindStringSubmatch(s.source)
		if m == nil {
			return fmt.Errorf("no @vertex entry point")
		}
		s.entryPoint = m[1]
	case ShaderTypeFragment:
		m := fragmentEntryRegex.FindStringSubmatch(s.source)
		if m == nil {
			return fmt.Errorf("no @fragment entry point")
		}
		s.entryPoint = m[1]
	}

	for _, m := range bindingRegex.FindAllStringSubmatch(s.source, -1) {
		group, _ := strconv.Atoi(m[1])
		binding, _ := strconv.Atoi(m[2])
		kind, err := classify(m[3], strings.TrimSpace(m[5]))
		if err != nil {
			return fmt.Errorf("binding %s: %w", m[4], err)
		}
		s.bindings = append(s.bindings, Binding{
			Group:    group,
			Binding:  binding,
			Name:     m[4],
			Kind:     kind,
			TypeName: strings.TrimSpace(m[5]),
		})
	}
	sort.Slice(s.bindings, func(i, j int) bool {
		if s.bindings[i].Group != s.bindings[j].Group {
			return s.bindings[i].Group < s.bindings[j].Group
		}
		return s.bindings[i].Binding < s.bindings[j].Binding
	})
	return nil
}

// parseWorkgroupSize resolves literal or named-constant workgroup dimensions.
func (s *shader) parseWorkgroupSize(args string) ([3]uint32, error) {
	consts := make(map[string]uint32)
	for _, m := range constRegex.FindAllStringSubmatch(s.source, -1) {
		v, err := strconv.ParseUint(m[2], 10, 32)
		if err == nil {
			consts[m[1]] = uint32(v)
		}
	}

	size := [3]uint32{1, 1, 1}
	for i, part := range strings.Split(args, ",") {
		if i > 2 {
			return size, fmt.Errorf("workgroup_size has more than three dimensions")
		}
		part = strings.TrimSuffix(strings.TrimSpace(part), "u")
		if part == "" {
			continue
		}
		if v, err := strconv.ParseUint(part, 10, 32); err == nil {
			size[i] = uint32(v)
			continue
		}
		v, ok := consts[part]
		if !ok {
			return size, fmt.Errorf("unknown workgroup_size constant %q", part)
		}
		size[i] = v
	}
	return size, nil
}

// classify maps an address space and type to a BindingKind.
func classify(addressSpace, typeName string) (BindingKind, error) {
	space := strings.ReplaceAll(addressSpace, " ", "")
	switch {
	case space == "uniform":
		return BindingUniform, nil
	case space == "storage,read_write":
		return BindingStorage, nil
	case space == "storage" || space == "storage,read":
		return BindingReadOnlyStorage, nil
	case space != "":
		return 0, fmt.Errorf("unsupported address space %q", addressSpace)
	}

	switch {
	case strings.HasPrefix(typeName, "texture_depth_2d"):
		return BindingDepthTexture, nil
	case strings.HasPrefix(typeName, "texture_2d<u32>"):
		return BindingUintTexture, nil
	case strings.HasPrefix(typeName, "texture_2d"):
		return BindingTexture, nil
	case typeName == "sampler":
		return BindingSampler, nil
	}
	return 0, fmt.Errorf("unsupported resource type %q", typeName)
}

// LayoutDescriptors converts reflected bindings into wgpu bind group layout descriptors.
// Bindings that appear more than once (e.g. from vertex and fragment stages of the same
// source) are emitted once.
//
// Parameters:
//   - label: the label prefix for the descriptors
//   - bindings: the reflected bindings
//   - visibility: the shader stages the bindings are visible to
//
// Returns:
//   - map[int]wgpu.BindGroupLayoutDescriptor: descriptors keyed by group index
func LayoutDescriptors(label string, bindings []Binding, visibility wgpu.ShaderStage) map[int]wgpu.BindGroupLayoutDescriptor {
	out := make(map[int]wgpu.BindGroupLayoutDescriptor)
	seen := make(map[[2]int]bool)
	for _, b := range bindings {
		if seen[[2]int{b.Group, b.Binding}] {
			continue
		}
		seen[[2]int{b.Group, b.Binding}] = true

		entry := wgpu.BindGroupLayoutEntry{
			Binding:    uint32(b.Binding),
			Visibility: visibility,
		}
		switch b.Kind {
		case BindingUniform:
			entry.Buffer = wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform}
		case BindingStorage:
			entry.Buffer = wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}
		case BindingReadOnlyStorage:
			entry.Buffer = wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}
		case BindingTexture:
			entry.Texture = wgpu.TextureBindingLayout{SampleType: wgpu.TextureSampleTypeUnfilterableFloat, ViewDimension: wgpu.TextureViewDimension2D}
		case BindingUintTexture:
			entry.Texture = wgpu.TextureBindingLayout{SampleType: wgpu.TextureSampleTypeUint, ViewDimension: wgpu.TextureViewDimension2D}
		case BindingDepthTexture:
			entry.Texture = wgpu.TextureBindingLayout{SampleType: wgpu.TextureSampleTypeDepth, ViewDimension: wgpu.TextureViewDimension2D}
		case BindingSampler:
			entry.Sampler = wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering}
		}

		desc := out[b.Group]
		desc.Label = label + " Group " + strconv.Itoa(b.Group)
		desc.Entries = append(desc.Entries, entry)
		out[b.Group] = desc
	}
	return out
}

package bind_group_provider

import (
	"sort"
	"sync"
)

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	mu sync.Mutex

	// label is a debug label added for convenience.
	label string

	// sections holds the buffer ranges bound by this provider, keyed by binding index.
	sections map[int]BufferSection

	// bindGroups caches backend bind group objects keyed by pipeline key and group index.
	// They are created lazily by the renderer backend and dropped whenever a section changes.
	bindGroups map[string]any
}

// BindGroupProvider describes the buffer sections bound to one bind group of a pipeline.
// Components (frame resources, scene geometry, light grid) hold providers to declare what
// a dispatch or draw reads and writes. The renderer backend turns a provider into a native
// bind group the first time it is used with a pipeline and caches the result.
//
// Usage pattern:
//  1. Component creates a BindGroupProvider with WithSection options
//  2. CommandList.SetBindGroup(group, provider) records the binding
//  3. The backend resolves the sections when the list is submitted
type BindGroupProvider interface {
	// Release releases any backend bind groups cached by this provider.
	// Buffers referenced by sections are owned by the renderer and are not released.
	Release()

	// Label returns the debug label for this provider.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// Section returns the buffer section bound at binding.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - BufferSection: the section
	//   - bool: false if nothing is bound at binding
	Section(binding int) (BufferSection, bool)

	// Sections returns a copy of every bound section keyed by binding index.
	//
	// Returns:
	//   - map[int]BufferSection: the sections
	Sections() map[int]BufferSection

	// Bindings returns the bound binding indices in ascending order.
	//
	// Returns:
	//   - []int: the binding indices
	Bindings() []int

	// SetSection binds a buffer section and invalidates cached bind groups.
	//
	// Parameters:
	//   - binding: the binding index
	//   - section: the section to bind
	SetSection(binding int, section BufferSection)

	// CachedBindGroup returns the backend bind group cached under key.
	//
	// Parameters:
	//   - key: the cache key, typically pipeline key plus group index
	//
	// Returns:
	//   - any: the cached backend object, or nil
	CachedBindGroup(key string) any

	// SetCachedBindGroup stores a backend bind group under key.
	//
	// Parameters:
	//   - key: the cache key
	//   - bg: the backend object; released by Release if it has a Release method
	SetCachedBindGroup(key string, bg any)
}

// Compile-time check that bindGroupProvider implements BindGroupProvider
var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates a new BindGroupProvider with the provided options.
//
// Parameters:
//   - label: the debug label
//   - options: a variadic list of options to configure the provider
//
// Returns:
//   - BindGroupProvider: a new instance of BindGroupProvider configured with the provided options
func NewBindGroupProvider(label string, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		label:      label,
		sections:   make(map[int]BufferSection),
		bindGroups: make(map[string]any),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) Section(binding int) (BufferSection, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sections[binding]
	return s, ok
}

func (p *bindGroupProvider) Sections() map[int]BufferSection {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[int]BufferSection, len(p.sections))
	for k, v := range p.sections {
		out[k] = v
	}
	return out
}

func (p *bindGroupProvider) Bindings() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]int, 0, len(p.sections))
	for k := range p.sections {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func (p *bindGroupProvider) SetSection(binding int, section BufferSection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sections[binding] = section
	p.releaseCachedLocked()
}

func (p *bindGroupProvider) CachedBindGroup(key string) any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bindGroups[key]
}

func (p *bindGroupProvider) SetCachedBindGroup(key string, bg any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if old, ok := p.bindGroups[key].(interface{ Release() }); ok {
		old.Release()
	}
	p.bindGroups[key] = bg
}

func (p *bindGroupProvider) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.releaseCachedLocked()
}

func (p *bindGroupProvider) releaseCachedLocked() {
	for k, bg := range p.bindGroups {
		if r, ok := bg.(interface{ Release() }); ok {
			r.Release()
		}
		delete(p.bindGroups, k)
	}
}

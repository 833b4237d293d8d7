package bind_group_provider

// BindGroupProviderOption is a functional option used to configure a BindGroupProvider during construction.
type BindGroupProviderOption func(*bindGroupProvider)

// WithSection binds a buffer section at a binding index.
//
// Parameters:
//   - binding: the binding index for this section
//   - section: the buffer range to bind
//
// Returns:
//   - BindGroupProviderOption: a function that sets the section for the specified binding
func WithSection(binding int, section BufferSection) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.sections[binding] = section
	}
}

// WithBuffer binds a whole buffer at a binding index.
//
// Parameters:
//   - binding: the binding index for this buffer
//   - buf: the buffer to associate with this binding
//
// Returns:
//   - BindGroupProviderOption: a function that sets the buffer for the specified binding
func WithBuffer(binding int, buf Buffer) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.sections[binding] = Whole(buf)
	}
}

// WithSections binds multiple sections at once using a map of binding indices to sections.
//
// Parameters:
//   - sections: a map of binding indices to sections
//
// Returns:
//   - BindGroupProviderOption: a function that sets multiple sections for this provider
func WithSections(sections map[int]BufferSection) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		for k, v := range sections {
			p.sections[k] = v
		}
	}
}

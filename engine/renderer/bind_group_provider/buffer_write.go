package bind_group_provider

import "fmt"

// BufferWrite describes a single GPU buffer write operation targeting a specific binding
// on a BindGroupProvider at a given byte offset within the bound section.
type BufferWrite struct {
	Provider BindGroupProvider
	Binding  int
	Offset   uint64
	Data     []byte
}

// Resolve maps the write onto its target buffer.
//
// Returns:
//   - Buffer: the buffer to write
//   - uint64: the absolute byte offset within the buffer
//   - error: an error if the binding is empty or the data overruns the section
func (w BufferWrite) Resolve() (Buffer, uint64, error) {
	s, ok := w.Provider.Section(w.Binding)
	if !ok {
		return nil, 0, fmt.Errorf("provider %s has no section at binding %d", w.Provider.Label(), w.Binding)
	}
	if w.Offset+uint64(len(w.Data)) > s.Size {
		return nil, 0, fmt.Errorf("write of %d bytes at %d overruns %s binding %d (%d bytes)", len(w.Data), w.Offset, w.Provider.Label(), w.Binding, s.Size)
	}
	return s.Buffer, s.Offset + w.Offset, nil
}

package bind_group_provider

import "fmt"

// BufferUsage is a bit set describing how a buffer may be used.
type BufferUsage uint32

const (
	// BufferUsageStorage allows binding as a storage buffer.
	BufferUsageStorage BufferUsage = 1 << iota
	// BufferUsageUniform allows binding as a uniform buffer.
	BufferUsageUniform
	// BufferUsageIndirect allows use as indirect draw or dispatch arguments.
	BufferUsageIndirect
	// BufferUsageIndex allows use as an index buffer.
	BufferUsageIndex
	// BufferUsageCopySrc allows the buffer to be the source of a copy.
	BufferUsageCopySrc
	// BufferUsageCopyDst allows the buffer to be written by copies and queue writes.
	BufferUsageCopyDst
	// BufferUsageMapRead allows the CPU to read the buffer back.
	BufferUsageMapRead
)

// Has reports whether every bit in flags is set.
func (u BufferUsage) Has(flags BufferUsage) bool {
	return u&flags == flags
}

// Buffer is a backend-owned GPU buffer handle.
type Buffer interface {
	// Label returns the debug label of the buffer.
	//
	// Returns:
	//   - string: the label
	Label() string

	// Size returns the size of the buffer in bytes.
	//
	// Returns:
	//   - uint64: the size in bytes
	Size() uint64

	// Usage returns the usage flags the buffer was created with.
	//
	// Returns:
	//   - BufferUsage: the usage flags
	Usage() BufferUsage
}

// BufferSection is a byte range of a Buffer. Offsets used for storage bindings must be
// multiples of 256 bytes.
type BufferSection struct {
	Buffer Buffer
	Offset uint64
	Size   uint64
}

// Whole returns a section spanning the entire buffer.
//
// Parameters:
//   - buf: the buffer
//
// Returns:
//   - BufferSection: the section covering buf
func Whole(buf Buffer) BufferSection {
	return BufferSection{Buffer: buf, Size: buf.Size()}
}

// Sub returns a section relative to s.
//
// Parameters:
//   - offset: the byte offset from the start of s
//   - size: the byte size of the new section
//
// Returns:
//   - BufferSection: the nested section
func (s BufferSection) Sub(offset, size uint64) BufferSection {
	return BufferSection{Buffer: s.Buffer, Offset: s.Offset + offset, Size: size}
}

// Valid reports whether the section lies inside its buffer.
//
// Returns:
//   - error: nil if the section is in range
func (s BufferSection) Valid() error {
	if s.Buffer == nil {
		return fmt.Errorf("buffer section has no buffer")
	}
	if s.Offset+s.Size > s.Buffer.Size() {
		return fmt.Errorf("buffer section %s [%d, %d) exceeds size %d", s.Buffer.Label(), s.Offset, s.Offset+s.Size, s.Buffer.Size())
	}
	return nil
}

// Overlaps reports whether two sections share any byte of the same buffer.
func (s BufferSection) Overlaps(o BufferSection) bool {
	return s.Buffer == o.Buffer && s.Offset < o.Offset+o.Size && o.Offset < s.Offset+s.Size
}

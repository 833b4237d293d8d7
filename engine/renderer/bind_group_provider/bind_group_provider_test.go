package bind_group_provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBuffer struct {
	label string
	size  uint64
}

func (b *fakeBuffer) Label() string      { return b.label }
func (b *fakeBuffer) Size() uint64       { return b.size }
func (b *fakeBuffer) Usage() BufferUsage { return BufferUsageStorage | BufferUsageCopyDst }

type fakeBindGroup struct{ released bool }

func (g *fakeBindGroup) Release() { g.released = true }

func TestSections(t *testing.T) {
	buf := &fakeBuffer{label: "args", size: 1024}
	p := NewBindGroupProvider("args",
		WithBuffer(0, buf),
		WithSection(2, Whole(buf).Sub(256, 256)),
	)
	assert.Equal(t, "args", p.Label())
	assert.Equal(t, []int{0, 2}, p.Bindings())

	s, ok := p.Section(2)
	require.True(t, ok)
	assert.Equal(t, uint64(256), s.Offset)
	assert.NoError(t, s.Valid())

	_, ok = p.Section(1)
	assert.False(t, ok)
}

func TestSectionValidAndOverlap(t *testing.T) {
	buf := &fakeBuffer{label: "b", size: 512}
	other := &fakeBuffer{label: "o", size: 512}

	assert.Error(t, BufferSection{Buffer: buf, Offset: 256, Size: 512}.Valid())
	assert.Error(t, BufferSection{}.Valid())

	a := BufferSection{Buffer: buf, Offset: 0, Size: 256}
	b := BufferSection{Buffer: buf, Offset: 256, Size: 256}
	assert.False(t, a.Overlaps(b))
	assert.True(t, a.Overlaps(Whole(buf)))
	assert.False(t, a.Overlaps(Whole(other)))
}

func TestSetSectionInvalidatesCache(t *testing.T) {
	buf := &fakeBuffer{label: "b", size: 512}
	p := NewBindGroupProvider("p", WithBuffer(0, buf))

	bg := &fakeBindGroup{}
	p.SetCachedBindGroup("filter/0", bg)
	assert.Same(t, bg, p.CachedBindGroup("filter/0"))

	p.SetSection(0, Whole(buf).Sub(0, 256))
	assert.Nil(t, p.CachedBindGroup("filter/0"))
	assert.True(t, bg.released)
}

func TestBufferWriteResolve(t *testing.T) {
	buf := &fakeBuffer{label: "b", size: 1024}
	p := NewBindGroupProvider("p", WithSection(1, Whole(buf).Sub(512, 64)))

	target, off, err := BufferWrite{Provider: p, Binding: 1, Offset: 16, Data: make([]byte, 48)}.Resolve()
	require.NoError(t, err)
	assert.Same(t, buf, target)
	assert.Equal(t, uint64(528), off)

	_, _, err = BufferWrite{Provider: p, Binding: 1, Offset: 32, Data: make([]byte, 48)}.Resolve()
	assert.Error(t, err)

	_, _, err = BufferWrite{Provider: p, Binding: 3, Data: []byte{1}}.Resolve()
	assert.Error(t, err)
}

func TestBufferUsageHas(t *testing.T) {
	u := BufferUsageStorage | BufferUsageIndirect
	assert.True(t, u.Has(BufferUsageIndirect))
	assert.False(t, u.Has(BufferUsageIndirect|BufferUsageIndex))
}

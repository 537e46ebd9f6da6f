package renderer

import (
	"github.com/kevinpruvost/VenomEngine-sub001/engine/core"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/plugin"
)

type Buffer struct {
	usage  BufferUsage
	handle *plugin.Handle[BufferImpl]
}

func (b *Buffer) Impl() BufferImpl   { return b.handle.Get() }
func (b *Buffer) Usage() BufferUsage { return b.usage }
func (b *Buffer) Size() int          { return b.Impl().Size() }
func (b *Buffer) Release()           { b.handle.Release() }

// Write copies data at offset. Writing past the end is an InvalidArgument.
func (b *Buffer) Write(offset int, data []byte) error {
	if offset < 0 || offset+len(data) > b.Size() {
		return core.Errorf(core.InvalidArgument, "write of %d bytes at %d overflows a %d-byte buffer", len(data), offset, b.Size())
	}
	return b.Impl().Write(offset, data)
}

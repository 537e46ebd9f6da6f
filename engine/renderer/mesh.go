package renderer

import (
	"github.com/kevinpruvost/VenomEngine-sub001/engine/plugin"
)

type Mesh struct {
	handle *plugin.Handle[MeshImpl]
}

func (m *Mesh) Impl() MeshImpl   { return m.handle.Get() }
func (m *Mesh) VertexCount() int { return m.Impl().VertexCount() }
func (m *Mesh) IndexCount() int  { return m.Impl().IndexCount() }
func (m *Mesh) Release()         { m.handle.Release() }

package renderer

import (
	"github.com/kevinpruvost/VenomEngine-sub001/engine/cache"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/core"
)

type ModelDesc struct {
	Name   string
	Meshes []*Mesh
	// Textures are the material maps, shared through the resource cache.
	Textures []*cache.Holder[*Texture]
}

// Model groups meshes and their material textures behind one owner. It
// holds its own reference on each of them: the caller may release the
// meshes and holders it built the model from.
type Model struct {
	Name string

	meshes   []*Mesh
	textures []*cache.Holder[*Texture]
}

func (a *GraphicsApplication) CreateModel(desc ModelDesc) (*Model, error) {
	if len(desc.Meshes) == 0 {
		return nil, core.Errorf(core.InvalidArgument, "model %q has no meshes", desc.Name)
	}
	for i, mesh := range desc.Meshes {
		if mesh == nil || !mesh.handle.Valid() {
			return nil, core.Errorf(core.InvalidArgument, "model %q: mesh %d is released", desc.Name, i)
		}
	}

	m := &Model{
		Name:     desc.Name,
		meshes:   make([]*Mesh, 0, len(desc.Meshes)),
		textures: make([]*cache.Holder[*Texture], 0, len(desc.Textures)),
	}
	for _, mesh := range desc.Meshes {
		m.meshes = append(m.meshes, &Mesh{handle: mesh.handle.Clone()})
	}
	for _, tex := range desc.Textures {
		if tex != nil {
			m.textures = append(m.textures, tex.Clone())
		}
	}
	return m, nil
}

// Meshes are owned by the model and must not be released by the caller.
func (m *Model) Meshes() []*Mesh {
	return m.meshes
}

func (m *Model) Textures() []*Texture {
	textures := make([]*Texture, len(m.textures))
	for i, h := range m.textures {
		textures[i] = h.Get()
	}
	return textures
}

func (m *Model) VertexCount() int {
	n := 0
	for _, mesh := range m.meshes {
		n += mesh.VertexCount()
	}
	return n
}

// Release drops the model's references. The backend objects are cleaned
// on the next frame and destroyed once no frame in flight uses them.
func (m *Model) Release() {
	for _, mesh := range m.meshes {
		mesh.Release()
	}
	for _, tex := range m.textures {
		tex.Release()
	}
	m.meshes = nil
	m.textures = nil
}

// AddModel draws every mesh of m with shader.
func (s *Scene) AddModel(m *Model, shader *Shader) {
	for _, mesh := range m.meshes {
		s.Draws = append(s.Draws, Draw{Mesh: mesh, Shader: shader})
	}
}

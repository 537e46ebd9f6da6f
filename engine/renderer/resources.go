package renderer

import (
	"github.com/kevinpruvost/VenomEngine-sub001/engine/math"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/plugin"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer/pass"
)

// Backend objects. Each is created by the graphics backend, registered in
// its plugin registry and owned by the frontend through a plugin.Handle.
type (
	TextureImpl interface {
		plugin.Object
		Extent() pass.Extent
		Format() pass.Format
	}

	BufferImpl interface {
		plugin.Object
		Size() int
		Write(offset int, data []byte) error
	}

	ShaderImpl interface {
		plugin.Object
		Pipeline() pass.RenderingPipelineType
	}

	MeshImpl interface {
		plugin.Object
		VertexCount() int
		IndexCount() int
	}
)

type TextureDesc struct {
	Name   string
	Extent pass.Extent
	Format pass.Format
	// Pixels is tightly packed, row major. Nil leaves the texture
	// uninitialized.
	Pixels []byte
}

type BufferUsage int

const (
	BufferUniform BufferUsage = iota
	BufferStorage
	BufferVertex
	BufferIndex
)

type BufferDesc struct {
	Name  string
	Usage BufferUsage
	Size  int
	Data  []byte
}

type ShaderDesc struct {
	Name     string
	Pipeline pass.RenderingPipelineType
	// Vertex and Fragment are SPIR-V modules.
	Vertex   []byte
	Fragment []byte
}

type MeshDesc struct {
	Name     string
	Vertices []math.Vertex3D
	Indices  []uint32
	// GenerateNormals overwrites the vertex normals with face normals.
	GenerateNormals bool
}

package null

import (
	"github.com/kevinpruvost/VenomEngine-sub001/engine/plugin"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer/pass"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/trash"
)

var (
	_ renderer.TextureImpl = (*Texture)(nil)
	_ renderer.BufferImpl  = (*Buffer)(nil)
	_ renderer.ShaderImpl  = (*Shader)(nil)
	_ renderer.MeshImpl    = (*Mesh)(nil)
)

// memory stands for device memory. Freeing goes through the trash bin like
// a real backend would.
type memory struct {
	backend *Backend
	size    int
}

func (m *memory) free() {
	b := m.backend
	trash.Enqueue(b.env.Trash, m, func(any) {
		b.mu.Lock()
		b.stats.MemoryFreed += m.size
		b.mu.Unlock()
	})
}

type Texture struct {
	plugin.Base
	mem    memory
	extent pass.Extent
	format pass.Format
	pixels []byte
}

func (t *Texture) Extent() pass.Extent { return t.extent }
func (t *Texture) Format() pass.Format { return t.format }
func (t *Texture) Pixels() []byte      { return t.pixels }
func (t *Texture) Destroy()            { t.mem.free() }

type Buffer struct {
	plugin.Base
	mem  memory
	data []byte
}

func (b *Buffer) Size() int     { return len(b.data) }
func (b *Buffer) Bytes() []byte { return b.data }
func (b *Buffer) Destroy()      { b.mem.free() }

func (b *Buffer) Write(offset int, data []byte) error {
	copy(b.data[offset:], data)
	return nil
}

type Shader struct {
	plugin.Base
	pipeline pass.RenderingPipelineType
	samples  int
	rebuilds int
}

func (s *Shader) Pipeline() pass.RenderingPipelineType { return s.pipeline }
func (s *Shader) Samples() int                         { return s.samples }
func (s *Shader) Rebuilds() int                        { return s.rebuilds }
func (s *Shader) Destroy()                             {}

// SetMultiSamplingCount rebuilds the pipeline for a new sample count.
func (s *Shader) SetMultiSamplingCount(samples int) error {
	s.samples = samples
	s.rebuilds++
	return nil
}

type Mesh struct {
	plugin.Base
	mem      memory
	vertices int
	indices  int
}

func (m *Mesh) VertexCount() int { return m.vertices }
func (m *Mesh) IndexCount() int  { return m.indices }
func (m *Mesh) Destroy()         { m.mem.free() }

type renderPass struct {
	backend *Backend
	typ     pass.RenderingPipelineType
}

func (rp *renderPass) Destroy() {
	rp.backend.mu.Lock()
	rp.backend.stats.RenderPassesDestroyed++
	rp.backend.mu.Unlock()
}

// Attachment is a render target image. Render targets retire attachments
// through the trash bin themselves, Destroy frees at once.
type Attachment struct {
	Info pass.AttachmentInfo
	mem  memory
}

func (a *Attachment) Destroy() {
	b := a.mem.backend
	b.mu.Lock()
	b.stats.AttachmentsDestroyed++
	b.stats.MemoryFreed += a.mem.size
	b.mu.Unlock()
}

// CommandBuffer is what Record returns: the stage and what it drew.
type CommandBuffer struct {
	Slot       int
	ImageIndex uint32
	Stage      renderer.Stage
	Draws      int
	Texts      int
	Skybox     bool
}

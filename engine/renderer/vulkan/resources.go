package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/core"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/math"
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

// retire hands value to the trash bin so frames in flight can finish
// with it.
func (b *Backend) retire(value any, destroy func()) {
	trash.Enqueue(b.env.Trash, value, func(any) { destroy() })
}

type Texture struct {
	plugin.Base
	backend *Backend
	image   *VulkanImage
	sampler vk.Sampler
	extent  pass.Extent
	format  pass.Format
}

func (t *Texture) Extent() pass.Extent { return t.extent }
func (t *Texture) Format() pass.Format { return t.format }

func (t *Texture) Destroy() {
	context := t.backend.context
	image, sampler := t.image, t.sampler
	t.backend.retire(t, func() {
		if sampler != nil {
			vk.DestroySampler(context.Device.LogicalDevice, sampler, context.Allocator)
		}
		image.Destroy()
	})
}

func (b *Backend) CreateTexture(desc renderer.TextureDesc) (renderer.TextureImpl, error) {
	size := int(desc.Extent.Width) * int(desc.Extent.Height) * bytesPerPixel(desc.Format)
	if desc.Pixels != nil && len(desc.Pixels) != size {
		return nil, core.Errorf(core.InvalidArgument, "texture %q: %d bytes of pixels for %d", desc.Name, len(desc.Pixels), size)
	}
	if isDepthFormat(desc.Format) {
		return nil, core.Errorf(core.InvalidArgument, "texture %q: depth formats are attachments only", desc.Name)
	}
	context := b.context
	image, err := ImageCreate(context, imageConfig{
		width:  desc.Extent.Width,
		height: desc.Extent.Height,
		format: vulkanFormat(desc.Format),
		usage:  vk.ImageUsageFlags(vk.ImageUsageTransferDstBit | vk.ImageUsageSampledBit),
		aspect: vk.ImageAspectFlags(vk.ImageAspectColorBit),
	})
	if err != nil {
		return nil, err
	}
	if err := b.uploadImage(image, desc.Pixels); err != nil {
		image.Destroy()
		return nil, err
	}

	samplerInfo := vk.SamplerCreateInfo{
		SType:        vk.StructureTypeSamplerCreateInfo,
		MagFilter:    vk.FilterLinear,
		MinFilter:    vk.FilterLinear,
		MipmapMode:   vk.SamplerMipmapModeLinear,
		AddressModeU: vk.SamplerAddressModeRepeat,
		AddressModeV: vk.SamplerAddressModeRepeat,
		AddressModeW: vk.SamplerAddressModeRepeat,
		BorderColor:  vk.BorderColorIntOpaqueBlack,
		CompareOp:    vk.CompareOpAlways,
		MaxLod:       1,
	}
	var sampler vk.Sampler
	if err := resultError(vk.CreateSampler(context.Device.LogicalDevice, &samplerInfo, context.Allocator, &sampler), "vkCreateSampler"); err != nil {
		image.Destroy()
		return nil, err
	}
	return &Texture{
		backend: b,
		image:   image,
		sampler: sampler,
		extent:  desc.Extent,
		format:  desc.Format,
	}, nil
}

// uploadImage copies pixels through a staging buffer and leaves the image
// ready for sampling. Without pixels only the layout changes.
func (b *Backend) uploadImage(image *VulkanImage, pixels []byte) error {
	context := b.context
	pool := context.Device.GraphicsCommandPool

	var staging *VulkanBuffer
	if len(pixels) > 0 {
		var err error
		staging, err = BufferCreate(context, len(pixels), vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit))
		if err != nil {
			return err
		}
		defer staging.Destroy(context)
		if err := staging.Write(0, pixels); err != nil {
			return err
		}
	}

	cmd, err := AllocateAndBeginSingleUse(context, pool)
	if err != nil {
		return err
	}
	if err := image.TransitionLayout(cmd, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal); err != nil {
		cmd.Free(context, pool)
		return err
	}
	if staging != nil {
		image.CopyFromBuffer(cmd, staging.Handle)
	}
	if err := image.TransitionLayout(cmd, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal); err != nil {
		cmd.Free(context, pool)
		return err
	}
	return cmd.EndSingleUse(context, pool, b.graphics)
}

var bufferUsages = map[renderer.BufferUsage]vk.BufferUsageFlagBits{
	renderer.BufferUniform: vk.BufferUsageUniformBufferBit,
	renderer.BufferStorage: vk.BufferUsageStorageBufferBit,
	renderer.BufferVertex:  vk.BufferUsageVertexBufferBit,
	renderer.BufferIndex:   vk.BufferUsageIndexBufferBit,
}

type Buffer struct {
	plugin.Base
	backend *Backend
	buffer  *VulkanBuffer
}

func (b *Buffer) Size() int { return b.buffer.Size }

func (b *Buffer) Write(offset int, data []byte) error {
	return b.buffer.Write(offset, data)
}

func (b *Buffer) Destroy() {
	context := b.backend.context
	buffer := b.buffer
	b.backend.retire(b, func() { buffer.Destroy(context) })
}

func (b *Backend) CreateBuffer(desc renderer.BufferDesc) (renderer.BufferImpl, error) {
	usage, ok := bufferUsages[desc.Usage]
	if !ok {
		return nil, core.Errorf(core.InvalidArgument, "buffer %q: unknown usage %d", desc.Name, desc.Usage)
	}
	buffer, err := BufferCreate(b.context, desc.Size, vk.BufferUsageFlags(usage))
	if err != nil {
		return nil, err
	}
	if err := buffer.Write(0, desc.Data); err != nil {
		buffer.Destroy(b.context)
		return nil, err
	}
	return &Buffer{backend: b, buffer: buffer}, nil
}

// Shader keeps its stage modules so the pipeline can be rebuilt whenever
// the render pass it was built against changes.
type Shader struct {
	plugin.Base
	backend  *Backend
	name     string
	pipeline pass.RenderingPipelineType
	stages   []*VulkanShaderStage

	compiled   *VulkanPipeline
	builtFor   *VulkanRenderpass
	generation int
}

func (s *Shader) Pipeline() pass.RenderingPipelineType { return s.pipeline }

// SetMultiSamplingCount rebuilds the pipeline when its render pass was
// rebuilt for another sample count.
func (s *Shader) SetMultiSamplingCount(samples int) error {
	return s.ensurePipeline()
}

// ensurePipeline builds the pipeline against the current render pass of
// the shader's pipeline type. An outdated pipeline is retired.
func (s *Shader) ensurePipeline() error {
	rp, err := s.backend.renderpassFor(s.pipeline)
	if err != nil {
		return err
	}
	if s.compiled != nil && s.builtFor == rp && s.generation == rp.generation {
		return nil
	}
	if rp.Handle == vk.NullRenderPass {
		// Built by the first settings load.
		return nil
	}
	stages := make([]vk.PipelineShaderStageCreateInfo, len(s.stages))
	for i, stage := range s.stages {
		stages[i] = stage.ShaderStageCreateInfo
	}
	compiled, err := NewGraphicsPipeline(s.backend.context, pipelineConfigFor(s.pipeline, rp, stages))
	if err != nil {
		return core.Errorf(core.Failure, "shader %s: %w", s.name, err)
	}
	s.retirePipeline()
	s.compiled = compiled
	s.builtFor = rp
	s.generation = rp.generation
	return nil
}

func (s *Shader) retirePipeline() {
	if s.compiled == nil {
		return
	}
	context := s.backend.context
	compiled := s.compiled
	s.compiled = nil
	s.backend.retire(compiled, func() { compiled.Destroy(context) })
}

func (s *Shader) Destroy() {
	s.retirePipeline()
	context := s.backend.context
	stages := s.stages
	s.stages = nil
	s.backend.retire(stages, func() {
		for _, stage := range stages {
			stage.Destroy(context)
		}
	})
}

func (b *Backend) CreateShader(desc renderer.ShaderDesc) (renderer.ShaderImpl, error) {
	if _, err := b.renderpassFor(desc.Pipeline); err != nil {
		return nil, err
	}
	s := &Shader{backend: b, name: desc.Name, pipeline: desc.Pipeline}
	vert, err := NewShaderModule(b.context, desc.Vertex, vk.ShaderStageVertexBit)
	if err != nil {
		return nil, core.Errorf(core.InvalidArgument, "shader %s: vertex stage: %w", desc.Name, err)
	}
	s.stages = append(s.stages, vert)
	if len(desc.Fragment) > 0 {
		frag, err := NewShaderModule(b.context, desc.Fragment, vk.ShaderStageFragmentBit)
		if err != nil {
			vert.Destroy(b.context)
			return nil, core.Errorf(core.InvalidArgument, "shader %s: fragment stage: %w", desc.Name, err)
		}
		s.stages = append(s.stages, frag)
	}
	if err := s.ensurePipeline(); err != nil {
		for _, stage := range s.stages {
			stage.Destroy(b.context)
		}
		return nil, err
	}
	return s, nil
}

type Mesh struct {
	plugin.Base
	backend  *Backend
	vertices *VulkanBuffer
	indices  *VulkanBuffer

	vertexCount int
	indexCount  int
}

func (m *Mesh) VertexCount() int { return m.vertexCount }
func (m *Mesh) IndexCount() int  { return m.indexCount }

func (m *Mesh) Destroy() {
	context := m.backend.context
	vertices, indices := m.vertices, m.indices
	m.backend.retire(m, func() {
		vertices.Destroy(context)
		if indices != nil {
			indices.Destroy(context)
		}
	})
}

// draw records the mesh with whatever pipeline is bound.
func (m *Mesh) draw(cmd *VulkanCommandBuffer) {
	vk.CmdBindVertexBuffers(cmd.Handle, 0, 1, []vk.Buffer{m.vertices.Handle}, []vk.DeviceSize{0})
	if m.indices == nil {
		vk.CmdDraw(cmd.Handle, uint32(m.vertexCount), 1, 0, 0)
		return
	}
	vk.CmdBindIndexBuffer(cmd.Handle, m.indices.Handle, 0, vk.IndexTypeUint32)
	vk.CmdDrawIndexed(cmd.Handle, uint32(m.indexCount), 1, 0, 0, 0)
}

func (b *Backend) CreateMesh(desc renderer.MeshDesc) (renderer.MeshImpl, error) {
	vertexBytes := unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(desc.Vertices))), len(desc.Vertices)*int(unsafe.Sizeof(math.Vertex3D{})))
	vertices, err := BufferCreate(b.context, len(vertexBytes), vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit))
	if err != nil {
		return nil, err
	}
	if err := vertices.Write(0, vertexBytes); err != nil {
		vertices.Destroy(b.context)
		return nil, err
	}
	m := &Mesh{backend: b, vertices: vertices, vertexCount: len(desc.Vertices), indexCount: len(desc.Indices)}
	if len(desc.Indices) == 0 {
		return m, nil
	}

	indexBytes := unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(desc.Indices))), len(desc.Indices)*4)
	indices, err := BufferCreate(b.context, len(indexBytes), vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit))
	if err != nil {
		vertices.Destroy(b.context)
		return nil, err
	}
	if err := indices.Write(0, indexBytes); err != nil {
		vertices.Destroy(b.context)
		indices.Destroy(b.context)
		return nil, err
	}
	m.indices = indices
	return m, nil
}

// Attachment is one frame's image of a render target, with what the
// target's passes need around it: the depth and resolve images of the
// scene target and one framebuffer per pass drawing into it.
type Attachment struct {
	backend *Backend
	Info    pass.AttachmentInfo
	Image   *VulkanImage

	depth        *VulkanImage
	resolve      *VulkanImage
	framebuffers map[pass.RenderingPipelineType]*VulkanFramebuffer
}

// blitSource is the single sample image holding the finished scene.
func (a *Attachment) blitSource() *VulkanImage {
	if a.resolve != nil {
		return a.resolve
	}
	return a.Image
}

func (a *Attachment) releaseTargets() {
	context := a.backend.context
	for typ, fb := range a.framebuffers {
		fb.Destroy(context)
		delete(a.framebuffers, typ)
	}
	if a.depth != nil {
		a.depth.Destroy()
		a.depth = nil
	}
	if a.resolve != nil {
		a.resolve.Destroy()
		a.resolve = nil
	}
}

// Destroy frees at once: render targets retire attachments through the
// trash bin themselves.
func (a *Attachment) Destroy() {
	a.releaseTargets()
	a.Image.Destroy()
}

func (b *Backend) CreateAttachment(info pass.AttachmentInfo) (pass.Attachment, error) {
	cfg := imageConfig{
		width:   info.Extent.Width,
		height:  info.Extent.Height,
		format:  vulkanFormat(info.Format),
		samples: sampleCountBit(info.Samples),
	}
	if isDepthFormat(info.Format) {
		// Shadow maps are sampled, which multisampled depth cannot be.
		info.Samples = 1
		cfg.samples = vk.SampleCount1Bit
		cfg.usage = vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit | vk.ImageUsageSampledBit)
		cfg.aspect = vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	} else {
		cfg.usage = vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferSrcBit)
		if info.Samples <= 1 {
			cfg.usage |= vk.ImageUsageFlags(vk.ImageUsageSampledBit)
		}
		cfg.aspect = vk.ImageAspectFlags(vk.ImageAspectColorBit)
	}
	image, err := ImageCreate(b.context, cfg)
	if err != nil {
		return nil, core.Errorf(core.CodeOf(err), "attachment %s: %w", info.Name, err)
	}
	return &Attachment{
		backend:      b,
		Info:         info,
		Image:        image,
		framebuffers: make(map[pass.RenderingPipelineType]*VulkanFramebuffer),
	}, nil
}

// PrepareRenderTarget creates the framebuffers of every pass drawing into
// rt, and the depth and resolve images the scene pass needs.
func (b *Backend) PrepareRenderTarget(rt *pass.RenderTarget) error {
	var passes []pass.RenderingPipelineType
	switch rt.Type() {
	case pass.PBRModel:
		passes = []pass.RenderingPipelineType{pass.Skybox, pass.PBRModel}
	case pass.CascadedShadowMapping:
		passes = []pass.RenderingPipelineType{pass.CascadedShadowMapping}
	default:
		return core.Errorf(core.FeatureNotSupported, "no vulkan render target for %s", rt.Type())
	}

	for _, typ := range passes {
		rp, err := b.renderpassFor(typ)
		if err != nil {
			return err
		}
		if typ != pass.CascadedShadowMapping {
			if err := rp.rebuild(vulkanFormat(rt.Format())); err != nil {
				return err
			}
		}
	}

	for _, att := range rt.Attachments() {
		a := att.(*Attachment)
		a.releaseTargets()
		if err := b.prepareAttachment(a, passes); err != nil {
			a.releaseTargets()
			return err
		}
	}
	return nil
}

func (b *Backend) prepareAttachment(a *Attachment, passes []pass.RenderingPipelineType) error {
	context := b.context
	w, h := a.Image.Width, a.Image.Height
	for _, typ := range passes {
		rp, err := b.renderpassFor(typ)
		if err != nil {
			return err
		}
		views := []vk.ImageView{a.Image.View}
		if typ == pass.PBRModel {
			if a.depth == nil {
				a.depth, err = ImageCreate(context, imageConfig{
					width:   w,
					height:  h,
					format:  context.Device.DepthFormat,
					samples: a.Image.Samples,
					usage:   vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
					aspect:  vk.ImageAspectFlags(vk.ImageAspectDepthBit),
				})
				if err != nil {
					return err
				}
			}
			views = append(views, a.depth.View)
			if a.Image.Samples != vk.SampleCount1Bit {
				if a.resolve == nil {
					a.resolve, err = ImageCreate(context, imageConfig{
						width:  w,
						height: h,
						format: a.Image.Format,
						usage:  vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferSrcBit | vk.ImageUsageSampledBit),
						aspect: vk.ImageAspectFlags(vk.ImageAspectColorBit),
					})
					if err != nil {
						return err
					}
				}
				views = append(views, a.resolve.View)
			}
		}
		fb, err := FramebufferCreate(context, rp, w, h, views)
		if err != nil {
			return err
		}
		a.framebuffers[typ] = fb
	}
	return nil
}

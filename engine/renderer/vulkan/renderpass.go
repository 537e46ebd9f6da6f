package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/core"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer/pass"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/trash"
)

// renderpassKey is what makes two builds of a pass compatible.
type renderpassKey struct {
	color   vk.Format
	depth   vk.Format
	samples int
}

// VulkanRenderpass is the native half of a pass.RenderPass. Its handle is
// rebuilt by settings loads whenever the swapchain format or the sample
// count it depends on changes.
type VulkanRenderpass struct {
	backend *Backend
	typ     pass.RenderingPipelineType

	Handle vk.RenderPass
	key    renderpassKey
	// generation grows on every rebuild, pipelines compare it.
	generation int

	ClearColor [4]float32
	Depth      float32
	Stencil    uint32

	// Framebuffers over the swapchain images, for overlay passes.
	Framebuffers []*VulkanFramebuffer
}

// isOverlay reports whether typ draws into the swapchain image on top of
// the blitted scene.
func isOverlay(typ pass.RenderingPipelineType) bool {
	switch typ {
	case pass.GUI, pass.Text2D, pass.Text3D:
		return true
	}
	return false
}

func supportedPass(typ pass.RenderingPipelineType) bool {
	switch typ {
	case pass.Skybox, pass.PBRModel, pass.CascadedShadowMapping:
		return true
	}
	return isOverlay(typ)
}

// Samples is the rasterization sample count pipelines of this pass use.
func (vr *VulkanRenderpass) Samples() int {
	return vr.key.samples
}

// wantedKey derives the key this pass needs under the current swapchain
// and sample count.
func (vr *VulkanRenderpass) wantedKey(color vk.Format) renderpassKey {
	context := vr.backend.context
	switch {
	case vr.typ == pass.CascadedShadowMapping:
		return renderpassKey{depth: vulkanFormat(pass.FormatDepth32F), samples: 1}
	case isOverlay(vr.typ):
		return renderpassKey{color: context.Swapchain.ImageFormat.Format, samples: 1}
	case vr.typ == pass.PBRModel:
		return renderpassKey{color: color, depth: context.Device.DepthFormat, samples: vr.backend.samples}
	}
	return renderpassKey{color: color, samples: vr.backend.samples}
}

// rebuild recreates the handle when the key changed. The old handle is
// retired through the trash bin.
func (vr *VulkanRenderpass) rebuild(color vk.Format) error {
	key := vr.wantedKey(color)
	if vr.Handle != vk.NullRenderPass && key == vr.key {
		return nil
	}
	handle, err := renderpassCreate(vr.backend.context, vr.typ, key)
	if err != nil {
		return err
	}
	vr.retire()
	vr.Handle = handle
	vr.key = key
	vr.generation++
	core.LogDebug("%s render pass built (x%d), generation %d", vr.typ, key.samples, vr.generation)
	return nil
}

// rebuildFramebuffers recreates one framebuffer per swapchain image.
func (vr *VulkanRenderpass) rebuildFramebuffers() error {
	vr.retireFramebuffers()
	swapchain := vr.backend.context.Swapchain
	vr.Framebuffers = make([]*VulkanFramebuffer, 0, len(swapchain.Views))
	for _, view := range swapchain.Views {
		fb, err := FramebufferCreate(vr.backend.context, vr, swapchain.Extent.Width, swapchain.Extent.Height, []vk.ImageView{view})
		if err != nil {
			return err
		}
		vr.Framebuffers = append(vr.Framebuffers, fb)
	}
	return nil
}

func (vr *VulkanRenderpass) retire() {
	if vr.Handle == vk.NullRenderPass {
		return
	}
	context := vr.backend.context
	handle := vr.Handle
	vr.Handle = vk.NullRenderPass
	trash.Enqueue(vr.backend.env.Trash, handle, func(any) {
		vk.DestroyRenderPass(context.Device.LogicalDevice, handle, context.Allocator)
	})
}

func (vr *VulkanRenderpass) retireFramebuffers() {
	context := vr.backend.context
	for _, fb := range vr.Framebuffers {
		trash.Enqueue(vr.backend.env.Trash, fb, func(v any) { v.(*VulkanFramebuffer).Destroy(context) })
	}
	vr.Framebuffers = nil
}

// Destroy implements pass.Impl.
func (vr *VulkanRenderpass) Destroy() {
	vr.backend.forgetRenderpass(vr)
	vr.retireFramebuffers()
	vr.retire()
}

func attachmentDescription(format vk.Format, samples int, load vk.AttachmentLoadOp, store vk.AttachmentStoreOp, initial, final vk.ImageLayout) vk.AttachmentDescription {
	desc := vk.AttachmentDescription{
		Format:         format,
		Samples:        sampleCountBit(samples),
		LoadOp:         load,
		StoreOp:        store,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  initial,
		FinalLayout:    final,
	}
	desc.Deref()
	return desc
}

// renderpassCreate builds the single subpass pass of typ:
//
//	Skybox:   color (clear)                 -> color attachment
//	PBRModel: color (load), depth [,resolve] -> transfer source
//	Shadows:  depth (clear)                 -> shader read only
//	Overlays: swapchain (load)              -> present source
func renderpassCreate(context *VulkanContext, typ pass.RenderingPipelineType, key renderpassKey) (vk.RenderPass, error) {
	var (
		attachments []vk.AttachmentDescription
		colorRefs   []vk.AttachmentReference
		resolveRefs []vk.AttachmentReference
		depthRef    *vk.AttachmentReference
	)
	colorRef := func() {
		colorRefs = append(colorRefs, vk.AttachmentReference{
			Attachment: uint32(len(attachments) - 1),
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		})
	}

	switch {
	case typ == pass.Skybox:
		attachments = append(attachments, attachmentDescription(key.color, key.samples,
			vk.AttachmentLoadOpClear, vk.AttachmentStoreOpStore,
			vk.ImageLayoutUndefined, vk.ImageLayoutColorAttachmentOptimal))
		colorRef()

	case typ == pass.PBRModel:
		final := vk.ImageLayoutTransferSrcOptimal
		if key.samples > 1 {
			final = vk.ImageLayoutColorAttachmentOptimal
		}
		attachments = append(attachments, attachmentDescription(key.color, key.samples,
			vk.AttachmentLoadOpLoad, vk.AttachmentStoreOpStore,
			vk.ImageLayoutColorAttachmentOptimal, final))
		colorRef()

		attachments = append(attachments, attachmentDescription(key.depth, key.samples,
			vk.AttachmentLoadOpClear, vk.AttachmentStoreOpDontCare,
			vk.ImageLayoutUndefined, vk.ImageLayoutDepthStencilAttachmentOptimal))
		depthRef = &vk.AttachmentReference{
			Attachment: uint32(len(attachments) - 1),
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}

		if key.samples > 1 {
			attachments = append(attachments, attachmentDescription(key.color, 1,
				vk.AttachmentLoadOpDontCare, vk.AttachmentStoreOpStore,
				vk.ImageLayoutUndefined, vk.ImageLayoutTransferSrcOptimal))
			resolveRefs = append(resolveRefs, vk.AttachmentReference{
				Attachment: uint32(len(attachments) - 1),
				Layout:     vk.ImageLayoutColorAttachmentOptimal,
			})
		}

	case typ == pass.CascadedShadowMapping:
		attachments = append(attachments, attachmentDescription(key.depth, 1,
			vk.AttachmentLoadOpClear, vk.AttachmentStoreOpStore,
			vk.ImageLayoutUndefined, vk.ImageLayoutShaderReadOnlyOptimal))
		depthRef = &vk.AttachmentReference{
			Attachment: 0,
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}

	case isOverlay(typ):
		// The scene was blitted into the image just before.
		attachments = append(attachments, attachmentDescription(key.color, 1,
			vk.AttachmentLoadOpLoad, vk.AttachmentStoreOpStore,
			vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutPresentSrc))
		colorRef()

	default:
		return vk.NullRenderPass, core.Errorf(core.FeatureNotSupported, "no vulkan render pass for %s", typ)
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    uint32(len(colorRefs)),
		PColorAttachments:       colorRefs,
		PResolveAttachments:     resolveRefs,
		PDepthStencilAttachment: depthRef,
	}
	subpass.Deref()

	dependency := vk.SubpassDependency{
		SrcSubpass: vk.SubpassExternal,
		DstSubpass: 0,
		SrcStageMask: vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit |
			vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageTransferBit),
		SrcAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit | vk.AccessTransferWriteBit |
			vk.AccessDepthStencilAttachmentWriteBit),
		DstStageMask: vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit |
			vk.PipelineStageEarlyFragmentTestsBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit |
			vk.AccessDepthStencilAttachmentWriteBit),
	}
	dependency.Deref()

	renderpassCreateInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}
	renderpassCreateInfo.Deref()

	var handle vk.RenderPass
	if err := resultError(vk.CreateRenderPass(context.Device.LogicalDevice, &renderpassCreateInfo, context.Allocator, &handle), "vkCreateRenderPass"); err != nil {
		return vk.NullRenderPass, err
	}
	return handle, nil
}

// Begin starts the pass on framebuffer, clearing what the pass clears.
func (vr *VulkanRenderpass) Begin(commandBuffer *VulkanCommandBuffer, framebuffer *VulkanFramebuffer) {
	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  vr.Handle,
		Framebuffer: framebuffer.Handle,
		RenderArea: vk.Rect2D{
			Extent: vk.Extent2D{Width: framebuffer.Width, Height: framebuffer.Height},
		},
	}

	// One value per attachment, unused ones are ignored.
	clearValues := make([]vk.ClearValue, len(framebuffer.Attachments))
	for i := range clearValues {
		if vr.typ == pass.CascadedShadowMapping || (vr.typ == pass.PBRModel && i == 1) {
			clearValues[i].SetDepthStencil(vr.Depth, vr.Stencil)
		} else {
			clearValues[i].SetColor(vr.ClearColor[:])
		}
	}
	beginInfo.ClearValueCount = uint32(len(clearValues))
	beginInfo.PClearValues = clearValues
	beginInfo.Deref()

	vk.CmdBeginRenderPass(commandBuffer.Handle, &beginInfo, vk.SubpassContentsInline)
	commandBuffer.State = COMMAND_BUFFER_STATE_IN_RENDER_PASS
}

func (vr *VulkanRenderpass) End(commandBuffer *VulkanCommandBuffer) {
	vk.CmdEndRenderPass(commandBuffer.Handle)
	commandBuffer.State = COMMAND_BUFFER_STATE_RECORDING
}

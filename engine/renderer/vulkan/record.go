package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/core"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer/pass"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer/queue"
)

// stageCount is the number of command buffers each frame slot owns.
const stageCount = 3

// Record re-records the slot's command buffer for one stage. The slot's
// fence has been waited on, so the buffer is no longer executing.
func (b *Backend) Record(rec renderer.Recording) (queue.CommandBuffer, error) {
	core.Assert(rec.Slot >= 0 && rec.Slot < len(b.commandBuffers), "frame slot %d out of %d", rec.Slot, len(b.commandBuffers))
	cmd := b.commandBuffers[rec.Slot][rec.Stage]
	if err := cmd.Reset(); err != nil {
		return nil, err
	}
	if err := cmd.Begin(true, false, false); err != nil {
		return nil, err
	}

	var err error
	switch rec.Stage {
	case renderer.StageSkybox:
		err = b.recordSkybox(cmd, rec)
	case renderer.StageShadow:
		err = b.recordShadow(cmd, rec)
	case renderer.StageScene:
		err = b.recordScene(cmd, rec)
	default:
		err = core.Errorf(core.InvalidArgument, "unknown stage %d", rec.Stage)
	}
	if err != nil {
		// Leave the buffer recordable for the next frame.
		cmd.End()
		return nil, err
	}
	if err := cmd.End(); err != nil {
		return nil, err
	}
	return cmd, nil
}

func registeredPass(rec renderer.Recording, typ pass.RenderingPipelineType, stage renderer.Stage) (*VulkanRenderpass, error) {
	rp := rec.Passes.GetRenderPass(typ)
	if rp == nil || rp.IsPlaceholder() {
		return nil, core.Errorf(core.InvalidUse, "no %s render pass for the %s stage", typ, stage)
	}
	vr, ok := rp.Impl().(*VulkanRenderpass)
	if !ok || vr.Handle == vk.NullRenderPass {
		return nil, core.Errorf(core.InvalidUse, "%s render pass is not built", typ)
	}
	return vr, nil
}

func targetAttachment(rt *pass.RenderTarget, slot int) (*Attachment, error) {
	if rt == nil || slot >= len(rt.Attachments()) {
		return nil, core.Errorf(core.InvalidUse, "render target has no attachment for slot %d", slot)
	}
	return rt.Attachments()[slot].(*Attachment), nil
}

// beginPass starts rp on the framebuffer the attachment holds for typ
// and sets the dynamic viewport to it.
func beginPass(cmd *VulkanCommandBuffer, rp *VulkanRenderpass, fb *VulkanFramebuffer) error {
	if fb == nil {
		return core.Errorf(core.InvalidUse, "%s pass has no framebuffer", rp.typ)
	}
	rp.Begin(cmd, fb)
	viewport := vk.Viewport{
		Width:    float32(fb.Width),
		Height:   float32(fb.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}
	scissor := vk.Rect2D{Extent: vk.Extent2D{Width: fb.Width, Height: fb.Height}}
	vk.CmdSetViewport(cmd.Handle, 0, 1, []vk.Viewport{viewport})
	vk.CmdSetScissor(cmd.Handle, 0, 1, []vk.Rect2D{scissor})
	return nil
}

// drawAll draws every scene entry whose shader renders in rp.
func (b *Backend) drawAll(cmd *VulkanCommandBuffer, rp *VulkanRenderpass, draws []renderer.Draw) {
	for _, d := range draws {
		if d.Shader == nil || d.Mesh == nil {
			continue
		}
		shader := d.Shader.Impl().(*Shader)
		target, err := b.renderpassFor(shader.pipeline)
		if err != nil || !compatible(target, rp) {
			continue
		}
		if err := shader.ensurePipeline(); err != nil {
			b.logger.Errorf("skipping draw: %s", err)
			continue
		}
		if shader.compiled == nil {
			continue
		}
		shader.compiled.Bind(cmd)
		d.Mesh.Impl().(*Mesh).draw(cmd)
	}
}

// compatible reports whether pipelines built for target may run in rp.
// Overlay passes share one layout.
func compatible(target, rp *VulkanRenderpass) bool {
	if target == rp {
		return true
	}
	return isOverlay(target.typ) && isOverlay(rp.typ) && target.key == rp.key
}

func (b *Backend) recordSkybox(cmd *VulkanCommandBuffer, rec renderer.Recording) error {
	rp, err := registeredPass(rec, pass.Skybox, rec.Stage)
	if err != nil {
		return err
	}
	color, err := targetAttachment(rec.Color, rec.Slot)
	if err != nil {
		return err
	}
	if err := beginPass(cmd, rp, color.framebuffers[pass.Skybox]); err != nil {
		return err
	}
	if rec.Scene != nil && rec.Scene.Skybox != nil {
		b.drawAll(cmd, rp, rec.Scene.Draws)
	}
	rp.End(cmd)
	return nil
}

// recordShadow always runs the pass so the map is cleared and left
// readable, even without casters.
func (b *Backend) recordShadow(cmd *VulkanCommandBuffer, rec renderer.Recording) error {
	rp, err := registeredPass(rec, pass.CascadedShadowMapping, rec.Stage)
	if err != nil {
		return err
	}
	shadow, err := targetAttachment(rec.Shadow, rec.Slot)
	if err != nil {
		return err
	}
	if err := beginPass(cmd, rp, shadow.framebuffers[pass.CascadedShadowMapping]); err != nil {
		return err
	}
	if rec.Scene != nil && rec.Scene.CastShadows {
		b.drawAll(cmd, rp, rec.Scene.Draws)
	}
	rp.End(cmd)
	return nil
}

// recordScene draws the lit models, blits the result into the acquired
// swapchain image and draws the overlays on top.
func (b *Backend) recordScene(cmd *VulkanCommandBuffer, rec renderer.Recording) error {
	pbr, err := registeredPass(rec, pass.PBRModel, rec.Stage)
	if err != nil {
		return err
	}
	overlay, err := registeredPass(rec, pass.GUI, rec.Stage)
	if err != nil {
		return err
	}
	color, err := targetAttachment(rec.Color, rec.Slot)
	if err != nil {
		return err
	}
	swapchain := b.context.Swapchain
	if int(rec.ImageIndex) >= len(overlay.Framebuffers) {
		return core.Errorf(core.InvalidUse, "swapchain image %d has no framebuffer", rec.ImageIndex)
	}

	if err := beginPass(cmd, pbr, color.framebuffers[pass.PBRModel]); err != nil {
		return err
	}
	if rec.Scene != nil {
		b.drawAll(cmd, pbr, rec.Scene.Draws)
	}
	pbr.End(cmd)

	src := color.blitSource()
	imageBarrier(cmd, src.Handle, src.Aspect, vk.ImageLayoutTransferSrcOptimal, vk.ImageLayoutTransferSrcOptimal, barrierScope{
		srcAccess: vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
		dstAccess: vk.AccessFlags(vk.AccessTransferReadBit),
		srcStage:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		dstStage:  vk.PipelineStageFlags(vk.PipelineStageTransferBit),
	})
	// Chains with the image available wait at color attachment output.
	dst := swapchain.Images[rec.ImageIndex]
	imageBarrier(cmd, dst, vk.ImageAspectFlags(vk.ImageAspectColorBit), vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal, barrierScope{
		dstAccess: vk.AccessFlags(vk.AccessTransferWriteBit),
		srcStage:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		dstStage:  vk.PipelineStageFlags(vk.PipelineStageTransferBit),
	})
	blitImage(cmd, src, dst, swapchain.Extent)

	if err := beginPass(cmd, overlay, overlay.Framebuffers[rec.ImageIndex]); err != nil {
		return err
	}
	if rec.Scene != nil {
		b.drawAll(cmd, overlay, rec.Scene.Draws)
		// TODO: draw rec.Scene.Texts once font pages get descriptor sets.
	}
	overlay.End(cmd)
	return nil
}

func blitImage(cmd *VulkanCommandBuffer, src *VulkanImage, dst vk.Image, extent vk.Extent2D) {
	layers := vk.ImageSubresourceLayers{
		AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
		LayerCount: 1,
	}
	region := vk.ImageBlit{
		SrcSubresource: layers,
		SrcOffsets:     [2]vk.Offset3D{{}, {X: int32(src.Width), Y: int32(src.Height), Z: 1}},
		DstSubresource: layers,
		DstOffsets:     [2]vk.Offset3D{{}, {X: int32(extent.Width), Y: int32(extent.Height), Z: 1}},
	}
	vk.CmdBlitImage(cmd.Handle, src.Handle, vk.ImageLayoutTransferSrcOptimal, dst, vk.ImageLayoutTransferDstOptimal, 1, []vk.ImageBlit{region}, vk.FilterLinear)
}

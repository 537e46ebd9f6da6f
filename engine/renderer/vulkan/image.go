package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/core"
)

type VulkanImage struct {
	context *VulkanContext

	Handle  vk.Image
	Memory  vk.DeviceMemory
	View    vk.ImageView
	Width   uint32
	Height  uint32
	Format  vk.Format
	Samples vk.SampleCountFlagBits
	Aspect  vk.ImageAspectFlags
}

type imageConfig struct {
	width, height uint32
	format        vk.Format
	samples       vk.SampleCountFlagBits
	usage         vk.ImageUsageFlags
	aspect        vk.ImageAspectFlags
}

// ImageCreate allocates a 2D optimal tiling image in device local memory
// and its view.
func ImageCreate(context *VulkanContext, cfg imageConfig) (*VulkanImage, error) {
	if cfg.samples == 0 {
		cfg.samples = vk.SampleCount1Bit
	}
	img := &VulkanImage{
		context: context,
		Width:   cfg.width,
		Height:  cfg.height,
		Format:  cfg.format,
		Samples: cfg.samples,
		Aspect:  cfg.aspect,
	}
	device := context.Device.LogicalDevice

	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    cfg.format,
		Extent: vk.Extent3D{
			Width:  cfg.width,
			Height: cfg.height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       cfg.samples,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         cfg.usage,
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	var handle vk.Image
	if err := resultError(vk.CreateImage(device, &imageCreateInfo, context.Allocator, &handle), "vkCreateImage"); err != nil {
		return nil, err
	}
	img.Handle = handle

	var memReqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(device, handle, &memReqs)
	memReqs.Deref()
	memoryType, err := context.FindMemoryIndex(memReqs.MemoryTypeBits, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		img.Destroy()
		return nil, err
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: memoryType,
	}
	var mem vk.DeviceMemory
	if err := resultError(vk.AllocateMemory(device, &allocInfo, context.Allocator, &mem), "vkAllocateMemory"); err != nil {
		img.Destroy()
		return nil, err
	}
	img.Memory = mem
	if err := resultError(vk.BindImageMemory(device, handle, mem, 0), "vkBindImageMemory"); err != nil {
		img.Destroy()
		return nil, err
	}

	if err := img.createView(); err != nil {
		img.Destroy()
		return nil, err
	}
	return img, nil
}

func (img *VulkanImage) createView() error {
	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img.Handle,
		ViewType: vk.ImageViewType2d,
		Format:   img.Format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: img.Aspect,
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	var view vk.ImageView
	if err := resultError(vk.CreateImageView(img.context.Device.LogicalDevice, &viewInfo, img.context.Allocator, &view), "vkCreateImageView"); err != nil {
		return err
	}
	img.View = view
	return nil
}

// Destroy releases the view, the image and its memory at once. Callers
// defer it through the trash bin while frames may use the image.
func (img *VulkanImage) Destroy() {
	device := img.context.Device.LogicalDevice
	if img.View != nil {
		vk.DestroyImageView(device, img.View, img.context.Allocator)
		img.View = nil
	}
	if img.Handle != nil {
		vk.DestroyImage(device, img.Handle, img.context.Allocator)
		img.Handle = nil
	}
	if img.Memory != nil {
		vk.FreeMemory(device, img.Memory, img.context.Allocator)
		img.Memory = nil
	}
}

// layoutTransition returns the access masks and stages of a supported
// layout change.
func layoutTransition(from, to vk.ImageLayout) (srcAccess, dstAccess vk.AccessFlags, srcStage, dstStage vk.PipelineStageFlags, err error) {
	switch {
	case from == vk.ImageLayoutUndefined && to == vk.ImageLayoutTransferDstOptimal:
		return 0, vk.AccessFlags(vk.AccessTransferWriteBit),
			vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit), nil
	case from == vk.ImageLayoutTransferDstOptimal && to == vk.ImageLayoutShaderReadOnlyOptimal:
		return vk.AccessFlags(vk.AccessTransferWriteBit), vk.AccessFlags(vk.AccessShaderReadBit),
			vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit), nil
	case from == vk.ImageLayoutColorAttachmentOptimal && to == vk.ImageLayoutTransferDstOptimal,
		from == vk.ImageLayoutPresentSrc && to == vk.ImageLayoutTransferDstOptimal:
		return vk.AccessFlags(vk.AccessColorAttachmentWriteBit), vk.AccessFlags(vk.AccessTransferWriteBit),
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit), nil
	}
	return 0, 0, 0, 0, core.Errorf(core.InvalidArgument, "unsupported layout transition %d -> %d", from, to)
}

// TransitionLayout records a barrier moving the image between layouts.
func (img *VulkanImage) TransitionLayout(cmd *VulkanCommandBuffer, from, to vk.ImageLayout) error {
	return transitionImage(cmd, img.Handle, img.Aspect, from, to)
}

func transitionImage(cmd *VulkanCommandBuffer, image vk.Image, aspect vk.ImageAspectFlags, from, to vk.ImageLayout) error {
	srcAccess, dstAccess, srcStage, dstStage, err := layoutTransition(from, to)
	if err != nil {
		return err
	}
	imageBarrier(cmd, image, aspect, from, to, barrierScope{srcAccess, dstAccess, srcStage, dstStage})
	return nil
}

type barrierScope struct {
	srcAccess, dstAccess vk.AccessFlags
	srcStage, dstStage   vk.PipelineStageFlags
}

func imageBarrier(cmd *VulkanCommandBuffer, image vk.Image, aspect vk.ImageAspectFlags, from, to vk.ImageLayout, scope barrierScope) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       scope.srcAccess,
		DstAccessMask:       scope.dstAccess,
		OldLayout:           from,
		NewLayout:           to,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: aspect,
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	vk.CmdPipelineBarrier(cmd.Handle, scope.srcStage, scope.dstStage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}

// CopyFromBuffer records a full copy of buffer into the image, which must
// be in the transfer destination layout.
func (img *VulkanImage) CopyFromBuffer(cmd *VulkanCommandBuffer, buffer vk.Buffer) {
	region := vk.BufferImageCopy{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: img.Aspect,
			LayerCount: 1,
		},
		ImageExtent: vk.Extent3D{
			Width:  img.Width,
			Height: img.Height,
			Depth:  1,
		},
	}
	vk.CmdCopyBufferToImage(cmd.Handle, buffer, img.Handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
}

package vulkan

import (
	"math"
	"time"

	vk "github.com/goki/vulkan"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/core"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer/queue"
)

type VulkanSwapchain struct {
	ImageFormat vk.SurfaceFormat
	Handle      vk.Swapchain
	Extent      vk.Extent2D
	ImageCount  uint32
	Images      []vk.Image
	Views       []vk.ImageView
	// Generation grows with every recreation.
	Generation int
	HDR        bool
}

type VulkanSwapchainSupportInfo struct {
	Capabilities     vk.SurfaceCapabilities
	FormatCount      uint32
	Formats          []vk.SurfaceFormat
	PresentModeCount uint32
	PresentModes     []vk.PresentMode
}

// HDRFormat returns a surface format with a wide color space, if any.
func (s *VulkanSwapchainSupportInfo) HDRFormat() (vk.SurfaceFormat, bool) {
	for _, f := range s.Formats {
		if f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			continue
		}
		if f.Format == vk.FormatR16g16b16a16Sfloat || f.Format == vk.FormatA2b10g10r10UnormPack32 {
			return f, true
		}
	}
	return vk.SurfaceFormat{}, false
}

func (s *VulkanSwapchainSupportInfo) chooseFormat(hdr bool) (vk.SurfaceFormat, bool) {
	if hdr {
		if f, ok := s.HDRFormat(); ok {
			return f, true
		}
	}
	for _, f := range s.Formats {
		if f.Format == vk.FormatB8g8r8a8Unorm && f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return f, false
		}
	}
	return s.Formats[0], false
}

func (s *VulkanSwapchainSupportInfo) choosePresentMode(vsync bool) vk.PresentMode {
	if vsync {
		return vk.PresentModeFifo
	}
	for _, preferred := range []vk.PresentMode{vk.PresentModeMailbox, vk.PresentModeImmediate} {
		for _, mode := range s.PresentModes {
			if mode == preferred {
				return mode
			}
		}
	}
	return vk.PresentModeFifo
}

// chooseExtent keeps the surface extent when the surface imposes one and
// clamps the framebuffer size otherwise.
func chooseExtent(caps vk.SurfaceCapabilities, width, height uint32) vk.Extent2D {
	if caps.CurrentExtent.Width != math.MaxUint32 {
		return caps.CurrentExtent
	}
	return vk.Extent2D{
		Width:  MathClamp(width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: MathClamp(height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

// SwapchainCreate builds a swapchain for the current framebuffer size.
// The old swapchain, when given, is handed to the driver for reuse and
// must be destroyed by the caller once no frame uses it.
func SwapchainCreate(context *VulkanContext, vsync, hdr bool, old *VulkanSwapchain) (*VulkanSwapchain, error) {
	device := context.Device
	if err := DeviceQuerySwapchainSupport(device.PhysicalDevice, context.Surface, &device.SwapchainSupport); err != nil {
		return nil, err
	}
	support := &device.SwapchainSupport
	if len(support.Formats) == 0 {
		return nil, core.Errorf(core.FeatureNotSupported, "surface reports no formats")
	}

	swapchain := &VulkanSwapchain{Generation: 1}
	if old != nil {
		swapchain.Generation = old.Generation + 1
	}
	swapchain.ImageFormat, swapchain.HDR = support.chooseFormat(hdr)
	swapchain.Extent = chooseExtent(support.Capabilities, context.FramebufferWidth, context.FramebufferHeight)
	if swapchain.Extent.Width == 0 || swapchain.Extent.Height == 0 {
		return nil, core.Errorf(core.InvalidUse, "cannot create a %dx%d swapchain", swapchain.Extent.Width, swapchain.Extent.Height)
	}

	imageCount := support.Capabilities.MinImageCount + 1
	if support.Capabilities.MaxImageCount > 0 && imageCount > support.Capabilities.MaxImageCount {
		imageCount = support.Capabilities.MaxImageCount
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          context.Surface,
		MinImageCount:    imageCount,
		ImageFormat:      swapchain.ImageFormat.Format,
		ImageColorSpace:  swapchain.ImageFormat.ColorSpace,
		ImageExtent:      swapchain.Extent,
		ImageArrayLayers: 1,
		// The scene is blitted into the image before the overlay pass.
		ImageUsage:     vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit),
		PreTransform:   support.Capabilities.CurrentTransform,
		CompositeAlpha: vk.CompositeAlphaOpaqueBit,
		PresentMode:    support.choosePresentMode(vsync),
		Clipped:        vk.True,
	}
	if old != nil {
		swapchainCreateInfo.OldSwapchain = old.Handle
	}
	if device.GraphicsQueueIndex != device.PresentQueueIndex {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = []uint32{
			uint32(device.GraphicsQueueIndex),
			uint32(device.PresentQueueIndex),
		}
	} else {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	var handle vk.Swapchain
	if err := resultError(vk.CreateSwapchain(device.LogicalDevice, &swapchainCreateInfo, context.Allocator, &handle), "vkCreateSwapchainKHR"); err != nil {
		return nil, err
	}
	swapchain.Handle = handle

	if err := resultError(vk.GetSwapchainImages(device.LogicalDevice, handle, &swapchain.ImageCount, nil), "vkGetSwapchainImagesKHR"); err != nil {
		swapchain.Destroy(context)
		return nil, err
	}
	swapchain.Images = make([]vk.Image, swapchain.ImageCount)
	if err := resultError(vk.GetSwapchainImages(device.LogicalDevice, handle, &swapchain.ImageCount, swapchain.Images), "vkGetSwapchainImagesKHR"); err != nil {
		swapchain.Destroy(context)
		return nil, err
	}

	swapchain.Views = make([]vk.ImageView, swapchain.ImageCount)
	for i := range swapchain.Images {
		viewInfo := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    swapchain.Images[i],
			ViewType: vk.ImageViewType2d,
			Format:   swapchain.ImageFormat.Format,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}
		if err := resultError(vk.CreateImageView(device.LogicalDevice, &viewInfo, context.Allocator, &swapchain.Views[i]), "vkCreateImageView"); err != nil {
			swapchain.Destroy(context)
			return nil, err
		}
	}

	core.LogInfo("Swapchain %d created at %dx%d with %d images.", swapchain.Generation, swapchain.Extent.Width, swapchain.Extent.Height, swapchain.ImageCount)
	return swapchain, nil
}

// AcquireNextImageIndex asks for the next presentable image and has
// imageAvailable signaled once it can be written.
func (vs *VulkanSwapchain) AcquireNextImageIndex(context *VulkanContext, timeout time.Duration, imageAvailable *VulkanSemaphore) (uint32, queue.PresentResult, error) {
	var index uint32
	var result vk.Result
	context.Locks.SafeCall(SwapchainManagement, func() error {
		result = vk.AcquireNextImage(context.Device.LogicalDevice, vs.Handle, uint64(timeout.Nanoseconds()), imageAvailable.Handle, vk.NullFence, &index)
		return nil
	})
	switch result {
	case vk.Success:
		return index, queue.PresentSuccess, nil
	case vk.Suboptimal:
		return index, queue.PresentSuboptimal, nil
	case vk.ErrorOutOfDate:
		return 0, queue.PresentOutOfDate, nil
	case vk.Timeout, vk.NotReady:
		return 0, queue.PresentOutOfDate, core.Errorf(core.DeviceLost, "no swapchain image after %s", timeout)
	}
	return 0, queue.PresentOutOfDate, resultError(result, "vkAcquireNextImageKHR")
}

// Destroy releases views and the swapchain. Images belong to the swapchain
// and go with it.
func (vs *VulkanSwapchain) Destroy(context *VulkanContext) {
	device := context.Device.LogicalDevice
	for i, view := range vs.Views {
		if view != nil {
			vk.DestroyImageView(device, view, context.Allocator)
			vs.Views[i] = nil
		}
	}
	if vs.Handle != vk.NullSwapchain {
		vk.DestroySwapchain(device, vs.Handle, context.Allocator)
		vs.Handle = vk.NullSwapchain
	}
}

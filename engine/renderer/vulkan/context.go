package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/core"
)

// VulkanContext holds the handles every vulkan object is created from.
type VulkanContext struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	debugMessenger vk.DebugReportCallback

	Device    *VulkanDevice
	Swapchain *VulkanSwapchain

	// Serializes queue access, the queue workers submit concurrently.
	Locks *VulkanLockPool

	// Framebuffer size the next swapchain is created with.
	FramebufferWidth  uint32
	FramebufferHeight uint32
}

// FindMemoryIndex returns the first memory type allowed by typeFilter
// having every property flag.
func (vc *VulkanContext) FindMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlags) (uint32, error) {
	memoryProperties := vc.Device.Memory
	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		memoryProperties.MemoryTypes[i].Deref()
		if typeFilter&(1<<i) != 0 && memoryProperties.MemoryTypes[i].PropertyFlags&propertyFlags == propertyFlags {
			return i, nil
		}
	}
	return 0, core.Errorf(core.OutOfMemory, "no memory type matches filter 0x%x with flags 0x%x", typeFilter, uint32(propertyFlags))
}

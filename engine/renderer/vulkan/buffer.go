package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/core"
)

// VulkanBuffer is a host visible, coherent buffer kept mapped for its
// whole life.
type VulkanBuffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	Size   int
	Usage  vk.BufferUsageFlags
	mapped unsafe.Pointer
}

func BufferCreate(context *VulkanContext, size int, usage vk.BufferUsageFlags) (*VulkanBuffer, error) {
	if size <= 0 {
		return nil, core.Errorf(core.InvalidArgument, "buffer of %d bytes", size)
	}
	device := context.Device.LogicalDevice
	out := &VulkanBuffer{Size: size, Usage: usage}

	bufferCreateInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	var handle vk.Buffer
	if err := resultError(vk.CreateBuffer(device, &bufferCreateInfo, context.Allocator, &handle), "vkCreateBuffer"); err != nil {
		return nil, err
	}
	out.Handle = handle

	var memReqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(device, handle, &memReqs)
	memReqs.Deref()
	memoryType, err := context.FindMemoryIndex(memReqs.MemoryTypeBits,
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		out.Destroy(context)
		return nil, err
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: memoryType,
	}
	var memory vk.DeviceMemory
	if err := resultError(vk.AllocateMemory(device, &allocInfo, context.Allocator, &memory), "vkAllocateMemory"); err != nil {
		out.Destroy(context)
		return nil, err
	}
	out.Memory = memory
	if err := resultError(vk.BindBufferMemory(device, handle, memory, 0), "vkBindBufferMemory"); err != nil {
		out.Destroy(context)
		return nil, err
	}

	var ptr unsafe.Pointer
	if err := resultError(vk.MapMemory(device, memory, 0, vk.DeviceSize(size), 0, &ptr), "vkMapMemory"); err != nil {
		out.Destroy(context)
		return nil, err
	}
	out.mapped = ptr
	return out, nil
}

// Write copies data at offset. Writes go straight to coherent memory, the
// caller orders them against frames still reading the buffer.
func (b *VulkanBuffer) Write(offset int, data []byte) error {
	if offset < 0 || offset+len(data) > b.Size {
		return core.Errorf(core.InvalidArgument, "write of %d bytes at %d overflows a %d byte buffer", len(data), offset, b.Size)
	}
	if len(data) == 0 {
		return nil
	}
	vk.Memcopy(unsafe.Add(b.mapped, offset), data)
	return nil
}

func (b *VulkanBuffer) Destroy(context *VulkanContext) {
	device := context.Device.LogicalDevice
	if b.mapped != nil {
		vk.UnmapMemory(device, b.Memory)
		b.mapped = nil
	}
	if b.Handle != vk.NullBuffer {
		vk.DestroyBuffer(device, b.Handle, context.Allocator)
		b.Handle = vk.NullBuffer
	}
	if b.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(device, b.Memory, context.Allocator)
		b.Memory = vk.NullDeviceMemory
	}
}

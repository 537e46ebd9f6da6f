package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer/queue"
)

var _ queue.Queue = (*Queue)(nil)

// Queue is a device queue fed by the queue workers. Submissions to a queue
// family are serialized through the lock pool.
type Queue struct {
	context *VulkanContext
	name    string
	handle  vk.Queue
	family  uint32
}

func newQueue(context *VulkanContext, name string, handle vk.Queue, family int32) *Queue {
	return &Queue{context: context, name: name, handle: handle, family: uint32(family)}
}

func (q *Queue) Submit(order *queue.SubmitOrder) error {
	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(order.WaitSemaphores)),
		CommandBufferCount:   uint32(len(order.CommandBuffers)),
		SignalSemaphoreCount: uint32(len(order.SignalSemaphores)),
	}
	for i, w := range order.WaitSemaphores {
		submitInfo.PWaitSemaphores = append(submitInfo.PWaitSemaphores, w.(*VulkanSemaphore).Handle)
		submitInfo.PWaitDstStageMask = append(submitInfo.PWaitDstStageMask, vk.PipelineStageFlags(order.WaitStages[i]))
	}
	for _, cmd := range order.CommandBuffers {
		submitInfo.PCommandBuffers = append(submitInfo.PCommandBuffers, cmd.(*VulkanCommandBuffer).Handle)
	}
	for _, s := range order.SignalSemaphores {
		submitInfo.PSignalSemaphores = append(submitInfo.PSignalSemaphores, s.(*VulkanSemaphore).Handle)
	}
	fence := vk.NullFence
	if order.Fence != nil {
		fence = order.Fence.(*VulkanFence).Handle
	}

	return q.context.Locks.SafeQueueCall(q.family, func() error {
		return resultError(vk.QueueSubmit(q.handle, 1, []vk.SubmitInfo{submitInfo}, fence), "vkQueueSubmit on the "+q.name+" queue")
	})
}

func (q *Queue) Present(order *queue.PresentOrder) (queue.PresentResult, error) {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(order.WaitSemaphores)),
		SwapchainCount:     uint32(len(order.Swapchains)),
		PImageIndices:      order.ImageIndices,
	}
	for _, w := range order.WaitSemaphores {
		presentInfo.PWaitSemaphores = append(presentInfo.PWaitSemaphores, w.(*VulkanSemaphore).Handle)
	}
	for _, sc := range order.Swapchains {
		presentInfo.PSwapchains = append(presentInfo.PSwapchains, sc.(*VulkanSwapchain).Handle)
	}

	// The swapchain is also used by image acquisition on the main goroutine.
	var result vk.Result
	q.context.Locks.SafeCall(SwapchainManagement, func() error {
		return q.context.Locks.SafeQueueCall(q.family, func() error {
			result = vk.QueuePresent(q.handle, &presentInfo)
			return nil
		})
	})
	switch result {
	case vk.Success:
		return queue.PresentSuccess, nil
	case vk.Suboptimal:
		return queue.PresentSuboptimal, nil
	case vk.ErrorOutOfDate:
		return queue.PresentOutOfDate, nil
	}
	return queue.PresentOutOfDate, resultError(result, "vkQueuePresentKHR")
}

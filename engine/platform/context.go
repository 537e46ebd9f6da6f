// Package platform holds the context backends: the window, its events and
// the surface the graphics backend presents to.
package platform

import (
	"unsafe"

	"github.com/kevinpruvost/VenomEngine-sub001/engine/core"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/plugin"
)

// Context is implemented by every context backend.
type Context interface {
	plugin.Backend

	Init(cfg *core.Config, events *core.EventBus) error
	ShouldClose() bool
	// SetShouldClose asks the loop to stop after the current frame.
	SetShouldClose(bool)
	PollEvents()
	// FramebufferSize is the drawable size in pixels, zero when minimized.
	FramebufferSize() (width, height uint32)
	RequiredInstanceExtensions() []string
	// InstanceProcAddr is the vkGetInstanceProcAddr of the loader the
	// context was built against, nil without Vulkan support.
	InstanceProcAddr() unsafe.Pointer
	// CreateVulkanSurface creates a surface for a vk.Instance and returns
	// its handle. Contexts without a window report FeatureNotSupported.
	CreateVulkanSurface(instance any) (uintptr, error)
}

// FireResize sends EVENT_CODE_RESIZED with the new framebuffer size.
func FireResize(events *core.EventBus, sender any, width, height uint32) {
	if events == nil {
		return
	}
	var ctx core.EventContext
	ctx.Data.U32[0] = width
	ctx.Data.U32[1] = height
	events.Fire(core.EVENT_CODE_RESIZED, sender, ctx)
}

func FireKey(events *core.EventBus, sender any, key uint16, pressed bool) {
	if events == nil {
		return
	}
	code := core.EVENT_CODE_KEY_RELEASED
	if pressed {
		code = core.EVENT_CODE_KEY_PRESSED
	}
	var ctx core.EventContext
	ctx.Data.U16[0] = key
	events.Fire(code, sender, ctx)
}

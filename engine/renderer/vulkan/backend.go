// Package vulkan is the graphics backend rendering through Vulkan.
package vulkan

import (
	"fmt"
	"runtime"
	"slices"
	"sync"
	"time"
	"unsafe"

	"github.com/charmbracelet/log"
	vk "github.com/goki/vulkan"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/core"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/plugin"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer/pass"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer/queue"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer/settings"
)

var _ renderer.Graphics = (*Backend)(nil)

func init() {
	plugin.Register(plugin.Graphics, core.GraphicsBackendVulkan, func() (plugin.Backend, error) {
		return New(nil), nil
	})
}

const (
	validationLayer = "VK_LAYER_KHRONOS_validation"
	// AcquireTimeout bounds the wait for a presentable image.
	AcquireTimeout = 5 * time.Second
)

type Backend struct {
	logger  *log.Logger
	objects *plugin.Plugin
	env     renderer.Env
	context *VulkanContext

	graphics *Queue
	present  *Queue

	validation  bool
	vsync       bool
	initialized bool

	mu           sync.Mutex
	renderpasses map[pass.RenderingPipelineType]*VulkanRenderpass
	samples      int

	fences         []*VulkanFence
	semaphores     [][]*VulkanSemaphore
	syncs          []renderer.FrameSync
	commandBuffers [][stageCount]*VulkanCommandBuffer
}

func New(logger *log.Logger) *Backend {
	if logger == nil {
		logger = core.NewLogger("Vulkan 🌋 ")
	}
	return &Backend{
		logger:       logger,
		objects:      plugin.NewPlugin(plugin.Graphics, logger),
		renderpasses: make(map[pass.RenderingPipelineType]*VulkanRenderpass),
		samples:      1,
	}
}

func (b *Backend) Name() string               { return core.GraphicsBackendVulkan }
func (b *Backend) Type() plugin.Type          { return plugin.Graphics }
func (b *Backend) Objects() *plugin.Plugin    { return b.objects }
func (b *Backend) GraphicsQueue() queue.Queue { return b.graphics }
func (b *Backend) PresentQueue() queue.Queue  { return b.present }

func (b *Backend) Init(env renderer.Env) error {
	if b.initialized {
		return core.Errorf(core.InvalidUse, "vulkan backend initialized twice")
	}
	b.env = env
	if env.Config != nil {
		b.validation = env.Config.Graphics.Validation
		b.vsync = env.Config.Graphics.VSync
	}

	procAddr := env.Context.InstanceProcAddr()
	if procAddr == nil {
		return core.Errorf(core.FeatureNotSupported, "context %s provides no vkGetInstanceProcAddr", env.Context.Name())
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return core.Errorf(core.InitializationFailed, "vulkan loader: %w", err)
	}

	b.context = &VulkanContext{
		Device: &VulkanDevice{},
		Locks:  NewVulkanLockPool(),
	}
	b.context.FramebufferWidth, b.context.FramebufferHeight = env.Context.FramebufferSize()

	appName := "Venom Engine"
	if env.Config != nil && env.Config.Engine.Name != "" {
		appName = env.Config.Engine.Name
	}
	if err := b.createInstance(appName); err != nil {
		return err
	}

	core.LogDebug("Creating Vulkan surface...")
	surface, err := env.Context.CreateVulkanSurface(b.context.Instance)
	if err != nil {
		return core.Errorf(core.InitializationFailed, "create surface: %w", err)
	}
	b.context.Surface = vk.SurfaceFromPointer(surface)

	if err := DeviceCreate(b.context); err != nil {
		return core.Errorf(core.InitializationFailed, "create device: %w", err)
	}
	device := b.context.Device
	b.graphics = newQueue(b.context, "graphics", device.GraphicsQueue, device.GraphicsQueueIndex)
	b.present = newQueue(b.context, "present", device.PresentQueue, device.PresentQueueIndex)

	n := env.Clock.FramesInFlight()
	b.commandBuffers = make([][stageCount]*VulkanCommandBuffer, n)
	for slot := range b.commandBuffers {
		for stage := range b.commandBuffers[slot] {
			cb, err := NewVulkanCommandBuffer(b.context, device.GraphicsCommandPool, true)
			if err != nil {
				return core.Errorf(core.InitializationFailed, "command buffer %d.%d: %w", slot, stage, err)
			}
			b.commandBuffers[slot][stage] = cb
		}
	}

	b.initialized = true
	b.logger.Infof("vulkan backend ready, %d frames in flight, validation=%t", n, b.validation)
	return nil
}

func (b *Backend) createInstance(appName string) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("Venom Engine"),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	extensions := []string{"VK_KHR_surface"}
	for _, ext := range b.env.Context.RequiredInstanceExtensions() {
		if !slices.Contains(extensions, ext) {
			extensions = append(extensions, ext)
		}
	}
	if runtime.GOOS == "darwin" {
		extensions = append(extensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}

	var layers []string
	if b.validation {
		if hasInstanceLayer(validationLayer) {
			layers = append(layers, validationLayer)
			extensions = append(extensions, vk.ExtDebugReportExtensionName)
		} else {
			b.logger.Warnf("validation requested but %s is not installed", validationLayer)
		}
	}
	b.logger.Debug("instance", "extensions", extensions, "layers", layers)

	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(extensions)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	if err := resultError(vk.CreateInstance(&createInfo, b.context.Allocator, &b.context.Instance), "vkCreateInstance"); err != nil {
		return core.Errorf(core.InitializationFailed, "%w", err)
	}
	if err := vk.InitInstance(b.context.Instance); err != nil {
		return core.Errorf(core.InitializationFailed, "init instance: %w", err)
	}
	core.LogInfo("Vulkan Instance created.")

	if len(layers) > 0 {
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if err := resultError(vk.CreateDebugReportCallback(b.context.Instance, &debugCreateInfo, nil, &dbg), "vkCreateDebugReportCallbackEXT"); err != nil {
			b.logger.Warnf("no validation output: %s", err)
		} else {
			b.context.debugMessenger = dbg
		}
	}
	return nil
}

func hasInstanceLayer(name string) bool {
	var count uint32
	if vk.EnumerateInstanceLayerProperties(&count, nil) != vk.Success {
		return false
	}
	available := make([]vk.LayerProperties, count)
	if vk.EnumerateInstanceLayerProperties(&count, available) != vk.Success {
		return false
	}
	for i := range available {
		available[i].Deref()
		if cString(available[i].LayerName[:]) == name {
			return true
		}
	}
	return false
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogInfo("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}

// Shutdown waits for the device, then destroys everything in reverse
// creation order.
func (b *Backend) Shutdown() error {
	context := b.context
	if context == nil {
		b.objects.Shutdown()
		return nil
	}
	err := b.WaitIdle()

	// Objects retire through the trash bin, which must not outlive the
	// device.
	b.objects.Shutdown()
	b.mu.Lock()
	passes := make([]*VulkanRenderpass, 0, len(b.renderpasses))
	for _, rp := range b.renderpasses {
		passes = append(passes, rp)
	}
	b.mu.Unlock()
	for _, rp := range passes {
		rp.Destroy()
	}
	if b.env.Trash != nil {
		b.env.Trash.Close()
	}

	b.destroySyncObjects()
	if context.Device.LogicalDevice != nil {
		for slot := range b.commandBuffers {
			for _, cb := range b.commandBuffers[slot] {
				if cb != nil {
					cb.Free(context, context.Device.GraphicsCommandPool)
				}
			}
		}
	}
	b.commandBuffers = nil

	if context.Swapchain != nil {
		context.Swapchain.Destroy(context)
		context.Swapchain = nil
	}
	DeviceDestroy(context)
	if context.Surface != vk.NullSurface {
		vk.DestroySurface(context.Instance, context.Surface, context.Allocator)
		context.Surface = vk.NullSurface
	}
	if context.debugMessenger != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(context.Instance, context.debugMessenger, context.Allocator)
		context.debugMessenger = vk.NullDebugReportCallback
	}
	if context.Instance != nil {
		vk.DestroyInstance(context.Instance, context.Allocator)
		context.Instance = nil
	}
	b.context = nil
	b.initialized = false
	b.logger.Info("vulkan backend shut down")
	return err
}

func (b *Backend) WaitIdle() error {
	if b.context == nil || b.context.Device.LogicalDevice == nil {
		return nil
	}
	return resultError(vk.DeviceWaitIdle(b.context.Device.LogicalDevice), "vkDeviceWaitIdle")
}

func (b *Backend) FrameSync(slot int) renderer.FrameSync {
	core.Assert(slot >= 0 && slot < len(b.syncs), "frame slot %d out of %d", slot, len(b.syncs))
	return b.syncs[slot]
}

func (b *Backend) WaitForFence(f queue.Fence, timeout time.Duration) error {
	return f.(*VulkanFence).FenceWait(b.context, timeout)
}

func (b *Backend) ResetFence(f queue.Fence) error {
	return f.(*VulkanFence).FenceReset(b.context)
}

func (b *Backend) AcquireNextImage(sync renderer.FrameSync) (uint32, queue.PresentResult, error) {
	if b.context.Swapchain == nil {
		return 0, queue.PresentOutOfDate, nil
	}
	return b.context.Swapchain.AcquireNextImageIndex(b.context, AcquireTimeout, sync.ImageAvailable.(*VulkanSemaphore))
}

func (b *Backend) Swapchain() queue.Swapchain {
	return b.context.Swapchain
}

// LoadGfxSettings recreates the swapchain, rebuilds the render passes and
// pipelines depending on it and renews every frame's sync objects. The
// caller has drained the queues.
func (b *Backend) LoadGfxSettings(data settings.Data) error {
	if !b.initialized {
		return core.Errorf(core.InvalidUse, "vulkan backend not initialized")
	}
	if err := b.WaitIdle(); err != nil {
		return err
	}
	context := b.context

	samples := 1
	if data.MultiSamplingMode == settings.MultiSamplingMSAA {
		samples = b.clampSamples(int(data.MultiSamplingSamples))
	}
	hdr := data.HDREnabled && b.HDRSupported()

	context.FramebufferWidth, context.FramebufferHeight = b.env.Context.FramebufferSize()
	old := context.Swapchain
	swapchain, err := SwapchainCreate(context, b.vsync, hdr, old)
	if err != nil {
		return err
	}
	if old != nil {
		b.retire(old, func() { old.Destroy(context) })
	}
	context.Swapchain = swapchain

	b.mu.Lock()
	b.samples = samples
	passes := make([]*VulkanRenderpass, 0, len(b.renderpasses))
	for _, rp := range b.renderpasses {
		passes = append(passes, rp)
	}
	b.mu.Unlock()
	for _, rp := range passes {
		if err := b.buildRenderpass(rp); err != nil {
			return err
		}
	}

	if err := b.createSyncObjects(); err != nil {
		return err
	}

	var pipelineErr error
	b.objects.ForEachObject(func(obj plugin.Object) bool {
		if s, ok := obj.(*Shader); ok {
			pipelineErr = s.ensurePipeline()
		}
		return pipelineErr == nil
	})
	if pipelineErr != nil {
		return pipelineErr
	}
	b.logger.Debugf("settings loaded: swapchain %d at %dx%d, x%d, hdr=%t",
		swapchain.Generation, swapchain.Extent.Width, swapchain.Extent.Height, samples, swapchain.HDR)
	return nil
}

// buildRenderpass (re)builds rp for the current swapchain and sample count.
func (b *Backend) buildRenderpass(rp *VulkanRenderpass) error {
	color := rp.key.color
	if color == vk.FormatUndefined {
		color = vulkanFormat(pass.FormatRGBA16F)
	}
	if err := rp.rebuild(color); err != nil {
		return core.Errorf(core.CodeOf(err), "%s render pass: %w", rp.typ, err)
	}
	if isOverlay(rp.typ) {
		return rp.rebuildFramebuffers()
	}
	return nil
}

func (b *Backend) createSyncObjects() error {
	b.destroySyncObjects()
	n := b.env.Clock.FramesInFlight()
	b.syncs = make([]renderer.FrameSync, n)
	for i := 0; i < n; i++ {
		names := []string{"imageAvailable", "skyboxDone", "shadowDone", "renderFinished"}
		semaphores := make([]*VulkanSemaphore, len(names))
		for j, name := range names {
			s, err := NewSemaphore(b.context, fmt.Sprintf("%s.%d", name, i))
			if err != nil {
				return err
			}
			semaphores[j] = s
		}
		b.semaphores = append(b.semaphores, semaphores)

		// Signaled, the first wait on a slot has nothing to wait for.
		fence, err := NewFence(b.context, true)
		if err != nil {
			return err
		}
		b.fences = append(b.fences, fence)

		b.syncs[i] = renderer.FrameSync{
			ImageAvailable: semaphores[0],
			SkyboxDone:     semaphores[1],
			ShadowDone:     semaphores[2],
			RenderFinished: semaphores[3],
			InFlight:       fence,
		}
	}
	return nil
}

// destroySyncObjects frees at once, the device is idle when called.
func (b *Backend) destroySyncObjects() {
	for _, list := range b.semaphores {
		for _, s := range list {
			s.Destroy(b.context)
		}
	}
	for _, f := range b.fences {
		f.FenceDestroy(b.context)
	}
	b.semaphores = nil
	b.fences = nil
	b.syncs = nil
}

func (b *Backend) clampSamples(requested int) int {
	best := 1
	for _, c := range b.context.Device.SupportedSampleCounts() {
		if c <= requested && c > best {
			best = c
		}
	}
	if best != requested {
		b.logger.Warnf("x%d multisampling unsupported, using x%d", requested, best)
	}
	return best
}

func (b *Backend) SetMultiSampling(mode settings.MultiSamplingMode, samples settings.MultiSamplingCount) error {
	if mode == settings.MultiSamplingMSAA && !slices.Contains(b.AvailableMultiSamplingCounts(), samples) {
		return core.Errorf(core.FeatureNotSupported, "x%d multisampling is not supported by this device", int(samples))
	}
	return nil
}

func (b *Backend) SetHDR(enable bool) error {
	if enable && !b.HDRSupported() {
		return core.Errorf(core.FeatureNotSupported, "surface offers no hdr format")
	}
	return nil
}

func (b *Backend) AvailableMultiSamplingCounts() []settings.MultiSamplingCount {
	if b.context == nil {
		return []settings.MultiSamplingCount{settings.Samples1}
	}
	var counts []settings.MultiSamplingCount
	for _, c := range b.context.Device.SupportedSampleCounts() {
		if mc := settings.MultiSamplingCount(c); mc.Valid() {
			counts = append(counts, mc)
		}
	}
	return counts
}

func (b *Backend) HDRSupported() bool {
	if b.context == nil || b.context.Device == nil {
		return false
	}
	_, ok := b.context.Device.SwapchainSupport.HDRFormat()
	return ok
}

// CreateRenderPass registers the native pass of typ. Before the first
// settings load it has no handle yet.
func (b *Backend) CreateRenderPass(typ pass.RenderingPipelineType) (pass.Impl, error) {
	if !supportedPass(typ) {
		return nil, core.Errorf(core.FeatureNotSupported, "no vulkan render pass for %s", typ)
	}
	rp := &VulkanRenderpass{
		backend:    b,
		typ:        typ,
		ClearColor: [4]float32{0, 0, 0, 1},
		Depth:      1,
	}
	if b.context != nil && b.context.Swapchain != nil {
		if err := b.buildRenderpass(rp); err != nil {
			return nil, err
		}
	}
	b.mu.Lock()
	b.renderpasses[typ] = rp
	b.mu.Unlock()
	return rp, nil
}

func (b *Backend) forgetRenderpass(rp *VulkanRenderpass) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.renderpasses[rp.typ] == rp {
		delete(b.renderpasses, rp.typ)
	}
}

// renderpassFor returns the pass pipelines of typ are built against. PBR
// variants share the PBR pass, text falls back to the GUI overlay.
func (b *Backend) renderpassFor(typ pass.RenderingPipelineType) (*VulkanRenderpass, error) {
	if !typ.Valid() {
		return nil, core.Errorf(core.InvalidArgument, "no render pass for %s", typ)
	}
	candidates := []pass.RenderingPipelineType{typ}
	switch {
	case slices.Contains(pass.PBRModel.Slots(), typ):
		candidates = []pass.RenderingPipelineType{pass.PBRModel}
	case typ == pass.Text3D:
		candidates = append(candidates, pass.Text2D, pass.GUI)
	case typ == pass.Text2D:
		candidates = append(candidates, pass.GUI)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range candidates {
		if rp := b.renderpasses[c]; rp != nil {
			return rp, nil
		}
	}
	return nil, core.Errorf(core.FeatureNotSupported, "no %s render pass created", typ)
}

func (b *Backend) ViewportExtent() pass.Extent {
	if b.context == nil || b.context.Swapchain == nil {
		return pass.Extent{}
	}
	e := b.context.Swapchain.Extent
	return pass.Extent{Width: e.Width, Height: e.Height}
}

func (b *Backend) SampleCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.samples
}

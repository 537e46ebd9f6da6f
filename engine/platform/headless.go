package platform

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/charmbracelet/log"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/core"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/plugin"
)

func init() {
	plugin.Register(plugin.Context, core.ContextBackendHeadless, func() (plugin.Backend, error) {
		return NewHeadless(nil), nil
	})
}

// Headless is a context without a window. It closes itself after
// FrameLimit polls when the limit is set.
type Headless struct {
	// FrameLimit is the number of PollEvents calls before ShouldClose
	// reports true. Zero means no limit.
	FrameLimit int

	logger  *log.Logger
	objects *plugin.Plugin
	events  *core.EventBus
	close   atomic.Bool
	polls   atomic.Int64

	mu            sync.Mutex
	width, height uint32
}

func NewHeadless(logger *log.Logger) *Headless {
	if logger == nil {
		logger = core.NewLogger("Headless 🪟 ")
	}
	return &Headless{
		logger:  logger,
		objects: plugin.NewPlugin(plugin.Context, logger),
	}
}

func (h *Headless) Name() string                         { return core.ContextBackendHeadless }
func (h *Headless) Type() plugin.Type                    { return plugin.Context }
func (h *Headless) Objects() *plugin.Plugin              { return h.objects }
func (h *Headless) ShouldClose() bool                    { return h.close.Load() }
func (h *Headless) SetShouldClose(v bool)                { h.close.Store(v) }
func (h *Headless) RequiredInstanceExtensions() []string { return nil }
func (h *Headless) InstanceProcAddr() unsafe.Pointer     { return nil }

func (h *Headless) Init(cfg *core.Config, events *core.EventBus) error {
	h.mu.Lock()
	h.width, h.height = cfg.Engine.Width, cfg.Engine.Height
	h.mu.Unlock()
	h.events = events
	h.logger.Debugf("headless context %dx%d", cfg.Engine.Width, cfg.Engine.Height)
	return nil
}

func (h *Headless) PollEvents() {
	n := h.polls.Add(1)
	if h.FrameLimit > 0 && n >= int64(h.FrameLimit) {
		h.close.Store(true)
	}
}

// Polls returns how many times PollEvents ran.
func (h *Headless) Polls() int {
	return int(h.polls.Load())
}

func (h *Headless) FramebufferSize() (uint32, uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.width, h.height
}

// Resize changes the framebuffer size and fires the resize event, as a
// window manager would.
func (h *Headless) Resize(width, height uint32) {
	h.mu.Lock()
	h.width, h.height = width, height
	h.mu.Unlock()
	FireResize(h.events, h, width, height)
}

func (h *Headless) CreateVulkanSurface(any) (uintptr, error) {
	return 0, core.Errorf(core.FeatureNotSupported, "headless context has no surface")
}

func (h *Headless) Shutdown() error {
	h.objects.Shutdown()
	return nil
}

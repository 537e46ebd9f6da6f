// Package glfw is the windowed context backend.
package glfw

import (
	"runtime"
	"sync/atomic"
	"unsafe"

	"github.com/charmbracelet/log"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/core"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/platform"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/plugin"
)

var _ platform.Context = (*Window)(nil)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()

	plugin.Register(plugin.Context, core.ContextBackendGLFW, func() (plugin.Backend, error) {
		return New(nil), nil
	})
}

type Window struct {
	Handle *glfw.Window

	logger  *log.Logger
	objects *plugin.Plugin
	events  *core.EventBus
	close   atomic.Bool
}

func New(logger *log.Logger) *Window {
	if logger == nil {
		logger = core.NewLogger("GLFW 🪟 ")
	}
	return &Window{
		logger:  logger,
		objects: plugin.NewPlugin(plugin.Context, logger),
	}
}

func (p *Window) Name() string            { return core.ContextBackendGLFW }
func (p *Window) Type() plugin.Type       { return plugin.Context }
func (p *Window) Objects() *plugin.Plugin { return p.objects }
func (p *Window) SetShouldClose(v bool)   { p.close.Store(v) }
func (p *Window) PollEvents()             { glfw.PollEvents() }

func (p *Window) Init(cfg *core.Config, events *core.EventBus) error {
	if err := glfw.Init(); err != nil {
		p.logger.Errorf("failed to initialize glfw: %s", err)
		return core.Errorf(core.InitializationFailed, "glfw init: %w", err)
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return core.Errorf(core.InitializationFailed|core.FeatureNotSupported, "glfw reports no vulkan loader")
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(cfg.Engine.Width), int(cfg.Engine.Height), cfg.Engine.Name, nil, nil)
	if err != nil {
		p.logger.Errorf("failed to create window: %s", err)
		glfw.Terminate()
		return core.Errorf(core.InitializationFailed, "create window: %w", err)
	}
	p.Handle = window
	p.events = events

	p.Handle.SetKeyCallback(p.keyCallback)
	p.Handle.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	p.Handle.SetCloseCallback(func(*glfw.Window) { p.close.Store(true) })
	p.Handle.SetPos(int(cfg.Engine.PosX), int(cfg.Engine.PosY))
	p.Handle.Show()
	return nil
}

func (p *Window) ShouldClose() bool {
	return p.close.Load() || (p.Handle != nil && p.Handle.ShouldClose())
}

func (p *Window) FramebufferSize() (uint32, uint32) {
	if p.Handle == nil {
		return 0, 0
	}
	w, h := p.Handle.GetFramebufferSize()
	return uint32(max(w, 0)), uint32(max(h, 0))
}

func (p *Window) RequiredInstanceExtensions() []string {
	if p.Handle == nil {
		return nil
	}
	return p.Handle.GetRequiredInstanceExtensions()
}

func (p *Window) InstanceProcAddr() unsafe.Pointer {
	return glfw.GetVulkanGetInstanceProcAddress()
}

func (p *Window) CreateVulkanSurface(instance any) (uintptr, error) {
	if p.Handle == nil {
		return 0, core.Errorf(core.InvalidUse, "no window to create a surface for")
	}
	surface, err := p.Handle.CreateWindowSurface(instance, nil)
	if err != nil {
		return 0, core.Errorf(core.InitializationFailed, "create window surface: %w", err)
	}
	return surface, nil
}

func (p *Window) Shutdown() error {
	p.objects.Shutdown()
	if p.Handle != nil {
		p.Handle.Destroy()
		p.Handle = nil
	}
	glfw.Terminate()
	return nil
}

func (p *Window) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if action == glfw.Repeat {
		return
	}
	if key == glfw.KeyEscape && action == glfw.Press {
		p.close.Store(true)
	}
	platform.FireKey(p.events, p, uint16(key), action == glfw.Press)
}

func (p *Window) framebufferSizeCallback(w *glfw.Window, width, height int) {
	platform.FireResize(p.events, p, uint32(width), uint32(height))
}

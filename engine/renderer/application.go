package renderer

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/core"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/frame"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer/pass"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer/queue"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer/settings"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/trash"
)

const DefaultFenceTimeout = 5 * time.Second

// ErrNotInitialized is returned by frame operations before Init.
var ErrNotInitialized = errors.New("graphics application is not initialized")

// Render passes created at Init, in creation order.
var defaultPasses = []pass.RenderingPipelineType{
	pass.Skybox,
	pass.PBRModel,
	pass.CascadedShadowMapping,
	pass.GUI,
	pass.Text2D,
}

// GraphicsApplication drives one graphics backend. It owns the frame loop,
// the render passes, the render targets and the graphics settings. All of
// its methods run on the main goroutine.
type GraphicsApplication struct {
	backend Graphics
	env     Env
	logger  *log.Logger

	settings *settings.Settings
	passes   *pass.Registry
	targets  *pass.Targets
	pool     *queue.Pool
	metrics  *core.Metrics
	clock    *core.Clock

	color  *pass.RenderTarget
	shadow *pass.RenderTarget
	scene  Scene

	// FenceTimeout bounds every in-flight fence wait.
	FenceTimeout time.Duration

	framebufferChanged atomic.Bool
	presentStale       atomic.Bool
	deviceLost         atomic.Bool

	initialized bool
	frames      uint64
	skipped     uint64
	// trashEpoch is the clock epoch of the last trash tick, plus one.
	trashEpoch uint64
}

// CreateGraphicsApplication wires backend to the engine services in env.
// Missing clock, trash bin and logger are created.
func CreateGraphicsApplication(backend Graphics, env Env) *GraphicsApplication {
	core.Assert(backend != nil, "graphics application without a backend")
	core.Assert(env.Context != nil, "graphics application without a context")
	if env.Config == nil {
		env.Config = core.DefaultConfig()
	}
	if env.Logger == nil {
		env.Logger = core.NewLogger("Renderer 🎨 ")
	}
	if env.Clock == nil {
		env.Clock = frame.New(core.MaxFramesInFlight)
	}
	if env.Trash == nil {
		env.Trash = trash.NewBin(env.Clock.FramesInFlight(), env.Logger.WithPrefix("Trash 🗑️ "))
	}

	a := &GraphicsApplication{
		backend:      backend,
		env:          env,
		logger:       env.Logger,
		passes:       pass.NewRegistry(),
		metrics:      core.NewMetrics(),
		clock:        core.NewClock(),
		FenceTimeout: DefaultFenceTimeout,
	}
	a.targets = pass.NewTargets(backend, env.Clock, env.Trash, env.Logger.WithPrefix("RenderTarget 🎯 "))
	a.settings = settings.New(reloader{a}, backend.Objects(), env.Logger.WithPrefix("Settings 🎛️ "))
	return a
}

func (a *GraphicsApplication) Backend() Graphics               { return a.backend }
func (a *GraphicsApplication) Settings() *settings.Settings    { return a.settings }
func (a *GraphicsApplication) Passes() *pass.Registry          { return a.passes }
func (a *GraphicsApplication) Targets() *pass.Targets          { return a.targets }
func (a *GraphicsApplication) Clock() *frame.Clock             { return a.env.Clock }
func (a *GraphicsApplication) Trash() *trash.Bin               { return a.env.Trash }
func (a *GraphicsApplication) Scene() *Scene                   { return &a.scene }
func (a *GraphicsApplication) Metrics() *core.Metrics          { return a.metrics }
func (a *GraphicsApplication) FramesDrawn() uint64             { return a.frames }
func (a *GraphicsApplication) FramesSkipped() uint64           { return a.skipped }
func (a *GraphicsApplication) ColorTarget() *pass.RenderTarget { return a.color }

// Init initializes the backend, creates the render passes and targets and
// performs the first settings load.
func (a *GraphicsApplication) Init() error {
	if a.initialized {
		return core.Errorf(core.InvalidUse, "graphics application initialized twice")
	}
	if err := a.backend.Init(a.env); err != nil {
		a.logger.Errorf("failed to initialize the %s backend: %s", a.backend.Name(), err)
		return core.Errorf(core.InitializationFailed, "init %s backend: %w", a.backend.Name(), err)
	}

	a.pool = queue.NewPool(a.env.Clock.FramesInFlight(), a.logger.WithPrefix("Queue ⚙️ "))
	a.pool.OnError(a.onQueueError)

	for _, typ := range defaultPasses {
		impl, err := a.backend.CreateRenderPass(typ)
		if err != nil {
			return core.Errorf(core.InitializationFailed, "create %s render pass: %w", typ, err)
		}
		a.passes.RegisterRenderPass(typ, pass.NewRenderPass(typ, impl))
	}
	a.color = a.targets.NewRenderTarget(pass.PBRModel, pass.FormatRGBA16F)
	a.shadow = a.targets.NewRenderTarget(pass.CascadedShadowMapping, pass.FormatDepth32F)

	if err := a.settings.FromConfig(a.env.Config.Graphics); err != nil {
		return err
	}
	w, h := a.env.Context.FramebufferSize()
	a.settings.SetWindowResolution(int(w), int(h))
	if err := a.settings.LoadGfxSettings(); err != nil {
		return core.Errorf(core.InitializationFailed, "initial graphics settings: %w", err)
	}

	if a.env.Events != nil {
		a.env.Events.Register(core.EVENT_CODE_RESIZED, a, a.onResized)
	}
	a.initialized = true
	a.clock.Start()
	a.logger.Infof("graphics application ready on `%s` with %d frames in flight", a.backend.Name(), a.env.Clock.FramesInFlight())
	return nil
}

// Loop draws frames until the context asks to close or ctx is done. onFrame
// runs before every frame with the time since the previous one.
func (a *GraphicsApplication) Loop(ctx context.Context, onFrame func(delta float64) error) error {
	if !a.initialized {
		return ErrNotInitialized
	}
	last := time.Now()
	for !a.ShouldClose() {
		if err := ctx.Err(); err != nil {
			return err
		}
		a.env.Context.PollEvents()

		now := time.Now()
		delta := now.Sub(last).Seconds()
		last = now
		if onFrame != nil {
			if err := onFrame(delta); err != nil {
				return err
			}
		}
		if err := a.Draw(); err != nil {
			return err
		}
	}
	return nil
}

func (a *GraphicsApplication) ShouldClose() bool {
	return a.env.Context.ShouldClose()
}

// WaitForDraws blocks until every queued order ran and the device is idle.
func (a *GraphicsApplication) WaitForDraws() error {
	if a.pool != nil {
		a.pool.WaitAllIdle()
	}
	return a.backend.WaitIdle()
}

// PreClose waits for the GPU then releases everything the frame loop owns,
// before backends are unloaded.
func (a *GraphicsApplication) PreClose() error {
	if !a.initialized {
		return nil
	}
	a.initialized = false
	if a.env.Events != nil {
		a.env.Events.Unregister(core.EVENT_CODE_RESIZED, a)
	}

	var errs []error
	if err := a.WaitForDraws(); err != nil {
		errs = append(errs, err)
	}
	if err := a.pool.Close(); err != nil {
		errs = append(errs, err)
	}
	a.scene = Scene{}
	a.color.Destroy()
	a.shadow.Destroy()
	a.passes.DestroyAll()
	a.cleanPluginObjects()
	a.env.Trash.Close()
	a.logger.Infof("graphics application closed after %d frames, %d skipped", a.frames, a.skipped)
	return errors.Join(errs...)
}

// LoadGfxSettings reloads the settings through the backend, recreating the
// swapchain and every render target.
func (a *GraphicsApplication) LoadGfxSettings() error {
	return a.settings.LoadGfxSettings()
}

// reloader is the settings loader seen by the Settings object: every reload
// waits for the GPU and rebuilds what depends on the swapchain.
type reloader struct {
	a *GraphicsApplication
}

func (r reloader) SetMultiSampling(mode settings.MultiSamplingMode, samples settings.MultiSamplingCount) error {
	return r.a.backend.SetMultiSampling(mode, samples)
}

func (r reloader) SetHDR(enable bool) error {
	return r.a.backend.SetHDR(enable)
}

func (r reloader) AvailableMultiSamplingCounts() []settings.MultiSamplingCount {
	return r.a.backend.AvailableMultiSamplingCounts()
}

func (r reloader) HDRSupported() bool {
	return r.a.backend.HDRSupported()
}

func (r reloader) LoadGfxSettings(data settings.Data) error {
	return r.a.recreate(data)
}

func (a *GraphicsApplication) recreate(data settings.Data) error {
	if err := a.WaitForDraws(); err != nil && !errors.Is(err, core.DeviceLost) {
		return err
	}
	if err := a.backend.LoadGfxSettings(data); err != nil {
		return err
	}
	if err := a.targets.ResetAll(); err != nil {
		return err
	}
	extent := a.backend.ViewportExtent()
	a.settings.SetWindowExtent(int(extent.Width), int(extent.Height))

	a.env.Clock.Reset()
	a.framebufferChanged.Store(false)
	a.presentStale.Store(false)
	a.deviceLost.Store(false)
	a.logger.Debugf("swapchain recreated at %dx%d", extent.Width, extent.Height)
	return nil
}

func (a *GraphicsApplication) onResized(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	a.logger.Debugf("framebuffer resized to %dx%d", data.Data.U32[0], data.Data.U32[1])
	a.framebufferChanged.Store(true)
	return false
}

func (a *GraphicsApplication) onQueueError(frameIndex int, order queue.Order, err error) {
	if errors.Is(err, core.DeviceLost) {
		a.deviceLost.Store(true)
	}
}

func (a *GraphicsApplication) cleanPluginObjects() int {
	if a.env.Plugins != nil {
		return a.env.Plugins.CleanPluginObjects()
	}
	return a.backend.Objects().CleanPluginObjects()
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/cache"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/core"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/frame"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/platform"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/plugin"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer/settings"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/trash"
	"golang.org/x/sync/errgroup"
)

// Engine owns every engine service: configuration, event bus, plugin
// manager, resource cache, frame clock and trash bin. Nothing in the engine
// is global; the services are handed to the backends at Initialize.
type Engine struct {
	currentStage Stage
	gameInstance *Game
	config       *core.Config
	logger       *log.Logger

	events  *core.EventBus
	plugins *plugin.Manager
	cache   *cache.Cache
	clock   *frame.Clock
	trash   *trash.Bin

	context platform.Context
	app     *renderer.GraphicsApplication

	watchers  *errgroup.Group
	stopWatch context.CancelFunc

	isSuspended bool
	width       uint32
	height      uint32
	lastFrame   time.Time
}

// New validates cfg and creates the engine services. A nil cfg uses the
// defaults.
func New(cfg *core.Config, g *Game) (*Engine, error) {
	if cfg == nil {
		cfg = core.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if g == nil {
		g = &Game{}
	}
	core.SetLogLevel(cfg.Engine.LogLevel)

	c, err := cache.New(core.NewLogger("Cache 📦 "))
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	clock := frame.New(core.MaxFramesInFlight)

	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		config:       cfg,
		logger:       core.NewLogger("Engine 🚂 "),
		events:       core.NewEventBus(),
		plugins:      plugin.NewManager(core.NewLogger("Plugins 🔌 ")),
		cache:        c,
		clock:        clock,
		trash:        trash.NewBin(clock.FramesInFlight(), core.NewLogger("Trash 🗑️ ")),
		width:        cfg.Engine.Width,
		height:       cfg.Engine.Height,
	}, nil
}

func (e *Engine) Stage() Stage                               { return e.currentStage }
func (e *Engine) Config() *core.Config                       { return e.config }
func (e *Engine) Events() *core.EventBus                     { return e.events }
func (e *Engine) Plugins() *plugin.Manager                   { return e.plugins }
func (e *Engine) Cache() *cache.Cache                        { return e.cache }
func (e *Engine) Context() platform.Context                  { return e.context }
func (e *Engine) Application() *renderer.GraphicsApplication { return e.app }
func (e *Engine) IsSuspended() bool                          { return e.isSuspended }

// GetFramebufferSize returns the width and height (in this order) of the
// application framebuffer.
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

// Initialize loads the configured backends and brings the graphics
// application up. A backend that fails to load is fatal: the error is
// returned and the caller is expected to Shutdown and exit.
func (e *Engine) Initialize(ctx context.Context) error {
	if e.currentStage != EngineStageUninitialized {
		return core.Errorf(core.InvalidUse, "engine initialized while %s", e.currentStage)
	}

	e.currentStage = EngineStageBooting
	if e.gameInstance.FnBoot != nil {
		if err := e.gameInstance.FnBoot(); err != nil {
			return fmt.Errorf("game boot failed: %w", err)
		}
	}
	e.currentStage = EngineStageBootComplete

	e.currentStage = EngineStageInitializing
	if err := e.plugins.LoadAllPlugins(e.config.Plugins.Graphics, e.config.Plugins.Context); err != nil {
		e.logger.Errorf("cannot load the engine backends: %s", err)
		return err
	}
	pctx, ok := e.plugins.ContextPlugin().(platform.Context)
	if !ok {
		return core.Errorf(core.InitializationFailed, "plugin `%s` does not implement a context", e.plugins.ContextPlugin().Name())
	}
	graphics, ok := e.plugins.GraphicsPlugin().(renderer.Graphics)
	if !ok {
		return core.Errorf(core.InitializationFailed, "plugin `%s` does not implement a graphics backend", e.plugins.GraphicsPlugin().Name())
	}
	if err := pctx.Init(e.config, e.events); err != nil {
		return core.Errorf(core.InitializationFailed, "init %s context: %w", pctx.Name(), err)
	}
	e.context = pctx

	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	e.events.Register(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)
	e.events.Register(core.EVENT_CODE_RESIZED, e, e.onResized)

	e.app = renderer.CreateGraphicsApplication(graphics, renderer.Env{
		Config:  e.config,
		Context: pctx,
		Clock:   e.clock,
		Trash:   e.trash,
		Cache:   e.cache,
		Events:  e.events,
		Plugins: e.plugins,
		Logger:  core.NewLogger("Renderer 🎨 "),
	})
	if err := e.app.Init(); err != nil {
		return err
	}

	e.startWatcher(ctx)

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(e.app); err != nil {
			return fmt.Errorf("game initialize failed: %w", err)
		}
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}
	e.currentStage = EngineStageInitialized
	return nil
}

// startWatcher invalidates cached resources whose files change under the
// configured asset directories until Shutdown.
func (e *Engine) startWatcher(ctx context.Context) {
	if len(e.config.Engine.AssetDirs) == 0 {
		return
	}
	e.cache.OnInvalidate(func(key string) {
		e.logger.Infof("asset `%s` changed on disk, it reloads on next use", key)
	})
	wctx, cancel := context.WithCancel(ctx)
	g, wctx := errgroup.WithContext(wctx)
	g.Go(func() error {
		return e.cache.Watch(wctx, e.config.Engine.AssetDirs...)
	})
	e.watchers = g
	e.stopWatch = cancel
}

// Run drives the frame loop until the context backend closes, quit is
// requested or ctx is cancelled. Cancellation is a normal stop.
func (e *Engine) Run(ctx context.Context) error {
	if e.currentStage != EngineStageInitialized {
		return core.Errorf(core.InvalidUse, "engine run while %s", e.currentStage)
	}
	e.currentStage = EngineStageRunning
	e.logger.Infof("running `%s`", e.config.Engine.Name)

	err := e.app.Loop(ctx, e.frame)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (e *Engine) frame(delta float64) error {
	e.limitFrameRate()
	if e.isSuspended {
		return nil
	}
	if e.gameInstance.FnUpdate != nil {
		if err := e.gameInstance.FnUpdate(delta); err != nil {
			e.logger.Error("game update failed, shutting down")
			return err
		}
	}
	if e.gameInstance.FnRender != nil {
		if err := e.gameInstance.FnRender(e.app.Scene(), delta); err != nil {
			e.logger.Error("game render failed, shutting down")
			return err
		}
	}
	return nil
}

// limitFrameRate gives the remaining frame time back to the OS when a
// target frame rate is configured.
func (e *Engine) limitFrameRate() {
	fps := e.config.Engine.TargetFPS
	if fps == 0 {
		return
	}
	target := time.Second / time.Duration(fps)
	if !e.lastFrame.IsZero() {
		if remaining := target - time.Since(e.lastFrame); remaining > 0 {
			time.Sleep(remaining)
		}
	}
	e.lastFrame = time.Now()
}

// Shutdown stops the watcher, closes the graphics application then unloads
// the backends in reverse load order. It is safe after a failed Initialize.
func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShutdown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown

	var errs []error
	if e.stopWatch != nil {
		e.stopWatch()
		if err := e.watchers.Wait(); err != nil {
			errs = append(errs, fmt.Errorf("asset watcher: %w", err))
		}
	}
	if e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(); err != nil {
			errs = append(errs, err)
		}
	}
	e.cache.Clear()
	if e.app != nil {
		if err := e.app.PreClose(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.plugins.UnloadPlugins(); err != nil {
		errs = append(errs, err)
	}
	e.trash.Close()
	e.events.Shutdown()

	e.currentStage = EngineStageShutdown
	e.logger.Info("engine shut down")
	return errors.Join(errs...)
}

// Quit asks the frame loop to stop after the current frame.
func (e *Engine) Quit() {
	e.events.Fire(core.EVENT_CODE_APPLICATION_QUIT, e, core.EventContext{})
}

func (e *Engine) onEvent(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	switch code {
	case core.EVENT_CODE_APPLICATION_QUIT:
		e.logger.Info("EVENT_CODE_APPLICATION_QUIT received, shutting down")
		if e.context != nil {
			e.context.SetShouldClose(true)
		}
		return true
	}
	return false
}

func (e *Engine) onKey(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	switch data.Data.U16[0] {
	case core.KEY_ESCAPE:
		// Technically firing an event to itself, but there may be other listeners.
		e.Quit()
		return true
	case core.KEY_M:
		e.cycleMultiSampling()
		return true
	case core.KEY_R:
		e.app.Settings().ReloadGfxSettings()
		return true
	}
	return false
}

// cycleMultiSampling moves to the next supported sample count once the
// current frame is submitted.
func (e *Engine) cycleMultiSampling() {
	s := e.app.Settings()
	s.CallbackAfterDraws(func() {
		opts := s.AvailableMultisamplingOptions()
		if len(opts) == 0 {
			return
		}
		next := opts[(s.ActiveMultisamplingCountIndex()+1)%len(opts)]
		mode := settings.MultiSamplingMSAA
		if next == settings.Samples1 {
			mode = settings.MultiSamplingNone
		}
		s.StartGfxSettingsChange()
		if err := s.SetMultiSampling(mode, next); err != nil {
			e.logger.Warnf("multisampling x%d rejected: %s", int(next), err)
		}
		if err := s.EndGfxSettingsChange(); err != nil {
			e.logger.Errorf("multisampling change failed: %s", err)
			return
		}
		e.logger.Infof("multisampling set to %s", next.Label())
	})
}

func (e *Engine) onResized(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	width, height := data.Data.U32[0], data.Data.U32[1]
	if width == e.width && height == e.height {
		return false
	}
	e.width, e.height = width, height
	e.logger.Debugf("window resize: %d, %d", width, height)

	// Handle minimization
	if width == 0 || height == 0 {
		e.logger.Info("window minimized, suspending application")
		e.isSuspended = true
		return false
	}
	if e.isSuspended {
		e.logger.Info("window restored, resuming application")
		e.isSuspended = false
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(width, height); err != nil {
			e.logger.Error(err.Error())
		}
	}
	// The graphics application listens too.
	return false
}

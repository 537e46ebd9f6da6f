// Package settings batches graphics setting changes into single backend
// reloads.
package settings

import (
	"sync"

	"github.com/charmbracelet/log"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/core"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/plugin"
)

type State int

const (
	Ended State = iota
	Started
)

func (s State) String() string {
	if s == Started {
		return "started"
	}
	return "ended"
}

// Data is the settings block shaders read.
type Data struct {
	MultiSamplingMode      MultiSamplingMode
	MultiSamplingSamples   MultiSamplingCount
	HDREnabled             bool
	DebugVisualizationMode DebugVisualizationMode
	ScreenWidth            int
	ScreenHeight           int
	ExtentWidth            int
	ExtentHeight           int
}

// Loader is the backend side of the settings.
type Loader interface {
	SetMultiSampling(mode MultiSamplingMode, samples MultiSamplingCount) error
	SetHDR(enable bool) error
	// LoadGfxSettings rebuilds swapchain, attachments and pipelines.
	LoadGfxSettings(data Data) error
	AvailableMultiSamplingCounts() []MultiSamplingCount
	HDRSupported() bool
}

// MultiSampled is implemented by plugin objects holding pipelines built for
// a sample count.
type MultiSampled interface {
	SetMultiSamplingCount(samples int) error
}

// Objects iterates live plugin objects, stopping when fn returns false.
type Objects interface {
	ForEachObject(fn func(plugin.Object) bool)
}

// Settings is driven from the main goroutine. Only CallbackAfterDraws may
// be called concurrently.
type Settings struct {
	loader  Loader
	objects Objects
	logger  *log.Logger

	state State
	data  Data

	multiSamplingDirty bool
	hdrDirty           bool
	windowSizeDirty    bool
	dataDirty          bool
	constantsDirty     bool
	reloadQueued       bool
	reloads            int

	available []MultiSamplingCount
	labels    []string

	callbacksMu sync.Mutex
	callbacks   []func()
}

func New(loader Loader, objects Objects, logger *log.Logger) *Settings {
	if logger == nil {
		logger = core.NewLogger("Settings 🎛️ ")
	}
	return &Settings{
		loader:  loader,
		objects: objects,
		logger:  logger,
		data: Data{
			MultiSamplingMode:    MultiSamplingMSAA,
			MultiSamplingSamples: Samples4,
		},
		dataDirty:      true,
		constantsDirty: true,
	}
}

// FromConfig applies the [graphics] section without reloading; the first
// LoadGfxSettings, after backend init, makes it effective.
func (s *Settings) FromConfig(cfg core.GraphicsConfig) error {
	mode, err := ParseMultiSamplingMode(cfg.MultiSamplingMode)
	if err != nil {
		return core.Errorf(core.InvalidArgument, "%w", err)
	}
	count := MultiSamplingCount(cfg.MultiSamplingCount)
	if !count.Valid() {
		return core.Errorf(core.InvalidArgument, "invalid multisampling count %d", cfg.MultiSamplingCount)
	}
	s.data.MultiSamplingMode = mode
	s.data.MultiSamplingSamples = count
	s.data.HDREnabled = cfg.HDR && s.loader.HDRSupported()
	s.multiSamplingDirty = true
	s.dataDirty = true
	return nil
}

func (s *Settings) State() State { return s.state }
func (s *Settings) Data() Data   { return s.data }

// Reloads returns how many times LoadGfxSettings reached the backend.
func (s *Settings) Reloads() int { return s.reloads }

func (s *Settings) StartGfxSettingsChange() {
	s.state = Started
}

// EndGfxSettingsChange closes the transaction with exactly one reload.
func (s *Settings) EndGfxSettingsChange() error {
	s.state = Ended
	s.dataDirty = true
	return s.LoadGfxSettings()
}

// LoadGfxSettings applies pending settings. Dirty flags survive a failed
// reload so the next one retries the change.
func (s *Settings) LoadGfxSettings() error {
	s.reloads++
	if err := s.loader.LoadGfxSettings(s.data); err != nil {
		s.logger.Errorf("graphics settings reload failed: %s", err)
		return core.Errorf(core.Failure, "load graphics settings: %w", err)
	}
	if s.multiSamplingDirty {
		if err := s.reapplyMultiSampling(); err != nil {
			return err
		}
	}
	s.multiSamplingDirty = false
	s.hdrDirty = false
	s.windowSizeDirty = false
	s.reloadQueued = false
	s.logger.Debugf("graphics settings loaded: %s x%d, hdr=%t", s.data.MultiSamplingMode, s.data.MultiSamplingSamples, s.data.HDREnabled)
	return nil
}

func (s *Settings) reapplyMultiSampling() error {
	if s.objects == nil {
		return nil
	}
	samples := s.SamplesMultisampling()
	var err error
	s.objects.ForEachObject(func(obj plugin.Object) bool {
		ms, ok := obj.(MultiSampled)
		if !ok {
			return true
		}
		if err = ms.SetMultiSamplingCount(samples); err != nil {
			err = core.Errorf(core.Failure, "reapply multisampling on %s: %w", obj.ID(), err)
			return false
		}
		return true
	})
	return err
}

// afterChange reloads now outside a transaction.
func (s *Settings) afterChange() error {
	if s.state == Ended {
		return s.LoadGfxSettings()
	}
	return nil
}

func (s *Settings) SetMultiSampling(mode MultiSamplingMode, samples MultiSamplingCount) error {
	if mode != MultiSamplingNone && mode != MultiSamplingMSAA {
		return core.Errorf(core.InvalidArgument, "invalid multisampling mode %d", int(mode))
	}
	if !samples.Valid() {
		return core.Errorf(core.InvalidArgument, "invalid multisampling count %d", int(samples))
	}
	// Nothing is committed until the backend accepts the value.
	if err := s.loader.SetMultiSampling(mode, samples); err != nil {
		return core.Errorf(core.Failure, "set multisampling: %w", err)
	}
	s.data.MultiSamplingMode = mode
	s.data.MultiSamplingSamples = samples
	s.multiSamplingDirty = true
	s.dataDirty = true
	return s.afterChange()
}

// SamplesMultisampling returns the effective sample count.
func (s *Settings) SamplesMultisampling() int {
	if s.data.MultiSamplingMode == MultiSamplingNone {
		return 1
	}
	return int(s.data.MultiSamplingSamples)
}

func (s *Settings) ActiveMultisamplingMode() MultiSamplingMode {
	return s.data.MultiSamplingMode
}

func (s *Settings) ActiveMultisamplingCount() MultiSamplingCount {
	return s.data.MultiSamplingSamples
}

// ActiveMultisamplingCountIndex returns the index of the active count in
// AvailableMultisamplingOptions, or its length when unavailable.
func (s *Settings) ActiveMultisamplingCountIndex() int {
	opts := s.AvailableMultisamplingOptions()
	for i, c := range opts {
		if c == s.data.MultiSamplingSamples {
			return i
		}
	}
	return len(opts)
}

// AvailableMultisamplingOptions asks the backend once and caches the result.
func (s *Settings) AvailableMultisamplingOptions() []MultiSamplingCount {
	if s.available == nil {
		s.available = s.loader.AvailableMultiSamplingCounts()
		s.labels = make([]string, len(s.available))
		for i, c := range s.available {
			s.labels[i] = c.Label()
		}
	}
	return s.available
}

func (s *Settings) AvailableMultisamplingLabels() []string {
	s.AvailableMultisamplingOptions()
	return s.labels
}

func (s *Settings) IsHDRSupported() bool { return s.loader.HDRSupported() }
func (s *Settings) IsHDREnabled() bool   { return s.data.HDREnabled }

func (s *Settings) SetHDR(enable bool) error {
	if !s.IsHDRSupported() {
		return core.Errorf(core.FeatureNotSupported, "hdr output is not supported by this device")
	}
	if s.data.HDREnabled == enable {
		return nil
	}
	if err := s.loader.SetHDR(enable); err != nil {
		return err
	}
	s.data.HDREnabled = enable
	s.hdrDirty = true
	s.dataDirty = true
	return s.afterChange()
}

func (s *Settings) SetDebugVisualizationMode(mode DebugVisualizationMode) {
	core.Assert(mode >= DebugNone && mode < DebugVisualizationCount, "invalid debug visualization mode %d", int(mode))
	s.data.DebugVisualizationMode = mode
	s.constantsDirty = true
}

func (s *Settings) DebugVisualizationMode() DebugVisualizationMode {
	return s.data.DebugVisualizationMode
}

// SetWindowResolution records a new window size; the swapchain follows on
// the next reload.
func (s *Settings) SetWindowResolution(width, height int) {
	s.data.ScreenWidth = width
	s.data.ScreenHeight = height
	s.dataDirty = true
	s.constantsDirty = true
	s.windowSizeDirty = true
}

// SetWindowExtent records the drawable extent chosen by the backend.
func (s *Settings) SetWindowExtent(width, height int) {
	s.data.ExtentWidth = width
	s.data.ExtentHeight = height
	s.constantsDirty = true
}

func (s *Settings) IsMultiSamplingDirty() bool { return s.multiSamplingDirty }
func (s *Settings) IsHDRDirty() bool           { return s.hdrDirty }
func (s *Settings) IsWindowSizeDirty() bool    { return s.windowSizeDirty }

// TakeDataDirty reports and clears whether Data needs uploading.
func (s *Settings) TakeDataDirty() bool {
	d := s.dataDirty
	s.dataDirty = false
	return d
}

// TakeConstantsDirty reports and clears whether frame constants need
// uploading.
func (s *Settings) TakeConstantsDirty() bool {
	d := s.constantsDirty
	s.constantsDirty = false
	return d
}

// ReloadGfxSettings schedules a reload after the current frame's draws.
func (s *Settings) ReloadGfxSettings() {
	s.reloadQueued = true
}

func (s *Settings) ReloadQueued() bool { return s.reloadQueued }

// CallbackAfterDraws runs fn once, after the current frame is submitted.
func (s *Settings) CallbackAfterDraws(fn func()) {
	s.callbacksMu.Lock()
	defer s.callbacksMu.Unlock()
	s.callbacks = append(s.callbacks, fn)
}

// LaunchCallbacksAfterDraws runs and clears the pending callbacks, then
// performs a scheduled reload.
func (s *Settings) LaunchCallbacksAfterDraws() error {
	s.callbacksMu.Lock()
	callbacks := s.callbacks
	s.callbacks = nil
	s.callbacksMu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
	if s.reloadQueued {
		return s.LoadGfxSettings()
	}
	return nil
}

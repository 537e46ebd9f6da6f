package pass

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/core"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/frame"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/trash"
)

type Format int

const (
	FormatRGBA8 Format = iota
	FormatRGBA16F
	FormatRGBA32F
	FormatDepth32F
)

func (f Format) String() string {
	switch f {
	case FormatRGBA8:
		return "rgba8"
	case FormatRGBA16F:
		return "rgba16f"
	case FormatRGBA32F:
		return "rgba32f"
	case FormatDepth32F:
		return "depth32f"
	}
	return fmt.Sprintf("format(%d)", int(f))
}

type Extent struct {
	Width  uint32
	Height uint32
}

// Attachment is a backend texture a render target draws into.
type Attachment interface {
	Destroy()
}

type AttachmentInfo struct {
	Name    string
	Extent  Extent
	Format  Format
	Samples int
}

// Backend provides render target attachments and their framebuffers.
type Backend interface {
	CreateAttachment(info AttachmentInfo) (Attachment, error)
	// PrepareRenderTarget builds or attaches framebuffers once the
	// per-frame attachments of rt exist.
	PrepareRenderTarget(rt *RenderTarget) error
	ViewportExtent() Extent
	SampleCount() int
}

// RenderTarget owns one attachment per frame in flight.
type RenderTarget struct {
	targets *Targets
	typ     RenderingPipelineType
	format  Format
	name    string

	extent      Extent
	samples     int
	attachments []Attachment
}

func (rt *RenderTarget) Type() RenderingPipelineType { return rt.typ }
func (rt *RenderTarget) Format() Format              { return rt.format }
func (rt *RenderTarget) Extent() Extent              { return rt.extent }
func (rt *RenderTarget) Samples() int                { return rt.samples }

// Attachments returns the per-frame attachments, empty before Init.
func (rt *RenderTarget) Attachments() []Attachment {
	return rt.attachments
}

// GetTexture returns the attachment of the current frame.
func (rt *RenderTarget) GetTexture() Attachment {
	core.Assert(len(rt.attachments) > 0, "render target %s used before Init", rt.name)
	return rt.attachments[rt.targets.clock.CurrentFrameIndex()]
}

// Init recreates every per-frame attachment at the current viewport extent
// and sample count, then lets the backend prepare framebuffers.
func (rt *RenderTarget) Init() error {
	core.Assert(rt.typ != None, "render target %s has no pipeline type", rt.name)
	t := rt.targets

	rt.retire()
	rt.extent = t.backend.ViewportExtent()
	rt.samples = t.backend.SampleCount()

	n := t.clock.FramesInFlight()
	rt.attachments = make([]Attachment, 0, n)
	for i := 0; i < n; i++ {
		a, err := t.backend.CreateAttachment(AttachmentInfo{
			Name:    fmt.Sprintf("%s.%d", rt.name, i),
			Extent:  rt.extent,
			Format:  rt.format,
			Samples: rt.samples,
		})
		if err != nil {
			rt.retire()
			return core.Errorf(core.InitializationFailed, "render target %s: attachment %d: %w", rt.name, i, err)
		}
		rt.attachments = append(rt.attachments, a)
	}

	if err := t.backend.PrepareRenderTarget(rt); err != nil {
		return core.Errorf(core.InitializationFailed, "render target %s: prepare: %w", rt.name, err)
	}
	t.logger.Debugf("render target %s ready at %dx%d (x%d)", rt.name, rt.extent.Width, rt.extent.Height, rt.samples)
	return nil
}

// Reset is Init after a viewport or format change.
func (rt *RenderTarget) Reset() error {
	return rt.Init()
}

// retire hands the current attachments to the trash bin, frames in flight
// may still sample them.
func (rt *RenderTarget) retire() {
	for _, a := range rt.attachments {
		trash.Enqueue(rt.targets.bin, a, func(v any) { v.(Attachment).Destroy() })
	}
	rt.attachments = nil
}

// Destroy retires the attachments and forgets the target.
func (rt *RenderTarget) Destroy() {
	rt.retire()
	rt.targets.remove(rt)
}

// Targets tracks every live render target so they can be rebuilt together.
type Targets struct {
	backend Backend
	clock   *frame.Clock
	bin     *trash.Bin
	logger  *log.Logger

	mu   sync.Mutex
	live []*RenderTarget
}

func NewTargets(backend Backend, clock *frame.Clock, bin *trash.Bin, logger *log.Logger) *Targets {
	if logger == nil {
		logger = core.NewLogger("RenderTarget 🎯 ")
	}
	return &Targets{
		backend: backend,
		clock:   clock,
		bin:     bin,
		logger:  logger,
	}
}

// NewRenderTarget registers a target; call Init before drawing into it.
func (t *Targets) NewRenderTarget(typ RenderingPipelineType, format Format) *RenderTarget {
	rt := &RenderTarget{
		targets: t,
		typ:     typ,
		format:  format,
		name:    fmt.Sprintf("%s-%s", typ, uuid.NewString()[:8]),
	}
	t.mu.Lock()
	t.live = append(t.live, rt)
	t.mu.Unlock()
	return rt
}

func (t *Targets) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.live)
}

// ResetAll rebuilds every live target, returning the joined failures.
func (t *Targets) ResetAll() error {
	t.mu.Lock()
	live := slices.Clone(t.live)
	t.mu.Unlock()

	var errs []error
	for _, rt := range live {
		if err := rt.Reset(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *Targets) remove(rt *RenderTarget) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i := slices.Index(t.live, rt); i >= 0 {
		t.live = slices.Delete(t.live, i, i+1)
	}
}

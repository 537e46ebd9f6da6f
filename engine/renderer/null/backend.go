// Package null is a graphics backend without a GPU. Queues execute orders
// in software and fences are signaled by the submission that carries them;
// it backs headless runs and the renderer tests.
package null

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/core"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/plugin"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer/pass"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer/queue"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer/settings"
)

var _ renderer.Graphics = (*Backend)(nil)

func init() {
	plugin.Register(plugin.Graphics, core.GraphicsBackendNull, func() (plugin.Backend, error) {
		return New(nil), nil
	})
}

const DefaultImageCount = 3

// Stats counts what the backend did.
type Stats struct {
	Loads                 int
	Records               int
	Submits               int
	Presents              int
	Acquires              int
	AttachmentsCreated    int
	AttachmentsDestroyed  int
	TargetsPrepared       int
	RenderPassesDestroyed int
	MemoryFreed           int
}

// Swapchain is replaced on every settings load.
type Swapchain struct {
	Generation int
	Extent     pass.Extent
	Images     uint32
}

type Backend struct {
	logger  *log.Logger
	objects *plugin.Plugin
	env     renderer.Env

	graphics *Queue
	present  *Queue

	// SupportsHDR is reported by HDRSupported.
	SupportsHDR bool
	// ImageCount is the swapchain image count used by the next load.
	ImageCount uint32

	mu             sync.Mutex
	syncs          []renderer.FrameSync
	swapchain      *Swapchain
	nextImage      uint32
	samples        int
	data           settings.Data
	stats          Stats
	submissions    []Submission
	acquireResults []queue.PresentResult
	presentResults []queue.PresentResult
	failSubmits    int
	failRecords    int
	failLoads      int
}

func New(logger *log.Logger) *Backend {
	if logger == nil {
		logger = core.NewLogger("Null 🕳️ ")
	}
	b := &Backend{
		logger:      logger,
		objects:     plugin.NewPlugin(plugin.Graphics, logger),
		SupportsHDR: true,
		ImageCount:  DefaultImageCount,
		samples:     1,
	}
	b.graphics = &Queue{name: "graphics", backend: b}
	b.present = &Queue{name: "present", backend: b}
	return b
}

func (b *Backend) Name() string               { return core.GraphicsBackendNull }
func (b *Backend) Type() plugin.Type          { return plugin.Graphics }
func (b *Backend) Objects() *plugin.Plugin    { return b.objects }
func (b *Backend) GraphicsQueue() queue.Queue { return b.graphics }
func (b *Backend) PresentQueue() queue.Queue  { return b.present }
func (b *Backend) WaitIdle() error            { return nil }
func (b *Backend) HDRSupported() bool         { return b.SupportsHDR }

func (b *Backend) Init(env renderer.Env) error {
	b.env = env
	b.logger.Infof("null graphics backend, %d frames in flight", env.Clock.FramesInFlight())
	return nil
}

func (b *Backend) Shutdown() error {
	b.objects.Shutdown()
	return nil
}

func (b *Backend) FrameSync(slot int) renderer.FrameSync {
	b.mu.Lock()
	defer b.mu.Unlock()
	core.Assert(slot >= 0 && slot < len(b.syncs), "frame slot %d out of %d", slot, len(b.syncs))
	return b.syncs[slot]
}

func (b *Backend) ResetFence(f queue.Fence) error {
	f.(*Fence).Reset()
	return nil
}

func (b *Backend) WaitForFence(f queue.Fence, timeout time.Duration) error {
	return f.(*Fence).Wait(timeout)
}

func (b *Backend) Swapchain() queue.Swapchain {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.swapchain
}

// LoadGfxSettings rebuilds the swapchain and every frame's sync objects.
func (b *Backend) LoadGfxSettings(data settings.Data) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failLoads > 0 {
		b.failLoads--
		return core.Errorf(core.Failure, "injected settings load failure")
	}
	b.data = data
	b.samples = 1
	if data.MultiSamplingMode == settings.MultiSamplingMSAA {
		b.samples = int(data.MultiSamplingSamples)
	}

	w, h := b.env.Context.FramebufferSize()
	gen := 1
	if b.swapchain != nil {
		gen = b.swapchain.Generation + 1
	}
	b.swapchain = &Swapchain{Generation: gen, Extent: pass.Extent{Width: w, Height: h}, Images: b.ImageCount}
	b.nextImage = 0

	n := b.env.Clock.FramesInFlight()
	b.syncs = make([]renderer.FrameSync, n)
	for i := range b.syncs {
		b.syncs[i] = renderer.FrameSync{
			ImageAvailable: &Semaphore{Name: fmt.Sprintf("imageAvailable.%d", i)},
			SkyboxDone:     &Semaphore{Name: fmt.Sprintf("skyboxDone.%d", i)},
			ShadowDone:     &Semaphore{Name: fmt.Sprintf("shadowDone.%d", i)},
			RenderFinished: &Semaphore{Name: fmt.Sprintf("renderFinished.%d", i)},
			InFlight:       newFence(true),
		}
	}
	b.stats.Loads++
	return nil
}

func (b *Backend) SetMultiSampling(mode settings.MultiSamplingMode, samples settings.MultiSamplingCount) error {
	return nil
}

func (b *Backend) SetHDR(enable bool) error {
	return nil
}

func (b *Backend) AvailableMultiSamplingCounts() []settings.MultiSamplingCount {
	return []settings.MultiSamplingCount{settings.Samples1, settings.Samples2, settings.Samples4, settings.Samples8}
}

func (b *Backend) AcquireNextImage(sync renderer.FrameSync) (uint32, queue.PresentResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.Acquires++
	if len(b.acquireResults) > 0 {
		r := b.acquireResults[0]
		b.acquireResults = b.acquireResults[1:]
		if r == queue.PresentOutOfDate {
			return 0, r, nil
		}
		defer b.advanceImage(sync)
		return b.nextImage, r, nil
	}
	defer b.advanceImage(sync)
	return b.nextImage, queue.PresentSuccess, nil
}

func (b *Backend) advanceImage(sync renderer.FrameSync) {
	sync.ImageAvailable.(*Semaphore).signal()
	b.nextImage = (b.nextImage + 1) % b.swapchain.Images
}

func (b *Backend) Record(rec renderer.Recording) (queue.CommandBuffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failRecords > 0 {
		b.failRecords--
		return nil, core.Errorf(core.Failure, "injected %s record failure", rec.Stage)
	}
	typ := pass.PBRModel
	switch rec.Stage {
	case renderer.StageSkybox:
		typ = pass.Skybox
	case renderer.StageShadow:
		typ = pass.CascadedShadowMapping
	}
	if rp := rec.Passes.GetRenderPass(typ); rp == nil {
		return nil, core.Errorf(core.InvalidUse, "no %s render pass for the %s stage", typ, rec.Stage)
	}

	cmd := &CommandBuffer{Slot: rec.Slot, ImageIndex: rec.ImageIndex, Stage: rec.Stage}
	if rec.Scene != nil {
		switch rec.Stage {
		case renderer.StageSkybox:
			cmd.Skybox = rec.Scene.Skybox != nil
		case renderer.StageShadow:
			if rec.Scene.CastShadows {
				cmd.Draws = len(rec.Scene.Draws)
			}
		case renderer.StageScene:
			cmd.Draws = len(rec.Scene.Draws)
			cmd.Texts = len(rec.Scene.Texts)
		}
	}
	b.stats.Records++
	return cmd, nil
}

func (b *Backend) CreateRenderPass(typ pass.RenderingPipelineType) (pass.Impl, error) {
	return &renderPass{backend: b, typ: typ}, nil
}

func (b *Backend) CreateAttachment(info pass.AttachmentInfo) (pass.Attachment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.AttachmentsCreated++
	return &Attachment{Info: info, mem: memory{backend: b, size: attachmentSize(info)}}, nil
}

func (b *Backend) PrepareRenderTarget(rt *pass.RenderTarget) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.TargetsPrepared++
	return nil
}

func (b *Backend) ViewportExtent() pass.Extent {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.swapchain == nil {
		return pass.Extent{}
	}
	return b.swapchain.Extent
}

func (b *Backend) SampleCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.samples
}

func (b *Backend) CreateTexture(desc renderer.TextureDesc) (renderer.TextureImpl, error) {
	size := int(desc.Extent.Width) * int(desc.Extent.Height) * bytesPerPixel(desc.Format)
	if desc.Pixels != nil && len(desc.Pixels) != size {
		return nil, core.Errorf(core.InvalidArgument, "texture %q: %d bytes of pixels for %d", desc.Name, len(desc.Pixels), size)
	}
	return &Texture{
		mem:    memory{backend: b, size: size},
		extent: desc.Extent,
		format: desc.Format,
		pixels: desc.Pixels,
	}, nil
}

func (b *Backend) CreateBuffer(desc renderer.BufferDesc) (renderer.BufferImpl, error) {
	buf := &Buffer{mem: memory{backend: b, size: desc.Size}, data: make([]byte, desc.Size)}
	copy(buf.data, desc.Data)
	return buf, nil
}

func (b *Backend) CreateShader(desc renderer.ShaderDesc) (renderer.ShaderImpl, error) {
	return &Shader{pipeline: desc.Pipeline, samples: b.SampleCount()}, nil
}

func (b *Backend) CreateMesh(desc renderer.MeshDesc) (renderer.MeshImpl, error) {
	return &Mesh{
		mem:      memory{backend: b, size: len(desc.Vertices)*64 + len(desc.Indices)*4},
		vertices: len(desc.Vertices),
		indices:  len(desc.Indices),
	}, nil
}

func bytesPerPixel(f pass.Format) int {
	switch f {
	case pass.FormatRGBA16F:
		return 8
	case pass.FormatRGBA32F:
		return 16
	}
	return 4
}

func attachmentSize(info pass.AttachmentInfo) int {
	return int(info.Extent.Width) * int(info.Extent.Height) * bytesPerPixel(info.Format) * max(info.Samples, 1)
}

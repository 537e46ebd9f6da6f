// Package renderer holds the graphics backend contract, the frame loop
// driving it and the resource wrappers handed to games.
package renderer

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/cache"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/core"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/frame"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/platform"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/plugin"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer/pass"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer/queue"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer/settings"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/trash"
)

// Stage is one command recording of a frame.
type Stage int

const (
	StageSkybox Stage = iota
	StageShadow
	// StageScene draws lit models, then the GUI on top.
	StageScene
)

func (s Stage) String() string {
	switch s {
	case StageSkybox:
		return "skybox"
	case StageShadow:
		return "shadow"
	case StageScene:
		return "scene"
	}
	return "unknown"
}

// FrameSync holds the synchronization objects of one frame slot.
type FrameSync struct {
	ImageAvailable queue.Semaphore
	SkyboxDone     queue.Semaphore
	ShadowDone     queue.Semaphore
	RenderFinished queue.Semaphore
	InFlight       queue.Fence
}

// Recording describes what a backend records for one stage.
type Recording struct {
	Slot       int
	ImageIndex uint32
	Stage      Stage
	Scene      *Scene
	Passes     *pass.Registry
	Settings   settings.Data
	// Color is the multisampled HDR target the scene resolves from,
	// Shadow the cascaded shadow map.
	Color  *pass.RenderTarget
	Shadow *pass.RenderTarget
}

// Env is what a graphics backend receives at Init.
type Env struct {
	Config  *core.Config
	Context platform.Context
	Clock   *frame.Clock
	Trash   *trash.Bin
	Cache   *cache.Cache
	Events  *core.EventBus
	Plugins *plugin.Manager
	Logger  *log.Logger
}

// Graphics is implemented by every graphics backend.
type Graphics interface {
	plugin.Backend
	settings.Loader
	pass.Backend

	Init(env Env) error

	CreateRenderPass(typ pass.RenderingPipelineType) (pass.Impl, error)

	FrameSync(slot int) FrameSync
	// WaitForFence blocks until the GPU is done with the work guarded by f.
	// A timeout is reported as DeviceLost.
	WaitForFence(f queue.Fence, timeout time.Duration) error
	ResetFence(f queue.Fence) error
	AcquireNextImage(sync FrameSync) (uint32, queue.PresentResult, error)
	Record(rec Recording) (queue.CommandBuffer, error)
	GraphicsQueue() queue.Queue
	PresentQueue() queue.Queue
	Swapchain() queue.Swapchain
	WaitIdle() error

	CreateTexture(desc TextureDesc) (TextureImpl, error)
	CreateBuffer(desc BufferDesc) (BufferImpl, error)
	CreateShader(desc ShaderDesc) (ShaderImpl, error)
	CreateMesh(desc MeshDesc) (MeshImpl, error)
}

// Draw is one mesh drawn with one shader.
type Draw struct {
	Mesh   *Mesh
	Shader *Shader
}

// Scene is what the next frames draw. It is owned by the main goroutine.
type Scene struct {
	Skybox      *Skybox
	Draws       []Draw
	CastShadows bool
	Texts       []Text
	// GUI is called while the GUI pass is recorded.
	GUI func()
}

// Text is a string laid out with a bitmap font.
type Text struct {
	Font     *Font
	Value    string
	Position [2]float32
	Is3D     bool
}

package renderer_test

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kevinpruvost/VenomEngine-sub001/engine/cache"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/core"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/frame"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/math"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/platform"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer/null"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer/pass"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer/queue"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	app     *renderer.GraphicsApplication
	backend *null.Backend
	context *platform.Headless
	dir     string
}

func newFixture(t *testing.T, env renderer.Env) *fixture {
	t.Helper()
	cfg := core.DefaultConfig()
	cfg.Plugins.Graphics = core.GraphicsBackendNull
	cfg.Plugins.Context = core.ContextBackendHeadless

	events := core.NewEventBus()
	ctx := platform.NewHeadless(nil)
	require.NoError(t, ctx.Init(cfg, events))

	dir := t.TempDir()
	env.Config = cfg
	env.Context = ctx
	env.Events = events
	env.Cache = cache.NewAt(dir, nil)

	backend := null.New(nil)
	app := renderer.CreateGraphicsApplication(backend, env)
	require.NoError(t, app.Init())
	t.Cleanup(func() {
		assert.NoError(t, app.PreClose())
		assert.NoError(t, backend.Shutdown())
	})
	return &fixture{app: app, backend: backend, context: ctx, dir: dir}
}

// draw runs n frames, waiting for the queue workers after each.
func (f *fixture) draw(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, f.app.Draw())
		require.NoError(t, f.app.WaitForDraws())
	}
}

func TestInitCreatesPassesAndTargets(t *testing.T) {
	f := newFixture(t, renderer.Env{})

	for _, typ := range []pass.RenderingPipelineType{pass.Skybox, pass.PBRModel, pass.Reflection, pass.CascadedShadowMapping, pass.GUI, pass.Text2D} {
		assert.NotNil(t, f.app.Passes().GetRenderPass(typ), "%s", typ)
	}
	assert.Nil(t, f.app.Passes().GetRenderPass(pass.Text3D))

	assert.Equal(t, 2, f.app.Targets().Len())
	stats := f.backend.Stats()
	assert.Equal(t, 1, stats.Loads)
	assert.Equal(t, 2*core.MaxFramesInFlight, stats.AttachmentsCreated)
	assert.Equal(t, 1, f.app.Settings().Reloads())

	color := f.app.ColorTarget()
	assert.Equal(t, pass.Extent{Width: 1280, Height: 720}, color.Extent())
	assert.Equal(t, 4, color.Samples())
	assert.Len(t, color.Attachments(), core.MaxFramesInFlight)

	assert.ErrorIs(t, f.app.Init(), core.InvalidUse)
}

func TestDrawChainsSemaphores(t *testing.T) {
	f := newFixture(t, renderer.Env{})
	f.draw(t, 1)

	subs := f.backend.Submissions()
	require.Len(t, subs, 3)

	assert.Equal(t, []string{"imageAvailable.0"}, subs[0].Waits)
	assert.Equal(t, []queue.PipelineStage{queue.StageColorAttachmentOutput}, subs[0].Stages)
	assert.Equal(t, []string{"skyboxDone.0"}, subs[0].Signals)
	assert.False(t, subs[0].Fenced)

	assert.Empty(t, subs[1].Waits)
	assert.Equal(t, []string{"shadowDone.0"}, subs[1].Signals)

	assert.Equal(t, []string{"skyboxDone.0", "shadowDone.0"}, subs[2].Waits)
	assert.Equal(t, []string{"renderFinished.0"}, subs[2].Signals)
	assert.True(t, subs[2].Fenced)

	stages := []renderer.Stage{renderer.StageSkybox, renderer.StageShadow, renderer.StageScene}
	for i, s := range subs {
		require.Len(t, s.CommandBuffers, 1)
		assert.Equal(t, stages[i], s.CommandBuffers[0].Stage)
	}

	assert.Equal(t, 1, f.backend.Stats().Presents)
	assert.Equal(t, 1, f.app.Clock().CurrentFrameIndex())
	assert.True(t, f.backend.FrameSync(0).InFlight.(*null.Fence).Signaled())
}

func TestDrawCyclesFrameSlots(t *testing.T) {
	f := newFixture(t, renderer.Env{})
	f.draw(t, 7)

	assert.EqualValues(t, 7, f.app.FramesDrawn())
	assert.Equal(t, 7%core.MaxFramesInFlight, f.app.Clock().CurrentFrameIndex())
	assert.Len(t, f.backend.Submissions(), 21)

	images := map[uint32]bool{}
	for _, s := range f.backend.Submissions() {
		images[s.CommandBuffers[0].ImageIndex] = true
	}
	assert.Len(t, images, null.DefaultImageCount)
}

func TestOutOfDateAcquireRecreatesNextFrame(t *testing.T) {
	f := newFixture(t, renderer.Env{})
	f.backend.InjectAcquireResults(queue.PresentOutOfDate)

	f.draw(t, 1)
	assert.EqualValues(t, 1, f.app.FramesSkipped())
	assert.Empty(t, f.backend.Submissions())
	assert.Equal(t, 1, f.backend.Stats().Loads)

	f.draw(t, 1)
	assert.Equal(t, 2, f.backend.Stats().Loads)
	assert.Equal(t, 2, f.backend.CurrentSwapchain().Generation)
	assert.EqualValues(t, 1, f.app.FramesDrawn())
	assert.Equal(t, 1, f.app.Clock().CurrentFrameIndex())
}

func TestSuboptimalPresentRecreatesNextFrame(t *testing.T) {
	f := newFixture(t, renderer.Env{})
	f.backend.InjectPresentResults(queue.PresentSuboptimal)

	f.draw(t, 1)
	assert.Equal(t, 1, f.backend.Stats().Loads)
	f.draw(t, 1)
	assert.Equal(t, 2, f.backend.Stats().Loads)
	f.draw(t, 1)
	assert.Equal(t, 2, f.backend.Stats().Loads)
}

func TestResizeRecreatesAndTrashesAttachments(t *testing.T) {
	f := newFixture(t, renderer.Env{})
	f.draw(t, 1)

	f.context.Resize(640, 480)
	f.draw(t, 1)
	assert.Equal(t, 2, f.backend.Stats().Loads)
	assert.Equal(t, pass.Extent{Width: 640, Height: 480}, f.app.ColorTarget().Extent())
	assert.Equal(t, 640, f.app.Settings().Data().ExtentWidth)

	// Old attachments wait for every frame in flight.
	assert.Equal(t, 2*core.MaxFramesInFlight, f.app.Trash().Len())
	assert.Zero(t, f.backend.Stats().AttachmentsDestroyed)
	f.draw(t, core.MaxFramesInFlight)
	assert.Zero(t, f.backend.Stats().AttachmentsDestroyed)
	f.draw(t, 1)
	assert.Equal(t, 2*core.MaxFramesInFlight, f.backend.Stats().AttachmentsDestroyed)
}

func TestMinimizedWindowSkipsFrames(t *testing.T) {
	f := newFixture(t, renderer.Env{})
	f.context.Resize(0, 0)
	f.draw(t, 2)
	assert.EqualValues(t, 2, f.app.FramesSkipped())
	assert.Equal(t, 1, f.backend.Stats().Loads)

	f.context.Resize(800, 600)
	f.draw(t, 1)
	assert.Equal(t, 2, f.backend.Stats().Loads)
	assert.EqualValues(t, 1, f.app.FramesDrawn())
}

func TestSettingsTransactionReloadsOnce(t *testing.T) {
	f := newFixture(t, renderer.Env{})
	shader, err := f.app.CreateShader(renderer.ShaderDesc{Name: "pbr", Pipeline: pass.PBRModel, Vertex: []byte{1}})
	require.NoError(t, err)
	defer shader.Release()

	s := f.app.Settings()
	s.StartGfxSettingsChange()
	require.NoError(t, s.SetMultiSampling(settings.MultiSamplingMSAA, settings.Samples8))
	require.NoError(t, s.SetHDR(true))
	assert.Equal(t, 1, f.backend.Stats().Loads)
	require.NoError(t, s.EndGfxSettingsChange())

	assert.Equal(t, 2, f.backend.Stats().Loads)
	assert.True(t, f.backend.LoadedSettings().HDREnabled)
	assert.Equal(t, 8, f.app.ColorTarget().Samples())
	impl := shader.Impl().(*null.Shader)
	assert.Equal(t, 8, impl.Samples())
	assert.Equal(t, 1, impl.Rebuilds())

	f.draw(t, 1)
	assert.EqualValues(t, 1, f.app.FramesDrawn())
}

func TestFailedReloadIsReturned(t *testing.T) {
	f := newFixture(t, renderer.Env{})
	f.backend.FailNextLoads(1)
	f.context.Resize(320, 200)

	err := f.app.Draw()
	require.Error(t, err)
	assert.ErrorIs(t, err, core.Failure)

	f.draw(t, 1)
	assert.Equal(t, pass.Extent{Width: 320, Height: 200}, f.app.ColorTarget().Extent())
}

func TestDeviceLostOnSubmitRecreates(t *testing.T) {
	f := newFixture(t, renderer.Env{})
	f.backend.FailNextSubmits(1)

	f.draw(t, 1)
	assert.Equal(t, 1, f.backend.Stats().Loads)
	f.draw(t, 1)
	assert.Equal(t, 2, f.backend.Stats().Loads)
}

func TestFenceTimeoutIsDeviceLost(t *testing.T) {
	f := newFixture(t, renderer.Env{Clock: frame.New(1)})
	f.app.FenceTimeout = 20 * time.Millisecond
	// The fenced scene submit never reaches the queue.
	f.backend.FailNextSubmits(3)

	f.draw(t, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, f.app.Draw())
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("draw blocked on a fence that is never signaled")
	}
	require.NoError(t, f.app.WaitForDraws())
	assert.Equal(t, 2, f.backend.Stats().Loads)
	assert.EqualValues(t, 2, f.app.FramesDrawn())
}

func TestRecordFailureSkipsFrame(t *testing.T) {
	f := newFixture(t, renderer.Env{})
	f.backend.FailNextRecords(1)

	acquired := f.backend.FrameSync(0).ImageAvailable
	f.draw(t, 1)
	assert.EqualValues(t, 1, f.app.FramesSkipped())
	assert.Zero(t, f.app.FramesDrawn())
	assert.Zero(t, f.app.Clock().CurrentFrameIndex())
	assert.True(t, f.backend.FrameSync(0).InFlight.(*null.Fence).Signaled())
	assert.Equal(t, 1, f.backend.Stats().Loads)

	// The acquired image was never presented: the next frame starts over
	// with fresh sync objects.
	f.draw(t, 1)
	assert.Equal(t, 2, f.backend.Stats().Loads)
	assert.NotSame(t, acquired, f.backend.FrameSync(0).ImageAvailable)
	assert.EqualValues(t, 1, f.app.FramesDrawn())
}

func TestSkippedFramesDoNotReclaim(t *testing.T) {
	f := newFixture(t, renderer.Env{})
	f.draw(t, 1)
	destroyed := 0
	f.app.Trash().Enqueue("buffer", func(any) { destroyed++ })

	f.backend.FailNextRecords(3)
	for i := 0; i < 3; i++ {
		require.NoError(t, f.app.Draw())
		require.NoError(t, f.app.WaitForDraws())
	}
	assert.EqualValues(t, 3, f.app.FramesSkipped())
	assert.EqualValues(t, 1, f.app.FramesDrawn())
	assert.Zero(t, destroyed)
	assert.Equal(t, 1, f.app.Trash().Len())

	f.context.Resize(0, 0)
	f.draw(t, 2)
	assert.Zero(t, destroyed)
	f.context.Resize(800, 600)

	// Enqueued after the first frame, destroyed on the N+1-th frame
	// boundary that follows.
	f.draw(t, core.MaxFramesInFlight)
	assert.Zero(t, destroyed)
	f.draw(t, 1)
	assert.Equal(t, 1, destroyed)
}

func TestReleasedObjectsAreCleanedThenTrashed(t *testing.T) {
	f := newFixture(t, renderer.Env{})
	tex, err := f.app.CreateTexture(renderer.TextureDesc{
		Name:   "white",
		Extent: pass.Extent{Width: 2, Height: 2},
		Format: pass.FormatRGBA8,
		Pixels: make([]byte, 16),
	})
	require.NoError(t, err)
	objects := f.backend.Objects()
	assert.Equal(t, 1, objects.LiveCount())

	tex.Release()
	assert.Equal(t, 1, objects.PendingCount())

	f.draw(t, 1)
	assert.Zero(t, objects.PendingCount())
	assert.Zero(t, objects.LiveCount())
	freed := f.backend.Stats().MemoryFreed

	f.draw(t, core.MaxFramesInFlight)
	assert.Equal(t, freed, f.backend.Stats().MemoryFreed)
	f.draw(t, 1)
	assert.Equal(t, freed+16, f.backend.Stats().MemoryFreed)
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 0xff, A: 0xff})
		}
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	out, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(out, img))
	require.NoError(t, out.Close())
}

func TestLoadTextureIsShared(t *testing.T) {
	f := newFixture(t, renderer.Env{})
	writePNG(t, filepath.Join(f.dir, "textures", "grid.png"), 4, 2)

	h1, err := f.app.LoadTexture("textures/grid.png")
	require.NoError(t, err)
	h2, err := f.app.LoadTexture("./textures/../textures/grid.png")
	require.NoError(t, err)
	assert.Same(t, h1.Get(), h2.Get())
	assert.Equal(t, pass.Extent{Width: 4, Height: 2}, h1.Get().Extent())

	impl := h1.Get().Impl().(*null.Texture)
	px := impl.Pixels()
	require.Len(t, px, 4*2*4)
	assert.Equal(t, []byte{3, 1, 0xff, 0xff}, px[(1*4+3)*4:(1*4+3)*4+4])

	sky, err := f.app.LoadSkybox("textures/grid.png")
	require.NoError(t, err)
	assert.Same(t, h1.Get(), sky.Texture())

	h1.Release()
	h2.Release()
	assert.Equal(t, 1, f.app.Backend().Objects().LiveCount())
	sky.Release()
	assert.Zero(t, f.app.Backend().Objects().LiveCount())

	_, err = f.app.LoadTexture("textures/missing.png")
	assert.Error(t, err)
}

func TestLoadShaderFromDirectory(t *testing.T) {
	f := newFixture(t, renderer.Env{})
	dir := filepath.Join(f.dir, "shaders", "pbr")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, renderer.VertexShaderFile), []byte{0x03, 0x02, 0x23, 0x07}, 0o644))

	h, err := f.app.LoadShader(pass.PBRModel, "shaders/pbr")
	require.NoError(t, err)
	defer h.Release()
	assert.Equal(t, pass.PBRModel, h.Get().Pipeline())

	_, err = f.app.LoadShader(pass.Skybox, "shaders/pbr")
	assert.ErrorIs(t, err, core.InvalidUse)
	assert.EqualValues(t, 1, h.Get().RefCount())
	again, err := f.app.LoadShader(pass.PBRModel, "./shaders/pbr")
	require.NoError(t, err)
	assert.Same(t, h.Get(), again.Get())
	again.Release()

	_, err = f.app.LoadShader(pass.PBRModel, "shaders/none")
	assert.Error(t, err)
	_, err = f.app.CreateShader(renderer.ShaderDesc{Name: "x", Pipeline: pass.None, Vertex: []byte{1}})
	assert.ErrorIs(t, err, core.InvalidArgument)
}

func TestCreateMesh(t *testing.T) {
	f := newFixture(t, renderer.Env{})
	vertices := []math.Vertex3D{
		{Position: math.Vec3{X: 0, Y: 0, Z: 0}},
		{Position: math.Vec3{X: 1, Y: 0, Z: 0}},
		{Position: math.Vec3{X: 0, Y: 1, Z: 0}},
	}
	m, err := f.app.CreateMesh(renderer.MeshDesc{Name: "tri", Vertices: vertices, Indices: []uint32{0, 1, 2}, GenerateNormals: true})
	require.NoError(t, err)
	assert.Equal(t, 3, m.VertexCount())
	assert.Equal(t, 3, m.IndexCount())
	assert.Equal(t, math.Vec3{}, vertices[0].Normal, "input vertices are not modified")

	_, err = f.app.CreateMesh(renderer.MeshDesc{Name: "bad", Vertices: vertices, Indices: []uint32{0, 1, 3}})
	assert.ErrorIs(t, err, core.InvalidArgument)

	f.app.Scene().Draws = []renderer.Draw{{Mesh: m}}
	f.draw(t, 1)
	subs := f.backend.Submissions()
	assert.Equal(t, 1, subs[2].CommandBuffers[0].Draws)
	assert.Zero(t, subs[1].CommandBuffers[0].Draws)
	f.app.Scene().Draws = nil
	m.Release()
}

func TestModelOwnsItsMeshesAndTextures(t *testing.T) {
	f := newFixture(t, renderer.Env{})
	writePNG(t, filepath.Join(f.dir, "textures", "albedo.png"), 4, 2)
	vertices := []math.Vertex3D{
		{Position: math.Vec3{X: 0, Y: 0, Z: 0}},
		{Position: math.Vec3{X: 1, Y: 0, Z: 0}},
		{Position: math.Vec3{X: 0, Y: 1, Z: 0}},
	}
	body, err := f.app.CreateMesh(renderer.MeshDesc{Name: "body", Vertices: vertices, Indices: []uint32{0, 1, 2}})
	require.NoError(t, err)
	wheel, err := f.app.CreateMesh(renderer.MeshDesc{Name: "wheel", Vertices: vertices})
	require.NoError(t, err)
	albedo, err := f.app.LoadTexture("textures/albedo.png")
	require.NoError(t, err)

	model, err := f.app.CreateModel(renderer.ModelDesc{
		Name:     "car",
		Meshes:   []*renderer.Mesh{body, wheel},
		Textures: []*cache.Holder[*renderer.Texture]{albedo},
	})
	require.NoError(t, err)
	body.Release()
	wheel.Release()
	albedo.Release()

	objects := f.backend.Objects()
	assert.Equal(t, 3, objects.LiveCount())
	assert.Zero(t, objects.PendingCount())
	assert.Equal(t, 6, model.VertexCount())
	require.Len(t, model.Textures(), 1)
	assert.Equal(t, pass.Extent{Width: 4, Height: 2}, model.Textures()[0].Extent())

	f.app.Scene().AddModel(model, nil)
	require.Len(t, f.app.Scene().Draws, 2)
	f.draw(t, 1)
	assert.Equal(t, 2, f.backend.Submissions()[2].CommandBuffers[0].Draws)
	f.app.Scene().Draws = nil

	model.Release()
	assert.Equal(t, 3, objects.PendingCount())
	freed := f.backend.Stats().MemoryFreed

	f.draw(t, 1)
	assert.Zero(t, objects.PendingCount())
	assert.Zero(t, objects.LiveCount())
	f.draw(t, core.MaxFramesInFlight)
	assert.Equal(t, freed, f.backend.Stats().MemoryFreed)
	f.draw(t, 1)
	assert.Equal(t, freed+3*64+3*4+3*64+4*2*4, f.backend.Stats().MemoryFreed)

	_, err = f.app.CreateModel(renderer.ModelDesc{Name: "empty"})
	assert.ErrorIs(t, err, core.InvalidArgument)
	_, err = f.app.CreateModel(renderer.ModelDesc{Name: "stale", Meshes: []*renderer.Mesh{body}})
	assert.ErrorIs(t, err, core.InvalidArgument)
}

func TestBufferWriteBounds(t *testing.T) {
	f := newFixture(t, renderer.Env{})
	b, err := f.app.CreateBuffer(renderer.BufferDesc{Name: "ubo", Usage: renderer.BufferUniform, Size: 8})
	require.NoError(t, err)
	defer b.Release()

	require.NoError(t, b.Write(4, []byte{1, 2, 3, 4}))
	assert.Equal(t, []byte{0, 0, 0, 0, 1, 2, 3, 4}, b.Impl().(*null.Buffer).Bytes())
	assert.ErrorIs(t, b.Write(6, []byte{1, 2, 3}), core.InvalidArgument)

	_, err = f.app.CreateBuffer(renderer.BufferDesc{Name: "empty"})
	assert.ErrorIs(t, err, core.InvalidArgument)
}

func TestLoadFontMissing(t *testing.T) {
	f := newFixture(t, renderer.Env{})
	_, err := f.app.LoadFont("fonts/none.fnt")
	assert.Error(t, err)
}

func TestCallbacksAndGUIRunOncePerFrame(t *testing.T) {
	f := newFixture(t, renderer.Env{})
	calls, gui := 0, 0
	f.app.Settings().CallbackAfterDraws(func() { calls++ })
	f.app.Scene().GUI = func() { gui++ }

	f.draw(t, 2)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, gui)
}

func TestQueuedReloadRunsAfterDraws(t *testing.T) {
	f := newFixture(t, renderer.Env{})
	f.app.Settings().ReloadGfxSettings()
	f.draw(t, 1)
	assert.Equal(t, 2, f.backend.Stats().Loads)
	assert.False(t, f.app.Settings().ReloadQueued())
}

func TestLoopRunsUntilContextCloses(t *testing.T) {
	f := newFixture(t, renderer.Env{})
	f.context.FrameLimit = 5

	frames := 0
	err := f.app.Loop(context.Background(), func(delta float64) error {
		frames++
		assert.GreaterOrEqual(t, delta, 0.0)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 5, frames)
	assert.EqualValues(t, 5, f.app.FramesDrawn())
}

func TestLoopStopsOnCancel(t *testing.T) {
	f := newFixture(t, renderer.Env{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, f.app.Loop(ctx, nil), context.Canceled)
}

func TestPreCloseReleasesEverything(t *testing.T) {
	f := newFixture(t, renderer.Env{})
	f.draw(t, 2)
	require.NoError(t, f.app.PreClose())

	assert.ErrorIs(t, f.app.Draw(), renderer.ErrNotInitialized)
	assert.Equal(t, 5, f.backend.Stats().RenderPassesDestroyed)
	assert.Zero(t, f.app.Trash().Len())
	assert.Zero(t, f.app.Targets().Len())
	assert.Equal(t, f.backend.Stats().AttachmentsCreated, f.backend.Stats().AttachmentsDestroyed)
	assert.NoError(t, f.app.PreClose())
}

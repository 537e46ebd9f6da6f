package pass

import (
	"errors"
	"testing"

	"github.com/kevinpruvost/VenomEngine-sub001/engine/frame"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/trash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeImpl struct {
	destroyed int
}

func (f *fakeImpl) Destroy() { f.destroyed++ }

func TestPipelineTypeNames(t *testing.T) {
	assert.Equal(t, "None", None.String())
	assert.Equal(t, "PBRModel", PBRModel.String())
	assert.Equal(t, "RadianceMap", RadianceMap.String())
	assert.Equal(t, "Count", Count.String())
	assert.Equal(t, "Unknown", RenderingPipelineType(42).String())
	assert.EqualValues(t, 0, GUI)
	assert.EqualValues(t, 13, Count)
}

func TestPBRFanOut(t *testing.T) {
	r := NewRegistry()
	pbr := NewRenderPass(PBRModel, &fakeImpl{})
	r.RegisterRenderPass(PBRModel, pbr)

	for _, typ := range []RenderingPipelineType{PBRModel, Reflection, AdditiveLighting, AdditiveLightingMS} {
		assert.Same(t, pbr, r.GetRenderPass(typ), typ.String())
	}

	sky := NewRenderPass(Skybox, &fakeImpl{})
	r.RegisterRenderPass(Skybox, sky)
	assert.Same(t, sky, r.GetRenderPass(Skybox))
	assert.Same(t, pbr, r.GetRenderPass(Reflection))
	assert.Nil(t, r.GetRenderPass(GUI))
}

func TestReplaceDoesNotDestroy(t *testing.T) {
	r := NewRegistry()
	oldImpl := &fakeImpl{}
	old := NewRenderPass(GUI, oldImpl)
	r.RegisterRenderPass(GUI, old)
	r.RegisterRenderPass(GUI, NewRenderPass(GUI, &fakeImpl{}))
	assert.NotSame(t, old, r.GetRenderPass(GUI))
	assert.Zero(t, oldImpl.destroyed)
}

func TestSentinelsPanic(t *testing.T) {
	r := NewRegistry()
	assert.Panics(t, func() { r.GetRenderPass(None) })
	assert.Panics(t, func() { r.GetRenderPass(Count) })
	assert.Panics(t, func() { r.RegisterRenderPass(None, &RenderPass{}) })
	assert.Panics(t, func() { NewRenderPass(Count, nil) })
}

func TestMoveRepointsEverySlot(t *testing.T) {
	r := NewRegistry()
	impl := &fakeImpl{}
	src := NewRenderPass(PBRModel, impl)
	r.RegisterRenderPass(PBRModel, src)

	dst := r.Move(src)
	assert.True(t, src.IsPlaceholder())
	assert.Same(t, impl, dst.Impl())
	for _, typ := range PBRModel.Slots() {
		assert.Same(t, dst, r.GetRenderPass(typ))
	}

	src.Destroy()
	assert.Zero(t, impl.destroyed)
	dst.Destroy()
	dst.Destroy()
	assert.Equal(t, 1, impl.destroyed)
}

func TestUnregisterAndDestroyAll(t *testing.T) {
	r := NewRegistry()
	pbrImpl, guiImpl := &fakeImpl{}, &fakeImpl{}
	pbr := NewRenderPass(PBRModel, pbrImpl)
	r.RegisterRenderPass(PBRModel, pbr)
	r.RegisterRenderPass(GUI, NewRenderPass(GUI, guiImpl))

	r.Unregister(pbr)
	assert.Nil(t, r.GetRenderPass(AdditiveLighting))
	r.RegisterRenderPass(PBRModel, pbr)

	count := 0
	r.ForEach(func(*RenderPass) { count++ })
	assert.Equal(t, 2, count)

	r.DestroyAll()
	assert.Equal(t, 1, pbrImpl.destroyed)
	assert.Equal(t, 1, guiImpl.destroyed)
	assert.Nil(t, r.GetRenderPass(PBRModel))
}

type fakeAttachment struct {
	info      AttachmentInfo
	destroyed bool
}

func (a *fakeAttachment) Destroy() { a.destroyed = true }

type fakeBackend struct {
	extent   Extent
	samples  int
	created  []*fakeAttachment
	prepared int
	failAt   int
}

func (b *fakeBackend) CreateAttachment(info AttachmentInfo) (Attachment, error) {
	if b.failAt > 0 && len(b.created)+1 == b.failAt {
		return nil, errors.New("out of device memory")
	}
	a := &fakeAttachment{info: info}
	b.created = append(b.created, a)
	return a, nil
}

func (b *fakeBackend) PrepareRenderTarget(*RenderTarget) error {
	b.prepared++
	return nil
}

func (b *fakeBackend) ViewportExtent() Extent { return b.extent }
func (b *fakeBackend) SampleCount() int       { return b.samples }

func TestRenderTargetInitCreatesOnePerFrame(t *testing.T) {
	clock := frame.New(3)
	bin := trash.NewBin(3, nil)
	b := &fakeBackend{extent: Extent{1280, 720}, samples: 4}
	targets := NewTargets(b, clock, bin, nil)

	rt := targets.NewRenderTarget(AdditiveLighting, FormatRGBA16F)
	require.NoError(t, rt.Init())
	require.Len(t, rt.Attachments(), 3)
	assert.Equal(t, 1, b.prepared)
	assert.Equal(t, Extent{1280, 720}, b.created[0].info.Extent)
	assert.Equal(t, 4, b.created[2].info.Samples)

	clock.AdvanceFrame()
	assert.Same(t, b.created[1], rt.GetTexture())

	// A resize retires the old attachments through the trash bin.
	b.extent = Extent{1920, 1080}
	require.NoError(t, targets.ResetAll())
	assert.Equal(t, Extent{1920, 1080}, rt.Extent())
	assert.Equal(t, 3, bin.Len())
	assert.False(t, b.created[0].destroyed)
	for i := 0; i <= 3; i++ {
		bin.Tick()
	}
	assert.True(t, b.created[0].destroyed)
	assert.False(t, b.created[3].destroyed)
}

func TestRenderTargetNeedsPipelineType(t *testing.T) {
	targets := NewTargets(&fakeBackend{}, frame.New(3), nil, nil)
	rt := targets.NewRenderTarget(None, FormatRGBA8)
	assert.Panics(t, func() { _ = rt.Init() })
	assert.Panics(t, func() { rt.GetTexture() })
}

func TestRenderTargetInitFailure(t *testing.T) {
	b := &fakeBackend{failAt: 2}
	targets := NewTargets(b, frame.New(3), nil, nil)
	rt := targets.NewRenderTarget(GUI, FormatRGBA8)

	err := rt.Init()
	require.Error(t, err)
	assert.Empty(t, rt.Attachments())
	// No bin: the partial attachment is destroyed immediately.
	assert.True(t, b.created[0].destroyed)
	assert.Zero(t, b.prepared)

	rt.Destroy()
	assert.Zero(t, targets.Len())
}

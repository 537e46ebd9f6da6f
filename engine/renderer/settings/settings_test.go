package settings

import (
	"errors"
	"testing"

	"github.com/kevinpruvost/VenomEngine-sub001/engine/core"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLoader struct {
	loads        []Data
	failLoads    int
	hdrSupported bool
	hdrCalls     int
	msCalls      int
	// rejected counts fail SetMultiSampling as unsupported.
	rejected []MultiSamplingCount
}

func (l *fakeLoader) SetMultiSampling(_ MultiSamplingMode, samples MultiSamplingCount) error {
	l.msCalls++
	for _, r := range l.rejected {
		if r == samples {
			return core.Errorf(core.FeatureNotSupported, "x%d unsupported", int(samples))
		}
	}
	return nil
}

func (l *fakeLoader) SetHDR(bool) error {
	l.hdrCalls++
	return nil
}

func (l *fakeLoader) LoadGfxSettings(data Data) error {
	if l.failLoads > 0 {
		l.failLoads--
		return core.Errorf(core.DeviceLost, "swapchain creation failed")
	}
	l.loads = append(l.loads, data)
	return nil
}

func (l *fakeLoader) AvailableMultiSamplingCounts() []MultiSamplingCount {
	return []MultiSamplingCount{Samples1, Samples2, Samples4, Samples8}
}

func (l *fakeLoader) HDRSupported() bool { return l.hdrSupported }

type pipeline struct {
	plugin.Base
	samples int
}

func (p *pipeline) Destroy() {}

func (p *pipeline) SetMultiSamplingCount(samples int) error {
	p.samples = samples
	return nil
}

type buffer struct {
	plugin.Base
}

func (b *buffer) Destroy() {}

func TestDefaults(t *testing.T) {
	s := New(&fakeLoader{}, nil, nil)
	assert.Equal(t, Ended, s.State())
	assert.Equal(t, MultiSamplingMSAA, s.ActiveMultisamplingMode())
	assert.Equal(t, Samples4, s.ActiveMultisamplingCount())
	assert.Equal(t, 4, s.SamplesMultisampling())
	assert.EqualValues(t, 1, MultiSamplingNone)
	assert.EqualValues(t, 2, MultiSamplingMSAA)
	assert.True(t, s.TakeDataDirty())
	assert.False(t, s.TakeDataDirty())
}

func TestTransactionReloadsOnce(t *testing.T) {
	l := &fakeLoader{}
	s := New(l, nil, nil)

	s.StartGfxSettingsChange()
	require.NoError(t, s.SetMultiSampling(MultiSamplingMSAA, Samples4))
	require.NoError(t, s.SetMultiSampling(MultiSamplingMSAA, Samples8))
	assert.Empty(t, l.loads)
	assert.True(t, s.IsMultiSamplingDirty())
	require.NoError(t, s.EndGfxSettingsChange())

	require.Len(t, l.loads, 1)
	assert.Equal(t, Samples8, l.loads[0].MultiSamplingSamples)
	assert.Equal(t, 1, s.Reloads())
	assert.Equal(t, 2, l.msCalls)
	assert.False(t, s.IsMultiSamplingDirty())
	assert.Equal(t, Ended, s.State())
}

func TestChangeOutsideTransactionReloadsImmediately(t *testing.T) {
	l := &fakeLoader{}
	s := New(l, nil, nil)

	require.NoError(t, s.SetMultiSampling(MultiSamplingMSAA, Samples2))
	require.NoError(t, s.SetMultiSampling(MultiSamplingNone, Samples1))
	require.Len(t, l.loads, 2)
	assert.Equal(t, 1, s.SamplesMultisampling())
}

func TestFailedReloadKeepsDirty(t *testing.T) {
	l := &fakeLoader{failLoads: 1}
	s := New(l, nil, nil)

	err := s.SetMultiSampling(MultiSamplingMSAA, Samples8)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.Failure)
	assert.ErrorIs(t, err, core.DeviceLost)
	assert.True(t, s.IsMultiSamplingDirty())

	require.NoError(t, s.LoadGfxSettings())
	assert.False(t, s.IsMultiSamplingDirty())
	require.Len(t, l.loads, 1)
	assert.Equal(t, Samples8, l.loads[0].MultiSamplingSamples)
}

func TestInvalidMultiSampling(t *testing.T) {
	s := New(&fakeLoader{}, nil, nil)
	assert.ErrorIs(t, s.SetMultiSampling(MultiSamplingMSAA, 3), core.InvalidArgument)
	assert.ErrorIs(t, s.SetMultiSampling(7, Samples2), core.InvalidArgument)
}

func TestRejectedMultiSamplingIsNotApplied(t *testing.T) {
	l := &fakeLoader{rejected: []MultiSamplingCount{Samples16}}
	s := New(l, nil, nil)
	require.NoError(t, s.LoadGfxSettings())
	require.False(t, s.IsMultiSamplingDirty())

	err := s.SetMultiSampling(MultiSamplingMSAA, Samples16)
	assert.ErrorIs(t, err, core.FeatureNotSupported)
	assert.Equal(t, Samples4, s.ActiveMultisamplingCount())
	assert.False(t, s.IsMultiSamplingDirty())

	require.NoError(t, s.LoadGfxSettings())
	require.Len(t, l.loads, 2)
	assert.Equal(t, Samples4, l.loads[1].MultiSamplingSamples)
}

func TestReloadReappliesSampleCount(t *testing.T) {
	objects := plugin.NewPlugin(plugin.Graphics, nil)
	p1, p2 := &pipeline{}, &pipeline{}
	objects.AddPluginObject(p1)
	objects.AddPluginObject(&buffer{})
	objects.AddPluginObject(p2)

	s := New(&fakeLoader{}, objects, nil)
	require.NoError(t, s.SetMultiSampling(MultiSamplingMSAA, Samples16))
	assert.Equal(t, 16, p1.samples)
	assert.Equal(t, 16, p2.samples)

	// Reloads without a multisampling change leave pipelines alone.
	p1.samples = 0
	require.NoError(t, s.LoadGfxSettings())
	assert.Zero(t, p1.samples)
}

func TestHDR(t *testing.T) {
	l := &fakeLoader{}
	s := New(l, nil, nil)
	assert.ErrorIs(t, s.SetHDR(true), core.FeatureNotSupported)
	assert.False(t, s.IsHDREnabled())

	l.hdrSupported = true
	require.NoError(t, s.SetHDR(true))
	require.NoError(t, s.SetHDR(true))
	assert.True(t, s.IsHDREnabled())
	assert.Equal(t, 1, l.hdrCalls)
	assert.Len(t, l.loads, 1)
	assert.True(t, l.loads[0].HDREnabled)
}

func TestAvailableOptions(t *testing.T) {
	s := New(&fakeLoader{}, nil, nil)
	assert.Equal(t, []string{"x1", "x2", "x4", "x8"}, s.AvailableMultisamplingLabels())
	assert.Equal(t, 2, s.ActiveMultisamplingCountIndex())
	require.NoError(t, s.SetMultiSampling(MultiSamplingMSAA, Samples32))
	assert.Equal(t, 4, s.ActiveMultisamplingCountIndex())
}

func TestDebugVisualizationAndWindow(t *testing.T) {
	s := New(&fakeLoader{}, nil, nil)
	s.TakeConstantsDirty()

	s.SetDebugVisualizationMode(DebugForwardPlus)
	assert.Equal(t, "ForwardPlus", s.DebugVisualizationMode().String())
	assert.True(t, s.TakeConstantsDirty())
	assert.Panics(t, func() { s.SetDebugVisualizationMode(DebugVisualizationCount) })
	assert.Len(t, DebugVisualizationNames(), 5)

	s.SetWindowResolution(1920, 1080)
	assert.True(t, s.IsWindowSizeDirty())
	s.SetWindowExtent(1918, 1078)
	assert.Equal(t, 1918, s.Data().ExtentWidth)
	require.NoError(t, s.LoadGfxSettings())
	assert.False(t, s.IsWindowSizeDirty())
}

func TestCallbacksAfterDraws(t *testing.T) {
	l := &fakeLoader{}
	s := New(l, nil, nil)

	var order []string
	s.CallbackAfterDraws(func() { order = append(order, "a") })
	s.CallbackAfterDraws(func() { order = append(order, "b") })
	s.ReloadGfxSettings()
	require.NoError(t, s.LaunchCallbacksAfterDraws())
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Len(t, l.loads, 1)
	assert.False(t, s.ReloadQueued())

	require.NoError(t, s.LaunchCallbacksAfterDraws())
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Len(t, l.loads, 1)
}

func TestFromConfig(t *testing.T) {
	s := New(&fakeLoader{}, nil, nil)
	cfg := core.DefaultConfig().Graphics
	cfg.MultiSamplingCount = 8
	require.NoError(t, s.FromConfig(cfg))
	assert.Equal(t, Samples8, s.ActiveMultisamplingCount())

	cfg.MultiSamplingMode = "fxaa"
	err := s.FromConfig(cfg)
	assert.ErrorIs(t, err, core.InvalidArgument)
	assert.False(t, errors.Is(err, core.DeviceLost))
}

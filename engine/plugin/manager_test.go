package plugin

import (
	"errors"
	"testing"

	"github.com/kevinpruvost/VenomEngine-sub001/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	name    string
	typ     Type
	objects *Plugin
	order   *[]string
}

func (b *fakeBackend) Name() string     { return b.name }
func (b *fakeBackend) Type() Type       { return b.typ }
func (b *fakeBackend) Objects() *Plugin { return b.objects }
func (b *fakeBackend) Shutdown() error {
	*b.order = append(*b.order, b.name)
	b.objects.Shutdown()
	return nil
}

func registerFake(typ Type, name string, order *[]string) {
	Register(typ, name, func() (Backend, error) {
		return &fakeBackend{name: name, typ: typ, objects: NewPlugin(typ, nil), order: order}, nil
	})
}

func TestLoadAllPluginsAndUnloadInReverse(t *testing.T) {
	var order []string
	registerFake(Graphics, "fake-gfx-load", &order)
	registerFake(Context, "fake-ctx-load", &order)

	m := NewManager(nil)
	require.NoError(t, m.LoadAllPlugins("FAKE-GFX-LOAD", "fake-ctx-load"))
	assert.Equal(t, "fake-gfx-load", m.GraphicsPlugin().Name())
	assert.Equal(t, "fake-ctx-load", m.ContextPlugin().Name())
	assert.Contains(t, Backends(Graphics), "fake-gfx-load")

	var log []string
	obj := &fakeObject{name: "window", log: &log}
	require.NoError(t, m.AddPluginObject(Context, obj))
	assert.Equal(t, Context, obj.Type())
	assert.Equal(t, 1, m.ContextPlugin().Objects().LiveCount())

	h := NewHandle(obj)
	h.Release()
	assert.Equal(t, 1, m.CleanPluginObjects())

	require.NoError(t, m.UnloadPlugins())
	assert.Equal(t, []string{"fake-gfx-load", "fake-ctx-load"}, order)
	assert.Nil(t, m.GraphicsPlugin())
}

func TestLoadUnknownPluginIsInitializationFailure(t *testing.T) {
	m := NewManager(nil)
	err := m.LoadAllPlugins("fake-gfx-missing", "fake-ctx-missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.InitializationFailed))
	assert.True(t, errors.Is(err, ErrUnknownBackend))
}

func TestLoadTwiceIsInvalidUse(t *testing.T) {
	var order []string
	registerFake(Graphics, "fake-gfx-twice", &order)
	m := NewManager(nil)
	_, err := m.LoadPlugin(Graphics, "fake-gfx-twice")
	require.NoError(t, err)
	_, err = m.LoadPlugin(Graphics, "fake-gfx-twice")
	assert.ErrorIs(t, err, ErrAlreadyLoaded)
	assert.ErrorIs(t, err, core.InvalidUse)
}

func TestFactoryTypeMismatch(t *testing.T) {
	var order []string
	registerFake(Context, "fake-mismatch", &order)
	Register(Graphics, "fake-mismatch", func() (Backend, error) {
		return &fakeBackend{name: "fake-mismatch", typ: Context, objects: NewPlugin(Context, nil), order: &order}, nil
	})
	m := NewManager(nil)
	_, err := m.LoadPlugin(Graphics, "fake-mismatch")
	assert.ErrorIs(t, err, core.InvalidArgument)
}

func TestRegisterTwicePanics(t *testing.T) {
	var order []string
	registerFake(Graphics, "fake-dup", &order)
	assert.Panics(t, func() { registerFake(Graphics, "Fake-Dup", &order) })
}

func TestDynamicModuleMissing(t *testing.T) {
	m := NewManager(nil)
	_, err := m.LoadPlugin(Graphics, DynamicPrefix+t.TempDir()+"/absent")
	assert.ErrorIs(t, err, core.InitializationFailed)
}

func TestModuleFileName(t *testing.T) {
	assert.Equal(t, "lib/vulkan.so", moduleFileName("lib/vulkan.so"))
	assert.NotEqual(t, "lib/vulkan", moduleFileName("lib/vulkan"))
}

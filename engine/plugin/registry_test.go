package plugin

import (
	"testing"

	"github.com/kevinpruvost/VenomEngine-sub001/engine/trash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeObject optionally owns another object, like a model owning a mesh.
type fakeObject struct {
	Base
	name  string
	child *Handle[*fakeObject]
	log   *[]string
	bin   *trash.Bin
}

func (o *fakeObject) Destroy() {
	*o.log = append(*o.log, o.name)
	if o.child != nil {
		o.child.Release()
	}
	if o.bin != nil {
		name := o.name
		trash.Enqueue(o.bin, name, func(any) {
			*o.log = append(*o.log, "free "+name)
		})
	}
}

func newFake(p *Plugin, name string, log *[]string) *fakeObject {
	o := &fakeObject{name: name, log: log}
	p.AddPluginObject(o)
	return o
}

func TestRemoveDefersDestruction(t *testing.T) {
	var log []string
	p := NewPlugin(Graphics, nil)
	h := NewHandle(newFake(p, "texture", &log))
	assert.Equal(t, int32(1), h.Get().RefCount())
	assert.Equal(t, Graphics, h.Get().Type())

	h.Release()
	h.Release()
	assert.Empty(t, log)
	assert.Equal(t, 0, p.LiveCount())
	assert.Equal(t, 1, p.PendingCount())

	assert.Equal(t, 1, p.CleanPluginObjects())
	assert.Equal(t, []string{"texture"}, log)
	assert.Zero(t, p.PendingCount())
}

func TestCleanPluginObjectsDrainsDependencyChain(t *testing.T) {
	var log []string
	p := NewPlugin(Graphics, nil)
	c := newFake(p, "c", &log)
	b := newFake(p, "b", &log)
	b.child = NewHandle(c)
	a := newFake(p, "a", &log)
	a.child = NewHandle(b)

	h := NewHandle(a)
	h.Release()

	assert.Equal(t, 3, p.CleanPluginObjects())
	assert.Equal(t, []string{"a", "b", "c"}, log)
	assert.Zero(t, p.PendingCount())
	assert.Zero(t, p.LiveCount())
}

func TestShutdownDestroysInReverseCreationOrder(t *testing.T) {
	var log []string
	p := NewPlugin(Graphics, nil)
	var handles []*Handle[*fakeObject]
	for _, name := range []string{"application", "device", "swapchain", "pipeline"} {
		handles = append(handles, NewHandle(newFake(p, name, &log)))
	}
	p.Shutdown()
	assert.Equal(t, []string{"pipeline", "swapchain", "device", "application"}, log)
}

func TestShutdownDoesNotDestroyTwice(t *testing.T) {
	var log []string
	p := NewPlugin(Graphics, nil)
	child := newFake(p, "child", &log)
	parent := newFake(p, "parent", &log)
	parent.child = NewHandle(child)
	_ = NewHandle(parent)

	p.Shutdown()
	assert.Equal(t, []string{"parent", "child"}, log)
}

func TestForEachObjectStops(t *testing.T) {
	var log []string
	p := NewPlugin(Context, nil)
	for _, name := range []string{"a", "b", "c"} {
		_ = NewHandle(newFake(p, name, &log))
	}
	var seen []string
	p.ForEachObject(func(o Object) bool {
		seen = append(seen, o.(*fakeObject).name)
		return len(seen) < 2
	})
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestHandleUseAfterReleasePanics(t *testing.T) {
	var log []string
	p := NewPlugin(Graphics, nil)
	h := NewHandle(newFake(p, "x", &log))
	c := h.Clone()
	h.Release()
	assert.False(t, h.Valid())
	assert.Panics(t, func() { h.Get() })
	assert.Equal(t, int32(1), c.Get().RefCount())
	c.Release()
	assert.Equal(t, 1, p.PendingCount())
}

func TestReleasedObjectGoesThroughTrash(t *testing.T) {
	const frames = 3
	var log []string
	bin := trash.NewBin(frames, nil)
	p := NewPlugin(Graphics, nil)

	a := &fakeObject{name: "A", log: &log, bin: bin}
	p.AddPluginObject(a)
	external := NewHandle(a)
	require.Equal(t, int32(1), a.RefCount())

	b := newFake(p, "B", &log)
	b.child = external.Clone()
	owner := NewHandle(b)
	require.Equal(t, int32(2), a.RefCount())

	owner.Release()
	p.CleanPluginObjects()
	assert.Equal(t, int32(1), a.RefCount())
	assert.Equal(t, []string{"B"}, log)

	external.Release()
	p.CleanPluginObjects()
	assert.Equal(t, []string{"B", "A"}, log)
	assert.Equal(t, 1, bin.Len())

	for i := 0; i < frames; i++ {
		bin.Tick()
	}
	assert.NotContains(t, log, "free A")
	bin.Tick()
	assert.Equal(t, []string{"B", "A", "free A"}, log)

	for i := 0; i < frames; i++ {
		bin.Tick()
	}
	bin.Close()
	assert.Equal(t, []string{"B", "A", "free A"}, log)
}

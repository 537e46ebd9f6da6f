// Package plugin implements reference counted backend objects, the per
// backend object registry and the manager loading the backends.
package plugin

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/core"
)

// Type tags the backend owning an object.
type Type int

const (
	Graphics Type = iota
	Context
	TypeCount
)

func (t Type) String() string {
	switch t {
	case Graphics:
		return "graphics"
	case Context:
		return "context"
	default:
		return fmt.Sprintf("plugin.Type(%d)", int(t))
	}
}

// Object is any resource created by a backend. Implementations embed Base.
type Object interface {
	Type() Type
	ID() uuid.UUID
	IncRefCount()
	DecRefCount() int32
	RefCount() int32
	// Destroy releases the native resource. GPU memory is handed to the
	// trash bin rather than freed here.
	Destroy()

	base() *Base
}

// Remover receives objects whose reference count dropped to zero.
type Remover interface {
	RemovePluginObject(obj Object)
}

// Base carries the bookkeeping shared by every plugin object. Its zero
// value is ready to embed; identity and type are assigned when the object
// is added to its Plugin.
type Base struct {
	id        uuid.UUID
	typ       Type
	refs      atomic.Int32
	destroyed atomic.Bool
	owner     Remover
	self      Object
}

func (b *Base) Type() Type {
	return b.typ
}

func (b *Base) ID() uuid.UUID {
	return b.id
}

func (b *Base) IncRefCount() {
	b.refs.Add(1)
}

// DecRefCount drops a reference. The last one hands the object back to its
// owner for removal.
func (b *Base) DecRefCount() int32 {
	n := b.refs.Add(-1)
	core.Assert(n >= 0, "plugin object %s released more times than referenced", b.id)
	if n == 0 && b.owner != nil {
		b.owner.RemovePluginObject(b.self)
	}
	return n
}

func (b *Base) RefCount() int32 {
	return b.refs.Load()
}

// Destroyed reports whether the object went through Destroy already.
func (b *Base) Destroyed() bool {
	return b.destroyed.Load()
}

func (b *Base) base() *Base {
	return b
}

func (b *Base) bind(owner Remover, self Object, typ Type) {
	if b.id == uuid.Nil {
		b.id = uuid.New()
	}
	b.owner = owner
	b.self = self
	b.typ = typ
}

// destroy runs Destroy at most once per object.
func destroy(obj Object) bool {
	if !obj.base().destroyed.CompareAndSwap(false, true) {
		return false
	}
	obj.Destroy()
	return true
}

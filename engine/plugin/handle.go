package plugin

import (
	"sync/atomic"

	"github.com/kevinpruvost/VenomEngine-sub001/engine/core"
)

// Handle is a shared owning reference to an Object. Every Handle holds one
// reference; Clone adds one and Release gives it back.
type Handle[T Object] struct {
	obj      T
	released atomic.Bool
}

func NewHandle[T Object](obj T) *Handle[T] {
	obj.IncRefCount()
	return &Handle[T]{obj: obj}
}

// Get returns the object. Panics on a released handle.
func (h *Handle[T]) Get() T {
	core.Assert(h.Valid(), "use of a released plugin handle")
	return h.obj
}

func (h *Handle[T]) Valid() bool {
	return h != nil && !h.released.Load()
}

func (h *Handle[T]) Clone() *Handle[T] {
	return NewHandle(h.Get())
}

// Release drops the reference. Releasing twice is a no-op.
func (h *Handle[T]) Release() {
	if h == nil || !h.released.CompareAndSwap(false, true) {
		return
	}
	h.obj.DecRefCount()
}

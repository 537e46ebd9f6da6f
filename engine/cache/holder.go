package cache

import (
	"sync/atomic"

	"github.com/kevinpruvost/VenomEngine-sub001/engine/core"
)

// Holder is one shared reference to a cached resource. Releasing the last
// holder of a resource removes it from the cache and destroys it.
type Holder[T Resource] struct {
	cache    *Cache
	res      T
	released atomic.Bool
}

// Hold acquires the resource at path, loading it on a miss.
func Hold[T Resource](c *Cache, path string, load func(canonical string) (T, error)) (*Holder[T], error) {
	res, err := c.Acquire(path, func(canonical string) (Resource, error) {
		return load(canonical)
	})
	if err != nil {
		return nil, err
	}
	return &Holder[T]{cache: c, res: res.(T)}, nil
}

func (h *Holder[T]) Get() T {
	core.Assert(!h.released.Load(), "use of a released cache holder")
	return h.res
}

// Clone takes another reference on the same resource.
func (h *Holder[T]) Clone() *Holder[T] {
	core.Assert(!h.released.Load(), "clone of a released cache holder")
	h.res.cached().refs.Add(1)
	return &Holder[T]{cache: h.cache, res: h.res}
}

func (h *Holder[T]) Release() {
	if h == nil || !h.released.CompareAndSwap(false, true) {
		return
	}
	h.cache.Release(h.res)
}

package cache

import "sync/atomic"

// CachedResource is embedded by resources shared through a Cache.
type CachedResource struct {
	cache atomic.Pointer[Cache]
	key   string
	refs  atomic.Int32
}

func (r *CachedResource) cached() *CachedResource {
	return r
}

// CacheKey returns the canonical path the resource is stored under, empty
// when it is not cached.
func (r *CachedResource) CacheKey() string {
	return r.key
}

// RefCount returns the references taken through Cache.Acquire.
func (r *CachedResource) RefCount() int32 {
	return r.refs.Load()
}

// ReleaseFromCache removes the resource from its cache. Called by the
// resource destructor; safe to call more than once.
func (r *CachedResource) ReleaseFromCache() {
	if c := r.cache.Swap(nil); c != nil {
		c.evict(r.key, r)
	}
}

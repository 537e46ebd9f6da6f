// Package cache shares immutable GPU resources loaded from files, keyed by
// their canonical path.
package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/core"
)

var ErrAlreadyCached = errors.New("object already in cache")

// Resource is a shared resource stored in a Cache. Implementations embed
// CachedResource.
type Resource interface {
	cached() *CachedResource
}

// Destroyer is implemented by resources that free native memory when the
// last reference taken through Acquire is released.
type Destroyer interface {
	DestroyCached()
}

// Loader creates the resource for a canonical path on a cache miss.
type Loader func(canonical string) (Resource, error)

type Cache struct {
	workingDir string
	logger     *log.Logger

	mu           sync.RWMutex
	entries      map[string]Resource
	onInvalidate func(key string)
}

// New creates a cache whose keys are relative to the process working
// directory.
func New(logger *log.Logger) (*Cache, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("cache: failed to get working directory: %w", err)
	}
	return NewAt(wd, logger), nil
}

// NewAt creates a cache whose keys are relative to workingDir. Relative
// paths given to the cache are resolved against it too.
func NewAt(workingDir string, logger *log.Logger) *Cache {
	if logger == nil {
		logger = core.NewLogger("Cache 📦 ")
	}
	if real, err := filepath.EvalSymlinks(workingDir); err == nil {
		workingDir = real
	}
	return &Cache{
		workingDir: workingDir,
		logger:     logger,
		entries:    make(map[string]Resource),
	}
}

// Canonical turns path into the cache key: absolute with symlinks resolved,
// then relative to the working directory, with forward slashes. It fails
// when the file does not exist.
func (c *Cache) Canonical(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.workingDir, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(c.workingDir, real)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// Path turns a cache key back into a file system path.
func (c *Cache) Path(key string) string {
	p := filepath.FromSlash(key)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.workingDir, p)
}

// key canonicalizes path and logs instead of failing, the miss is handled
// by the caller.
func (c *Cache) key(path string) (string, bool) {
	k, err := c.Canonical(path)
	if err != nil {
		c.logger.Warnf("cannot canonicalize `%s`: %s", path, err)
		return "", false
	}
	return k, true
}

func (c *Cache) HasCachedObject(path string) bool {
	_, ok := c.GetCachedObject(path)
	return ok
}

func (c *Cache) GetCachedObject(path string) (Resource, bool) {
	k, ok := c.key(path)
	if !ok {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	res, ok := c.entries[k]
	return res, ok
}

// SetInCache stores res under path. An existing entry is never replaced:
// that is a contract violation reported as InvalidUse.
func (c *Cache) SetInCache(path string, res Resource) error {
	return c.store(path, res, false)
}

// store adds res to the cache, taking a reference under the same lock when
// acquire is set.
func (c *Cache) store(path string, res Resource, acquire bool) error {
	k, ok := c.key(path)
	if !ok {
		return core.Errorf(core.Failure, "cache: cannot store `%s`, path does not resolve", path)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[k]; exists {
		return core.Errorf(core.InvalidUse, "%w: %s", ErrAlreadyCached, k)
	}
	cr := res.cached()
	core.Assert(cr.cache.Load() == nil, "resource is already stored under `%s`", cr.key)
	cr.key = k
	cr.cache.Store(c)
	c.entries[k] = res
	if acquire {
		cr.refs.Add(1)
	}
	return nil
}

// lookupAndRef returns the entry for path with one more reference. Release
// drops the last reference under the write lock, so an entry found here is
// never being destroyed.
func (c *Cache) lookupAndRef(path string) (Resource, bool) {
	k, ok := c.key(path)
	if !ok {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	res, ok := c.entries[k]
	if ok {
		res.cached().refs.Add(1)
	}
	return res, ok
}

// Acquire returns the cached resource for path, loading and storing it on
// a miss, and takes a reference on it.
func (c *Cache) Acquire(path string, load Loader) (Resource, error) {
	if res, ok := c.lookupAndRef(path); ok {
		return res, nil
	}

	k, ok := c.key(path)
	if !ok {
		// Resolution failed: let the loader try the path as given.
		k = path
	}
	res, err := load(k)
	if err != nil {
		return nil, fmt.Errorf("cache: failed to load `%s`: %w", path, err)
	}
	if err := c.store(path, res, true); err != nil {
		if !errors.Is(err, ErrAlreadyCached) {
			c.logger.Warnf("`%s` loaded but not cached: %s", path, err)
			res.cached().refs.Add(1)
			return res, nil
		}
		// Lost a race with another loader, use the winner.
		if d, ok := res.(Destroyer); ok {
			d.DestroyCached()
		}
		return c.Acquire(path, load)
	}
	return res, nil
}

// Release drops a reference taken with Acquire. The last one removes the
// entry and destroys the resource.
func (c *Cache) Release(res Resource) {
	cr := res.cached()
	c.mu.Lock()
	n := cr.refs.Add(-1)
	if n == 0 && cr.cache.CompareAndSwap(c, nil) {
		if cur, ok := c.entries[cr.key]; ok && cur.cached() == cr {
			delete(c.entries, cr.key)
		}
	}
	c.mu.Unlock()

	core.Assert(n >= 0, "cached resource `%s` released too many times", cr.key)
	if n > 0 {
		return
	}
	if d, ok := res.(Destroyer); ok {
		d.DestroyCached()
	}
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// evict removes the entry for key if it still maps to cr.
func (c *Cache) evict(key string, cr *CachedResource) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.entries[key]
	if !ok || (cr != nil && res.cached() != cr) {
		return false
	}
	delete(c.entries, key)
	return true
}

// Clear drops every entry. Resources stay alive for their holders.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, res := range c.entries {
		res.cached().cache.Store(nil)
		delete(c.entries, k)
	}
}

// ReleaseFromCache removes the entry stored under path, if any.
func (c *Cache) ReleaseFromCache(path string) {
	k, ok := c.key(path)
	if !ok {
		return
	}
	c.mu.Lock()
	res, ok := c.entries[k]
	if ok {
		delete(c.entries, k)
	}
	c.mu.Unlock()
	if ok {
		res.cached().cache.Store(nil)
	}
}

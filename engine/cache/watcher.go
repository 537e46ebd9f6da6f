package cache

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Invalidate drops the entry stored under the canonical key. Holders keep
// their resource; the next Acquire reloads from disk.
func (c *Cache) Invalidate(key string) bool {
	c.mu.Lock()
	res, ok := c.entries[key]
	if ok {
		delete(c.entries, key)
	}
	hook := c.onInvalidate
	c.mu.Unlock()

	if !ok {
		return false
	}
	res.cached().cache.Store(nil)
	c.logger.Debugf("invalidated `%s`", key)
	if hook != nil {
		hook(key)
	}
	return true
}

// OnInvalidate sets a function called after an entry is dropped because
// its file changed.
func (c *Cache) OnInvalidate(fn func(key string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onInvalidate = fn
}

// Watch invalidates entries whose file is written, removed or renamed under
// dirs, recursively. It blocks until ctx is done.
func (c *Cache) Watch(ctx context.Context, dirs ...string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	for _, dir := range dirs {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(c.workingDir, dir)
		}
		if real, err := filepath.EvalSymlinks(dir); err == nil {
			dir = real
		}
		if err := c.watchRecursive(w, dir); err != nil {
			return err
		}
	}
	c.logger.Debugf("watching %d directories", len(w.WatchList()))

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-w.Events:
			if !ok {
				return nil
			}
			if e.Op.Has(fsnotify.Create) {
				if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
					if err := c.watchRecursive(w, e.Name); err != nil {
						c.logger.Warnf("cannot watch `%s`: %s", e.Name, err)
					}
				}
				continue
			}
			if e.Op.Has(fsnotify.Write) || e.Op.Has(fsnotify.Remove) || e.Op.Has(fsnotify.Rename) {
				rel, err := filepath.Rel(c.workingDir, e.Name)
				if err != nil {
					continue
				}
				c.Invalidate(filepath.ToSlash(rel))
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			c.logger.Error(err)
		}
	}
}

func (c *Cache) watchRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}

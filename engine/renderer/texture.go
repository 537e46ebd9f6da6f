package renderer

import (
	"github.com/kevinpruvost/VenomEngine-sub001/engine/cache"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/plugin"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer/pass"
)

// Texture is a sampled image. Textures loaded from a file are shared
// through the resource cache.
type Texture struct {
	cache.CachedResource
	handle *plugin.Handle[TextureImpl]
}

func newTexture(impl TextureImpl) *Texture {
	return &Texture{handle: plugin.NewHandle(impl)}
}

func (t *Texture) Impl() TextureImpl   { return t.handle.Get() }
func (t *Texture) Extent() pass.Extent { return t.Impl().Extent() }
func (t *Texture) Format() pass.Format { return t.Impl().Format() }
func (t *Texture) Valid() bool         { return t.handle.Valid() }

// Release drops the texture's reference on its backend object.
func (t *Texture) Release() {
	t.handle.Release()
}

// DestroyCached runs when the last cache holder is released.
func (t *Texture) DestroyCached() {
	t.Release()
}

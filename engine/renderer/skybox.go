package renderer

import (
	"github.com/kevinpruvost/VenomEngine-sub001/engine/cache"
)

// Skybox draws an equirectangular panorama behind the scene.
type Skybox struct {
	texture *cache.Holder[*Texture]
}

func (s *Skybox) Texture() *Texture {
	return s.texture.Get()
}

func (s *Skybox) Release() {
	s.texture.Release()
}

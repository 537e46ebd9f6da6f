package renderer

import (
	"github.com/kevinpruvost/VenomEngine-sub001/engine/cache"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/plugin"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer/pass"
)

// Shader files inside a shader directory.
const (
	VertexShaderFile   = "vert.spv"
	FragmentShaderFile = "frag.spv"
)

// Shader is a compiled pipeline for one rendering pipeline type. Shaders
// loaded from a directory are cached by it.
type Shader struct {
	cache.CachedResource
	handle *plugin.Handle[ShaderImpl]
}

func (s *Shader) Impl() ShaderImpl                     { return s.handle.Get() }
func (s *Shader) Pipeline() pass.RenderingPipelineType { return s.Impl().Pipeline() }
func (s *Shader) Release()                             { s.handle.Release() }
func (s *Shader) DestroyCached()                       { s.Release() }

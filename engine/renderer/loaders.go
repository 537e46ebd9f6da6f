package renderer

import (
	"os"
	"path"
	"path/filepath"
	"slices"

	"github.com/fzipp/bmfont"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/cache"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/core"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/math"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/plugin"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer/pass"
)

// register adds a fresh backend object to the backend's registry.
func register[T plugin.Object](a *GraphicsApplication, obj T) *plugin.Handle[T] {
	a.backend.Objects().AddPluginObject(obj)
	return plugin.NewHandle(obj)
}

func (a *GraphicsApplication) resourceCache() (*cache.Cache, error) {
	if a.env.Cache == nil {
		return nil, core.Errorf(core.InvalidUse, "no resource cache configured")
	}
	return a.env.Cache, nil
}

// CreateTexture creates an uncached texture from memory.
func (a *GraphicsApplication) CreateTexture(desc TextureDesc) (*Texture, error) {
	if desc.Extent.Width == 0 || desc.Extent.Height == 0 {
		return nil, core.Errorf(core.InvalidArgument, "texture %q has an empty extent", desc.Name)
	}
	impl, err := a.backend.CreateTexture(desc)
	if err != nil {
		return nil, core.Errorf(core.Failure, "create texture %q: %w", desc.Name, err)
	}
	return &Texture{handle: register(a, impl)}, nil
}

// LoadTexture returns the shared texture decoded from an image file.
func (a *GraphicsApplication) LoadTexture(file string) (*cache.Holder[*Texture], error) {
	c, err := a.resourceCache()
	if err != nil {
		return nil, err
	}
	return cache.Hold(c, file, func(canonical string) (*Texture, error) {
		img, err := decodeImage(c.Path(canonical))
		if err != nil {
			return nil, err
		}
		return a.CreateTexture(textureDescFromImage(canonical, img))
	})
}

func (a *GraphicsApplication) CreateBuffer(desc BufferDesc) (*Buffer, error) {
	if desc.Size <= 0 {
		desc.Size = len(desc.Data)
	}
	if desc.Size == 0 {
		return nil, core.Errorf(core.InvalidArgument, "buffer %q has no size", desc.Name)
	}
	if len(desc.Data) > desc.Size {
		return nil, core.Errorf(core.InvalidArgument, "buffer %q: %d bytes of data for %d bytes", desc.Name, len(desc.Data), desc.Size)
	}
	impl, err := a.backend.CreateBuffer(desc)
	if err != nil {
		return nil, core.Errorf(core.Failure, "create buffer %q: %w", desc.Name, err)
	}
	return &Buffer{usage: desc.Usage, handle: register(a, impl)}, nil
}

func (a *GraphicsApplication) CreateShader(desc ShaderDesc) (*Shader, error) {
	if !desc.Pipeline.Valid() {
		return nil, core.Errorf(core.InvalidArgument, "shader %q has no pipeline type", desc.Name)
	}
	if len(desc.Vertex) == 0 {
		return nil, core.Errorf(core.InvalidArgument, "shader %q has no vertex stage", desc.Name)
	}
	impl, err := a.backend.CreateShader(desc)
	if err != nil {
		return nil, core.Errorf(core.Failure, "create shader %q: %w", desc.Name, err)
	}
	return &Shader{handle: register(a, impl)}, nil
}

// LoadShader returns the shared shader built from a directory holding
// vert.spv and, optionally, frag.spv. A directory is cached for the
// pipeline type it was first loaded with; asking for another one is
// InvalidUse.
func (a *GraphicsApplication) LoadShader(pipeline pass.RenderingPipelineType, dir string) (*cache.Holder[*Shader], error) {
	c, err := a.resourceCache()
	if err != nil {
		return nil, err
	}
	h, err := cache.Hold(c, dir, func(canonical string) (*Shader, error) {
		root := c.Path(canonical)
		vert, err := os.ReadFile(filepath.Join(root, VertexShaderFile))
		if err != nil {
			return nil, core.Errorf(core.InvalidArgument, "read vertex stage: %w", err)
		}
		frag, err := os.ReadFile(filepath.Join(root, FragmentShaderFile))
		if err != nil && !os.IsNotExist(err) {
			return nil, core.Errorf(core.InvalidArgument, "read fragment stage: %w", err)
		}
		return a.CreateShader(ShaderDesc{
			Name:     canonical,
			Pipeline: pipeline,
			Vertex:   vert,
			Fragment: frag,
		})
	})
	if err != nil {
		return nil, err
	}
	if got := h.Get().Pipeline(); got != pipeline {
		h.Release()
		return nil, core.Errorf(core.InvalidUse, "shader `%s` is cached as %s, not %s", dir, got, pipeline)
	}
	return h, nil
}

func (a *GraphicsApplication) CreateMesh(desc MeshDesc) (*Mesh, error) {
	if len(desc.Vertices) == 0 {
		return nil, core.Errorf(core.InvalidArgument, "mesh %q has no vertices", desc.Name)
	}
	for _, i := range desc.Indices {
		if int(i) >= len(desc.Vertices) {
			return nil, core.Errorf(core.InvalidArgument, "mesh %q: index %d out of %d vertices", desc.Name, i, len(desc.Vertices))
		}
	}
	if desc.GenerateNormals {
		desc.Vertices = slices.Clone(desc.Vertices)
		math.GenerateNormals(desc.Vertices, desc.Indices)
	}
	impl, err := a.backend.CreateMesh(desc)
	if err != nil {
		return nil, core.Errorf(core.Failure, "create mesh %q: %w", desc.Name, err)
	}
	return &Mesh{handle: register(a, impl)}, nil
}

// LoadSkybox loads an equirectangular panorama. The texture is shared with
// LoadTexture callers of the same file.
func (a *GraphicsApplication) LoadSkybox(file string) (*Skybox, error) {
	tex, err := a.LoadTexture(file)
	if err != nil {
		return nil, err
	}
	return &Skybox{texture: tex}, nil
}

// LoadFont returns the shared bitmap font described by an AngelCode .fnt
// file. Page images are loaded through LoadTexture.
func (a *GraphicsApplication) LoadFont(file string) (*cache.Holder[*Font], error) {
	c, err := a.resourceCache()
	if err != nil {
		return nil, err
	}
	return cache.Hold(c, file, func(canonical string) (*Font, error) {
		bf, err := bmfont.Load(c.Path(canonical))
		if err != nil {
			return nil, core.Errorf(core.InvalidArgument, "load font: %w", err)
		}
		f := newFont(bf.Descriptor)

		ids := make([]int, 0, len(bf.Descriptor.Pages))
		files := make(map[int]string, len(bf.Descriptor.Pages))
		for _, p := range bf.Descriptor.Pages {
			ids = append(ids, int(p.ID))
			files[int(p.ID)] = p.File
		}
		slices.Sort(ids)
		for _, id := range ids {
			tex, err := a.LoadTexture(path.Join(path.Dir(canonical), files[id]))
			if err != nil {
				f.DestroyCached()
				return nil, err
			}
			f.pages = append(f.pages, tex)
		}
		return f, nil
	})
}

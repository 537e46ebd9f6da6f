package pass

import (
	"sync"

	"github.com/kevinpruvost/VenomEngine-sub001/engine/core"
)

// Impl is the backend half of a render pass.
type Impl interface {
	Destroy()
}

type RenderPass struct {
	typ  RenderingPipelineType
	impl Impl
}

func NewRenderPass(typ RenderingPipelineType, impl Impl) *RenderPass {
	core.Assert(typ.Valid(), "render pass for invalid pipeline type %s", typ)
	return &RenderPass{typ: typ, impl: impl}
}

func (rp *RenderPass) Type() RenderingPipelineType {
	return rp.typ
}

// Impl returns the native pass, nil for a moved-from placeholder.
func (rp *RenderPass) Impl() Impl {
	return rp.impl
}

func (rp *RenderPass) IsPlaceholder() bool {
	return rp.impl == nil
}

// Destroy releases the native pass. Placeholders do nothing.
func (rp *RenderPass) Destroy() {
	if rp.impl == nil {
		return
	}
	rp.impl.Destroy()
	rp.impl = nil
}

// Registry holds at most one pass per pipeline type.
type Registry struct {
	mu     sync.RWMutex
	passes [Count]*RenderPass
}

func NewRegistry() *Registry {
	return &Registry{}
}

// RegisterRenderPass installs rp for typ and any types sharing it. A
// replaced pass is not destroyed, it keeps its own lifecycle.
func (r *Registry) RegisterRenderPass(typ RenderingPipelineType, rp *RenderPass) {
	core.Assert(typ.Valid(), "cannot register a render pass for %s", typ)
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, slot := range typ.Slots() {
		r.passes[slot] = rp
	}
}

// GetRenderPass returns the pass for typ, nil when none is registered.
func (r *Registry) GetRenderPass(typ RenderingPipelineType) *RenderPass {
	core.Assert(typ.Valid(), "no render pass slot for %s", typ)
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.passes[typ]
}

// Unregister clears every slot pointing at rp.
func (r *Registry) Unregister(rp *RenderPass) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.passes {
		if p == rp {
			r.passes[i] = nil
		}
	}
}

// Move transfers the native pass of src to a new RenderPass, turns src
// into a placeholder and repoints every slot of src in one step.
func (r *Registry) Move(src *RenderPass) *RenderPass {
	dst := &RenderPass{typ: src.typ, impl: src.impl}
	src.impl = nil

	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.passes {
		if p == src {
			r.passes[i] = dst
		}
	}
	return dst
}

// ForEach calls fn for every distinct registered pass.
func (r *Registry) ForEach(fn func(*RenderPass)) {
	r.mu.RLock()
	seen := make(map[*RenderPass]struct{}, len(r.passes))
	list := make([]*RenderPass, 0, len(r.passes))
	for _, p := range r.passes {
		if p == nil {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		list = append(list, p)
	}
	r.mu.RUnlock()

	for _, p := range list {
		fn(p)
	}
}

// DestroyAll unregisters and destroys every pass.
func (r *Registry) DestroyAll() {
	r.ForEach(func(p *RenderPass) {
		r.Unregister(p)
		p.Destroy()
	})
}

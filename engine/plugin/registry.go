package plugin

import (
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/core"
)

// Plugin is the live object list of one backend. Objects are removed in two
// steps: the last reference moves them to a pending list, and
// CleanPluginObjects destroys them once per loop iteration, outside of any
// method of the object itself.
type Plugin struct {
	typ    Type
	logger *log.Logger

	mu       sync.Mutex
	objects  []Object
	toRemove []Object
}

func NewPlugin(typ Type, logger *log.Logger) *Plugin {
	if logger == nil {
		logger = core.NewLogger(typ.String() + " 🔌 ")
	}
	return &Plugin{
		typ:    typ,
		logger: logger,
	}
}

func (p *Plugin) Type() Type {
	return p.typ
}

// AddPluginObject registers a freshly created object. It starts with no
// reference; wrap it in a Handle to own it.
func (p *Plugin) AddPluginObject(obj Object) {
	core.Assert(!obj.base().Destroyed(), "adding a destroyed object to the %s plugin", p.typ)
	obj.base().bind(p, obj, p.typ)
	p.mu.Lock()
	p.objects = append(p.objects, obj)
	p.mu.Unlock()
}

// RemovePluginObject moves obj from the live list to the pending list. The
// object is not destroyed here since the call may come from inside one of
// its own methods.
func (p *Plugin) RemovePluginObject(obj Object) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := slices.Index(p.objects, obj)
	if i < 0 {
		return
	}
	p.objects = slices.Delete(p.objects, i, i+1)
	p.toRemove = append(p.toRemove, obj)
}

// CleanPluginObjects destroys every pending object. Destroying an object
// may release the last reference of others; those are collected in the next
// pass, until a pass produces nothing. Returns the number destroyed.
func (p *Plugin) CleanPluginObjects() int {
	total := 0
	for pass := 0; ; pass++ {
		p.mu.Lock()
		batch := p.toRemove
		p.toRemove = nil
		p.mu.Unlock()
		if len(batch) == 0 {
			if pass > 1 {
				p.logger.Debugf("cleaned %d objects in %d passes", total, pass)
			}
			return total
		}
		for _, obj := range batch {
			if destroy(obj) {
				total++
			}
		}
	}
}

// ForEachObject calls fn for a snapshot of the live objects, in creation
// order, until fn returns false.
func (p *Plugin) ForEachObject(fn func(Object) bool) {
	p.mu.Lock()
	snapshot := slices.Clone(p.objects)
	p.mu.Unlock()
	for _, obj := range snapshot {
		if !fn(obj) {
			return
		}
	}
}

func (p *Plugin) LiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.objects)
}

func (p *Plugin) PendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.toRemove)
}

// Shutdown destroys every object, live ones last created first, then
// anything released along the way.
func (p *Plugin) Shutdown() {
	p.CleanPluginObjects()

	p.mu.Lock()
	live := p.objects
	p.objects = nil
	p.mu.Unlock()

	if len(live) > 0 {
		p.logger.Debugf("destroying %d live objects", len(live))
	}
	for i := len(live) - 1; i >= 0; i-- {
		destroy(live[i])
	}
	p.CleanPluginObjects()
}

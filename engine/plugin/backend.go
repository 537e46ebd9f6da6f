package plugin

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

// Backend is a loaded plugin module: one graphics API or one windowing
// system.
type Backend interface {
	Name() string
	Type() Type
	// Objects is the registry of the objects this backend created.
	Objects() *Plugin
	// Shutdown releases the backend and all its objects.
	Shutdown() error
}

// Factory creates a backend. It is the Go form of the well-known factory
// symbol exported by a backend module.
type Factory func() (Backend, error)

var (
	ErrUnknownBackend = errors.New("plugin: unknown backend")
	ErrMissingSymbol  = errors.New("plugin: missing factory symbol")
	ErrBadSymbol      = errors.New("plugin: factory symbol has the wrong type")
	ErrAlreadyLoaded  = errors.New("plugin: a backend of this type is already loaded")
)

var (
	factoriesMu sync.Mutex
	factories   [TypeCount]map[string]Factory
)

// Register makes a backend available under name. Backends register from
// their package init; registering a name twice panics.
func Register(typ Type, name string, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if factories[typ] == nil {
		factories[typ] = make(map[string]Factory)
	}
	key := strings.ToLower(name)
	if _, dup := factories[typ][key]; dup {
		panic("plugin: Register called twice for " + typ.String() + " backend " + name)
	}
	factories[typ][key] = factory
}

// Backends lists the registered backend names for typ, sorted.
func Backends(typ Type) []string {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	names := make([]string, 0, len(factories[typ]))
	for name := range factories[typ] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupFactory(typ Type, name string) (Factory, bool) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	f, ok := factories[typ][strings.ToLower(name)]
	return f, ok
}

package plugin

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/core"
)

// Manager owns the loaded backends: exactly one per Type once
// LoadAllPlugins succeeded.
type Manager struct {
	logger *log.Logger
	loaded []Backend
	byType [TypeCount]Backend
}

func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = core.NewLogger("Plugins 🔌 ")
	}
	return &Manager{logger: logger}
}

// LoadAllPlugins loads the context backend then the graphics backend. The
// engine cannot run without either, callers treat an error as fatal.
func (m *Manager) LoadAllPlugins(graphics, context string) error {
	if _, err := m.LoadPlugin(Context, context); err != nil {
		return err
	}
	if _, err := m.LoadPlugin(Graphics, graphics); err != nil {
		return err
	}
	return nil
}

// LoadPlugin instantiates the backend called name, either from the
// compile-time registry or, with the DynamicPrefix, from a module file.
func (m *Manager) LoadPlugin(typ Type, name string) (Backend, error) {
	if m.byType[typ] != nil {
		return nil, core.Errorf(core.InvalidUse|core.InitializationFailed, "%w: %s", ErrAlreadyLoaded, typ)
	}

	var factory Factory
	if path, ok := strings.CutPrefix(name, DynamicPrefix); ok {
		f, err := loadDynamic(typ, path)
		if err != nil {
			m.logger.Errorf("failed to load %s plugin `%s`: %s", typ, name, err)
			return nil, core.Errorf(core.InitializationFailed, "loading %s plugin: %w", typ, err)
		}
		factory = f
	} else {
		f, ok := lookupFactory(typ, name)
		if !ok {
			m.logger.Errorf("no %s plugin named `%s`, available: %v", typ, name, Backends(typ))
			return nil, core.Errorf(core.InitializationFailed, "%w: %s %q", ErrUnknownBackend, typ, name)
		}
		factory = f
	}

	backend, err := factory()
	if err != nil {
		m.logger.Errorf("failed to create %s plugin `%s`: %s", typ, name, err)
		return nil, core.Errorf(core.InitializationFailed, "creating %s plugin: %w", typ, err)
	}
	if backend.Type() != typ {
		return nil, core.Errorf(core.InitializationFailed|core.InvalidArgument, "plugin `%s` is a %s backend, expected %s", name, backend.Type(), typ)
	}

	m.loaded = append(m.loaded, backend)
	m.byType[typ] = backend
	m.logger.Infof("loaded %s plugin `%s`", typ, backend.Name())
	return backend, nil
}

// Get returns the backend of a type, nil when not loaded.
func (m *Manager) Get(typ Type) Backend {
	return m.byType[typ]
}

func (m *Manager) GraphicsPlugin() Backend {
	return m.byType[Graphics]
}

func (m *Manager) ContextPlugin() Backend {
	return m.byType[Context]
}

// AddPluginObject forwards to the backend matching the object's type tag.
func (m *Manager) AddPluginObject(typ Type, obj Object) error {
	b := m.byType[typ]
	if b == nil {
		return core.Errorf(core.InvalidUse, "no %s plugin loaded", typ)
	}
	b.Objects().AddPluginObject(obj)
	return nil
}

func (m *Manager) RemovePluginObject(obj Object) {
	b := m.byType[obj.Type()]
	if b == nil {
		m.logger.Warnf("removing object %s with no %s plugin loaded", obj.ID(), obj.Type())
		return
	}
	b.Objects().RemovePluginObject(obj)
}

// CleanPluginObjects runs the pending removals of every backend.
func (m *Manager) CleanPluginObjects() int {
	total := 0
	for _, b := range m.loaded {
		total += b.Objects().CleanPluginObjects()
	}
	return total
}

// UnloadPlugins shuts the backends down in reverse load order and returns
// every shutdown error joined.
func (m *Manager) UnloadPlugins() error {
	var errs []error
	for i := len(m.loaded) - 1; i >= 0; i-- {
		b := m.loaded[i]
		m.logger.Infof("unloading %s plugin `%s`", b.Type(), b.Name())
		if err := b.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("%s plugin %s: %w", b.Type(), b.Name(), err))
		}
		m.byType[b.Type()] = nil
	}
	m.loaded = nil
	return errors.Join(errs...)
}

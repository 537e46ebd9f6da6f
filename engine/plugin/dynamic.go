package plugin

import (
	"fmt"
	goplugin "plugin"
	"runtime"
	"strings"
	"sync"
)

// DynamicPrefix selects a backend built with -buildmode=plugin, e.g.
// "dynamic:lib/vulkan".
const DynamicPrefix = "dynamic:"

// Factory symbols exported by backend modules.
var factorySymbols = [TypeCount]string{
	Graphics: "CreateGraphicsPlugin",
	Context:  "CreateContextPlugin",
}

var (
	modulesMu sync.Mutex
	modules   = map[string]*goplugin.Plugin{}
)

// moduleFileName adds the platform extension when path has none.
func moduleFileName(path string) string {
	if strings.HasSuffix(path, ".so") || strings.HasSuffix(path, ".dylib") || strings.HasSuffix(path, ".dll") {
		return path
	}
	switch runtime.GOOS {
	case "darwin":
		return path + ".dylib"
	case "windows":
		return path + ".dll"
	default:
		return path + ".so"
	}
}

// loadDynamic opens a module, caching it by file name, and resolves the
// factory symbol for typ.
func loadDynamic(typ Type, path string) (Factory, error) {
	file := moduleFileName(path)

	modulesMu.Lock()
	mod, ok := modules[file]
	if !ok {
		var err error
		mod, err = goplugin.Open(file)
		if err != nil {
			modulesMu.Unlock()
			return nil, fmt.Errorf("failed to open %s: %w", file, err)
		}
		modules[file] = mod
	}
	modulesMu.Unlock()

	symbol := factorySymbols[typ]
	sym, err := mod.Lookup(symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %s in %s", ErrMissingSymbol, symbol, file)
	}
	switch f := sym.(type) {
	case func() (Backend, error):
		return f, nil
	case *Factory:
		return *f, nil
	default:
		return nil, fmt.Errorf("%w: %s is %T", ErrBadSymbol, symbol, sym)
	}
}

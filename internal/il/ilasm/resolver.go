package ilasm

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hashicorp/golang-lru/v2"

	"ilclone/internal/il"
)

// ErrModuleNotFound is returned when no search directory holds a module.
var ErrModuleNotFound = errors.New("module not found")

// DefaultCacheSize bounds the number of modules a Resolver keeps loaded.
const DefaultCacheSize = 64

// Resolver loads modules by name from a list of directories, where module
// "Name" lives in "Name.yaml". Loaded modules are cached.
type Resolver struct {
	dirs []string

	mu      sync.Mutex
	modules *lru.Cache[string, *il.Module]
}

// NewResolver creates a resolver searching dirs in order. A size of zero or
// less selects DefaultCacheSize.
func NewResolver(dirs []string, size int) (*Resolver, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}

	cache, err := lru.New[string, *il.Module](size)
	if err != nil {
		return nil, err
	}

	return &Resolver{dirs: dirs, modules: cache}, nil
}

// Add makes m resolvable without loading it from disk.
func (r *Resolver) Add(m *il.Module) {
	r.modules.Add(m.Name, m)
}

// Resolve returns the module called name.
func (r *Resolver) Resolve(name string) (*il.Module, error) {
	if m, ok := r.modules.Get(name); ok {
		return m, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.modules.Get(name); ok {
		return m, nil
	}

	for _, dir := range r.dirs {
		path := filepath.Join(dir, name+".yaml")
		if _, err := os.Stat(path); err != nil {
			continue
		}

		m, err := LoadFile(path)
		if err != nil {
			return nil, err
		}

		if m.Name != name {
			return nil, fmt.Errorf("%w: %s declares module %s, not %s", ErrSyntax, path, m.Name, name)
		}

		r.modules.Add(name, m)

		return m, nil
	}

	return nil, fmt.Errorf("%w: %s (searched %v)", ErrModuleNotFound, name, r.dirs)
}

// ResolveType returns the definition a type reference names, looking into
// other modules as needed. Definitions are returned as is.
func (r *Resolver) ResolveType(t il.TypeRef) (*il.TypeDef, error) {
	switch t := il.ElementTypeOf(t).(type) {
	case *il.TypeDef:
		return t, nil
	case *il.TypeReference:
		m, err := r.Resolve(t.ScopeName)
		if err != nil {
			return nil, err
		}

		if def := m.Type(t.FullName()); def != nil {
			return def, nil
		}

		return nil, fmt.Errorf("%w: %s has no type %s", ErrModuleNotFound, m.Name, t.FullName())
	}

	return nil, fmt.Errorf("%s does not name a type definition", t)
}

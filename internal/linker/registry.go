package linker

import (
	"sort"
	"strings"
	"sync"

	apperrors "github.com/package-linker/pkg/errors"
)

// Registry maps package names to their finalized linkers. A package has at
// most one linker at a time.
type Registry struct {
	mu      sync.Mutex
	linkers map[string]*Linker
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{linkers: make(map[string]*Linker)}
}

// Find returns the linker of a package, nil when none is registered.
func (r *Registry) Find(packageName string) *Linker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.linkers[strings.ToLower(packageName)]
}

func (r *Registry) add(l *Linker) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(l.pkgName)
	if existing, ok := r.linkers[key]; ok && existing != l {
		return apperrors.Newf(apperrors.CodeInvalidInput, "package %s already has a linker", l.pkgName)
	}
	r.linkers[key] = l
	return nil
}

func (r *Registry) remove(l *Linker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(l.pkgName)
	if r.linkers[key] == l {
		delete(r.linkers, key)
	}
}

// Len returns the number of registered linkers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.linkers)
}

// Names returns the registered package names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.linkers))
	for _, l := range r.linkers {
		names = append(names, l.pkgName)
	}
	sort.Strings(names)
	return names
}

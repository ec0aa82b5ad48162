// internal/trigger/registry.go
package trigger

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// ErrUnknownTrigger is returned by Registry.Create for a type name that was
// never registered. It is a normal, checked outcome; test with errors.Is.
var ErrUnknownTrigger = errors.New("unknown trigger type")

// Factory produces a trigger from its opaque configuration mapping. The
// mapping is owned by the constructed trigger and never touched by the
// framework afterwards.
type Factory func(cfg map[string]any) (Trigger, error)

// Registry is the process-wide catalog mapping trigger-type names to
// factories and to at-most-one live instance each. It is the single owner of
// both catalogs; all access goes through its methods, which are safe for
// concurrent use.
type Registry struct {
	mu        sync.RWMutex
	types     map[string]Factory
	instances map[string]Trigger
}

func NewRegistry() *Registry {
	return &Registry{
		types:     make(map[string]Factory),
		instances: make(map[string]Trigger),
	}
}

// Register inserts or overwrites the type-catalog entry for name. Last write
// wins; there is no uniqueness validation. Callers that need safety should
// check Get first.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	r.types[name] = factory
	r.mu.Unlock()
}

// Get looks up the factory registered under name.
func (r *Registry) Get(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.types[name]
	return f, ok
}

// Create looks up the factory for name, constructs an instance with cfg, and
// stores it in the instance catalog under name, silently replacing any prior
// instance. The prior instance is NOT stopped first; stopping it is the
// caller's obligation, otherwise it keeps running (and holding resources)
// outside the catalog. An unregistered name yields ErrUnknownTrigger; a
// factory failure leaves the instance catalog untouched.
func (r *Registry) Create(name string, cfg map[string]any) (Trigger, error) {
	r.mu.RLock()
	factory, ok := r.types[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTrigger, name)
	}

	t, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating %s trigger: %w", name, err)
	}

	r.mu.Lock()
	r.instances[name] = t
	r.mu.Unlock()
	return t, nil
}

// Instance looks up the live instance created under name, if any.
func (r *Registry) Instance(name string) (Trigger, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.instances[name]
	return t, ok
}

// Types returns the sorted names of all registered trigger types.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InstanceNames returns the sorted names of all live instances, running or not.
func (r *Registry) InstanceNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.instances))
	for name := range r.instances {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunningNames returns the sorted names of instances whose Running() is true
// at call time. This is a snapshot, not a live view.
func (r *Registry) RunningNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for name, t := range r.instances {
		if t.Running() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// RegisterBuiltins registers the trigger types that ship unconditionally.
// Registration is an explicit startup step rather than an import-time side
// effect, so process-wide state construction stays visible and ordered.
func RegisterBuiltins(r *Registry, logger *slog.Logger) {
	r.Register(TypeManual, func(cfg map[string]any) (Trigger, error) {
		return NewManual(cfg, logger)
	})
}

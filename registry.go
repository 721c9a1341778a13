package wld

import (
	"sort"
	"sync"
)

// ContextFactory creates a context for one backend.
type ContextFactory func() (Context, error)

// RegistryEntry represents a registered backend.
type RegistryEntry struct {
	// Name is the unique identifier for this backend.
	Name string

	// Priority determines selection order (higher = preferred).
	// Conventional priorities:
	//   - 100: GPU command-batch backends
	//   - 50: presentation transports
	//   - 10: software
	Priority int

	// Factory creates contexts.
	Factory ContextFactory

	// Available reports if the backend can run on this system.
	Available func() bool
}

// Registry maps backend names to context factories.
//
// There is no process-wide registry: callers build one, usually from their
// configuration, and pass it to whatever needs to create contexts.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*RegistryEntry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*RegistryEntry),
	}
}

// Register adds a backend. If available is nil, the backend is assumed
// always available. Registering an existing name replaces the entry.
func (r *Registry) Register(name string, priority int, factory ContextFactory, available func() bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entries == nil {
		r.entries = make(map[string]*RegistryEntry)
	}
	if available == nil {
		available = func() bool { return true }
	}
	r.entries[name] = &RegistryEntry{
		Name:      name,
		Priority:  priority,
		Factory:   factory,
		Available: available,
	}
}

// Unregister removes a backend.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, name)
}

// List returns all registered names, highest priority first.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sortedNames(false)
}

// Available returns the names of available backends, highest priority first.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sortedNames(true)
}

// Get returns a copy of the entry for name.
func (r *Registry) Get(name string) (*RegistryEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	entryCopy := *entry
	return &entryCopy, true
}

// NewContext creates a context with the best available backend, falling
// back to lower priorities when a factory fails.
func (r *Registry) NewContext() (Context, error) {
	r.mu.RLock()
	available := r.sortedNames(true)
	r.mu.RUnlock()

	var lastErr error
	for _, name := range available {
		ctx, err := r.NewContextByName(name)
		if err == nil {
			Logger().Info("wld: context created", "backend", name)
			return ctx, nil
		}
		Logger().Debug("wld: backend failed", "backend", name, "err", err)
		lastErr = err
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrNoBackendAvailable
}

// NewContextByName creates a context with the named backend.
func (r *Registry) NewContextByName(name string) (Context, error) {
	r.mu.RLock()
	entry, ok := r.entries[name]
	r.mu.RUnlock()

	if !ok {
		return nil, &BackendNotFoundError{Name: name}
	}
	if !entry.Available() {
		return nil, &BackendUnavailableError{Name: name}
	}
	return entry.Factory()
}

// sortedNames returns names by descending priority, ties broken by name.
// Must be called with the lock held.
func (r *Registry) sortedNames(onlyAvailable bool) []string {
	if len(r.entries) == 0 {
		return nil
	}

	entries := make([]*RegistryEntry, 0, len(r.entries))
	for _, e := range r.entries {
		if onlyAvailable && !e.Available() {
			continue
		}
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Priority != entries[j].Priority {
			return entries[i].Priority > entries[j].Priority
		}
		return entries[i].Name < entries[j].Name
	})

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

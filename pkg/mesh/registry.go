package mesh

import (
	"sync"
)

// Key identifies a mesh definition. Two placements resolving to the same
// key share one Shared instance. Digest fingerprints the source data, so
// that a name reused for different data resolves to a different entry.
type Key struct {
	Name      string
	Unit      float64
	Algorithm Algorithm
	Digest    uint64
}

// Registry caches shared meshes by key and counts their holders.
type Registry struct {
	mu      sync.Mutex
	entries map[Key]*Shared
	keys    map[*Shared]Key
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[Key]*Shared),
		keys:    make(map[*Shared]Key),
	}
}

// Acquire returns the mesh registered under key, building it from load on
// first use. Each successful call must be paired with a Release.
func (r *Registry) Acquire(key Key, load func() ([]Facet, error)) (*Shared, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.entries[key]; ok {
		s.refs.Add(1)
		return s, nil
	}
	facets, err := load()
	if err != nil {
		return nil, err
	}
	s, err := NewShared(key.Name, facets, key.Algorithm)
	if err != nil {
		return nil, err
	}
	s.refs.Store(1)
	r.entries[key] = s
	r.keys[s] = key
	return s, nil
}

// Release drops one reference to s and evicts it once unreferenced.
func (r *Registry) Release(s *Shared) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.keys[s]
	if !ok {
		return
	}
	if s.refs.Add(-1) <= 0 {
		delete(r.entries, key)
		delete(r.keys, s)
	}
}

// Len returns the number of cached meshes.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

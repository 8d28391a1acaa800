package handlers

import (
	"sort"
	"sync"
	"time"

	"github.com/data-agent/backend/internal/dataset"
)

// RegistryEntry is one uploaded dataset held in memory. Rows never touch
// disk; only metadata is persisted for the history view.
type RegistryEntry struct {
	Name        string
	Fingerprint string
	Format      string
	Data        *dataset.Dataset
	UploadedAt  time.Time
}

// Registry maps dataset names to their in-memory rows. Uploading under an
// existing name replaces the previous entry.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*RegistryEntry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*RegistryEntry)}
}

func (r *Registry) Put(entry *RegistryEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entry.Name] = entry
}

func (r *Registry) Get(name string) (*RegistryEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[name]
	return entry, ok
}

func (r *Registry) Delete(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package whatsapp

import "sync"

// Registry is the authoritative in-memory map from session id to client
// handle. It carries no durability guarantees. Recovery always removes a
// handle fully before registering its replacement, so concurrent readers
// observe "absent" mid-recovery rather than a half-updated entry.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]ChatClient
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]ChatClient)}
}

// Register inserts or overwrites the handle for id. Idempotent.
func (r *Registry) Register(id string, client ChatClient) {
	r.mu.Lock()
	r.clients[id] = client
	r.mu.Unlock()
}

func (r *Registry) Get(id string) (ChatClient, bool) {
	r.mu.RLock()
	client, ok := r.clients[id]
	r.mu.RUnlock()
	return client, ok
}

// Remove deletes the handle and reports whether it was present.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	_, ok := r.clients[id]
	delete(r.clients, id)
	r.mu.Unlock()
	return ok
}

func (r *Registry) ListIDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	return ids
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Range calls fn for every registered session. The key set is snapshotted
// first so fn may mutate the registry.
func (r *Registry) Range(fn func(id string, client ChatClient)) {
	for _, id := range r.ListIDs() {
		if client, ok := r.Get(id); ok {
			fn(id, client)
		}
	}
}

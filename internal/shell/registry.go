package shell

import (
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"docuflow/portal/internal/kvstore"
	"docuflow/portal/internal/lifecycle"
)

const DefaultRegistrySize = 1024

// Registry keeps the shells of recently active clients. Evicted shells are
// closed; their persisted state stays in the backend and a later request
// mounts a fresh shell over it.
type Registry struct {
	backend kvstore.Backend
	opts    Options
	events  lifecycle.Publisher

	mu    sync.Mutex
	cache *lru.Cache
}

func NewRegistry(backend kvstore.Backend, size int, opts Options, events lifecycle.Publisher) (*Registry, error) {
	if backend == nil {
		return nil, fmt.Errorf("client state backend is required")
	}
	if size <= 0 {
		size = DefaultRegistrySize
	}
	r := &Registry{backend: backend, opts: opts, events: events}
	cache, err := lru.NewWithEvict(size, r.evicted)
	if err != nil {
		return nil, fmt.Errorf("create shell cache: %w", err)
	}
	r.cache = cache
	return r, nil
}

func (r *Registry) evicted(key, value interface{}) {
	s, ok := value.(*Shell)
	if !ok {
		return
	}
	s.Close()
	if r.events != nil {
		r.events.Publish(lifecycle.TopicShellClosed, s.ID)
	}
}

// Get returns the client's shell, mounting one if needed.
func (r *Registry) Get(clientID string) (*Shell, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, fmt.Errorf("client id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.cache.Get(clientID); ok {
		return v.(*Shell), nil
	}
	s := New(clientID,
		kvstore.Bind(r.backend, clientID),
		kvstore.Bind(kvstore.NewMemory(), clientID),
		r.opts,
	)
	r.cache.Add(clientID, s)
	return s, nil
}

func (r *Registry) Peek(clientID string) (*Shell, bool) {
	v, ok := r.cache.Peek(clientID)
	if !ok {
		return nil, false
	}
	return v.(*Shell), true
}

func (r *Registry) Remove(clientID string) {
	r.cache.Remove(clientID)
}

func (r *Registry) Len() int {
	return r.cache.Len()
}

// Close tears down every mounted shell.
func (r *Registry) Close() {
	r.cache.Purge()
}

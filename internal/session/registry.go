package session

import (
	"context"
	"sync"
	"time"
)

// Handle bundles a browser session's manager with its navigator so the HTTP
// layer can report client locations and drain pending redirects.
type Handle struct {
	Manager  *Manager
	Recorder *RedirectRecorder
}

// Factory builds a manager (and its dedicated provider client) for one
// browser session.
type Factory func(nav Navigator) *Manager

// Registry owns one Manager per browser session cookie. Managers are started
// on first sight and closed when the browser session goes idle past the TTL.
type Registry struct {
	factory Factory
	ttl     time.Duration

	mu      sync.Mutex
	entries map[string]*registryEntry

	stop     chan struct{}
	stopOnce sync.Once
}

type registryEntry struct {
	handle   Handle
	lastSeen time.Time
}

// NewRegistry creates a registry and starts its eviction loop.
func NewRegistry(factory Factory, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	r := &Registry{
		factory: factory,
		ttl:     ttl,
		entries: make(map[string]*registryEntry),
		stop:    make(chan struct{}),
	}
	go r.evictLoop()
	return r
}

// Get returns the handle for the given browser session id, creating and
// starting a manager on first use.
func (r *Registry) Get(ctx context.Context, id string) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.entries[id]; ok {
		entry.lastSeen = time.Now()
		return entry.handle
	}

	recorder := NewRedirectRecorder()
	manager := r.factory(recorder)
	manager.Start(ctx)

	entry := &registryEntry{
		handle:   Handle{Manager: manager, Recorder: recorder},
		lastSeen: time.Now(),
	}
	r.entries[id] = entry
	return entry.handle
}

// Lookup returns the handle without creating one.
func (r *Registry) Lookup(id string) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		return Handle{}, false
	}
	entry.lastSeen = time.Now()
	return entry.handle, true
}

// Remove closes and drops the manager for the given browser session.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	entry, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	r.mu.Unlock()

	if ok {
		entry.handle.Manager.Close()
	}
}

// Len reports the number of live browser sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close stops the eviction loop and closes every manager.
func (r *Registry) Close() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})

	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*registryEntry)
	r.mu.Unlock()

	for _, entry := range entries {
		entry.handle.Manager.Close()
	}
}

func (r *Registry) evictLoop() {
	interval := r.ttl / 2
	if interval > 10*time.Minute {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.evictIdle()
		}
	}
}

func (r *Registry) evictIdle() {
	cutoff := time.Now().Add(-r.ttl)

	r.mu.Lock()
	var expired []*registryEntry
	for id, entry := range r.entries {
		if entry.lastSeen.Before(cutoff) {
			expired = append(expired, entry)
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	for _, entry := range expired {
		entry.handle.Manager.Close()
	}
}

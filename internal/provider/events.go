package provider

import (
	"sort"
	"sync"
)

// Listener receives auth-state-change notifications. The session parameter is
// nil for events that carry no credentials (e.g. SIGNED_OUT).
type Listener func(event AuthEvent, session *Session)

// broadcaster fans auth events out to registered listeners. Listeners are
// invoked synchronously in registration order; any slow work belongs on the
// listener's side.
type broadcaster struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]Listener
}

func newBroadcaster() *broadcaster {
	return &broadcaster{listeners: make(map[int]Listener)}
}

// subscribe registers a listener and returns its removal handle.
func (b *broadcaster) subscribe(fn Listener) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.listeners[id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.listeners, id)
	}
}

// emit delivers an event to every current listener. The listener set is
// snapshotted under the lock so a listener may unsubscribe during delivery.
func (b *broadcaster) emit(event AuthEvent, session *Session) {
	b.mu.Lock()
	ids := make([]int, 0, len(b.listeners))
	for id := range b.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]Listener, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, b.listeners[id])
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(event, session)
	}
}

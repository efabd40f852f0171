package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrDuplicate is returned by Register when the ID is already registered.
var ErrDuplicate = errors.New("registry: connection already registered")

// Sink is the write end of a connection's outbound queue.
// Enqueue must be non-blocking.
type Sink interface {
	Enqueue(msg []byte) error
}

// Registry is a thread-safe map of connection ID to Sink.
type Registry struct {
	mu    sync.RWMutex
	sinks map[uuid.UUID]Sink
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{sinks: make(map[uuid.UUID]Sink)}
}

// Register adds id → sink. The entry is visible to ForEach as soon as
// Register returns.
func (r *Registry) Register(id uuid.UUID, sink Sink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sinks[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, id)
	}
	r.sinks[id] = sink
	return nil
}

// RegisterFirst is Register with a first message: first is called and its
// result enqueued on sink while the write lock is held, so no ForEach can
// deliver anything to sink ahead of it. If first fails nothing is registered.
func (r *Registry) RegisterFirst(id uuid.UUID, sink Sink, first func() ([]byte, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sinks[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, id)
	}
	msg, err := first()
	if err != nil {
		return fmt.Errorf("registry: first message for %s: %w", id, err)
	}
	if err := sink.Enqueue(msg); err != nil {
		return fmt.Errorf("registry: first message for %s: %w", id, err)
	}
	r.sinks[id] = sink
	return nil
}

// Deregister removes id and reports whether it was present.
func (r *Registry) Deregister(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sinks[id]; !ok {
		return false
	}
	delete(r.sinks, id)
	return true
}

// Lookup returns the sink registered under id.
func (r *Registry) Lookup(id uuid.UUID) (Sink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sinks[id]
	return s, ok
}

// ForEach calls fn for every registered entry while holding the read lock.
// Iteration order is unspecified. fn must not call back into r.
func (r *Registry) ForEach(fn func(id uuid.UUID, sink Sink)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, s := range r.sinks {
		fn(id, s)
	}
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sinks)
}

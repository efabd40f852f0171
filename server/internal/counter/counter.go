package counter

import (
	"sync"

	"github.com/google/uuid"
)

// State is the thread-safe click counter shared by all sessions.
// Total only ever grows; per-client counts exist only while the client is
// connected and has clicked at least once.
type State struct {
	mu      sync.Mutex
	total   uint64
	clients map[uuid.UUID]uint64
}

// New returns a State with every counter at zero.
func New() *State {
	return &State{clients: make(map[uuid.UUID]uint64)}
}

// RecordClick counts one click from id and returns the new per-client count
// and the new total. It is the only way click counts change.
func (s *State) RecordClick(id uuid.UUID) (client, total uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	s.clients[id]++
	return s.clients[id], s.total
}

// Total returns the number of clicks processed since the server started.
func (s *State) Total() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Client returns id's click count and whether id has an entry.
func (s *State) Client(id uuid.UUID) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.clients[id]
	return n, ok
}

// Active returns the number of connected clients that have clicked.
func (s *State) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Forget drops id's per-client count. Total is unaffected.
func (s *State) Forget(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, id)
}

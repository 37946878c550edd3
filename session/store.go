package session

import (
	"log"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/Seednode/partyclient/protocol"
)

// Listener observes every state change together with the event that
// caused it. Each listener gets its own copy of the State. Listeners run
// in dispatch order and must not call Dispatch themselves.
type Listener func(State, Event)

// Store is the single mutable container for the session. Dispatch is the
// only write path; everything else reads copies.
type Store struct {
	// dispatchMu spans apply and notify so listeners see events in the
	// order they were applied.
	dispatchMu sync.Mutex

	mu    sync.RWMutex
	state State

	subsMu sync.Mutex
	subs   map[int]Listener
	nextID int

	now    func() time.Time
	logger *log.Logger
}

// NewStore creates a store holding the entry-screen state.
func NewStore(logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{
		state:  New(),
		subs:   make(map[int]Listener),
		now:    time.Now,
		logger: logger,
	}
}

// Dispatch applies ev and notifies listeners. Transitions along edges the
// phase machine does not allow are logged and applied anyway.
func (s *Store) Dispatch(ev Event) State {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	prev := s.state
	next := Apply(prev, ev, s.now())
	s.state = next
	s.mu.Unlock()

	if to, ok := TargetPhase(ev); ok && prev.Phase != to {
		if err := CheckTransition(prev.Phase, to); err != nil {
			s.logger.Printf("STORE: %v (applied anyway)", err)
		}
	}

	s.subsMu.Lock()
	ids := slices.Sorted(maps.Keys(s.subs))
	listeners := make([]Listener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, s.subs[id])
	}
	s.subsMu.Unlock()

	for _, fn := range listeners {
		fn(next.Clone(), ev)
	}

	return next.Clone()
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Positions returns the authoritative positions without copying the
// whole state.
func (s *Store) Positions() (map[string]protocol.Vec, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Positions(), s.state.LocalID
}

// Subscribe registers fn and returns the function that removes it.
func (s *Store) Subscribe(fn Listener) func() {
	s.subsMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

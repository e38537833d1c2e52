package entity

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Store is the in-memory registry of current entity values.
//
// It implements Reader and Subscriber. Applying a new value notifies every
// subscriber of that entity with the previous and new state. Handlers run
// on the goroutine that called Apply and must not block.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Store struct {
	mu     sync.RWMutex
	states map[string]State

	subMu  sync.RWMutex
	subs   map[string]map[uint64]func(Change)
	nextID uint64

	now func() time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		states: make(map[string]State),
		subs:   make(map[string]map[uint64]func(Change)),
		now:    time.Now,
	}
}

// Get returns a copy of the current state of an entity.
func (s *Store) Get(entityID string) (State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[entityID]
	if !ok {
		return State{}, false
	}
	return st.Clone(), true
}

// Len returns the number of known entities.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}

// Apply records st as the current state of its entity and notifies
// subscribers. A zero LastChanged is stamped with the current time.
func (s *Store) Apply(st State) error {
	if err := ValidateID(st.EntityID); err != nil {
		return err
	}
	if st.LastChanged.IsZero() {
		st.LastChanged = s.now().UTC()
	}
	st = st.Clone()

	s.mu.Lock()
	prev, existed := s.states[st.EntityID]
	s.states[st.EntityID] = st
	s.mu.Unlock()

	change := Change{EntityID: st.EntityID, New: &st}
	if existed {
		change.Old = &prev
	}

	for _, fn := range s.handlers(st.EntityID) {
		fn(change)
	}
	return nil
}

// Remove forgets an entity. Subscribers are not notified.
func (s *Store) Remove(entityID string) {
	s.mu.Lock()
	delete(s.states, entityID)
	s.mu.Unlock()
}

// Subscribe registers fn for changes to any of entityIDs.
func (s *Store) Subscribe(entityIDs []string, fn func(Change)) func() {
	s.subMu.Lock()
	s.nextID++
	id := s.nextID
	for _, entityID := range entityIDs {
		if s.subs[entityID] == nil {
			s.subs[entityID] = make(map[uint64]func(Change))
		}
		s.subs[entityID][id] = fn
	}
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			for _, entityID := range entityIDs {
				delete(s.subs[entityID], id)
				if len(s.subs[entityID]) == 0 {
					delete(s.subs, entityID)
				}
			}
		})
	}
}

// SubscriberCount returns the number of handlers registered for an entity.
func (s *Store) SubscriberCount(entityID string) int {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	return len(s.subs[entityID])
}

func (s *Store) handlers(entityID string) []func(Change) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	subs := s.subs[entityID]
	if len(subs) == 0 {
		return nil
	}
	out := make([]func(Change), 0, len(subs))
	for _, fn := range subs {
		out = append(out, fn)
	}
	return out
}

// ValidateID checks that an entity id has the "domain.object_id" shape.
func ValidateID(entityID string) error {
	domain, object, found := strings.Cut(entityID, ".")
	if !found || domain == "" || object == "" || strings.ContainsAny(entityID, " /#+") {
		return fmt.Errorf("%w: %q", ErrInvalidEntityID, entityID)
	}
	return nil
}

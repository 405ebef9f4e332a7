package oidc

import (
	"sync"
	"time"
)

// StateStore remembers issued login states until they are used or expire.
type StateStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	states map[string]time.Time
	now    func() time.Time
}

// NewStateStore creates a store whose states expire after ttl.
func NewStateStore(ttl time.Duration) *StateStore {
	return &StateStore{ttl: ttl, states: make(map[string]time.Time), now: time.Now}
}

// Put records a newly issued state and drops expired ones.
func (s *StateStore) Put(state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, exp := range s.states {
		if now.After(exp) {
			delete(s.states, k)
		}
	}
	s.states[state] = now.Add(s.ttl)
}

// Take consumes state, reporting whether it was issued and is still valid.
func (s *StateStore) Take(state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.states[state]
	delete(s.states, state)
	return ok && !s.now().After(exp)
}

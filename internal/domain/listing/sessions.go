package listing

import (
	"sync"
	"time"
)

type sessionKey struct {
	session string
	view    string
	scope   string
}

type sessionEntry struct {
	state   ViewState
	touched time.Time
}

// Sessions keeps view states in memory per (session, view, scope). States
// untouched for longer than the TTL are dropped by Sweep.
type Sessions struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[sessionKey]*sessionEntry
}

func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{ttl: ttl, now: time.Now, items: map[sessionKey]*sessionEntry{}}
}

// Get returns a copy of the stored state or a fresh one built from d.
func (s *Sessions) Get(session, view, scope string, d Descriptor) ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.items[sessionKey{session, view, scope}]
	if !ok {
		return NewViewState(d)
	}
	entry.touched = s.now()
	return entry.state.clone()
}

func (s *Sessions) Put(session, view, scope string, state ViewState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[sessionKey{session, view, scope}] = &sessionEntry{state: state.clone(), touched: s.now()}
}

// Update applies fn to the stored state under the lock and saves the result.
func (s *Sessions) Update(session, view, scope string, d Descriptor, fn func(*ViewState) error) (ViewState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionKey{session, view, scope}
	state := NewViewState(d)
	if entry, ok := s.items[key]; ok {
		state = entry.state.clone()
	}
	if err := fn(&state); err != nil {
		return ViewState{}, err
	}
	s.items[key] = &sessionEntry{state: state.clone(), touched: s.now()}
	return state, nil
}

// DropSession forgets every view of a session, used on logout.
func (s *Sessions) DropSession(session string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.items {
		if key.session == session {
			delete(s.items, key)
		}
	}
}

func (s *Sessions) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for key, entry := range s.items {
		if entry.touched.Before(cutoff) {
			delete(s.items, key)
			removed++
		}
	}
	return removed
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

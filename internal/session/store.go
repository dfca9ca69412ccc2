package session

import "sync"

// Store holds the session state. Writers go through Update or Transition;
// readers get copies and never see a partially applied change.
type Store struct {
	mu     sync.RWMutex
	state  State
	subs   map[int]chan State
	nextID int
	closed bool
}

// NewStore creates a store holding initial.
func NewStore(initial State) *Store {
	return &Store{state: initial.clone(), subs: make(map[int]chan State)}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Update applies fn to a copy of the state, stores it and publishes it to
// subscribers. It returns the new state.
func (s *Store) Update(fn func(*State)) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.clone()
	fn(&next)
	s.state = next
	s.publish()
	return next.clone()
}

// Transition moves the session to phase to, applying fn to the state first.
// fn may be nil.
func (s *Store) Transition(to Phase, fn func(*State)) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.state.Phase
	if !from.CanTransition(to) {
		return s.state.clone(), &TransitionError{From: from, To: to}
	}
	next := s.state.clone()
	if fn != nil {
		fn(&next)
	}
	next.Phase = to
	s.state = next
	s.publish()
	return next.clone(), nil
}

// Subscribe returns a channel that always holds the latest state. Slow
// readers skip intermediate states. The returned func unsubscribes and
// closes the channel.
func (s *Store) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan State, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	ch <- s.state.clone()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// Close closes every subscriber channel.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.closed = true
}

// publish must be called with mu held. It is the only sender, so after
// draining a stale value the send cannot block.
func (s *Store) publish() {
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s.state.clone()
	}
}

package radio

import "sync"

// Store holds the configuration last confirmed by the hardware.
// Readers always see a whole value; there is no validation here.
type Store struct {
	mu  sync.RWMutex
	cfg Configuration
}

func NewStore(initial Configuration) *Store { return &Store{cfg: initial} }

// Current returns a snapshot.
func (s *Store) Current() Configuration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Commit replaces the live value.
func (s *Store) Commit(cfg Configuration) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

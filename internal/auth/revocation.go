package auth

import (
	"sync"
	"time"
)

// RevocationSet holds access-token ids invalidated by logout until their
// natural expiry. Entries self-clean on a fixed sweep so the map stays
// bounded by the number of logouts within one access-token lifetime.
type RevocationSet struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	done    chan struct{}
	once    sync.Once
}

func NewRevocationSet() *RevocationSet {
	s := &RevocationSet{
		entries: make(map[string]time.Time),
		done:    make(chan struct{}),
	}
	go s.sweep()
	return s
}

// Revoke records the token id until expiresAt.
func (s *RevocationSet) Revoke(tokenID string, expiresAt time.Time) {
	if time.Now().After(expiresAt) {
		return
	}
	s.mu.Lock()
	s.entries[tokenID] = expiresAt
	s.mu.Unlock()
}

// Revoked reports whether the token id has been revoked and not yet expired.
func (s *RevocationSet) Revoked(tokenID string) bool {
	s.mu.RLock()
	expiresAt, ok := s.entries[tokenID]
	s.mu.RUnlock()
	return ok && time.Now().Before(expiresAt)
}

func (s *RevocationSet) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *RevocationSet) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for id, expiresAt := range s.entries {
				if now.After(expiresAt) {
					delete(s.entries, id)
				}
			}
			s.mu.Unlock()
		}
	}
}

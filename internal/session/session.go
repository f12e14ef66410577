// Package session maps opaque identifiers to authenticated user ids. The
// store is process-wide shared state and is safe for concurrent use.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// Store is the session registry: created at login, destroyed at logout.
type Store interface {
	// Create registers a new session for the user and returns its identifier,
	// suitable for transport as an opaque cookie or bearer value.
	Create(userID string) (string, error)

	// Resolve returns the user id bound to the identifier, or false when the
	// session is unknown or expired.
	Resolve(id string) (string, bool)

	// Destroy removes the session. Destroying an unknown id is a no-op.
	Destroy(id string)
}

type entry struct {
	userID    string
	createdAt time.Time
}

// MemoryStore is a lock-protected in-memory Store with TTL expiry. A
// background sweeper reclaims expired entries; Close stops it.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]entry
	ttl      time.Duration
	done     chan struct{}
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string]entry),
		ttl:      ttl,
		done:     make(chan struct{}),
	}

	go s.sweepLoop()

	return s
}

func (s *MemoryStore) Create(userID string) (string, error) {
	b := make([]byte, 32)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}
	id := hex.EncodeToString(b)

	s.mu.Lock()
	s.sessions[id] = entry{userID: userID, createdAt: time.Now()}
	s.mu.Unlock()

	return id, nil
}

func (s *MemoryStore) Resolve(id string) (string, bool) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return "", false
	}

	if s.expired(e, time.Now()) {
		s.Destroy(id)
		return "", false
	}

	return e.userID, true
}

func (s *MemoryStore) Destroy(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Close stops the background sweeper.
func (s *MemoryStore) Close() {
	close(s.done)
}

func (s *MemoryStore) expired(e entry, now time.Time) bool {
	return s.ttl > 0 && now.Sub(e.createdAt) > s.ttl
}

func (s *MemoryStore) sweepLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.done:
			return
		}
	}
}

func (s *MemoryStore) sweep() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.sessions {
		if s.expired(e, now) {
			delete(s.sessions, id)
		}
	}
}

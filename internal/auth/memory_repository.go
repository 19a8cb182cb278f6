package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository keeps sessions in process memory.
type InMemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]Session
	hashes   map[uuid.UUID]string
}

// NewInMemoryRepository returns an empty in-memory session store.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		sessions: make(map[string]Session),
		hashes:   make(map[uuid.UUID]string),
	}
}

func (r *InMemoryRepository) CreateSession(_ context.Context, session Session, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[tokenHash] = session
	r.hashes[session.ID] = tokenHash
	return nil
}

func (r *InMemoryRepository) FindSessionByTokenHash(_ context.Context, tokenHash string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[tokenHash]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

func (r *InMemoryRepository) DeleteSession(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if hash, ok := r.hashes[id]; ok {
		delete(r.sessions, hash)
		delete(r.hashes, id)
	}
	return nil
}

func (r *InMemoryRepository) DeleteExpiredSessions(_ context.Context, now time.Time) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []uuid.UUID
	for hash, session := range r.sessions {
		if session.Expired(now) {
			delete(r.sessions, hash)
			delete(r.hashes, session.ID)
			removed = append(removed, session.ID)
		}
	}
	return removed, nil
}

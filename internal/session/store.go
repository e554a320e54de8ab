package session

import (
	"context"
	"sync"
	"time"

	"quizsmith-backend/internal/models"
)

// Store is durable key-value storage for live quiz sessions. Get must treat an
// expired entry as absent and remove it (lazy expiry); SweepExpired is the
// eager path, and both agree on models.QuizSession.Expired.
type Store interface {
	Put(ctx context.Context, key string, sess *models.QuizSession, ttl time.Duration) error
	Get(ctx context.Context, key string) (*models.QuizSession, error)
	Delete(ctx context.Context, key string) error
	SweepExpired(ctx context.Context) (int, error)
}

// MemoryStore is the in-process implementation used in tests and in dev setups
// without Redis.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.QuizSession
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*models.QuizSession)}
}

func (s *MemoryStore) Put(ctx context.Context, key string, sess *models.QuizSession, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[key] = sess
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) (*models.QuizSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[key]
	if !ok {
		return nil, nil
	}
	if sess.Expired(time.Now()) {
		delete(s.sessions, key)
		return nil, nil
	}
	return sess, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
	return nil
}

func (s *MemoryStore) SweepExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	count := 0
	for key, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, key)
			count++
		}
	}
	return count, nil
}

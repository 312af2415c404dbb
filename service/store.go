package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/arjunpratapdas/contractiq/config"
	"github.com/arjunpratapdas/contractiq/model"
	"github.com/google/uuid"
)

// SessionStore holds visitor sessions. Update applies fn atomically; when fn
// returns an error nothing is written. Acquire marks an operation in flight
// and fails with ErrOperationInProgress if it already is. The returned token
// names the owner: Release with any other token leaves the marker in place.
type SessionStore interface {
	Create(ctx context.Context, s *model.Session) error
	Get(ctx context.Context, id string) (*model.Session, error)
	Update(ctx context.Context, id string, fn func(*model.Session) error) (*model.Session, error)
	Delete(ctx context.Context, id string) error
	Acquire(ctx context.Context, id string, op model.Operation) (string, error)
	Release(ctx context.Context, id string, op model.Operation, token string) error
	Sweep(ctx context.Context, idleBefore time.Time) (int, error)
	Count(ctx context.Context) (int, error)
}

// NewSessionStore builds the store selected in cfg
func NewSessionStore(cfg *config.Config) (SessionStore, error) {
	switch cfg.Session.Store {
	case config.StoreMemory:
		return NewMemorySessionStore(cfg.Session.MaxSessions), nil
	case config.StoreRedis:
		return NewRedisSessionStore(&cfg.Redis, &cfg.Session)
	}
	return nil, fmt.Errorf("unknown session store %q", cfg.Session.Store)
}

type inflightKey struct {
	id string
	op model.Operation
}

// MemorySessionStore keeps sessions in process memory
type MemorySessionStore struct {
	sessions    map[string]*model.Session
	inflight    map[inflightKey]string
	mu          sync.RWMutex
	maxSessions int // 0 = unlimited
}

func NewMemorySessionStore(maxSessions int) *MemorySessionStore {
	if maxSessions < 0 {
		maxSessions = 0
	}
	return &MemorySessionStore{
		sessions:    make(map[string]*model.Session),
		inflight:    make(map[inflightKey]string),
		maxSessions: maxSessions,
	}
}

func (s *MemorySessionStore) Create(_ context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; exists {
		return fmt.Errorf("session %s already exists", session.ID)
	}
	if s.maxSessions > 0 && len(s.sessions) >= s.maxSessions {
		if !s.evictOldest(len(s.sessions) - s.maxSessions + 1) {
			return ErrStoreFull
		}
	}
	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *MemorySessionStore) Get(_ context.Context, id string) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session.Clone(), nil
}

func (s *MemorySessionStore) Update(_ context.Context, id string, fn func(*model.Session) error) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	s.sessions[id] = next
	return next.Clone(), nil
}

func (s *MemorySessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	for key := range s.inflight {
		if key.id == id {
			delete(s.inflight, key)
		}
	}
	return nil
}

func (s *MemorySessionStore) Acquire(_ context.Context, id string, op model.Operation) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return "", ErrSessionNotFound
	}
	key := inflightKey{id: id, op: op}
	if _, busy := s.inflight[key]; busy {
		return "", ErrOperationInProgress
	}
	token := uuid.NewString()
	s.inflight[key] = token
	return token, nil
}

func (s *MemorySessionStore) Release(_ context.Context, id string, op model.Operation, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := inflightKey{id: id, op: op}
	if s.inflight[key] == token {
		delete(s.inflight, key)
	}
	return nil
}

// Sweep removes sessions idle since before idleBefore that have nothing in flight
func (s *MemorySessionStore) Sweep(_ context.Context, idleBefore time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, session := range s.sessions {
		if !session.UpdatedAt.Before(idleBefore) || s.busyLocked(id) {
			continue
		}
		delete(s.sessions, id)
		removed++
	}
	return removed, nil
}

func (s *MemorySessionStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions), nil
}

func (s *MemorySessionStore) busyLocked(id string) bool {
	for key := range s.inflight {
		if key.id == id {
			return true
		}
	}
	return false
}

// evictOldest removes up to n least recently used idle sessions.
// Must be called with lock held. Returns false if fewer than n could be removed.
func (s *MemorySessionStore) evictOldest(n int) bool {
	candidates := make([]*model.Session, 0, len(s.sessions))
	for id, session := range s.sessions {
		if !s.busyLocked(id) {
			candidates = append(candidates, session)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].UpdatedAt.Before(candidates[j].UpdatedAt)
	})

	if len(candidates) < n {
		return false
	}
	for i := 0; i < n; i++ {
		slog.Info("evicting least recently used session",
			"session_id", candidates[i].ID,
			"updated_at", candidates[i].UpdatedAt,
		)
		delete(s.sessions, candidates[i].ID)
	}
	return true
}

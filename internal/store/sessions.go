package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ashureev/cityline/internal/domain"
)

// Sessions is the session repository used by the orchestrator. Every
// operation for a given id runs inside that id's exclusive section;
// different ids proceed in parallel.
type Sessions struct {
	backend Backend
	locks   *KeyedMutex
	now     func() time.Time
}

// SessionsOption configures Sessions.
type SessionsOption func(*Sessions)

// WithClock overrides the clock used for creation and update times.
func WithClock(now func() time.Time) SessionsOption {
	return func(s *Sessions) { s.now = now }
}

// NewSessions wraps backend with per-session locking.
func NewSessions(backend Backend, opts ...SessionsOption) *Sessions {
	s := &Sessions{
		backend: backend,
		locks:   NewKeyedMutex(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Backend returns the underlying persistence backend.
func (s *Sessions) Backend() Backend {
	return s.backend
}

// GetOrCreate returns the stored session, or a fresh unsaved one when id
// has never been seen.
func (s *Sessions) GetOrCreate(ctx context.Context, id string) (*domain.Session, error) {
	unlock := s.locks.Lock(id)
	defer unlock()
	return s.load(ctx, id)
}

// Save persists sess under its id's lock.
func (s *Sessions) Save(ctx context.Context, sess *domain.Session) error {
	unlock := s.locks.Lock(sess.ID)
	defer unlock()
	return s.save(ctx, sess)
}

// Update runs fn as one unit of work: lock, load or create, mutate, save.
// When fn returns an error nothing is saved.
func (s *Sessions) Update(ctx context.Context, id string, fn func(*domain.Session) error) (*domain.Session, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Summary aggregates stored sessions, counting those updated within
// window as active.
func (s *Sessions) Summary(ctx context.Context, window time.Duration) (Summary, error) {
	return s.backend.Summary(ctx, s.now().Add(-window))
}

func (s *Sessions) load(ctx context.Context, id string) (*domain.Session, error) {
	sess, err := s.backend.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	if sess == nil {
		sess = domain.NewSession(id, s.now())
	}
	return sess, nil
}

func (s *Sessions) save(ctx context.Context, sess *domain.Session) error {
	sess.UpdatedAt = s.now()
	return s.backend.Save(ctx, sess)
}

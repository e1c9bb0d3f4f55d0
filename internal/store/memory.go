package store

import (
	"context"
	"sync"
	"time"

	"github.com/ashureev/cityline/internal/domain"
)

// Memory is an in-process Backend. Sessions are copied on the way in and
// out so callers never share state with the map.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

var _ Backend = (*Memory)(nil)

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]*domain.Session)}
}

// Load implements Backend.
func (m *Memory) Load(_ context.Context, id string) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneSession(m.sessions[id]), nil
}

// Save implements Backend.
func (m *Memory) Save(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stored int64
	if cur, ok := m.sessions[s.ID]; ok {
		stored = cur.Version
	}
	if stored != s.Version {
		return ErrVersionConflict
	}
	s.Version++
	m.sessions[s.ID] = cloneSession(s)
	return nil
}

// Summary implements Backend.
func (m *Memory) Summary(_ context.Context, activeSince time.Time) (Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sum := Summary{IntentDistribution: map[string]int{}}
	for _, s := range m.sessions {
		sum.add(s, activeSince)
	}
	return sum, nil
}

// DeleteIdle implements Backend.
func (m *Memory) DeleteIdle(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, s := range m.sessions {
		if s.UpdatedAt.Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// Ping implements Backend.
func (m *Memory) Ping(context.Context) error { return nil }

// Close implements Backend.
func (m *Memory) Close() error { return nil }

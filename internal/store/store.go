// Package store provides session persistence backends and the per-session
// locked repository used by the orchestrator.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ashureev/cityline/internal/domain"
)

// ErrVersionConflict is returned by Backend.Save when the stored session
// version no longer matches the version the caller loaded.
var ErrVersionConflict = errors.New("session version conflict")

// Backend persists sessions.
//
// Save is optimistic: the session's Version must equal the stored version
// (zero for a session never saved). On success Version is incremented.
type Backend interface {
	// Load returns the session, or nil with a nil error when absent.
	Load(ctx context.Context, id string) (*domain.Session, error)

	// Save creates or replaces the session.
	Save(ctx context.Context, s *domain.Session) error

	// Summary aggregates all stored sessions. Sessions updated at or after
	// activeSince count as active.
	Summary(ctx context.Context, activeSince time.Time) (Summary, error)

	// DeleteIdle removes sessions last updated before cutoff.
	DeleteIdle(ctx context.Context, cutoff time.Time) (int64, error)

	// Ping verifies backend connectivity.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Summary is the analytics view over stored sessions.
type Summary struct {
	TotalSessions      int            `json:"total_sessions"`
	ActiveSessions     int            `json:"active_sessions"`
	TotalInteractions  int            `json:"total_interactions"`
	IntentDistribution map[string]int `json:"intent_distribution"`
}

// IdleIntentLabel is the distribution key for sessions with no active flow.
const IdleIntentLabel = "none"

func (s *Summary) add(sess *domain.Session, activeSince time.Time) {
	if s.IntentDistribution == nil {
		s.IntentDistribution = map[string]int{}
	}
	s.TotalSessions++
	if !sess.UpdatedAt.Before(activeSince) {
		s.ActiveSessions++
	}
	s.TotalInteractions += len(sess.History)
	s.IntentDistribution[intentLabel(sess.ActiveIntent)]++
}

func intentLabel(i domain.Intent) string {
	if i == domain.IntentNone {
		return IdleIntentLabel
	}
	return string(i)
}

// cloneSession deep-copies s so stored state never aliases caller state.
func cloneSession(s *domain.Session) *domain.Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Slots = s.Slots.Clone()
	if s.History != nil {
		out.History = append([]domain.Turn(nil), s.History...)
	}
	return &out
}

// Package sweeper expires idle sessions in the background. An expired
// session is indistinguishable from one that never existed: the next
// message for its id starts fresh.
package sweeper

import (
	"context"
	"log/slog"
	"time"
)

// IdleDeleter removes sessions not updated since cutoff. Implementations
// own their retry policy for transient storage errors.
type IdleDeleter interface {
	DeleteIdle(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper periodically deletes sessions idle for longer than ttl.
type Sweeper struct {
	store    IdleDeleter
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// New creates a Sweeper. A ttl of zero disables it.
func New(store IdleDeleter, ttl, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:    store,
		ttl:      ttl,
		interval: interval,
		now:      time.Now,
		logger:   logger,
	}
}

// Run sweeps every interval until ctx is done. It returns nil on
// cancellation so it can run under an errgroup.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.ttl <= 0 || s.interval <= 0 {
		s.logger.Info("Session sweeper disabled")
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.logger.Info("Session sweeper started", "interval", s.interval, "ttl", s.ttl)

	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-ctx.Done():
			s.logger.Info("Session sweeper shutting down", "reason", ctx.Err())
			return nil
		}
	}
}

// Sweep runs one pass and returns the number of sessions removed. A
// failed pass is logged and retried on the next tick.
func (s *Sweeper) Sweep(ctx context.Context) int64 {
	cutoff := s.now().Add(-s.ttl)

	deleted, err := s.store.DeleteIdle(ctx, cutoff)
	if err != nil {
		if ctx.Err() != nil {
			s.logger.Debug("Session sweep interrupted", "error", err)
			return 0
		}
		s.logger.Error("Session sweep failed", "error", err)
		return 0
	}
	if deleted > 0 {
		s.logger.Info("Expired idle sessions", "count", deleted, "cutoff", cutoff)
	}
	return deleted
}

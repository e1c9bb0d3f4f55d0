package records

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultLookupTimeout bounds a single downstream lookup.
const DefaultLookupTimeout = 2 * time.Second

// Guarded wraps a Lookup so a slow, failing or panicking backend reads as
// a lookup miss. It never returns an error.
type Guarded struct {
	next    Lookup
	timeout time.Duration
	logger  *slog.Logger
}

var _ Lookup = (*Guarded)(nil)

// NewGuarded wraps next with a per-call timeout.
func NewGuarded(next Lookup, timeout time.Duration, logger *slog.Logger) *Guarded {
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guarded{next: next, timeout: timeout, logger: logger}
}

// ByAddress implements Lookup.
func (g *Guarded) ByAddress(ctx context.Context, kind Kind, address string) (Match, error) {
	return g.do(ctx, kind, "by_address", func(ctx context.Context) (Match, error) {
		return g.next.ByAddress(ctx, kind, address)
	}), nil
}

// ByID implements Lookup.
func (g *Guarded) ByID(ctx context.Context, kind Kind, id string) (Match, error) {
	return g.do(ctx, kind, "by_id", func(ctx context.Context) (Match, error) {
		return g.next.ByID(ctx, kind, id)
	}), nil
}

type lookupResult struct {
	match Match
	err   error
}

func (g *Guarded) do(ctx context.Context, kind Kind, op string, call func(context.Context) (Match, error)) Match {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	done := make(chan lookupResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- lookupResult{err: fmt.Errorf("lookup panic: %v", r)}
			}
		}()
		m, err := call(ctx)
		done <- lookupResult{match: m, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			g.logger.Warn("Record lookup failed, treating as not found",
				"kind", kind, "op", op, "error", res.err)
			return NotFound(kind)
		}
		return res.match
	case <-ctx.Done():
		g.logger.Warn("Record lookup timed out, treating as not found",
			"kind", kind, "op", op, "timeout", g.timeout, "error", ctx.Err())
		return NotFound(kind)
	}
}

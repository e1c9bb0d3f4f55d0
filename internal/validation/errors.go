// Package validation holds the business rules applied to citizen input:
// address checks, garage-sale date windows, duration limits, the annual
// permit quota and fee calculation. Every function is pure.
package validation

import "fmt"

// Reason classifies why a value was rejected.
type Reason string

const (
	ReasonEmpty       Reason = "empty"
	ReasonUnparsable  Reason = "unparsable"
	ReasonOutsideCity Reason = "outside_city_limits"
	ReasonPast        Reason = "in_past"
	ReasonTooFar      Reason = "too_far_ahead"
	ReasonTooShort    Reason = "too_short"
	ReasonTooLong     Reason = "too_long"
)

// Error is a recoverable validation failure. Guidance is safe to show to
// the citizen verbatim.
type Error struct {
	Field    string
	Reason   Reason
	Guidance string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %s (%s): %s", e.Field, e.Reason, e.Guidance)
}

func newError(field string, reason Reason, guidance string) *Error {
	return &Error{Field: field, Reason: reason, Guidance: guidance}
}

// Package records is the system-of-record boundary: bills, tickets,
// applications and garage-sale permits, looked up by address or id.
package records

import (
	"context"
	"errors"

	"github.com/ashureev/cityline/internal/domain"
)

// Kind selects a record table.
type Kind string

const (
	KindBills             Kind = "bills"
	KindTickets           Kind = "tickets"
	KindApplications      Kind = "applications"
	KindGarageSalePermits Kind = "garage_sale_permits"
)

// ErrQuotaExceeded is returned when an address already holds the annual
// maximum of approved garage-sale permits.
var ErrQuotaExceeded = errors.New("garage sale quota exceeded")

// ErrUnknownKind is returned for a Kind the backend does not serve.
var ErrUnknownKind = errors.New("unknown record kind")

// Match is the result of a lookup. Found is false for "no such record";
// exactly one of the record pointers is set when Found is true.
type Match struct {
	Found       bool
	Kind        Kind
	Key         string
	Bill        *domain.Bill
	Ticket      *domain.Ticket
	Application *domain.Application
	Permit      *domain.GarageSalePermit
}

// NotFound is the zero-record result.
func NotFound(kind Kind) Match {
	return Match{Kind: kind}
}

// Lookup reads records. A missing record is Match{Found: false} with a nil
// error; the error is reserved for infrastructure failures.
type Lookup interface {
	// ByAddress performs a fuzzy address search.
	ByAddress(ctx context.Context, kind Kind, address string) (Match, error)

	// ByID performs an exact, case-insensitive identifier search.
	ByID(ctx context.Context, kind Kind, id string) (Match, error)
}

// PermitRequest describes a garage-sale permit to issue.
type PermitRequest struct {
	Address   string
	Year      int
	SaleDate  string
	Days      int
	Fee       float64
	Submitted string
}

// Registry records submissions.
type Registry interface {
	// GarageSalePermits lists permits issued for year.
	GarageSalePermits(ctx context.Context, year int) ([]domain.GarageSalePermit, error)

	// IssueGarageSalePermit re-checks the quota and allocates the next
	// permit id for the year atomically. Returns ErrQuotaExceeded.
	IssueGarageSalePermit(ctx context.Context, req PermitRequest) (domain.GarageSalePermit, error)

	// SubmitApplication records a new application.
	SubmitApplication(ctx context.Context, app domain.Application) error
}

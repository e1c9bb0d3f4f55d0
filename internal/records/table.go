package records

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ashureev/cityline/internal/domain"
	"github.com/ashureev/cityline/internal/validation"
)

// Data is the serialized content of the record tables.
type Data struct {
	Bills             []domain.Bill             `yaml:"bills"`
	Tickets           []domain.Ticket           `yaml:"tickets"`
	Applications      []domain.Application      `yaml:"applications"`
	GarageSalePermits []domain.GarageSalePermit `yaml:"garage_sale_permits"`
}

// Table is an in-memory Lookup and Registry over static tables.
// Submissions are kept in memory only.
type Table struct {
	mu           sync.RWMutex
	bills        []domain.Bill
	tickets      []domain.Ticket
	applications []domain.Application
	permits      []domain.GarageSalePermit
}

var (
	_ Lookup   = (*Table)(nil)
	_ Registry = (*Table)(nil)
)

// NewTable creates a table seeded with data. The slices are copied.
func NewTable(data Data) *Table {
	return &Table{
		bills:        append([]domain.Bill(nil), data.Bills...),
		tickets:      append([]domain.Ticket(nil), data.Tickets...),
		applications: append([]domain.Application(nil), data.Applications...),
		permits:      append([]domain.GarageSalePermit(nil), data.GarageSalePermits...),
	}
}

// LoadFile reads a YAML fixture into a new Table.
func LoadFile(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read records file: %w", err)
	}
	var data Data
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse records file %s: %w", path, err)
	}
	return NewTable(data), nil
}

// ByAddress implements Lookup.
func (t *Table) ByAddress(_ context.Context, kind Kind, address string) (Match, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	best, bestScore := -1, 0
	consider := func(i int, candidate string) {
		if s := Score(address, candidate); s >= MinScore && s > bestScore {
			best, bestScore = i, s
		}
	}

	switch kind {
	case KindBills:
		for i, b := range t.bills {
			consider(i, b.Address)
		}
		if best >= 0 {
			b := t.bills[best]
			return Match{Found: true, Kind: kind, Key: b.Address, Bill: &b}, nil
		}
	case KindTickets:
		for i, tk := range t.tickets {
			consider(i, tk.Location)
		}
		if best >= 0 {
			tk := t.tickets[best]
			return Match{Found: true, Kind: kind, Key: tk.ID, Ticket: &tk}, nil
		}
	case KindApplications:
		for i, a := range t.applications {
			consider(i, a.Address)
		}
		if best >= 0 {
			a := t.applications[best]
			return Match{Found: true, Kind: kind, Key: a.ID, Application: &a}, nil
		}
	case KindGarageSalePermits:
		for i, p := range t.permits {
			consider(i, p.Address)
		}
		if best >= 0 {
			p := t.permits[best]
			return Match{Found: true, Kind: kind, Key: p.ID, Permit: &p}, nil
		}
	default:
		return Match{}, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return NotFound(kind), nil
}

// ByID implements Lookup.
func (t *Table) ByID(_ context.Context, kind Kind, id string) (Match, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return NotFound(kind), nil
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	switch kind {
	case KindBills:
		for _, b := range t.bills {
			if strings.EqualFold(b.Account, id) {
				return Match{Found: true, Kind: kind, Key: b.Account, Bill: &b}, nil
			}
		}
	case KindTickets:
		for _, tk := range t.tickets {
			if strings.EqualFold(tk.ID, id) {
				return Match{Found: true, Kind: kind, Key: tk.ID, Ticket: &tk}, nil
			}
		}
	case KindApplications:
		for _, a := range t.applications {
			if strings.EqualFold(a.ID, id) {
				return Match{Found: true, Kind: kind, Key: a.ID, Application: &a}, nil
			}
		}
	case KindGarageSalePermits:
		for _, p := range t.permits {
			if strings.EqualFold(p.ID, id) {
				return Match{Found: true, Kind: kind, Key: p.ID, Permit: &p}, nil
			}
		}
	default:
		return Match{}, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return NotFound(kind), nil
}

// GarageSalePermits implements Registry.
func (t *Table) GarageSalePermits(_ context.Context, year int) ([]domain.GarageSalePermit, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []domain.GarageSalePermit
	for _, p := range t.permits {
		if p.Year == year {
			out = append(out, p)
		}
	}
	return out, nil
}

// IssueGarageSalePermit implements Registry. The permit is recorded as
// approved under the canonical address and also registered as an
// application under the same id.
func (t *Table) IssueGarageSalePermit(_ context.Context, req PermitRequest) (domain.GarageSalePermit, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if q := validation.CheckAnnualQuota(req.Address, req.Year, t.permits); !q.WithinLimit {
		return domain.GarageSalePermit{}, ErrQuotaExceeded
	}

	seq := 1
	for _, p := range t.permits {
		if p.Year == req.Year {
			seq++
		}
	}
	id := PermitID(req.Year, seq)
	for t.permitExists(id) {
		seq++
		id = PermitID(req.Year, seq)
	}

	permit := domain.GarageSalePermit{
		ID:       id,
		Address:  validation.CanonicalAddress(req.Address),
		Year:     req.Year,
		Status:   domain.StatusApproved,
		SaleDate: req.SaleDate,
		Days:     req.Days,
		Fee:      req.Fee,
	}
	t.permits = append(t.permits, permit)
	t.applications = append(t.applications, domain.Application{
		ID:        id,
		Type:      "garage sale permit",
		Status:    domain.StatusApproved,
		Address:   req.Address,
		Submitted: req.Submitted,
	})
	return permit, nil
}

// SubmitApplication implements Registry.
func (t *Table) SubmitApplication(_ context.Context, app domain.Application) error {
	if strings.TrimSpace(app.ID) == "" {
		return fmt.Errorf("submit application: empty id")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, a := range t.applications {
		if strings.EqualFold(a.ID, app.ID) {
			return fmt.Errorf("submit application: duplicate id %s", app.ID)
		}
	}
	t.applications = append(t.applications, app)
	return nil
}

func (t *Table) permitExists(id string) bool {
	for _, p := range t.permits {
		if p.ID == id {
			return true
		}
	}
	return false
}

// PermitID formats a garage-sale permit identifier.
func PermitID(year, seq int) string {
	return fmt.Sprintf("GS-%d-%03d", year, seq)
}

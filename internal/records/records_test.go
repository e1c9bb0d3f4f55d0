package records

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/cityline/internal/domain"
)

func TestScore(t *testing.T) {
	assert.Equal(t, 3, Score("123 Main Street", "123 main st"))
	assert.Equal(t, 2, Score("Main", "123 main st"))
	assert.Equal(t, 1, Score("123 Elm St", "123 main st"))
	assert.Equal(t, 0, Score("Street", "123 main st"))
	assert.Equal(t, 0, Score("", "123 main st"))
	// Repeated tokens in the query do not inflate the score.
	assert.Equal(t, 2, Score("main main main", "123 main st"))
}

func TestTableByAddress(t *testing.T) {
	ctx := context.Background()
	tbl := NewTable(DefaultData())

	m, err := tbl.ByAddress(ctx, KindBills, "123 Main Street")
	require.NoError(t, err)
	require.True(t, m.Found)
	assert.Equal(t, "WAT-001234", m.Bill.Account)

	m, err = tbl.ByAddress(ctx, KindBills, "456 Olive Avenue")
	require.NoError(t, err)
	require.True(t, m.Found)
	assert.Equal(t, 156.20, m.Bill.Amount)

	m, err = tbl.ByAddress(ctx, KindBills, "999 Nowhere St")
	require.NoError(t, err)
	assert.False(t, m.Found)
	assert.Nil(t, m.Bill)

	m, err = tbl.ByAddress(ctx, KindTickets, "main st")
	require.NoError(t, err)
	require.True(t, m.Found)
	assert.Equal(t, "TK001", m.Ticket.ID)

	m, err = tbl.ByAddress(ctx, KindApplications, "789 Commerce Street")
	require.NoError(t, err)
	require.True(t, m.Found)
	assert.Equal(t, "APP003", m.Application.ID)

	_, err = tbl.ByAddress(ctx, Kind("parcels"), "123 Main St")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestTableByAddressPrefersBestScore(t *testing.T) {
	tbl := NewTable(Data{Bills: []domain.Bill{
		{Address: "12 main st", Account: "A"},
		{Address: "123 main st", Account: "B"},
	}})

	m, err := tbl.ByAddress(context.Background(), KindBills, "123 Main St")
	require.NoError(t, err)
	require.True(t, m.Found)
	assert.Equal(t, "B", m.Bill.Account)

	// Tie goes to the first record.
	m, err = tbl.ByAddress(context.Background(), KindBills, "Main St")
	require.NoError(t, err)
	assert.Equal(t, "A", m.Bill.Account)
}

func TestTableByID(t *testing.T) {
	ctx := context.Background()
	tbl := NewTable(DefaultData())

	m, err := tbl.ByID(ctx, KindTickets, "tk002")
	require.NoError(t, err)
	require.True(t, m.Found)
	assert.Equal(t, 125.00, m.Ticket.Amount)

	m, err = tbl.ByID(ctx, KindApplications, " APP002 ")
	require.NoError(t, err)
	require.True(t, m.Found)
	assert.Equal(t, domain.StatusPendingReview, m.Application.Status)

	m, err = tbl.ByID(ctx, KindApplications, "APP0")
	require.NoError(t, err)
	assert.False(t, m.Found)

	m, err = tbl.ByID(ctx, KindTickets, "")
	require.NoError(t, err)
	assert.False(t, m.Found)
}

func TestIssueGarageSalePermit(t *testing.T) {
	ctx := context.Background()
	tbl := NewTable(DefaultData())

	_, err := tbl.IssueGarageSalePermit(ctx, PermitRequest{Address: "456 Olive Ave", Year: 2025, Days: 1})
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	_, err = tbl.IssueGarageSalePermit(ctx, PermitRequest{Address: "456 Olive", Year: 2025, Days: 1})
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	p, err := tbl.IssueGarageSalePermit(ctx, PermitRequest{
		Address: "123 Main St", Year: 2025, SaleDate: "2025-06-15", Days: 2, Fee: 20, Submitted: "2025-06-01",
	})
	require.NoError(t, err)
	assert.Equal(t, "GS-2025-004", p.ID)
	assert.Equal(t, domain.StatusApproved, p.Status)
	assert.Equal(t, "123 main st", p.Address)

	m, err := tbl.ByID(ctx, KindApplications, "GS-2025-004")
	require.NoError(t, err)
	require.True(t, m.Found)
	assert.Equal(t, "garage sale permit", m.Application.Type)

	// The address now holds two approved permits.
	_, err = tbl.IssueGarageSalePermit(ctx, PermitRequest{Address: "123 main street", Year: 2025, Days: 1})
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	// A new year starts a fresh sequence.
	p, err = tbl.IssueGarageSalePermit(ctx, PermitRequest{Address: "123 Main St", Year: 2026, Days: 1})
	require.NoError(t, err)
	assert.Equal(t, "GS-2026-001", p.ID)

	permits, err := tbl.GarageSalePermits(ctx, 2025)
	require.NoError(t, err)
	assert.Len(t, permits, 4)
}

func TestSubmitApplication(t *testing.T) {
	ctx := context.Background()
	tbl := NewTable(DefaultData())

	require.NoError(t, tbl.SubmitApplication(ctx, domain.Application{ID: "APP202506011200", Type: "event permit"}))
	assert.Error(t, tbl.SubmitApplication(ctx, domain.Application{ID: "app001"}))
	assert.Error(t, tbl.SubmitApplication(ctx, domain.Application{}))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.yaml")
	fixture := `
bills:
  - address: 12 elm st
    amount: 10.5
    type: water
    due_date: "2025-07-01"
    account: WAT-777
tickets:
  - id: TK900
    amount: 60
    type: parking
    location: Elm St
    date: "2025-05-01"
`
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o600))

	tbl, err := LoadFile(path)
	require.NoError(t, err)

	m, err := tbl.ByAddress(context.Background(), KindBills, "12 Elm Street")
	require.NoError(t, err)
	require.True(t, m.Found)
	assert.Equal(t, "WAT-777", m.Bill.Account)
	assert.Equal(t, 10.5, m.Bill.Amount)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

type stubLookup struct {
	byAddress func(ctx context.Context) (Match, error)
}

func (s stubLookup) ByAddress(ctx context.Context, _ Kind, _ string) (Match, error) {
	return s.byAddress(ctx)
}

func (s stubLookup) ByID(ctx context.Context, _ Kind, _ string) (Match, error) {
	return s.byAddress(ctx)
}

func TestGuardedTreatsFailuresAsNotFound(t *testing.T) {
	ctx := context.Background()

	slow := NewGuarded(stubLookup{byAddress: func(ctx context.Context) (Match, error) {
		<-ctx.Done()
		return Match{}, ctx.Err()
	}}, 20*time.Millisecond, nil)
	start := time.Now()
	m, err := slow.ByAddress(ctx, KindBills, "123 Main St")
	require.NoError(t, err)
	assert.False(t, m.Found)
	assert.Less(t, time.Since(start), time.Second)

	failing := NewGuarded(stubLookup{byAddress: func(context.Context) (Match, error) {
		return Match{}, errors.New("connection refused")
	}}, time.Second, nil)
	m, err = failing.ByID(ctx, KindTickets, "TK001")
	require.NoError(t, err)
	assert.False(t, m.Found)
	assert.Equal(t, KindTickets, m.Kind)

	panicking := NewGuarded(stubLookup{byAddress: func(context.Context) (Match, error) {
		panic("boom")
	}}, time.Second, nil)
	m, err = panicking.ByAddress(ctx, KindBills, "123 Main St")
	require.NoError(t, err)
	assert.False(t, m.Found)

	healthy := NewGuarded(NewTable(DefaultData()), time.Second, nil)
	m, err = healthy.ByAddress(ctx, KindBills, "123 Main St")
	require.NoError(t, err)
	assert.True(t, m.Found)
}

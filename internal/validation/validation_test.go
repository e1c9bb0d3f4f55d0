package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/cityline/internal/domain"
)

var today = time.Date(2025, time.June, 1, 9, 30, 0, 0, time.UTC)

func TestNormalizeAddress(t *testing.T) {
	cases := map[string]string{
		"123 Main Street":        "123 main st",
		"  456 Olive   Avenue. ": "456 olive ave",
		"789 Pine Road, Apt #4":  "789 pine rd apt 4",
		"101 OAK ST":             "101 oak st",
		"":                       "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeAddress(in), "input %q", in)
	}
}

func TestValidateAddress(t *testing.T) {
	res := ValidateAddress("123 Main Street")
	require.True(t, res.Valid)
	assert.Equal(t, "123 main st", res.Normalized)
	assert.Equal(t, "main st", res.Street)

	res = ValidateAddress("55 Nowhere Lane")
	assert.False(t, res.Valid)
	require.NotNil(t, res.Err)
	assert.Equal(t, ReasonOutsideCity, res.Err.Reason)

	res = ValidateAddress("   ")
	assert.False(t, res.Valid)
	require.NotNil(t, res.Err)
	assert.Equal(t, ReasonEmpty, res.Err.Reason)
}

func TestValidateAddressHeuristicEdges(t *testing.T) {
	// A bare street name is accepted, and so is a wrong suffix.
	assert.True(t, IsWithinCityLimits("Main"))
	assert.True(t, IsWithinCityLimits("12 Main Plaza"))
	// Suffixes and numbers alone are never evidence.
	assert.False(t, IsWithinCityLimits("123 Street"))
	// Misspellings are rejected.
	assert.False(t, IsWithinCityLimits("123 Mian St"))
}

func TestValidateGarageSaleDate(t *testing.T) {
	res := ValidateGarageSaleDate("2025-05-31", today)
	assert.False(t, res.Valid)
	require.NotNil(t, res.Err)
	assert.Equal(t, ReasonPast, res.Err.Reason)

	res = ValidateGarageSaleDate("2025-07-05", today)
	assert.False(t, res.Valid)
	require.NotNil(t, res.Err)
	assert.Equal(t, ReasonTooFar, res.Err.Reason)

	res = ValidateGarageSaleDate("2025-06-15", today)
	require.True(t, res.Valid)
	assert.Equal(t, time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC), res.Date)
}

func TestValidateGarageSaleDateForms(t *testing.T) {
	june8 := time.Date(2025, time.June, 8, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"June 8", "june 8th", "Jun 8, 2025", "8 June", "the 8th of June", "6/8", "06/08/2025", "6/8/25", "2025-06-08"} {
		res := ValidateGarageSaleDate(in, today)
		if assert.True(t, res.Valid, "input %q: %v", in, res.Err) {
			assert.Equal(t, june8, res.Date, "input %q", in)
		}
	}
}

func TestValidateGarageSaleDateBoundaries(t *testing.T) {
	assert.True(t, ValidateGarageSaleDate("2025-06-01", today).Valid, "today is allowed")
	assert.True(t, ValidateGarageSaleDate("2025-07-01", today).Valid, "day 30 is allowed")
	assert.False(t, ValidateGarageSaleDate("2025-07-02", today).Valid, "day 31 is rejected")

	res := ValidateGarageSaleDate("sometime soon", today)
	require.NotNil(t, res.Err)
	assert.Equal(t, ReasonUnparsable, res.Err.Reason)

	res = ValidateGarageSaleDate("February 30", today)
	require.NotNil(t, res.Err)
	assert.Equal(t, ReasonUnparsable, res.Err.Reason)
}

func TestValidateGarageSaleDateYearRollover(t *testing.T) {
	lateDecember := time.Date(2025, time.December, 20, 0, 0, 0, 0, time.UTC)
	res := ValidateGarageSaleDate("Jan 5", lateDecember)
	require.True(t, res.Valid)
	assert.Equal(t, 2026, res.Date.Year())
}

func TestFindDate(t *testing.T) {
	assert.Equal(t, "june 8", FindDate("garage sale permit for June 8"))
	assert.Equal(t, "2025-06-08", FindDate("sale on 2025-06-08 please"))
	assert.Equal(t, "", FindDate("garage sale at the market 5 times"))
}

func TestValidateDuration(t *testing.T) {
	res := ValidateDuration("0")
	assert.False(t, res.Valid)
	require.NotNil(t, res.Err)
	assert.Equal(t, ReasonTooShort, res.Err.Reason)

	res = ValidateDuration("4")
	assert.False(t, res.Valid)
	require.NotNil(t, res.Err)
	assert.Equal(t, ReasonTooLong, res.Err.Reason)

	res = ValidateDuration("2")
	require.True(t, res.Valid)
	assert.Equal(t, 2, res.Days)
	assert.Equal(t, 20.0, CalculateFee(res.Days))

	res = ValidateDuration("two days please")
	require.True(t, res.Valid)
	assert.Equal(t, 2, res.Days)

	res = ValidateDuration("the whole weekend")
	require.NotNil(t, res.Err)
	assert.Equal(t, ReasonUnparsable, res.Err.Reason)
}

func TestCalculateFee(t *testing.T) {
	assert.Equal(t, 15.0, CalculateFee(1))
	assert.Equal(t, 20.0, CalculateFee(2))
	assert.Equal(t, 25.0, CalculateFee(3))
	assert.Equal(t, 15.0, CalculateFee(0))
}

func TestCheckAnnualQuota(t *testing.T) {
	existing := []domain.GarageSalePermit{
		{ID: "GS-2025-001", Address: "456 Olive Ave", Year: 2025, Status: domain.StatusApproved},
		{ID: "GS-2025-002", Address: "456 olive avenue", Year: 2025, Status: domain.StatusApproved},
		{ID: "GS-2025-003", Address: "123 Main St", Year: 2025, Status: domain.StatusApproved},
		{ID: "GS-2025-004", Address: "123 Main St", Year: 2025, Status: "rejected"},
		{ID: "GS-2024-001", Address: "123 Main St", Year: 2024, Status: domain.StatusApproved},
	}

	full := CheckAnnualQuota("456 Olive Avenue", 2025, existing)
	assert.False(t, full.WithinLimit)
	assert.Equal(t, 0, full.Remaining)
	assert.Equal(t, 2, full.Used)

	one := CheckAnnualQuota("123 main street", 2025, existing)
	assert.True(t, one.WithinLimit)
	assert.Equal(t, 1, one.Remaining)

	fresh := CheckAnnualQuota("123 Main St", 2026, existing)
	assert.True(t, fresh.WithinLimit)
	assert.Equal(t, 2, fresh.Remaining)

	short := CheckAnnualQuota("456 Olive", 2025, existing)
	assert.False(t, short.WithinLimit, "street suffix omitted")
	assert.Equal(t, 2, short.Used)
}

func TestCanonicalAddress(t *testing.T) {
	cases := map[string]string{
		"456 Olive":         "456 olive ave",
		"456 Olive Avenue":  "456 olive ave",
		"456 olive ave.":    "456 olive ave",
		"123 Main St Apt 4": "123 main st",
		"Main":              "main st",
		"55 Nowhere Lane":   "55 nowhere ln",
		"":                  "",
	}
	for in, want := range cases {
		assert.Equal(t, want, CanonicalAddress(in), in)
	}
}

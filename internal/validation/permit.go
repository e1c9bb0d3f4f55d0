package validation

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ashureev/cityline/internal/domain"
)

// Garage-sale limits.
const (
	MinSaleDays           = 1
	MaxSaleDays           = 3
	AnnualGarageSaleLimit = 2
	BaseGarageSaleFee     = 15.0
	ExtraDayGarageSaleFee = 5.0
)

var (
	integerRe   = regexp.MustCompile(`-?\d+`)
	numberWords = map[string]int{
		"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4,
		"five": 5, "six": 6, "seven": 7, "single": 1,
	}
)

// DurationResult is the outcome of ValidateDuration.
type DurationResult struct {
	Valid bool
	Days  int
	Err   *Error
}

// ValidateDuration extracts the first integer from text and accepts it
// when it lies in [MinSaleDays, MaxSaleDays]. Spelled-out numbers are
// accepted when no digits are present.
func ValidateDuration(text string) DurationResult {
	days, ok := firstInteger(text)
	if !ok {
		return DurationResult{Err: newError("duration", ReasonUnparsable,
			"How many days will the sale run? Please answer with a number from 1 to 3.")}
	}
	if days < MinSaleDays {
		return DurationResult{Days: days, Err: newError("duration", ReasonTooShort,
			"A garage sale has to run for at least 1 day. Please choose 1, 2 or 3 days.")}
	}
	if days > MaxSaleDays {
		return DurationResult{Days: days, Err: newError("duration", ReasonTooLong,
			"Garage sales can run for at most 3 days. Please choose 1, 2 or 3 days.")}
	}
	return DurationResult{Valid: true, Days: days}
}

func firstInteger(text string) (int, bool) {
	if m := integerRe.FindString(text); m != "" {
		n, err := strconv.Atoi(m)
		if err == nil {
			return n, true
		}
	}
	for _, word := range strings.Fields(strings.ToLower(text)) {
		if n, ok := numberWords[strings.Trim(word, ".,!?")]; ok {
			return n, true
		}
	}
	return 0, false
}

// QuotaResult is the outcome of CheckAnnualQuota.
type QuotaResult struct {
	WithinLimit bool
	Used        int
	Remaining   int
}

// CheckAnnualQuota counts approved permits for the canonical address in
// year against AnnualGarageSaleLimit.
func CheckAnnualQuota(address string, year int, existing []domain.GarageSalePermit) QuotaResult {
	want := CanonicalAddress(address)
	used := 0
	for _, p := range existing {
		if p.Year == year && p.Approved() && CanonicalAddress(p.Address) == want {
			used++
		}
	}
	remaining := AnnualGarageSaleLimit - used
	if remaining < 0 {
		remaining = 0
	}
	return QuotaResult{
		WithinLimit: used < AnnualGarageSaleLimit,
		Used:        used,
		Remaining:   remaining,
	}
}

// CalculateFee returns the garage-sale permit fee for a sale of days.
func CalculateFee(days int) float64 {
	extra := days - 1
	if extra < 0 {
		extra = 0
	}
	return BaseGarageSaleFee + float64(extra)*ExtraDayGarageSaleFee
}

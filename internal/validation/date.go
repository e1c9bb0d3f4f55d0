package validation

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// GarageSaleWindowDays is how far ahead a garage sale may be scheduled.
const GarageSaleWindowDays = 30

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

const monthPattern = `(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?`

var (
	isoDateRe       = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	slashDateRe     = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?\b`)
	monthDayRe      = regexp.MustCompile(`\b` + monthPattern + `\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s+(\d{4}))?\b`)
	dayMonthRe      = regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?` + monthPattern + `(?:,?\s+(\d{4}))?\b`)
	dateMentionRe   = regexp.MustCompile(isoDateRe.String() + `|` + slashDateRe.String() + `|` + monthDayRe.String() + `|` + dayMonthRe.String())
	errDateGuidance = "Please give the sale date like 'June 8', '6/8/2025' or '2025-06-08'."
)

// DateResult is the outcome of ValidateGarageSaleDate.
type DateResult struct {
	Valid bool
	Date  time.Time
	Err   *Error
}

// FindDate returns the first date-like phrase in text, or "".
func FindDate(text string) string {
	return dateMentionRe.FindString(strings.ToLower(text))
}

// ParseDate parses month-name, slash and ISO date forms. A date without a
// year resolves into today's year; yearless reports whether that happened.
func ParseDate(text string, today time.Time) (date time.Time, yearless bool, ok bool) {
	s := strings.ToLower(strings.TrimSpace(text))
	loc := today.Location()

	var year, day int
	var month time.Month

	switch {
	case isoDateRe.MatchString(s):
		m := isoDateRe.FindStringSubmatch(s)
		year, _ = strconv.Atoi(m[1])
		mon, _ := strconv.Atoi(m[2])
		month = time.Month(mon)
		day, _ = strconv.Atoi(m[3])
	case monthDayRe.MatchString(s):
		m := monthDayRe.FindStringSubmatch(s)
		month = months[m[1][:3]]
		day, _ = strconv.Atoi(m[2])
		year, _ = strconv.Atoi(m[3])
	case dayMonthRe.MatchString(s):
		m := dayMonthRe.FindStringSubmatch(s)
		day, _ = strconv.Atoi(m[1])
		month = months[m[2][:3]]
		year, _ = strconv.Atoi(m[3])
	case slashDateRe.MatchString(s):
		m := slashDateRe.FindStringSubmatch(s)
		mon, _ := strconv.Atoi(m[1])
		month = time.Month(mon)
		day, _ = strconv.Atoi(m[2])
		year, _ = strconv.Atoi(m[3])
		if year > 0 && year < 100 {
			year += 2000
		}
	default:
		return time.Time{}, false, false
	}

	if year == 0 {
		year = today.Year()
		yearless = true
	}
	if month < time.January || month > time.December || day < 1 {
		return time.Time{}, false, false
	}

	date = time.Date(year, month, day, 0, 0, 0, 0, loc)
	if date.Day() != day || date.Month() != month {
		return time.Time{}, false, false
	}
	return date, yearless, true
}

// ValidateGarageSaleDate accepts a sale date that is not before today and
// no more than GarageSaleWindowDays after today.
func ValidateGarageSaleDate(text string, today time.Time) DateResult {
	if strings.TrimSpace(text) == "" {
		return DateResult{Err: newError("date", ReasonEmpty, errDateGuidance)}
	}

	date, yearless, ok := ParseDate(text, today)
	if !ok {
		return DateResult{Err: newError("date", ReasonUnparsable, errDateGuidance)}
	}

	start := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	limit := start.AddDate(0, 0, GarageSaleWindowDays)

	// "Jan 3" said in late December means next January.
	if yearless && date.Before(start) {
		if next := date.AddDate(1, 0, 0); !next.After(limit) {
			date = next
		}
	}

	if date.Before(start) {
		return DateResult{Date: date, Err: newError("date", ReasonPast,
			"That date has already passed. Please choose a date from today onward.")}
	}
	if date.After(limit) {
		return DateResult{Date: date, Err: newError("date", ReasonTooFar,
			"Garage sale permits can only be requested up to 30 days in advance. Please choose a date on or before "+limit.Format("January 2")+".")}
	}
	return DateResult{Valid: true, Date: date}
}

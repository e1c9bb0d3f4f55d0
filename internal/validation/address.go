package validation

import (
	"strings"
	"unicode"
)

// abbreviations maps long street suffixes to the form used in records.
var abbreviations = map[string]string{
	"street":    "st",
	"avenue":    "ave",
	"av":        "ave",
	"road":      "rd",
	"drive":     "dr",
	"lane":      "ln",
	"boulevard": "blvd",
	"court":     "ct",
	"place":     "pl",
	"highway":   "hwy",
}

// noiseTokens never count as evidence that two addresses match.
var noiseTokens = map[string]bool{
	"st": true, "ave": true, "rd": true, "dr": true, "ln": true,
	"blvd": true, "ct": true, "pl": true, "hwy": true,
	"n": true, "s": true, "e": true, "w": true,
	"north": true, "south": true, "east": true, "west": true,
	"the": true, "of": true, "and": true, "at": true, "on": true, "corner": true,
	"apt": true, "unit": true,
}

// KnownStreets is the fixed set of streets inside city limits, in
// normalized form.
var KnownStreets = []string{
	"main st",
	"olive ave",
	"pine rd",
	"oak st",
	"commerce st",
	"elm st",
	"maple ave",
	"cedar ln",
	"park blvd",
	"lake dr",
	"river rd",
	"broadway",
}

// AddressResult is the outcome of ValidateAddress.
type AddressResult struct {
	Valid      bool
	Normalized string
	Street     string
	Err        *Error
}

// NormalizeAddress lower-cases, strips punctuation, collapses whitespace
// and rewrites suffixes (street→st, avenue→ave, road→rd, ...).
func NormalizeAddress(text string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, text)

	fields := strings.Fields(cleaned)
	for i, f := range fields {
		if short, ok := abbreviations[f]; ok {
			fields[i] = short
		}
	}
	return strings.Join(fields, " ")
}

// NameTokens returns the tokens of a normalized address that identify a
// street: house numbers, suffixes and directionals are dropped.
func NameTokens(normalized string) []string {
	var out []string
	for _, tok := range strings.Fields(normalized) {
		if noiseTokens[tok] || isNumber(tok) {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// NumberTokens returns the purely numeric tokens of a normalized address.
func NumberTokens(normalized string) []string {
	var out []string
	for _, tok := range strings.Fields(normalized) {
		if isNumber(tok) {
			out = append(out, tok)
		}
	}
	return out
}

// ValidateAddress checks the address against KnownStreets by token
// overlap. This is a heuristic, not an exact match: any shared street
// name token is accepted, so "Main" alone is valid and "12 Main Plaza"
// is treated as Main St (false positive), while a misspelled street name
// is rejected (false negative).
func ValidateAddress(text string) AddressResult {
	normalized := NormalizeAddress(text)
	if normalized == "" {
		return AddressResult{
			Err: newError("address", ReasonEmpty, "Please tell me the street address, for example '123 Main St'."),
		}
	}

	tokens := NameTokens(normalized)
	for _, street := range KnownStreets {
		for _, name := range NameTokens(street) {
			if containsToken(tokens, name) {
				return AddressResult{Valid: true, Normalized: normalized, Street: street}
			}
		}
	}

	return AddressResult{
		Normalized: normalized,
		Err: newError("address", ReasonOutsideCity,
			"That address doesn't appear to be inside city limits. Please double-check the street name."),
	}
}

// CanonicalAddress keys an address by its house number and the known
// street it resolves to, so "456 Olive" and "456 Olive Avenue" are the
// same place. Addresses outside city limits keep their normalized form.
func CanonicalAddress(text string) string {
	res := ValidateAddress(text)
	if !res.Valid {
		return res.Normalized
	}
	if nums := NumberTokens(res.Normalized); len(nums) > 0 {
		return nums[0] + " " + res.Street
	}
	return res.Street
}

// IsWithinCityLimits reports whether ValidateAddress accepts text.
func IsWithinCityLimits(text string) bool {
	return ValidateAddress(text).Valid
}

func containsToken(tokens []string, want string) bool {
	for _, t := range tokens {
		if t == want {
			return true
		}
	}
	return false
}

func isNumber(tok string) bool {
	if tok == "" {
		return false
	}
	for _, r := range tok {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

package records

import "github.com/ashureev/cityline/internal/validation"

// MinScore is the lowest Score accepted as a match. It requires at least
// one shared street-name token; a shared house number alone is not enough.
const MinScore = 2

// Score rates how well query matches candidate after address
// normalization. Each shared street-name token scores 2 and each shared
// house number scores 1; suffixes and directionals score nothing.
//
// The heuristic is loose: "Main" matches every record on
// any street named Main, and the best score wins with ties going to
// the record listed first.
func Score(query, candidate string) int {
	q := validation.NormalizeAddress(query)
	c := validation.NormalizeAddress(candidate)
	if q == "" || c == "" {
		return 0
	}

	score := 0
	cNames := validation.NameTokens(c)
	for _, tok := range dedupe(validation.NameTokens(q)) {
		if contains(cNames, tok) {
			score += 2
		}
	}
	cNums := validation.NumberTokens(c)
	for _, tok := range dedupe(validation.NumberTokens(q)) {
		if contains(cNums, tok) {
			score++
		}
	}
	return score
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

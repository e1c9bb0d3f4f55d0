// Package intent maps free text to a municipal-service intent using an
// ordered keyword rule table. Classification is deterministic: the same
// text, history and table always produce the same Result.
package intent

import (
	"sort"
	"strings"
	"unicode"

	"github.com/ashureev/cityline/internal/domain"
)

// Fallback values for text no rule matches.
const (
	FallbackConfidence = 0.3
	fallbackRule       = "fallback"
)

// Input is the normalized form handed to rule predicates.
type Input struct {
	Text    string
	Words   []string
	History []domain.Turn

	words map[string]bool
}

// HasWord reports whether w occurs as a whole word.
func (in Input) HasWord(w string) bool {
	return in.words[w]
}

// Result is the outcome of Classify.
type Result struct {
	Intent             domain.Intent     `json:"intent"`
	Confidence         float64           `json:"confidence"`
	Entities           map[string]string `json:"entities,omitempty"`
	NeedsClarification bool              `json:"needs_clarification"`
	Rule               string            `json:"rule"`
}

// Classifier evaluates rules in priority order; the first match wins.
type Classifier struct {
	rules []Rule
}

// New returns a classifier over rules, or DefaultRules when none are
// given. Rules are sorted by descending priority; equal priorities keep
// their given order.
func New(rules ...Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	sorted := append([]Rule(nil), rules...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})
	return &Classifier{rules: sorted}
}

// Rules returns the effective table in evaluation order.
func (c *Classifier) Rules() []Rule {
	return append([]Rule(nil), c.rules...)
}

// Classify maps text, with optional history, to an intent.
func (c *Classifier) Classify(text string, history []domain.Turn) Result {
	in := NewInput(text, history)
	if in.Text != "" {
		for _, r := range c.rules {
			if !r.matches(in) {
				continue
			}
			res := Result{Intent: r.Intent, Confidence: r.Confidence, Rule: r.Name}
			if r.Entities != nil {
				res.Entities = r.Entities(in)
			}
			return res
		}
	}
	return Result{
		Intent:             domain.IntentOther,
		Confidence:         FallbackConfidence,
		NeedsClarification: true,
		Rule:               fallbackRule,
	}
}

// NewInput lower-cases and trims text, strips punctuation other than
// apostrophes and hyphens, and splits it into words.
func NewInput(text string, history []domain.Turn) Input {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return unicode.ToLower(r)
		case r == '\'' || r == '-' || r == '/':
			return r
		case r == '’':
			return '\''
		}
		return ' '
	}, text)

	words := strings.Fields(cleaned)
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
		if trimmed := strings.Trim(w, "'-/"); trimmed != w && trimmed != "" {
			set[trimmed] = true
		}
	}
	return Input{
		Text:    strings.Join(words, " "),
		Words:   words,
		History: history,
		words:   set,
	}
}

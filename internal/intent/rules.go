package intent

import (
	"regexp"
	"strings"

	"github.com/ashureev/cityline/internal/domain"
	"github.com/ashureev/cityline/internal/validation"
)

// Entity keys set by rules.
const (
	EntityPermitType = domain.SlotPermitType
	EntityDate       = "date"
	EntityRepeat     = "repeatIntent"
	EntityTicketID   = domain.SlotTicketID
)

// ticketNumberRe matches citation numbers as printed on tickets (TK001,
// PK2025001) in normalized text.
var ticketNumberRe = regexp.MustCompile(`\b(?:tk|pk)\d{3,}\b`)

// Rule maps matching text to an intent. Keywords match whole words and
// Phrases match as substrings of the normalized text. Match, when set,
// is an additional predicate that must hold.
type Rule struct {
	Name       string        `json:"name"`
	Intent     domain.Intent `json:"intent"`
	Priority   int           `json:"priority"`
	Confidence float64       `json:"confidence"`
	Keywords   []string      `json:"keywords,omitempty"`
	Phrases    []string      `json:"phrases,omitempty"`

	Match    func(Input) bool              `json:"-"`
	Entities func(Input) map[string]string `json:"-"`
}

func (r Rule) matches(in Input) bool {
	hit := false
	for _, kw := range r.Keywords {
		if in.HasWord(kw) {
			hit = true
			break
		}
	}
	if !hit {
		for _, p := range r.Phrases {
			if strings.Contains(in.Text, p) {
				hit = true
				break
			}
		}
	}
	if len(r.Keywords) == 0 && len(r.Phrases) == 0 {
		hit = true
	}
	if !hit {
		return false
	}
	return r.Match == nil || r.Match(in)
}

// DefaultRules returns the built-in rule table, highest priority first.
// Control utterances sit above the task intents so that quick-reply
// labels such as "Pay another bill" are not read as a new bill payment.
// Ticket and status rules sit above bill and permit because their
// phrasing commonly contains "pay" or "application".
func DefaultRules() []Rule {
	return []Rule{
		{
			Name: "download_receipt", Intent: domain.IntentDownloadReceipt, Priority: 100, Confidence: 0.95,
			Keywords: []string{"receipt"},
		},
		{
			Name: "pay_another", Intent: domain.IntentPayAnother, Priority: 95, Confidence: 0.95,
			Phrases: []string{"pay another", "another bill"},
		},
		{
			Name: "menu_return", Intent: domain.IntentMenuReturn, Priority: 90, Confidence: 0.95,
			Keywords: []string{"menu"},
			Phrases:  []string{"other services", "main menu", "go back"},
		},
		{
			Name: "farewell", Intent: domain.IntentFarewell, Priority: 85, Confidence: 0.95,
			Keywords: []string{"bye", "goodbye", "farewell"},
			Phrases:  []string{"all set", "that's all", "that is all", "thank you", "no thanks"},
		},
		{
			Name: "restart", Intent: domain.IntentRestart, Priority: 80, Confidence: 0.95,
			Keywords: []string{"restart", "reset"},
			Phrases:  []string{"start over", "start again", "cancel that"},
		},
		{
			Name: "escalate", Intent: domain.IntentEscalate, Priority: 75, Confidence: 0.9,
			Keywords: []string{"human", "agent", "person", "representative", "operator", "confused"},
			Phrases:  []string{"talk to someone", "speak to someone", "connect me", "customer service"},
		},
		{
			Name: "ticket_number", Intent: domain.IntentPayTicket, Priority: 72, Confidence: 0.9,
			Match:    func(in Input) bool { return ticketNumberRe.MatchString(in.Text) },
			Entities: ticketEntities,
		},
		{
			Name: "pay_ticket", Intent: domain.IntentPayTicket, Priority: 70, Confidence: 0.9,
			Keywords: []string{"ticket", "tickets", "fine", "fines", "violation", "citation", "parking", "speeding"},
		},
		{
			Name: "garage_sale_permit", Intent: domain.IntentApplyPermit, Priority: 65, Confidence: 0.95,
			Phrases:  []string{"garage sale", "yard sale", "garage-sale"},
			Entities: garageSaleEntities,
		},
		{
			Name: "check_status", Intent: domain.IntentCheckStatus, Priority: 60, Confidence: 0.9,
			Keywords: []string{"status", "track"},
			Phrases:  []string{"check my application", "check on my", "application id"},
		},
		{
			Name: "apply_permit", Intent: domain.IntentApplyPermit, Priority: 55, Confidence: 0.9,
			Keywords: []string{"permit", "permits", "license", "apply", "application", "construction"},
		},
		{
			Name: "report_issue", Intent: domain.IntentReportIssue, Priority: 50, Confidence: 0.9,
			Keywords: []string{"report", "issue", "problem", "pothole", "potholes", "streetlight", "traffic", "noise", "leak", "broken"},
		},
		{
			Name: "pay_bill", Intent: domain.IntentPayBill, Priority: 45, Confidence: 0.9,
			Keywords: []string{"bill", "bills", "pay", "water", "electricity", "electric", "gas", "utility"},
		},
		{
			Name: "greeting", Intent: domain.IntentGreeting, Priority: 40, Confidence: 0.9,
			Keywords: []string{"hello", "hi", "hey", "help", "start", "howdy"},
			Phrases:  []string{"good morning", "good afternoon", "good evening"},
		},
		{
			Name: "repeat_last", Intent: domain.IntentRepeatLast, Priority: 30, Confidence: 0.8,
			Phrases: []string{"same again", "do that again", "same as before", "one more time"},
			Match:   func(in Input) bool { return lastActionable(in.History) != domain.IntentNone },
			Entities: func(in Input) map[string]string {
				return map[string]string{EntityRepeat: string(lastActionable(in.History))}
			},
		},
	}
}

func ticketEntities(in Input) map[string]string {
	return map[string]string{EntityTicketID: strings.ToUpper(ticketNumberRe.FindString(in.Text))}
}

func garageSaleEntities(in Input) map[string]string {
	ents := map[string]string{EntityPermitType: domain.PermitTypeGarageSale}
	if d := validation.FindDate(in.Text); d != "" {
		ents[EntityDate] = d
	}
	return ents
}

// lastActionable returns the most recent flow intent recorded in history.
func lastActionable(history []domain.Turn) domain.Intent {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Intent.Actionable() {
			return history[i].Intent
		}
	}
	return domain.IntentNone
}

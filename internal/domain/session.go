// Package domain contains core domain types for the Cityline assistant.
package domain

import (
	"time"
)

// maxStoredTurnRunes bounds the text kept per history entry.
const maxStoredTurnRunes = 200

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single entry in the session history.
type Turn struct {
	Role   Role      `json:"role"`
	Text   string    `json:"text"`
	Intent Intent    `json:"intent,omitempty"`
	At     time.Time `json:"at"`
}

// Step is the qualified state of the active flow. Flows namespace their
// values ("pay_bill/ask_address") so steps never collide across flows.
type Step string

// StepEntry is the step of a session with no active flow.
const StepEntry Step = ""

// Slot keys shared by flows and the orchestrator.
const (
	SlotAddress         = "address"
	SlotAccount         = "account"
	SlotAmount          = "amount"
	SlotDueDate         = "dueDate"
	SlotBillType        = "billType"
	SlotTicketID        = "ticketId"
	SlotPermitType      = "permitType"
	SlotSaleDate        = "saleDate"
	SlotDurationDays    = "durationDays"
	SlotIssueType       = "issueType"
	SlotIssueLocation   = "issueLocation"
	SlotApplicationID   = "applicationId"
	SlotReceiptID       = "receiptId"
	SlotProcessingSince = "processingSince"
)

// Slots holds values captured while a flow runs.
type Slots map[string]string

// Clone returns an independent copy. A nil receiver yields an empty map.
func (s Slots) Clone() Slots {
	out := make(Slots, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Session holds the conversational state of one citizen conversation.
type Session struct {
	ID             string    `json:"id"`
	ActiveIntent   Intent    `json:"active_intent"`
	Step           Step      `json:"step"`
	Slots          Slots     `json:"slots"`
	FailedAttempts int       `json:"failed_attempts"`
	History        []Turn    `json:"history"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Version        int64     `json:"version"`
}

// NewSession returns a session in its creation state.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:           id,
		ActiveIntent: IntentNone,
		Step:         StepEntry,
		Slots:        Slots{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// InFlow reports whether a task flow is currently active.
func (s *Session) InFlow() bool {
	return s.ActiveIntent != IntentNone && s.Step != StepEntry
}

// Reset clears conversational state but keeps the identifier. History
// is append-only and survives a reset.
func (s *Session) Reset() {
	s.ActiveIntent = IntentNone
	s.Step = StepEntry
	s.Slots = Slots{}
	s.FailedAttempts = 0
}

// AppendTurn adds a turn to the history. Stored text is truncated.
func (s *Session) AppendTurn(role Role, text string, intent Intent, at time.Time) {
	s.History = append(s.History, Turn{
		Role:   role,
		Text:   truncate(text, maxStoredTurnRunes),
		Intent: intent,
		At:     at,
	})
}

// RecentTurns returns the last n turns from history.
func (s *Session) RecentTurns(n int) []Turn {
	if n <= 0 {
		return nil
	}
	if n >= len(s.History) {
		return s.History
	}
	return s.History[len(s.History)-n:]
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

// Package flow implements the per-intent slot-filling state machines.
//
// A flow is a transition function over (step, slots, input). It never
// touches the session directly: the orchestrator copies the Result back
// onto the session, so every step change and the slots captured with it
// are applied together.
package flow

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/cityline/internal/domain"
	"github.com/ashureev/cityline/internal/records"
)

// MaxFailedAttempts is the number of consecutive misses on one step that
// ends a flow with an escalation.
const MaxFailedAttempts = 2

// Outcome classifies a transition.
type Outcome string

const (
	OutcomeAdvanced        Outcome = "advanced"
	OutcomeWaiting         Outcome = "waiting"
	OutcomeValidationError Outcome = "validation_error"
	OutcomeNotFound        Outcome = "not_found"
	OutcomeQuotaExceeded   Outcome = "quota_exceeded"
	OutcomeEscalated       Outcome = "escalated"
	OutcomeCompleted       Outcome = "completed"
	OutcomeDeclined        Outcome = "declined"
)

// Quick replies shared across flows.
var (
	MenuOptions = []string{
		"Pay a bill",
		"Pay a ticket",
		"Apply for a permit",
		"Report an issue",
		"Check application status",
	}
	PaymentConfirmedOptions = []string{
		"Download receipt",
		"Pay another bill",
		"Check other services",
		"I'm all set",
	}
)

// Turn is the input to a transition.
type Turn struct {
	Step           domain.Step
	Slots          domain.Slots
	FailedAttempts int
	Input          string
	Entities       map[string]string
	Now            time.Time
	AutoContinue   bool
}

// Result is the output of a transition. When Done is set the flow has
// terminated and Step is ignored.
type Result struct {
	Step              domain.Step
	Slots             domain.Slots
	FailedAttempts    int
	Reply             string
	Options           []string
	Escalate          bool
	Done              bool
	AutoContinueDelay time.Duration
	Outcome           Outcome
}

// Flow is one intent's state machine.
type Flow interface {
	Intent() domain.Intent

	// Start enters the flow from the entry step.
	Start(ctx context.Context, t Turn) Result

	// Advance handles input at t.Step.
	Advance(ctx context.Context, t Turn) Result
}

// Continuer is implemented by flows with timed steps that advance on the
// auto-continue message instead of user input.
type Continuer interface {
	Continues(step domain.Step) bool
}

// Deps are the collaborators shared by all flows.
type Deps struct {
	Lookup            records.Lookup
	Registry          records.Registry
	IDs               *IDs
	AutoContinueDelay time.Duration
	DefaultTicketID   string
	Logger            *slog.Logger
}

// DefaultAutoContinueDelay is the payment processing delay.
const DefaultAutoContinueDelay = 2 * time.Second

func (d Deps) withDefaults() Deps {
	if d.IDs == nil {
		d.IDs = NewIDs()
	}
	if d.AutoContinueDelay <= 0 {
		d.AutoContinueDelay = DefaultAutoContinueDelay
	}
	if d.DefaultTicketID == "" {
		d.DefaultTicketID = "TK001"
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return d
}

// byAddress and byID treat lookup failures as a miss.
func (d Deps) byAddress(ctx context.Context, kind records.Kind, address string) records.Match {
	m, err := d.Lookup.ByAddress(ctx, kind, address)
	if err != nil {
		d.Logger.Warn("Lookup by address failed", "kind", kind, "error", err)
		return records.NotFound(kind)
	}
	return m
}

func (d Deps) byID(ctx context.Context, kind records.Kind, id string) records.Match {
	m, err := d.Lookup.ByID(ctx, kind, id)
	if err != nil {
		d.Logger.Warn("Lookup by id failed", "kind", kind, "id", id, "error", err)
		return records.NotFound(kind)
	}
	return m
}

// All returns every flow keyed by its intent.
func All(deps Deps) map[domain.Intent]Flow {
	deps = deps.withDefaults()
	flows := []Flow{
		NewBillPayment(deps),
		NewTicketPayment(deps),
		NewPermitApplication(deps),
		NewIssueReport(deps),
		NewStatusCheck(deps),
	}
	out := make(map[domain.Intent]Flow, len(flows))
	for _, f := range flows {
		out[f.Intent()] = f
	}
	return out
}

// advance moves to step with a successful capture, resetting misses.
func advance(t Turn, step domain.Step, reply string, options ...string) Result {
	return Result{
		Step:    step,
		Slots:   t.Slots,
		Reply:   reply,
		Options: options,
		Outcome: OutcomeAdvanced,
	}
}

// stay keeps the current step without counting a miss.
func stay(t Turn, reply string, options ...string) Result {
	return Result{
		Step:           t.Step,
		Slots:          t.Slots,
		FailedAttempts: t.FailedAttempts,
		Reply:          reply,
		Options:        options,
		Outcome:        OutcomeWaiting,
	}
}

// miss re-prompts at the current step and counts the failure. The
// MaxFailedAttempts-th consecutive miss ends the flow with escalation.
func miss(t Turn, outcome Outcome, reply, escalation string, options ...string) Result {
	n := t.FailedAttempts + 1
	if n >= MaxFailedAttempts {
		return Result{
			Slots:          t.Slots,
			FailedAttempts: n,
			Reply:          escalation,
			Escalate:       true,
			Done:           true,
			Outcome:        OutcomeEscalated,
		}
	}
	return Result{
		Step:           t.Step,
		Slots:          t.Slots,
		FailedAttempts: n,
		Reply:          reply,
		Options:        options,
		Outcome:        outcome,
	}
}

func finish(t Turn, outcome Outcome, reply string, options ...string) Result {
	return Result{
		Slots:   t.Slots,
		Reply:   reply,
		Options: options,
		Done:    true,
		Outcome: outcome,
	}
}

func escalate(t Turn, reply string) Result {
	return Result{
		Slots:    t.Slots,
		Reply:    reply,
		Escalate: true,
		Done:     true,
		Outcome:  OutcomeEscalated,
	}
}

// words lower-cases text and splits it on anything but letters, digits
// and apostrophes.
func words(text string) map[string]bool {
	out := map[string]bool{}
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '\'')
	}) {
		out[w] = true
	}
	return out
}

func hasAny(ws map[string]bool, candidates ...string) bool {
	for _, c := range candidates {
		if ws[c] {
			return true
		}
	}
	return false
}

var (
	affirmatives = []string{"yes", "y", "yeah", "yep", "sure", "ok", "okay", "pay", "confirm", "please"}
	negatives    = []string{"no", "not", "nope", "don't", "cancel", "later", "stop"}
)

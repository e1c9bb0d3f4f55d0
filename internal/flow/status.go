package flow

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ashureev/cityline/internal/domain"
	"github.com/ashureev/cityline/internal/records"
)

// Status check steps.
const (
	StatusChooseMethod domain.Step = "check_status/choose_method"
	StatusAwaitID      domain.Step = "check_status/await_id"
	StatusAwaitAddress domain.Step = "check_status/await_address"
)

// Status quick replies.
var (
	StatusMethodOptions   = []string{"I have the application ID", "Look up by address"}
	StatusNotFoundOptions = []string{"Yes, connect me", "Let me try a different address"}
)

var applicationIDRe = regexp.MustCompile(`(?i)\b(app\d+|gs-\d{4}-\d+)\b`)

// StatusCheck reports an application's status by id or address.
type StatusCheck struct {
	deps Deps
}

var _ Flow = (*StatusCheck)(nil)

// NewStatusCheck creates the status check flow.
func NewStatusCheck(deps Deps) *StatusCheck {
	return &StatusCheck{deps: deps.withDefaults()}
}

// Intent implements Flow.
func (f *StatusCheck) Intent() domain.Intent { return domain.IntentCheckStatus }

// Start implements Flow.
func (f *StatusCheck) Start(_ context.Context, t Turn) Result {
	return advance(t, StatusChooseMethod,
		"I can help you check your application status. Do you have your application ID, or should I look it up by address?",
		StatusMethodOptions...)
}

// Advance implements Flow.
func (f *StatusCheck) Advance(ctx context.Context, t Turn) Result {
	switch t.Step {
	case StatusChooseMethod:
		if id := applicationIDRe.FindString(t.Input); id != "" {
			t.Step = StatusAwaitID
			return f.byID(ctx, t, id)
		}
		if hasAny(words(t.Input), "id", "number") {
			return advance(t, StatusAwaitID, "Please enter your application ID. It usually starts with APP followed by numbers.")
		}
		return advance(t, StatusAwaitAddress, "What's the address associated with your application?")
	case StatusAwaitID:
		return f.byID(ctx, t, strings.TrimSpace(t.Input))
	case StatusAwaitAddress:
		return f.byAddress(ctx, t)
	default:
		return f.Start(ctx, t)
	}
}

func (f *StatusCheck) byID(ctx context.Context, t Turn, raw string) Result {
	id := strings.ToUpper(raw)
	m := f.deps.byID(ctx, records.KindApplications, id)
	if !m.Found || m.Application == nil {
		return miss(t, OutcomeNotFound,
			fmt.Sprintf("I couldn't find application ID '%s'. Could you double-check it? It should be in your confirmation email.", id),
			"I'm still unable to find that application. Let me connect you with someone who can look it up for you.")
	}
	return f.report(t, m.Application)
}

func (f *StatusCheck) byAddress(ctx context.Context, t Turn) Result {
	ws := words(t.Input)
	if hasAny(ws, "different", "again") && !hasAny(ws, "st", "ave", "rd") {
		return stay(t, "Sure. What's the address associated with your application?")
	}

	m := f.deps.byAddress(ctx, records.KindApplications, t.Input)
	if !m.Found || m.Application == nil {
		return miss(t, OutcomeNotFound,
			fmt.Sprintf("I couldn't find any applications for '%s'. It might be under a different address or name. "+
				"Would you like me to connect you with someone who can help locate it?", strings.TrimSpace(t.Input)),
			"I'm still unable to find an application for that address. Let me connect you with someone who can help locate it.",
			StatusNotFoundOptions...)
	}
	return f.report(t, m.Application)
}

func (f *StatusCheck) report(t Turn, app *domain.Application) Result {
	t.Slots[domain.SlotApplicationID] = app.ID
	return finish(t, OutcomeCompleted,
		fmt.Sprintf("Application status found.\n\nID: %s\nType: %s\nAddress: %s\nStatus: %s\nSubmitted: %s\n\n"+
			"Your application is currently %s. You should receive an update within 2-3 business days. Need help with anything else?",
			app.ID, titleCase(app.Type), app.Address, titleCase(app.Status), app.Submitted, app.Status),
		MenuOptions...)
}

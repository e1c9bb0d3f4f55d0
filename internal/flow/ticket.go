package flow

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ashureev/cityline/internal/domain"
	"github.com/ashureev/cityline/internal/intent"
	"github.com/ashureev/cityline/internal/records"
)

// Ticket payment steps.
const (
	TicketChooseMethod domain.Step = "pay_ticket/choose_method"
	TicketAwaitID      domain.Step = "pay_ticket/await_id"
	TicketAwaitConfirm domain.Step = "pay_ticket/await_confirm"
)

// DisputeWindowDays is how long a citation may be disputed.
const DisputeWindowDays = 21

// Ticket quick replies.
var (
	TicketMethodOptions  = []string{"I have the ticket number", "Look up by address", "Look up by license plate"}
	TicketConfirmOptions = []string{"Yes, pay now", "Dispute this ticket", "Not now"}
	TicketPaidOptions    = []string{"Download receipt", "Check other services", "I'm all set"}
)

var ticketIDRe = regexp.MustCompile(`(?i)\b[a-z]{2}\d{3,}\b`)

// TicketPayment finds a citation by number, then pays, disputes or
// declines it.
type TicketPayment struct {
	deps Deps
}

var _ Flow = (*TicketPayment)(nil)

// NewTicketPayment creates the ticket payment flow.
func NewTicketPayment(deps Deps) *TicketPayment {
	return &TicketPayment{deps: deps.withDefaults()}
}

// Intent implements Flow.
func (f *TicketPayment) Intent() domain.Intent { return domain.IntentPayTicket }

// Start implements Flow. A ticket number found by the classifier skips
// the method question.
func (f *TicketPayment) Start(ctx context.Context, t Turn) Result {
	if id := t.Entities[intent.EntityTicketID]; id != "" {
		t.Step = TicketAwaitID
		return f.lookup(ctx, t, id)
	}
	return advance(t, TicketChooseMethod, "I can help you pay your ticket. How would you like me to find it?",
		TicketMethodOptions...)
}

// Advance implements Flow.
func (f *TicketPayment) Advance(ctx context.Context, t Turn) Result {
	switch t.Step {
	case TicketChooseMethod:
		return f.chooseMethod(ctx, t)
	case TicketAwaitID:
		return f.lookup(ctx, t, strings.TrimSpace(t.Input))
	case TicketAwaitConfirm:
		return f.confirm(t)
	default:
		return f.Start(ctx, t)
	}
}

func (f *TicketPayment) chooseMethod(ctx context.Context, t Turn) Result {
	if id := ticketIDRe.FindString(t.Input); id != "" {
		t.Step = TicketAwaitID
		return f.lookup(ctx, t, id)
	}
	if hasAny(words(t.Input), "number", "id") {
		return advance(t, TicketAwaitID,
			"Please enter your ticket number. It usually starts with letters like TK or PK followed by numbers.")
	}

	// Address and plate searches are not backed by a citation index;
	// they resolve to the configured default ticket.
	m := f.deps.byID(ctx, records.KindTickets, f.deps.DefaultTicketID)
	if !m.Found || m.Ticket == nil {
		return escalate(t, "I wasn't able to search for tickets that way. Let me connect you with someone who can locate your ticket.")
	}
	return f.found(t, m.Ticket, []string{"Yes, pay now", "Not this ticket", "Dispute this ticket"})
}

func (f *TicketPayment) lookup(ctx context.Context, t Turn, raw string) Result {
	id := strings.ToUpper(raw)
	m := f.deps.byID(ctx, records.KindTickets, id)
	if !m.Found || m.Ticket == nil {
		return miss(t, OutcomeNotFound,
			fmt.Sprintf("I couldn't find ticket number '%s'. Could you double-check it? It's usually printed at the top of your ticket.", id),
			"I'm having trouble finding that ticket number in our system. Let me connect you with someone who can locate your ticket and help with payment.")
	}
	return f.found(t, m.Ticket, TicketConfirmOptions)
}

func (f *TicketPayment) found(t Turn, tk *domain.Ticket, options []string) Result {
	t.Slots[domain.SlotTicketID] = tk.ID
	t.Slots[domain.SlotAmount] = strconv.FormatFloat(tk.Amount, 'f', 2, 64)
	return advance(t, TicketAwaitConfirm,
		fmt.Sprintf("I found your ticket:\n\n%s violation (%s)\nAmount: %s\nLocation: %s\nDate: %s\n\nWould you like to pay this ticket now?",
			titleCase(tk.Type), tk.ID, money(tk.Amount), tk.Location, tk.Date),
		options...)
}

func (f *TicketPayment) confirm(t Turn) Result {
	ws := words(t.Input)
	switch {
	case hasAny(ws, "dispute", "contest", "appeal"):
		return finish(t, OutcomeCompleted,
			fmt.Sprintf("To dispute ticket %s, visit the online portal or City Hall. You have %d days from the ticket date "+
				"to file. You can keep driving while the dispute is reviewed. Anything else I can help with?",
				t.Slots[domain.SlotTicketID], DisputeWindowDays),
			MenuOptions...)
	case hasAny(ws, negatives...):
		return f.decline(t)
	case hasAny(ws, affirmatives...):
		receipt := f.deps.IDs.Receipt()
		t.Slots[domain.SlotReceiptID] = receipt
		return finish(t, OutcomeCompleted,
			fmt.Sprintf("Ticket paid! Your %s payment for ticket %s is complete.\n\nReceipt: %s\n\nIs there anything else I can help you with?",
				money(slotAmount(t.Slots)), t.Slots[domain.SlotTicketID], receipt),
			TicketPaidOptions...)
	default:
		return f.decline(t)
	}
}

func (f *TicketPayment) decline(t Turn) Result {
	return finish(t, OutcomeDeclined,
		"No problem, nothing has been charged. You can pay any time before the due date to avoid late fees. "+
			"Is there anything else I can help you with?",
		MenuOptions...)
}

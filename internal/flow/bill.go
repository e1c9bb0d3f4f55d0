package flow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/ashureev/cityline/internal/domain"
	"github.com/ashureev/cityline/internal/records"
)

// Bill payment steps.
const (
	BillAskAddress   domain.Step = "pay_bill/ask_address"
	BillAwaitConfirm domain.Step = "pay_bill/await_confirm"
	BillProcessing   domain.Step = "pay_bill/processing"
)

// BillConfirmOptions are offered once a bill is found.
var BillConfirmOptions = []string{"Yes, pay now", "Show me other bills", "Not now"}

const billAddressPrompt = "I'd be happy to help you find and pay your bill. " +
	"Could you share the service address? Something like '123 Main Street' works, or just 'Main Street'."

// BillPayment finds a bill by address, confirms it and initiates payment.
type BillPayment struct {
	deps Deps
}

var (
	_ Flow      = (*BillPayment)(nil)
	_ Continuer = (*BillPayment)(nil)
)

// NewBillPayment creates the bill payment flow.
func NewBillPayment(deps Deps) *BillPayment {
	return &BillPayment{deps: deps.withDefaults()}
}

// Intent implements Flow.
func (f *BillPayment) Intent() domain.Intent { return domain.IntentPayBill }

// Continues implements Continuer.
func (f *BillPayment) Continues(step domain.Step) bool { return step == BillProcessing }

// Start implements Flow.
func (f *BillPayment) Start(_ context.Context, t Turn) Result {
	return advance(t, BillAskAddress, billAddressPrompt)
}

// Advance implements Flow.
func (f *BillPayment) Advance(ctx context.Context, t Turn) Result {
	switch t.Step {
	case BillAskAddress:
		return f.lookup(ctx, t)
	case BillAwaitConfirm:
		return f.confirm(t)
	case BillProcessing:
		return f.process(t)
	default:
		return f.Start(ctx, t)
	}
}

func (f *BillPayment) lookup(ctx context.Context, t Turn) Result {
	m := f.deps.byAddress(ctx, records.KindBills, t.Input)
	if !m.Found || m.Bill == nil {
		return miss(t, OutcomeNotFound,
			fmt.Sprintf("I couldn't find any bills for '%s'. Try a different format such as '123 Main St', "+
				"double-check the spelling, and make sure it's the address on your account. Could you enter it again?",
				strings.TrimSpace(t.Input)),
			"I'm having trouble locating your bill. The address might be formatted differently or the account "+
				"may be under another name. Let me connect you with a customer service representative who can look up your account.")
	}

	b := m.Bill
	t.Slots[domain.SlotAddress] = b.Address
	t.Slots[domain.SlotAccount] = b.Account
	t.Slots[domain.SlotAmount] = strconv.FormatFloat(b.Amount, 'f', 2, 64)
	t.Slots[domain.SlotDueDate] = b.DueDate
	t.Slots[domain.SlotBillType] = b.Type

	return advance(t, BillAwaitConfirm,
		fmt.Sprintf("I found your account for %s:\n\n%s bill: %s\nDue date: %s\nAccount: %s\n\nWould you like to proceed with the payment?",
			b.Address, titleCase(b.Type), money(b.Amount), b.DueDate, b.Account),
		BillConfirmOptions...)
}

func (f *BillPayment) confirm(t Turn) Result {
	ws := words(t.Input)
	switch {
	case hasAny(ws, "other", "another", "different", "show"):
		for _, k := range []string{domain.SlotAddress, domain.SlotAccount, domain.SlotAmount, domain.SlotDueDate, domain.SlotBillType} {
			delete(t.Slots, k)
		}
		return advance(t, BillAskAddress, "Sure. What's the address for the other account you'd like to check?")
	case hasAny(ws, negatives...):
		return f.decline(t)
	case hasAny(ws, affirmatives...):
		t.Slots[domain.SlotProcessingSince] = t.Now.UTC().Format(time.RFC3339Nano)
		res := advance(t, BillProcessing,
			fmt.Sprintf("Processing your payment of %s. This only takes a moment...", money(slotAmount(t.Slots))))
		res.AutoContinueDelay = f.deps.AutoContinueDelay
		return res
	default:
		return f.decline(t)
	}
}

func (f *BillPayment) decline(t Turn) Result {
	return finish(t, OutcomeDeclined,
		fmt.Sprintf("No problem, no payment has been taken. You can come back and pay any time before the due date.\n\n"+
			"Reminder: your bill is due on %s.\n\nIs there anything else I can help you with?", t.Slots[domain.SlotDueDate]),
		MenuOptions...)
}

func (f *BillPayment) process(t Turn) Result {
	remaining := f.deps.AutoContinueDelay
	if since, err := time.Parse(time.RFC3339Nano, t.Slots[domain.SlotProcessingSince]); err == nil {
		remaining = f.deps.AutoContinueDelay - t.Now.Sub(since)
	}

	if !t.AutoContinue || remaining > 0 {
		if remaining <= 0 {
			remaining = time.Millisecond
		}
		res := stay(t, "Your payment is still processing. Hang tight for just a moment...")
		res.AutoContinueDelay = remaining
		return res
	}

	receipt := f.deps.IDs.Receipt()
	t.Slots[domain.SlotReceiptID] = receipt
	delete(t.Slots, domain.SlotProcessingSince)

	return finish(t, OutcomeCompleted,
		fmt.Sprintf("Payment successful! Your %s %s bill for %s has been paid.\n\nReceipt: %s\n"+
			"A confirmation email is on its way and the payment will show in your account history.\n\n"+
			"Is there anything else I can help you with today?",
			money(slotAmount(t.Slots)), t.Slots[domain.SlotBillType], t.Slots[domain.SlotAddress], receipt),
		PaymentConfirmedOptions...)
}

func slotAmount(s domain.Slots) float64 {
	v, _ := strconv.ParseFloat(s[domain.SlotAmount], 64)
	return v
}

func money(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

// titleCase upper-cases the first rune of each word. Input is
// user-supplied for generic permit types and may be any UTF-8.
func titleCase(s string) string {
	fields := strings.Fields(s)
	for i, f := range fields {
		r, size := utf8.DecodeRuneInString(f)
		if r == utf8.RuneError {
			continue
		}
		fields[i] = string(unicode.ToUpper(r)) + f[size:]
	}
	return strings.Join(fields, " ")
}

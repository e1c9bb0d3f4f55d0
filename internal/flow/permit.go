package flow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ashureev/cityline/internal/domain"
	"github.com/ashureev/cityline/internal/intent"
	"github.com/ashureev/cityline/internal/records"
	"github.com/ashureev/cityline/internal/validation"
)

// Permit application steps. The garage_* steps form the garage-sale
// sub-flow.
const (
	PermitChooseType     domain.Step = "apply_permit/choose_type"
	PermitAskAddress     domain.Step = "apply_permit/ask_address"
	PermitGarageAddress  domain.Step = "apply_permit/garage_address"
	PermitGarageDate     domain.Step = "apply_permit/garage_date"
	PermitGarageDuration domain.Step = "apply_permit/garage_duration"
)

// PermitTypes are offered when the permit type is not yet known.
var PermitTypes = []string{
	"Garage sale permit",
	"Construction permit",
	"Business license",
	"Event permit",
	"Signage permit",
	"Other",
}

// DurationOptions are offered at the garage-sale duration step.
var DurationOptions = []string{"1 day", "2 days", "3 days"}

// slotDateHint holds a date mentioned before the date step was reached.
const slotDateHint = "saleDateHint"

const saleDateLayout = "2006-01-02"

const registryFailure = "I wasn't able to record your application just now. Let me connect you with someone who can finish it for you."

// PermitApplication collects a permit type and address and submits an
// application. Garage-sale permits additionally collect a sale date and
// duration and are subject to the annual per-address quota.
type PermitApplication struct {
	deps Deps
}

var _ Flow = (*PermitApplication)(nil)

// NewPermitApplication creates the permit flow.
func NewPermitApplication(deps Deps) *PermitApplication {
	return &PermitApplication{deps: deps.withDefaults()}
}

// Intent implements Flow.
func (f *PermitApplication) Intent() domain.Intent { return domain.IntentApplyPermit }

// Start implements Flow.
func (f *PermitApplication) Start(_ context.Context, t Turn) Result {
	if t.Entities[domain.SlotPermitType] == domain.PermitTypeGarageSale {
		if d := t.Entities[intent.EntityDate]; d != "" {
			t.Slots[slotDateHint] = d
		}
		return f.startGarageSale(t)
	}
	return advance(t, PermitChooseType, "I'd be happy to help you apply for a permit. What type of permit do you need?",
		PermitTypes...)
}

// Advance implements Flow.
func (f *PermitApplication) Advance(ctx context.Context, t Turn) Result {
	switch t.Step {
	case PermitChooseType:
		return f.chooseType(t)
	case PermitAskAddress:
		return f.submitGeneric(ctx, t)
	case PermitGarageAddress:
		return f.garageAddress(ctx, t)
	case PermitGarageDate:
		return f.garageDate(t)
	case PermitGarageDuration:
		return f.garageDuration(ctx, t)
	default:
		return f.Start(ctx, t)
	}
}

func (f *PermitApplication) startGarageSale(t Turn) Result {
	t.Slots[domain.SlotPermitType] = domain.PermitTypeGarageSale
	return advance(t, PermitGarageAddress,
		"Great, let's get your garage sale permit started. What's the address where the sale will be held?")
}

func (f *PermitApplication) chooseType(t Turn) Result {
	choice := strings.TrimSpace(t.Input)
	lower := strings.ToLower(choice)
	if strings.Contains(lower, "garage") || strings.Contains(lower, "yard sale") {
		if d := validation.FindDate(choice); d != "" {
			t.Slots[slotDateHint] = d
		}
		return f.startGarageSale(t)
	}

	t.Slots[domain.SlotPermitType] = choice
	return advance(t, PermitAskAddress,
		fmt.Sprintf("Great choice. For a %s, I'll need the address where the permit will be used. What's the address?", lower))
}

func (f *PermitApplication) submitGeneric(ctx context.Context, t Turn) Result {
	address := strings.TrimSpace(t.Input)
	id := f.deps.IDs.Timestamped(PrefixApplication, t.Now)
	permitType := t.Slots[domain.SlotPermitType]

	err := f.deps.Registry.SubmitApplication(ctx, domain.Application{
		ID:        id,
		Type:      strings.ToLower(permitType),
		Status:    domain.StatusPendingReview,
		Address:   address,
		Submitted: t.Now.Format(saleDateLayout),
	})
	if err != nil {
		f.deps.Logger.Error("Failed to submit application", "id", id, "error", err)
		return escalate(t, registryFailure)
	}

	t.Slots[domain.SlotAddress] = address
	t.Slots[domain.SlotApplicationID] = id
	return finish(t, OutcomeCompleted,
		fmt.Sprintf("Application submitted!\n\nPermit type: %s\nAddress: %s\nApplication ID: %s\n\n"+
			"You'll receive an email confirmation within the hour along with the list of required documents. "+
			"Typical processing time is 5-7 business days, and you can check the status any time with your application ID.\n\n"+
			"Anything else I can help with?", permitType, address, id),
		MenuOptions...)
}

func (f *PermitApplication) garageAddress(ctx context.Context, t Turn) Result {
	addr := validation.ValidateAddress(t.Input)
	if !addr.Valid {
		return miss(t, OutcomeValidationError, addr.Err.Guidance,
			"I still can't match that address to a street inside city limits. Let me connect you with someone who can help with your permit.")
	}

	address := strings.TrimSpace(t.Input)
	year := t.Now.Year()
	permits, err := f.deps.Registry.GarageSalePermits(ctx, year)
	if err != nil {
		f.deps.Logger.Error("Failed to list garage sale permits", "year", year, "error", err)
		return escalate(t, registryFailure)
	}

	quota := validation.CheckAnnualQuota(address, year, permits)
	if !quota.WithinLimit {
		return quotaExceeded(t, address, year)
	}
	t.Slots[domain.SlotAddress] = address

	prompt := fmt.Sprintf("Thanks. %s can hold %d more garage sale %s this year. ",
		address, quota.Remaining, plural(quota.Remaining, "permit", "permits"))

	if hint := t.Slots[slotDateHint]; hint != "" {
		delete(t.Slots, slotDateHint)
		d := validation.ValidateGarageSaleDate(hint, t.Now)
		if d.Valid {
			t.Slots[domain.SlotSaleDate] = d.Date.Format(saleDateLayout)
			return advance(t, PermitGarageDuration,
				prompt+fmt.Sprintf("Your sale is set for %s. How many days will it run? Sales can last 1 to 3 days.",
					d.Date.Format("Monday, January 2")),
				DurationOptions...)
		}
		if d.Err != nil {
			return advance(t, PermitGarageDate, prompt+d.Err.Guidance)
		}
	}
	return advance(t, PermitGarageDate,
		prompt+fmt.Sprintf("What date would you like to hold the sale? It must be within the next %d days.",
			validation.GarageSaleWindowDays))
}

func (f *PermitApplication) garageDate(t Turn) Result {
	d := validation.ValidateGarageSaleDate(t.Input, t.Now)
	if !d.Valid {
		return miss(t, OutcomeValidationError, d.Err.Guidance,
			"I'm having trouble scheduling that date. Let me connect you with someone who can help with your permit.")
	}
	t.Slots[domain.SlotSaleDate] = d.Date.Format(saleDateLayout)
	return advance(t, PermitGarageDuration,
		fmt.Sprintf("%s works. How many days will the sale run? Sales can last 1 to 3 days.", d.Date.Format("Monday, January 2")),
		DurationOptions...)
}

func (f *PermitApplication) garageDuration(ctx context.Context, t Turn) Result {
	dur := validation.ValidateDuration(t.Input)
	if !dur.Valid {
		return miss(t, OutcomeValidationError, dur.Err.Guidance,
			"I'm having trouble with the sale duration. Let me connect you with someone who can help with your permit.",
			DurationOptions...)
	}

	fee := validation.CalculateFee(dur.Days)
	address := t.Slots[domain.SlotAddress]
	year := t.Now.Year()
	t.Slots[domain.SlotDurationDays] = strconv.Itoa(dur.Days)

	permit, err := f.deps.Registry.IssueGarageSalePermit(ctx, records.PermitRequest{
		Address:   address,
		Year:      year,
		SaleDate:  t.Slots[domain.SlotSaleDate],
		Days:      dur.Days,
		Fee:       fee,
		Submitted: t.Now.Format(saleDateLayout),
	})
	if errors.Is(err, records.ErrQuotaExceeded) {
		return quotaExceeded(t, address, year)
	}
	if err != nil {
		f.deps.Logger.Error("Failed to issue garage sale permit", "address", address, "error", err)
		return escalate(t, registryFailure)
	}

	t.Slots[domain.SlotApplicationID] = permit.ID
	remaining := 0
	if permits, err := f.deps.Registry.GarageSalePermits(ctx, year); err == nil {
		remaining = validation.CheckAnnualQuota(address, year, permits).Remaining
	}

	return finish(t, OutcomeCompleted,
		fmt.Sprintf("Your garage sale permit is approved!\n\nPermit ID: %s\nAddress: %s\nSale date: %s\nDuration: %d %s\nFee: %s\n\n"+
			"This address can hold %d more garage sale %s in %d. Anything else I can help with?",
			permit.ID, address, permit.SaleDate, dur.Days, plural(dur.Days, "day", "days"), money(fee),
			remaining, plural(remaining, "permit", "permits"), year),
		MenuOptions...)
}

func quotaExceeded(t Turn, address string, year int) Result {
	return finish(t, OutcomeQuotaExceeded,
		fmt.Sprintf("I'm sorry, %s has already reached the quota of %d approved garage sale permits for %d, "+
			"so I can't submit another one. Remaining allowance this year: 0. Is there anything else I can help with?",
			address, validation.AnnualGarageSaleLimit, year),
		MenuOptions...)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

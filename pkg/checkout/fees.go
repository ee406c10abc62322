package checkout

import (
	"fmt"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/clubline/clubline-backend/pkg/errors"
)

const bpsDenominator = 10000

// FeePolicy captures the fee inputs resolved for a club at checkout time.
type FeePolicy struct {
	PlatformFeeBps    int
	RecurringFeeCents int64
}

// Breakdown is the priced result for a hosted checkout session.
type Breakdown struct {
	AmountCents         int64 `json:"amount_cents"`
	ApplicationFeeCents int64 `json:"application_fee_cents"`
	RecurringFeeCents   int64 `json:"recurring_fee_cents"`
}

// TotalApplicationFeeCents is the amount withheld from the connected account:
// the percentage platform fee plus any recurring fee claimed for this session.
func (b Breakdown) TotalApplicationFeeCents() int64 {
	return b.ApplicationFeeCents + b.RecurringFeeCents
}

// Price computes the checkout fee breakdown. The percentage fee rounds half
// up on the cent boundary.
func Price(amountCents int64, policy FeePolicy) (Breakdown, error) {
	if amountCents <= 0 {
		return Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "checkout amount must be positive").WithDetails(map[string]any{
			"amount_cents": amountCents,
		})
	}
	if policy.PlatformFeeBps < 0 || policy.PlatformFeeBps > bpsDenominator {
		return Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("platform fee bps %d out of range", policy.PlatformFeeBps))
	}
	if policy.RecurringFeeCents < 0 {
		return Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "recurring fee must be non-negative")
	}

	fee := ApplicationFeeCents(amountCents, policy.PlatformFeeBps)
	breakdown := Breakdown{
		AmountCents:         amountCents,
		ApplicationFeeCents: fee,
		RecurringFeeCents:   policy.RecurringFeeCents,
	}
	if breakdown.TotalApplicationFeeCents() > amountCents {
		return Breakdown{}, pkgerrors.New(pkgerrors.CodeStateConflict, "fees exceed checkout amount").WithDetails(map[string]any{
			"amount_cents":          amountCents,
			"application_fee_cents": fee,
			"recurring_fee_cents":   policy.RecurringFeeCents,
		})
	}
	return breakdown, nil
}

// ApplicationFeeCents computes amount * bps / 10000 in exact decimal
// arithmetic, rounding half up to the nearest cent.
func ApplicationFeeCents(amountCents int64, bps int) int64 {
	if amountCents <= 0 || bps <= 0 {
		return 0
	}
	fee := decimal.NewFromInt(amountCents).
		Mul(decimal.NewFromInt(int64(bps))).
		Div(decimal.NewFromInt(bpsDenominator))
	return fee.Round(0).IntPart()
}

package accounts

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/account"

	pkgstripe "github.com/clubline/clubline-backend/pkg/stripe"
)

// StripeAccountClient exposes the connected-account read the onboarding
// status check needs.
type StripeAccountClient interface {
	GetAccount(ctx context.Context, id string) (*stripe.Account, error)
}

type stripeClientWrapper struct{}

// NewStripeClient wraps the provided Stripe client so the service can be tested.
func NewStripeClient(api *pkgstripe.Client) StripeAccountClient {
	if api == nil {
		return nil
	}
	return &stripeClientWrapper{}
}

func (w *stripeClientWrapper) GetAccount(ctx context.Context, id string) (*stripe.Account, error) {
	params := &stripe.AccountParams{}
	params.Context = ctx
	return account.GetByID(id, params)
}

package stripewebhook

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/balancetransaction"
	"github.com/stripe/stripe-go/v84/paymentintent"
	"github.com/stripe/stripe-go/v84/refund"

	pkgstripe "github.com/clubline/clubline-backend/pkg/stripe"
)

// StripePaymentClient exposes the subset of Stripe operations the payment
// reconciliation paths need. Fee and refund data is always fetched here, never
// read from webhook payload estimates.
type StripePaymentClient interface {
	GetBalanceTransaction(ctx context.Context, id string, params *stripe.BalanceTransactionParams) (*stripe.BalanceTransaction, error)
	GetPaymentIntent(ctx context.Context, id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	ListRefunds(ctx context.Context, params *stripe.RefundListParams) ([]*stripe.Refund, error)
}

type stripeClientWrapper struct{}

// NewStripeClient wraps the provided Stripe client so the webhook service can be tested.
func NewStripeClient(api *pkgstripe.Client) StripePaymentClient {
	if api == nil {
		return nil
	}
	return &stripeClientWrapper{}
}

func (w *stripeClientWrapper) GetBalanceTransaction(ctx context.Context, id string, params *stripe.BalanceTransactionParams) (*stripe.BalanceTransaction, error) {
	if params == nil {
		params = &stripe.BalanceTransactionParams{}
	}
	params.Context = ctx
	return balancetransaction.Get(id, params)
}

func (w *stripeClientWrapper) GetPaymentIntent(ctx context.Context, id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if params == nil {
		params = &stripe.PaymentIntentParams{}
	}
	params.Context = ctx
	return paymentintent.Get(id, params)
}

func (w *stripeClientWrapper) ListRefunds(ctx context.Context, params *stripe.RefundListParams) ([]*stripe.Refund, error) {
	if params == nil {
		params = &stripe.RefundListParams{}
	}
	params.Context = ctx
	iter := refund.List(params)
	var refunds []*stripe.Refund
	for iter.Next() {
		refunds = append(refunds, iter.Refund())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return refunds, nil
}

package webhooks

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"

	"github.com/clubline/clubline-backend/api/responses"
	"github.com/clubline/clubline-backend/internal/paymentevents"
	pkgerrors "github.com/clubline/clubline-backend/pkg/errors"
	"github.com/clubline/clubline-backend/pkg/logger"
	"github.com/clubline/clubline-backend/pkg/metrics"
)

// StripeWebhookService applies one verified, claimed event to the ledger.
type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

// stripeEventGate is the idempotency gate every delivery passes before any
// ledger code runs.
type stripeEventGate interface {
	VerifyEvent(payload []byte, sigHeader string) (*stripe.Event, error)
	Claim(ctx context.Context, eventID, eventType string) (paymentevents.ClaimResult, error)
	MarkCompleted(ctx context.Context, eventID string) error
	MarkFailed(ctx context.Context, eventID string, cause error) error
}

// StripeWebhook ingests processor payment notifications. Order is fixed:
// verify the signature, claim the event id, process, then settle the claim.
// A lost claim is a duplicate delivery and acks with 200 without touching
// the ledger.
func StripeWebhook(svc StripeWebhookService, gate stripeEventGate, mets *metrics.PaymentMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if gate == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment event gate unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		event, err := gate.VerifyEvent(payload, r.Header.Get("Stripe-Signature"))
		if err != nil {
			mets.IncEvent("unknown", metrics.OutcomeRejected)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			ctx = logg.WithEventID(ctx, event.ID)
		}

		claim, err := gate.Claim(ctx, event.ID, string(event.Type))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if !claim.Acquired {
			if logg != nil {
				logg.Info(ctx, fmt.Sprintf("stripe event %s already claimed, acking duplicate", event.ID))
			}
			mets.IncEvent(string(event.Type), metrics.OutcomeDuplicate)
			responses.WriteSuccess(w, map[string]string{"status": "duplicate"})
			return
		}

		if err := svc.HandleEvent(ctx, event); err != nil {
			if markErr := gate.MarkFailed(ctx, event.ID, err); markErr != nil && logg != nil {
				logg.Error(ctx, "payment event failure not recorded", markErr)
			}
			mets.IncEvent(string(event.Type), metrics.OutcomeFailed)
			// Post-claim failures must return 5xx so the processor
			// redelivers; the failed claim absorbs the redelivery.
			if typed := pkgerrors.As(err); typed != nil {
				if pkgerrors.MetadataFor(typed.Code()).HTTPStatus < http.StatusInternalServerError {
					err = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "webhook processing failed")
				}
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := gate.MarkCompleted(ctx, event.ID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		mets.IncEvent(string(event.Type), metrics.OutcomeProcessed)
		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("stripe event %s processed", event.ID))
		}
		responses.WriteSuccess(w, map[string]string{"status": "processed"})
	}
}

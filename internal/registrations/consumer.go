package registrations

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clubline/clubline-backend/pkg/db/models"
	"github.com/clubline/clubline-backend/pkg/enums"
	"github.com/clubline/clubline-backend/pkg/logger"
	"github.com/clubline/clubline-backend/pkg/outbox"
	"github.com/clubline/clubline-backend/pkg/outbox/payloads"
)

const sideEffectsConsumerName = "payment-side-effects"

type registrationStore interface {
	Confirm(ctx context.Context, id uuid.UUID) (bool, error)
}

type enrollmentStore interface {
	FindPlanByID(ctx context.Context, planID uuid.UUID) (*models.MembershipPlan, error)
	ActivateEnrollment(ctx context.Context, id uuid.UUID, startsAt, expiresAt time.Time) (bool, error)
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer applies domain side effects once a payment row lands in the
// ledger: confirming event registrations and activating plan enrollments.
type Consumer struct {
	registrations registrationStore
	enrollments   enrollmentStore
	manager       idempotencyChecker
	logg          *logger.Logger
}

// NewConsumer builds the payment side-effects consumer.
func NewConsumer(registrations registrationStore, enrollments enrollmentStore, manager idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	if registrations == nil {
		return nil, fmt.Errorf("registrations repository required")
	}
	if enrollments == nil {
		return nil, fmt.Errorf("enrollments repository required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		registrations: registrations,
		enrollments:   enrollments,
		manager:       manager,
		logg:          logg,
	}, nil
}

// Process applies the side effect carried by a payment_recorded envelope.
func (c *Consumer) Process(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   envelope.EventID,
		"event_type": eventType,
	})

	if eventType != enums.EventPaymentRecorded {
		c.logg.Info(logCtx, "event not handled by side-effects consumer")
		return nil
	}

	if envelope.EventID == "" {
		return fmt.Errorf("event id missing")
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		return fmt.Errorf("parse event id: %w", err)
	}

	already, err := c.manager.CheckAndMarkProcessed(ctx, sideEffectsConsumerName, eventID)
	if err != nil {
		return fmt.Errorf("idempotency check: %w", err)
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return nil
	}

	var payload payloads.PaymentRecordedEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to decode payment payload", err)
		_ = c.manager.Delete(ctx, sideEffectsConsumerName, eventID)
		return err
	}

	if err := c.apply(logCtx, payload); err != nil {
		c.logg.Error(logCtx, "payment side effect failed", err)
		_ = c.manager.Delete(ctx, sideEffectsConsumerName, eventID)
		return err
	}
	return nil
}

func (c *Consumer) apply(ctx context.Context, payload payloads.PaymentRecordedEvent) error {
	switch payload.Purpose.Kind {
	case enums.PurposeKindEventRegistration:
		return c.confirmRegistration(ctx, payload)
	case enums.PurposeKindMembership:
		return c.activateEnrollment(ctx, payload)
	case enums.PurposeKindCreditBundle:
		// Bundles are platform charges granted at checkout completion and
		// never reach the ledger, so nothing should arrive here.
		c.logg.Warn(ctx, fmt.Sprintf("credit bundle payment %s has no side effect to apply", payload.TransactionID))
		return nil
	default:
		c.logg.Info(ctx, fmt.Sprintf("purpose %s not handled", payload.Purpose.Kind))
		return nil
	}
}

func (c *Consumer) confirmRegistration(ctx context.Context, payload payloads.PaymentRecordedEvent) error {
	reg := payload.Purpose.Registration
	if reg == nil {
		return fmt.Errorf("registration purpose missing variant")
	}
	confirmed, err := c.registrations.Confirm(ctx, reg.RegistrationID)
	if err != nil {
		return fmt.Errorf("confirm registration %s: %w", reg.RegistrationID, err)
	}
	if !confirmed {
		c.logg.Info(ctx, fmt.Sprintf("registration %s already confirmed or not pending", reg.RegistrationID))
		return nil
	}
	c.logg.Info(ctx, fmt.Sprintf("registration %s confirmed by payment %s", reg.RegistrationID, payload.TransactionID))
	return nil
}

func (c *Consumer) activateEnrollment(ctx context.Context, payload payloads.PaymentRecordedEvent) error {
	membership := payload.Purpose.Membership
	if membership == nil {
		return fmt.Errorf("membership purpose missing variant")
	}
	plan, err := c.enrollments.FindPlanByID(ctx, membership.PlanID)
	if err != nil {
		return fmt.Errorf("load plan %s: %w", membership.PlanID, err)
	}
	if plan == nil {
		return fmt.Errorf("plan %s not found for membership %s", membership.PlanID, membership.MembershipID)
	}

	start := time.Now().UTC()
	if payload.SettledAt != nil {
		start = payload.SettledAt.UTC()
	}
	expiry := planTermEnd(start, plan.Interval)

	activated, err := c.enrollments.ActivateEnrollment(ctx, membership.MembershipID, start, expiry)
	if err != nil {
		return fmt.Errorf("activate membership %s: %w", membership.MembershipID, err)
	}
	if !activated {
		c.logg.Info(ctx, fmt.Sprintf("membership %s already active or not pending", membership.MembershipID))
		return nil
	}
	c.logg.Info(ctx, fmt.Sprintf("membership %s activated through %s", membership.MembershipID, expiry.Format(time.RFC3339)))
	return nil
}

func planTermEnd(start time.Time, interval enums.BillingInterval) time.Time {
	switch interval {
	case enums.BillingIntervalAnnual:
		return start.AddDate(1, 0, 0)
	default:
		return start.AddDate(0, 1, 0)
	}
}

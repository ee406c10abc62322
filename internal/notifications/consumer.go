package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/clubline/clubline-backend/pkg/db/models"
	"github.com/clubline/clubline-backend/pkg/enums"
	"github.com/clubline/clubline-backend/pkg/logger"
	"github.com/clubline/clubline-backend/pkg/outbox"
	"github.com/clubline/clubline-backend/pkg/outbox/payloads"
)

const disputeAlertConsumer = "dispute-alerts"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer turns dispute lifecycle events into in-app alerts for club staff.
type Consumer struct {
	repo    repository
	manager idempotencyChecker
	logg    *logger.Logger
}

// NewConsumer builds the dispute alert consumer.
func NewConsumer(repo repository, manager idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{repo: repo, manager: manager, logg: logg}, nil
}

// Process writes the alert row for a dispute_alert_requested envelope.
func (c *Consumer) Process(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   envelope.EventID,
		"event_type": eventType,
	})

	if eventType != enums.EventDisputeAlertRequested {
		c.logg.Info(logCtx, "event not handled by dispute alert consumer")
		return nil
	}

	if envelope.EventID == "" {
		return fmt.Errorf("event id missing")
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		return fmt.Errorf("parse event id: %w", err)
	}

	already, err := c.manager.CheckAndMarkProcessed(ctx, disputeAlertConsumer, eventID)
	if err != nil {
		return fmt.Errorf("idempotency check: %w", err)
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return nil
	}

	var payload payloads.DisputeAlertRequestedEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to decode dispute alert payload", err)
		_ = c.manager.Delete(ctx, disputeAlertConsumer, eventID)
		return err
	}

	if err := c.createAlert(logCtx, payload); err != nil {
		c.logg.Error(logCtx, "dispute alert write failed", err)
		_ = c.manager.Delete(ctx, disputeAlertConsumer, eventID)
		return err
	}
	return nil
}

func (c *Consumer) createAlert(ctx context.Context, payload payloads.DisputeAlertRequestedEvent) error {
	if payload.ClubID == uuid.Nil {
		return fmt.Errorf("club id missing")
	}

	title, message := disputeAlertCopy(payload)
	link := fmt.Sprintf("/clubs/%s/transactions/%s", payload.ClubID, payload.ParentTransactionID)
	notification := &models.Notification{
		ClubID:  payload.ClubID,
		Type:    enums.NotificationTypeDisputeAlert,
		Title:   title,
		Message: message,
		Link:    stringPtr(link),
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(ctx, fmt.Sprintf("club alerted of dispute %s", payload.DisputeID))
	return nil
}

// disputeAlertCopy renders title and body from the dispute row's status.
// AmountCents is the ledger-signed hold: negative while funds are held, zero
// once a won dispute releases them.
func disputeAlertCopy(payload payloads.DisputeAlertRequestedEvent) (string, string) {
	amount := formatAmount(payload.AmountCents, payload.Currency)
	switch payload.Status {
	case enums.TransactionStatusDisputed:
		return "Payment disputed",
			fmt.Sprintf("A payment is being disputed (case %s). %s is held until the dispute resolves.", payload.DisputeID, amount)
	case enums.TransactionStatusCompleted:
		return "Dispute won",
			fmt.Sprintf("The dispute on one of your payments was resolved in your favor (case %s). The held funds have been released.", payload.DisputeID)
	case enums.TransactionStatusDisputeLost:
		return "Dispute lost",
			fmt.Sprintf("The dispute on one of your payments was lost (case %s). %s has been debited.", payload.DisputeID, amount)
	default:
		return "Dispute closed",
			fmt.Sprintf("The dispute on one of your payments closed without a chargeback (case %s).", payload.DisputeID)
	}
}

func formatAmount(cents int64, currency enums.Currency) string {
	if cents < 0 {
		cents = -cents
	}
	return fmt.Sprintf("%d.%02d %s", cents/100, cents%100, currency)
}

func stringPtr(value string) *string {
	return &value
}

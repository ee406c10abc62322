package receipts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clubline/clubline-backend/pkg/db/models"
	"github.com/clubline/clubline-backend/pkg/enums"
	"github.com/clubline/clubline-backend/pkg/logger"
	"github.com/clubline/clubline-backend/pkg/outbox"
	"github.com/clubline/clubline-backend/pkg/outbox/payloads"
)

const receiptConsumerName = "receipt-delivery"

type userDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type clubDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Club, error)
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer renders and delivers payment and refund receipts.
type Consumer struct {
	users   userDirectory
	clubs   clubDirectory
	sender  Sender
	manager idempotencyChecker
	logg    *logger.Logger
}

// NewConsumer builds the receipt consumer.
func NewConsumer(users userDirectory, clubs clubDirectory, sender Sender, manager idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	if users == nil {
		return nil, fmt.Errorf("user directory required")
	}
	if clubs == nil {
		return nil, fmt.Errorf("club directory required")
	}
	if sender == nil {
		return nil, fmt.Errorf("sender required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		users:   users,
		clubs:   clubs,
		sender:  sender,
		manager: manager,
		logg:    logg,
	}, nil
}

// Process renders and sends the receipt carried by the envelope.
func (c *Consumer) Process(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   envelope.EventID,
		"event_type": eventType,
	})

	switch eventType {
	case enums.EventReceiptRequested, enums.EventRefundReceiptRequested:
	default:
		c.logg.Info(logCtx, "event not handled by receipt consumer")
		return nil
	}

	if envelope.EventID == "" {
		return fmt.Errorf("event id missing")
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		return fmt.Errorf("parse event id: %w", err)
	}

	already, err := c.manager.CheckAndMarkProcessed(ctx, receiptConsumerName, eventID)
	if err != nil {
		return fmt.Errorf("idempotency check: %w", err)
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return nil
	}

	var receipt *Receipt
	switch eventType {
	case enums.EventReceiptRequested:
		receipt, err = c.paymentReceipt(logCtx, envelope.Data)
	case enums.EventRefundReceiptRequested:
		receipt, err = c.refundReceipt(logCtx, envelope.Data)
	}
	if err != nil {
		c.logg.Error(logCtx, "failed to render receipt", err)
		_ = c.manager.Delete(ctx, receiptConsumerName, eventID)
		return err
	}
	if receipt == nil {
		// Recipient no longer exists; redelivery cannot fix it.
		return nil
	}

	if err := c.sender.Send(logCtx, *receipt); err != nil {
		c.logg.Error(logCtx, "failed to deliver receipt", err)
		_ = c.manager.Delete(ctx, receiptConsumerName, eventID)
		return err
	}
	return nil
}

func (c *Consumer) paymentReceipt(ctx context.Context, data json.RawMessage) (*Receipt, error) {
	var payload payloads.ReceiptRequestedEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode receipt payload: %w", err)
	}

	rec, err := c.resolveRecipient(ctx, payload.PayerUserID, payload.PayerEmail, payload.PayerName)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	clubName, err := c.clubName(ctx, payload.ClubID)
	if err != nil {
		return nil, err
	}

	amount := formatAmount(payload.AmountCents, payload.Currency)
	subject := fmt.Sprintf("Payment received: %s to %s", amount, clubName)
	body := fmt.Sprintf(
		"Hi %s,\n\nYour %s of %s to %s settled on %s.\n\nTransaction: %s\n",
		rec.name,
		purposeLabel(payload.PurposeKind),
		amount,
		clubName,
		payload.SettledAt.UTC().Format("January 2, 2006"),
		payload.TransactionID,
	)

	return &Receipt{
		Kind:          ReceiptKindPayment,
		TransactionID: payload.TransactionID,
		RecipientID:   rec.userID,
		Email:         rec.email,
		ClubName:      clubName,
		AmountCents:   payload.AmountCents,
		Currency:      payload.Currency,
		Subject:       subject,
		Body:          body,
	}, nil
}

func (c *Consumer) refundReceipt(ctx context.Context, data json.RawMessage) (*Receipt, error) {
	var payload payloads.RefundReceiptRequestedEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode refund receipt payload: %w", err)
	}

	rec, err := c.resolveRecipient(ctx, payload.PayerUserID, payload.PayerEmail, payload.PayerName)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	clubName, err := c.clubName(ctx, payload.ClubID)
	if err != nil {
		return nil, err
	}

	amount := formatAmount(payload.AmountRefundedCents, payload.Currency)
	subject := fmt.Sprintf("Refund issued: %s from %s", amount, clubName)
	scope := "A partial refund"
	if payload.FullyRefunded {
		scope = "A full refund"
	}
	body := fmt.Sprintf(
		"Hi %s,\n\n%s of %s from %s is on its way back to your payment method.\n\nOriginal transaction: %s\n",
		rec.name,
		scope,
		amount,
		clubName,
		payload.ParentTransactionID,
	)

	return &Receipt{
		Kind:          ReceiptKindRefund,
		TransactionID: payload.RefundTransactionID,
		RecipientID:   rec.userID,
		Email:         rec.email,
		ClubName:      clubName,
		AmountCents:   payload.AmountRefundedCents,
		Currency:      payload.Currency,
		Subject:       subject,
		Body:          body,
	}, nil
}

// recipient is the resolved receipt addressee.
type recipient struct {
	userID uuid.UUID
	email  string
	name   string
}

// resolveRecipient prefers the processor's payer snapshot from the payload and
// fills gaps from the user record. A recipient with no reachable address is
// returned as nil without error so the event can be acknowledged.
func (c *Consumer) resolveRecipient(ctx context.Context, userID uuid.UUID, snapshotEmail, snapshotName string) (*recipient, error) {
	rec := &recipient{userID: userID, email: snapshotEmail, name: snapshotName}
	if rec.email == "" || rec.name == "" {
		user, err := c.users.FindByID(ctx, userID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("load recipient %s: %w", userID, err)
		}
		if user != nil {
			if rec.email == "" {
				rec.email = user.Email
			}
			if rec.name == "" {
				rec.name = user.FirstName
			}
		}
	}
	if rec.email == "" {
		c.logg.Warn(ctx, fmt.Sprintf("receipt recipient %s has no reachable address", userID))
		return nil, nil
	}
	if rec.name == "" {
		rec.name = "there"
	}
	return rec, nil
}

func (c *Consumer) clubName(ctx context.Context, clubID uuid.UUID) (string, error) {
	club, err := c.clubs.FindByID(ctx, clubID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("load club %s: %w", clubID, err)
	}
	if club == nil {
		return "your club", nil
	}
	return club.Name, nil
}

func purposeLabel(kind enums.PurposeKind) string {
	switch kind {
	case enums.PurposeKindEventRegistration:
		return "registration payment"
	case enums.PurposeKindMembership:
		return "membership payment"
	case enums.PurposeKindCreditBundle:
		return "credit purchase"
	default:
		return "payment"
	}
}

func formatAmount(cents int64, currency enums.Currency) string {
	if cents < 0 {
		cents = -cents
	}
	return fmt.Sprintf("%d.%02d %s", cents/100, cents%100, currency)
}

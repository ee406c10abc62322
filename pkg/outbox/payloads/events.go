package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/clubline/clubline-backend/pkg/enums"
	"github.com/clubline/clubline-backend/pkg/types"
)

// PaymentRecordedEvent is emitted in the same transaction as every ledger
// write so downstream consumers can apply purpose side effects exactly once.
type PaymentRecordedEvent struct {
	TransactionID   uuid.UUID               `json:"transaction_id"`
	ClubID          uuid.UUID               `json:"club_id"`
	PayerUserID     uuid.UUID               `json:"payer_user_id"`
	Kind            enums.TransactionKind   `json:"kind"`
	Status          enums.TransactionStatus `json:"status"`
	AmountCents     int64                   `json:"amount_cents"`
	Currency        enums.Currency          `json:"currency"`
	Purpose         types.PaymentPurpose    `json:"purpose"`
	PaymentIntentID string                  `json:"payment_intent_id,omitempty"`
	SettledAt       *time.Time              `json:"settled_at,omitempty"`
}

// ReceiptRequestedEvent asks the receipt worker to notify the payer after a
// payment reconciles. PayerEmail and PayerName carry the processor snapshot
// taken at payment time; consumers fall back to the user record when empty.
type ReceiptRequestedEvent struct {
	TransactionID uuid.UUID         `json:"transaction_id"`
	ClubID        uuid.UUID         `json:"club_id"`
	PayerUserID   uuid.UUID         `json:"payer_user_id"`
	PayerEmail    string            `json:"payer_email,omitempty"`
	PayerName     string            `json:"payer_name,omitempty"`
	AmountCents   int64             `json:"amount_cents"`
	Currency      enums.Currency    `json:"currency"`
	PurposeKind   enums.PurposeKind `json:"purpose_kind"`
	SettledAt     time.Time         `json:"settled_at"`
}

// RefundReceiptRequestedEvent asks the receipt worker to notify the payer that
// a refund settled. AmountRefundedCents carries the positive refunded amount;
// the ledger row itself stays negative.
type RefundReceiptRequestedEvent struct {
	RefundTransactionID uuid.UUID      `json:"refund_transaction_id"`
	ParentTransactionID uuid.UUID      `json:"parent_transaction_id"`
	ClubID              uuid.UUID      `json:"club_id"`
	PayerUserID         uuid.UUID      `json:"payer_user_id"`
	PayerEmail          string         `json:"payer_email,omitempty"`
	PayerName           string         `json:"payer_name,omitempty"`
	AmountRefundedCents int64          `json:"amount_refunded_cents"`
	Currency            enums.Currency `json:"currency"`
	FullyRefunded       bool           `json:"fully_refunded"`
}

// DisputeAlertRequestedEvent alerts club staff when a dispute opens or closes.
type DisputeAlertRequestedEvent struct {
	DisputeTransactionID uuid.UUID               `json:"dispute_transaction_id"`
	ParentTransactionID  uuid.UUID               `json:"parent_transaction_id"`
	ClubID               uuid.UUID               `json:"club_id"`
	DisputeID            string                  `json:"dispute_id"`
	Status               enums.TransactionStatus `json:"status"`
	AmountCents          int64                   `json:"amount_cents"`
	Currency             enums.Currency          `json:"currency"`
}

package transactions

import (
	"time"

	"github.com/google/uuid"

	"github.com/clubline/clubline-backend/pkg/db/models"
	"github.com/clubline/clubline-backend/pkg/enums"
	"github.com/clubline/clubline-backend/pkg/types"
)

// ListInput captures the filters supported by the club ledger listing.
type ListInput struct {
	Kind   string
	Status string
	Cursor string
	Limit  int
}

// TransactionDTO exposes a ledger row to API clients.
type TransactionDTO struct {
	ID                  uuid.UUID               `json:"id"`
	Kind                enums.TransactionKind   `json:"kind"`
	Status              enums.TransactionStatus `json:"status"`
	AmountCents         int64                   `json:"amount_cents"`
	Currency            enums.Currency          `json:"currency"`
	ClubID              uuid.UUID               `json:"club_id"`
	PayerUserID         uuid.UUID               `json:"payer_user_id"`
	PayerEmail          *string                 `json:"payer_email,omitempty"`
	PayerName           *string                 `json:"payer_name,omitempty"`
	PaymentIntentID     *string                 `json:"payment_intent_id,omitempty"`
	ChargeID            *string                 `json:"charge_id,omitempty"`
	RefundID            *string                 `json:"refund_id,omitempty"`
	DisputeID           *string                 `json:"dispute_id,omitempty"`
	ParentTransactionID *uuid.UUID              `json:"parent_transaction_id,omitempty"`
	PlatformFeeCents    int64                   `json:"platform_fee_cents"`
	TotalFeeCents       int64                   `json:"total_fee_cents"`
	NetCents            int64                   `json:"net_cents"`
	Purpose             *types.PaymentPurpose   `json:"purpose,omitempty"`
	Description         *string                 `json:"description,omitempty"`
	SettledAt           *time.Time              `json:"settled_at,omitempty"`
	CreatedAt           time.Time               `json:"created_at"`
	UpdatedAt           time.Time               `json:"updated_at"`
}

// TransactionDetail is the single-row view, including the refund and dispute
// rows hanging off a payment.
type TransactionDetail struct {
	TransactionDTO
	RefundedCents int64            `json:"refunded_cents"`
	Children      []TransactionDTO `json:"children,omitempty"`
}

// TransactionList wraps the paginated rows plus the next page cursor.
type TransactionList struct {
	Transactions []TransactionDTO `json:"transactions"`
	NextCursor   string           `json:"next_cursor,omitempty"`
}

func toDTO(row models.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:                  row.ID,
		Kind:                row.Kind,
		Status:              row.Status,
		AmountCents:         row.AmountCents,
		Currency:            row.Currency,
		ClubID:              row.ClubID,
		PayerUserID:         row.PayerUserID,
		PayerEmail:          row.PayerEmail,
		PayerName:           row.PayerName,
		PaymentIntentID:     row.PaymentIntentID,
		ChargeID:            row.ChargeID,
		RefundID:            row.RefundID,
		DisputeID:           row.DisputeID,
		ParentTransactionID: row.ParentTransactionID,
		PlatformFeeCents:    row.PlatformFeeCents,
		TotalFeeCents:       row.TotalFeeCents,
		NetCents:            row.NetCents,
		Description:         row.Description,
		SettledAt:           row.SettledAt,
		CreatedAt:           row.CreatedAt,
		UpdatedAt:           row.UpdatedAt,
	}
	if !row.Purpose.IsZero() {
		purpose := row.Purpose
		dto.Purpose = &purpose
	}
	return dto
}

package refunds

import (
	"time"

	"github.com/google/uuid"

	"github.com/clubline/clubline-backend/pkg/db/models"
	"github.com/clubline/clubline-backend/pkg/enums"
)

// CreateRefundInput captures an operator refund request. A nil AmountCents
// refunds everything still refundable on the payment.
type CreateRefundInput struct {
	AmountCents *int64 `json:"amount_cents,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// RefundDTO mirrors the ledger refund row. AmountCents is negative, matching
// how refund rows appear in transaction listings.
type RefundDTO struct {
	ID                  uuid.UUID               `json:"id"`
	ParentTransactionID uuid.UUID               `json:"parent_transaction_id"`
	RefundID            string                  `json:"refund_id"`
	Status              enums.TransactionStatus `json:"status"`
	AmountCents         int64                   `json:"amount_cents"`
	Currency            enums.Currency          `json:"currency"`
	Reason              *string                 `json:"reason,omitempty"`
	CreatedAt           time.Time               `json:"created_at"`
}

func toRefundDTO(row *models.Transaction) *RefundDTO {
	dto := &RefundDTO{
		ID:          row.ID,
		Status:      row.Status,
		AmountCents: row.AmountCents,
		Currency:    row.Currency,
		Reason:      row.Description,
		CreatedAt:   row.CreatedAt,
	}
	if row.ParentTransactionID != nil {
		dto.ParentTransactionID = *row.ParentTransactionID
	}
	if row.RefundID != nil {
		dto.RefundID = *row.RefundID
	}
	return dto
}

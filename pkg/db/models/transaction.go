package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/clubline/clubline-backend/pkg/enums"
	"github.com/clubline/clubline-backend/pkg/types"
)

// Transaction is a row in the financial ledger. Payment rows carry the gross
// charge and reconciled fees; refund and dispute rows carry negative amounts
// and link back to their parent payment. Fee fields are only ever written
// from processor settlement data. Payer contact fields are point-in-time
// snapshots from the processor, so receipts do not depend on the user row.
type Transaction struct {
	ID                   uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Kind                 enums.TransactionKind   `gorm:"column:kind;type:transaction_kind;not null"`
	Status               enums.TransactionStatus `gorm:"column:status;type:transaction_status;not null;default:'processing'"`
	AmountCents          int64                   `gorm:"column:amount_cents;not null"`
	Currency             enums.Currency          `gorm:"column:currency;type:currency_code;not null;default:'USD'"`
	ClubID               uuid.UUID               `gorm:"column:club_id;type:uuid;not null;index"`
	ConnectedAccountID   string                  `gorm:"column:connected_account_id;not null"`
	PayerUserID          uuid.UUID               `gorm:"column:payer_user_id;type:uuid;not null"`
	PayerEmail           *string                 `gorm:"column:payer_email"`
	PayerName            *string                 `gorm:"column:payer_name"`
	PaymentIntentID      *string                 `gorm:"column:payment_intent_id;index"`
	ChargeID             *string                 `gorm:"column:charge_id;index"`
	BalanceTransactionID *string                 `gorm:"column:balance_transaction_id"`
	RefundID             *string                 `gorm:"column:refund_id"`
	DisputeID            *string                 `gorm:"column:dispute_id"`
	ParentTransactionID  *uuid.UUID              `gorm:"column:parent_transaction_id;type:uuid;index"`
	PlatformFeeCents     int64                   `gorm:"column:platform_fee_cents;not null;default:0"`
	TotalFeeCents        int64                   `gorm:"column:total_fee_cents;not null;default:0"`
	NetCents             int64                   `gorm:"column:net_cents;not null;default:0"`
	Purpose              types.PaymentPurpose    `gorm:"column:purpose;type:jsonb"`
	Description          *string                 `gorm:"column:description"`
	SettledAt            *time.Time              `gorm:"column:settled_at"`
	CreatedAt            time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

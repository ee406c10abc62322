package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/clubline/clubline-backend/pkg/enums"
	"github.com/clubline/clubline-backend/pkg/types"
)

// CheckoutSession links a hosted processor checkout to the purpose it pays
// for and any recurring platform fee claimed for it.
type CheckoutSession struct {
	ID                  uuid.UUID                   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ClubID              uuid.UUID                   `gorm:"column:club_id;type:uuid;not null;index"`
	UserID              uuid.UUID                   `gorm:"column:user_id;type:uuid;not null"`
	Purpose             types.PaymentPurpose        `gorm:"column:purpose;type:jsonb;not null"`
	AmountCents         int64                       `gorm:"column:amount_cents;not null"`
	ApplicationFeeCents int64                       `gorm:"column:application_fee_cents;not null;default:0"`
	RecurringFeeCents   int64                       `gorm:"column:recurring_fee_cents;not null;default:0"`
	Currency            enums.Currency              `gorm:"column:currency;type:currency_code;not null;default:'USD'"`
	ProcessorSessionID  *string                     `gorm:"column:processor_session_id;uniqueIndex"`
	PaymentIntentID     *string                     `gorm:"column:payment_intent_id"`
	CheckoutURL         *string                     `gorm:"column:checkout_url"`
	Status              enums.CheckoutSessionStatus `gorm:"column:status;type:checkout_session_status;not null;default:'pending'"`
	FeeLockID           *uuid.UUID                  `gorm:"column:fee_lock_id;type:uuid"`
	ExpiresAt           *time.Time                  `gorm:"column:expires_at"`
	CreatedAt           time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}

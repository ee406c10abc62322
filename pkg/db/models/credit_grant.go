package models

import (
	"time"

	"github.com/google/uuid"
)

// CreditGrant records communication credits purchased by a club. Bundles are
// charged to the platform account and never enter the ledger; the unique
// session id keeps redelivered webhooks from granting twice.
type CreditGrant struct {
	ID                 uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ClubID             uuid.UUID `gorm:"column:club_id;type:uuid;not null;index"`
	Credits            int64     `gorm:"column:credits;not null"`
	AmountCents        int64     `gorm:"column:amount_cents;not null"`
	ProcessorSessionID string    `gorm:"column:processor_session_id;not null;uniqueIndex"`
	PaymentIntentID    *string   `gorm:"column:payment_intent_id"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime"`
}

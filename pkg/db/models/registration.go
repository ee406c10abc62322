package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/clubline/clubline-backend/pkg/enums"
)

// Registration records a user's spot in an event. Paid registrations stay
// pending until their payment is recorded in the ledger.
type Registration struct {
	ID          uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventID     uuid.UUID                `gorm:"column:event_id;type:uuid;not null;index"`
	ClubID      uuid.UUID                `gorm:"column:club_id;type:uuid;not null"`
	UserID      uuid.UUID                `gorm:"column:user_id;type:uuid;not null;index"`
	Status      enums.RegistrationStatus `gorm:"column:status;type:registration_status;not null;default:'pending'"`
	AmountCents int64                    `gorm:"column:amount_cents;not null;default:0"`
	Currency    enums.Currency           `gorm:"column:currency;type:currency_code;not null;default:'USD'"`
	ConfirmedAt *time.Time               `gorm:"column:confirmed_at"`
	CanceledAt  *time.Time               `gorm:"column:canceled_at"`
	CreatedAt   time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

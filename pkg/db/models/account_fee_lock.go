package models

import (
	"time"

	"github.com/google/uuid"
)

// AccountFeeLock serializes the recurring platform fee to at most one charge
// per club per billing period. The (club_id, period_key) pair is unique; the
// first checkout of a period claims the lock and carries the fee.
type AccountFeeLock struct {
	ID                uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ClubID            uuid.UUID  `gorm:"column:club_id;type:uuid;not null;uniqueIndex:ux_account_fee_locks_period"`
	PeriodKey         string     `gorm:"column:period_key;not null;uniqueIndex:ux_account_fee_locks_period"`
	ShouldCharge      bool       `gorm:"column:should_charge;not null;default:true"`
	FeeCents          int64      `gorm:"column:fee_cents;not null"`
	CheckoutSessionID *uuid.UUID `gorm:"column:checkout_session_id;type:uuid"`
	ReleasedAt        *time.Time `gorm:"column:released_at"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime"`
}

package models

import (
	"time"

	"github.com/lib/pq"

	"github.com/google/uuid"

	"github.com/clubline/clubline-backend/pkg/enums"
)

// MembershipPlan captures a club's paid membership offering.
type MembershipPlan struct {
	ID         uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ClubID     uuid.UUID             `gorm:"column:club_id;type:uuid;not null;index"`
	Name       string                `gorm:"column:name;not null"`
	Interval   enums.BillingInterval `gorm:"column:interval;type:billing_interval;not null"`
	PriceCents int64                 `gorm:"column:price_cents;not null"`
	Currency   enums.Currency        `gorm:"column:currency;type:currency_code;not null;default:'USD'"`
	Features   pq.StringArray        `gorm:"column:features;type:text[];default:ARRAY[]::text[]"`
	Active     bool                  `gorm:"column:active;not null;default:true"`
	CreatedAt  time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/clubline/clubline-backend/pkg/enums"
)

// Event is a club event, league session, or tournament that members register
// and pay for.
type Event struct {
	ID          uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ClubID      uuid.UUID      `gorm:"column:club_id;type:uuid;not null;index"`
	Name        string         `gorm:"column:name;not null"`
	Description *string        `gorm:"column:description"`
	StartsAt    time.Time      `gorm:"column:starts_at;not null"`
	EndsAt      *time.Time     `gorm:"column:ends_at"`
	Capacity    int            `gorm:"column:capacity;not null;default:0"`
	FeeCents    int64          `gorm:"column:fee_cents;not null;default:0"`
	Currency    enums.Currency `gorm:"column:currency;type:currency_code;not null;default:'USD'"`
	MembersOnly bool           `gorm:"column:members_only;not null;default:false"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/clubline/clubline-backend/pkg/enums"
)

// Membership is a user's paid enrollment in a club plan. It stays pending
// until the payment lands in the ledger, then activates.
type Membership struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ClubID    uuid.UUID              `gorm:"column:club_id;type:uuid;not null;index"`
	UserID    uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index"`
	PlanID    uuid.UUID              `gorm:"column:plan_id;type:uuid;not null"`
	Status    enums.MembershipStatus `gorm:"column:status;type:membership_status;not null;default:'pending'"`
	StartsAt  *time.Time             `gorm:"column:starts_at"`
	ExpiresAt *time.Time             `gorm:"column:expires_at"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

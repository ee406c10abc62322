package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/clubline/clubline-backend/pkg/enums"
)

// ClubMembership links a user with a club and captures their role/status.
type ClubMembership struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ClubID          uuid.UUID              `gorm:"column:club_id;type:uuid;not null;uniqueIndex:ux_club_memberships_club_user"`
	UserID          uuid.UUID              `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_club_memberships_club_user"`
	Role            enums.MemberRole       `gorm:"column:role;type:member_role;not null"`
	Status          enums.MembershipStatus `gorm:"column:status;type:membership_status;not null"`
	InvitedByUserID *uuid.UUID             `gorm:"column:invited_by_user_id;type:uuid"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

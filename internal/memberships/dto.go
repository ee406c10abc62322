package memberships

import (
	"time"

	"github.com/google/uuid"

	"github.com/clubline/clubline-backend/pkg/db/models"
	"github.com/clubline/clubline-backend/pkg/enums"
)

// MembershipDTO is the transport shape for a raw club membership record.
type MembershipDTO struct {
	ID              uuid.UUID              `json:"id"`
	ClubID          uuid.UUID              `json:"club_id"`
	UserID          uuid.UUID              `json:"user_id"`
	Role            enums.MemberRole       `json:"role"`
	Status          enums.MembershipStatus `json:"status"`
	InvitedByUserID *uuid.UUID             `json:"invited_by_user_id,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// MembershipWithClub includes basic club metadata + membership info.
type MembershipWithClub struct {
	MembershipID    uuid.UUID              `json:"membership_id"`
	ClubID          uuid.UUID              `json:"club_id"`
	UserID          uuid.UUID              `json:"user_id"`
	ClubName        string                 `json:"club_name"`
	ClubSlug        string                 `json:"club_slug"`
	Role            enums.MemberRole       `json:"role"`
	Status          enums.MembershipStatus `json:"status"`
	InvitedByUserID *uuid.UUID             `json:"invited_by_user_id,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// ClubUserDTO mixes membership metadata with the associated user profile for club admins.
type ClubUserDTO struct {
	MembershipID uuid.UUID              `json:"membership_id"`
	ClubID       uuid.UUID              `json:"club_id"`
	UserID       uuid.UUID              `json:"user_id"`
	Email        string                 `json:"email"`
	FirstName    string                 `json:"first_name"`
	LastName     string                 `json:"last_name"`
	Role         enums.MemberRole       `json:"role"`
	Status       enums.MembershipStatus `json:"membership_status"`
	CreatedAt    time.Time              `json:"created_at"`
	LastLoginAt  *time.Time             `json:"last_login_at,omitempty"`
}

// PlanMembershipDTO is the transport shape for a paid plan enrollment.
type PlanMembershipDTO struct {
	ID        uuid.UUID              `json:"id"`
	ClubID    uuid.UUID              `json:"club_id"`
	UserID    uuid.UUID              `json:"user_id"`
	PlanID    uuid.UUID              `json:"plan_id"`
	Status    enums.MembershipStatus `json:"status"`
	StartsAt  *time.Time             `json:"starts_at,omitempty"`
	ExpiresAt *time.Time             `json:"expires_at,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// ToDTO converts a model to the external DTO.
func ToDTO(m *models.ClubMembership) *MembershipDTO {
	if m == nil {
		return nil
	}

	return &MembershipDTO{
		ID:              m.ID,
		ClubID:          m.ClubID,
		UserID:          m.UserID,
		Role:            m.Role,
		Status:          m.Status,
		InvitedByUserID: copyUUIDPointer(m.InvitedByUserID),
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

// ToPlanDTO converts a paid enrollment to its external DTO.
func ToPlanDTO(m *models.Membership) *PlanMembershipDTO {
	if m == nil {
		return nil
	}
	return &PlanMembershipDTO{
		ID:        m.ID,
		ClubID:    m.ClubID,
		UserID:    m.UserID,
		PlanID:    m.PlanID,
		Status:    m.Status,
		StartsAt:  m.StartsAt,
		ExpiresAt: m.ExpiresAt,
		CreatedAt: m.CreatedAt,
	}
}

func copyUUIDPointer(src *uuid.UUID) *uuid.UUID {
	if src == nil {
		return nil
	}
	dst := *src
	return &dst
}

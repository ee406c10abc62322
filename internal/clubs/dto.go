package clubs

import (
	"time"

	"github.com/google/uuid"

	"github.com/clubline/clubline-backend/pkg/db/models"
	"github.com/clubline/clubline-backend/pkg/enums"
	"github.com/clubline/clubline-backend/pkg/types"
)

// ClubDTO exposes safe tenant data in API responses.
type ClubDTO struct {
	ID                 uuid.UUID           `json:"id"`
	Name               string              `json:"name"`
	Slug               string              `json:"slug"`
	Description        *string             `json:"description,omitempty"`
	Email              *string             `json:"email,omitempty"`
	Phone              *string             `json:"phone,omitempty"`
	VenueAddress       *types.Address      `json:"venue_address,omitempty"`
	AccountStatus      enums.AccountStatus `json:"account_status"`
	PayoutsConnected   bool                `json:"payouts_connected"`
	PlatformFeeBps     *int                `json:"platform_fee_bps,omitempty"`
	CreditBalance      int64               `json:"credit_balance"`
	OwnerID            uuid.UUID           `json:"owner_id"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// CreateClubDTO holds creation-time data for a new club.
type CreateClubDTO struct {
	Name         string
	Slug         string
	Description  *string
	Email        *string
	Phone        *string
	VenueAddress *types.Address
	OwnerID      uuid.UUID
}

// MemberDTO exposes a club membership row.
type MemberDTO struct {
	ID        uuid.UUID              `json:"id"`
	ClubID    uuid.UUID              `json:"club_id"`
	UserID    uuid.UUID              `json:"user_id"`
	Role      enums.MemberRole       `json:"role"`
	Status    enums.MembershipStatus `json:"status"`
	CreatedAt time.Time              `json:"created_at"`
}

// FromModel maps the persisted club into a DTO. The connected account id
// itself stays server-side; clients only learn whether payouts are wired.
func FromModel(m *models.Club) *ClubDTO {
	if m == nil {
		return nil
	}
	return &ClubDTO{
		ID:               m.ID,
		Name:             m.Name,
		Slug:             m.Slug,
		Description:      m.Description,
		Email:            m.Email,
		Phone:            m.Phone,
		VenueAddress:     m.VenueAddress,
		AccountStatus:    m.AccountStatus,
		PayoutsConnected: m.ConnectedAccountID != nil && *m.ConnectedAccountID != "",
		PlatformFeeBps:   m.PlatformFeeBps,
		CreditBalance:    m.CreditBalance,
		OwnerID:          m.OwnerID,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

// ToModel prepares the GORM model from creation DTO, supplying defaults.
func (c CreateClubDTO) ToModel() *models.Club {
	return &models.Club{
		Name:          c.Name,
		Slug:          c.Slug,
		Description:   c.Description,
		Email:         c.Email,
		Phone:         c.Phone,
		VenueAddress:  c.VenueAddress,
		AccountStatus: enums.AccountStatusPending,
		OwnerID:       c.OwnerID,
	}
}

func memberFromModel(m models.ClubMembership) MemberDTO {
	return MemberDTO{
		ID:        m.ID,
		ClubID:    m.ClubID,
		UserID:    m.UserID,
		Role:      m.Role,
		Status:    m.Status,
		CreatedAt: m.CreatedAt,
	}
}

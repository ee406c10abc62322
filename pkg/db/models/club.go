package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/clubline/clubline-backend/pkg/enums"
	"github.com/clubline/clubline-backend/pkg/types"
)

// Club represents the canonical tenant model: a club, league, or tournament
// organizer that collects payments through a connected payout account.
type Club struct {
	ID                      uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name                    string              `gorm:"column:name;not null"`
	Slug                    string              `gorm:"column:slug;not null;uniqueIndex"`
	Description             *string             `gorm:"column:description"`
	Email                   *string             `gorm:"column:email"`
	Phone                   *string             `gorm:"column:phone"`
	VenueAddress            *types.Address      `gorm:"column:venue_address;type:address_t"`
	ConnectedAccountID      *string             `gorm:"column:connected_account_id;uniqueIndex"`
	AccountStatus           enums.AccountStatus `gorm:"column:account_status;type:account_status;not null;default:'pending'"`
	PlatformFeeBps          *int                `gorm:"column:platform_fee_bps"`
	CreditBalance           int64               `gorm:"column:credit_balance;not null;default:0"`
	DefaultMembershipPlanID *uuid.UUID          `gorm:"column:default_membership_plan_id;type:uuid"`
	OwnerID                 uuid.UUID           `gorm:"column:owner_id;type:uuid;not null"`
	CreatedAt               time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

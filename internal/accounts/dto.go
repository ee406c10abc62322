package accounts

import (
	"time"

	"github.com/google/uuid"

	"github.com/clubline/clubline-backend/pkg/enums"
)

// AccountStatusDTO describes a club's payout-account onboarding state.
type AccountStatusDTO struct {
	ClubID             uuid.UUID           `json:"club_id"`
	ConnectedAccountID *string             `json:"connected_account_id,omitempty"`
	Status             enums.AccountStatus `json:"status"`
	ChargesEnabled     bool                `json:"charges_enabled"`
	PayoutsEnabled     bool                `json:"payouts_enabled"`
	DetailsSubmitted   bool                `json:"details_submitted"`
	RequirementsDue    []string            `json:"requirements_due,omitempty"`
	CheckedAt          time.Time           `json:"checked_at"`
}

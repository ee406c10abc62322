package checkout

import (
	"time"

	"github.com/google/uuid"

	"github.com/clubline/clubline-backend/pkg/db/models"
	"github.com/clubline/clubline-backend/pkg/enums"
	"github.com/clubline/clubline-backend/pkg/types"
)

// CreateSessionInput is the payload for opening a hosted checkout.
type CreateSessionInput struct {
	Purpose     types.PaymentPurpose `json:"purpose"`
	AmountCents int64                `json:"amount_cents"`
}

// SessionDTO is the API-facing view of a checkout session.
type SessionDTO struct {
	ID                  uuid.UUID                   `json:"id"`
	ClubID              uuid.UUID                   `json:"club_id"`
	Purpose             types.PaymentPurpose        `json:"purpose"`
	AmountCents         int64                       `json:"amount_cents"`
	ApplicationFeeCents int64                       `json:"application_fee_cents"`
	RecurringFeeCents   int64                       `json:"recurring_fee_cents"`
	Currency            enums.Currency              `json:"currency"`
	Status              enums.CheckoutSessionStatus `json:"status"`
	CheckoutURL         string                      `json:"checkout_url,omitempty"`
	ExpiresAt           *time.Time                  `json:"expires_at,omitempty"`
	CreatedAt           time.Time                   `json:"created_at"`
}

func toSessionDTO(session *models.CheckoutSession) *SessionDTO {
	if session == nil {
		return nil
	}
	dto := &SessionDTO{
		ID:                  session.ID,
		ClubID:              session.ClubID,
		Purpose:             session.Purpose,
		AmountCents:         session.AmountCents,
		ApplicationFeeCents: session.ApplicationFeeCents,
		RecurringFeeCents:   session.RecurringFeeCents,
		Currency:            session.Currency,
		Status:              session.Status,
		ExpiresAt:           session.ExpiresAt,
		CreatedAt:           session.CreatedAt,
	}
	if session.CheckoutURL != nil {
		dto.CheckoutURL = *session.CheckoutURL
	}
	return dto
}

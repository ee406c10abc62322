package paymentevents

import (
	"time"

	"github.com/clubline/clubline-backend/pkg/db/models"
	"github.com/clubline/clubline-backend/pkg/enums"
)

// EventDTO is the operator-facing view of a webhook claim row.
type EventDTO struct {
	EventID     string                   `json:"event_id"`
	EventType   string                   `json:"event_type"`
	Status      enums.PaymentEventStatus `json:"status"`
	Error       *string                  `json:"error,omitempty"`
	ClaimedAt   time.Time                `json:"claimed_at"`
	CompletedAt *time.Time               `json:"completed_at,omitempty"`
	FailedAt    *time.Time               `json:"failed_at,omitempty"`
}

func toEventDTO(event *models.PaymentEvent) *EventDTO {
	if event == nil {
		return nil
	}
	return &EventDTO{
		EventID:     event.EventID,
		EventType:   event.EventType,
		Status:      event.Status,
		Error:       event.Error,
		ClaimedAt:   event.ClaimedAt,
		CompletedAt: event.CompletedAt,
		FailedAt:    event.FailedAt,
	}
}

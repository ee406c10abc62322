package models

import (
	"time"

	"github.com/clubline/clubline-backend/pkg/enums"
)

// PaymentEvent is the dedup marker for an inbound processor webhook. The row
// is created by an atomic claim and is permanent: a given event id is never
// deleted or reopened, so redeliveries always see the claim.
type PaymentEvent struct {
	EventID     string                   `gorm:"column:event_id;primaryKey"`
	EventType   string                   `gorm:"column:event_type;not null"`
	Status      enums.PaymentEventStatus `gorm:"column:status;type:payment_event_status;not null;default:'processing'"`
	Error       *string                  `gorm:"column:error"`
	ClaimedAt   time.Time                `gorm:"column:claimed_at;autoCreateTime"`
	CompletedAt *time.Time               `gorm:"column:completed_at"`
	FailedAt    *time.Time               `gorm:"column:failed_at"`
}

// TableName pins the table to payment_events.
func (PaymentEvent) TableName() string {
	return "payment_events"
}

// IsTerminal reports whether the claim reached completed or failed. Terminal
// claims are permanent and are never reclaimed.
func (p PaymentEvent) IsTerminal() bool {
	return p.Status == enums.PaymentEventStatusCompleted || p.Status == enums.PaymentEventStatusFailed
}

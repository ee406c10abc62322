package enums

import "fmt"

// PaymentEventStatus tracks a claimed webhook event. Claims are permanent:
// a record never leaves a terminal status and is never deleted.
type PaymentEventStatus string

const (
	PaymentEventStatusProcessing PaymentEventStatus = "processing"
	PaymentEventStatusCompleted  PaymentEventStatus = "completed"
	PaymentEventStatusFailed     PaymentEventStatus = "failed"
)

var validPaymentEventStatuses = []PaymentEventStatus{
	PaymentEventStatusProcessing,
	PaymentEventStatusCompleted,
	PaymentEventStatusFailed,
}

// String implements fmt.Stringer.
func (p PaymentEventStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is known.
func (p PaymentEventStatus) IsValid() bool {
	for _, candidate := range validPaymentEventStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentEventStatus converts raw input into a PaymentEventStatus.
func ParsePaymentEventStatus(value string) (PaymentEventStatus, error) {
	for _, candidate := range validPaymentEventStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment event status %q", value)
}

package enums

import "fmt"

// AccountStatus mirrors the onboarding state of a club's connected payout
// account at the payment processor.
type AccountStatus string

const (
	AccountStatusPending    AccountStatus = "pending"
	AccountStatusActive     AccountStatus = "active"
	AccountStatusRestricted AccountStatus = "restricted"
	AccountStatusDisabled   AccountStatus = "disabled"
)

var validAccountStatuses = []AccountStatus{
	AccountStatusPending,
	AccountStatusActive,
	AccountStatusRestricted,
	AccountStatusDisabled,
}

// String implements fmt.Stringer.
func (a AccountStatus) String() string {
	return string(a)
}

// IsValid reports whether the value is known.
func (a AccountStatus) IsValid() bool {
	for _, candidate := range validAccountStatuses {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAccountStatus converts raw input into an AccountStatus.
func ParseAccountStatus(value string) (AccountStatus, error) {
	for _, candidate := range validAccountStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid account status %q", value)
}

package enums

import "fmt"

// PurposeKind identifies what a checkout payment was for.
type PurposeKind string

const (
	PurposeKindEventRegistration PurposeKind = "event_registration"
	PurposeKindMembership        PurposeKind = "membership"
	PurposeKindCreditBundle      PurposeKind = "credit_bundle"
)

var validPurposeKinds = []PurposeKind{
	PurposeKindEventRegistration,
	PurposeKindMembership,
	PurposeKindCreditBundle,
}

// String implements fmt.Stringer.
func (p PurposeKind) String() string {
	return string(p)
}

// IsValid reports whether the value is known.
func (p PurposeKind) IsValid() bool {
	for _, candidate := range validPurposeKinds {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePurposeKind converts raw input into a PurposeKind.
func ParsePurposeKind(value string) (PurposeKind, error) {
	for _, candidate := range validPurposeKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid purpose kind %q", value)
}

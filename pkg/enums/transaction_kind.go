package enums

import "fmt"

// TransactionKind classifies a ledger row by the money movement it records.
type TransactionKind string

const (
	TransactionKindPayment TransactionKind = "payment"
	TransactionKindRefund  TransactionKind = "refund"
	TransactionKindDispute TransactionKind = "dispute"
)

var validTransactionKinds = []TransactionKind{
	TransactionKindPayment,
	TransactionKindRefund,
	TransactionKindDispute,
}

// String implements fmt.Stringer.
func (t TransactionKind) String() string {
	return string(t)
}

// IsValid reports whether the value is known.
func (t TransactionKind) IsValid() bool {
	for _, candidate := range validTransactionKinds {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTransactionKind converts raw input into a TransactionKind.
func ParseTransactionKind(value string) (TransactionKind, error) {
	for _, candidate := range validTransactionKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction kind %q", value)
}

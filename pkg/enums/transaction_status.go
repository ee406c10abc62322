package enums

import "fmt"

// TransactionStatus tracks a ledger row through its lifecycle. Payment rows
// move processing -> completed and may later become refunded,
// partially_refunded, disputed, or dispute_lost. Refund rows move
// processing -> completed. Dispute rows move open -> won, lost, or closed.
type TransactionStatus string

const (
	TransactionStatusProcessing        TransactionStatus = "processing"
	TransactionStatusCompleted         TransactionStatus = "completed"
	TransactionStatusFailed            TransactionStatus = "failed"
	TransactionStatusRefunded          TransactionStatus = "refunded"
	TransactionStatusPartiallyRefunded TransactionStatus = "partially_refunded"
	TransactionStatusDisputed          TransactionStatus = "disputed"
	TransactionStatusDisputeLost       TransactionStatus = "dispute_lost"
	TransactionStatusOpen              TransactionStatus = "open"
	TransactionStatusWon               TransactionStatus = "won"
	TransactionStatusLost              TransactionStatus = "lost"
	TransactionStatusClosed            TransactionStatus = "closed"
)

var validTransactionStatuses = []TransactionStatus{
	TransactionStatusProcessing,
	TransactionStatusCompleted,
	TransactionStatusFailed,
	TransactionStatusRefunded,
	TransactionStatusPartiallyRefunded,
	TransactionStatusDisputed,
	TransactionStatusDisputeLost,
	TransactionStatusOpen,
	TransactionStatusWon,
	TransactionStatusLost,
	TransactionStatusClosed,
}

// String implements fmt.Stringer.
func (t TransactionStatus) String() string {
	return string(t)
}

// IsValid reports whether the value is known.
func (t TransactionStatus) IsValid() bool {
	for _, candidate := range validTransactionStatuses {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTransactionStatus converts raw input into a TransactionStatus.
func ParseTransactionStatus(value string) (TransactionStatus, error) {
	for _, candidate := range validTransactionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction status %q", value)
}

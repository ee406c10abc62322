package receipts

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/clubline/clubline-backend/pkg/enums"
	"github.com/clubline/clubline-backend/pkg/logger"
)

// ReceiptKind distinguishes payment confirmations from refund notices.
type ReceiptKind string

const (
	ReceiptKindPayment ReceiptKind = "payment"
	ReceiptKindRefund  ReceiptKind = "refund"
)

// Receipt is a rendered receipt ready for delivery.
type Receipt struct {
	Kind          ReceiptKind
	TransactionID uuid.UUID
	RecipientID   uuid.UUID
	Email         string
	ClubName      string
	AmountCents   int64
	Currency      enums.Currency
	Subject       string
	Body          string
}

// Sender delivers a rendered receipt. Transport (SMTP, provider API) is wired
// at the worker boundary.
type Sender interface {
	Send(ctx context.Context, receipt Receipt) error
}

// LogSender records delivery through the structured log. It is the default
// sender until a mail provider is configured.
type LogSender struct {
	logg *logger.Logger
}

// NewLogSender builds a log-backed sender.
func NewLogSender(logg *logger.Logger) (*LogSender, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &LogSender{logg: logg}, nil
}

// Send logs the receipt as delivered.
func (s *LogSender) Send(ctx context.Context, receipt Receipt) error {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"receipt_kind":   string(receipt.Kind),
		"transaction_id": receipt.TransactionID,
		"recipient_id":   receipt.RecipientID,
		"amount_cents":   receipt.AmountCents,
		"currency":       receipt.Currency,
	})
	s.logg.Info(logCtx, fmt.Sprintf("receipt delivered: %s", receipt.Subject))
	return nil
}

package refunds

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/clubline/clubline-backend/internal/transactions"
	dbpkg "github.com/clubline/clubline-backend/pkg/db"
	"github.com/clubline/clubline-backend/pkg/db/models"
	"github.com/clubline/clubline-backend/pkg/enums"
	pkgerrors "github.com/clubline/clubline-backend/pkg/errors"
	"github.com/clubline/clubline-backend/pkg/logger"
)

// refundUniqueConstraint guards the one-row-per-processor-refund invariant when
// the confirmation webhook lands before the request row commits.
const refundUniqueConstraint = "ux_transactions_refund_id"

// Service issues operator refunds against settled payments.
type Service interface {
	Create(ctx context.Context, clubID, transactionID uuid.UUID, input CreateRefundInput) (*RefundDTO, error)
}

// ServiceParams bundles the refund service dependencies.
type ServiceParams struct {
	Ledger       transactions.Repository
	StripeClient StripeRefundClient
	Logger       *logger.Logger
}

type service struct {
	ledger transactions.Repository
	stripe StripeRefundClient
	logg   *logger.Logger
}

// NewService validates dependencies and builds the refund service.
func NewService(params ServiceParams) (Service, error) {
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger repo required")
	}
	if params.StripeClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	return &service{
		ledger: params.Ledger,
		stripe: params.StripeClient,
		logg:   params.Logger,
	}, nil
}

// Create validates the request, issues the processor refund, and records a
// processing refund row. The row is confirmed later by the charge.refunded
// webhook; until then the parent payment's status is untouched.
func (s *service) Create(ctx context.Context, clubID, transactionID uuid.UUID, input CreateRefundInput) (*RefundDTO, error) {
	parent, err := s.ledger.FindByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if parent == nil || parent.ClubID != clubID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
	}
	if parent.Kind != enums.TransactionKindPayment {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "only payments can be refunded")
	}
	if parent.Status != enums.TransactionStatusCompleted && parent.Status != enums.TransactionStatusPartiallyRefunded {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment is not refundable").WithDetails(map[string]any{
			"status": parent.Status,
		})
	}
	if parent.ChargeID == nil || *parent.ChargeID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment has no settled charge to refund")
	}

	remaining, err := s.remainingRefundable(ctx, parent)
	if err != nil {
		return nil, err
	}
	if remaining <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment is already fully refunded or pending full refund")
	}
	amount := remaining
	if input.AmountCents != nil {
		amount = *input.AmountCents
	}
	if amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}
	if amount > remaining {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount exceeds refundable balance").WithDetails(map[string]any{
			"requested_cents": amount,
			"remaining_cents": remaining,
		})
	}

	params := &stripe.RefundParams{
		Charge: stripe.String(*parent.ChargeID),
		Amount: stripe.Int64(amount),
	}
	if reason := stripeRefundReason(input.Reason); reason != "" {
		params.Reason = stripe.String(reason)
	}
	params.AddMetadata("transaction_id", parent.ID.String())
	params.AddMetadata("club_id", parent.ClubID.String())

	rf, err := s.stripe.CreateRefund(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refund request failed")
	}

	refundID := rf.ID
	row := &models.Transaction{
		ID:                  uuid.New(),
		Kind:                enums.TransactionKindRefund,
		Status:              enums.TransactionStatusProcessing,
		AmountCents:         -amount,
		Currency:            parent.Currency,
		ClubID:              parent.ClubID,
		ConnectedAccountID:  parent.ConnectedAccountID,
		PayerUserID:         parent.PayerUserID,
		PaymentIntentID:     parent.PaymentIntentID,
		ChargeID:            parent.ChargeID,
		RefundID:            &refundID,
		ParentTransactionID: &parent.ID,
	}
	if reason := strings.TrimSpace(input.Reason); reason != "" {
		row.Description = &reason
	}
	if err := s.ledger.Create(ctx, row); err != nil {
		if dbpkg.IsUniqueViolation(err, refundUniqueConstraint) {
			// Confirmation webhook won the race and already recorded this refund.
			existing, findErr := s.ledger.FindRefundByRefundID(ctx, refundID)
			if findErr != nil {
				return nil, findErr
			}
			if existing != nil {
				return toRefundDTO(existing), nil
			}
		}
		return nil, err
	}
	return toRefundDTO(row), nil
}

// remainingRefundable is gross minus confirmed refunds minus refund requests
// still awaiting confirmation. Stripe rejects over-refunds at the charge level;
// this is the fast local guard.
func (s *service) remainingRefundable(ctx context.Context, parent *models.Transaction) (int64, error) {
	completed, err := s.ledger.SumCompletedRefunds(ctx, parent.ID)
	if err != nil {
		return 0, err
	}
	children, err := s.ledger.ListByParentID(ctx, parent.ID)
	if err != nil {
		return 0, err
	}
	var pending int64
	for _, child := range children {
		if child.Kind == enums.TransactionKindRefund && child.Status == enums.TransactionStatusProcessing {
			pending += -child.AmountCents
		}
	}
	return parent.AmountCents - completed - pending, nil
}

func stripeRefundReason(raw string) string {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case string(stripe.RefundReasonDuplicate):
		return string(stripe.RefundReasonDuplicate)
	case string(stripe.RefundReasonFraudulent):
		return string(stripe.RefundReasonFraudulent)
	case string(stripe.RefundReasonRequestedByCustomer):
		return string(stripe.RefundReasonRequestedByCustomer)
	default:
		return ""
	}
}

package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/clubline/clubline-backend/internal/checkout"
	"github.com/clubline/clubline-backend/internal/transactions"
	dbpkg "github.com/clubline/clubline-backend/pkg/db"
	"github.com/clubline/clubline-backend/pkg/db/models"
	"github.com/clubline/clubline-backend/pkg/enums"
	pkgerrors "github.com/clubline/clubline-backend/pkg/errors"
	"github.com/clubline/clubline-backend/pkg/logger"
	"github.com/clubline/clubline-backend/pkg/metrics"
	"github.com/clubline/clubline-backend/pkg/outbox"
	"github.com/clubline/clubline-backend/pkg/outbox/payloads"
	"github.com/clubline/clubline-backend/pkg/types"
)

// paymentIntentUniqueConstraint backs the one-payment-row-per-intent invariant
// when two deliveries race past the existence check. The name must match the
// index in the transactions migration exactly.
const paymentIntentUniqueConstraint = "ux_transactions_payment_intent_payment"

type clubStore interface {
	FindByIDWithTx(tx *gorm.DB, id uuid.UUID) (*models.Club, error)
	AddCreditsWithTx(tx *gorm.DB, clubID uuid.UUID, credits int64) error
}

type txRunner interface {
	WithSerializableTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type ServiceParams struct {
	Ledger            transactions.Repository
	CheckoutRepo      checkout.Repository
	Clubs             clubStore
	StripeClient      StripePaymentClient
	TransactionRunner txRunner
	Outbox            outboxPublisher
	Logger            *logger.Logger
	Metrics           *metrics.PaymentMetrics
}

// Service turns claimed processor events into ledger writes. Every handler is
// safe to re-run: redeliveries that slip past the event claim fall through the
// secondary keys (payment intent, refund id, dispute id) as no-ops.
type Service struct {
	ledger       transactions.Repository
	checkoutRepo checkout.Repository
	clubs        clubStore
	stripe       StripePaymentClient
	txRunner     txRunner
	outbox       outboxPublisher
	logg         *logger.Logger
	metrics      *metrics.PaymentMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger repo required")
	}
	if params.CheckoutRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "checkout repo required")
	}
	if params.Clubs == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "club store required")
	}
	if params.StripeClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox publisher required")
	}
	return &Service{
		ledger:       params.Ledger,
		checkoutRepo: params.CheckoutRepo,
		clubs:        params.Clubs,
		stripe:       params.StripeClient,
		txRunner:     params.TransactionRunner,
		outbox:       params.Outbox,
		logg:         params.Logger,
		metrics:      params.Metrics,
	}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		return s.handleCheckoutCompleted(ctx, event)
	case stripe.EventTypeChargeUpdated:
		return s.handleChargeUpdated(ctx, event)
	case stripe.EventTypeChargeRefunded:
		return s.handleChargeRefunded(ctx, event)
	case stripe.EventTypeChargeDisputeCreated:
		return s.handleDisputeCreated(ctx, event)
	case stripe.EventTypeChargeDisputeClosed:
		return s.handleDisputeClosed(ctx, event)
	default:
		return nil
	}
}

// handleCheckoutCompleted records the provisional payment row. Fees stay zero
// until settlement; credit-bundle purchases are platform charges and grant
// credits instead of entering the ledger.
func (s *Service) handleCheckoutCompleted(ctx context.Context, event *stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session event")
	}
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return nil
	}
	if sess.PaymentIntent == nil || sess.PaymentIntent.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment intent missing from paid session")
	}
	paymentIntentID := sess.PaymentIntent.ID

	purpose, err := types.DecodePurposeMetadata(sess.Metadata)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode purpose metadata")
	}

	if purpose.Kind == enums.PurposeKindCreditBundle {
		return s.grantCreditBundle(ctx, &sess, purpose, paymentIntentID)
	}

	return s.txRunner.WithSerializableTx(ctx, func(tx *gorm.DB) error {
		ledger := s.ledger.WithTx(tx)
		checkoutRepo := s.checkoutRepo.WithTx(tx)

		sessionRow, err := s.findSessionRow(ctx, checkoutRepo, &sess)
		if err != nil {
			return err
		}

		existing, err := ledger.FindPaymentByIntentID(ctx, paymentIntentID)
		if err != nil {
			return err
		}
		if existing != nil {
			// Settlement got here first; the row is already final.
			_, err := checkoutRepo.MarkCompleted(ctx, sessionRow.ID, paymentIntentID)
			return err
		}

		club, err := s.clubs.FindByIDWithTx(tx, purpose.ClubID())
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "club not found for payment purpose")
			}
			return err
		}
		if club.ConnectedAccountID == nil || *club.ConnectedAccountID == "" {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "club has no connected payout account")
		}

		payerEmail, payerName := sessionPayer(&sess)
		row := &models.Transaction{
			ID:                 uuid.New(),
			Kind:               enums.TransactionKindPayment,
			Status:             enums.TransactionStatusProcessing,
			AmountCents:        sess.AmountTotal,
			Currency:           s.canonicalCurrency(ctx, string(sess.Currency), enums.CurrencyUSD),
			ClubID:             club.ID,
			ConnectedAccountID: *club.ConnectedAccountID,
			PayerUserID:        sessionRow.UserID,
			PayerEmail:         payerEmail,
			PayerName:          payerName,
			PaymentIntentID:    &paymentIntentID,
			Purpose:            purpose,
		}
		if err := ledger.Create(ctx, row); err != nil {
			if dbpkg.IsUniqueViolation(err, paymentIntentUniqueConstraint) {
				_, markErr := checkoutRepo.MarkCompleted(ctx, sessionRow.ID, paymentIntentID)
				return markErr
			}
			return err
		}
		if _, err := checkoutRepo.MarkCompleted(ctx, sessionRow.ID, paymentIntentID); err != nil {
			return err
		}
		return s.emitPaymentRecorded(ctx, tx, row)
	})
}

// grantCreditBundle credits the club for a platform-account bundle purchase.
// The unique processor session id on credit_grants makes redelivery a no-op.
func (s *Service) grantCreditBundle(ctx context.Context, sess *stripe.CheckoutSession, purpose types.PaymentPurpose, paymentIntentID string) error {
	bundle := purpose.CreditBundle
	if bundle == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "credit bundle purpose missing variant")
	}
	return s.txRunner.WithSerializableTx(ctx, func(tx *gorm.DB) error {
		checkoutRepo := s.checkoutRepo.WithTx(tx)
		granted, err := checkoutRepo.InsertCreditGrant(ctx, &models.CreditGrant{
			ClubID:             bundle.ClubID,
			Credits:            bundle.Credits,
			AmountCents:        sess.AmountTotal,
			ProcessorSessionID: sess.ID,
			PaymentIntentID:    &paymentIntentID,
		})
		if err != nil {
			return err
		}
		if !granted {
			return nil
		}
		if err := s.clubs.AddCreditsWithTx(tx, bundle.ClubID, bundle.Credits); err != nil {
			return err
		}
		if sessionRow, err := checkoutRepo.FindByProcessorSessionID(ctx, sess.ID); err == nil && sessionRow != nil {
			if _, err := checkoutRepo.MarkCompleted(ctx, sessionRow.ID, paymentIntentID); err != nil {
				return err
			}
		}
		return nil
	})
}

// rebuiltPayment carries the fields recovered from the payment intent when
// settlement arrives before the checkout.session.completed delivery.
type rebuiltPayment struct {
	purpose     types.PaymentPurpose
	payerUserID uuid.UUID
	clubID      uuid.UUID
}

// handleChargeUpdated reconciles settlement data into the ledger. The fee and
// net amounts always come from the fetched balance transaction, never from the
// webhook payload.
func (s *Service) handleChargeUpdated(ctx context.Context, event *stripe.Event) error {
	var charge stripe.Charge
	if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode charge event")
	}
	if charge.BalanceTransaction == nil || charge.BalanceTransaction.ID == "" {
		return nil
	}
	destination := chargeDestination(&charge)
	if destination == "" {
		return nil
	}
	paymentIntentID := ""
	if charge.PaymentIntent != nil {
		paymentIntentID = charge.PaymentIntent.ID
	}

	bt, err := s.stripe.GetBalanceTransaction(ctx, charge.BalanceTransaction.ID, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch balance transaction")
	}

	existing, err := s.lookupPayment(ctx, s.ledger, paymentIntentID, charge.ID)
	if err != nil {
		return err
	}
	var rebuilt *rebuiltPayment
	if existing == nil {
		rebuilt, err = s.rebuildFromIntent(ctx, paymentIntentID)
		if err != nil {
			return err
		}
	}

	return s.txRunner.WithSerializableTx(ctx, func(tx *gorm.DB) error {
		ledger := s.ledger.WithTx(tx)
		row, err := s.lookupPayment(ctx, ledger, paymentIntentID, charge.ID)
		if err != nil {
			return err
		}
		if row == nil {
			return s.createSettledPayment(ctx, tx, ledger, rebuilt, &charge, bt, destination, paymentIntentID)
		}
		return s.reconcilePayment(ctx, tx, ledger, row, &charge, bt, destination, paymentIntentID)
	})
}

func (s *Service) rebuildFromIntent(ctx context.Context, paymentIntentID string) (*rebuiltPayment, error) {
	if paymentIntentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent missing from charge")
	}
	pi, err := s.stripe.GetPaymentIntent(ctx, paymentIntentID, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch payment intent")
	}
	purpose, err := types.DecodePurposeMetadata(pi.Metadata)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent metadata")
	}
	sessionRef, err := uuid.Parse(pi.Metadata[types.MetadataKeySessionRef])
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session reference missing from payment intent")
	}
	sessionRow, err := s.checkoutRepo.FindByID(ctx, sessionRef)
	if err != nil {
		return nil, err
	}
	if sessionRow == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "checkout session for payment intent not found")
	}
	return &rebuiltPayment{
		purpose:     purpose,
		payerUserID: sessionRow.UserID,
		clubID:      purpose.ClubID(),
	}, nil
}

func (s *Service) reconcilePayment(ctx context.Context, tx *gorm.DB, ledger transactions.Repository, row *models.Transaction, charge *stripe.Charge, bt *stripe.BalanceTransaction, destination, paymentIntentID string) error {
	if row.Status != enums.TransactionStatusProcessing {
		return nil
	}
	if row.ConnectedAccountID != destination {
		s.warnMismatch(ctx, fmt.Sprintf("settlement destination %s disagrees with recorded account %s for transaction %s", destination, row.ConnectedAccountID, row.ID))
	}

	chargeID := charge.ID
	btID := bt.ID
	settledAt := time.Unix(bt.Created, 0).UTC()

	row.Status = enums.TransactionStatusCompleted
	row.ChargeID = &chargeID
	row.BalanceTransactionID = &btID
	if row.PaymentIntentID == nil && paymentIntentID != "" {
		row.PaymentIntentID = &paymentIntentID
	}
	row.PlatformFeeCents = charge.ApplicationFeeAmount
	row.TotalFeeCents = bt.Fee
	row.NetCents = bt.Net
	row.SettledAt = &settledAt
	if row.PayerEmail == nil && row.PayerName == nil {
		row.PayerEmail, row.PayerName = chargePayer(charge)
	}
	if err := ledger.Update(ctx, row); err != nil {
		return err
	}
	s.emitReceipt(ctx, tx, row)
	return nil
}

func (s *Service) createSettledPayment(ctx context.Context, tx *gorm.DB, ledger transactions.Repository, rebuilt *rebuiltPayment, charge *stripe.Charge, bt *stripe.BalanceTransaction, destination, paymentIntentID string) error {
	if rebuilt == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "payment reconstruction data missing")
	}
	chargeID := charge.ID
	btID := bt.ID
	settledAt := time.Unix(bt.Created, 0).UTC()
	payerEmail, payerName := chargePayer(charge)

	row := &models.Transaction{
		ID:                   uuid.New(),
		Kind:                 enums.TransactionKindPayment,
		Status:               enums.TransactionStatusCompleted,
		AmountCents:          charge.Amount,
		Currency:             s.canonicalCurrency(ctx, string(charge.Currency), enums.CurrencyUSD),
		ClubID:               rebuilt.clubID,
		ConnectedAccountID:   destination,
		PayerUserID:          rebuilt.payerUserID,
		PayerEmail:           payerEmail,
		PayerName:            payerName,
		PaymentIntentID:      &paymentIntentID,
		ChargeID:             &chargeID,
		BalanceTransactionID: &btID,
		PlatformFeeCents:     charge.ApplicationFeeAmount,
		TotalFeeCents:        bt.Fee,
		NetCents:             bt.Net,
		Purpose:              rebuilt.purpose,
		SettledAt:            &settledAt,
	}
	if err := ledger.Create(ctx, row); err != nil {
		if dbpkg.IsUniqueViolation(err, paymentIntentUniqueConstraint) {
			raced, findErr := s.lookupPayment(ctx, ledger, paymentIntentID, chargeID)
			if findErr != nil {
				return findErr
			}
			if raced == nil {
				return err
			}
			return s.reconcilePayment(ctx, tx, ledger, raced, charge, bt, destination, paymentIntentID)
		}
		return err
	}
	if err := s.emitPaymentRecorded(ctx, tx, row); err != nil {
		return err
	}
	s.emitReceipt(ctx, tx, row)
	return nil
}

// handleChargeRefunded reconciles the charge's refund objects against the
// ledger and recomputes the parent payment's refund status. The refund list is
// fetched from the processor; the payload's embedded list may be truncated.
func (s *Service) handleChargeRefunded(ctx context.Context, event *stripe.Event) error {
	var charge stripe.Charge
	if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode charge event")
	}
	paymentIntentID := ""
	if charge.PaymentIntent != nil {
		paymentIntentID = charge.PaymentIntent.ID
	}
	parent, err := s.lookupPayment(ctx, s.ledger, paymentIntentID, charge.ID)
	if err != nil {
		return err
	}
	if parent == nil {
		if s.logg != nil {
			s.logg.Warn(ctx, fmt.Sprintf("refund notification for unknown payment, charge %s", charge.ID))
		}
		return nil
	}

	refunds, err := s.stripe.ListRefunds(ctx, &stripe.RefundListParams{Charge: stripe.String(charge.ID)})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list charge refunds")
	}

	return s.txRunner.WithSerializableTx(ctx, func(tx *gorm.DB) error {
		ledger := s.ledger.WithTx(tx)
		parentRow, err := ledger.FindByID(ctx, parent.ID)
		if err != nil {
			return err
		}
		if parentRow == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "parent payment not found")
		}

		var confirmed []*models.Transaction
		for _, rf := range refunds {
			if rf.Status != stripe.RefundStatusSucceeded {
				continue
			}
			existing, err := ledger.FindRefundByRefundID(ctx, rf.ID)
			if err != nil {
				return err
			}
			if existing != nil && existing.Status == enums.TransactionStatusCompleted {
				continue
			}
			if existing != nil {
				existing.Status = enums.TransactionStatusCompleted
				existing.AmountCents = -rf.Amount
				if err := ledger.Update(ctx, existing); err != nil {
					return err
				}
				confirmed = append(confirmed, existing)
				continue
			}
			// Refund issued outside this system, e.g. from the processor dashboard.
			refundID := rf.ID
			chargeID := charge.ID
			row := &models.Transaction{
				ID:                  uuid.New(),
				Kind:                enums.TransactionKindRefund,
				Status:              enums.TransactionStatusCompleted,
				AmountCents:         -rf.Amount,
				Currency:            parentRow.Currency,
				ClubID:              parentRow.ClubID,
				ConnectedAccountID:  parentRow.ConnectedAccountID,
				PayerUserID:         parentRow.PayerUserID,
				PaymentIntentID:     parentRow.PaymentIntentID,
				ChargeID:            &chargeID,
				RefundID:            &refundID,
				ParentTransactionID: &parentRow.ID,
			}
			if err := ledger.Create(ctx, row); err != nil {
				return err
			}
		}

		refundedTotal, err := ledger.SumCompletedRefunds(ctx, parentRow.ID)
		if err != nil {
			return err
		}
		if refundedTotal > parentRow.AmountCents {
			s.warnMismatch(ctx, fmt.Sprintf("refund total %d exceeds gross %d for transaction %s", refundedTotal, parentRow.AmountCents, parentRow.ID))
		}
		newStatus := enums.TransactionStatusPartiallyRefunded
		if refundedTotal >= parentRow.AmountCents {
			newStatus = enums.TransactionStatusRefunded
		}
		if parentRow.Status != newStatus {
			parentRow.Status = newStatus
			if err := ledger.Update(ctx, parentRow); err != nil {
				return err
			}
		}
		for _, row := range confirmed {
			s.emitRefundReceipt(ctx, tx, parentRow, row, newStatus == enums.TransactionStatusRefunded)
		}
		return nil
	})
}

// handleDisputeCreated opens a dispute row holding the disputed funds as a
// negative amount and marks the parent payment disputed.
func (s *Service) handleDisputeCreated(ctx context.Context, event *stripe.Event) error {
	var dispute stripe.Dispute
	if err := json.Unmarshal(event.Data.Raw, &dispute); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode dispute event")
	}
	chargeID, paymentIntentID := disputeRefs(&dispute)

	return s.txRunner.WithSerializableTx(ctx, func(tx *gorm.DB) error {
		ledger := s.ledger.WithTx(tx)
		existing, err := ledger.FindDisputeByDisputeID(ctx, dispute.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return nil
		}
		parent, err := s.lookupPayment(ctx, ledger, paymentIntentID, chargeID)
		if err != nil {
			return err
		}
		if parent == nil {
			if s.logg != nil {
				s.logg.Warn(ctx, fmt.Sprintf("dispute %s references unknown payment, charge %s", dispute.ID, chargeID))
			}
			return nil
		}
		row, err := s.openDisputeRow(ctx, ledger, parent, &dispute)
		if err != nil {
			return err
		}
		parent.Status = enums.TransactionStatusDisputed
		if err := ledger.Update(ctx, parent); err != nil {
			return err
		}
		s.emitDisputeAlert(ctx, tx, row, parent.ID)
		return nil
	})
}

// handleDisputeClosed resolves a dispute row. A closed delivery that beats the
// created delivery reconstructs the open row first.
func (s *Service) handleDisputeClosed(ctx context.Context, event *stripe.Event) error {
	var dispute stripe.Dispute
	if err := json.Unmarshal(event.Data.Raw, &dispute); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode dispute event")
	}
	chargeID, paymentIntentID := disputeRefs(&dispute)

	return s.txRunner.WithSerializableTx(ctx, func(tx *gorm.DB) error {
		ledger := s.ledger.WithTx(tx)
		row, err := ledger.FindDisputeByDisputeID(ctx, dispute.ID)
		if err != nil {
			return err
		}
		var parent *models.Transaction
		if row == nil {
			parent, err = s.lookupPayment(ctx, ledger, paymentIntentID, chargeID)
			if err != nil {
				return err
			}
			if parent == nil {
				if s.logg != nil {
					s.logg.Warn(ctx, fmt.Sprintf("dispute %s closed for unknown payment, charge %s", dispute.ID, chargeID))
				}
				return nil
			}
			row, err = s.openDisputeRow(ctx, ledger, parent, &dispute)
			if err != nil {
				return err
			}
		} else {
			if row.Status != enums.TransactionStatusOpen {
				return nil
			}
			if row.ParentTransactionID != nil {
				parent, err = ledger.FindByID(ctx, *row.ParentTransactionID)
				if err != nil {
					return err
				}
			}
		}

		parentChanged := false
		switch dispute.Status {
		case stripe.DisputeStatusWon:
			row.Status = enums.TransactionStatusWon
			row.AmountCents = 0
			row.PlatformFeeCents = 0
			row.TotalFeeCents = 0
			row.NetCents = 0
			if parent != nil {
				parent.Status = enums.TransactionStatusCompleted
				parentChanged = true
			}
		case stripe.DisputeStatusLost:
			row.Status = enums.TransactionStatusLost
			if parent != nil {
				parent.Status = enums.TransactionStatusDisputeLost
				parentChanged = true
			}
		default:
			row.Status = enums.TransactionStatusClosed
			if s.logg != nil {
				s.logg.Warn(ctx, fmt.Sprintf("dispute %s closed with outcome %s, ledger amounts unchanged", dispute.ID, dispute.Status))
			}
		}
		if err := ledger.Update(ctx, row); err != nil {
			return err
		}
		if parentChanged {
			if err := ledger.Update(ctx, parent); err != nil {
				return err
			}
		}
		if row.ParentTransactionID != nil {
			s.emitDisputeAlert(ctx, tx, row, *row.ParentTransactionID)
		}
		return nil
	})
}

func (s *Service) openDisputeRow(ctx context.Context, ledger transactions.Repository, parent *models.Transaction, dispute *stripe.Dispute) (*models.Transaction, error) {
	disputeID := dispute.ID
	row := &models.Transaction{
		ID:                  uuid.New(),
		Kind:                enums.TransactionKindDispute,
		Status:              enums.TransactionStatusOpen,
		AmountCents:         -dispute.Amount,
		Currency:            s.canonicalCurrency(ctx, string(dispute.Currency), parent.Currency),
		ClubID:              parent.ClubID,
		ConnectedAccountID:  parent.ConnectedAccountID,
		PayerUserID:         parent.PayerUserID,
		PaymentIntentID:     parent.PaymentIntentID,
		ChargeID:            parent.ChargeID,
		DisputeID:           &disputeID,
		ParentTransactionID: &parent.ID,
	}
	if err := ledger.Create(ctx, row); err != nil {
		return nil, err
	}
	return row, nil
}

// findSessionRow resolves the local checkout session for a processor session,
// falling back to the session reference stamped into metadata.
func (s *Service) findSessionRow(ctx context.Context, repo checkout.Repository, sess *stripe.CheckoutSession) (*models.CheckoutSession, error) {
	row, err := repo.FindByProcessorSessionID(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	if row != nil {
		return row, nil
	}
	if ref, parseErr := uuid.Parse(sess.Metadata[types.MetadataKeySessionRef]); parseErr == nil {
		row, err = repo.FindByID(ctx, ref)
		if err != nil {
			return nil, err
		}
		if row != nil {
			return row, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "checkout session not found for processor session").WithDetails(map[string]any{
		"processor_session_id": sess.ID,
	})
}

func (s *Service) lookupPayment(ctx context.Context, ledger transactions.Repository, paymentIntentID, chargeID string) (*models.Transaction, error) {
	if paymentIntentID != "" {
		row, err := ledger.FindPaymentByIntentID(ctx, paymentIntentID)
		if err != nil || row != nil {
			return row, err
		}
	}
	return ledger.FindPaymentByChargeID(ctx, chargeID)
}

func (s *Service) emitPaymentRecorded(ctx context.Context, tx *gorm.DB, row *models.Transaction) error {
	paymentIntentID := ""
	if row.PaymentIntentID != nil {
		paymentIntentID = *row.PaymentIntentID
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentRecorded,
		AggregateType: enums.AggregateTransaction,
		AggregateID:   row.ID,
		Data: payloads.PaymentRecordedEvent{
			TransactionID:   row.ID,
			ClubID:          row.ClubID,
			PayerUserID:     row.PayerUserID,
			Kind:            row.Kind,
			Status:          row.Status,
			AmountCents:     row.AmountCents,
			Currency:        row.Currency,
			Purpose:         row.Purpose,
			PaymentIntentID: paymentIntentID,
			SettledAt:       row.SettledAt,
		},
	})
}

// emitReceipt queues the payer receipt. Receipts are best-effort: a queue
// failure is logged and never fails the settlement.
func (s *Service) emitReceipt(ctx context.Context, tx *gorm.DB, row *models.Transaction) {
	settledAt := time.Now().UTC()
	if row.SettledAt != nil {
		settledAt = *row.SettledAt
	}
	err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventReceiptRequested,
		AggregateType: enums.AggregateNotification,
		AggregateID:   row.ID,
		Data: payloads.ReceiptRequestedEvent{
			TransactionID: row.ID,
			ClubID:        row.ClubID,
			PayerUserID:   row.PayerUserID,
			PayerEmail:    deref(row.PayerEmail),
			PayerName:     deref(row.PayerName),
			AmountCents:   row.AmountCents,
			Currency:      row.Currency,
			PurposeKind:   row.Purpose.Kind,
			SettledAt:     settledAt,
		},
	})
	if err != nil && s.logg != nil {
		s.logg.Warn(ctx, fmt.Sprintf("receipt event for transaction %s not queued: %v", row.ID, err))
	}
}

func (s *Service) emitRefundReceipt(ctx context.Context, tx *gorm.DB, parent, refundRow *models.Transaction, fullyRefunded bool) {
	err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventRefundReceiptRequested,
		AggregateType: enums.AggregateNotification,
		AggregateID:   refundRow.ID,
		Data: payloads.RefundReceiptRequestedEvent{
			RefundTransactionID: refundRow.ID,
			ParentTransactionID: parent.ID,
			ClubID:              parent.ClubID,
			PayerUserID:         parent.PayerUserID,
			PayerEmail:          deref(parent.PayerEmail),
			PayerName:           deref(parent.PayerName),
			AmountRefundedCents: -refundRow.AmountCents,
			Currency:            refundRow.Currency,
			FullyRefunded:       fullyRefunded,
		},
	})
	if err != nil && s.logg != nil {
		s.logg.Warn(ctx, fmt.Sprintf("refund receipt event for transaction %s not queued: %v", refundRow.ID, err))
	}
}

func (s *Service) emitDisputeAlert(ctx context.Context, tx *gorm.DB, row *models.Transaction, parentID uuid.UUID) {
	disputeID := ""
	if row.DisputeID != nil {
		disputeID = *row.DisputeID
	}
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventDisputeAlertRequested,
		AggregateType: enums.AggregateNotification,
		AggregateID:   row.ID,
		Data: payloads.DisputeAlertRequestedEvent{
			DisputeTransactionID: row.ID,
			ParentTransactionID:  parentID,
			ClubID:               row.ClubID,
			DisputeID:            disputeID,
			Status:               row.Status,
			AmountCents:          row.AmountCents,
			Currency:             row.Currency,
		},
	})
	if err != nil && s.logg != nil {
		s.logg.Warn(ctx, fmt.Sprintf("dispute alert for transaction %s not queued: %v", row.ID, err))
	}
}

func (s *Service) warnMismatch(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Warn(ctx, msg)
	}
	s.metrics.IncMismatch()
}

func disputeRefs(dispute *stripe.Dispute) (chargeID, paymentIntentID string) {
	if dispute.Charge != nil {
		chargeID = dispute.Charge.ID
	}
	if dispute.PaymentIntent != nil {
		paymentIntentID = dispute.PaymentIntent.ID
	}
	return chargeID, paymentIntentID
}

func chargeDestination(charge *stripe.Charge) string {
	if charge.TransferData != nil && charge.TransferData.Destination != nil {
		return charge.TransferData.Destination.ID
	}
	if charge.OnBehalfOf != nil {
		return charge.OnBehalfOf.ID
	}
	return ""
}

func sessionPayer(sess *stripe.CheckoutSession) (email, name *string) {
	if sess.CustomerDetails == nil {
		return nil, nil
	}
	return optional(sess.CustomerDetails.Email), optional(sess.CustomerDetails.Name)
}

func chargePayer(charge *stripe.Charge) (email, name *string) {
	if charge.BillingDetails == nil {
		return nil, nil
	}
	return optional(charge.BillingDetails.Email), optional(charge.BillingDetails.Name)
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// canonicalCurrency maps a processor currency code onto the ledger enum.
// Codes outside the enum fall back rather than reaching the transactions
// currency column, where they would fail the CHECK and wedge the event in a
// retry loop.
func (s *Service) canonicalCurrency(ctx context.Context, raw string, fallback enums.Currency) enums.Currency {
	parsed, err := enums.ParseCurrency(raw)
	if err != nil {
		if raw != "" && s.logg != nil {
			s.logg.Warn(ctx, fmt.Sprintf("unsupported currency %q on processor payload, recording %s", raw, fallback))
		}
		return fallback
	}
	return parsed
}

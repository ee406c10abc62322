package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/clubline/clubline-backend/internal/checkout"
	"github.com/clubline/clubline-backend/internal/transactions"
	"github.com/clubline/clubline-backend/pkg/db/models"
	"github.com/clubline/clubline-backend/pkg/enums"
	"github.com/clubline/clubline-backend/pkg/outbox"
	"github.com/clubline/clubline-backend/pkg/pagination"
	"github.com/clubline/clubline-backend/pkg/types"
)

type stubLedger struct {
	rows []*models.Transaction
	// missNextIntentLookup makes the next FindPaymentByIntentID miss, standing
	// in for a concurrent insert that is not yet visible to this transaction.
	missNextIntentLookup bool
}

func (s *stubLedger) WithTx(tx *gorm.DB) transactions.Repository { return s }

func (s *stubLedger) Create(ctx context.Context, transaction *models.Transaction) error {
	if transaction.Kind == enums.TransactionKindPayment && transaction.PaymentIntentID != nil {
		for _, row := range s.rows {
			if row.Kind == enums.TransactionKindPayment && row.PaymentIntentID != nil && *row.PaymentIntentID == *transaction.PaymentIntentID {
				return errors.New(`duplicate key value violates unique constraint "ux_transactions_payment_intent_payment"`)
			}
		}
	}
	s.rows = append(s.rows, transaction)
	return nil
}

func (s *stubLedger) Update(ctx context.Context, transaction *models.Transaction) error {
	for i, row := range s.rows {
		if row.ID == transaction.ID {
			s.rows[i] = transaction
			return nil
		}
	}
	return fmt.Errorf("transaction %s not found", transaction.ID)
}

func (s *stubLedger) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	for _, row := range s.rows {
		if row.ID == id {
			return row, nil
		}
	}
	return nil, nil
}

func (s *stubLedger) FindPaymentByIntentID(ctx context.Context, paymentIntentID string) (*models.Transaction, error) {
	if s.missNextIntentLookup {
		s.missNextIntentLookup = false
		return nil, nil
	}
	for _, row := range s.rows {
		if row.Kind == enums.TransactionKindPayment && row.PaymentIntentID != nil && *row.PaymentIntentID == paymentIntentID {
			return row, nil
		}
	}
	return nil, nil
}

func (s *stubLedger) FindPaymentByChargeID(ctx context.Context, chargeID string) (*models.Transaction, error) {
	for _, row := range s.rows {
		if row.Kind == enums.TransactionKindPayment && row.ChargeID != nil && *row.ChargeID == chargeID {
			return row, nil
		}
	}
	return nil, nil
}

func (s *stubLedger) FindRefundByRefundID(ctx context.Context, refundID string) (*models.Transaction, error) {
	for _, row := range s.rows {
		if row.Kind == enums.TransactionKindRefund && row.RefundID != nil && *row.RefundID == refundID {
			return row, nil
		}
	}
	return nil, nil
}

func (s *stubLedger) FindDisputeByDisputeID(ctx context.Context, disputeID string) (*models.Transaction, error) {
	for _, row := range s.rows {
		if row.Kind == enums.TransactionKindDispute && row.DisputeID != nil && *row.DisputeID == disputeID {
			return row, nil
		}
	}
	return nil, nil
}

func (s *stubLedger) ListByParentID(ctx context.Context, parentID uuid.UUID) ([]models.Transaction, error) {
	var out []models.Transaction
	for _, row := range s.rows {
		if row.ParentTransactionID != nil && *row.ParentTransactionID == parentID {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (s *stubLedger) SumCompletedRefunds(ctx context.Context, parentID uuid.UUID) (int64, error) {
	var total int64
	for _, row := range s.rows {
		if row.Kind == enums.TransactionKindRefund && row.Status == enums.TransactionStatusCompleted &&
			row.ParentTransactionID != nil && *row.ParentTransactionID == parentID {
			total += -row.AmountCents
		}
	}
	return total, nil
}

func (s *stubLedger) ListByClub(ctx context.Context, clubID uuid.UUID, filter transactions.ListFilter, cursor *pagination.Cursor, limit int) ([]models.Transaction, *pagination.Cursor, error) {
	return nil, nil, nil
}

func (s *stubLedger) paymentRows() []*models.Transaction {
	var out []*models.Transaction
	for _, row := range s.rows {
		if row.Kind == enums.TransactionKindPayment {
			out = append(out, row)
		}
	}
	return out
}

type stubCheckoutStore struct {
	session   *models.CheckoutSession
	completed []string
	grants    map[string]*models.CreditGrant
}

func (s *stubCheckoutStore) WithTx(tx *gorm.DB) checkout.Repository { return s }

func (s *stubCheckoutStore) Create(ctx context.Context, session *models.CheckoutSession) error {
	s.session = session
	return nil
}

func (s *stubCheckoutStore) Update(ctx context.Context, session *models.CheckoutSession) error {
	s.session = session
	return nil
}

func (s *stubCheckoutStore) FindByID(ctx context.Context, id uuid.UUID) (*models.CheckoutSession, error) {
	if s.session != nil && s.session.ID == id {
		return s.session, nil
	}
	return nil, nil
}

func (s *stubCheckoutStore) FindByProcessorSessionID(ctx context.Context, processorSessionID string) (*models.CheckoutSession, error) {
	if s.session != nil && s.session.ProcessorSessionID != nil && *s.session.ProcessorSessionID == processorSessionID {
		return s.session, nil
	}
	return nil, nil
}

func (s *stubCheckoutStore) MarkCompleted(ctx context.Context, id uuid.UUID, paymentIntentID string) (bool, error) {
	s.completed = append(s.completed, paymentIntentID)
	return true, nil
}

func (s *stubCheckoutStore) MarkExpired(ctx context.Context, id uuid.UUID) (bool, error) {
	return true, nil
}

func (s *stubCheckoutStore) InsertCreditGrant(ctx context.Context, grant *models.CreditGrant) (bool, error) {
	if s.grants == nil {
		s.grants = map[string]*models.CreditGrant{}
	}
	if _, exists := s.grants[grant.ProcessorSessionID]; exists {
		return false, nil
	}
	s.grants[grant.ProcessorSessionID] = grant
	return true, nil
}

type stubClubStore struct {
	club    *models.Club
	credits map[uuid.UUID]int64
}

func (s *stubClubStore) FindByIDWithTx(tx *gorm.DB, id uuid.UUID) (*models.Club, error) {
	if s.club != nil && s.club.ID == id {
		return s.club, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubClubStore) AddCreditsWithTx(tx *gorm.DB, clubID uuid.UUID, credits int64) error {
	if s.credits == nil {
		s.credits = map[uuid.UUID]int64{}
	}
	s.credits[clubID] += credits
	return nil
}

type stubStripeAPI struct {
	bt       *stripe.BalanceTransaction
	pi       *stripe.PaymentIntent
	refunds  []*stripe.Refund
	btCalls  int
	piCalls  int
	listErr  error
	btErr    error
	piErr    error
	refCalls int
}

func (s *stubStripeAPI) GetBalanceTransaction(ctx context.Context, id string, params *stripe.BalanceTransactionParams) (*stripe.BalanceTransaction, error) {
	s.btCalls++
	if s.btErr != nil {
		return nil, s.btErr
	}
	return s.bt, nil
}

func (s *stubStripeAPI) GetPaymentIntent(ctx context.Context, id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	s.piCalls++
	if s.piErr != nil {
		return nil, s.piErr
	}
	return s.pi, nil
}

func (s *stubStripeAPI) ListRefunds(ctx context.Context, params *stripe.RefundListParams) ([]*stripe.Refund, error) {
	s.refCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.refunds, nil
}

type stubTxRunner struct {
	calls int
}

func (s *stubTxRunner) WithSerializableTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	s.calls++
	return fn(nil)
}

type stubOutbox struct {
	emitted []outbox.DomainEvent
	seen    map[string]bool
}

func (s *stubOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.emitted = append(s.emitted, event)
	return nil
}

func (s *stubOutbox) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if s.seen == nil {
		s.seen = map[string]bool{}
	}
	key := fmt.Sprintf("%s|%s", event.EventType, event.AggregateID)
	if s.seen[key] {
		return nil
	}
	s.seen[key] = true
	s.emitted = append(s.emitted, event)
	return nil
}

func (s *stubOutbox) countByType(eventType enums.OutboxEventType) int {
	count := 0
	for _, event := range s.emitted {
		if event.EventType == eventType {
			count++
		}
	}
	return count
}

type paymentFixture struct {
	ledger    *stubLedger
	checkout  *stubCheckoutStore
	clubs     *stubClubStore
	stripeAPI *stubStripeAPI
	outbox    *stubOutbox
	txRunner  *stubTxRunner
	svc       *Service
	club      *models.Club
	session   *models.CheckoutSession
	purpose   types.PaymentPurpose
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	accountID := "acct_123"
	club := &models.Club{
		ID:                 uuid.New(),
		Name:               "Northside Chess Club",
		Slug:               "northside-chess",
		ConnectedAccountID: &accountID,
		AccountStatus:      enums.AccountStatusActive,
	}
	purpose := types.PaymentPurpose{
		Kind: enums.PurposeKindEventRegistration,
		Registration: &types.RegistrationPurpose{
			RegistrationID: uuid.New(),
			EventID:        uuid.New(),
			ClubID:         club.ID,
		},
	}
	processorSessionID := "cs_123"
	session := &models.CheckoutSession{
		ID:                 uuid.New(),
		ClubID:             club.ID,
		UserID:             uuid.New(),
		Purpose:            purpose,
		AmountCents:        5000,
		Currency:           enums.CurrencyUSD,
		ProcessorSessionID: &processorSessionID,
		Status:             enums.CheckoutSessionStatusPending,
	}
	fx := &paymentFixture{
		ledger:    &stubLedger{},
		checkout:  &stubCheckoutStore{session: session},
		clubs:     &stubClubStore{club: club},
		stripeAPI: &stubStripeAPI{},
		outbox:    &stubOutbox{},
		txRunner:  &stubTxRunner{},
		club:      club,
		session:   session,
		purpose:   purpose,
	}
	svc, err := NewService(ServiceParams{
		Ledger:            fx.ledger,
		CheckoutRepo:      fx.checkout,
		Clubs:             fx.clubs,
		StripeClient:      fx.stripeAPI,
		TransactionRunner: fx.txRunner,
		Outbox:            fx.outbox,
	})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	fx.svc = svc
	return fx
}

func makeEvent(t *testing.T, eventType stripe.EventType, object interface{}) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(object)
	if err != nil {
		t.Fatalf("marshal event object: %v", err)
	}
	return &stripe.Event{Type: eventType, Data: &stripe.EventData{Raw: raw}}
}

func (fx *paymentFixture) paidSessionEvent(t *testing.T) *stripe.Event {
	t.Helper()
	metadata, err := fx.purpose.EncodeMetadata()
	if err != nil {
		t.Fatalf("encode metadata: %v", err)
	}
	metadata[types.MetadataKeySessionRef] = fx.session.ID.String()
	return makeEvent(t, stripe.EventTypeCheckoutSessionCompleted, &stripe.CheckoutSession{
		ID:              "cs_123",
		AmountTotal:     5000,
		Currency:        stripe.CurrencyUSD,
		PaymentStatus:   stripe.CheckoutSessionPaymentStatusPaid,
		PaymentIntent:   &stripe.PaymentIntent{ID: "pi_123"},
		CustomerDetails: &stripe.CheckoutSessionCustomerDetails{Email: "sam@example.com", Name: "Sam Reyes"},
		Metadata:        metadata,
	})
}

func (fx *paymentFixture) settledCharge() *stripe.Charge {
	return &stripe.Charge{
		ID:                   "ch_123",
		Amount:               5000,
		Currency:             stripe.CurrencyUSD,
		ApplicationFeeAmount: 75,
		PaymentIntent:        &stripe.PaymentIntent{ID: "pi_123"},
		BalanceTransaction:   &stripe.BalanceTransaction{ID: "txn_123"},
		BillingDetails:       &stripe.ChargeBillingDetails{Email: "sam@example.com", Name: "Sam Reyes"},
		TransferData:         &stripe.ChargeTransferData{Destination: &stripe.Account{ID: "acct_123"}},
	}
}

func (fx *paymentFixture) settlementData() {
	fx.stripeAPI.bt = &stripe.BalanceTransaction{
		ID:      "txn_123",
		Fee:     110,
		Net:     4890,
		Created: time.Now().Unix(),
	}
}

func (fx *paymentFixture) processingRow() *models.Transaction {
	paymentIntentID := "pi_123"
	row := &models.Transaction{
		ID:                 uuid.New(),
		Kind:               enums.TransactionKindPayment,
		Status:             enums.TransactionStatusProcessing,
		AmountCents:        5000,
		Currency:           enums.CurrencyUSD,
		ClubID:             fx.club.ID,
		ConnectedAccountID: "acct_123",
		PayerUserID:        fx.session.UserID,
		PaymentIntentID:    &paymentIntentID,
		Purpose:            fx.purpose,
	}
	fx.ledger.rows = append(fx.ledger.rows, row)
	return row
}

func (fx *paymentFixture) completedRow() *models.Transaction {
	row := fx.processingRow()
	chargeID := "ch_123"
	row.Status = enums.TransactionStatusCompleted
	row.ChargeID = &chargeID
	row.PlatformFeeCents = 75
	row.TotalFeeCents = 110
	row.NetCents = 4890
	return row
}

func TestHandleCheckoutCompleted_CreatesProcessingRow(t *testing.T) {
	fx := newPaymentFixture(t)

	if err := fx.svc.HandleEvent(context.Background(), fx.paidSessionEvent(t)); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	rows := fx.ledger.paymentRows()
	if len(rows) != 1 {
		t.Fatalf("expected one payment row, got %d", len(rows))
	}
	row := rows[0]
	if row.Status != enums.TransactionStatusProcessing {
		t.Fatalf("expected processing, got %s", row.Status)
	}
	if row.AmountCents != 5000 || row.PlatformFeeCents != 0 || row.TotalFeeCents != 0 || row.NetCents != 0 {
		t.Fatalf("expected gross 5000 with zero fees, got %+v", row)
	}
	if row.PaymentIntentID == nil || *row.PaymentIntentID != "pi_123" {
		t.Fatalf("expected payment intent recorded")
	}
	if row.PayerUserID != fx.session.UserID {
		t.Fatalf("expected payer from checkout session")
	}
	if row.PayerEmail == nil || *row.PayerEmail != "sam@example.com" {
		t.Fatal("expected payer email snapshot from session")
	}
	if got := fx.outbox.countByType(enums.EventPaymentRecorded); got != 1 {
		t.Fatalf("expected one payment_recorded event, got %d", got)
	}
	if len(fx.checkout.completed) != 1 {
		t.Fatalf("expected session marked completed")
	}
	if fx.txRunner.calls != 1 {
		t.Fatalf("expected handler to run inside the serializable transaction runner, got %d calls", fx.txRunner.calls)
	}
}

func TestHandleCheckoutCompleted_SecondDeliveryIsNoOp(t *testing.T) {
	fx := newPaymentFixture(t)

	if err := fx.svc.HandleEvent(context.Background(), fx.paidSessionEvent(t)); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := fx.svc.HandleEvent(context.Background(), fx.paidSessionEvent(t)); err != nil {
		t.Fatalf("second delivery: %v", err)
	}

	if rows := fx.ledger.paymentRows(); len(rows) != 1 {
		t.Fatalf("expected single payment row after redelivery, got %d", len(rows))
	}
	if got := fx.outbox.countByType(enums.EventPaymentRecorded); got != 1 {
		t.Fatalf("expected single payment_recorded event, got %d", got)
	}
}

func TestHandleCheckoutCompleted_InsertRaceRecoversViaConstraint(t *testing.T) {
	fx := newPaymentFixture(t)
	intent := "pi_123"
	fx.ledger.rows = append(fx.ledger.rows, &models.Transaction{
		ID:              uuid.New(),
		Kind:            enums.TransactionKindPayment,
		Status:          enums.TransactionStatusProcessing,
		PaymentIntentID: &intent,
	})
	fx.ledger.missNextIntentLookup = true

	if err := fx.svc.HandleEvent(context.Background(), fx.paidSessionEvent(t)); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	if rows := fx.ledger.paymentRows(); len(rows) != 1 {
		t.Fatalf("expected the concurrent insert to stand alone, got %d rows", len(rows))
	}
	if len(fx.checkout.completed) != 1 {
		t.Fatalf("expected session marked completed after losing the insert race")
	}
	if got := fx.outbox.countByType(enums.EventPaymentRecorded); got != 0 {
		t.Fatalf("expected losing delivery to emit nothing, got %d events", got)
	}
}

func TestHandleCheckoutCompleted_UnpaidSessionSkipped(t *testing.T) {
	fx := newPaymentFixture(t)
	event := makeEvent(t, stripe.EventTypeCheckoutSessionCompleted, &stripe.CheckoutSession{
		ID:            "cs_123",
		PaymentStatus: stripe.CheckoutSessionPaymentStatusUnpaid,
		PaymentIntent: &stripe.PaymentIntent{ID: "pi_123"},
	})

	if err := fx.svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(fx.ledger.rows) != 0 {
		t.Fatalf("expected no ledger rows for unpaid session")
	}
}

func TestHandleCheckoutCompleted_UnknownCurrencyFallsBackToUSD(t *testing.T) {
	fx := newPaymentFixture(t)
	metadata, err := fx.purpose.EncodeMetadata()
	if err != nil {
		t.Fatalf("encode metadata: %v", err)
	}
	metadata[types.MetadataKeySessionRef] = fx.session.ID.String()
	event := makeEvent(t, stripe.EventTypeCheckoutSessionCompleted, &stripe.CheckoutSession{
		ID:            "cs_123",
		AmountTotal:   5000,
		Currency:      stripe.Currency("doge"),
		PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
		PaymentIntent: &stripe.PaymentIntent{ID: "pi_123"},
		Metadata:      metadata,
	})

	if err := fx.svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	rows := fx.ledger.paymentRows()
	if len(rows) != 1 {
		t.Fatalf("expected one payment row, got %d", len(rows))
	}
	if rows[0].Currency != enums.CurrencyUSD {
		t.Fatalf("expected USD fallback for unrecognized code, got %s", rows[0].Currency)
	}
}

func TestHandleCheckoutCompleted_CreditBundleGrantsOnce(t *testing.T) {
	fx := newPaymentFixture(t)
	bundlePurpose := types.PaymentPurpose{
		Kind:         enums.PurposeKindCreditBundle,
		CreditBundle: &types.CreditBundlePurpose{ClubID: fx.club.ID, Credits: 500},
	}
	metadata, err := bundlePurpose.EncodeMetadata()
	if err != nil {
		t.Fatalf("encode metadata: %v", err)
	}
	event := makeEvent(t, stripe.EventTypeCheckoutSessionCompleted, &stripe.CheckoutSession{
		ID:            "cs_bundle",
		AmountTotal:   2500,
		Currency:      stripe.CurrencyUSD,
		PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
		PaymentIntent: &stripe.PaymentIntent{ID: "pi_bundle"},
		Metadata:      metadata,
	})

	if err := fx.svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := fx.svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("second delivery: %v", err)
	}

	if fx.clubs.credits[fx.club.ID] != 500 {
		t.Fatalf("expected 500 credits granted once, got %d", fx.clubs.credits[fx.club.ID])
	}
	if len(fx.ledger.rows) != 0 {
		t.Fatalf("expected platform charge to stay out of the ledger")
	}
	if got := fx.outbox.countByType(enums.EventPaymentRecorded); got != 0 {
		t.Fatalf("expected no payment_recorded for bundles, got %d", got)
	}
}

func TestHandleChargeUpdated_ReconcilesAuthoritativeFees(t *testing.T) {
	fx := newPaymentFixture(t)
	row := fx.processingRow()
	fx.settlementData()

	event := makeEvent(t, stripe.EventTypeChargeUpdated, fx.settledCharge())
	if err := fx.svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	if row.Status != enums.TransactionStatusCompleted {
		t.Fatalf("expected completed, got %s", row.Status)
	}
	if row.PlatformFeeCents != 75 || row.TotalFeeCents != 110 || row.NetCents != 4890 {
		t.Fatalf("expected fees 75/110/4890, got %d/%d/%d", row.PlatformFeeCents, row.TotalFeeCents, row.NetCents)
	}
	if row.SettledAt == nil {
		t.Fatal("expected settled_at recorded")
	}
	if row.BalanceTransactionID == nil || *row.BalanceTransactionID != "txn_123" {
		t.Fatal("expected balance transaction id recorded")
	}
	if row.PayerEmail == nil || *row.PayerEmail != "sam@example.com" {
		t.Fatal("expected payer email backfilled from charge billing details")
	}
	if fx.stripeAPI.btCalls != 1 {
		t.Fatalf("expected balance transaction fetched from processor, got %d calls", fx.stripeAPI.btCalls)
	}
	if got := fx.outbox.countByType(enums.EventReceiptRequested); got != 1 {
		t.Fatalf("expected one receipt request, got %d", got)
	}
}

func TestHandleChargeUpdated_SettlementBeforeInitiation(t *testing.T) {
	fx := newPaymentFixture(t)
	fx.settlementData()
	metadata, err := fx.purpose.EncodeMetadata()
	if err != nil {
		t.Fatalf("encode metadata: %v", err)
	}
	metadata[types.MetadataKeySessionRef] = fx.session.ID.String()
	fx.stripeAPI.pi = &stripe.PaymentIntent{ID: "pi_123", Metadata: metadata}

	event := makeEvent(t, stripe.EventTypeChargeUpdated, fx.settledCharge())
	if err := fx.svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	rows := fx.ledger.paymentRows()
	if len(rows) != 1 {
		t.Fatalf("expected one reconstructed payment row, got %d", len(rows))
	}
	row := rows[0]
	if row.Status != enums.TransactionStatusCompleted {
		t.Fatalf("expected completed, got %s", row.Status)
	}
	if row.AmountCents != 5000 || row.TotalFeeCents != 110 || row.NetCents != 4890 {
		t.Fatalf("unexpected amounts %+v", row)
	}
	if row.PayerUserID != fx.session.UserID {
		t.Fatal("expected payer recovered from checkout session")
	}
	if fx.stripeAPI.piCalls != 1 {
		t.Fatalf("expected payment intent fetched, got %d calls", fx.stripeAPI.piCalls)
	}
	if got := fx.outbox.countByType(enums.EventPaymentRecorded); got != 1 {
		t.Fatalf("expected payment_recorded for reconstructed row, got %d", got)
	}

	// The late initiation delivery must not create a second row.
	if err := fx.svc.HandleEvent(context.Background(), fx.paidSessionEvent(t)); err != nil {
		t.Fatalf("late initiation delivery: %v", err)
	}
	if rows := fx.ledger.paymentRows(); len(rows) != 1 {
		t.Fatalf("expected single row after late initiation, got %d", len(rows))
	}
}

func TestHandleChargeUpdated_AccountMismatchStillReconciles(t *testing.T) {
	fx := newPaymentFixture(t)
	row := fx.processingRow()
	row.ConnectedAccountID = "acct_other"
	fx.settlementData()

	event := makeEvent(t, stripe.EventTypeChargeUpdated, fx.settledCharge())
	if err := fx.svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if row.Status != enums.TransactionStatusCompleted {
		t.Fatalf("expected reconciliation despite mismatch, got %s", row.Status)
	}
}

func TestHandleChargeUpdated_SkipsWithoutSettlementData(t *testing.T) {
	fx := newPaymentFixture(t)
	fx.processingRow()

	charge := fx.settledCharge()
	charge.BalanceTransaction = nil
	event := makeEvent(t, stripe.EventTypeChargeUpdated, charge)
	if err := fx.svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if fx.stripeAPI.btCalls != 0 {
		t.Fatal("expected no balance transaction fetch")
	}
	if fx.ledger.rows[0].Status != enums.TransactionStatusProcessing {
		t.Fatal("expected row untouched")
	}
}

func TestHandleChargeUpdated_PlatformChargeSkipped(t *testing.T) {
	fx := newPaymentFixture(t)

	charge := fx.settledCharge()
	charge.TransferData = nil
	event := makeEvent(t, stripe.EventTypeChargeUpdated, charge)
	if err := fx.svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(fx.ledger.rows) != 0 {
		t.Fatal("expected platform charge to be skipped")
	}
}

func TestHandleChargeRefunded_PartialThenFull(t *testing.T) {
	fx := newPaymentFixture(t)
	parent := fx.completedRow()

	fx.stripeAPI.refunds = []*stripe.Refund{
		{ID: "re_1", Amount: 2000, Status: stripe.RefundStatusSucceeded},
	}
	event := makeEvent(t, stripe.EventTypeChargeRefunded, fx.settledCharge())
	if err := fx.svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("partial refund: %v", err)
	}

	if parent.Status != enums.TransactionStatusPartiallyRefunded {
		t.Fatalf("expected partially_refunded, got %s", parent.Status)
	}
	refundRow, err := fx.ledger.FindRefundByRefundID(context.Background(), "re_1")
	if err != nil || refundRow == nil {
		t.Fatalf("expected refund row, err %v", err)
	}
	if refundRow.AmountCents != -2000 || refundRow.Status != enums.TransactionStatusCompleted {
		t.Fatalf("expected completed -2000 refund row, got %+v", refundRow)
	}
	if refundRow.ParentTransactionID == nil || *refundRow.ParentTransactionID != parent.ID {
		t.Fatal("expected refund linked to parent")
	}

	fx.stripeAPI.refunds = []*stripe.Refund{
		{ID: "re_1", Amount: 2000, Status: stripe.RefundStatusSucceeded},
		{ID: "re_2", Amount: 3000, Status: stripe.RefundStatusSucceeded},
	}
	if err := fx.svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("full refund: %v", err)
	}
	if parent.Status != enums.TransactionStatusRefunded {
		t.Fatalf("expected refunded, got %s", parent.Status)
	}
	refundRows := 0
	for _, row := range fx.ledger.rows {
		if row.Kind == enums.TransactionKindRefund {
			refundRows++
		}
	}
	if refundRows != 2 {
		t.Fatalf("expected two refund rows, got %d", refundRows)
	}
}

func TestHandleChargeRefunded_ConfirmsRequestedRefund(t *testing.T) {
	fx := newPaymentFixture(t)
	parent := fx.completedRow()

	refundID := "re_requested"
	pending := &models.Transaction{
		ID:                  uuid.New(),
		Kind:                enums.TransactionKindRefund,
		Status:              enums.TransactionStatusProcessing,
		AmountCents:         -2000,
		Currency:            enums.CurrencyUSD,
		ClubID:              parent.ClubID,
		ConnectedAccountID:  parent.ConnectedAccountID,
		PayerUserID:         parent.PayerUserID,
		RefundID:            &refundID,
		ParentTransactionID: &parent.ID,
	}
	fx.ledger.rows = append(fx.ledger.rows, pending)

	fx.stripeAPI.refunds = []*stripe.Refund{
		{ID: refundID, Amount: 2000, Status: stripe.RefundStatusSucceeded},
	}
	event := makeEvent(t, stripe.EventTypeChargeRefunded, fx.settledCharge())
	if err := fx.svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	if pending.Status != enums.TransactionStatusCompleted {
		t.Fatalf("expected confirmed refund, got %s", pending.Status)
	}
	if got := fx.outbox.countByType(enums.EventRefundReceiptRequested); got != 1 {
		t.Fatalf("expected refund receipt, got %d", got)
	}
	if parent.Status != enums.TransactionStatusPartiallyRefunded {
		t.Fatalf("expected partially_refunded parent, got %s", parent.Status)
	}
}

func TestHandleDisputeCreated_HoldsFundsAndMarksParent(t *testing.T) {
	fx := newPaymentFixture(t)
	parent := fx.completedRow()

	dispute := &stripe.Dispute{
		ID:       "dp_1",
		Amount:   5000,
		Currency: stripe.CurrencyUSD,
		Charge:   &stripe.Charge{ID: "ch_123"},
	}
	event := makeEvent(t, stripe.EventTypeChargeDisputeCreated, dispute)
	if err := fx.svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if err := fx.svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("redelivery: %v", err)
	}

	disputeRow, err := fx.ledger.FindDisputeByDisputeID(context.Background(), "dp_1")
	if err != nil || disputeRow == nil {
		t.Fatalf("expected dispute row, err %v", err)
	}
	if disputeRow.AmountCents != -5000 || disputeRow.Status != enums.TransactionStatusOpen {
		t.Fatalf("expected open row holding -5000, got %+v", disputeRow)
	}
	if parent.Status != enums.TransactionStatusDisputed {
		t.Fatalf("expected disputed parent, got %s", parent.Status)
	}
	disputeRows := 0
	for _, row := range fx.ledger.rows {
		if row.Kind == enums.TransactionKindDispute {
			disputeRows++
		}
	}
	if disputeRows != 1 {
		t.Fatalf("expected one dispute row after redelivery, got %d", disputeRows)
	}
	if got := fx.outbox.countByType(enums.EventDisputeAlertRequested); got != 1 {
		t.Fatalf("expected one dispute alert, got %d", got)
	}
}

func TestHandleDisputeClosed_WonRestoresParent(t *testing.T) {
	fx := newPaymentFixture(t)
	parent := fx.completedRow()

	created := makeEvent(t, stripe.EventTypeChargeDisputeCreated, &stripe.Dispute{
		ID:       "dp_1",
		Amount:   5000,
		Currency: stripe.CurrencyUSD,
		Charge:   &stripe.Charge{ID: "ch_123"},
	})
	if err := fx.svc.HandleEvent(context.Background(), created); err != nil {
		t.Fatalf("dispute created: %v", err)
	}

	closed := makeEvent(t, stripe.EventTypeChargeDisputeClosed, &stripe.Dispute{
		ID:       "dp_1",
		Amount:   5000,
		Currency: stripe.CurrencyUSD,
		Status:   stripe.DisputeStatusWon,
		Charge:   &stripe.Charge{ID: "ch_123"},
	})
	if err := fx.svc.HandleEvent(context.Background(), closed); err != nil {
		t.Fatalf("dispute closed: %v", err)
	}

	disputeRow, _ := fx.ledger.FindDisputeByDisputeID(context.Background(), "dp_1")
	if disputeRow.Status != enums.TransactionStatusWon {
		t.Fatalf("expected won, got %s", disputeRow.Status)
	}
	if disputeRow.AmountCents != 0 || disputeRow.NetCents != 0 || disputeRow.TotalFeeCents != 0 {
		t.Fatalf("expected zeroed amounts on won dispute, got %+v", disputeRow)
	}
	if parent.Status != enums.TransactionStatusCompleted {
		t.Fatalf("expected parent restored to completed, got %s", parent.Status)
	}
}

func TestHandleDisputeClosed_LostKeepsDebit(t *testing.T) {
	fx := newPaymentFixture(t)
	parent := fx.completedRow()

	created := makeEvent(t, stripe.EventTypeChargeDisputeCreated, &stripe.Dispute{
		ID:       "dp_1",
		Amount:   5000,
		Currency: stripe.CurrencyUSD,
		Charge:   &stripe.Charge{ID: "ch_123"},
	})
	if err := fx.svc.HandleEvent(context.Background(), created); err != nil {
		t.Fatalf("dispute created: %v", err)
	}

	closed := makeEvent(t, stripe.EventTypeChargeDisputeClosed, &stripe.Dispute{
		ID:       "dp_1",
		Amount:   5000,
		Currency: stripe.CurrencyUSD,
		Status:   stripe.DisputeStatusLost,
		Charge:   &stripe.Charge{ID: "ch_123"},
	})
	if err := fx.svc.HandleEvent(context.Background(), closed); err != nil {
		t.Fatalf("dispute closed: %v", err)
	}

	disputeRow, _ := fx.ledger.FindDisputeByDisputeID(context.Background(), "dp_1")
	if disputeRow.Status != enums.TransactionStatusLost || disputeRow.AmountCents != -5000 {
		t.Fatalf("expected lost row keeping -5000, got %+v", disputeRow)
	}
	if parent.Status != enums.TransactionStatusDisputeLost {
		t.Fatalf("expected dispute_lost parent, got %s", parent.Status)
	}
}

func TestHandleDisputeClosed_OtherOutcomeLeavesLedger(t *testing.T) {
	fx := newPaymentFixture(t)
	parent := fx.completedRow()

	created := makeEvent(t, stripe.EventTypeChargeDisputeCreated, &stripe.Dispute{
		ID:       "dp_1",
		Amount:   5000,
		Currency: stripe.CurrencyUSD,
		Charge:   &stripe.Charge{ID: "ch_123"},
	})
	if err := fx.svc.HandleEvent(context.Background(), created); err != nil {
		t.Fatalf("dispute created: %v", err)
	}

	closed := makeEvent(t, stripe.EventTypeChargeDisputeClosed, &stripe.Dispute{
		ID:       "dp_1",
		Amount:   5000,
		Currency: stripe.CurrencyUSD,
		Status:   stripe.DisputeStatusWarningClosed,
		Charge:   &stripe.Charge{ID: "ch_123"},
	})
	if err := fx.svc.HandleEvent(context.Background(), closed); err != nil {
		t.Fatalf("dispute closed: %v", err)
	}

	disputeRow, _ := fx.ledger.FindDisputeByDisputeID(context.Background(), "dp_1")
	if disputeRow.Status != enums.TransactionStatusClosed || disputeRow.AmountCents != -5000 {
		t.Fatalf("expected closed row with amount unchanged, got %+v", disputeRow)
	}
	if parent.Status != enums.TransactionStatusDisputed {
		t.Fatalf("expected parent left disputed, got %s", parent.Status)
	}
}

func TestHandleDisputeClosed_BeforeCreatedReconstructs(t *testing.T) {
	fx := newPaymentFixture(t)
	parent := fx.completedRow()

	closed := makeEvent(t, stripe.EventTypeChargeDisputeClosed, &stripe.Dispute{
		ID:       "dp_out_of_order",
		Amount:   5000,
		Currency: stripe.CurrencyUSD,
		Status:   stripe.DisputeStatusWon,
		Charge:   &stripe.Charge{ID: "ch_123"},
	})
	if err := fx.svc.HandleEvent(context.Background(), closed); err != nil {
		t.Fatalf("dispute closed: %v", err)
	}

	disputeRow, _ := fx.ledger.FindDisputeByDisputeID(context.Background(), "dp_out_of_order")
	if disputeRow == nil {
		t.Fatal("expected dispute row reconstructed")
	}
	if disputeRow.Status != enums.TransactionStatusWon || disputeRow.AmountCents != 0 {
		t.Fatalf("expected won row with zero amount, got %+v", disputeRow)
	}
	if parent.Status != enums.TransactionStatusCompleted {
		t.Fatalf("expected parent completed, got %s", parent.Status)
	}
}

func TestHandleEvent_UnknownTypeAcknowledged(t *testing.T) {
	fx := newPaymentFixture(t)
	event := makeEvent(t, stripe.EventType("payout.paid"), map[string]string{"id": "po_1"})
	if err := fx.svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("expected unknown type to be acknowledged, got %v", err)
	}
}

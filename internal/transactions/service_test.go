package transactions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clubline/clubline-backend/pkg/db/models"
	"github.com/clubline/clubline-backend/pkg/enums"
	pkgerrors "github.com/clubline/clubline-backend/pkg/errors"
	"github.com/clubline/clubline-backend/pkg/pagination"
)

func TestService_GetForClubReturnsPaymentDetail(t *testing.T) {
	clubID := uuid.New()
	paymentID := uuid.New()
	refundID := "re_123"
	payment := &models.Transaction{
		ID:          paymentID,
		Kind:        enums.TransactionKindPayment,
		Status:      enums.TransactionStatusPartiallyRefunded,
		AmountCents: 5000,
		Currency:    enums.CurrencyUSD,
		ClubID:      clubID,
		PayerUserID: uuid.New(),
	}
	refund := models.Transaction{
		ID:                  uuid.New(),
		Kind:                enums.TransactionKindRefund,
		Status:              enums.TransactionStatusCompleted,
		AmountCents:         -2000,
		Currency:            enums.CurrencyUSD,
		ClubID:              clubID,
		RefundID:            &refundID,
		ParentTransactionID: &paymentID,
	}
	repo := &stubLedgerRepo{
		byID:     map[uuid.UUID]*models.Transaction{paymentID: payment},
		children: []models.Transaction{refund},
		refunded: 2000,
	}
	service, err := NewService(repo)
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}

	detail, err := service.GetForClub(context.Background(), clubID, paymentID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if detail.RefundedCents != 2000 {
		t.Fatalf("expected refunded 2000, got %d", detail.RefundedCents)
	}
	if len(detail.Children) != 1 || detail.Children[0].AmountCents != -2000 {
		t.Fatalf("expected one refund child at -2000")
	}
}

func TestService_GetForClubHidesOtherClubs(t *testing.T) {
	rowID := uuid.New()
	repo := &stubLedgerRepo{
		byID: map[uuid.UUID]*models.Transaction{rowID: {
			ID:     rowID,
			Kind:   enums.TransactionKindPayment,
			ClubID: uuid.New(),
		}},
	}
	service, err := NewService(repo)
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}

	_, err = service.GetForClub(context.Background(), uuid.New(), rowID)
	if err == nil {
		t.Fatalf("expected not found")
	}
	if typed := pkgerrors.As(err); typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found code, got %s", typed.Code())
	}
}

func TestService_ListForClubParsesFilters(t *testing.T) {
	clubID := uuid.New()
	repo := &stubLedgerRepo{
		listed: []models.Transaction{{
			ID:          uuid.New(),
			Kind:        enums.TransactionKindPayment,
			Status:      enums.TransactionStatusCompleted,
			AmountCents: 5000,
			ClubID:      clubID,
			CreatedAt:   time.Now().UTC(),
		}},
		next: &pagination.Cursor{CreatedAt: time.Now().UTC(), ID: uuid.New()},
	}
	service, err := NewService(repo)
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}

	list, err := service.ListForClub(context.Background(), clubID, ListInput{Kind: "payment", Status: "completed"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list.Transactions) != 1 {
		t.Fatalf("expected one row, got %d", len(list.Transactions))
	}
	if list.NextCursor == "" {
		t.Fatalf("expected next cursor")
	}
	if repo.lastFilter.Kind != enums.TransactionKindPayment || repo.lastFilter.Status != enums.TransactionStatusCompleted {
		t.Fatalf("filters not forwarded: %+v", repo.lastFilter)
	}
}

func TestService_ListForClubRejectsUnknownKind(t *testing.T) {
	service, err := NewService(&stubLedgerRepo{})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}

	_, err = service.ListForClub(context.Background(), uuid.New(), ListInput{Kind: "payout"})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if typed := pkgerrors.As(err); typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation code, got %s", typed.Code())
	}
}

type stubLedgerRepo struct {
	byID       map[uuid.UUID]*models.Transaction
	children   []models.Transaction
	refunded   int64
	listed     []models.Transaction
	next       *pagination.Cursor
	lastFilter ListFilter
}

func (s *stubLedgerRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubLedgerRepo) Create(ctx context.Context, transaction *models.Transaction) error {
	return nil
}

func (s *stubLedgerRepo) Update(ctx context.Context, transaction *models.Transaction) error {
	return nil
}

func (s *stubLedgerRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	return s.byID[id], nil
}

func (s *stubLedgerRepo) FindPaymentByIntentID(ctx context.Context, paymentIntentID string) (*models.Transaction, error) {
	return nil, nil
}

func (s *stubLedgerRepo) FindPaymentByChargeID(ctx context.Context, chargeID string) (*models.Transaction, error) {
	return nil, nil
}

func (s *stubLedgerRepo) FindRefundByRefundID(ctx context.Context, refundID string) (*models.Transaction, error) {
	return nil, nil
}

func (s *stubLedgerRepo) FindDisputeByDisputeID(ctx context.Context, disputeID string) (*models.Transaction, error) {
	return nil, nil
}

func (s *stubLedgerRepo) ListByParentID(ctx context.Context, parentID uuid.UUID) ([]models.Transaction, error) {
	return s.children, nil
}

func (s *stubLedgerRepo) SumCompletedRefunds(ctx context.Context, parentID uuid.UUID) (int64, error) {
	return s.refunded, nil
}

func (s *stubLedgerRepo) ListByClub(ctx context.Context, clubID uuid.UUID, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.Transaction, *pagination.Cursor, error) {
	s.lastFilter = filter
	return s.listed, s.next, nil
}

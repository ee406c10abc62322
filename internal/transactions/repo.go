package transactions

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clubline/clubline-backend/pkg/db/models"
	"github.com/clubline/clubline-backend/pkg/enums"
	"github.com/clubline/clubline-backend/pkg/pagination"
)

// ListFilter narrows a club ledger listing.
type ListFilter struct {
	Kind   enums.TransactionKind
	Status enums.TransactionStatus
}

// Repository manages persistence for ledger rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, transaction *models.Transaction) error
	Update(ctx context.Context, transaction *models.Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	FindPaymentByIntentID(ctx context.Context, paymentIntentID string) (*models.Transaction, error)
	FindPaymentByChargeID(ctx context.Context, chargeID string) (*models.Transaction, error)
	FindRefundByRefundID(ctx context.Context, refundID string) (*models.Transaction, error)
	FindDisputeByDisputeID(ctx context.Context, disputeID string) (*models.Transaction, error)
	ListByParentID(ctx context.Context, parentID uuid.UUID) ([]models.Transaction, error)
	SumCompletedRefunds(ctx context.Context, parentID uuid.UUID) (int64, error)
	ListByClub(ctx context.Context, clubID uuid.UUID, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.Transaction, *pagination.Cursor, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a transactions repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, transaction *models.Transaction) error {
	return r.db.WithContext(ctx).Create(transaction).Error
}

func (r *repository) Update(ctx context.Context, transaction *models.Transaction) error {
	return r.db.WithContext(ctx).Save(transaction).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&transaction).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &transaction, nil
}

// FindPaymentByIntentID resolves the single payment row for a processor
// payment intent. The partial unique index guarantees at most one match.
func (r *repository) FindPaymentByIntentID(ctx context.Context, paymentIntentID string) (*models.Transaction, error) {
	if strings.TrimSpace(paymentIntentID) == "" {
		return nil, nil
	}
	return r.findOne(ctx, "kind = ? AND payment_intent_id = ?", enums.TransactionKindPayment, paymentIntentID)
}

func (r *repository) FindPaymentByChargeID(ctx context.Context, chargeID string) (*models.Transaction, error) {
	if strings.TrimSpace(chargeID) == "" {
		return nil, nil
	}
	return r.findOne(ctx, "kind = ? AND charge_id = ?", enums.TransactionKindPayment, chargeID)
}

func (r *repository) FindRefundByRefundID(ctx context.Context, refundID string) (*models.Transaction, error) {
	if strings.TrimSpace(refundID) == "" {
		return nil, nil
	}
	return r.findOne(ctx, "kind = ? AND refund_id = ?", enums.TransactionKindRefund, refundID)
}

func (r *repository) FindDisputeByDisputeID(ctx context.Context, disputeID string) (*models.Transaction, error) {
	if strings.TrimSpace(disputeID) == "" {
		return nil, nil
	}
	return r.findOne(ctx, "kind = ? AND dispute_id = ?", enums.TransactionKindDispute, disputeID)
}

func (r *repository) findOne(ctx context.Context, query string, args ...interface{}) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := r.db.WithContext(ctx).
		Where(query, args...).
		First(&transaction).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &transaction, nil
}

func (r *repository) ListByParentID(ctx context.Context, parentID uuid.UUID) ([]models.Transaction, error) {
	var children []models.Transaction
	if err := r.db.WithContext(ctx).
		Where("parent_transaction_id = ?", parentID).
		Order("created_at ASC").
		Find(&children).Error; err != nil {
		return nil, err
	}
	return children, nil
}

// SumCompletedRefunds returns the absolute cents already refunded against a
// payment. Refund rows store negative amounts, so the sum is negated here.
func (r *repository) SumCompletedRefunds(ctx context.Context, parentID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount_cents), 0)").
		Where("parent_transaction_id = ? AND kind = ? AND status = ?",
			parentID, enums.TransactionKindRefund, enums.TransactionStatusCompleted).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return -total, nil
}

func (r *repository) ListByClub(ctx context.Context, clubID uuid.UUID, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.Transaction, *pagination.Cursor, error) {
	normalized := pagination.NormalizeLimit(limit)
	buffered := pagination.LimitWithBuffer(limit)

	query := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("club_id = ?", clubID)
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if cursor != nil {
		// The cursor names the first row of the requested page, so the
		// bound is inclusive.
		query = query.Where("(created_at, id) <= (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Transaction
	if err := query.Order("created_at DESC, id DESC").Limit(buffered).Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	if len(rows) > normalized {
		next := rows[normalized]
		rows = rows[:normalized]
		return rows, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return rows, nil, nil
}

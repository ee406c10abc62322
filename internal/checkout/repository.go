package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clubline/clubline-backend/pkg/db/models"
	"github.com/clubline/clubline-backend/pkg/enums"
)

// Repository persists hosted checkout sessions and the credit grants that
// platform-account bundle purchases produce.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, session *models.CheckoutSession) error
	Update(ctx context.Context, session *models.CheckoutSession) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.CheckoutSession, error)
	FindByProcessorSessionID(ctx context.Context, processorSessionID string) (*models.CheckoutSession, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, paymentIntentID string) (bool, error)
	MarkExpired(ctx context.Context, id uuid.UUID) (bool, error)
	InsertCreditGrant(ctx context.Context, grant *models.CreditGrant) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a checkout repository backed by the provided DB handle.
func NewRepository(db *gorm.DB) Repository {
	if db == nil {
		return nil
	}
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, session *models.CheckoutSession) error {
	if session == nil {
		return gorm.ErrInvalidData
	}
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *repository) Update(ctx context.Context, session *models.CheckoutSession) error {
	if session == nil {
		return gorm.ErrInvalidData
	}
	return r.db.WithContext(ctx).Save(session).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.CheckoutSession, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var session models.CheckoutSession
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *repository) FindByProcessorSessionID(ctx context.Context, processorSessionID string) (*models.CheckoutSession, error) {
	if processorSessionID == "" {
		return nil, nil
	}
	var session models.CheckoutSession
	err := r.db.WithContext(ctx).
		Where("processor_session_id = ?", processorSessionID).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// MarkCompleted transitions a pending session to completed and stamps the
// payment intent that paid it. Redeliveries see zero rows affected.
func (r *repository) MarkCompleted(ctx context.Context, id uuid.UUID, paymentIntentID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.CheckoutSession{}).
		Where("id = ? AND status = ?", id, enums.CheckoutSessionStatusPending).
		Updates(map[string]interface{}{
			"status":            enums.CheckoutSessionStatusCompleted,
			"payment_intent_id": paymentIntentID,
			"updated_at":        time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) MarkExpired(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.CheckoutSession{}).
		Where("id = ? AND status = ?", id, enums.CheckoutSessionStatusPending).
		Updates(map[string]interface{}{
			"status":     enums.CheckoutSessionStatusExpired,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// InsertCreditGrant records a bundle purchase once per processor session.
// Returns false when a redelivered event already granted the credits.
func (r *repository) InsertCreditGrant(ctx context.Context, grant *models.CreditGrant) (bool, error) {
	if grant == nil {
		return false, gorm.ErrInvalidData
	}
	if grant.ID == uuid.Nil {
		grant.ID = uuid.New()
	}
	result := r.db.WithContext(ctx).Exec(
		"INSERT INTO credit_grants (id, club_id, credits, amount_cents, processor_session_id, payment_intent_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT (processor_session_id) DO NOTHING",
		grant.ID,
		grant.ClubID,
		grant.Credits,
		grant.AmountCents,
		grant.ProcessorSessionID,
		grant.PaymentIntentID,
		time.Now().UTC(),
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

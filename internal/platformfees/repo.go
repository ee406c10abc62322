package platformfees

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clubline/clubline-backend/pkg/db/models"
)

// Repository persists per-club-per-period fee locks. A lock row is the
// at-most-once record that a recurring platform fee rode a checkout this
// period; uniqueness lives on (club_id, period_key).
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	TryInsert(ctx context.Context, lock *models.AccountFeeLock) (bool, error)
	Revive(ctx context.Context, clubID uuid.UUID, periodKey string, feeCents int64) (bool, error)
	FindByPeriod(ctx context.Context, clubID uuid.UUID, periodKey string) (*models.AccountFeeLock, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.AccountFeeLock, error)
	Release(ctx context.Context, lockID uuid.UUID) (bool, error)
	AttachSession(ctx context.Context, lockID, sessionID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a fee lock repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// TryInsert claims the period. The id must be set by the caller so a winning
// insert knows its own lock without a second read.
func (r *repository) TryInsert(ctx context.Context, lock *models.AccountFeeLock) (bool, error) {
	result := r.db.WithContext(ctx).Exec(
		`INSERT INTO account_fee_locks (id, club_id, period_key, should_charge, fee_cents, created_at) VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT (club_id, period_key) DO NOTHING`,
		lock.ID, lock.ClubID, lock.PeriodKey, lock.ShouldCharge, lock.FeeCents, time.Now().UTC(),
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Revive re-arms a lock that a failed checkout released earlier in the same
// period. The guard on released_at makes concurrent revivals race safely.
func (r *repository) Revive(ctx context.Context, clubID uuid.UUID, periodKey string, feeCents int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.AccountFeeLock{}).
		Where("club_id = ? AND period_key = ? AND released_at IS NOT NULL", clubID, periodKey).
		Updates(map[string]interface{}{
			"released_at":         nil,
			"fee_cents":           feeCents,
			"checkout_session_id": nil,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) FindByPeriod(ctx context.Context, clubID uuid.UUID, periodKey string) (*models.AccountFeeLock, error) {
	var lock models.AccountFeeLock
	if err := r.db.WithContext(ctx).
		Where("club_id = ? AND period_key = ?", clubID, periodKey).
		First(&lock).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &lock, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.AccountFeeLock, error) {
	var lock models.AccountFeeLock
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&lock).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &lock, nil
}

// Release marks the lock reusable within its period. The row stays for
// audit; a later checkout revives it instead of inserting a duplicate.
func (r *repository) Release(ctx context.Context, lockID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.AccountFeeLock{}).
		Where("id = ? AND released_at IS NULL", lockID).
		UpdateColumn("released_at", time.Now().UTC())
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) AttachSession(ctx context.Context, lockID, sessionID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.AccountFeeLock{}).
		Where("id = ?", lockID).
		UpdateColumn("checkout_session_id", sessionID).Error
}

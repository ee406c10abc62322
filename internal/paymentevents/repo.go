package paymentevents

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/clubline/clubline-backend/pkg/db/models"
	"github.com/clubline/clubline-backend/pkg/enums"
)

// Repository persists webhook claim records. Rows are insert-once: nothing
// ever deletes a claim, and terminal rows are never rewritten.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, eventID, eventType string) (bool, error)
	FindByID(ctx context.Context, eventID string) (*models.PaymentEvent, error)
	ReclaimStale(ctx context.Context, eventID string, cutoff time.Time) (bool, error)
	MarkCompleted(ctx context.Context, eventID string) (bool, error)
	MarkFailed(ctx context.Context, eventID string, cause string) (bool, error)
	CountStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payment event repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Insert claims the event id. The conflict target is the primary key, so a
// redelivered id is a silent no-op and the return reports whether this call
// created the row.
func (r *repository) Insert(ctx context.Context, eventID, eventType string) (bool, error) {
	result := r.db.WithContext(ctx).Exec(
		`INSERT INTO payment_events (event_id, event_type, status, claimed_at) VALUES (?, ?, ?, ?) ON CONFLICT (event_id) DO NOTHING`,
		eventID, eventType, enums.PaymentEventStatusProcessing, time.Now().UTC(),
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) FindByID(ctx context.Context, eventID string) (*models.PaymentEvent, error) {
	var record models.PaymentEvent
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// ReclaimStale takes over a claim whose worker died mid-flight. The guarded
// update only matches rows still in processing with a claimed_at older than
// the cutoff, so concurrent redeliveries race safely: exactly one wins.
func (r *repository) ReclaimStale(ctx context.Context, eventID string, cutoff time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PaymentEvent{}).
		Where("event_id = ? AND status = ? AND claimed_at < ?", eventID, enums.PaymentEventStatusProcessing, cutoff).
		Updates(map[string]interface{}{
			"claimed_at": time.Now().UTC(),
			"error":      nil,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) MarkCompleted(ctx context.Context, eventID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PaymentEvent{}).
		Where("event_id = ? AND status = ?", eventID, enums.PaymentEventStatusProcessing).
		Updates(map[string]interface{}{
			"status":       enums.PaymentEventStatusCompleted,
			"completed_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) MarkFailed(ctx context.Context, eventID string, cause string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PaymentEvent{}).
		Where("event_id = ? AND status = ?", eventID, enums.PaymentEventStatusProcessing).
		Updates(map[string]interface{}{
			"status":    enums.PaymentEventStatusFailed,
			"failed_at": time.Now().UTC(),
			"error":     cause,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CountStaleProcessing reports claims stuck in processing past the cutoff.
// Stuck claims never retry on their own, so the cron worker watches this.
func (r *repository) CountStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PaymentEvent{}).
		Where("status = ? AND claimed_at < ?", enums.PaymentEventStatusProcessing, cutoff).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

package registrations

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clubline/clubline-backend/pkg/db/models"
	"github.com/clubline/clubline-backend/pkg/enums"
)

// Repository handles event registration persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create persists a new pending registration.
func (r *Repository) Create(ctx context.Context, registration *models.Registration) error {
	if registration == nil {
		return fmt.Errorf("registration is required")
	}
	return r.db.WithContext(ctx).Create(registration).Error
}

// FindByID loads a registration, nil when absent.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	var registration models.Registration
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&registration).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &registration, nil
}

// ListByEventID returns an event's registrations, oldest first.
func (r *Repository) ListByEventID(ctx context.Context, eventID uuid.UUID) ([]models.Registration, error) {
	var rows []models.Registration
	if err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Confirm flips a pending registration to confirmed. Returns false when the
// registration was not pending, so replayed payment events are no-ops.
func (r *Repository) Confirm(ctx context.Context, id uuid.UUID) (bool, error) {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&models.Registration{}).
		Where("id = ? AND status = ?", id, enums.RegistrationStatusPending).
		Updates(map[string]interface{}{
			"status":       enums.RegistrationStatusConfirmed,
			"confirmed_at": now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Cancel marks a registration canceled regardless of prior status.
func (r *Repository) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&models.Registration{}).
		Where("id = ? AND status <> ?", id, enums.RegistrationStatusCanceled).
		Updates(map[string]interface{}{
			"status":      enums.RegistrationStatusCanceled,
			"canceled_at": now,
			"updated_at":  now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

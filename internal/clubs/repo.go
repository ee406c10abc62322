package clubs

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clubline/clubline-backend/pkg/db/models"
)

// Repository handles club and membership persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to club operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create persists a new club row.
func (r *Repository) Create(ctx context.Context, dto CreateClubDTO) (*models.Club, error) {
	club := dto.ToModel()
	if err := r.db.WithContext(ctx).Create(club).Error; err != nil {
		return nil, err
	}
	return club, nil
}

// FindByID loads a club by its UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Club, error) {
	var club models.Club
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&club).Error; err != nil {
		return nil, err
	}
	return &club, nil
}

// FindBySlug loads a club by its public slug.
func (r *Repository) FindBySlug(ctx context.Context, slug string) (*models.Club, error) {
	var club models.Club
	if err := r.db.WithContext(ctx).
		Where("slug = ?", slug).
		First(&club).Error; err != nil {
		return nil, err
	}
	return &club, nil
}

// FindByConnectedAccountID resolves a club from its processor account.
func (r *Repository) FindByConnectedAccountID(ctx context.Context, accountID string) (*models.Club, error) {
	if accountID == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var club models.Club
	if err := r.db.WithContext(ctx).
		Where("connected_account_id = ?", accountID).
		First(&club).Error; err != nil {
		return nil, err
	}
	return &club, nil
}

// Update saves the provided club.
func (r *Repository) Update(ctx context.Context, club *models.Club) error {
	if club == nil {
		return fmt.Errorf("club is required")
	}
	return r.db.WithContext(ctx).Save(club).Error
}

// FindByIDWithTx loads a club using the provided transaction.
func (r *Repository) FindByIDWithTx(tx *gorm.DB, id uuid.UUID) (*models.Club, error) {
	if tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	var club models.Club
	if err := tx.First(&club, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &club, nil
}

// UpdateWithTx persists the club using the provided transaction.
func (r *Repository) UpdateWithTx(tx *gorm.DB, club *models.Club) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	if club == nil {
		return fmt.Errorf("club is required")
	}
	return tx.Save(club).Error
}

// AddCreditsWithTx tops up the club's communication credit balance.
func (r *Repository) AddCreditsWithTx(tx *gorm.DB, clubID uuid.UUID, credits int64) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	if credits <= 0 {
		return fmt.Errorf("credits must be positive")
	}
	return tx.
		Model(&models.Club{}).
		Where("id = ?", clubID).
		UpdateColumn("credit_balance", gorm.Expr("credit_balance + ?", credits)).Error
}

// CreateMembership inserts a membership row.
func (r *Repository) CreateMembership(ctx context.Context, membership *models.ClubMembership) error {
	return r.db.WithContext(ctx).Create(membership).Error
}

// CreateMembershipWithTx inserts a membership row inside the transaction.
func (r *Repository) CreateMembershipWithTx(tx *gorm.DB, membership *models.ClubMembership) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	return tx.Create(membership).Error
}

// FindMembership returns the membership for a user in a club, or nil.
func (r *Repository) FindMembership(ctx context.Context, clubID, userID uuid.UUID) (*models.ClubMembership, error) {
	var membership models.ClubMembership
	if err := r.db.WithContext(ctx).
		Where("club_id = ? AND user_id = ?", clubID, userID).
		First(&membership).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &membership, nil
}

// ListMemberships returns all membership rows for a club.
func (r *Repository) ListMemberships(ctx context.Context, clubID uuid.UUID) ([]models.ClubMembership, error) {
	var memberships []models.ClubMembership
	if err := r.db.WithContext(ctx).
		Where("club_id = ?", clubID).
		Order("created_at ASC").
		Find(&memberships).Error; err != nil {
		return nil, err
	}
	return memberships, nil
}

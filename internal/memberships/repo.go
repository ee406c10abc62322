package memberships

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clubline/clubline-backend/pkg/db/models"
	"github.com/clubline/clubline-backend/pkg/enums"
)

// Repository exposes membership persistence operations: club role memberships
// used for authorization, and paid plan enrollments driven by the ledger.
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

// ListUserClubs returns the clubs a user belongs to along with membership metadata.
func (r *Repository) ListUserClubs(ctx context.Context, userID uuid.UUID) ([]MembershipWithClub, error) {
	var rows []membershipWithClubRow

	err := r.db.WithContext(ctx).
		Model(&models.ClubMembership{}).
		Select("club_memberships.*, clubs.name AS club_name, clubs.slug AS club_slug").
		Joins("JOIN clubs ON clubs.id = club_memberships.club_id").
		Where("club_memberships.user_id = ?", userID).
		Order("clubs.name").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	return membershipRowsToDTO(rows), nil
}

// GetMembership retrieves a membership by user and club.
func (r *Repository) GetMembership(ctx context.Context, userID, clubID uuid.UUID) (*models.ClubMembership, error) {
	var membership models.ClubMembership
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND club_id = ?", userID, clubID).
		First(&membership).Error
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

// GetMembershipWithClub returns membership details joined with club metadata.
func (r *Repository) GetMembershipWithClub(ctx context.Context, userID, clubID uuid.UUID) (*MembershipWithClub, error) {
	var row membershipWithClubRow
	err := r.db.WithContext(ctx).
		Model(&models.ClubMembership{}).
		Select("club_memberships.*, clubs.name AS club_name, clubs.slug AS club_slug").
		Joins("JOIN clubs ON clubs.id = club_memberships.club_id").
		Where("club_memberships.user_id = ? AND club_memberships.club_id = ?", userID, clubID).
		Take(&row).Error
	if err != nil {
		return nil, err
	}
	dto := membershipWithClubFromRow(row)
	return &dto, nil
}

// CreateMembership persists a new club membership record.
func (r *Repository) CreateMembership(ctx context.Context, clubID, userID uuid.UUID, role enums.MemberRole, invitedBy *uuid.UUID, status enums.MembershipStatus) (*models.ClubMembership, error) {
	if !role.IsValid() {
		return nil, fmt.Errorf("invalid member role %q", role)
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid membership status %q", status)
	}

	membership := &models.ClubMembership{
		ClubID:          clubID,
		UserID:          userID,
		Role:            role,
		Status:          status,
		InvitedByUserID: invitedBy,
	}

	if err := r.db.WithContext(ctx).Create(membership).Error; err != nil {
		return nil, err
	}
	return membership, nil
}

// UserHasRole reports whether the user holds one of the provided roles for
// the club. Only active memberships grant roles.
func (r *Repository) UserHasRole(ctx context.Context, userID, clubID uuid.UUID, roles ...enums.MemberRole) (bool, error) {
	if len(roles) == 0 {
		return false, nil
	}

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ClubMembership{}).
		Where("user_id = ? AND club_id = ? AND role IN ? AND status = ?", userID, clubID, roles, enums.MembershipStatusActive).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListClubUsers returns memberships for the club along with user metadata.
func (r *Repository) ListClubUsers(ctx context.Context, clubID uuid.UUID) ([]ClubUserDTO, error) {
	var rows []clubUserRow
	err := r.db.WithContext(ctx).
		Model(&models.ClubMembership{}).
		Select("club_memberships.*, users.email, users.first_name, users.last_name, users.last_login_at").
		Joins("JOIN users ON users.id = club_memberships.user_id").
		Where("club_memberships.club_id = ?", clubID).
		Order("club_memberships.created_at").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return clubUsersFromRows(rows), nil
}

// FindPlanByID loads a membership plan, nil when absent.
func (r *Repository) FindPlanByID(ctx context.Context, planID uuid.UUID) (*models.MembershipPlan, error) {
	var plan models.MembershipPlan
	if err := r.db.WithContext(ctx).
		Where("id = ?", planID).
		First(&plan).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

// CreateEnrollment persists a pending paid plan enrollment.
func (r *Repository) CreateEnrollment(ctx context.Context, membership *models.Membership) error {
	if membership == nil {
		return fmt.Errorf("membership is required")
	}
	return r.db.WithContext(ctx).Create(membership).Error
}

// FindEnrollmentByID loads a paid enrollment, nil when absent.
func (r *Repository) FindEnrollmentByID(ctx context.Context, id uuid.UUID) (*models.Membership, error) {
	var membership models.Membership
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&membership).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &membership, nil
}

// ActivateEnrollment flips a pending enrollment to active with its paid term.
// Returns false when the enrollment was not pending, so replayed payment
// events do not extend the term twice.
func (r *Repository) ActivateEnrollment(ctx context.Context, id uuid.UUID, startsAt, expiresAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Membership{}).
		Where("id = ? AND status = ?", id, enums.MembershipStatusPending).
		Updates(map[string]interface{}{
			"status":     enums.MembershipStatusActive,
			"starts_at":  startsAt,
			"expires_at": expiresAt,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FindEnrollmentsExpiringBetween returns active enrollments whose paid term
// ends inside [from, to).
func (r *Repository) FindEnrollmentsExpiringBetween(ctx context.Context, from, to time.Time) ([]models.Membership, error) {
	var rows []models.Membership
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at >= ? AND expires_at < ?", enums.MembershipStatusActive, from, to).
		Order("expires_at ASC").
		Find(&rows).Error
	return rows, err
}

// ExpireEnrollments lapses every active enrollment whose term ended before
// the cutoff and reports how many rows flipped.
func (r *Repository) ExpireEnrollments(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Membership{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", enums.MembershipStatusActive, cutoff).
		Updates(map[string]interface{}{
			"status":     enums.MembershipStatusExpired,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

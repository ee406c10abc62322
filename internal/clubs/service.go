package clubs

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/clubline/clubline-backend/pkg/db"
	"github.com/clubline/clubline-backend/pkg/db/models"
	"github.com/clubline/clubline-backend/pkg/enums"
	pkgerrors "github.com/clubline/clubline-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes club operations.
type Service interface {
	Create(ctx context.Context, input CreateClubInput) (*ClubDTO, error)
	GetByID(ctx context.Context, id uuid.UUID) (*ClubDTO, error)
	GetBySlug(ctx context.Context, slug string) (*ClubDTO, error)
	AddMember(ctx context.Context, actorID, clubID, userID uuid.UUID, role enums.MemberRole) (*MemberDTO, error)
	ListMembers(ctx context.Context, clubID uuid.UUID) ([]MemberDTO, error)
}

// CreateClubInput captures the data required to stand up a club.
type CreateClubInput struct {
	Name        string
	Slug        string
	Description *string
	Email       *string
	Phone       *string
	OwnerID     uuid.UUID
}

type service struct {
	repo *Repository
	tx   txRunner
}

// NewService builds a club service with the provided repository.
func NewService(repo *Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "club repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) Create(ctx context.Context, input CreateClubInput) (*ClubDTO, error) {
	name := strings.TrimSpace(input.Name)
	slug := strings.ToLower(strings.TrimSpace(input.Slug))
	if name == "" || slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "club name and slug required")
	}
	if input.OwnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}

	club := CreateClubDTO{
		Name:        name,
		Slug:        slug,
		Description: input.Description,
		Email:       input.Email,
		Phone:       input.Phone,
		OwnerID:     input.OwnerID,
	}.ToModel()

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(club).Error; err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "club slug already taken")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create club")
		}
		membership := &models.ClubMembership{
			ClubID: club.ID,
			UserID: input.OwnerID,
			Role:   enums.MemberRoleOwner,
			Status: enums.MembershipStatusActive,
		}
		if err := s.repo.CreateMembershipWithTx(tx, membership); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create owner membership")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(club), nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*ClubDTO, error) {
	club, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "club not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load club")
	}
	return FromModel(club), nil
}

func (s *service) GetBySlug(ctx context.Context, slug string) (*ClubDTO, error) {
	club, err := s.repo.FindBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "club not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load club")
	}
	return FromModel(club), nil
}

func (s *service) AddMember(ctx context.Context, actorID, clubID, userID uuid.UUID, role enums.MemberRole) (*MemberDTO, error) {
	if !role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid member role")
	}
	if role == enums.MemberRoleOwner {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ownership is assigned at club creation")
	}

	existing, err := s.repo.FindMembership(ctx, clubID, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check membership")
	}
	if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "user already belongs to club")
	}

	membership := &models.ClubMembership{
		ClubID:          clubID,
		UserID:          userID,
		Role:            role,
		Status:          enums.MembershipStatusActive,
		InvitedByUserID: &actorID,
	}
	if err := s.repo.CreateMembership(ctx, membership); err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_club_memberships_club_user") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "user already belongs to club")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create membership")
	}
	dto := memberFromModel(*membership)
	return &dto, nil
}

func (s *service) ListMembers(ctx context.Context, clubID uuid.UUID) ([]MemberDTO, error) {
	rows, err := s.repo.ListMemberships(ctx, clubID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list memberships")
	}
	members := make([]MemberDTO, 0, len(rows))
	for _, row := range rows {
		members = append(members, memberFromModel(row))
	}
	return members, nil
}

package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clubline/clubline-backend/internal/clubs"
	"github.com/clubline/clubline-backend/internal/memberships"
	"github.com/clubline/clubline-backend/internal/users"
	"github.com/clubline/clubline-backend/pkg/config"
	dbpkg "github.com/clubline/clubline-backend/pkg/db"
	"github.com/clubline/clubline-backend/pkg/db/models"
	"github.com/clubline/clubline-backend/pkg/enums"
	pkgerrors "github.com/clubline/clubline-backend/pkg/errors"
	"github.com/clubline/clubline-backend/pkg/security"
	"github.com/clubline/clubline-backend/pkg/types"
)

// RegisterRequest contains the payload required for onboarding a new club.
type RegisterRequest struct {
	FirstName    string         `json:"first_name" validate:"required"`
	LastName     string         `json:"last_name" validate:"required"`
	Email        string         `json:"email" validate:"required,email"`
	Password     string         `json:"password" validate:"required"`
	Phone        *string        `json:"phone,omitempty"`
	ClubName     string         `json:"club_name" validate:"required"`
	ClubSlug     string         `json:"club_slug" validate:"required"`
	VenueAddress *types.Address `json:"venue_address,omitempty"`
	AcceptTOS    bool           `json:"accept_tos"`
}

// RegisterService handles the onboarding transaction.
type RegisterService interface {
	Register(ctx context.Context, req RegisterRequest) error
}

type registerTxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type registerUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error)
	UpdateClubIDs(ctx context.Context, id uuid.UUID, clubIDs []uuid.UUID) error
}

type registerClubRepository interface {
	Create(ctx context.Context, dto clubs.CreateClubDTO) (*models.Club, error)
}

type registerMembershipRepository interface {
	CreateMembership(ctx context.Context, clubID, userID uuid.UUID, role enums.MemberRole, invitedBy *uuid.UUID, status enums.MembershipStatus) (*models.ClubMembership, error)
}

// RegisterServiceParams packages the dependencies for the registration flow.
// The repo factories default to the concrete repositories bound to the
// transaction; tests inject stubs.
type RegisterServiceParams struct {
	DB                    *dbpkg.Client
	TxRunner              registerTxRunner
	UserRepoFactory       func(tx *gorm.DB) registerUserRepository
	ClubRepoFactory       func(tx *gorm.DB) registerClubRepository
	MembershipRepoFactory func(tx *gorm.DB) registerMembershipRepository
	PasswordConfig        config.PasswordConfig
}

type registerService struct {
	tx             registerTxRunner
	userRepo       func(tx *gorm.DB) registerUserRepository
	clubRepo       func(tx *gorm.DB) registerClubRepository
	membershipRepo func(tx *gorm.DB) registerMembershipRepository
	passwordCfg    config.PasswordConfig
}

// NewRegisterService builds a registration service with the provided dependencies.
func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	runner := params.TxRunner
	if runner == nil {
		if params.DB == nil {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
		}
		runner = params.DB
	}
	userFactory := params.UserRepoFactory
	if userFactory == nil {
		userFactory = func(tx *gorm.DB) registerUserRepository { return users.NewRepository(tx) }
	}
	clubFactory := params.ClubRepoFactory
	if clubFactory == nil {
		clubFactory = func(tx *gorm.DB) registerClubRepository { return clubs.NewRepository(tx) }
	}
	membershipFactory := params.MembershipRepoFactory
	if membershipFactory == nil {
		membershipFactory = func(tx *gorm.DB) registerMembershipRepository { return memberships.NewRepository(tx) }
	}
	return &registerService{
		tx:             runner,
		userRepo:       userFactory,
		clubRepo:       clubFactory,
		membershipRepo: membershipFactory,
		passwordCfg:    params.PasswordConfig,
	}, nil
}

// Register creates the founding user, their club, and the owner membership in
// one transaction. An existing account may found another club by presenting
// its current password; the email check never reveals which branch ran.
func (s *registerService) Register(ctx context.Context, req RegisterRequest) error {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	clubName := strings.TrimSpace(req.ClubName)
	if clubName == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "club_name is required")
	}
	clubSlug := strings.ToLower(strings.TrimSpace(req.ClubSlug))
	if clubSlug == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "club_slug is required")
	}
	if !req.AcceptTOS {
		return pkgerrors.New(pkgerrors.CodeValidation, "accept_tos must be true")
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := s.userRepo(tx)
		clubRepo := s.clubRepo(tx)
		membershipRepo := s.membershipRepo(tx)

		user, err := s.resolveUser(ctx, userRepo, req, email, passwordHash)
		if err != nil {
			return err
		}

		club, err := clubRepo.Create(ctx, clubs.CreateClubDTO{
			Name:         clubName,
			Slug:         clubSlug,
			Email:        &email,
			Phone:        req.Phone,
			VenueAddress: req.VenueAddress,
			OwnerID:      user.ID,
		})
		if err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "club slug already taken")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create club")
		}

		if _, err := membershipRepo.CreateMembership(
			ctx,
			club.ID,
			user.ID,
			enums.MemberRoleOwner,
			nil,
			enums.MembershipStatusActive,
		); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create membership")
		}

		clubIDs := make([]uuid.UUID, 0, len(user.ClubIDs)+1)
		clubIDs = append(clubIDs, user.ClubIDs...)
		clubIDs = append(clubIDs, club.ID)
		if err := userRepo.UpdateClubIDs(ctx, user.ID, clubIDs); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "associate club with user")
		}

		return nil
	})
}

// resolveUser returns the account to attach the new club to: the existing
// user when the presented password matches, a fresh user otherwise.
func (s *registerService) resolveUser(ctx context.Context, userRepo registerUserRepository, req RegisterRequest, email, passwordHash string) (*models.User, error) {
	existing, err := userRepo.FindByEmail(ctx, email)
	if err == nil {
		valid, verifyErr := security.VerifyPassword(req.Password, existing.PasswordHash)
		if verifyErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, verifyErr, "verify password")
		}
		if !valid || !existing.IsActive {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
	}

	user, err := userRepo.Create(ctx, users.CreateUserDTO{
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
	}
	return user, nil
}

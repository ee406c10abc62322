package accounts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/clubline/clubline-backend/pkg/db/models"
	"github.com/clubline/clubline-backend/pkg/enums"
	pkgerrors "github.com/clubline/clubline-backend/pkg/errors"
	"github.com/clubline/clubline-backend/pkg/logger"
)

type clubStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Club, error)
	Update(ctx context.Context, club *models.Club) error
}

// Service reads a club's connected-account onboarding state.
type Service interface {
	// GetStatus returns the cached onboarding state without a processor call.
	GetStatus(ctx context.Context, clubID uuid.UUID) (*AccountStatusDTO, error)
	// Refresh fetches live state from the processor and updates the cache.
	Refresh(ctx context.Context, clubID uuid.UUID) (*AccountStatusDTO, error)
}

// ServiceParams wires account service dependencies.
type ServiceParams struct {
	Clubs        clubStore
	StripeClient StripeAccountClient
	Logger       *logger.Logger
}

type service struct {
	clubs  clubStore
	stripe StripeAccountClient
	logg   *logger.Logger
}

// NewService validates dependencies and builds the account status service.
func NewService(params ServiceParams) (Service, error) {
	if params.Clubs == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "club repository required")
	}
	if params.StripeClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe client required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{
		clubs:  params.Clubs,
		stripe: params.StripeClient,
		logg:   params.Logger,
	}, nil
}

func (s *service) GetStatus(ctx context.Context, clubID uuid.UUID) (*AccountStatusDTO, error) {
	club, err := s.loadClub(ctx, clubID)
	if err != nil {
		return nil, err
	}
	return &AccountStatusDTO{
		ClubID:             club.ID,
		ConnectedAccountID: club.ConnectedAccountID,
		Status:             club.AccountStatus,
		ChargesEnabled:     club.AccountStatus == enums.AccountStatusActive,
		CheckedAt:          club.UpdatedAt,
	}, nil
}

func (s *service) Refresh(ctx context.Context, clubID uuid.UUID) (*AccountStatusDTO, error) {
	club, err := s.loadClub(ctx, clubID)
	if err != nil {
		return nil, err
	}
	if club.ConnectedAccountID == nil || *club.ConnectedAccountID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "club has no connected account")
	}

	account, err := s.stripe.GetAccount(ctx, *club.ConnectedAccountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch connected account")
	}

	status := deriveAccountStatus(account)
	if status != club.AccountStatus {
		previous := club.AccountStatus
		club.AccountStatus = status
		if err := s.clubs.Update(ctx, club); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update account status")
		}
		logCtx := s.logg.WithClubID(ctx, club.ID.String())
		s.logg.Info(logCtx, "connected account status changed from "+previous.String()+" to "+status.String())
	}

	dto := &AccountStatusDTO{
		ClubID:             club.ID,
		ConnectedAccountID: club.ConnectedAccountID,
		Status:             status,
		ChargesEnabled:     account.ChargesEnabled,
		PayoutsEnabled:     account.PayoutsEnabled,
		DetailsSubmitted:   account.DetailsSubmitted,
		CheckedAt:          time.Now().UTC(),
	}
	if account.Requirements != nil {
		dto.RequirementsDue = account.Requirements.CurrentlyDue
	}
	return dto, nil
}

func (s *service) loadClub(ctx context.Context, clubID uuid.UUID) (*models.Club, error) {
	if clubID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "club id required")
	}
	club, err := s.clubs.FindByID(ctx, clubID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "club not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load club")
	}
	if club == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "club not found")
	}
	return club, nil
}

// deriveAccountStatus collapses processor onboarding flags into the local
// enum. Charges and payouts both enabled means the club can take payments.
func deriveAccountStatus(account *stripe.Account) enums.AccountStatus {
	switch {
	case account.ChargesEnabled && account.PayoutsEnabled:
		return enums.AccountStatusActive
	case !account.DetailsSubmitted:
		return enums.AccountStatusPending
	case account.Requirements != nil && account.Requirements.DisabledReason != "":
		return enums.AccountStatusDisabled
	default:
		return enums.AccountStatusRestricted
	}
}

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clubline/clubline-backend/internal/memberships"
	pkgAuth "github.com/clubline/clubline-backend/pkg/auth"
	"github.com/clubline/clubline-backend/pkg/auth/session"
	"github.com/clubline/clubline-backend/pkg/config"
	"github.com/clubline/clubline-backend/pkg/enums"
	pkgerrors "github.com/clubline/clubline-backend/pkg/errors"
)

// SwitchClubInput captures the data required to switch the active club.
// The caller proves session ownership by presenting its refresh token;
// the switch rotates the session so the old token pair stops working.
type SwitchClubInput struct {
	UserID        uuid.UUID
	ClubID        uuid.UUID
	AccessTokenID string
	RefreshToken  string
}

// SwitchClubResult returns the tokens issued after switching clubs.
type SwitchClubResult struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	Club         ClubSummary `json:"club"`
}

type switchMembershipsRepository interface {
	GetMembershipWithClub(ctx context.Context, userID, clubID uuid.UUID) (*memberships.MembershipWithClub, error)
}

type switchSessionRotator interface {
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
}

type switchClubService struct {
	memberships switchMembershipsRepository
	session     switchSessionRotator
	jwtCfg      config.JWTConfig
}

// SwitchClubServiceParams bundles dependencies for the switch flow.
type SwitchClubServiceParams struct {
	MembershipsRepo switchMembershipsRepository
	SessionManager  switchSessionRotator
	JWTConfig       config.JWTConfig
}

// NewSwitchClubService constructs the service.
func NewSwitchClubService(params SwitchClubServiceParams) (SwitchClubService, error) {
	if params.MembershipsRepo == nil {
		return nil, errors.New("memberships repository required")
	}
	if params.SessionManager == nil {
		return nil, errors.New("session manager required")
	}
	return &switchClubService{
		memberships: params.MembershipsRepo,
		session:     params.SessionManager,
		jwtCfg:      params.JWTConfig,
	}, nil
}

// SwitchClubService is the interface exposed to the controller.
type SwitchClubService interface {
	Switch(ctx context.Context, input SwitchClubInput) (*SwitchClubResult, error)
}

func (s *switchClubService) Switch(ctx context.Context, input SwitchClubInput) (*SwitchClubResult, error) {
	membership, err := s.memberships.GetMembershipWithClub(ctx, input.UserID, input.ClubID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "club membership required")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup membership")
	}
	if membership.Status != enums.MembershipStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "club membership inactive")
	}

	newAccessID, newRefreshToken, err := s.session.Rotate(ctx, input.AccessTokenID, input.RefreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "rotate session")
	}

	payload := pkgAuth.AccessTokenPayload{
		UserID:       input.UserID,
		ActiveClubID: &input.ClubID,
		Role:         membership.Role,
		JTI:          newAccessID,
	}

	accessToken, err := pkgAuth.MintAccessToken(s.jwtCfg, time.Now().UTC(), payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}

	result := &SwitchClubResult{
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
		Club: ClubSummary{
			ID:   membership.ClubID,
			Name: membership.ClubName,
			Slug: membership.ClubSlug,
			Role: membership.Role,
		},
	}

	return result, nil
}

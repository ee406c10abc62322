package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/clubline/clubline-backend/internal/platformfees"
	pkgcheckout "github.com/clubline/clubline-backend/pkg/checkout"
	"github.com/clubline/clubline-backend/pkg/config"
	"github.com/clubline/clubline-backend/pkg/db/models"
	"github.com/clubline/clubline-backend/pkg/enums"
	pkgerrors "github.com/clubline/clubline-backend/pkg/errors"
	"github.com/clubline/clubline-backend/pkg/logger"
	"github.com/clubline/clubline-backend/pkg/types"
)

type clubLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Club, error)
}

type feeClaimer interface {
	TryClaim(ctx context.Context, clubID uuid.UUID, now time.Time) (platformfees.ClaimDecision, error)
	Release(ctx context.Context, lockID uuid.UUID) error
	AttachSession(ctx context.Context, lockID, sessionID uuid.UUID) error
}

// Service opens hosted checkout sessions with the processor.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, input CreateSessionInput) (*SessionDTO, error)
	GetForClub(ctx context.Context, clubID, sessionID uuid.UUID) (*SessionDTO, error)
}

// ServiceParams wires the checkout service dependencies.
type ServiceParams struct {
	Repo         Repository
	Clubs        clubLoader
	Fees         feeClaimer
	StripeClient StripeCheckoutClient
	Config       config.PaymentsConfig
	Logger       *logger.Logger
}

type service struct {
	repo   Repository
	clubs  clubLoader
	fees   feeClaimer
	stripe StripeCheckoutClient
	cfg    config.PaymentsConfig
	logg   *logger.Logger
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "checkout repository required")
	}
	if params.Clubs == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "club loader required")
	}
	if params.Fees == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "fee claimer required")
	}
	if params.StripeClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	return &service{
		repo:   params.Repo,
		clubs:  params.Clubs,
		fees:   params.Fees,
		stripe: params.StripeClient,
		cfg:    params.Config,
		logg:   params.Logger,
	}, nil
}

// Create validates the purchase, claims the recurring platform fee when this
// is the club's first connected-account checkout of the billing period, and
// opens the processor session. A processor failure releases the fee claim so
// the next checkout of the period can carry it.
func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreateSessionInput) (*SessionDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if err := input.Purpose.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment purpose")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	club, err := s.clubs.FindByID(ctx, input.Purpose.ClubID())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "club not found")
		}
		return nil, err
	}

	connected := input.Purpose.Kind != enums.PurposeKindCreditBundle

	var destinationAccount string
	if connected {
		if club.ConnectedAccountID == nil || *club.ConnectedAccountID == "" {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "club has no connected payout account")
		}
		if club.AccountStatus != enums.AccountStatusActive {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "club payouts are not enabled").WithDetails(map[string]any{
				"account_status": club.AccountStatus,
			})
		}
		destinationAccount = *club.ConnectedAccountID
	}

	policy := pkgcheckout.FeePolicy{}
	var claim platformfees.ClaimDecision
	if connected {
		policy.PlatformFeeBps = s.cfg.PlatformFeeBps
		if club.PlatformFeeBps != nil {
			policy.PlatformFeeBps = *club.PlatformFeeBps
		}
		claim, err = s.fees.TryClaim(ctx, club.ID, time.Now().UTC())
		if err != nil {
			return nil, err
		}
		if claim.ShouldCharge {
			policy.RecurringFeeCents = claim.FeeCents
		}
	}

	breakdown, err := pkgcheckout.Price(input.AmountCents, policy)
	if err != nil {
		s.releaseClaim(ctx, claim)
		return nil, err
	}

	row := &models.CheckoutSession{
		ID:                  uuid.New(),
		ClubID:              club.ID,
		UserID:              userID,
		Purpose:             input.Purpose,
		AmountCents:         breakdown.AmountCents,
		ApplicationFeeCents: breakdown.ApplicationFeeCents,
		RecurringFeeCents:   breakdown.RecurringFeeCents,
		Currency:            enums.CurrencyUSD,
		Status:              enums.CheckoutSessionStatusPending,
	}
	if claim.ShouldCharge {
		lockID := claim.LockID
		row.FeeLockID = &lockID
	}
	if err := s.repo.Create(ctx, row); err != nil {
		s.releaseClaim(ctx, claim)
		return nil, err
	}
	if claim.ShouldCharge {
		if err := s.fees.AttachSession(ctx, claim.LockID, row.ID); err != nil && s.logg != nil {
			s.logg.Warn(ctx, fmt.Sprintf("fee lock %s not linked to session %s: %v", claim.LockID, row.ID, err))
		}
	}

	metadata, err := input.Purpose.EncodeMetadata()
	if err != nil {
		s.releaseClaim(ctx, claim)
		return nil, err
	}
	metadata[types.MetadataKeySessionRef] = row.ID.String()

	sess, err := s.stripe.CreateSession(ctx, s.buildSessionParams(row, breakdown, destinationAccount, metadata))
	if err != nil {
		s.releaseClaim(ctx, claim)
		if _, markErr := s.repo.MarkExpired(ctx, row.ID); markErr != nil && s.logg != nil {
			s.logg.Warn(ctx, fmt.Sprintf("checkout session %s not marked expired: %v", row.ID, markErr))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checkout session creation failed")
	}

	row.ProcessorSessionID = &sess.ID
	if sess.URL != "" {
		url := sess.URL
		row.CheckoutURL = &url
	}
	if sess.ExpiresAt > 0 {
		expires := time.Unix(sess.ExpiresAt, 0).UTC()
		row.ExpiresAt = &expires
	}
	if err := s.repo.Update(ctx, row); err != nil {
		return nil, err
	}
	return toSessionDTO(row), nil
}

// GetForClub returns a session scoped to the owning club.
func (s *service) GetForClub(ctx context.Context, clubID, sessionID uuid.UUID) (*SessionDTO, error) {
	session, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil || session.ClubID != clubID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "checkout session not found")
	}
	return toSessionDTO(session), nil
}

// releaseClaim hands a claimed recurring fee back after a synchronous
// failure. Once the processor session exists the claim is never released.
func (s *service) releaseClaim(ctx context.Context, claim platformfees.ClaimDecision) {
	if !claim.ShouldCharge {
		return
	}
	if err := s.fees.Release(ctx, claim.LockID); err != nil && s.logg != nil {
		s.logg.Warn(ctx, fmt.Sprintf("fee lock %s not released: %v", claim.LockID, err))
	}
}

func (s *service) buildSessionParams(row *models.CheckoutSession, breakdown pkgcheckout.Breakdown, destinationAccount string, metadata map[string]string) *stripe.CheckoutSessionParams {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(s.cfg.CheckoutSuccessURL),
		CancelURL:         stripe.String(s.cfg.CheckoutCancelURL),
		ClientReferenceID: stripe.String(row.ID.String()),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(string(row.Currency))),
					UnitAmount: stripe.Int64(breakdown.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(lineItemName(row.Purpose)),
					},
				},
			},
		},
	}
	params.Metadata = metadata

	intentData := &stripe.CheckoutSessionPaymentIntentDataParams{}
	intentData.Metadata = metadata
	if destinationAccount != "" {
		intentData.TransferData = &stripe.CheckoutSessionPaymentIntentDataTransferDataParams{
			Destination: stripe.String(destinationAccount),
		}
		if fee := breakdown.TotalApplicationFeeCents(); fee > 0 {
			intentData.ApplicationFeeAmount = stripe.Int64(fee)
		}
	}
	params.PaymentIntentData = intentData
	return params
}

func lineItemName(purpose types.PaymentPurpose) string {
	switch purpose.Kind {
	case enums.PurposeKindEventRegistration:
		return "Event registration"
	case enums.PurposeKindMembership:
		return "Membership dues"
	case enums.PurposeKindCreditBundle:
		if purpose.CreditBundle != nil {
			return fmt.Sprintf("Credit bundle (%d credits)", purpose.CreditBundle.Credits)
		}
		return "Credit bundle"
	default:
		return "Club payment"
	}
}

package platformfees

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clubline/clubline-backend/pkg/db/models"
	pkgerrors "github.com/clubline/clubline-backend/pkg/errors"
	"github.com/clubline/clubline-backend/pkg/logger"
)

// ClaimDecision tells the checkout path whether to add the recurring
// platform fee to the session being built.
type ClaimDecision struct {
	ShouldCharge bool
	LockID       uuid.UUID
	FeeCents     int64
}

type ServiceParams struct {
	Repo            Repository
	MonthlyFeeCents int64
	Logger          *logger.Logger
}

// Service guards the recurring platform fee: at most one checkout per club
// per billing period carries it, even under concurrent attempts.
type Service struct {
	repo            Repository
	monthlyFeeCents int64
	logg            *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "fee lock repo required")
	}
	if params.MonthlyFeeCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "monthly fee must not be negative")
	}
	return &Service{
		repo:            params.Repo,
		monthlyFeeCents: params.MonthlyFeeCents,
		logg:            params.Logger,
	}, nil
}

// PeriodKeyFor buckets a timestamp into the monthly billing period.
func PeriodKeyFor(ts time.Time) string {
	return ts.UTC().Format("2006-01")
}

// TryClaim decides whether the checkout being created should carry the
// recurring fee. The first caller of a period wins the insert; a released
// lock from an earlier failed checkout may be revived instead. Everyone
// else gets a no-charge decision.
func (s *Service) TryClaim(ctx context.Context, clubID uuid.UUID, now time.Time) (ClaimDecision, error) {
	if clubID == uuid.Nil {
		return ClaimDecision{}, pkgerrors.New(pkgerrors.CodeValidation, "club id required")
	}
	if s.monthlyFeeCents == 0 {
		return ClaimDecision{}, nil
	}

	periodKey := PeriodKeyFor(now)
	lock := &models.AccountFeeLock{
		ID:           uuid.New(),
		ClubID:       clubID,
		PeriodKey:    periodKey,
		ShouldCharge: true,
		FeeCents:     s.monthlyFeeCents,
	}
	inserted, err := s.repo.TryInsert(ctx, lock)
	if err != nil {
		return ClaimDecision{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim fee lock")
	}
	if inserted {
		return ClaimDecision{ShouldCharge: true, LockID: lock.ID, FeeCents: s.monthlyFeeCents}, nil
	}

	revived, err := s.repo.Revive(ctx, clubID, periodKey, s.monthlyFeeCents)
	if err != nil {
		return ClaimDecision{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revive fee lock")
	}
	if !revived {
		return ClaimDecision{}, nil
	}

	existing, err := s.repo.FindByPeriod(ctx, clubID, periodKey)
	if err != nil {
		return ClaimDecision{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load fee lock")
	}
	if existing == nil {
		return ClaimDecision{}, pkgerrors.New(pkgerrors.CodeInternal, "revived fee lock vanished")
	}
	if s.logg != nil {
		s.logg.Info(ctx, fmt.Sprintf("fee lock %s revived for club %s period %s", existing.ID, clubID, periodKey))
	}
	return ClaimDecision{ShouldCharge: true, LockID: existing.ID, FeeCents: s.monthlyFeeCents}, nil
}

// Release hands the period back after a checkout failed to materialize. The
// claim is optimistic, so the compensating release only runs when session
// creation fails synchronously; abandoned sessions keep their lock.
func (s *Service) Release(ctx context.Context, lockID uuid.UUID) error {
	if lockID == uuid.Nil {
		return nil
	}
	released, err := s.repo.Release(ctx, lockID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release fee lock")
	}
	if !released && s.logg != nil {
		s.logg.Warn(ctx, fmt.Sprintf("fee lock %s already released", lockID))
	}
	return nil
}

// AttachSession records which checkout session the claimed fee rode on.
func (s *Service) AttachSession(ctx context.Context, lockID, sessionID uuid.UUID) error {
	if lockID == uuid.Nil || sessionID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "lock id and session id required")
	}
	if err := s.repo.AttachSession(ctx, lockID, sessionID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach session to fee lock")
	}
	return nil
}

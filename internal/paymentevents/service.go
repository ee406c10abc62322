package paymentevents

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	pkgerrors "github.com/clubline/clubline-backend/pkg/errors"
	"github.com/clubline/clubline-backend/pkg/logger"
)

// ClaimResult reports who owns processing rights for an event id.
type ClaimResult struct {
	// Acquired means this call may process the event. False means another
	// delivery already holds or finished the claim and the caller must
	// report success without doing any work.
	Acquired bool
	// Reclaimed marks an acquisition that took over a stale processing
	// claim left behind by a crashed worker.
	Reclaimed bool
}

type ServiceParams struct {
	Repo          Repository
	SigningSecret string
	StaleClaimTTL time.Duration
	Logger        *logger.Logger
}

// Service is the idempotency gate for inbound processor webhooks. Every
// notification passes through VerifyEvent and Claim before any ledger code
// runs; a lost claim means the delivery is a duplicate.
type Service struct {
	repo          Repository
	signingSecret string
	staleClaimTTL time.Duration
	logg          *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment event repo required")
	}
	if params.SigningSecret == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "webhook signing secret required")
	}
	if params.StaleClaimTTL <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stale claim ttl must be positive")
	}
	return &Service{
		repo:          params.Repo,
		signingSecret: params.SigningSecret,
		staleClaimTTL: params.StaleClaimTTL,
		logg:          params.Logger,
	}, nil
}

// VerifyEvent checks the processor signature over the raw payload. A
// signature failure is never claimed; callers map it to a non-retryable
// rejection.
func (s *Service) VerifyEvent(payload []byte, sigHeader string) (*stripe.Event, error) {
	if sigHeader == "" {
		return nil, pkgerrors.New(pkgerrors.CodeSignature, "stripe signature missing")
	}
	event, err := webhook.ConstructEvent(payload, sigHeader, s.signingSecret)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeSignature, err, "verify webhook signature")
	}
	return &event, nil
}

// Claim atomically records the event id as processing. At most one delivery
// acquires a given id: terminal claims are permanent, so redelivery of a
// completed or failed event always comes back unacquired. The one exception
// is a processing claim older than the stale TTL, which a redelivery may
// take over to recover from a crashed worker.
func (s *Service) Claim(ctx context.Context, eventID, eventType string) (ClaimResult, error) {
	if eventID == "" {
		return ClaimResult{}, pkgerrors.New(pkgerrors.CodeValidation, "event id required")
	}

	inserted, err := s.repo.Insert(ctx, eventID, eventType)
	if err != nil {
		return ClaimResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim payment event")
	}
	if inserted {
		return ClaimResult{Acquired: true}, nil
	}

	existing, err := s.repo.FindByID(ctx, eventID)
	if err != nil {
		return ClaimResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment event claim")
	}
	if existing == nil {
		// Claims are never deleted, so a missing row after a conflict means
		// the winning insert has not committed yet. Report duplicate and let
		// the processor redeliver.
		return ClaimResult{}, nil
	}

	if !existing.IsTerminal() {
		cutoff := time.Now().UTC().Add(-s.staleClaimTTL)
		if existing.ClaimedAt.Before(cutoff) {
			reclaimed, err := s.repo.ReclaimStale(ctx, eventID, cutoff)
			if err != nil {
				return ClaimResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reclaim stale payment event")
			}
			if reclaimed {
				if s.logg != nil {
					s.logg.Warn(ctx, fmt.Sprintf("payment event %s reclaimed after stale processing claim", eventID))
				}
				return ClaimResult{Acquired: true, Reclaimed: true}, nil
			}
		}
	}
	return ClaimResult{}, nil
}

// MarkCompleted moves an acquired claim to its terminal success state. A
// no-op update means the claim went stale and another worker took it over;
// that worker owns the terminal transition now.
func (s *Service) MarkCompleted(ctx context.Context, eventID string) error {
	updated, err := s.repo.MarkCompleted(ctx, eventID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment event completed")
	}
	if !updated && s.logg != nil {
		s.logg.Warn(ctx, fmt.Sprintf("payment event %s no longer held, completion skipped", eventID))
	}
	return nil
}

// MarkFailed moves an acquired claim to its terminal failure state. Failed
// claims stay failed: the processor will redeliver, the redelivery will lose
// the claim, and remediation is an operator action.
func (s *Service) MarkFailed(ctx context.Context, eventID string, cause error) error {
	msg := "processing failed"
	if cause != nil {
		msg = cause.Error()
	}
	updated, err := s.repo.MarkFailed(ctx, eventID, msg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment event failed")
	}
	if !updated && s.logg != nil {
		s.logg.Warn(ctx, fmt.Sprintf("payment event %s no longer held, failure not recorded", eventID))
	}
	return nil
}

// CountStuckClaims reports processing claims older than the stale TTL for
// the cron monitor.
func (s *Service) CountStuckClaims(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-s.staleClaimTTL)
	count, err := s.repo.CountStaleProcessing(ctx, cutoff)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count stale payment events")
	}
	return count, nil
}

// Get loads one claim row for operator triage.
func (s *Service) Get(ctx context.Context, eventID string) (*EventDTO, error) {
	if eventID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event id required")
	}
	event, err := s.repo.FindByID(ctx, eventID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment event")
	}
	if event == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment event not found")
	}
	return toEventDTO(event), nil
}

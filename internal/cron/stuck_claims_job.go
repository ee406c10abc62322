package cron

import (
	"context"
	"fmt"

	"github.com/clubline/clubline-backend/pkg/logger"
	"github.com/clubline/clubline-backend/pkg/metrics"
)

// StuckClaimsJobParams configures the stuck claim monitor.
type StuckClaimsJobParams struct {
	Logger  *logger.Logger
	Claims  stuckClaimCounter
	Metrics *metrics.PaymentMetrics
}

type stuckClaimCounter interface {
	CountStuckClaims(ctx context.Context) (int64, error)
}

// NewStuckClaimsJob builds the monitor that samples webhook claims stuck in
// processing. Stuck claims never retry on their own; this job makes them
// visible so an operator can reclaim or fail them.
func NewStuckClaimsJob(params StuckClaimsJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Claims == nil {
		return nil, fmt.Errorf("payment events service required")
	}
	return &stuckClaimsJob{
		logg:    params.Logger,
		claims:  params.Claims,
		metrics: params.Metrics,
	}, nil
}

type stuckClaimsJob struct {
	logg    *logger.Logger
	claims  stuckClaimCounter
	metrics *metrics.PaymentMetrics
}

func (j *stuckClaimsJob) Name() string { return "stuck-claims" }

func (j *stuckClaimsJob) Run(ctx context.Context) error {
	count, err := j.claims.CountStuckClaims(ctx)
	if err != nil {
		return fmt.Errorf("count stuck claims: %w", err)
	}
	j.metrics.SetStuckClaims(int(count))
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": count})
	if count > 0 {
		j.logg.Warn(logCtx, "payment event claims stuck in processing")
		return nil
	}
	j.logg.Info(logCtx, "no stuck payment event claims")
	return nil
}

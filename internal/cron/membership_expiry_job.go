package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/clubline/clubline-backend/pkg/db/models"
	"github.com/clubline/clubline-backend/pkg/enums"
	"github.com/clubline/clubline-backend/pkg/logger"
)

const renewalReminderDays = 7

// MembershipExpiryJobParams configures the paid-term lifecycle work.
type MembershipExpiryJobParams struct {
	Logger        *logger.Logger
	Enrollments   enrollmentLifecycleRepo
	Notifications renewalNotificationRepo
}

type enrollmentLifecycleRepo interface {
	FindEnrollmentsExpiringBetween(ctx context.Context, from, to time.Time) ([]models.Membership, error)
	ExpireEnrollments(ctx context.Context, cutoff time.Time) (int64, error)
}

type renewalNotificationRepo interface {
	Create(ctx context.Context, notification *models.Notification) error
	HasRecentOfType(ctx context.Context, clubID uuid.UUID, userID *uuid.UUID, notifType enums.NotificationType, since time.Time) (bool, error)
}

// NewMembershipExpiryJob constructs the membership lifecycle cron job: it
// reminds members whose paid term ends soon and lapses terms that ended.
func NewMembershipExpiryJob(params MembershipExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Enrollments == nil {
		return nil, fmt.Errorf("enrollments repository required")
	}
	if params.Notifications == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	return &membershipExpiryJob{
		logg:          params.Logger,
		enrollments:   params.Enrollments,
		notifications: params.Notifications,
		now:           time.Now,
	}, nil
}

type membershipExpiryJob struct {
	logg          *logger.Logger
	enrollments   enrollmentLifecycleRepo
	notifications renewalNotificationRepo
	now           func() time.Time
}

func (j *membershipExpiryJob) Name() string { return "membership-expiry" }

func (j *membershipExpiryJob) Run(ctx context.Context) error {
	var errs []error
	if err := j.remindExpiring(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := j.expireLapsed(ctx); err != nil {
		errs = append(errs, err)
	}
	return multierr.Combine(errs...)
}

// remindExpiring creates one in-app renewal notice per enrollment whose term
// ends on the day renewalReminderDays out. The recency check keeps reruns of
// the same window from double-posting.
func (j *membershipExpiryJob) remindExpiring(ctx context.Context) error {
	now := j.now().UTC()
	target := now.Add(renewalReminderDays * 24 * time.Hour)
	start := time.Date(target.Year(), target.Month(), target.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	expiring, err := j.enrollments.FindEnrollmentsExpiringBetween(ctx, start, end)
	if err != nil {
		return fmt.Errorf("query expiring enrollments: %w", err)
	}

	count := 0
	for _, enrollment := range expiring {
		if enrollment.ExpiresAt == nil {
			continue
		}
		userID := enrollment.UserID
		exists, err := j.notifications.HasRecentOfType(ctx, enrollment.ClubID, &userID, enums.NotificationTypeMembershipRenewal, now.Add(-renewalReminderDays*24*time.Hour))
		if err != nil {
			return fmt.Errorf("check existing reminder: %w", err)
		}
		if exists {
			continue
		}
		link := fmt.Sprintf("/clubs/%s/memberships/%s", enrollment.ClubID, enrollment.ID)
		notification := &models.Notification{
			ClubID:  enrollment.ClubID,
			UserID:  &userID,
			Type:    enums.NotificationTypeMembershipRenewal,
			Title:   "Membership renewal due",
			Message: fmt.Sprintf("Your club membership expires on %s. Renew to keep your member benefits.", enrollment.ExpiresAt.Format("January 2, 2006")),
			Link:    &link,
		}
		if err := j.notifications.Create(ctx, notification); err != nil {
			return fmt.Errorf("create renewal reminder: %w", err)
		}
		count++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{"count": count})
	j.logg.Info(logCtx, "membership renewal reminder loop complete")
	return nil
}

func (j *membershipExpiryJob) expireLapsed(ctx context.Context) error {
	now := j.now().UTC()
	expired, err := j.enrollments.ExpireEnrollments(ctx, now)
	if err != nil {
		return fmt.Errorf("expire enrollments: %w", err)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{"count": expired})
	j.logg.Info(logCtx, "membership expiry loop complete")
	return nil
}

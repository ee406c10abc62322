package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clubline/clubline-backend/pkg/db/models"
	"github.com/clubline/clubline-backend/pkg/enums"
	"github.com/clubline/clubline-backend/pkg/logger"
)

type fakeEnrollmentLifecycle struct {
	expiring    []models.Membership
	expiringErr error

	expireCutoff time.Time
	expired      int64
	expireErr    error
}

func (f *fakeEnrollmentLifecycle) FindEnrollmentsExpiringBetween(ctx context.Context, from, to time.Time) ([]models.Membership, error) {
	if f.expiringErr != nil {
		return nil, f.expiringErr
	}
	return f.expiring, nil
}

func (f *fakeEnrollmentLifecycle) ExpireEnrollments(ctx context.Context, cutoff time.Time) (int64, error) {
	f.expireCutoff = cutoff
	if f.expireErr != nil {
		return 0, f.expireErr
	}
	return f.expired, nil
}

type fakeRenewalNotifications struct {
	created   []*models.Notification
	createErr error
	hasRecent bool
	recentErr error
}

func (f *fakeRenewalNotifications) Create(ctx context.Context, notification *models.Notification) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, notification)
	return nil
}

func (f *fakeRenewalNotifications) HasRecentOfType(ctx context.Context, clubID uuid.UUID, userID *uuid.UUID, notifType enums.NotificationType, since time.Time) (bool, error) {
	if f.recentErr != nil {
		return false, f.recentErr
	}
	return f.hasRecent, nil
}

func newMembershipExpiryJob(t *testing.T, enrollments *fakeEnrollmentLifecycle, notifications *fakeRenewalNotifications) *membershipExpiryJob {
	t.Helper()
	jobIface, err := NewMembershipExpiryJob(MembershipExpiryJobParams{
		Logger:        logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Enrollments:   enrollments,
		Notifications: notifications,
	})
	if err != nil {
		t.Fatalf("NewMembershipExpiryJob: %v", err)
	}
	job, ok := jobIface.(*membershipExpiryJob)
	if !ok {
		t.Fatalf("expected membershipExpiryJob, got %T", jobIface)
	}
	return job
}

func TestMembershipExpiryJobRemindsAndExpires(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	expiresAt := now.Add(renewalReminderDays * 24 * time.Hour)
	enrollment := models.Membership{
		ID:        uuid.New(),
		ClubID:    uuid.New(),
		UserID:    uuid.New(),
		PlanID:    uuid.New(),
		Status:    enums.MembershipStatusActive,
		ExpiresAt: &expiresAt,
	}
	enrollments := &fakeEnrollmentLifecycle{expiring: []models.Membership{enrollment}, expired: 2}
	notifications := &fakeRenewalNotifications{}
	job := newMembershipExpiryJob(t, enrollments, notifications)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(notifications.created) != 1 {
		t.Fatalf("expected one reminder, got %d", len(notifications.created))
	}
	reminder := notifications.created[0]
	if reminder.Type != enums.NotificationTypeMembershipRenewal {
		t.Fatalf("expected renewal type, got %s", reminder.Type)
	}
	if reminder.ClubID != enrollment.ClubID {
		t.Fatalf("reminder club mismatch")
	}
	if reminder.UserID == nil || *reminder.UserID != enrollment.UserID {
		t.Fatalf("reminder should address the member")
	}
	if !enrollments.expireCutoff.Equal(now) {
		t.Fatalf("expected expire cutoff %s, got %s", now, enrollments.expireCutoff)
	}
}

func TestMembershipExpiryJobSkipsAlreadyReminded(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	expiresAt := now.Add(renewalReminderDays * 24 * time.Hour)
	enrollment := models.Membership{
		ID:        uuid.New(),
		ClubID:    uuid.New(),
		UserID:    uuid.New(),
		Status:    enums.MembershipStatusActive,
		ExpiresAt: &expiresAt,
	}
	enrollments := &fakeEnrollmentLifecycle{expiring: []models.Membership{enrollment}}
	notifications := &fakeRenewalNotifications{hasRecent: true}
	job := newMembershipExpiryJob(t, enrollments, notifications)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(notifications.created) != 0 {
		t.Fatalf("expected no duplicate reminder, got %d", len(notifications.created))
	}
}

func TestMembershipExpiryJobCombinesPhaseErrors(t *testing.T) {
	enrollments := &fakeEnrollmentLifecycle{
		expiringErr: errors.New("query boom"),
		expireErr:   errors.New("expire boom"),
	}
	job := newMembershipExpiryJob(t, enrollments, &fakeRenewalNotifications{})

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected combined error")
	}
	if enrollments.expireCutoff.IsZero() {
		t.Fatal("expire phase should run even when reminders fail")
	}
}

//go:build db
// +build db

package memberships

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/clubline/clubline-backend/pkg/db/models"
	"github.com/clubline/clubline-backend/pkg/enums"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("CLUBLINE_DB_DSN")
	if dsn == "" {
		t.Skip("CLUBLINE_DB_DSN is not set")
	}

	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	return conn
}

func TestRepositoryMembershipFlow(t *testing.T) {
	conn := openTestDB(t)
	tx := conn.Begin()
	if tx.Error != nil {
		t.Fatalf("begin tx: %v", tx.Error)
	}
	t.Cleanup(func() {
		_ = tx.Rollback()
	})

	repo := NewRepository(tx)
	ctx := context.Background()

	user := &models.User{
		ID:           uuid.New(),
		Email:        fmt.Sprintf("cl_test_%s@example.com", uuid.NewString()),
		PasswordHash: "hash",
		FirstName:    "Test",
		LastName:     "Member",
		IsActive:     true,
	}
	if err := tx.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}

	club := &models.Club{
		ID:   uuid.New(),
		Name: "Repo Chess Club",
		Slug: fmt.Sprintf("repo-chess-%s", uuid.NewString()[:8]),
	}
	if err := tx.Create(club).Error; err != nil {
		t.Fatalf("create club: %v", err)
	}

	membership, err := repo.CreateMembership(ctx, club.ID, user.ID, enums.MemberRoleOwner, nil, enums.MembershipStatusActive)
	if err != nil {
		t.Fatalf("create membership: %v", err)
	}

	list, err := repo.ListUserClubs(ctx, user.ID)
	if err != nil {
		t.Fatalf("list user clubs: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 club, got %d", len(list))
	}
	if list[0].ClubName != club.Name {
		t.Fatalf("expected club name %s, got %s", club.Name, list[0].ClubName)
	}
	if list[0].Role != enums.MemberRoleOwner {
		t.Fatalf("unexpected role %s", list[0].Role)
	}

	exists, err := repo.UserHasRole(ctx, user.ID, club.ID, enums.MemberRoleOwner)
	if err != nil {
		t.Fatalf("check role: %v", err)
	}
	if !exists {
		t.Fatalf("expected user to have role owner")
	}

	other, err := repo.UserHasRole(ctx, user.ID, club.ID, enums.MemberRoleAdmin)
	if err != nil {
		t.Fatalf("check other role: %v", err)
	}
	if other {
		t.Fatal("expected user to not have admin role")
	}

	fetched, err := repo.GetMembership(ctx, user.ID, club.ID)
	if err != nil {
		t.Fatalf("get membership: %v", err)
	}
	if fetched.ID != membership.ID {
		t.Fatalf("expected membership id %s, got %s", membership.ID, fetched.ID)
	}

	if _, err := repo.CreateMembership(ctx, club.ID, user.ID, enums.MemberRoleAdmin, nil, enums.MembershipStatusActive); err == nil {
		t.Fatal("expected duplicate membership to fail")
	}
}

func TestRepositoryEnrollmentActivation(t *testing.T) {
	conn := openTestDB(t)
	tx := conn.Begin()
	if tx.Error != nil {
		t.Fatalf("begin tx: %v", tx.Error)
	}
	t.Cleanup(func() {
		_ = tx.Rollback()
	})

	repo := NewRepository(tx)
	ctx := context.Background()

	club := &models.Club{
		ID:   uuid.New(),
		Name: "Enrollment Club",
		Slug: fmt.Sprintf("enroll-%s", uuid.NewString()[:8]),
	}
	if err := tx.Create(club).Error; err != nil {
		t.Fatalf("create club: %v", err)
	}

	plan := &models.MembershipPlan{
		ID:         uuid.New(),
		ClubID:     club.ID,
		Name:       "Annual",
		Interval:   enums.BillingIntervalAnnual,
		PriceCents: 12000,
		Currency:   enums.CurrencyUSD,
	}
	if err := tx.Create(plan).Error; err != nil {
		t.Fatalf("create plan: %v", err)
	}

	enrollment := &models.Membership{
		ID:     uuid.New(),
		ClubID: club.ID,
		UserID: uuid.New(),
		PlanID: plan.ID,
		Status: enums.MembershipStatusPending,
	}
	if err := repo.CreateEnrollment(ctx, enrollment); err != nil {
		t.Fatalf("create enrollment: %v", err)
	}

	start := time.Now().UTC()
	activated, err := repo.ActivateEnrollment(ctx, enrollment.ID, start, start.AddDate(1, 0, 0))
	if err != nil {
		t.Fatalf("activate enrollment: %v", err)
	}
	if !activated {
		t.Fatal("expected pending enrollment to activate")
	}

	again, err := repo.ActivateEnrollment(ctx, enrollment.ID, start, start.AddDate(1, 0, 0))
	if err != nil {
		t.Fatalf("re-activate enrollment: %v", err)
	}
	if again {
		t.Fatal("expected second activation to be a no-op")
	}

	fetched, err := repo.FindEnrollmentByID(ctx, enrollment.ID)
	if err != nil {
		t.Fatalf("find enrollment: %v", err)
	}
	if fetched.Status != enums.MembershipStatusActive {
		t.Fatalf("expected active, got %s", fetched.Status)
	}
}

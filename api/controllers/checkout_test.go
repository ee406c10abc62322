package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/clubline/clubline-backend/api/middleware"
	checkoutsvc "github.com/clubline/clubline-backend/internal/checkout"
	"github.com/clubline/clubline-backend/pkg/enums"
	pkgerrors "github.com/clubline/clubline-backend/pkg/errors"
	"github.com/clubline/clubline-backend/pkg/types"
)

type stubCheckoutService struct {
	lastUserID uuid.UUID
	lastInput  checkoutsvc.CreateSessionInput
	lastClubID uuid.UUID
	session    *checkoutsvc.SessionDTO
	err        error
}

func (s *stubCheckoutService) Create(ctx context.Context, userID uuid.UUID, input checkoutsvc.CreateSessionInput) (*checkoutsvc.SessionDTO, error) {
	s.lastUserID = userID
	s.lastInput = input
	return s.session, s.err
}

func (s *stubCheckoutService) GetForClub(ctx context.Context, clubID, sessionID uuid.UUID) (*checkoutsvc.SessionDTO, error) {
	s.lastClubID = clubID
	return s.session, s.err
}

func TestCreateCheckoutSession(t *testing.T) {
	userID := uuid.New()
	clubID := uuid.New()
	eventID := uuid.New()
	svc := &stubCheckoutService{
		session: &checkoutsvc.SessionDTO{
			ID:          uuid.New(),
			ClubID:      clubID,
			AmountCents: 5000,
			Status:      enums.CheckoutSessionStatusPending,
		},
	}
	handler := CreateCheckoutSession(svc, testControllerLogger())

	body := `{
		"purpose": {
			"kind": "event_registration",
			"event_registration": {"club_id": "` + clubID.String() + `", "event_id": "` + eventID.String() + `", "registration_id": "` + uuid.NewString() + `"}
		},
		"amount_cents": 5000
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.lastUserID != userID {
		t.Fatalf("expected user %s got %s", userID, svc.lastUserID)
	}
	if svc.lastInput.AmountCents != 5000 {
		t.Fatalf("expected amount forwarded, got %d", svc.lastInput.AmountCents)
	}
	if svc.lastInput.Purpose.Kind != enums.PurposeKindEventRegistration {
		t.Fatalf("expected purpose kind forwarded, got %s", svc.lastInput.Purpose.Kind)
	}

	var envelope struct {
		Data checkoutsvc.SessionDTO `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.AmountCents != 5000 {
		t.Fatalf("expected session in envelope got %+v", envelope.Data)
	}
}

func TestCreateCheckoutSessionRequiresUser(t *testing.T) {
	handler := CreateCheckoutSession(&stubCheckoutService{}, testControllerLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestCreateCheckoutSessionPropagatesStateConflict(t *testing.T) {
	svc := &stubCheckoutService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "club payouts are not enabled")}
	handler := CreateCheckoutSession(svc, testControllerLogger())

	clubID := uuid.NewString()
	body := `{
		"purpose": {
			"kind": "membership",
			"membership": {"club_id": "` + clubID + `", "membership_id": "` + uuid.NewString() + `", "plan_id": "` + uuid.NewString() + `"}
		},
		"amount_cents": 2500
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", rec.Code)
	}
}

func TestGetCheckoutSessionScopesToClub(t *testing.T) {
	clubID := uuid.New()
	sessionID := uuid.New()
	svc := &stubCheckoutService{
		session: &checkoutsvc.SessionDTO{
			ID:      sessionID,
			ClubID:  clubID,
			Purpose: types.PaymentPurpose{Kind: enums.PurposeKindMembership},
			Status:  enums.CheckoutSessionStatusCompleted,
		},
	}
	handler := GetCheckoutSession(svc, testControllerLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/checkout/"+sessionID.String(), nil)
	req = req.WithContext(middleware.WithClubID(req.Context(), clubID.String()))
	req = addRouteParam(req, "sessionId", sessionID.String())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.lastClubID != clubID {
		t.Fatalf("expected club scope %s got %s", clubID, svc.lastClubID)
	}
}

package routes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/clubline/clubline-backend/internal/accounts"
	"github.com/clubline/clubline-backend/internal/auth"
	checkoutsvc "github.com/clubline/clubline-backend/internal/checkout"
	"github.com/clubline/clubline-backend/internal/notifications"
	"github.com/clubline/clubline-backend/internal/paymentevents"
	"github.com/clubline/clubline-backend/internal/refunds"
	"github.com/clubline/clubline-backend/internal/transactions"
	"github.com/clubline/clubline-backend/internal/users"
	stripewebhook "github.com/clubline/clubline-backend/internal/webhooks/stripe"
	pkgauth "github.com/clubline/clubline-backend/pkg/auth"
	"github.com/clubline/clubline-backend/pkg/auth/session"
	"github.com/clubline/clubline-backend/pkg/config"
	"github.com/clubline/clubline-backend/pkg/db/models"
	"github.com/clubline/clubline-backend/pkg/enums"
	"github.com/clubline/clubline-backend/pkg/logger"
	"github.com/clubline/clubline-backend/pkg/metrics"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubSessionManager struct{}

func (stubSessionManager) HasSession(ctx context.Context, accessID string) (bool, error) {
	return true, nil
}

func (stubSessionManager) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	return "", "", nil
}

func (stubSessionManager) Revoke(ctx context.Context, accessID string) error {
	return nil
}

type stubMembershipChecker struct {
	allowed bool
}

func (s stubMembershipChecker) UserHasRole(ctx context.Context, userID, clubID uuid.UUID, roles ...enums.MemberRole) (bool, error) {
	return s.allowed, nil
}

type stubAuthService struct{}

func (stubAuthService) Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
	return nil, fmt.Errorf("not implemented")
}

func (stubAuthService) AdminLogin(ctx context.Context, req auth.LoginRequest) (*auth.AdminLoginResponse, error) {
	return nil, fmt.Errorf("not implemented")
}

type stubRegisterService struct{}

func (stubRegisterService) Register(ctx context.Context, req auth.RegisterRequest) error {
	return nil
}

type stubAdminRegisterService struct{}

func (stubAdminRegisterService) Register(ctx context.Context, req auth.AdminRegisterRequest) (*users.UserDTO, error) {
	return nil, fmt.Errorf("not implemented")
}

type stubSwitchService struct{}

func (stubSwitchService) Switch(ctx context.Context, input auth.SwitchClubInput) (*auth.SwitchClubResult, error) {
	return nil, nil
}

type stubTransactionsService struct{}

func (stubTransactionsService) ListForClub(ctx context.Context, clubID uuid.UUID, input transactions.ListInput) (transactions.TransactionList, error) {
	return transactions.TransactionList{}, nil
}

// GetForClub implements [transactions.Service].
func (stubTransactionsService) GetForClub(ctx context.Context, clubID, transactionID uuid.UUID) (*transactions.TransactionDetail, error) {
	panic("unimplemented")
}

type stubRefundsService struct{}

// Create implements [refunds.Service].
func (stubRefundsService) Create(ctx context.Context, clubID, transactionID uuid.UUID, input refunds.CreateRefundInput) (*refunds.RefundDTO, error) {
	panic("unimplemented")
}

type stubCheckoutService struct{}

func (stubCheckoutService) Create(ctx context.Context, userID uuid.UUID, input checkoutsvc.CreateSessionInput) (*checkoutsvc.SessionDTO, error) {
	return &checkoutsvc.SessionDTO{
		ID:          uuid.New(),
		ClubID:      input.Purpose.ClubID(),
		Purpose:     input.Purpose,
		AmountCents: input.AmountCents,
		Status:      enums.CheckoutSessionStatusPending,
	}, nil
}

// GetForClub implements [checkout.Service].
func (stubCheckoutService) GetForClub(ctx context.Context, clubID, sessionID uuid.UUID) (*checkoutsvc.SessionDTO, error) {
	panic("unimplemented")
}

type stubAccountsService struct{}

// GetStatus implements [accounts.Service].
func (stubAccountsService) GetStatus(ctx context.Context, clubID uuid.UUID) (*accounts.AccountStatusDTO, error) {
	panic("unimplemented")
}

// Refresh implements [accounts.Service].
func (stubAccountsService) Refresh(ctx context.Context, clubID uuid.UUID) (*accounts.AccountStatusDTO, error) {
	panic("unimplemented")
}

type stubNotificationsService struct{}

func (stubNotificationsService) List(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	return &notifications.ListResult{}, nil
}

func (stubNotificationsService) MarkRead(ctx context.Context, clubID, notificationID uuid.UUID) error {
	return nil
}

func (stubNotificationsService) MarkAllRead(ctx context.Context, clubID uuid.UUID) (int64, error) {
	return 0, nil
}

type stubClaimRepo struct{}

func (s stubClaimRepo) WithTx(tx *gorm.DB) paymentevents.Repository {
	return s
}

func (stubClaimRepo) Insert(ctx context.Context, eventID, eventType string) (bool, error) {
	return true, nil
}

func (stubClaimRepo) FindByID(ctx context.Context, eventID string) (*models.PaymentEvent, error) {
	return nil, nil
}

func (stubClaimRepo) ReclaimStale(ctx context.Context, eventID string, cutoff time.Time) (bool, error) {
	return false, nil
}

func (stubClaimRepo) MarkCompleted(ctx context.Context, eventID string) (bool, error) {
	return true, nil
}

func (stubClaimRepo) MarkFailed(ctx context.Context, eventID string, cause string) (bool, error) {
	return true, nil
}

func (stubClaimRepo) CountStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:                 "secret",
			Issuer:                 "issuer",
			ExpirationMinutes:      60,
			RefreshTokenTTLMinutes: 120,
		},
	}
}

func newTestRouter(t *testing.T, cfg *config.Config, checker stubMembershipChecker) http.Handler {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})

	gate, err := paymentevents.NewService(paymentevents.ServiceParams{
		Repo:          stubClaimRepo{},
		SigningSecret: "whsec_routing_test",
		StaleClaimTTL: time.Minute,
		Logger:        logg,
	})
	if err != nil {
		t.Fatalf("build event gate: %v", err)
	}

	registry := prometheus.NewRegistry()
	return NewRouter(
		cfg,
		logg,
		stubPinger{}, // db.Pinger
		nil,          // *redis.Client
		stubSessionManager{},
		checker,
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		metrics.NewPaymentMetrics(registry),
		stubAuthService{},
		stubRegisterService{},
		stubAdminRegisterService{},
		stubSwitchService{},
		stubTransactionsService{},
		stubRefundsService{},
		stubCheckoutService{},
		stubAccountsService{},
		stubNotificationsService{},
		gate,
		(*stripewebhook.Service)(nil),
	)
}

func TestPrivateGroupRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(t, testConfig(), stubMembershipChecker{allowed: true})
	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestPrivateGroupSucceedsWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, cfg, stubMembershipChecker{allowed: true})
	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.MemberRoleOwner, true))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for private ping got %d", resp.Code)
	}
}

func TestPrivatePingRequiresClubContext(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, cfg, stubMembershipChecker{allowed: true})
	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.MemberRoleOwner, false))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without active club got %d", resp.Code)
	}
}

func TestAdminGroupRequiresPlatformScope(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, cfg, stubMembershipChecker{allowed: true})

	// A club-scoped token with the "admin" member role is not a platform admin.
	clubAdmin := httptest.NewRequest(http.MethodGet, "/api/admin/ping", nil)
	clubAdmin.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.MemberRoleAdmin, true))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, clubAdmin)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for club-scoped admin got %d", resp.Code)
	}

	platform := httptest.NewRequest(http.MethodGet, "/api/admin/ping", nil)
	platform.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.MemberRoleAdmin, false))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, platform)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for platform admin got %d", resp.Code)
	}
}

func TestClubLedgerEnforcesMembershipRole(t *testing.T) {
	cfg := testConfig()

	denied := newTestRouter(t, cfg, stubMembershipChecker{allowed: false})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/clubs/me/transactions", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.MemberRoleCoach, true))
	resp := httptest.NewRecorder()
	denied.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without payment role got %d", resp.Code)
	}

	granted := newTestRouter(t, cfg, stubMembershipChecker{allowed: true})
	req = httptest.NewRequest(http.MethodGet, "/api/v1/clubs/me/transactions", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.MemberRoleOwner, true))
	resp = httptest.NewRecorder()
	granted.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for owner ledger read got %d", resp.Code)
	}
}

func TestCheckoutCreateAllowsTokenWithoutClub(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, cfg, stubMembershipChecker{allowed: true})

	body := `{
		"purpose": {
			"kind": "event_registration",
			"event_registration": {"club_id": "` + uuid.NewString() + `", "event_id": "` + uuid.NewString() + `", "registration_id": "` + uuid.NewString() + `"}
		},
		"amount_cents": 5000
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.MemberRoleMember, false))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 for club-free checkout got %d (%s)", resp.Code, resp.Body.String())
	}
}

func TestStripeWebhookRouteRejectsUnsignedPayload(t *testing.T) {
	router := newTestRouter(t, testConfig(), stubMembershipChecker{allowed: true})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(`{"id":"evt_1"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsigned webhook got %d", resp.Code)
	}
}

func TestHealthReadyReportsDegradedDependencies(t *testing.T) {
	router := newTestRouter(t, testConfig(), stubMembershipChecker{allowed: true})

	live := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, live)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for liveness got %d", resp.Code)
	}

	ready := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, ready)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without redis got %d", resp.Code)
	}
}

func TestMetricsEndpointServesRegistry(t *testing.T) {
	router := newTestRouter(t, testConfig(), stubMembershipChecker{allowed: true})
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for metrics scrape got %d", resp.Code)
	}
}

func TestPublicValidateRejectsBadJSON(t *testing.T) {
	router := newTestRouter(t, testConfig(), stubMembershipChecker{allowed: true})
	req := httptest.NewRequest(http.MethodPost, "/api/public/validate", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid payload got %d", resp.Code)
	}
}

func TestPublicValidateAcceptsGoodJSON(t *testing.T) {
	router := newTestRouter(t, testConfig(), stubMembershipChecker{allowed: true})
	body := `{"name":"Zed","email":"zed@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/api/public/validate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for valid payload got %d", resp.Code)
	}
}

func buildToken(t *testing.T, cfg *config.Config, role enums.MemberRole, withClub bool) string {
	t.Helper()
	payload := pkgauth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
		JTI:    session.NewAccessID(),
	}
	if withClub {
		clubID := uuid.New()
		payload.ActiveClubID = &clubID
	}
	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), payload)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

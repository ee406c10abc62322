package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/clubline/clubline-backend/internal/paymentevents"
	"github.com/clubline/clubline-backend/pkg/db/models"
	"github.com/clubline/clubline-backend/pkg/enums"
	pkgerrors "github.com/clubline/clubline-backend/pkg/errors"
	"github.com/clubline/clubline-backend/pkg/metrics"
)

const testSigningSecret = "whsec_test"

func TestStripeWebhookProcessesThenDeduplicates(t *testing.T) {
	payload, header := buildSignedEvent(t)
	service := &fakeStripeWebhookService{}
	repo := newFakeClaimRepo()
	handler := StripeWebhook(service, newTestGate(t, repo), testPaymentMetrics(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", header)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected service called once, got %d", service.calls)
	}
	if got := repo.statusOf(t); got != enums.PaymentEventStatusCompleted {
		t.Fatalf("expected completed claim, got %s", got)
	}

	// Replay the same delivery: the claim is terminal, so the ledger code
	// must not run again.
	req2 := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload))
	req2.Header.Set("Stripe-Signature", header)
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200 on duplicate, got %d (%s)", rec2.Code, rec2.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected duplicate not processed, call count %d", service.calls)
	}
}

func TestStripeWebhookRejectsInvalidSignature(t *testing.T) {
	payload, _ := buildSignedEvent(t)
	service := &fakeStripeWebhookService{}
	repo := newFakeClaimRepo()
	handler := StripeWebhook(service, newTestGate(t, repo), testPaymentMetrics(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", "t=1,v1=invalid")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid signature, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatalf("service should not be invoked on invalid signature")
	}
	if repo.count() != 0 {
		t.Fatalf("rejected delivery must never be claimed")
	}
}

func TestStripeWebhookFailureMarksClaimAndReturns5xx(t *testing.T) {
	payload, header := buildSignedEvent(t)
	service := &fakeStripeWebhookService{err: pkgerrors.New(pkgerrors.CodeValidation, "decode purpose metadata")}
	repo := newFakeClaimRepo()
	handler := StripeWebhook(service, newTestGate(t, repo), testPaymentMetrics(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", header)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code < http.StatusInternalServerError {
		t.Fatalf("expected 5xx on processing failure, got %d", rec.Code)
	}
	if got := repo.statusOf(t); got != enums.PaymentEventStatusFailed {
		t.Fatalf("expected failed claim, got %s", got)
	}

	// Redelivery loses the claim: 200 ack, no second processing attempt.
	req2 := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload))
	req2.Header.Set("Stripe-Signature", header)
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200 on redelivery of failed event, got %d", rec2.Code)
	}
	if service.calls != 1 {
		t.Fatalf("expected one processing attempt, got %d", service.calls)
	}
}

func TestStripeWebhookClaimErrorReturns503(t *testing.T) {
	payload, header := buildSignedEvent(t)
	service := &fakeStripeWebhookService{}
	repo := newFakeClaimRepo()
	repo.insertErr = errors.New("connection refused")
	handler := StripeWebhook(service, newTestGate(t, repo), testPaymentMetrics(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", header)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when claim store is down, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatalf("service must not run without an acquired claim")
	}
}

func newTestGate(t *testing.T, repo paymentevents.Repository) *paymentevents.Service {
	t.Helper()
	gate, err := paymentevents.NewService(paymentevents.ServiceParams{
		Repo:          repo,
		SigningSecret: testSigningSecret,
		StaleClaimTTL: 15 * time.Minute,
	})
	if err != nil {
		t.Fatalf("gate setup: %v", err)
	}
	return gate
}

func testPaymentMetrics() *metrics.PaymentMetrics {
	return metrics.NewPaymentMetrics(prometheus.NewRegistry())
}

func buildSignedEvent(t *testing.T) ([]byte, string) {
	t.Helper()
	session := &stripe.CheckoutSession{
		ID:            "cs_" + uuid.NewString(),
		PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
	}
	rawSession, err := json.Marshal(session)
	if err != nil {
		t.Fatalf("marshal session: %v", err)
	}
	event := &stripe.Event{
		ID:         "evt_" + uuid.NewString(),
		Type:       stripe.EventTypeCheckoutSessionCompleted,
		Object:     "event",
		APIVersion: stripe.APIVersion,
		Data: &stripe.EventData{
			Raw: rawSession,
		},
	}
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	header := buildStripeSignatureHeader(payload, testSigningSecret, time.Now().Unix())
	return payload, header
}

func buildStripeSignatureHeader(payload []byte, secret string, ts int64) string {
	signedPayload := fmt.Sprintf("%d.%s", ts, payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signedPayload))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

type fakeStripeWebhookService struct {
	calls int
	err   error
}

func (f *fakeStripeWebhookService) HandleEvent(ctx context.Context, event *stripe.Event) error {
	f.calls++
	return f.err
}

type fakeClaimRepo struct {
	mu        sync.Mutex
	events    map[string]*models.PaymentEvent
	insertErr error
}

func newFakeClaimRepo() *fakeClaimRepo {
	return &fakeClaimRepo{events: make(map[string]*models.PaymentEvent)}
}

func (f *fakeClaimRepo) WithTx(tx *gorm.DB) paymentevents.Repository { return f }

func (f *fakeClaimRepo) Insert(ctx context.Context, eventID, eventType string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return false, f.insertErr
	}
	if _, exists := f.events[eventID]; exists {
		return false, nil
	}
	f.events[eventID] = &models.PaymentEvent{
		EventID:   eventID,
		EventType: eventType,
		Status:    enums.PaymentEventStatusProcessing,
		ClaimedAt: time.Now().UTC(),
	}
	return true, nil
}

func (f *fakeClaimRepo) FindByID(ctx context.Context, eventID string) (*models.PaymentEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.events[eventID]
	if !ok {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (f *fakeClaimRepo) ReclaimStale(ctx context.Context, eventID string, cutoff time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.events[eventID]
	if !ok || record.Status != enums.PaymentEventStatusProcessing || !record.ClaimedAt.Before(cutoff) {
		return false, nil
	}
	record.ClaimedAt = time.Now().UTC()
	record.Error = nil
	return true, nil
}

func (f *fakeClaimRepo) MarkCompleted(ctx context.Context, eventID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.events[eventID]
	if !ok || record.Status != enums.PaymentEventStatusProcessing {
		return false, nil
	}
	now := time.Now().UTC()
	record.Status = enums.PaymentEventStatusCompleted
	record.CompletedAt = &now
	return true, nil
}

func (f *fakeClaimRepo) MarkFailed(ctx context.Context, eventID string, cause string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.events[eventID]
	if !ok || record.Status != enums.PaymentEventStatusProcessing {
		return false, nil
	}
	now := time.Now().UTC()
	record.Status = enums.PaymentEventStatusFailed
	record.FailedAt = &now
	record.Error = &cause
	return true, nil
}

func (f *fakeClaimRepo) CountStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, record := range f.events {
		if record.Status == enums.PaymentEventStatusProcessing && record.ClaimedAt.Before(cutoff) {
			count++
		}
	}
	return count, nil
}

func (f *fakeClaimRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

// statusOf returns the status of the single stored claim.
func (f *fakeClaimRepo) statusOf(t *testing.T) enums.PaymentEventStatus {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) != 1 {
		t.Fatalf("expected exactly one claim, have %d", len(f.events))
	}
	for _, record := range f.events {
		return record.Status
	}
	return ""
}

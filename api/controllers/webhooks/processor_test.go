package webhooks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/hotelbooker-backend/internal/payments"
	paymentwebhook "github.com/angelmondragon/hotelbooker-backend/internal/webhooks/payments"
	pkgerrors "github.com/angelmondragon/hotelbooker-backend/pkg/errors"
	"github.com/angelmondragon/hotelbooker-backend/pkg/logger"
)

func TestPaymentProcessorWebhook_SuccessAndDuplicate(t *testing.T) {
	service := &fakeWebhookService{}
	guard := newGuard(t)
	verifier := &fakeVerifier{signed: true, event: &payments.Event{ID: "evt_1", Kind: payments.EventSucceeded, Type: "payment_intent.succeeded", Reference: "pi_1"}}
	handler := PaymentProcessorWebhook(service, verifier, guard, nil)

	rec := post(handler, []byte(`{"id":"evt_1"}`), "t=1,v1=abc")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, service.calls)

	rec = post(handler, []byte(`{"id":"evt_1"}`), "t=1,v1=abc")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, service.calls, "duplicate delivery must not reach the service")
}

func TestPaymentProcessorWebhook_InvalidSignature(t *testing.T) {
	service := &fakeWebhookService{}
	verifier := &fakeVerifier{signed: true, verifyErr: payments.ErrInvalidSignature}
	handler := PaymentProcessorWebhook(service, verifier, newGuard(t), nil)

	rec := post(handler, []byte(`{"id":"evt_2"}`), "t=1,v1=bad")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, service.calls)
}

func TestPaymentProcessorWebhook_MissingSignature(t *testing.T) {
	service := &fakeWebhookService{}
	verifier := &fakeVerifier{signed: true}
	handler := PaymentProcessorWebhook(service, verifier, newGuard(t), nil)

	rec := post(handler, []byte(`{"id":"evt_3"}`), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, service.calls)
}

func TestPaymentProcessorWebhook_UnsignedModeParses(t *testing.T) {
	service := &fakeWebhookService{}
	verifier := &fakeVerifier{event: &payments.Event{ID: "evt_4", Kind: payments.EventProcessing, Reference: "pi_4"}}
	handler := PaymentProcessorWebhook(service, verifier, newGuard(t), nil)

	rec := post(handler, []byte(`{"id":"evt_4"}`), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, service.calls)
	assert.Zero(t, verifier.verifyCalls)
}

func TestPaymentProcessorWebhook_UnparseablePayload(t *testing.T) {
	verifier := &fakeVerifier{parseErr: errors.New("unexpected end of JSON input")}
	handler := PaymentProcessorWebhook(&fakeWebhookService{}, verifier, newGuard(t), nil)

	rec := post(handler, []byte(`{`), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaymentProcessorWebhook_FailureReleasesGuardForRetry(t *testing.T) {
	service := &fakeWebhookService{err: pkgerrors.Wrap(pkgerrors.CodeInternal, errors.New("db down"), "apply")}
	verifier := &fakeVerifier{signed: true, event: &payments.Event{ID: "evt_5", Kind: payments.EventSucceeded, Reference: "pi_5"}}
	handler := PaymentProcessorWebhook(service, verifier, newGuard(t), nil)

	rec := post(handler, []byte(`{"id":"evt_5"}`), "t=1,v1=abc")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	service.err = nil
	rec = post(handler, []byte(`{"id":"evt_5"}`), "t=1,v1=abc")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, service.calls)
}

func TestPaymentProcessorWebhook_PanicReleasesGuard(t *testing.T) {
	service := &fakeWebhookService{panicWith: "nil pointer"}
	verifier := &fakeVerifier{signed: true, event: &payments.Event{ID: "evt_6", Kind: payments.EventSucceeded, Reference: "pi_6"}}
	handler := PaymentProcessorWebhook(service, verifier, newGuard(t), nil)

	assert.Panics(t, func() { post(handler, []byte(`{"id":"evt_6"}`), "t=1,v1=abc") })

	service.panicWith = ""
	rec := post(handler, []byte(`{"id":"evt_6"}`), "t=1,v1=abc")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, service.calls)
}

func TestPaymentProcessorWebhook_LogsFailedGuardRelease(t *testing.T) {
	var out bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &out})
	service := &fakeWebhookService{err: pkgerrors.New(pkgerrors.CodeInternal, "apply failed")}
	verifier := &fakeVerifier{signed: true, event: &payments.Event{ID: "evt_7", Kind: payments.EventSucceeded, Reference: "pi_7"}}
	guard := &stuckGuard{deleteErr: errors.New("redis: connection refused")}
	handler := PaymentProcessorWebhook(service, verifier, guard, logg)

	rec := post(handler, []byte(`{"id":"evt_7"}`), "t=1,v1=abc")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1, guard.deletes)
	assert.Contains(t, out.String(), "failed to release webhook event mark")
	assert.Contains(t, out.String(), "redis: connection refused")
}

func post(handler http.Handler, payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/processor", bytes.NewReader(payload))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func newGuard(t *testing.T) *paymentwebhook.IdempotencyGuard {
	t.Helper()
	guard, err := paymentwebhook.NewIdempotencyGuard(newInMemoryStore(), time.Minute, "payment-webhook")
	require.NoError(t, err)
	return guard
}

type fakeWebhookService struct {
	calls     int
	err       error
	panicWith string
}

func (f *fakeWebhookService) HandleEvent(ctx context.Context, event *payments.Event) error {
	f.calls++
	if f.panicWith != "" {
		panic(f.panicWith)
	}
	return f.err
}

type stuckGuard struct {
	deletes   int
	deleteErr error
}

func (g *stuckGuard) CheckAndMark(context.Context, string) (bool, error) { return false, nil }

func (g *stuckGuard) Delete(context.Context, string) error {
	g.deletes++
	return g.deleteErr
}

type fakeVerifier struct {
	signed      bool
	event       *payments.Event
	verifyErr   error
	parseErr    error
	verifyCalls int
}

func (f *fakeVerifier) VerifySignature(payload []byte, signature string) (*payments.Event, error) {
	f.verifyCalls++
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return f.event, nil
}

func (f *fakeVerifier) ParseEvent(payload []byte) (*payments.Event, error) {
	if f.parseErr != nil {
		return nil, f.parseErr
	}
	return f.event, nil
}

func (f *fakeVerifier) SignatureRequired() bool { return f.signed }

type inMemoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newInMemoryStore() *inMemoryStore {
	return &inMemoryStore{data: make(map[string]string)}
}

func (s *inMemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key], nil
}

func (s *inMemoryStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = fmt.Sprintf("%v", value)
	return nil
}

func (s *inMemoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[key]; exists {
		return false, nil
	}
	s.data[key] = fmt.Sprintf("%v", value)
	return true, nil
}

func (s *inMemoryStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("hb:idempotency:%s:%s", scope, id)
}

func (s *inMemoryStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

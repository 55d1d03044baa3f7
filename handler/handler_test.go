package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelvault/reelvault/handler"
	"github.com/reelvault/reelvault/svc/billing"
	"github.com/reelvault/reelvault/svc/catalog"
	"github.com/reelvault/reelvault/svc/entitlement"
)

// stubProvider satisfies billing.Provider with canned responses.
type stubProvider struct {
	event      *billing.Event
	parseErr   error
	session    *billing.SessionDetails
	sessionErr error
	created    *billing.CheckoutSession
	createErr  error
}

func (s *stubProvider) CreateCheckoutSession(context.Context, billing.CheckoutRequest) (*billing.CheckoutSession, error) {
	return s.created, s.createErr
}

func (s *stubProvider) ParseWebhook(context.Context, []byte, string) (*billing.Event, error) {
	return s.event, s.parseErr
}

func (s *stubProvider) CheckoutSession(context.Context, string) (*billing.SessionDetails, error) {
	return s.session, s.sessionErr
}

type testEnv struct {
	router http.Handler
	store  *entitlement.MemoryStore
}

func newTestEnv(t *testing.T, provider billing.Provider) *testEnv {
	t.Helper()

	cat := catalog.MustNew(
		catalog.Plan{ID: catalog.PlanNone, Name: "Free"},
		catalog.Plan{
			ID: catalog.PlanBasic, Name: "Basic", MonthlyQuota: 7,
			Price:       catalog.Money{Amount: 1999, Currency: "USD"},
			BillingMode: catalog.BillingModeSubscription,
			PriceRef:    "pri_basic",
		},
		catalog.Plan{
			ID: catalog.PlanPro, Name: "Pro", MonthlyQuota: 15, RolloverCap: 30,
			Price:       catalog.Money{Amount: 3999, Currency: "USD"},
			BillingMode: catalog.BillingModeSubscription,
			PriceRef:    "pri_pro",
		},
	)

	store := entitlement.NewMemoryStore()
	log := slog.New(slog.DiscardHandler)

	reconciler := billing.NewReconciler(provider, store, cat, nil, nil, log)
	checkout := billing.NewCheckout(provider, cat, billing.CheckoutConfig{
		SuccessURL: "https://store.example.com/success",
		CancelURL:  "https://store.example.com/pricing",
	}, log)
	waiter := billing.NewActivationWaiter(store, nil, billing.WaiterConfig{
		PollInterval: 10 * time.Millisecond,
		WaitBudget:   100 * time.Millisecond,
	})
	authorizer := entitlement.NewAuthorizer(store, cat, log)

	h := handler.New(checkout, reconciler, waiter, authorizer, store, cat, log)
	return &testEnv{router: h.Routes(), store: store}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) seedActive(t *testing.T, userID uuid.UUID, planID catalog.PlanID, remaining int) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, e.store.Upsert(context.Background(), &entitlement.Entitlement{
		UserID:             userID,
		PlanID:             planID,
		DownloadsRemaining: remaining,
		Status:             entitlement.StatusActive,
		PeriodStart:        now,
		PeriodEnd:          now.Add(entitlement.PeriodLength),
	}))
}

func TestHandler_Webhook(t *testing.T) {
	t.Parallel()

	t.Run("acknowledges processed event", func(t *testing.T) {
		t.Parallel()

		userID := uuid.New()
		env := newTestEnv(t, &stubProvider{event: &billing.Event{
			ID:     "evt_1",
			Kind:   billing.EventCheckoutCompleted,
			UserID: userID.String(),
			PlanID: catalog.PlanPro,
		}})

		req := httptest.NewRequest(http.MethodPost, "/webhook/billing", bytes.NewReader([]byte(`{}`)))
		req.Header.Set("Paddle-Signature", "ts=1;h1=abc")
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		ent, err := env.store.Get(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, 15, ent.DownloadsRemaining)
	})

	t.Run("rejects invalid signature", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, &stubProvider{parseErr: billing.ErrInvalidSignature})
		rec := env.do(t, http.MethodPost, "/webhook/billing", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("acknowledges unhandled event types", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, &stubProvider{parseErr: billing.ErrUnhandledEvent})
		rec := env.do(t, http.MethodPost, "/webhook/billing", map[string]string{})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("persistence failure is 500 so the provider retries", func(t *testing.T) {
		t.Parallel()

		provider := &stubProvider{event: &billing.Event{
			ID:     "evt_1",
			Kind:   billing.EventCheckoutCompleted,
			UserID: uuid.NewString(),
			PlanID: catalog.PlanPro,
		}}

		log := slog.New(slog.DiscardHandler)
		cat := catalog.MustNew(catalog.Plan{
			ID: catalog.PlanPro, Name: "Pro", MonthlyQuota: 15,
			BillingMode: catalog.BillingModeSubscription, PriceRef: "pri_pro",
		})
		store := &brokenStore{MemoryStore: entitlement.NewMemoryStore()}
		reconciler := billing.NewReconciler(provider, store, cat, nil, nil, log)
		h := handler.New(nil, reconciler, nil, nil, store, cat, log)

		req := httptest.NewRequest(http.MethodPost, "/webhook/billing", bytes.NewReader([]byte(`{}`)))
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

// brokenStore simulates a database outage on writes.
type brokenStore struct {
	*entitlement.MemoryStore
}

func (s *brokenStore) Upsert(context.Context, *entitlement.Entitlement) error {
	return errors.New("connection reset by peer")
}

func TestHandler_Checkout(t *testing.T) {
	t.Parallel()

	t.Run("creates session", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, &stubProvider{created: &billing.CheckoutSession{
			Ref: "txn_1",
			URL: "https://pay.example.com/txn_1",
		}})

		rec := env.do(t, http.MethodPost, "/api/checkout", map[string]string{
			"user_id": uuid.NewString(),
			"email":   "buyer@example.com",
			"plan_id": "pro",
		})

		require.Equal(t, http.StatusCreated, rec.Code)
		var resp struct {
			SessionRef  string `json:"session_ref"`
			CheckoutURL string `json:"checkout_url"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "txn_1", resp.SessionRef)
		assert.NotEmpty(t, resp.CheckoutURL)
	})

	t.Run("unknown plan is 404", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, &stubProvider{})
		rec := env.do(t, http.MethodPost, "/api/checkout", map[string]string{
			"user_id": uuid.NewString(),
			"plan_id": "mystery",
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("free plan is not purchasable", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, &stubProvider{})
		rec := env.do(t, http.MethodPost, "/api/checkout", map[string]string{
			"user_id": uuid.NewString(),
			"plan_id": "none",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("provider outage is 502", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, &stubProvider{createErr: billing.ErrUpstreamUnavailable})
		rec := env.do(t, http.MethodPost, "/api/checkout", map[string]string{
			"user_id": uuid.NewString(),
			"plan_id": "basic",
		})
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("malformed user id is 400", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, &stubProvider{})
		rec := env.do(t, http.MethodPost, "/api/checkout", map[string]string{
			"user_id": "nope",
			"plan_id": "basic",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandler_Download(t *testing.T) {
	t.Parallel()

	t.Run("grant decrements balance", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, &stubProvider{})
		userID := uuid.New()
		env.seedActive(t, userID, catalog.PlanPro, 15)

		rec := env.do(t, http.MethodPost, "/api/downloads", map[string]string{
			"user_id":  userID.String(),
			"asset_id": "clip_123",
		})

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Granted   bool   `json:"granted"`
			Remaining int    `json:"remaining"`
			Plan      string `json:"plan"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Granted)
		assert.Equal(t, 14, resp.Remaining)
		assert.Equal(t, "pro", resp.Plan)
	})

	t.Run("denial is 200 with reason", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, &stubProvider{})
		rec := env.do(t, http.MethodPost, "/api/downloads", map[string]string{
			"user_id": uuid.NewString(),
		})

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Granted bool   `json:"granted"`
			Reason  string `json:"reason"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Granted)
		assert.Equal(t, "no_active_plan", resp.Reason)
	})

	t.Run("exhausted quota is denied", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, &stubProvider{})
		userID := uuid.New()
		env.seedActive(t, userID, catalog.PlanBasic, 0)

		rec := env.do(t, http.MethodPost, "/api/downloads", map[string]string{
			"user_id": userID.String(),
		})

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Granted bool   `json:"granted"`
			Reason  string `json:"reason"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Granted)
		assert.Equal(t, "quota_exhausted", resp.Reason)
	})
}

func TestHandler_GetEntitlement(t *testing.T) {
	t.Parallel()

	t.Run("existing record", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, &stubProvider{})
		userID := uuid.New()
		env.seedActive(t, userID, catalog.PlanPro, 12)

		rec := env.do(t, http.MethodGet, "/api/entitlements/"+userID.String(), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Plan               string `json:"plan"`
			DownloadsRemaining int    `json:"downloads_remaining"`
			Status             string `json:"status"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "pro", resp.Plan)
		assert.Equal(t, 12, resp.DownloadsRemaining)
		assert.Equal(t, "active", resp.Status)
	})

	t.Run("missing record yields zero default", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, &stubProvider{})
		rec := env.do(t, http.MethodGet, "/api/entitlements/"+uuid.NewString(), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Plan               string `json:"plan"`
			DownloadsRemaining int    `json:"downloads_remaining"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "none", resp.Plan)
		assert.Zero(t, resp.DownloadsRemaining)
	})

	t.Run("bad user id is 400", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, &stubProvider{})
		rec := env.do(t, http.MethodGet, "/api/entitlements/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandler_AwaitActivation(t *testing.T) {
	t.Parallel()

	t.Run("already active returns immediately", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, &stubProvider{})
		userID := uuid.New()
		env.seedActive(t, userID, catalog.PlanPro, 15)

		rec := env.do(t, http.MethodGet, "/api/entitlements/"+userID.String()+"/activation", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("pending after wait budget", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, &stubProvider{})
		rec := env.do(t, http.MethodGet, "/api/entitlements/"+uuid.NewString()+"/activation", nil)
		assert.Equal(t, http.StatusAccepted, rec.Code)
	})

	t.Run("session_ref for another user is not served", func(t *testing.T) {
		t.Parallel()

		buyer := uuid.New()
		env := newTestEnv(t, &stubProvider{session: &billing.SessionDetails{
			Ref:    "txn_other",
			UserID: buyer.String(),
			PlanID: catalog.PlanPro,
		}})

		// Requesting under a different user id must not leak the buyer's row.
		rec := env.do(t, http.MethodGet,
			"/api/entitlements/"+uuid.NewString()+"/activation?session_ref=txn_other", nil)
		assert.Equal(t, http.StatusAccepted, rec.Code)

		// The session itself still reconciled for its real owner.
		ent, err := env.store.Get(context.Background(), buyer)
		require.NoError(t, err)
		assert.Equal(t, catalog.PlanPro, ent.PlanID)
	})

	t.Run("session_ref reconciles directly", func(t *testing.T) {
		t.Parallel()

		userID := uuid.New()
		env := newTestEnv(t, &stubProvider{session: &billing.SessionDetails{
			Ref:    "txn_1",
			UserID: userID.String(),
			PlanID: catalog.PlanPro,
		}})

		rec := env.do(t, http.MethodGet,
			"/api/entitlements/"+userID.String()+"/activation?session_ref=txn_1", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		ent, err := env.store.Get(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, 15, ent.DownloadsRemaining)
	})
}

func TestHandler_ListPlans(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &stubProvider{})
	rec := env.do(t, http.MethodGet, "/api/plans", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Plans []struct {
			ID           string `json:"id"`
			MonthlyQuota int    `json:"monthly_quota"`
		} `json:"plans"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Plans, 2, "free tier is not listed")
}

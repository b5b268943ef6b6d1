package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chatcall-platform/internal/accounts"
	"chatcall-platform/internal/audit"
	"chatcall-platform/internal/auth"
	"chatcall-platform/internal/billing"
	"chatcall-platform/internal/calls"
	"chatcall-platform/internal/config"
	"chatcall-platform/internal/earnings"
	"chatcall-platform/internal/events"
	"chatcall-platform/internal/payments"
	"chatcall-platform/internal/pricing"
	"chatcall-platform/internal/reporting"
	"chatcall-platform/internal/testdb"
	"chatcall-platform/internal/wallet"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type env struct {
	h      Handlers
	r      *gin.Engine
	audits *audit.MemoryRepo
	clock  *testClock
}

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) advance(d time.Duration) { c.now = c.now.Add(d) }

// identity fakes the bearer middleware: X-Test-User and X-Test-Role become the caller.
func identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), c.GetHeader("X-Test-User"), c.GetHeader("X-Test-Role"))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testdb.Open(t,
		&accounts.Account{}, &wallet.Entry{}, &events.Message{}, &calls.Call{},
		&earnings.Earning{}, &earnings.Bonus{}, &earnings.Withdrawal{}, &payments.Order{},
	)
	store := accounts.NewStore(db)
	w := wallet.NewService(db, nil, nil)
	p := pricing.NewService(pricing.FromBilling(config.DefaultBilling()))
	repo := calls.NewRepository(db)
	earn := earnings.NewService(db, store, config.DefaultBilling(), nil, nil)
	audits := audit.NewMemoryRepo()
	clock := &testClock{now: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}

	mgr, err := auth.NewManager(config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	require.NoError(t, err)

	h := Handlers{
		Auth:     mgr,
		Accounts: store,
		Wallet:   w,
		Payments: payments.NewService(db, w, "rzp_secret", nil, nil),
		Calls: calls.NewService(calls.Deps{
			DB:       db,
			Repo:     repo,
			Accounts: store,
			Pricing:  p,
			Billing:  billing.NewService(db, p, store, w, repo, nil, nil),
			Earnings: earn,
			Clock:    clock.Now,
		}),
		Earnings:  earn,
		Reporting: reporting.NewService(reporting.NewGormRepo(db)),
		Audit:     audit.NewService(audits, nil),
		DevTokens: true,
	}

	r := gin.New()
	r.Use(ClientIP())
	r.POST("/v1/auth/token", h.IssueDevToken)

	v1 := r.Group("/v1", identity())
	v1.GET("/me", h.Me)
	v1.GET("/wallet/balance", h.GetWalletBalance)
	v1.GET("/wallet/entries", h.ListWalletEntries)
	v1.POST("/wallet/transfer", h.Transfer)
	v1.POST("/payments/orders", h.CreateOrder)
	v1.POST("/payments/confirm", h.ConfirmPayment)
	v1.GET("/payments/orders/:id", h.GetOrder)
	v1.POST("/calls", h.InitiateCall)
	v1.GET("/calls/:id", h.GetCall)
	v1.POST("/calls/:id/status", h.UpdateCallStatus)
	v1.POST("/calls/:id/rating", h.RateCall)
	v1.GET("/host/summary", h.HostSummary)
	v1.POST("/host/withdrawals", h.RequestWithdrawal)
	v1.POST("/admin/wallet/credit", h.AdminAdjustWallet)
	v1.GET("/admin/wallet/:user_id/reconcile", h.AdminReconcileWallet)
	v1.POST("/admin/hosts/:user_id/verify", h.AdminVerifyHost)
	v1.GET("/admin/reports/calls", h.AdminCallsReport)
	v1.POST("/admin/calls/:id/settle", h.AdminSettleCall)

	return &env{h: h, r: r, audits: audits, clock: clock}
}

func (e *env) do(t *testing.T, method, path, user, role string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Test-User", user)
		req.Header.Set("X-Test-Role", role)
	}
	rec := httptest.NewRecorder()
	e.r.ServeHTTP(rec, req)
	return rec
}

func (e *env) account(t *testing.T, id string, coins int64) {
	t.Helper()
	ctx := context.Background()
	_, err := e.h.Accounts.Create(ctx, accounts.CreateRequest{ID: id, DisplayName: id})
	require.NoError(t, err)
	if coins > 0 {
		_, err = e.h.Wallet.Credit(ctx, id, coins, wallet.KindPurchase, "seed", wallet.Options{})
		require.NoError(t, err)
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{wallet.ErrInsufficientFunds, http.StatusPaymentRequired},
		{fmt.Errorf("wrap: %w", earnings.ErrInsufficientFunds), http.StatusPaymentRequired},
		{accounts.ErrNotFound, http.StatusNotFound},
		{calls.ErrNotFound, http.StatusNotFound},
		{wallet.ErrBadRequest, http.StatusBadRequest},
		{payments.ErrInvalidSignature, http.StatusBadRequest},
		{calls.ErrForbidden, http.StatusForbidden},
		{calls.ErrInvalidTransition, http.StatusConflict},
		{earnings.ErrDuplicateEarning, http.StatusConflict},
		{fmt.Errorf("x: %w", wallet.ErrIdempotencyConflict), http.StatusConflict},
		{errors.New("database is on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, got)
		}
	}
}

func TestIssueDevToken_CreatesAccount(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/v1/auth/token", "", "", gin.H{"user_id": "u1", "display_name": "Alice"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[map[string]string](t, rec)
	claims, err := e.h.Auth.Verify(body["access_token"], auth.TokenTypeAccess, time.Now())
	require.NoError(t, err)
	require.Equal(t, "user", claims.Role)

	a, err := e.h.Accounts.Get(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, "Alice", a.DisplayName)

	rec = e.do(t, http.MethodPost, "/v1/auth/token", "", "", gin.H{"user_id": "u1", "role": "overlord"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	e.h.DevTokens = false
	e.r.POST("/v1/auth/token-off", e.h.IssueDevToken)
	rec = e.do(t, http.MethodPost, "/v1/auth/token-off", "", "", gin.H{"user_id": "u1"})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWalletEndpoints(t *testing.T) {
	e := newEnv(t)
	e.account(t, "u1", 100)
	e.account(t, "u2", 0)

	rec := e.do(t, http.MethodGet, "/v1/wallet/balance", "u1", "user", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 100, decode[map[string]any](t, rec)["coin_balance"])

	rec = e.do(t, http.MethodPost, "/v1/wallet/transfer", "u1", "user", gin.H{"to_user_id": "u2", "amount": 30})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.EqualValues(t, 70, decode[map[string]any](t, rec)["coin_balance"])

	rec = e.do(t, http.MethodPost, "/v1/wallet/transfer", "u1", "user", gin.H{"to_user_id": "u2", "amount": 500})
	require.Equal(t, http.StatusPaymentRequired, rec.Code)

	rec = e.do(t, http.MethodPost, "/v1/wallet/transfer", "u1", "user", gin.H{"to_user_id": "u1", "amount": 5})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodGet, "/v1/wallet/entries?limit=abc", "u1", "user", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodGet, "/v1/wallet/balance", "", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPaymentEndpoints(t *testing.T) {
	e := newEnv(t)
	e.account(t, "u1", 0)

	rec := e.do(t, http.MethodPost, "/v1/payments/orders", "u1", "user", gin.H{"package_id": "coins_100"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decode[payments.Order](t, rec)

	rec = e.do(t, http.MethodPost, "/v1/payments/confirm", "u1", "user", gin.H{
		"order_id": order.ProviderOrderID, "payment_id": "pay_1", "signature": "00",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/v1/payments/confirm", "u1", "user", gin.H{
		"order_id":   order.ProviderOrderID,
		"payment_id": "pay_1",
		"signature":  payments.Sign(order.ProviderOrderID, "pay_1", "rzp_secret"),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.EqualValues(t, 100, decode[map[string]any](t, rec)["new_balance"])

	rec = e.do(t, http.MethodGet, "/v1/payments/orders/"+order.ID, "u1", "user", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, payments.OrderStatusPaid, decode[payments.Order](t, rec).Status)

	rec = e.do(t, http.MethodGet, "/v1/payments/orders/"+order.ID, "u2", "user", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCallFlowOverHTTP(t *testing.T) {
	e := newEnv(t)
	e.account(t, "u1", 200)
	e.account(t, "h1", 0)

	rec := e.do(t, http.MethodPost, "/v1/admin/hosts/h1/verify", "admin-1", "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodPost, "/v1/calls", "u1", "user", gin.H{"receiver_id": "h1", "call_type": "video"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sess := decode[calls.Session](t, rec)
	require.Equal(t, int64(180), sess.MaxDurationSeconds)

	path := "/v1/calls/" + sess.Call.ID
	rec = e.do(t, http.MethodPost, path+"/status", "h1", "host", gin.H{"status": "answered"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	e.clock.advance(125 * time.Second)

	rec = e.do(t, http.MethodPost, path+"/status", "u1", "user", gin.H{"status": "completed", "duration_seconds": 125})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	done := decode[calls.Call](t, rec)
	require.Equal(t, calls.StatusCompleted, done.Status)
	require.Equal(t, int64(180), *done.CoinsCharged)

	rec = e.do(t, http.MethodPost, path+"/status", "u1", "user", gin.H{"status": "ringing"})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(t, http.MethodPost, "/v1/admin/calls/"+sess.Call.ID+"/settle", "admin-1", "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, int64(180), *decode[calls.Call](t, rec).CoinsCharged)

	rec = e.do(t, http.MethodGet, path, "stranger", "user", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec = e.do(t, http.MethodGet, path, "admin-1", "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodPost, path+"/rating", "u1", "user", gin.H{"stars": 5})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodGet, "/v1/host/summary", "h1", "host", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	s := decode[earnings.Summary](t, rec)
	require.Equal(t, int64(540), s.TotalEarningsMinor)

	rec = e.do(t, http.MethodPost, "/v1/host/withdrawals", "h1", "host", gin.H{"amount_minor": 100})
	require.Equal(t, http.StatusBadRequest, rec.Code, "below the minimum withdrawal")

	rec = e.do(t, http.MethodPost, "/v1/calls", "u1", "user", gin.H{"receiver_id": "h1", "call_type": "video"})
	require.Equal(t, http.StatusPaymentRequired, rec.Code, "20 coins left cannot cover a video minute")

	rec = e.do(t, http.MethodGet, "/v1/admin/reports/calls?from=2000-01-01T00:00:00Z&to=2100-01-01T00:00:00Z", "admin-1", "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[reporting.CallsSummary](t, rec)
	require.Equal(t, 1, report.TotalCalls)
	require.Equal(t, int64(180), report.TotalCoinsCharged)

	rec = e.do(t, http.MethodGet, "/v1/admin/reports/calls?from=yesterday", "admin-1", "admin", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminAdjustWallet_AuditsAndReconciles(t *testing.T) {
	e := newEnv(t)
	e.account(t, "u1", 10)

	rec := e.do(t, http.MethodPost, "/v1/admin/wallet/credit", "admin-1", "admin", gin.H{
		"user_id": "u1", "amount": 50, "reason": "goodwill", "idempotency_key": "adj-1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Replay posts nothing and records no second audit event.
	rec = e.do(t, http.MethodPost, "/v1/admin/wallet/credit", "admin-1", "admin", gin.H{
		"user_id": "u1", "amount": 50, "reason": "goodwill", "idempotency_key": "adj-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodPost, "/v1/admin/wallet/credit", "admin-1", "admin", gin.H{
		"user_id": "u1", "amount": -100, "reason": "clawback",
	})
	require.Equal(t, http.StatusPaymentRequired, rec.Code)

	rec = e.do(t, http.MethodGet, "/v1/admin/wallet/u1/reconcile", "admin-1", "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	recon := decode[wallet.Reconciliation](t, rec)
	require.True(t, recon.Consistent)
	require.Equal(t, int64(60), recon.Balance)

	evs := e.audits.Events()
	require.Len(t, evs, 2)
	require.Equal(t, audit.EventTypeWalletAdjustment, evs[0].Type)
	require.Equal(t, "admin-1", evs[0].ActorUserID)
	require.NotEmpty(t, evs[0].IPAddress)
	require.Equal(t, audit.EventTypeWalletReconcile, evs[1].Type)
}

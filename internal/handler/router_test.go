package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/ssraminder/financial-dashboard/internal/domain"
	"github.com/ssraminder/financial-dashboard/internal/handler"
	"github.com/ssraminder/financial-dashboard/internal/infra/cache"
	"github.com/ssraminder/financial-dashboard/internal/infra/memstore"
	"github.com/ssraminder/financial-dashboard/internal/infra/observability"
	"github.com/ssraminder/financial-dashboard/internal/service"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

type testEnv struct {
	router http.Handler
	store  *memstore.Store
}

func newTestEnv(t *testing.T, opts handler.Options) *testEnv {
	t.Helper()
	store := memstore.New(memstore.Demo())
	metrics := observability.NewMetrics()
	refs := cache.New[any](time.Minute)
	t.Cleanup(refs.Close)

	rec := service.NewReconcileService(store, refs, service.Options{SessionTTL: time.Minute}, metrics, zap.NewNop())
	t.Cleanup(rec.Close)
	review := service.NewReviewService(store, refs, metrics, zap.NewNop())

	if opts.Auth.JWTSecret == "" {
		opts.Auth.JWTSecret = testSecret
	}
	return &testEnv{
		router: handler.NewRouter(rec, review, opts, metrics, zap.NewNop()),
		store:  store,
	}
}

func signToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, handler.SupabaseClaims{
		Role: "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	s, err := tok.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, handler.Options{})

	rec := env.do(t, http.MethodGet, "/healthz", nil, "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

type downBackend struct{}

func (downBackend) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealthz_DegradedBackend(t *testing.T) {
	env := newTestEnv(t, handler.Options{Backend: downBackend{}})

	rec := env.do(t, http.MethodGet, "/healthz", nil, "")
	body := decode[map[string]any](t, rec)
	if body["status"] != "degraded" {
		t.Errorf("expected degraded, got %v", body["status"])
	}
}

func TestReadyzPingMetrics(t *testing.T) {
	env := newTestEnv(t, handler.Options{})

	for _, path := range []string{"/readyz", "/ping", "/metrics"} {
		rec := env.do(t, http.MethodGet, path, nil, "")
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t, handler.Options{})

	cases := []struct {
		name  string
		token string
		want  int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"garbage", "not-a-jwt", http.StatusUnauthorized},
		{"expired", signToken(t, "user-1", time.Now().Add(-time.Hour)), http.StatusUnauthorized},
		{"no subject", signToken(t, "", time.Now().Add(time.Hour)), http.StatusUnauthorized},
		{"valid", signToken(t, "user-1", time.Now().Add(time.Hour)), http.StatusOK},
	}
	for _, tc := range cases {
		rec := env.do(t, http.MethodGet, "/v1/bank-accounts", nil, tc.token)
		if rec.Code != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.name, tc.want, rec.Code)
		}
	}
}

func TestAuth_RejectionBody(t *testing.T) {
	env := newTestEnv(t, handler.Options{})

	rec := env.do(t, http.MethodGet, "/v1/bank-accounts", nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if msg := decode[map[string]any](t, rec)["error"]; msg != "missing bearer token" {
		t.Errorf("unexpected error body: %v", msg)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/bank-accounts", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("basic auth: expected 401, got %d", rec.Code)
	}
	if msg := decode[map[string]any](t, rec)["error"]; msg != "invalid authorization header" {
		t.Errorf("unexpected error body: %v", msg)
	}
}

func TestAuthDisabled(t *testing.T) {
	env := newTestEnv(t, handler.Options{Auth: handler.AuthConfig{Disabled: true}})

	rec := env.do(t, http.MethodGet, "/v1/categories", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decode[map[string][]map[string]any](t, rec)
	if len(body["categories"]) != 5 {
		t.Errorf("expected 5 active categories, got %d", len(body["categories"]))
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, handler.Options{CORSOrigins: []string{"http://localhost:5173"}})

	req := httptest.NewRequest(http.MethodOptions, "/v1/sessions", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("expected allowed origin header, got %q", got)
	}
}

func TestReconcileFlow(t *testing.T) {
	env := newTestEnv(t, handler.Options{})
	token := signToken(t, "user-42", time.Now().Add(time.Hour))

	rec := env.do(t, http.MethodPost, "/v1/sessions", nil, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: expected 201, got %d", rec.Code)
	}
	sessionID := decode[service.LedgerView](t, rec).SessionID
	base := "/v1/sessions/" + sessionID

	rec = env.do(t, http.MethodPut, base+"/selection", map[string]string{
		"bank_account_id": "acc-chq",
		"statement_id":    "st-chq-2024-01",
	}, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("select: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	view := decode[service.LedgerView](t, rec)
	if view.TotalRows != 5 || view.Balance.IsBalanced {
		t.Fatalf("unexpected initial ledger: %+v", view.Balance)
	}

	rec = env.do(t, http.MethodPost, base+"/confirm", nil, token)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("confirm unbalanced: expected 422, got %d", rec.Code)
	}
	if diff := decode[map[string]any](t, rec)["difference"]; diff != 80.0 {
		t.Errorf("expected difference 80, got %v", diff)
	}

	rec = env.do(t, http.MethodPost, base+"/transactions/tx-chq-5/toggle", nil, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle: expected 200, got %d", rec.Code)
	}
	edit := decode[service.EditResult](t, rec)
	if !edit.Applied || !edit.Balance.IsBalanced {
		t.Fatalf("toggle did not balance the statement: %+v", edit)
	}

	rec = env.do(t, http.MethodGet, base+"/ledger?status=changed", nil, token)
	if rows := decode[service.LedgerView](t, rec).Rows; len(rows) != 1 || rows[0].Index != 4 {
		t.Errorf("expected one changed row at index 4, got %+v", rows)
	}

	rec = env.do(t, http.MethodPost, base+"/commit", nil, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("commit: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, base+"/confirm", nil, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	confirmed := decode[service.LedgerView](t, rec)
	if !confirmed.Locked || confirmed.Statement.ConfirmedBy != "user-42" {
		t.Errorf("statement not confirmed by token subject: %+v", confirmed.Statement)
	}

	rec = env.do(t, http.MethodDelete, "/v1/statements/st-chq-2024-01", nil, token)
	if rec.Code != http.StatusLocked {
		t.Errorf("delete confirmed: expected 423, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/v1/notifications?unread=true", nil, token)
	notes := decode[struct {
		Notifications []domain.Notification `json:"notifications"`
		Page          int                   `json:"page"`
		PageSize      int                   `json:"page_size"`
	}](t, rec)
	if len(notes.Notifications) != 1 || notes.Notifications[0].EntityID != "st-chq-2024-01" {
		t.Errorf("expected one notification for the confirmed statement, got %+v", notes.Notifications)
	}
	if notes.Page != 1 || notes.PageSize != 20 {
		t.Errorf("expected page 1 of size 20, got %d/%d", notes.Page, notes.PageSize)
	}

	rec = env.do(t, http.MethodDelete, base, nil, token)
	if rec.Code != http.StatusNoContent {
		t.Errorf("close session: expected 204, got %d", rec.Code)
	}
}

func TestLedger_BadFilters(t *testing.T) {
	env := newTestEnv(t, handler.Options{Auth: handler.AuthConfig{Disabled: true}})
	sessionID := decode[service.LedgerView](t, env.do(t, http.MethodPost, "/v1/sessions", nil, "")).SessionID

	for _, q := range []string{"date_from=01/02/2024", "direction=sideways", "min_amount=abc", "status=weird"} {
		rec := env.do(t, http.MethodGet, "/v1/sessions/"+sessionID+"/ledger?"+q, nil, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, rec.Code)
		}
	}
}

func TestSetAmount_Validation(t *testing.T) {
	env := newTestEnv(t, handler.Options{Auth: handler.AuthConfig{Disabled: true}})
	sessionID := decode[service.LedgerView](t, env.do(t, http.MethodPost, "/v1/sessions", nil, "")).SessionID
	base := "/v1/sessions/" + sessionID
	env.do(t, http.MethodPut, base+"/selection", map[string]string{"bank_account_id": "acc-chq", "statement_id": "st-chq-2024-01"}, "")

	rec := env.do(t, http.MethodPut, base+"/transactions/tx-chq-1/amount", map[string]any{"amount": -5}, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative amount: expected 400, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodPut, base+"/transactions/tx-chq-1/amount", map[string]any{}, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing amount: expected 400, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodPut, base+"/transactions/tx-chq-1/amount", map[string]any{"amount": 2400}, "")
	if rec.Code != http.StatusOK {
		t.Errorf("valid amount: expected 200, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodPost, base+"/commit", nil, "")
	if rec.Code != http.StatusOK {
		t.Errorf("commit: expected 200, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodPost, base+"/commit", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty commit: expected 400, got %d", rec.Code)
	}
}

func TestCategorize(t *testing.T) {
	env := newTestEnv(t, handler.Options{Auth: handler.AuthConfig{Disabled: true}})

	rec := env.do(t, http.MethodPost, "/v1/transactions/tx-chq-3/categorize", map[string]string{"category_id": "cat-legacy"}, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("inactive category: expected 400, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/v1/transactions/tx-chq-3/categorize", map[string]string{"category_id": "cat-utilities"}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("categorize: expected 200, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/v1/review?limit=10", nil, "")
	if n := decode[map[string]any](t, rec)["count"]; n != 2.0 {
		t.Errorf("expected 2 queued, got %v", n)
	}
}

func TestUnknownSession(t *testing.T) {
	env := newTestEnv(t, handler.Options{Auth: handler.AuthConfig{Disabled: true}})

	rec := env.do(t, http.MethodGet, "/v1/sessions/nope/ledger", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestReconcileMetricsSnapshot(t *testing.T) {
	env := newTestEnv(t, handler.Options{Auth: handler.AuthConfig{Disabled: true}})

	rec := env.do(t, http.MethodGet, "/v1/metrics/reconcile", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if decode[map[string]any](t, rec)["period"] != "all_time" {
		t.Errorf("unexpected snapshot %s", rec.Body.String())
	}
}

package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ssraminder/financial-dashboard/internal/domain"
	"github.com/ssraminder/financial-dashboard/internal/infra/resilience"
)

type recorded struct {
	method string
	path   string
	query  string
	body   string
}

type fakePostgREST struct {
	mu    sync.Mutex
	calls []recorded
	reply func(n int, r *http.Request) (int, string)
}

func (f *fakePostgREST) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.calls = append(f.calls, recorded{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery, body: string(b)})
	n := len(f.calls)
	f.mu.Unlock()

	status, body := f.reply(n, r)
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (f *fakePostgREST) snapshot() []recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recorded, len(f.calls))
	copy(out, f.calls)
	return out
}

func newTestClient(t *testing.T, reply func(n int, r *http.Request) (int, string)) (*Client, *fakePostgREST) {
	t.Helper()
	fake := &fakePostgREST{reply: reply}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	cfg := resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxConcurrency: 4}
	c := NewClient(srv.Client(), srv.URL, "anon", "service", resilience.NewCircuitBreaker("test"), cfg, zap.NewNop())
	return c, fake
}

func TestListBankAccounts_SendsAuthAndDecodes(t *testing.T) {
	var gotKey, gotAuth string
	c, fake := newTestClient(t, func(_ int, r *http.Request) (int, string) {
		gotKey = r.Header.Get("apikey")
		gotAuth = r.Header.Get("Authorization")
		return http.StatusOK, `[{"id":"acc-1","name":"Chequing","account_type":"chequing","is_active":true}]`
	})

	accounts, err := c.ListBankAccounts(context.Background(), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(accounts) != 1 || accounts[0].ID != "acc-1" {
		t.Fatalf("unexpected accounts: %+v", accounts)
	}
	if gotKey != "anon" || gotAuth != "Bearer service" {
		t.Errorf("unexpected auth headers: apikey=%q authorization=%q", gotKey, gotAuth)
	}

	calls := fake.snapshot()
	if calls[0].path != "/rest/v1/bank_accounts" {
		t.Errorf("unexpected path %q", calls[0].path)
	}
	if !strings.Contains(calls[0].query, "is_active=eq.true") {
		t.Errorf("expected active filter, got %q", calls[0].query)
	}
}

func TestGetStatement_NotFound(t *testing.T) {
	c, _ := newTestClient(t, func(int, *http.Request) (int, string) {
		return http.StatusOK, `[]`
	})

	_, err := c.GetStatement(context.Background(), "st-404")
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if notFound.ID != "st-404" {
		t.Errorf("unexpected id %q", notFound.ID)
	}
}

func TestClientErrorIsNotRetried(t *testing.T) {
	c, fake := newTestClient(t, func(int, *http.Request) (int, string) {
		return http.StatusBadRequest, `{"message":"bad filter"}`
	})

	_, err := c.ListTransactions(context.Background(), "st-1")
	var ext *domain.ErrExternalService
	if !errors.As(err, &ext) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	var status *StatusError
	if !errors.As(err, &status) || status.Status != http.StatusBadRequest {
		t.Errorf("expected wrapped 400 StatusError, got %v", err)
	}
	if n := len(fake.snapshot()); n != 1 {
		t.Errorf("expected 1 call, got %d", n)
	}
}

func TestServerErrorIsRetried(t *testing.T) {
	c, fake := newTestClient(t, func(n int, _ *http.Request) (int, string) {
		if n < 3 {
			return http.StatusServiceUnavailable, `upstream`
		}
		return http.StatusOK, `[{"id":"tx-1","statement_import_id":"st-1","amount":-12.5,"transaction_type":"debit"}]`
	})

	txs, err := c.ListTransactions(context.Background(), "st-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(txs) != 1 || txs[0].Direction() != domain.Debit {
		t.Fatalf("unexpected transactions: %+v", txs)
	}
	if n := len(fake.snapshot()); n != 3 {
		t.Errorf("expected 3 calls, got %d", n)
	}
}

func TestUpdateTransaction_PayloadAndLockedFilter(t *testing.T) {
	c, fake := newTestClient(t, func(int, *http.Request) (int, string) {
		return http.StatusOK, `[{"id":"tx-1"}]`
	})

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	err := c.UpdateTransaction(context.Background(), "tx-1", domain.TransactionUpdate{
		TransactionType: domain.Debit,
		TotalAmount:     40,
		Amount:          -40,
		IsEdited:        true,
		EditedAt:        at,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	call := fake.snapshot()[0]
	if call.method != http.MethodPatch {
		t.Errorf("expected PATCH, got %s", call.method)
	}
	if !strings.Contains(call.query, "id=eq.tx-1") || !strings.Contains(call.query, "is_locked=eq.false") {
		t.Errorf("unexpected filter %q", call.query)
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(call.body), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["transaction_type"] != "debit" || payload["amount"] != -40.0 || payload["total_amount"] != 40.0 {
		t.Errorf("unexpected payload %v", payload)
	}
}

func TestUpdateTransaction_NoMatchingRow(t *testing.T) {
	c, _ := newTestClient(t, func(int, *http.Request) (int, string) {
		return http.StatusOK, `[]`
	})

	err := c.UpdateTransaction(context.Background(), "tx-locked", domain.TransactionUpdate{})
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConfirmStatement_LocksTransactions(t *testing.T) {
	c, fake := newTestClient(t, func(int, *http.Request) (int, string) {
		return http.StatusOK, `[{"id":"st-1"}]`
	})

	err := c.ConfirmStatement(context.Background(), "st-1", "user-1", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := fake.snapshot()
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
	if calls[0].path != "/rest/v1/statement_imports" || !strings.Contains(calls[0].body, `"status":"confirmed"`) {
		t.Errorf("unexpected first call %+v", calls[0])
	}
	if calls[1].path != "/rest/v1/transactions" || !strings.Contains(calls[1].body, `"is_locked":true`) {
		t.Errorf("unexpected second call %+v", calls[1])
	}
}

func TestDeleteStatement_RemovesTransactionsFirst(t *testing.T) {
	c, fake := newTestClient(t, func(int, *http.Request) (int, string) {
		return http.StatusOK, `[{"id":"x"}]`
	})

	if err := c.DeleteStatement(context.Background(), "st-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := fake.snapshot()
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
	if calls[0].method != http.MethodDelete || calls[0].path != "/rest/v1/transactions" {
		t.Errorf("expected transactions delete first, got %+v", calls[0])
	}
	if calls[1].path != "/rest/v1/statement_imports" {
		t.Errorf("expected statement delete second, got %+v", calls[1])
	}
}

func TestListNotifications_Pagination(t *testing.T) {
	c, fake := newTestClient(t, func(int, *http.Request) (int, string) {
		return http.StatusOK, `[]`
	})

	if _, err := c.ListNotifications(context.Background(), true, 3, 20); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	query := fake.snapshot()[0].query
	for _, want := range []string{"limit=20", "offset=40", "is_read=eq.false"} {
		if !strings.Contains(query, want) {
			t.Errorf("query %q missing %q", query, want)
		}
	}
}

func TestCircuitOpensAfterRepeatedFailures(t *testing.T) {
	c, _ := newTestClient(t, func(int, *http.Request) (int, string) {
		return http.StatusBadGateway, `down`
	})
	c.cfg.MaxRetries = 0

	var err error
	for i := 0; i < 6; i++ {
		err = c.Ping(context.Background())
	}
	var open *domain.ErrCircuitOpen
	if !errors.As(err, &open) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

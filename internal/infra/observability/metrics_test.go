package observability_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ssraminder/financial-dashboard/internal/infra/observability"
)

func TestMetrics_Snapshot(t *testing.T) {
	m := observability.NewMetrics()

	m.RecordCommit(7, 3)
	m.RecordCommit(1, 0)
	m.RecordBalanceCheck(true)
	m.RecordBalanceCheck(false)
	m.RecordBalanceCheck(false)
	m.IncrStaleSelection()
	m.IncrExternalError("supabase/transactions")
	m.IncrExternalError("supabase/statements")
	m.IncrCacheHit("categories")
	m.IncrCacheMiss("categories")
	m.IncrCacheHit("bank_accounts")
	m.IncrCacheHit("bank_accounts")

	s := m.Snapshot()
	if s.CommittedRows != 8 || s.FailedRows != 3 {
		t.Errorf("unexpected commit rows: %+v", s)
	}
	if s.BalancedChecks != 1 || s.UnbalancedChecks != 2 {
		t.Errorf("unexpected balance checks: %+v", s)
	}
	if s.StaleSelections != 1 {
		t.Errorf("expected 1 stale selection, got %d", s.StaleSelections)
	}
	if s.ExternalErrors != 2 {
		t.Errorf("expected 2 external errors, got %d", s.ExternalErrors)
	}
	if s.CacheHitRate != 0.75 {
		t.Errorf("expected hit rate 0.75, got %f", s.CacheHitRate)
	}
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a := observability.NewMetrics()
	b := observability.NewMetrics()
	a.RecordCommit(1, 0)

	if b.Snapshot().CommittedRows != 0 {
		t.Fatal("expected registries to be independent")
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := observability.NewMetrics()
	m.RecordBalanceCheck(true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ledger_balance_checks_total") {
		t.Error("expected balance check metric in output")
	}
}

func TestInitTracer_NoEndpoint(t *testing.T) {
	shutdown, err := observability.InitTracer("", "test")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("expected clean shutdown, got %v", err)
	}
}

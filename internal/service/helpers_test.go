package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ssraminder/financial-dashboard/internal/domain"
	"github.com/ssraminder/financial-dashboard/internal/infra/cache"
	"github.com/ssraminder/financial-dashboard/internal/infra/memstore"
	"github.com/ssraminder/financial-dashboard/internal/infra/observability"
	"github.com/ssraminder/financial-dashboard/internal/service"
)

var fixedNow = time.Date(2024, 2, 10, 9, 30, 0, 0, time.UTC)

// fakeStore wraps the in-memory store with injectable failures, gates
// and call counters.
type fakeStore struct {
	*memstore.Store

	mu         sync.Mutex
	failUpdate map[string]error
	failGetSt  error

	// gateStatement blocks GetStatement for one statement ID until
	// release is closed; entered is closed once the call is parked.
	gateStatement string
	// gateUpdate blocks every UpdateTransaction the same way.
	gateUpdate bool
	entered    chan struct{}
	release    chan struct{}
	enterOnce  sync.Once

	failList      atomic.Bool
	confirmCalls  atomic.Int32
	accountsCalls atomic.Int32
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		Store:      memstore.New(memstore.Demo()),
		failUpdate: map[string]error{},
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
}

func (f *fakeStore) park(ctx context.Context) error {
	f.enterOnce.Do(func() { close(f.entered) })
	select {
	case <-f.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeStore) GetStatement(ctx context.Context, id string) (*domain.StatementImport, error) {
	if f.gateStatement == id {
		if err := f.park(ctx); err != nil {
			return nil, err
		}
	}
	if f.failGetSt != nil {
		return nil, f.failGetSt
	}
	return f.Store.GetStatement(ctx, id)
}

func (f *fakeStore) ListTransactions(ctx context.Context, statementID string) ([]domain.Transaction, error) {
	if f.failList.Load() {
		return nil, &domain.ErrExternalService{Service: "supabase/transactions", Err: errors.New("timeout")}
	}
	return f.Store.ListTransactions(ctx, statementID)
}

func (f *fakeStore) UpdateTransaction(ctx context.Context, id string, u domain.TransactionUpdate) error {
	if f.gateUpdate {
		if err := f.park(ctx); err != nil {
			return err
		}
	}
	f.mu.Lock()
	err := f.failUpdate[id]
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Store.UpdateTransaction(ctx, id, u)
}

func (f *fakeStore) ConfirmStatement(ctx context.Context, id, actor string, at time.Time) error {
	f.confirmCalls.Add(1)
	return f.Store.ConfirmStatement(ctx, id, actor, at)
}

func (f *fakeStore) ListBankAccounts(ctx context.Context, activeOnly bool) ([]domain.BankAccount, error) {
	f.accountsCalls.Add(1)
	return f.Store.ListBankAccounts(ctx, activeOnly)
}

func newReconcileService(t *testing.T, store *fakeStore) *service.ReconcileService {
	t.Helper()
	refs := cache.New[any](time.Minute)
	t.Cleanup(refs.Close)

	svc := service.NewReconcileService(store, refs, service.Options{
		CommitConcurrency: 4,
		SessionTTL:        time.Minute,
		Now:               func() time.Time { return fixedNow },
	}, observability.NewMetrics(), zap.NewNop())
	t.Cleanup(svc.Close)
	return svc
}

func newReviewService(t *testing.T, store *fakeStore) *service.ReviewService {
	t.Helper()
	refs := cache.New[any](time.Minute)
	t.Cleanup(refs.Close)
	return service.NewReviewService(store, refs, observability.NewMetrics(), zap.NewNop())
}

func findRow(t *testing.T, v *service.LedgerView, id string) service.LedgerRow {
	t.Helper()
	for _, r := range v.Rows {
		if r.TransactionID == id {
			return r
		}
	}
	t.Fatalf("row %s not in view", id)
	return service.LedgerRow{}
}

// Package service provides the business logic layer (use cases).
// ReconcileService owns statement review sessions; ReviewService covers
// the categorisation queue, chart of accounts and notifications.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ssraminder/financial-dashboard/internal/domain"
	"github.com/ssraminder/financial-dashboard/internal/infra/cache"
	"github.com/ssraminder/financial-dashboard/internal/infra/observability"
	"github.com/ssraminder/financial-dashboard/internal/port"
	"github.com/ssraminder/financial-dashboard/internal/reconcile"
)

var tracer = otel.Tracer("service/reconcile")

// DefaultSessionTTL is the idle lifetime of a session when none is set.
const DefaultSessionTTL = 30 * time.Minute

// Options tunes ReconcileService.
type Options struct {
	CommitConcurrency int
	SessionTTL        time.Duration
	Now               func() time.Time
}

// ReconcileService runs statement review sessions against a LedgerStore.
type ReconcileService struct {
	store    port.LedgerStore
	refs     port.Cache[any]
	sessions *cache.InMemory[*Session]
	opts     Options
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewReconcileService creates the service. Idle sessions expire after
// opts.SessionTTL.
func NewReconcileService(store port.LedgerStore, refs port.Cache[any], opts Options, metrics *observability.Metrics, logger *zap.Logger) *ReconcileService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	if opts.CommitConcurrency <= 0 {
		opts.CommitConcurrency = reconcile.DefaultCommitConcurrency
	}
	s := &ReconcileService{
		store:   store,
		refs:    refs,
		opts:    opts,
		metrics: metrics,
		logger:  logger,
	}
	s.sessions = cache.New[*Session](opts.SessionTTL,
		cache.WithSlidingExpiry[*Session](),
		cache.WithEvictHook(func(id string, _ *Session) {
			logger.Debug("session expired", zap.String("session_id", id))
			metrics.SetActiveSessions(s.sessions.Len())
		}),
	)
	return s
}

// Close stops the session janitor.
func (s *ReconcileService) Close() {
	s.sessions.Close()
}

// ============================================================
// Sessions
// ============================================================

// CreateSession opens an empty review session.
func (s *ReconcileService) CreateSession(ctx context.Context) (*LedgerView, error) {
	_, span := tracer.Start(ctx, "ReconcileService.CreateSession")
	defer span.End()

	sess := newSession(uuid.NewString(), s.opts.Now().UTC())
	s.sessions.Set(sess.ID, sess)
	s.metrics.SetActiveSessions(s.sessions.Len())

	s.logger.Info("session opened", zap.String("session_id", sess.ID))

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view(reconcile.Criteria{}), nil
}

// CloseSession discards a session and its unsaved edits.
func (s *ReconcileService) CloseSession(sessionID string) error {
	if _, ok := s.sessions.Get(sessionID); !ok {
		return &domain.ErrNotFound{Resource: "session", ID: sessionID}
	}
	s.sessions.Delete(sessionID)
	s.metrics.SetActiveSessions(s.sessions.Len())
	s.logger.Info("session closed", zap.String("session_id", sessionID))
	return nil
}

func (s *ReconcileService) session(id string) (*Session, error) {
	sess, ok := s.sessions.Get(id)
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "session", ID: id}
	}
	return sess, nil
}

// Select switches a session to a statement and loads it. If another
// selection is made before the fetch returns, the fetched data is
// dropped and ErrStaleSelection is returned.
func (s *ReconcileService) Select(ctx context.Context, sessionID, bankAccountID, statementID string) (*LedgerView, error) {
	ctx, span := tracer.Start(ctx, "ReconcileService.Select")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", sessionID),
		attribute.String("statement.id", statementID),
	)

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("select", time.Since(start))
	}()

	if bankAccountID == "" {
		return nil, &domain.ErrValidation{Field: "bank_account_id", Message: "is required"}
	}
	if statementID == "" {
		return nil, &domain.ErrValidation{Field: "statement_id", Message: "is required"}
	}

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	if sess.busy {
		sess.mu.Unlock()
		return nil, &domain.ErrConflict{Message: "a save is in progress for this session"}
	}
	sess.generation++
	gen := sess.generation
	sess.bankAccountID = bankAccountID
	sess.statementID = statementID
	sess.loading = true
	sess.mu.Unlock()

	var (
		account   *domain.BankAccount
		statement *domain.StatementImport
		txs       []domain.Transaction
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a, err := s.store.GetBankAccount(gCtx, bankAccountID)
		if err != nil {
			return fmt.Errorf("bank account fetch: %w", err)
		}
		account = a
		return nil
	})
	g.Go(func() error {
		st, err := s.store.GetStatement(gCtx, statementID)
		if err != nil {
			return fmt.Errorf("statement fetch: %w", err)
		}
		statement = st
		return nil
	})
	g.Go(func() error {
		t, err := s.store.ListTransactions(gCtx, statementID)
		if err != nil {
			return fmt.Errorf("transactions fetch: %w", err)
		}
		txs = t
		return nil
	})
	fetchErr := g.Wait()

	if fetchErr == nil && statement.BankAccountID != bankAccountID {
		fetchErr = &domain.ErrValidation{Field: "statement_id", Message: "statement does not belong to the selected bank account"}
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.generation != gen {
		s.metrics.IncrStaleSelection()
		s.logger.Info("discarding stale statement fetch",
			zap.String("session_id", sessionID),
			zap.String("statement_id", statementID),
		)
		return nil, &domain.ErrStaleSelection{StatementID: statementID}
	}
	sess.loading = false

	if fetchErr != nil {
		sess.account = nil
		sess.statement = nil
		sess.overlay = reconcile.EmptyOverlay()
		s.observeErr(fetchErr)
		s.logger.Error("statement load failed",
			zap.String("session_id", sessionID),
			zap.String("statement_id", statementID),
			zap.Error(fetchErr),
		)
		return nil, fetchErr
	}

	sess.account = account
	sess.statement = statement
	sess.overlay = reconcile.NewOverlay(statement.OpeningBalance, account.IsLiability(), statement.IsConfirmed(), txs)

	_, chk := sess.check()
	s.metrics.RecordBalanceCheck(chk.IsBalanced)

	s.logger.Info("statement loaded",
		zap.String("session_id", sessionID),
		zap.String("statement_id", statementID),
		zap.Int("transactions", len(txs)),
		zap.Bool("balanced", chk.IsBalanced),
	)
	return sess.view(reconcile.Criteria{}), nil
}

// Ledger returns the session's projected rows that pass the criteria.
// Balances always cover the full list.
func (s *ReconcileService) Ledger(ctx context.Context, sessionID string, c reconcile.Criteria) (*LedgerView, error) {
	_, span := tracer.Start(ctx, "ReconcileService.Ledger")
	defer span.End()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view(c), nil
}

// ============================================================
// Edits
// ============================================================

// Toggle flips a row's working direction.
func (s *ReconcileService) Toggle(ctx context.Context, sessionID, transactionID string) (*EditResult, error) {
	_, span := tracer.Start(ctx, "ReconcileService.Toggle")
	defer span.End()

	return s.edit(sessionID, transactionID, func(o *reconcile.Overlay) bool {
		return o.Toggle(transactionID)
	})
}

// SetAmount replaces a row's working amount.
func (s *ReconcileService) SetAmount(ctx context.Context, sessionID, transactionID string, amount float64) (*EditResult, error) {
	_, span := tracer.Start(ctx, "ReconcileService.SetAmount")
	defer span.End()

	if !reconcile.ValidAmount(amount) {
		return nil, &domain.ErrValidation{Field: "amount", Message: "must be a finite, non-negative number"}
	}
	return s.edit(sessionID, transactionID, func(o *reconcile.Overlay) bool {
		return o.SetAmount(transactionID, amount)
	})
}

func (s *ReconcileService) edit(sessionID, transactionID string, apply func(*reconcile.Overlay) bool) (*EditResult, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := sess.writable(); err != nil {
		return nil, err
	}
	if _, ok := sess.overlay.IndexOf(transactionID); !ok {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: transactionID}
	}
	return sess.editResult(transactionID, apply(sess.overlay)), nil
}

// Reset discards every unsaved edit in the session.
func (s *ReconcileService) Reset(ctx context.Context, sessionID string) (*LedgerView, error) {
	_, span := tracer.Start(ctx, "ReconcileService.Reset")
	defer span.End()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := sess.writable(); err != nil {
		return nil, err
	}
	sess.overlay.Reset()
	return sess.view(reconcile.Criteria{}), nil
}

// ============================================================
// Commit & confirm
// ============================================================

// Commit saves every dirty row, then re-fetches the statement's rows so
// the stored values become the new baseline. Rows that failed keep their
// edits across the reload.
func (s *ReconcileService) Commit(ctx context.Context, sessionID string) (*CommitOutcome, error) {
	ctx, span := tracer.Start(ctx, "ReconcileService.Commit")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("commit", time.Since(start))
	}()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	if err := sess.writable(); err != nil {
		sess.mu.Unlock()
		return nil, err
	}
	if sess.statement == nil || sess.overlay.DirtyCount() == 0 {
		sess.mu.Unlock()
		return nil, &domain.ErrValidation{Field: "transactions", Message: "no changes to save"}
	}
	sess.busy = true
	gen := sess.generation
	statementID := sess.statement.ID
	pending := reconcile.Plan(sess.overlay, s.opts.Now().UTC())
	sess.mu.Unlock()

	defer func() {
		sess.mu.Lock()
		sess.busy = false
		sess.mu.Unlock()
	}()

	res := reconcile.Apply(ctx, s.store, pending, s.opts.CommitConcurrency)
	s.metrics.RecordCommit(len(res.Updated), len(res.Failed))
	for _, f := range res.Failed {
		s.observeErr(f.Err)
		s.logger.Warn("transaction update failed",
			zap.String("session_id", sessionID),
			zap.String("transaction_id", f.TransactionID),
			zap.Error(f.Err),
		)
	}
	s.logger.Info("commit finished",
		zap.String("session_id", sessionID),
		zap.String("statement_id", statementID),
		zap.Int("updated", len(res.Updated)),
		zap.Int("failed", len(res.Failed)),
	)

	sess.mu.Lock()
	current := sess.generation == gen
	if current {
		reconcile.Settle(sess.overlay, pending, res)
	}
	sess.mu.Unlock()

	out := &CommitOutcome{CommitResult: res}
	if !current {
		return out, nil
	}

	txs, err := s.store.ListTransactions(ctx, statementID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.generation != gen {
		return out, nil
	}
	if err != nil {
		s.observeErr(err)
		s.logger.Error("reload after commit failed",
			zap.String("session_id", sessionID),
			zap.String("statement_id", statementID),
			zap.Error(err),
		)
		out.ReloadError = err.Error()
	} else {
		sess.overlay.Rebase(txs)
	}
	out.Ledger = sess.view(reconcile.Criteria{})
	return out, nil
}

// Confirm locks the session's statement. It is refused, without any
// backend call, when the statement is already confirmed, out of balance
// or has unsaved edits.
func (s *ReconcileService) Confirm(ctx context.Context, sessionID, actor string) (*LedgerView, error) {
	ctx, span := tracer.Start(ctx, "ReconcileService.Confirm")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	if err := s.confirmGuard(sess); err != nil {
		sess.mu.Unlock()
		return nil, err
	}
	sess.busy = true
	gen := sess.generation
	statement := *sess.statement
	liability := sess.account.IsLiability()
	sess.mu.Unlock()

	defer func() {
		sess.mu.Lock()
		sess.busy = false
		sess.mu.Unlock()
	}()

	now := s.opts.Now().UTC()
	if err := s.store.ConfirmStatement(ctx, statement.ID, actor, now); err != nil {
		s.observeErr(err)
		s.logger.Error("statement confirm failed",
			zap.String("statement_id", statement.ID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("confirm statement: %w", err)
	}
	s.logger.Info("statement confirmed",
		zap.String("session_id", sessionID),
		zap.String("statement_id", statement.ID),
		zap.String("actor", actor),
	)

	note := domain.Notification{
		ID:        uuid.NewString(),
		Type:      "statement_confirmed",
		Title:     "Statement confirmed",
		Body:      fmt.Sprintf("Statement %s to %s was confirmed with closing balance %.2f.", statement.PeriodStart, statement.PeriodEnd, statement.ClosingBalance),
		EntityID:  statement.ID,
		CreatedAt: now,
	}
	if err := s.store.CreateNotification(ctx, note); err != nil {
		s.logger.Warn("confirm notification not recorded",
			zap.String("statement_id", statement.ID),
			zap.Error(err),
		)
	}

	return s.reload(ctx, sess, gen, statement.ID, liability, actor, now)
}

// confirmGuard runs every confirm precondition. Caller holds mu.
func (s *ReconcileService) confirmGuard(sess *Session) error {
	if err := sess.writable(); err != nil {
		return err
	}
	if sess.statement == nil || sess.account == nil {
		return &domain.ErrValidation{Field: "statement_id", Message: "no statement loaded"}
	}
	if sess.statement.IsConfirmed() {
		return &domain.ErrLocked{StatementID: sess.statement.ID}
	}
	_, chk := sess.check()
	s.metrics.RecordBalanceCheck(chk.IsBalanced)
	if !chk.IsBalanced {
		return &domain.ErrUnbalanced{StatementID: sess.statement.ID, Difference: chk.Difference.InexactFloat64()}
	}
	if n := sess.overlay.DirtyCount(); n > 0 {
		return &domain.ErrValidation{Field: "transactions", Message: fmt.Sprintf("%d unsaved changes must be saved first", n)}
	}
	return nil
}

// reload re-fetches a just-confirmed statement and its rows and rebuilds
// the overlay, unless the session moved to another selection meanwhile.
// When the fetch fails the session is locked locally so further edits are
// refused instead of failing at commit.
func (s *ReconcileService) reload(ctx context.Context, sess *Session, gen uint64, statementID string, liability bool, actor string, at time.Time) (*LedgerView, error) {
	var (
		statement *domain.StatementImport
		txs       []domain.Transaction
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		st, err := s.store.GetStatement(gCtx, statementID)
		statement = st
		return err
	})
	g.Go(func() error {
		t, err := s.store.ListTransactions(gCtx, statementID)
		txs = t
		return err
	})
	err := g.Wait()

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.generation != gen {
		s.metrics.IncrStaleSelection()
		return nil, &domain.ErrStaleSelection{StatementID: statementID}
	}
	if err != nil {
		s.observeErr(err)
		s.logger.Error("reload after confirm failed",
			zap.String("session_id", sess.ID),
			zap.String("statement_id", statementID),
			zap.Error(err),
		)
		sess.markConfirmed(actor, at)
		return nil, fmt.Errorf("reload statement: %w", err)
	}
	sess.statement = statement
	sess.overlay = reconcile.NewOverlay(statement.OpeningBalance, liability, statement.IsConfirmed(), txs)
	return sess.view(reconcile.Criteria{}), nil
}

// ============================================================
// Accounts & statements
// ============================================================

// BankAccounts lists bank accounts, cached for the reference TTL.
func (s *ReconcileService) BankAccounts(ctx context.Context, activeOnly bool) ([]domain.BankAccount, error) {
	ctx, span := tracer.Start(ctx, "ReconcileService.BankAccounts")
	defer span.End()

	key := fmt.Sprintf("bank_accounts:active=%t", activeOnly)
	if cached, ok := s.refs.Get(key); ok {
		if accounts, ok := cached.([]domain.BankAccount); ok {
			s.metrics.IncrCacheHit("bank_accounts")
			return accounts, nil
		}
	}
	s.metrics.IncrCacheMiss("bank_accounts")

	accounts, err := s.store.ListBankAccounts(ctx, activeOnly)
	if err != nil {
		s.observeErr(err)
		return nil, fmt.Errorf("bank accounts fetch: %w", err)
	}
	s.refs.Set(key, accounts)
	return accounts, nil
}

// Statements lists an account's statements, newest period first.
func (s *ReconcileService) Statements(ctx context.Context, bankAccountID string) ([]domain.StatementImport, error) {
	ctx, span := tracer.Start(ctx, "ReconcileService.Statements")
	defer span.End()
	span.SetAttributes(attribute.String("bank_account.id", bankAccountID))

	statements, err := s.store.ListStatements(ctx, bankAccountID)
	if err != nil {
		s.observeErr(err)
		return nil, fmt.Errorf("statements fetch: %w", err)
	}
	return statements, nil
}

// DeleteStatement removes an unconfirmed statement and its transactions.
func (s *ReconcileService) DeleteStatement(ctx context.Context, statementID string) error {
	ctx, span := tracer.Start(ctx, "ReconcileService.DeleteStatement")
	defer span.End()
	span.SetAttributes(attribute.String("statement.id", statementID))

	st, err := s.store.GetStatement(ctx, statementID)
	if err != nil {
		return err
	}
	if st.IsConfirmed() {
		return &domain.ErrLocked{StatementID: statementID}
	}
	if err := s.store.DeleteStatement(ctx, statementID); err != nil {
		s.observeErr(err)
		return fmt.Errorf("delete statement: %w", err)
	}
	s.logger.Info("statement deleted", zap.String("statement_id", statementID))
	return nil
}

// observeErr counts backend failures by service.
func (s *ReconcileService) observeErr(err error) {
	observeExternal(s.metrics, err)
}

func observeExternal(m *observability.Metrics, err error) {
	var ext *domain.ErrExternalService
	if errors.As(err, &ext) {
		m.IncrExternalError(ext.Service)
		return
	}
	var open *domain.ErrCircuitOpen
	if errors.As(err, &open) {
		m.IncrExternalError(open.Service)
	}
}

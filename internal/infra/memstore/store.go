// Package memstore is an in-memory port.LedgerStore used by tests and the
// --demo mode of the CLI. It mirrors the ordering and locking rules of
// the Supabase adapter; it is not meant for production data.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ssraminder/financial-dashboard/internal/domain"
	"github.com/ssraminder/financial-dashboard/internal/port"
)

var _ port.LedgerStore = (*Store)(nil)

// Store holds one Dataset behind a mutex.
type Store struct {
	mu sync.RWMutex

	accounts      map[string]domain.BankAccount
	statements    map[string]domain.StatementImport
	transactions  map[string]domain.Transaction
	txOrder       []string // insertion order, used as the id tiebreak
	categories    map[string]domain.Category
	notifications []domain.Notification

	now func() time.Time
}

// New builds a store holding a copy of ds.
func New(ds Dataset) *Store {
	s := &Store{
		accounts:     make(map[string]domain.BankAccount, len(ds.BankAccounts)),
		statements:   make(map[string]domain.StatementImport, len(ds.Statements)),
		transactions: make(map[string]domain.Transaction, len(ds.Transactions)),
		categories:   make(map[string]domain.Category, len(ds.Categories)),
		now:          time.Now,
	}
	for _, a := range ds.BankAccounts {
		s.accounts[a.ID] = a
	}
	for _, st := range ds.Statements {
		s.statements[st.ID] = st
	}
	for _, tx := range ds.Transactions {
		if _, dup := s.transactions[tx.ID]; !dup {
			s.txOrder = append(s.txOrder, tx.ID)
		}
		s.transactions[tx.ID] = tx
	}
	for _, c := range ds.Categories {
		s.categories[c.ID] = c
	}
	s.notifications = append(s.notifications, ds.Notifications...)
	return s
}

// Snapshot returns a copy of the current contents.
func (s *Store) Snapshot() Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ds Dataset
	for _, a := range s.accounts {
		ds.BankAccounts = append(ds.BankAccounts, a)
	}
	sort.Slice(ds.BankAccounts, func(i, j int) bool { return ds.BankAccounts[i].ID < ds.BankAccounts[j].ID })
	for _, st := range s.statements {
		ds.Statements = append(ds.Statements, st)
	}
	sort.Slice(ds.Statements, func(i, j int) bool { return ds.Statements[i].ID < ds.Statements[j].ID })
	for _, id := range s.txOrder {
		ds.Transactions = append(ds.Transactions, s.transactions[id])
	}
	for _, c := range s.categories {
		ds.Categories = append(ds.Categories, c)
	}
	sort.Slice(ds.Categories, func(i, j int) bool { return ds.Categories[i].ID < ds.Categories[j].ID })
	ds.Notifications = append(ds.Notifications, s.notifications...)
	return ds
}

// ============================================================
// Bank accounts & statements
// ============================================================

func (s *Store) ListBankAccounts(ctx context.Context, activeOnly bool) ([]domain.BankAccount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.BankAccount{}
	for _, a := range s.accounts {
		if activeOnly && !a.IsActive {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetBankAccount(ctx context.Context, id string) (*domain.BankAccount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "bank account", ID: id}
	}
	return &a, nil
}

func (s *Store) ListStatements(ctx context.Context, bankAccountID string) ([]domain.StatementImport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.StatementImport{}
	for _, st := range s.statements {
		if st.BankAccountID == bankAccountID {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodEnd > out[j].PeriodEnd })
	return out, nil
}

func (s *Store) GetStatement(ctx context.Context, id string) (*domain.StatementImport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.statements[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "statement", ID: id}
	}
	return &st, nil
}

func (s *Store) ConfirmStatement(ctx context.Context, id, actor string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.statements[id]
	if !ok {
		return &domain.ErrNotFound{Resource: "statement", ID: id}
	}
	at = at.UTC()
	st.Status = domain.StatementConfirmed
	st.ConfirmedAt = &at
	st.ConfirmedBy = actor
	s.statements[id] = st

	for txID, tx := range s.transactions {
		if tx.StatementImportID == id {
			tx.IsLocked = true
			s.transactions[txID] = tx
		}
	}
	return nil
}

func (s *Store) DeleteStatement(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.statements[id]; !ok {
		return &domain.ErrNotFound{Resource: "statement", ID: id}
	}
	kept := s.txOrder[:0]
	for _, txID := range s.txOrder {
		if s.transactions[txID].StatementImportID == id {
			delete(s.transactions, txID)
			continue
		}
		kept = append(kept, txID)
	}
	s.txOrder = kept
	delete(s.statements, id)
	return nil
}

// ============================================================
// Transactions
// ============================================================

// txBefore orders by transaction date, then ID, matching the PostgREST
// order transaction_date.asc,id.asc.
func txBefore(a, b domain.Transaction) bool {
	if a.TransactionDate != b.TransactionDate {
		return a.TransactionDate < b.TransactionDate
	}
	return a.ID < b.ID
}

// ListTransactions returns a statement's rows by transaction date, ties
// by ID.
func (s *Store) ListTransactions(ctx context.Context, statementImportID string) ([]domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.Transaction{}
	for _, id := range s.txOrder {
		tx := s.transactions[id]
		if tx.StatementImportID == statementImportID {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return txBefore(out[i], out[j]) })
	return out, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, id string, update domain.TransactionUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[id]
	if !ok {
		return &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	if tx.IsLocked {
		return &domain.ErrLocked{StatementID: tx.StatementImportID}
	}
	total := update.TotalAmount
	editedAt := update.EditedAt
	tx.TransactionType = update.TransactionType
	tx.TotalAmount = &total
	tx.Amount = update.Amount
	tx.IsEdited = update.IsEdited
	tx.EditedAt = &editedAt
	s.transactions[id] = tx
	return nil
}

func (s *Store) ListReviewQueue(ctx context.Context, limit int) ([]domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.Transaction{}
	for _, id := range s.txOrder {
		if tx := s.transactions[id]; tx.NeedsReview {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return txBefore(out[i], out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CategorizeTransaction(ctx context.Context, id, categoryID string, _ time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[id]
	if !ok {
		return &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	cat := categoryID
	tx.CategoryID = &cat
	tx.NeedsReview = false
	s.transactions[id] = tx
	return nil
}

// ============================================================
// Chart of accounts & notifications
// ============================================================

func (s *Store) ListCategories(ctx context.Context, activeOnly bool) ([]domain.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.Category{}
	for _, c := range s.categories {
		if activeOnly && !c.IsActive {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) ListNotifications(ctx context.Context, unreadOnly bool, page, pageSize int) ([]domain.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]domain.Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		if unreadOnly && n.IsRead {
			continue
		}
		all = append(all, n)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	start := (page - 1) * pageSize
	if start < 0 || start >= len(all) {
		return []domain.Notification{}, nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (s *Store) CreateNotification(ctx context.Context, n domain.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now().UTC()
	}
	s.notifications = append(s.notifications, n)
	return nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.notifications {
		if s.notifications[i].ID == id {
			at := s.now().UTC()
			s.notifications[i].IsRead = true
			s.notifications[i].ReadAt = &at
			return nil
		}
	}
	return &domain.ErrNotFound{Resource: "notification", ID: id}
}

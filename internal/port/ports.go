// Package port defines the interfaces (ports) for external dependencies.
// The reconciliation services depend on these, never on a concrete backend.
package port

import (
	"context"
	"time"

	"github.com/ssraminder/financial-dashboard/internal/domain"
)

// LedgerStore is the data-access surface of the hosted backend.
// Implemented by the Supabase adapter and by the in-memory store.
type LedgerStore interface {
	// Bank accounts & statements
	ListBankAccounts(ctx context.Context, activeOnly bool) ([]domain.BankAccount, error)
	GetBankAccount(ctx context.Context, id string) (*domain.BankAccount, error)
	ListStatements(ctx context.Context, bankAccountID string) ([]domain.StatementImport, error)
	GetStatement(ctx context.Context, id string) (*domain.StatementImport, error)
	ConfirmStatement(ctx context.Context, id, actor string, at time.Time) error
	DeleteStatement(ctx context.Context, id string) error

	// Transactions
	ListTransactions(ctx context.Context, statementImportID string) ([]domain.Transaction, error)
	UpdateTransaction(ctx context.Context, id string, update domain.TransactionUpdate) error
	ListReviewQueue(ctx context.Context, limit int) ([]domain.Transaction, error)
	CategorizeTransaction(ctx context.Context, id, categoryID string, at time.Time) error

	// Chart of accounts
	ListCategories(ctx context.Context, activeOnly bool) ([]domain.Category, error)

	// Notifications
	ListNotifications(ctx context.Context, unreadOnly bool, page, pageSize int) ([]domain.Notification, error)
	CreateNotification(ctx context.Context, n domain.Notification) error
	MarkNotificationRead(ctx context.Context, id string) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

package supabase

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ssraminder/financial-dashboard/internal/domain"
)

// ============================================================
// Bank accounts
// ============================================================

func (c *Client) ListBankAccounts(ctx context.Context, activeOnly bool) ([]domain.BankAccount, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListBankAccounts")
	defer span.End()

	path := "bank_accounts?order=name.asc"
	if activeOnly {
		path += "&is_active=eq.true"
	}

	rows := []domain.BankAccount{}
	if err := c.read(ctx, "supabase/bank_accounts", path, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) GetBankAccount(ctx context.Context, id string) (*domain.BankAccount, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetBankAccount")
	defer span.End()
	span.SetAttributes(attrID("bank_account.id", id))

	var rows []domain.BankAccount
	path := fmt.Sprintf("bank_accounts?id=eq.%s&limit=1", q(id))
	if err := c.read(ctx, "supabase/bank_accounts", path, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "bank account", ID: id}
	}
	return &rows[0], nil
}

// ============================================================
// Statement imports
// ============================================================

func (c *Client) ListStatements(ctx context.Context, bankAccountID string) ([]domain.StatementImport, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListStatements")
	defer span.End()
	span.SetAttributes(attrID("bank_account.id", bankAccountID))

	rows := []domain.StatementImport{}
	path := fmt.Sprintf("statement_imports?bank_account_id=eq.%s&order=period_end.desc", q(bankAccountID))
	if err := c.read(ctx, "supabase/statements", path, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) GetStatement(ctx context.Context, id string) (*domain.StatementImport, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetStatement")
	defer span.End()
	span.SetAttributes(attrID("statement.id", id))

	var rows []domain.StatementImport
	path := fmt.Sprintf("statement_imports?id=eq.%s&limit=1", q(id))
	if err := c.read(ctx, "supabase/statements", path, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "statement", ID: id}
	}
	return &rows[0], nil
}

// ConfirmStatement marks the statement confirmed, then locks its transactions.
func (c *Client) ConfirmStatement(ctx context.Context, id, actor string, at time.Time) error {
	ctx, span := tracer.Start(ctx, "Supabase.ConfirmStatement")
	defer span.End()
	span.SetAttributes(attrID("statement.id", id))

	body, err := c.write(ctx, "supabase/statements", http.MethodPatch,
		fmt.Sprintf("statement_imports?id=eq.%s", q(id)),
		map[string]any{
			"status":       domain.StatementConfirmed,
			"confirmed_at": at.UTC(),
			"confirmed_by": actor,
		})
	if err != nil {
		return err
	}
	if err := expectRows(body, "statement", id); err != nil {
		return err
	}

	if _, err := c.write(ctx, "supabase/transactions", http.MethodPatch,
		fmt.Sprintf("transactions?statement_import_id=eq.%s", q(id)),
		map[string]any{"is_locked": true},
	); err != nil {
		return fmt.Errorf("lock transactions: %w", err)
	}

	c.logger.Info("supabase: statement confirmed",
		zap.String("statement_id", id),
		zap.String("confirmed_by", actor),
	)
	return nil
}

// DeleteStatement removes the statement's transactions first; the
// foreign key from transactions forbids the reverse order.
func (c *Client) DeleteStatement(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteStatement")
	defer span.End()
	span.SetAttributes(attrID("statement.id", id))

	if _, err := c.write(ctx, "supabase/transactions", http.MethodDelete,
		fmt.Sprintf("transactions?statement_import_id=eq.%s", q(id)), nil,
	); err != nil {
		return fmt.Errorf("delete transactions: %w", err)
	}

	body, err := c.write(ctx, "supabase/statements", http.MethodDelete,
		fmt.Sprintf("statement_imports?id=eq.%s", q(id)), nil)
	if err != nil {
		return fmt.Errorf("delete statement: %w", err)
	}
	return expectRows(body, "statement", id)
}

// ============================================================
// Transactions
// ============================================================

func (c *Client) ListTransactions(ctx context.Context, statementImportID string) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListTransactions")
	defer span.End()
	span.SetAttributes(attrID("statement.id", statementImportID))

	rows := []domain.Transaction{}
	path := fmt.Sprintf("transactions?statement_import_id=eq.%s&order=transaction_date.asc,id.asc", q(statementImportID))
	if err := c.read(ctx, "supabase/transactions", path, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) UpdateTransaction(ctx context.Context, id string, update domain.TransactionUpdate) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateTransaction")
	defer span.End()
	span.SetAttributes(attrID("transaction.id", id))

	// is_locked=eq.false keeps a confirmed statement's rows untouched even
	// if a stale session still holds edits for them.
	body, err := c.write(ctx, "supabase/transactions", http.MethodPatch,
		fmt.Sprintf("transactions?id=eq.%s&is_locked=eq.false", q(id)), update)
	if err != nil {
		return err
	}
	return expectRows(body, "unlocked transaction", id)
}

func (c *Client) ListReviewQueue(ctx context.Context, limit int) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListReviewQueue")
	defer span.End()

	rows := []domain.Transaction{}
	path := fmt.Sprintf("transactions?needs_review=eq.true&order=transaction_date.asc,id.asc&limit=%d", limit)
	if err := c.read(ctx, "supabase/transactions", path, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) CategorizeTransaction(ctx context.Context, id, categoryID string, at time.Time) error {
	ctx, span := tracer.Start(ctx, "Supabase.CategorizeTransaction")
	defer span.End()
	span.SetAttributes(attrID("transaction.id", id), attrID("category.id", categoryID))

	body, err := c.write(ctx, "supabase/transactions", http.MethodPatch,
		fmt.Sprintf("transactions?id=eq.%s", q(id)),
		map[string]any{
			"category_id":    categoryID,
			"needs_review":   false,
			"categorized_at": at.UTC(),
		})
	if err != nil {
		return err
	}
	return expectRows(body, "transaction", id)
}

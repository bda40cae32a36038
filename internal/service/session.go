package service

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ssraminder/financial-dashboard/internal/domain"
	"github.com/ssraminder/financial-dashboard/internal/reconcile"
)

// Session is one operator's open review of a statement. All fields are
// guarded by mu; network calls are made without holding it.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu sync.Mutex

	// generation increases on every selection; a fetch whose generation
	// is no longer current is discarded.
	generation uint64

	bankAccountID string
	statementID   string
	account       *domain.BankAccount
	statement     *domain.StatementImport
	overlay       *reconcile.Overlay

	// busy is set while a commit or confirm is writing to the backend.
	busy bool
	// loading is set while a selection's fetch is outstanding; the
	// overlay still holds the previous statement until it lands.
	loading bool
}

func newSession(id string, now time.Time) *Session {
	return &Session{ID: id, CreatedAt: now, overlay: reconcile.EmptyOverlay()}
}

// BalanceSummary is the checker output in presentation form.
type BalanceSummary struct {
	OpeningBalance    float64 `json:"opening_balance"`
	ClosingBalance    float64 `json:"closing_balance"`
	CalculatedBalance float64 `json:"calculated_balance"`
	Difference        float64 `json:"difference"`
	IsBalanced        bool    `json:"is_balanced"`
}

// LedgerRow is one projected row. Index is its position in the full
// ordered list, not in the filtered one.
type LedgerRow struct {
	Index             int              `json:"index"`
	TransactionID     string           `json:"transaction_id"`
	TransactionDate   string           `json:"transaction_date"`
	PostingDate       string           `json:"posting_date,omitempty"`
	Description       string           `json:"description"`
	PayeeName         string           `json:"payee_name,omitempty"`
	CategoryID        *string          `json:"category_id"`
	OriginalType      domain.Direction `json:"original_type"`
	OriginalAmount    float64          `json:"original_amount"`
	EditedType        domain.Direction `json:"edited_type"`
	EditedAmount      float64          `json:"edited_amount"`
	CalculatedBalance float64          `json:"calculated_balance"`
	Changed           bool             `json:"changed"`
	Edited            bool             `json:"is_edited"`
	Locked            bool             `json:"is_locked"`
	NeedsReview       bool             `json:"needs_review"`
}

// LedgerView is a session's current statement, projected and filtered.
type LedgerView struct {
	SessionID   string                  `json:"session_id"`
	BankAccount *domain.BankAccount     `json:"bank_account"`
	Statement   *domain.StatementImport `json:"statement"`
	TotalRows   int                     `json:"total_rows"`
	Rows        []LedgerRow             `json:"rows"`
	Balance     BalanceSummary          `json:"balance"`
	DirtyCount  int                     `json:"dirty_count"`
	Committing  bool                    `json:"committing"`
	Loading     bool                    `json:"loading"`
	Locked      bool                    `json:"locked"`
}

// EditResult reports one toggle or amount edit.
type EditResult struct {
	Applied    bool           `json:"applied"`
	Row        *LedgerRow     `json:"row,omitempty"`
	Balance    BalanceSummary `json:"balance"`
	DirtyCount int            `json:"dirty_count"`
}

// CommitOutcome is a commit's per-row result plus the reloaded ledger.
type CommitOutcome struct {
	reconcile.CommitResult
	ReloadError string      `json:"reload_error,omitempty"`
	Ledger      *LedgerView `json:"ledger"`
}

func toLedgerRow(index int, r reconcile.Row) LedgerRow {
	tx := r.Transaction
	return LedgerRow{
		Index:             index,
		TransactionID:     tx.ID,
		TransactionDate:   tx.TransactionDate,
		PostingDate:       tx.PostingDate,
		Description:       tx.Description,
		PayeeName:         tx.PayeeName,
		CategoryID:        tx.CategoryID,
		OriginalType:      r.OriginalType,
		OriginalAmount:    r.OriginalAmount.InexactFloat64(),
		EditedType:        r.EditedType,
		EditedAmount:      r.EditedAmount.InexactFloat64(),
		CalculatedBalance: r.CalculatedBalance.InexactFloat64(),
		Changed:           r.Changed(),
		Edited:            r.Edited(),
		Locked:            r.Locked(),
		NeedsReview:       tx.NeedsReview,
	}
}

// writable refuses writes while a save or a statement load is in flight.
// Caller holds mu.
func (sess *Session) writable() error {
	if sess.busy {
		return &domain.ErrConflict{Message: "a save is in progress for this session"}
	}
	if sess.loading {
		return &domain.ErrConflict{Message: "a statement is loading for this session"}
	}
	return nil
}

// check runs the checker over the session's current projection.
// Caller holds mu.
func (sess *Session) check() (reconcile.Projection, reconcile.BalanceCheck) {
	p := sess.overlay.Projection()
	var closing float64
	if sess.statement != nil {
		closing = sess.statement.ClosingBalance
	}
	return p, reconcile.Check(decimal.NewFromFloat(closing), p.Final)
}

// view builds the ledger view. Caller holds mu.
func (sess *Session) view(c reconcile.Criteria) *LedgerView {
	p, chk := sess.check()

	rows := make([]LedgerRow, 0, len(p.Rows))
	for _, i := range c.Select(p.Rows) {
		rows = append(rows, toLedgerRow(i, p.Rows[i]))
	}
	return &LedgerView{
		SessionID:   sess.ID,
		BankAccount: sess.account,
		Statement:   sess.statement,
		TotalRows:   len(p.Rows),
		Rows:        rows,
		Balance:     summarize(sess.overlay, chk),
		DirtyCount:  sess.overlay.DirtyCount(),
		Committing:  sess.busy,
		Loading:     sess.loading,
		Locked:      sess.overlay.Locked(),
	}
}

// editResult reports the row after an edit. Caller holds mu.
func (sess *Session) editResult(id string, applied bool) *EditResult {
	_, chk := sess.check()
	res := &EditResult{
		Applied:    applied,
		Balance:    summarize(sess.overlay, chk),
		DirtyCount: sess.overlay.DirtyCount(),
	}
	if r, ok := sess.overlay.Row(id); ok {
		i, _ := sess.overlay.IndexOf(id)
		row := toLedgerRow(i, r)
		res.Row = &row
	}
	return res
}

// markConfirmed records a confirmation the backend accepted but that
// could not be re-read. Caller holds mu.
func (sess *Session) markConfirmed(actor string, at time.Time) {
	if sess.statement != nil {
		st := *sess.statement
		st.Status = domain.StatementConfirmed
		st.ConfirmedAt = &at
		st.ConfirmedBy = actor
		sess.statement = &st
	}
	sess.overlay.Lock()
}

func summarize(o *reconcile.Overlay, chk reconcile.BalanceCheck) BalanceSummary {
	return BalanceSummary{
		OpeningBalance:    o.OpeningBalance().InexactFloat64(),
		ClosingBalance:    chk.ClosingBalance.InexactFloat64(),
		CalculatedBalance: chk.CalculatedBalance.InexactFloat64(),
		Difference:        chk.Difference.InexactFloat64(),
		IsBalanced:        chk.IsBalanced,
	}
}

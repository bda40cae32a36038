package domain

import (
	"math"
	"time"
)

// ============================================================
// Bank accounts
// ============================================================

// BalanceClass tells which direction grows an account's balance.
type BalanceClass string

const (
	// BalanceAsset accounts (chequing, savings) grow with credits.
	BalanceAsset BalanceClass = "asset"
	// BalanceLiability accounts (credit card, line of credit) grow with debits.
	BalanceLiability BalanceClass = "liability"
)

// BankAccount is a financial account whose statements are reconciled.
type BankAccount struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	InstitutionName string       `json:"institution_name"`
	AccountType     string       `json:"account_type"` // chequing, savings, credit_card, line_of_credit, loan
	BalanceClass    BalanceClass `json:"balance_class,omitempty"`
	Currency        string       `json:"currency"`
	IsActive        bool         `json:"is_active"`
	CreatedAt       time.Time    `json:"created_at"`
}

// IsLiability reports whether debits increase this account's balance.
// An explicit balance_class wins; otherwise the account type decides.
func (a BankAccount) IsLiability() bool {
	switch a.BalanceClass {
	case BalanceLiability:
		return true
	case BalanceAsset:
		return false
	}
	switch a.AccountType {
	case "credit_card", "line_of_credit", "loan":
		return true
	}
	return false
}

// ============================================================
// Statement imports
// ============================================================

// StatementStatus is the import lifecycle of a statement.
type StatementStatus string

const (
	StatementProcessing    StatementStatus = "processing"
	StatementPendingReview StatementStatus = "pending_review"
	StatementConfirmed     StatementStatus = "confirmed"
	StatementError         StatementStatus = "error"
)

// StatementImport is one imported statement period for one bank account.
type StatementImport struct {
	ID                string          `json:"id"`
	BankAccountID     string          `json:"bank_account_id"`
	PeriodStart       string          `json:"period_start"` // YYYY-MM-DD
	PeriodEnd         string          `json:"period_end"`
	OpeningBalance    float64         `json:"opening_balance"`
	ClosingBalance    float64         `json:"closing_balance"`
	TotalTransactions int             `json:"total_transactions"`
	TotalCredits      float64         `json:"total_credits"`
	TotalDebits       float64         `json:"total_debits"`
	Status            StatementStatus `json:"status"`
	ConfirmedAt       *time.Time      `json:"confirmed_at,omitempty"`
	ConfirmedBy       string          `json:"confirmed_by,omitempty"`
	OriginalFileName  string          `json:"original_file_name,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// IsConfirmed reports whether the statement's transactions are locked.
func (s StatementImport) IsConfirmed() bool {
	return s.Status == StatementConfirmed
}

// ============================================================
// Transactions
// ============================================================

// Direction is the credit/debit side of a transaction.
type Direction string

const (
	Credit Direction = "credit"
	Debit  Direction = "debit"
)

// Flip returns the opposite direction. Unknown values are returned as-is.
func (d Direction) Flip() Direction {
	switch d {
	case Credit:
		return Debit
	case Debit:
		return Credit
	}
	return d
}

// Valid reports whether d is credit or debit.
func (d Direction) Valid() bool {
	return d == Credit || d == Debit
}

// Transaction is a statement line as stored by the backend.
type Transaction struct {
	ID                string     `json:"id"`
	StatementImportID string     `json:"statement_import_id"`
	BankAccountID     string     `json:"bank_account_id,omitempty"`
	TransactionDate   string     `json:"transaction_date"` // YYYY-MM-DD
	PostingDate       string     `json:"posting_date,omitempty"`
	Description       string     `json:"description"`
	PayeeName         string     `json:"payee_name,omitempty"`
	Amount            float64    `json:"amount"`       // signed: credit positive, debit negative
	TotalAmount       *float64   `json:"total_amount"` // unsigned, may be absent on older rows
	TransactionType   Direction  `json:"transaction_type"`
	CategoryID        *string    `json:"category_id"`
	NeedsReview       bool       `json:"needs_review"`
	IsEdited          bool       `json:"is_edited"`
	EditedAt          *time.Time `json:"edited_at,omitempty"`
	IsLocked          bool       `json:"is_locked"`
	RunningBalance    *float64   `json:"running_balance,omitempty"`
}

// Direction returns the stored transaction type, falling back to the
// sign of the signed amount when the type column is empty.
func (t Transaction) Direction() Direction {
	if t.TransactionType.Valid() {
		return t.TransactionType
	}
	if t.Amount < 0 {
		return Debit
	}
	return Credit
}

// AbsoluteAmount returns the unsigned amount of the transaction.
func (t Transaction) AbsoluteAmount() float64 {
	if t.TotalAmount != nil {
		return math.Abs(*t.TotalAmount)
	}
	return math.Abs(t.Amount)
}

// TransactionUpdate is the payload written back for an edited row.
type TransactionUpdate struct {
	TransactionType Direction `json:"transaction_type"`
	TotalAmount     float64   `json:"total_amount"`
	Amount          float64   `json:"amount"`
	IsEdited        bool      `json:"is_edited"`
	EditedAt        time.Time `json:"edited_at"`
}

// SignedAmount applies the storage sign convention: credits positive, debits negative.
func SignedAmount(d Direction, amount float64) float64 {
	amount = math.Abs(amount)
	if d == Debit {
		return -amount
	}
	return amount
}

// Category is a chart-of-accounts entry used to classify transactions.
type Category struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Code      string `json:"code,omitempty"`
	Type      string `json:"type,omitempty"` // income, expense, asset, liability, equity
	ParentID  string `json:"parent_id,omitempty"`
	IsActive  bool   `json:"is_active"`
	SortOrder int    `json:"sort_order"`
}

// ============================================================
// Notifications
// ============================================================

// Notification is an operator-facing message (statement confirmed, etc).
type Notification struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	EntityID  string     `json:"entity_id,omitempty"`
	IsRead    bool       `json:"is_read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

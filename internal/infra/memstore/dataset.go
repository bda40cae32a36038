package memstore

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ssraminder/financial-dashboard/internal/domain"
)

// Dataset is the serialisable content of a Store, shaped like the
// backend tables.
type Dataset struct {
	BankAccounts  []domain.BankAccount     `json:"bank_accounts"`
	Statements    []domain.StatementImport `json:"statement_imports"`
	Transactions  []domain.Transaction     `json:"transactions"`
	Categories    []domain.Category        `json:"categories"`
	Notifications []domain.Notification    `json:"notifications"`
}

// LoadDataset reads a JSON dataset file.
func LoadDataset(path string) (Dataset, error) {
	var ds Dataset
	f, err := os.Open(path)
	if err != nil {
		return ds, err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(&ds); err != nil {
		return ds, fmt.Errorf("decode %s: %w", path, err)
	}
	return ds, nil
}

// SaveDataset writes ds to path atomically: a sibling .tmp file is written
// first and renamed over the target.
func SaveDataset(path string, ds Dataset) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ds); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func amount(v float64) *float64 { return &v }

// Demo returns a small two-account dataset. The chequing statement is
// out of balance by 80.00 until the refund row is flipped to a credit;
// the credit card statement balances as imported.
func Demo() Dataset {
	created := time.Date(2024, 2, 3, 9, 0, 0, 0, time.UTC)
	groceries := "cat-groceries"

	return Dataset{
		BankAccounts: []domain.BankAccount{
			{ID: "acc-chq", Name: "Business Chequing", InstitutionName: "First Maple Bank", AccountType: "chequing", Currency: "CAD", IsActive: true, CreatedAt: created},
			{ID: "acc-visa", Name: "Business Visa", InstitutionName: "First Maple Bank", AccountType: "credit_card", Currency: "CAD", IsActive: true, CreatedAt: created},
			{ID: "acc-old", Name: "Old Savings", InstitutionName: "Prairie Credit Union", AccountType: "savings", Currency: "CAD", IsActive: false, CreatedAt: created},
		},
		Statements: []domain.StatementImport{
			{
				ID: "st-chq-2024-01", BankAccountID: "acc-chq",
				PeriodStart: "2024-01-01", PeriodEnd: "2024-01-31",
				OpeningBalance: 1000.00, ClosingBalance: 2192.45,
				TotalTransactions: 5, TotalCredits: 2540.00, TotalDebits: 1347.55,
				Status: domain.StatementPendingReview, OriginalFileName: "chequing-2024-01.pdf", CreatedAt: created,
			},
			{
				ID: "st-visa-2024-01", BankAccountID: "acc-visa",
				PeriodStart: "2024-01-01", PeriodEnd: "2024-01-31",
				OpeningBalance: 350.00, ClosingBalance: 215.99,
				TotalTransactions: 3, TotalCredits: 300.00, TotalDebits: 165.99,
				Status: domain.StatementPendingReview, OriginalFileName: "visa-2024-01.pdf", CreatedAt: created,
			},
		},
		Transactions: []domain.Transaction{
			{ID: "tx-chq-1", StatementImportID: "st-chq-2024-01", BankAccountID: "acc-chq", TransactionDate: "2024-01-02", Description: "PAYROLL DEPOSIT", PayeeName: "Acme Clients Inc", Amount: 2500.00, TotalAmount: amount(2500.00), TransactionType: domain.Credit},
			{ID: "tx-chq-2", StatementImportID: "st-chq-2024-01", BankAccountID: "acc-chq", TransactionDate: "2024-01-05", Description: "RENT JAN", PayeeName: "Harbour Properties", Amount: -1200.00, TotalAmount: amount(1200.00), TransactionType: domain.Debit},
			{ID: "tx-chq-3", StatementImportID: "st-chq-2024-01", BankAccountID: "acc-chq", TransactionDate: "2024-01-12", Description: "HYDRO BILL", PayeeName: "City Hydro", Amount: -85.40, TotalAmount: amount(85.40), TransactionType: domain.Debit, NeedsReview: true},
			{ID: "tx-chq-4", StatementImportID: "st-chq-2024-01", BankAccountID: "acc-chq", TransactionDate: "2024-01-12", Description: "GROCERY MART #44", PayeeName: "Grocery Mart", Amount: -62.15, TotalAmount: amount(62.15), TransactionType: domain.Debit, CategoryID: &groceries},
			{ID: "tx-chq-5", StatementImportID: "st-chq-2024-01", BankAccountID: "acc-chq", TransactionDate: "2024-01-20", Description: "REFUND OFFICE SUPPLY", PayeeName: "Paper Co", Amount: -40.00, TotalAmount: amount(40.00), TransactionType: domain.Debit, NeedsReview: true},

			{ID: "tx-visa-1", StatementImportID: "st-visa-2024-01", BankAccountID: "acc-visa", TransactionDate: "2024-01-04", Description: "CLOUD HOSTING", PayeeName: "Nimbus", Amount: -45.99, TotalAmount: amount(45.99), TransactionType: domain.Debit},
			{ID: "tx-visa-2", StatementImportID: "st-visa-2024-01", BankAccountID: "acc-visa", TransactionDate: "2024-01-15", Description: "PAYMENT THANK YOU", Amount: 300.00, TotalAmount: amount(300.00), TransactionType: domain.Credit},
			{ID: "tx-visa-3", StatementImportID: "st-visa-2024-01", BankAccountID: "acc-visa", TransactionDate: "2024-01-22", Description: "CONFERENCE TICKET", PayeeName: "DevConf", Amount: -120.00, TotalAmount: amount(120.00), TransactionType: domain.Debit, NeedsReview: true},
		},
		Categories: []domain.Category{
			{ID: "cat-sales", Name: "Sales", Code: "4000", Type: "income", IsActive: true, SortOrder: 10},
			{ID: "cat-rent", Name: "Rent", Code: "5100", Type: "expense", IsActive: true, SortOrder: 20},
			{ID: "cat-utilities", Name: "Utilities", Code: "5200", Type: "expense", IsActive: true, SortOrder: 30},
			{ID: "cat-groceries", Name: "Meals & Groceries", Code: "5300", Type: "expense", IsActive: true, SortOrder: 40},
			{ID: "cat-software", Name: "Software & Hosting", Code: "5400", Type: "expense", IsActive: true, SortOrder: 50},
			{ID: "cat-legacy", Name: "Miscellaneous (old)", Code: "5999", Type: "expense", IsActive: false, SortOrder: 99},
		},
	}
}

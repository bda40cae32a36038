package reconcile

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/ssraminder/financial-dashboard/internal/domain"
)

func tx(id, date string, d domain.Direction, amount float64) domain.Transaction {
	total := amount
	return domain.Transaction{
		ID:              id,
		TransactionDate: date,
		Description:     "txn " + id,
		Amount:          domain.SignedAmount(d, amount),
		TotalAmount:     &total,
		TransactionType: d,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s %s", want, got.String(), fmt.Sprint(msgAndArgs...))
}

func balances(p Projection) []string {
	out := make([]string, len(p.Rows))
	for i, r := range p.Rows {
		out[i] = r.CalculatedBalance.StringFixed(2)
	}
	return out
}

package reconcile

import (
	"github.com/shopspring/decimal"
)

// BalanceToleranceCents is the exclusive bound, in cents, on the absolute
// difference still treated as balanced. It is a fixed policy value and is
// not derived from the account currency.
const BalanceToleranceCents = 2

var balanceTolerance = decimal.New(BalanceToleranceCents, -CentPlaces)

// BalanceCheck compares the projected closing balance with the statement's.
type BalanceCheck struct {
	ClosingBalance    decimal.Decimal
	CalculatedBalance decimal.Decimal
	Difference        decimal.Decimal // closing - calculated, rounded to cents
	IsBalanced        bool
}

// Check classifies a projected closing balance against the declared one.
func Check(closing, projected decimal.Decimal) BalanceCheck {
	diff := closing.Sub(projected).Round(CentPlaces)
	return BalanceCheck{
		ClosingBalance:    closing,
		CalculatedBalance: projected,
		Difference:        diff,
		IsBalanced:        diff.Abs().LessThan(balanceTolerance),
	}
}

// Package reconcile projects running balances over a statement's
// transactions, checks them against the declared closing balance and
// holds the operator's unsaved edits on top of the fetched rows.
//
// Everything here is synchronous and free of I/O except Apply, which
// writes a planned commit through an Updater.
package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/ssraminder/financial-dashboard/internal/domain"
)

// Effect returns the signed change a transaction makes to the running
// balance. Asset-like accounts grow with credits, liability-like accounts
// grow with debits. The amount is always taken as its absolute value.
func Effect(d domain.Direction, isLiability bool, amount decimal.Decimal) decimal.Decimal {
	amount = amount.Abs()
	switch d {
	case domain.Credit:
		if isLiability {
			return amount.Neg()
		}
		return amount
	case domain.Debit:
		if isLiability {
			return amount
		}
		return amount.Neg()
	}
	return decimal.Zero
}

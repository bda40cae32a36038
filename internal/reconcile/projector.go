package reconcile

import (
	"github.com/shopspring/decimal"
)

// CentPlaces is the rounding applied after every accumulation step.
const CentPlaces int32 = 2

// Projection is the result of folding a transaction list into running balances.
type Projection struct {
	Rows  []Row
	Final decimal.Decimal
}

// Project computes the running balance after each row, starting from
// opening and using each row's edited direction and amount. The input
// order is kept as-is; rows are copied, never mutated.
func Project(opening decimal.Decimal, rows []Row, isLiability bool) Projection {
	acc := opening.Round(CentPlaces)
	out := make([]Row, len(rows))
	for i, r := range rows {
		acc = acc.Add(Effect(r.EditedType, isLiability, r.EditedAmount)).Round(CentPlaces)
		r.CalculatedBalance = acc
		out[i] = r
	}
	return Projection{Rows: out, Final: acc}
}

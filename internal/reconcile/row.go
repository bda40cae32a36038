package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/ssraminder/financial-dashboard/internal/domain"
)

// Row is a fetched transaction plus the operator's working values.
// Original* is the last saved state; Edited* is what the projector uses.
type Row struct {
	Transaction       domain.Transaction
	OriginalType      domain.Direction
	OriginalAmount    decimal.Decimal
	EditedType        domain.Direction
	EditedAmount      decimal.Decimal
	CalculatedBalance decimal.Decimal

	locked bool
}

func newRow(tx domain.Transaction, statementLocked bool) Row {
	d := tx.Direction()
	amt := decimal.NewFromFloat(tx.AbsoluteAmount())
	return Row{
		Transaction:    tx,
		OriginalType:   d,
		OriginalAmount: amt,
		EditedType:     d,
		EditedAmount:   amt,
		locked:         statementLocked || tx.IsLocked,
	}
}

// ID returns the transaction identifier.
func (r Row) ID() string { return r.Transaction.ID }

// Changed reports whether the working values differ from the saved ones.
func (r Row) Changed() bool {
	return r.EditedType != r.OriginalType || !r.EditedAmount.Equal(r.OriginalAmount)
}

// Locked reports whether the row belongs to a confirmed statement.
func (r Row) Locked() bool { return r.locked }

// Edited reports a persisted edit that is not currently being re-edited.
func (r Row) Edited() bool {
	return r.Transaction.IsEdited && !r.Changed()
}

func (r *Row) reset() {
	r.EditedType = r.OriginalType
	r.EditedAmount = r.OriginalAmount
}

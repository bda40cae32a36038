package reconcile

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ssraminder/financial-dashboard/internal/domain"
)

// Overlay holds provisional edits over one statement's transactions.
//
// Rows are kept in ascending transaction-date order, ties in fetch order,
// and are addressed by transaction ID. An Overlay is not safe for
// concurrent use; callers serialise access.
type Overlay struct {
	opening         decimal.Decimal
	liability       bool
	statementLocked bool

	rows  []Row
	index map[string]int

	version   uint64
	memo      Projection
	memoValid bool
	memoAt    uint64
}

// NewOverlay builds an overlay from freshly fetched transactions.
func NewOverlay(openingBalance float64, isLiability, statementLocked bool, txs []domain.Transaction) *Overlay {
	o := &Overlay{
		opening:         decimal.NewFromFloat(openingBalance),
		liability:       isLiability,
		statementLocked: statementLocked,
	}
	o.load(txs)
	return o
}

// EmptyOverlay is the overlay shown when nothing could be loaded.
func EmptyOverlay() *Overlay {
	return NewOverlay(0, false, false, nil)
}

func (o *Overlay) load(txs []domain.Transaction) {
	sorted := make([]domain.Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TransactionDate < sorted[j].TransactionDate
	})

	o.rows = make([]Row, len(sorted))
	o.index = make(map[string]int, len(sorted))
	for i, tx := range sorted {
		o.rows[i] = newRow(tx, o.statementLocked)
		o.index[tx.ID] = i
	}
	o.touch()
}

func (o *Overlay) touch() {
	o.version++
}

// Len returns the number of rows.
func (o *Overlay) Len() int { return len(o.rows) }

// OpeningBalance returns the opening balance the projection starts from.
func (o *Overlay) OpeningBalance() decimal.Decimal { return o.opening }

// IsLiability reports the sign convention in use.
func (o *Overlay) IsLiability() bool { return o.liability }

// Locked reports whether the whole statement is locked.
func (o *Overlay) Locked() bool { return o.statementLocked }

// Lock marks the whole statement confirmed. Unsaved edits are dropped and
// every further edit is refused.
func (o *Overlay) Lock() {
	o.statementLocked = true
	for i := range o.rows {
		o.rows[i].reset()
		o.rows[i].locked = true
	}
	o.touch()
}

// IndexOf returns the position of a transaction in the full ordered list.
func (o *Overlay) IndexOf(id string) (int, bool) {
	i, ok := o.index[id]
	return i, ok
}

// Toggle flips the working direction of a row. It returns false and
// changes nothing when the row is unknown or locked.
func (o *Overlay) Toggle(id string) bool {
	i, ok := o.index[id]
	if !ok || o.rows[i].locked {
		return false
	}
	o.rows[i].EditedType = o.rows[i].EditedType.Flip()
	o.touch()
	return true
}

// SetAmount replaces the working amount of a row. Negative, NaN and
// infinite amounts are rejected, as are unknown and locked rows.
func (o *Overlay) SetAmount(id string, amount float64) bool {
	if !ValidAmount(amount) {
		return false
	}
	i, ok := o.index[id]
	if !ok || o.rows[i].locked {
		return false
	}
	o.rows[i].EditedAmount = decimal.NewFromFloat(amount)
	o.touch()
	return true
}

// ValidAmount reports whether amount is acceptable as an edited amount.
func ValidAmount(amount float64) bool {
	return !math.IsNaN(amount) && !math.IsInf(amount, 0) && amount >= 0
}

// Reset discards every unsaved edit.
func (o *Overlay) Reset() {
	for i := range o.rows {
		o.rows[i].reset()
	}
	o.touch()
}

// DirtyCount returns the number of rows with unsaved edits.
func (o *Overlay) DirtyCount() int {
	n := 0
	for _, r := range o.rows {
		if r.Changed() {
			n++
		}
	}
	return n
}

// Dirty returns copies of rows with unsaved edits, in list order.
// Locked rows are never returned.
func (o *Overlay) Dirty() []Row {
	var out []Row
	for _, r := range o.rows {
		if r.Changed() && !r.locked {
			out = append(out, r)
		}
	}
	return out
}

// MarkCommitted records that a row was saved with the given values,
// making them its new baseline.
func (o *Overlay) MarkCommitted(id string, d domain.Direction, amount decimal.Decimal) {
	i, ok := o.index[id]
	if !ok {
		return
	}
	r := &o.rows[i]
	r.OriginalType = d
	r.OriginalAmount = amount
	r.Transaction.TransactionType = d
	r.Transaction.IsEdited = true
	o.touch()
}

// Rebase replaces the baseline with re-fetched transactions. Unsaved
// edits on rows that still exist and are not locked are carried over.
func (o *Overlay) Rebase(txs []domain.Transaction) {
	pending := make(map[string]Row)
	for _, r := range o.rows {
		if r.Changed() {
			pending[r.ID()] = r
		}
	}
	o.load(txs)
	for id, old := range pending {
		i, ok := o.index[id]
		if !ok || o.rows[i].locked {
			continue
		}
		o.rows[i].EditedType = old.EditedType
		o.rows[i].EditedAmount = old.EditedAmount
	}
	o.touch()
}

// Projection returns the running balances over the current working values.
// The result is memoised until the next edit and must not be modified.
func (o *Overlay) Projection() Projection {
	if o.memoValid && o.memoAt == o.version {
		return o.memo
	}
	o.memo = Project(o.opening, o.rows, o.liability)
	o.memoAt = o.version
	o.memoValid = true
	return o.memo
}

// Row returns the projected row for a transaction.
func (o *Overlay) Row(id string) (Row, bool) {
	i, ok := o.index[id]
	if !ok {
		return Row{}, false
	}
	return o.Projection().Rows[i], true
}

package reconcile

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ssraminder/financial-dashboard/internal/domain"
)

// StatusFilter narrows rows by edit/review state.
type StatusFilter string

const (
	StatusAll         StatusFilter = "all"
	StatusChanged     StatusFilter = "changed"
	StatusNeedsReview StatusFilter = "needs_review"
	StatusEdited      StatusFilter = "edited"
)

// Criteria is a set of display filters; every active filter must match.
// Zero values are inactive.
type Criteria struct {
	DateFrom  string // YYYY-MM-DD, inclusive
	DateTo    string // YYYY-MM-DD, inclusive
	Direction domain.Direction
	Search    string
	MinAmount *float64
	MaxAmount *float64
	Status    StatusFilter
}

// Match reports whether a row passes every active filter.
func (c Criteria) Match(r Row) bool {
	tx := r.Transaction
	if c.DateFrom != "" && tx.TransactionDate < c.DateFrom {
		return false
	}
	if c.DateTo != "" && tx.TransactionDate > c.DateTo {
		return false
	}
	if c.Direction.Valid() && r.EditedType != c.Direction {
		return false
	}
	if q := strings.TrimSpace(c.Search); q != "" {
		q = strings.ToLower(q)
		if !strings.Contains(strings.ToLower(tx.Description), q) &&
			!strings.Contains(strings.ToLower(tx.PayeeName), q) {
			return false
		}
	}
	if c.MinAmount != nil && r.EditedAmount.LessThan(decimal.NewFromFloat(*c.MinAmount)) {
		return false
	}
	if c.MaxAmount != nil && r.EditedAmount.GreaterThan(decimal.NewFromFloat(*c.MaxAmount)) {
		return false
	}
	switch c.Status {
	case StatusChanged:
		return r.Changed()
	case StatusNeedsReview:
		return tx.NeedsReview
	case StatusEdited:
		return r.Edited()
	}
	return true
}

// Select returns the positions of matching rows.
func (c Criteria) Select(rows []Row) []int {
	out := make([]int, 0, len(rows))
	for i, r := range rows {
		if c.Match(r) {
			out = append(out, i)
		}
	}
	return out
}

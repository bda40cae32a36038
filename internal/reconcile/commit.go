package reconcile

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/ssraminder/financial-dashboard/internal/domain"
)

// DefaultCommitConcurrency bounds in-flight row updates when none is set.
const DefaultCommitConcurrency = 8

// Updater writes one edited transaction back to storage.
type Updater interface {
	UpdateTransaction(ctx context.Context, id string, update domain.TransactionUpdate) error
}

// PendingUpdate is one dirty row captured at the start of a commit.
type PendingUpdate struct {
	TransactionID string
	Type          domain.Direction
	Amount        decimal.Decimal
	Update        domain.TransactionUpdate
}

// CommitFailure reports a row that could not be saved.
type CommitFailure struct {
	TransactionID string `json:"transaction_id"`
	Error         string `json:"error"`
	Err           error  `json:"-"`
}

// CommitResult lists saved and failed rows, in list order.
type CommitResult struct {
	Updated []string        `json:"updated"`
	Failed  []CommitFailure `json:"failed"`
}

// Plan captures every dirty, unlocked row as a storage update.
func Plan(o *Overlay, now time.Time) []PendingUpdate {
	dirty := o.Dirty()
	out := make([]PendingUpdate, 0, len(dirty))
	for _, r := range dirty {
		amt := r.EditedAmount.InexactFloat64()
		out = append(out, PendingUpdate{
			TransactionID: r.ID(),
			Type:          r.EditedType,
			Amount:        r.EditedAmount,
			Update: domain.TransactionUpdate{
				TransactionType: r.EditedType,
				TotalAmount:     amt,
				Amount:          domain.SignedAmount(r.EditedType, amt),
				IsEdited:        true,
				EditedAt:        now,
			},
		})
	}
	return out
}

// Apply issues one independent update per pending row. A failing row never
// cancels or rolls back the others; every outcome is reported per row.
func Apply(ctx context.Context, u Updater, pending []PendingUpdate, concurrency int) CommitResult {
	if concurrency <= 0 {
		concurrency = DefaultCommitConcurrency
	}
	errs := make([]error, len(pending))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, p := range pending {
		g.Go(func() error {
			errs[i] = u.UpdateTransaction(ctx, p.TransactionID, p.Update)
			return nil
		})
	}
	_ = g.Wait()

	res := CommitResult{Updated: []string{}, Failed: []CommitFailure{}}
	for i, p := range pending {
		if errs[i] != nil {
			res.Failed = append(res.Failed, CommitFailure{
				TransactionID: p.TransactionID,
				Error:         errs[i].Error(),
				Err:           errs[i],
			})
			continue
		}
		res.Updated = append(res.Updated, p.TransactionID)
	}
	return res
}

// Settle marks the successfully saved rows of a commit as clean.
// Failed rows keep their edits.
func Settle(o *Overlay, pending []PendingUpdate, res CommitResult) {
	saved := make(map[string]bool, len(res.Updated))
	for _, id := range res.Updated {
		saved[id] = true
	}
	for _, p := range pending {
		if saved[p.TransactionID] {
			o.MarkCommitted(p.TransactionID, p.Type, p.Amount)
		}
	}
}

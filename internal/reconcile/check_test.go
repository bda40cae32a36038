package reconcile

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/ssraminder/financial-dashboard/internal/domain"
)

func reconciliationFixture() *Overlay {
	// Net -235.50 over an opening of 1000.00.
	return NewOverlay(1000.00, false, false, []domain.Transaction{
		tx("a", "2025-03-01", domain.Credit, 264.50),
		tx("b", "2025-03-04", domain.Debit, 320.00),
		tx("c", "2025-03-09", domain.Debit, 180.00),
	})
}

func TestCheck_Tolerance(t *testing.T) {
	projected := reconciliationFixture().Projection().Final
	assertDecimal(t, "764.50", projected)

	exact := Check(decimal.NewFromFloat(764.50), projected)
	assert.True(t, exact.IsBalanced)
	assertDecimal(t, "0", exact.Difference)

	oneCent := Check(decimal.NewFromFloat(764.51), projected)
	assertDecimal(t, "0.01", oneCent.Difference)
	assert.True(t, oneCent.IsBalanced, "single-cent drift is absorbed")

	twoCents := Check(decimal.NewFromFloat(764.52), projected)
	assertDecimal(t, "0.02", twoCents.Difference)
	assert.False(t, twoCents.IsBalanced)

	under := Check(decimal.NewFromFloat(764.48), projected)
	assertDecimal(t, "-0.02", under.Difference)
	assert.False(t, under.IsBalanced)
}

func TestCheck_DifferenceIsRounded(t *testing.T) {
	c := Check(dec("100.005"), dec("100"))
	assertDecimal(t, "0.01", c.Difference)
	assertDecimal(t, "100", c.CalculatedBalance)
	assertDecimal(t, "100.005", c.ClosingBalance)
}

func TestCheck_FollowsEdits(t *testing.T) {
	o := reconciliationFixture()
	closing := decimal.NewFromFloat(1124.50)

	assert.False(t, Check(closing, o.Projection().Final).IsBalanced)

	// Flipping the 180 debit to a credit moves the projection by 360.
	o.Toggle("c")
	assert.True(t, Check(closing, o.Projection().Final).IsBalanced)
}

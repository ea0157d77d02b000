package orders

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mvharris/tabwire/pkg/db/models"
)

func TestComputeRoundsTaxPerCheck(t *testing.T) {
	pricer, err := NewPricer("0.0825")
	require.NoError(t, err)

	totals := pricer.Compute([]models.OrderItem{
		{Name: "Wings", UnitPriceCents: 1299, Qty: 1},
		{Name: "Soda", UnitPriceCents: 250, Qty: 2},
	}, 0)

	require.Equal(t, 1799, totals.SubtotalCents)
	// 1799 * 0.0825 = 148.4175, rounded per check.
	require.Equal(t, 148, totals.TaxCents)
	require.Equal(t, 1947, totals.TotalCents)
}

func TestComputeAppliesDiscountBeforeTax(t *testing.T) {
	pricer, err := NewPricer("0.10")
	require.NoError(t, err)

	totals := pricer.Compute([]models.OrderItem{
		{Name: "Entree", UnitPriceCents: 2000, Qty: 1},
	}, 500)

	require.Equal(t, 2000, totals.SubtotalCents)
	require.Equal(t, 500, totals.DiscountCents)
	require.Equal(t, 150, totals.TaxCents)
	require.Equal(t, 1650, totals.TotalCents)
}

func TestComputeClampsDiscountToSubtotal(t *testing.T) {
	pricer, err := NewPricer("0.10")
	require.NoError(t, err)

	totals := pricer.Compute([]models.OrderItem{
		{Name: "Coffee", UnitPriceCents: 300, Qty: 1},
	}, 10_000)

	require.Equal(t, 300, totals.DiscountCents)
	require.Equal(t, 0, totals.TotalCents)
}

func TestComputeExcludesVoidedItems(t *testing.T) {
	pricer, err := NewPricer("0.10")
	require.NoError(t, err)

	totals := pricer.Compute([]models.OrderItem{
		{Name: "Kept", UnitPriceCents: 1000, Qty: 1},
		{Name: "Voided", UnitPriceCents: 9999, Qty: 3, Voided: true},
	}, 0)

	require.Equal(t, 1000, totals.SubtotalCents)
}

func TestComputeIncludesModifiers(t *testing.T) {
	pricer, err := NewPricer("0")
	require.NoError(t, err)

	totals := pricer.Compute([]models.OrderItem{
		{
			Name:           "Burger",
			UnitPriceCents: 1000,
			Qty:            2,
			Modifiers:      []models.ItemModifier{{Name: "Bacon", PriceCents: 200}},
		},
	}, 0)

	require.Equal(t, 2400, totals.SubtotalCents)
}

func TestDiscountCentsPercent(t *testing.T) {
	pricer, err := NewPricer("0.10")
	require.NoError(t, err)

	cents, err := pricer.DiscountCents(DiscountInput{Type: DiscountTypePercent, Value: 25}, 1999)
	require.NoError(t, err)
	require.Equal(t, 500, cents)

	_, err = pricer.DiscountCents(DiscountInput{Type: DiscountTypePercent, Value: 150}, 1999)
	require.Error(t, err)
}

func TestDiscountCentsAmountCapped(t *testing.T) {
	pricer, err := NewPricer("0.10")
	require.NoError(t, err)

	cents, err := pricer.DiscountCents(DiscountInput{Type: DiscountTypeAmount, Value: 5000}, 1200)
	require.NoError(t, err)
	require.Equal(t, 1200, cents)
}

func TestEvenSharesSumToTotal(t *testing.T) {
	shares := EvenShares(1000, 3)
	require.Equal(t, []int{334, 333, 333}, shares)

	shares = EvenShares(1001, 2)
	require.Equal(t, []int{501, 500}, shares)

	sum := 0
	for _, share := range EvenShares(2200, 7) {
		sum += share
	}
	require.Equal(t, 2200, sum)
}

package orders

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mvharris/tabwire/pkg/db/models"
)

// Totals is the server-authoritative pricing result. All values are cents.
type Totals struct {
	SubtotalCents int
	DiscountCents int
	TaxCents      int
	TotalCents    int
}

// Pricer computes authoritative totals. Discounts apply before tax; tax is
// rounded half-up per check, not per line.
type Pricer struct {
	taxRate decimal.Decimal
}

// NewPricer parses the configured tax rate (a decimal fraction, e.g. 0.0825).
func NewPricer(taxRate string) (*Pricer, error) {
	rate, err := decimal.NewFromString(taxRate)
	if err != nil {
		return nil, fmt.Errorf("parsing tax rate %q: %w", taxRate, err)
	}
	if rate.IsNegative() {
		return nil, fmt.Errorf("tax rate must not be negative")
	}
	return &Pricer{taxRate: rate}, nil
}

// Compute derives totals from the live item lines and the stored discount.
func (p *Pricer) Compute(items []models.OrderItem, discountCents int) Totals {
	subtotal := 0
	for _, item := range items {
		subtotal += item.LineTotalCents()
	}
	if discountCents > subtotal {
		discountCents = subtotal
	}
	if discountCents < 0 {
		discountCents = 0
	}

	taxable := decimal.NewFromInt(int64(subtotal - discountCents))
	tax := taxable.Mul(p.taxRate).Round(0)

	taxCents := int(tax.IntPart())
	return Totals{
		SubtotalCents: subtotal,
		DiscountCents: discountCents,
		TaxCents:      taxCents,
		TotalCents:    subtotal - discountCents + taxCents,
	}
}

// DiscountCents resolves a discount input against the current subtotal.
func (p *Pricer) DiscountCents(input DiscountInput, subtotalCents int) (int, error) {
	switch input.Type {
	case DiscountTypeAmount:
		if input.Value > subtotalCents {
			return subtotalCents, nil
		}
		return input.Value, nil
	case DiscountTypePercent:
		if input.Value > 100 {
			return 0, fmt.Errorf("percent discount over 100")
		}
		subtotal := decimal.NewFromInt(int64(subtotalCents))
		pct := decimal.NewFromInt(int64(input.Value)).Div(decimal.NewFromInt(100))
		return int(subtotal.Mul(pct).Round(0).IntPart()), nil
	default:
		return 0, fmt.Errorf("unknown discount type %q", input.Type)
	}
}

// EvenShares divides totalCents into n shares; remainder cents go to the
// first share so the children always sum exactly to the parent total.
func EvenShares(totalCents, n int) []int {
	if n <= 0 {
		return nil
	}
	total := decimal.NewFromInt(int64(totalCents))
	base := total.Div(decimal.NewFromInt(int64(n))).Floor()
	baseCents := int(base.IntPart())
	shares := make([]int, n)
	for i := range shares {
		shares[i] = baseCents
	}
	shares[0] += totalCents - baseCents*n
	return shares
}

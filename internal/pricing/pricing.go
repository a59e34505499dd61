// Package pricing implements cadence normalization and total cost of
// ownership for offers on the table.
package pricing

import (
	"fmt"
	"math"

	"github.com/procurehub/dealengine/internal/domain"
)

// DefaultDiscountRate is the annual present-value discount rate.
const DefaultDiscountRate = 0.05

// CadenceFactor converts a quoted amount in the given cadence into an
// annual figure. Unknown cadences pass through unchanged.
func CadenceFactor(c domain.BillingCadence) float64 {
	return c.AnnualFactor()
}

// NormalizeAnnual converts amount quoted in cadence c to its annual
// equivalent. Normalizing an already-annual amount is the identity.
func NormalizeAnnual(amount float64, c domain.BillingCadence) float64 {
	return amount * CadenceFactor(c)
}

// PaymentMultiplier returns the payment-term adjustment applied to the
// base cost before discounting.
func PaymentMultiplier(p domain.PaymentTerms) (float64, error) {
	switch p {
	case domain.PaymentNet15:
		return 0.995, nil
	case domain.PaymentNet30:
		return 1.000, nil
	case domain.PaymentNet45:
		return 1.015, nil
	case domain.PaymentMilestones:
		return 0.990, nil
	case domain.PaymentDeposit:
		return 0.985, nil
	default:
		return 0, fmt.Errorf("%w: unknown payment terms %q", domain.ErrConfig, p)
	}
}

// Calculator computes present-valued total cost of ownership.
type Calculator struct {
	discountRateAnnual float64
}

// NewCalculator constructs a calculator, failing fast on a negative rate.
func NewCalculator(discountRateAnnual float64) (*Calculator, error) {
	if discountRateAnnual < 0 {
		return nil, fmt.Errorf("%w: discount rate %.4f is negative", domain.ErrConfig, discountRateAnnual)
	}
	return &Calculator{discountRateAnnual: discountRateAnnual}, nil
}

// TCO computes the total cost of ownership of an offer whose unit price
// is quoted in the given cadence: the monthly payment stream, adjusted
// by the payment-term multiplier and any prepay discount, discounted at
// the monthly rate.
//
// Monotone non-decreasing in quantity and term_months for a fixed unit
// price; exactly unit*qty*term*multiplier at a zero discount rate.
func (c *Calculator) TCO(offer domain.OfferComponents, cadence domain.BillingCadence) (float64, error) {
	if offer.Quantity < 0 || offer.TermMonths < 0 {
		return 0, fmt.Errorf("%w: negative quantity or term", domain.ErrConfig)
	}
	mult, err := PaymentMultiplier(offer.Payment)
	if err != nil {
		return 0, err
	}

	annualUnit := NormalizeAnnual(offer.UnitPrice, cadence)
	monthly := annualUnit / 12.0 * float64(offer.Quantity) * mult
	if offer.PrepayDiscount > 0 {
		monthly *= 1.0 - offer.PrepayDiscount
	}

	if c.discountRateAnnual == 0 {
		return monthly * float64(offer.TermMonths), nil
	}

	monthlyRate := c.discountRateAnnual / 12.0
	total := 0.0
	for m := 1; m <= offer.TermMonths; m++ {
		total += monthly / math.Pow(1.0+monthlyRate, float64(m))
	}
	return total, nil
}

// PriceFit is the budget-to-list ratio used in scoring: 1.0 when the
// annual budget per unit covers the annual list price, proportionally
// less otherwise, floored at zero.
func PriceFit(budgetUnitAnnual, listUnitAnnual float64) float64 {
	if listUnitAnnual <= 0 || budgetUnitAnnual <= 0 {
		return 0
	}
	return math.Min(1.0, budgetUnitAnnual/listUnitAnnual)
}

// Savings is the money saved off list across the whole contract,
// computed on monthly-normalized unit prices. Callers report it only
// for accepted outcomes.
func Savings(listUnit, finalUnit float64, cadence domain.BillingCadence, quantity, termMonths int) float64 {
	deltaMonthly := (NormalizeAnnual(listUnit, cadence) - NormalizeAnnual(finalUnit, cadence)) / 12.0
	if deltaMonthly < 0 {
		return 0
	}
	return deltaMonthly * float64(quantity) * float64(termMonths)
}

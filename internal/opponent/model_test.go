package opponent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/procurehub/dealengine/internal/domain"
)

func offerAt(price float64, term int, payment domain.PaymentTerms) domain.OfferComponents {
	return domain.OfferComponents{UnitPrice: price, Quantity: 100, TermMonths: term, Payment: payment}
}

func TestNew_Priors(t *testing.T) {
	m := New(1200)
	assert.InDelta(t, 960.0, m.FloorEstimate, 1e-9, "floor prior is 0.8x reference")
	assert.InDelta(t, 1320.0, m.CeilingEstimate, 1e-9, "ceiling prior is 1.1x reference")
	assert.Equal(t, 0.5, m.PriceElasticity)
}

func TestObserve_PriceConcessionRaisesElasticityAndFloor(t *testing.T) {
	m := New(1200)
	m.Observe(offerAt(1260, 12, domain.PaymentNet30))
	m.Observe(offerAt(1150, 12, domain.PaymentNet30))

	assert.Equal(t, 0, m.ConsecutiveNoPriceMoves)
	assert.InDelta(t, 0.6, m.PriceElasticity, 1e-9)
	assert.InDelta(t, 1100.0, m.FloorEstimate, 1e-9, "floor ratchets to new_price - 50")
}

func TestObserve_StallLowersElasticity(t *testing.T) {
	m := New(1200)
	m.Observe(offerAt(1260, 12, domain.PaymentNet30))
	m.Observe(offerAt(1260.5, 12, domain.PaymentNet30))
	m.Observe(offerAt(1260.2, 12, domain.PaymentNet30))

	assert.Equal(t, 2, m.ConsecutiveNoPriceMoves)
	assert.InDelta(t, 0.3, m.PriceElasticity, 1e-9)
	assert.True(t, m.Stalled(2))
}

func TestObserve_ElasticityBounds(t *testing.T) {
	m := New(1000)
	m.Observe(offerAt(1000, 12, domain.PaymentNet30))
	for i := 0; i < 10; i++ {
		m.Observe(offerAt(1000, 12, domain.PaymentNet30))
	}
	assert.InDelta(t, 0.1, m.PriceElasticity, 1e-9, "elasticity floors at 0.1")

	m2 := New(1000)
	price := 1000.0
	for i := 0; i < 10; i++ {
		price += 10
		m2.Observe(offerAt(price, 12, domain.PaymentNet30))
	}
	assert.InDelta(t, 0.9, m2.PriceElasticity, 1e-9, "elasticity caps at 0.9")
}

func TestObserve_TermAndPaymentElasticity(t *testing.T) {
	m := New(1000)
	m.Observe(offerAt(1000, 12, domain.PaymentNet30))
	m.Observe(offerAt(990, 24, domain.PaymentNet15))

	assert.InDelta(t, 0.6, m.TermElasticity, 1e-9)
	assert.InDelta(t, 0.6, m.PaymentElasticity, 1e-9)
}

func TestFloorEstimate_NonDecreasing(t *testing.T) {
	m := New(1200)
	prices := []float64{1260, 1200, 1150, 1120, 1100, 1090, 1085}

	prevFloor := m.FloorEstimate
	for _, p := range prices {
		m.Observe(offerAt(p, 12, domain.PaymentNet30))
		assert.GreaterOrEqual(t, m.FloorEstimate, prevFloor, "floor estimate must never decrease")
		prevFloor = m.FloorEstimate
	}
}

func TestHistory_BoundedToThree(t *testing.T) {
	m := New(1000)
	for i := 0; i < 5; i++ {
		m.Observe(offerAt(1000-float64(i)*20, 12, domain.PaymentNet30))
	}

	hist := m.History()
	assert.Len(t, hist, 3)
	assert.InDelta(t, 940.0, hist[0].UnitPrice, 1e-9, "oldest retained offer")
	assert.InDelta(t, 920.0, hist[2].UnitPrice, 1e-9, "latest offer")

	last, ok := m.Last()
	assert.True(t, ok)
	assert.InDelta(t, 920.0, last.UnitPrice, 1e-9)
}

// Package opponent maintains the per-session beliefs about a
// counterparty's private constraints and flexibility.
package opponent

import (
	"math"

	"github.com/procurehub/dealengine/internal/domain"
)

const (
	// Prior bounds relative to the counterparty's list price or budget.
	floorPriorRatio   = 0.8
	ceilingPriorRatio = 1.1

	elasticityStep = 0.1
	elasticityMin  = 0.1
	elasticityMax  = 0.9

	// Price moves smaller than one currency unit count as a stall.
	stallThreshold = 1.0

	// floorBackoff is subtracted from an observed price cut when raising
	// the floor estimate: the counterparty conceded to here, so its true
	// floor is at most slightly below.
	floorBackoff = 50.0

	historySize = 3
)

// Model tracks estimated floor/ceiling and elasticities for one
// counterparty. It lives for exactly one session and is never shared.
type Model struct {
	FloorEstimate   float64 `json:"price_floor_estimate"`
	CeilingEstimate float64 `json:"price_ceiling_estimate"`

	PriceElasticity   float64 `json:"price_elasticity"`
	TermElasticity    float64 `json:"term_elasticity"`
	PaymentElasticity float64 `json:"payment_elasticity"`

	ConsecutiveNoPriceMoves int `json:"consecutive_no_price_moves"`

	history []domain.OfferComponents
}

// New initializes a model from the counterparty's visible reference
// price: the vendor list price when modeling a seller, the per-unit
// budget when modeling a buyer.
func New(referencePrice float64) *Model {
	return &Model{
		FloorEstimate:     referencePrice * floorPriorRatio,
		CeilingEstimate:   referencePrice * ceilingPriorRatio,
		PriceElasticity:   0.5,
		TermElasticity:    0.5,
		PaymentElasticity: 0.5,
	}
}

// Observe updates the beliefs from one observed counter-offer.
func (m *Model) Observe(offer domain.OfferComponents) {
	prev, hasPrev := m.Last()

	if hasPrev {
		delta := offer.UnitPrice - prev.UnitPrice
		if math.Abs(delta) < stallThreshold {
			m.ConsecutiveNoPriceMoves++
			m.PriceElasticity = math.Max(elasticityMin, m.PriceElasticity-elasticityStep)
		} else {
			m.ConsecutiveNoPriceMoves = 0
			m.PriceElasticity = math.Min(elasticityMax, m.PriceElasticity+elasticityStep)
			if delta < 0 {
				// The counterparty moved down to this price, so its floor
				// cannot be far below it. Floor estimates only ratchet up.
				m.FloorEstimate = math.Max(m.FloorEstimate, offer.UnitPrice-floorBackoff)
			}
		}

		if offer.TermMonths != prev.TermMonths {
			m.TermElasticity = math.Min(elasticityMax, m.TermElasticity+elasticityStep)
		}
		if offer.Payment != prev.Payment {
			m.PaymentElasticity = math.Min(elasticityMax, m.PaymentElasticity+elasticityStep)
		}
	}

	m.history = append(m.history, offer.Clone())
	if len(m.history) > historySize {
		m.history = m.history[len(m.history)-historySize:]
	}
}

// Last returns the most recently observed offer.
func (m *Model) Last() (domain.OfferComponents, bool) {
	if len(m.history) == 0 {
		return domain.OfferComponents{}, false
	}
	return m.history[len(m.history)-1], true
}

// History returns the bounded observation window, oldest first.
func (m *Model) History() []domain.OfferComponents {
	out := make([]domain.OfferComponents, len(m.history))
	copy(out, m.history)
	return out
}

// Stalled reports whether the counterparty has not moved on price for
// at least n consecutive observations.
func (m *Model) Stalled(n int) bool {
	return m.ConsecutiveNoPriceMoves >= n
}

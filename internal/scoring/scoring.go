// Package scoring computes multi-criterion offer scores and the
// composite buyer and seller utilities that drive acceptance.
package scoring

import (
	"fmt"
	"math"

	"github.com/procurehub/dealengine/internal/domain"
	"github.com/procurehub/dealengine/internal/pricing"
)

// Weights are the buyer composite-utility weights. They must be
// non-negative and sum to 1.
type Weights struct {
	TCOFit     float64 `yaml:"tco_fit"`
	SpecMatch  float64 `yaml:"spec_match"`
	Compliance float64 `yaml:"compliance"`
	Risk       float64 `yaml:"risk"`
	Time       float64 `yaml:"time"`
}

// DefaultWeights returns the production buyer weighting.
func DefaultWeights() Weights {
	return Weights{TCOFit: 0.4, SpecMatch: 0.2, Compliance: 0.2, Risk: 0.1, Time: 0.1}
}

// Validate fails fast on negative weights or a sum away from 1.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"tco_fit": w.TCOFit, "spec_match": w.SpecMatch, "compliance": w.Compliance,
		"risk": w.Risk, "time": w.Time,
	} {
		if v < 0 {
			return fmt.Errorf("%w: weight %s is negative (%.3f)", domain.ErrConfig, name, v)
		}
	}
	sum := w.TCOFit + w.SpecMatch + w.Compliance + w.Risk + w.Time
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("%w: weights sum to %.4f, want 1.0", domain.ErrConfig, sum)
	}
	return nil
}

// Seller composite weights: margin fit, term preference, payment speed.
const (
	sellerMarginWeight  = 0.7
	sellerTermWeight    = 0.2
	sellerPaymentWeight = 0.1
)

// Scorer scores offers against requests and vendor profiles. Pure: it
// never mutates its inputs.
type Scorer struct {
	calc    *pricing.Calculator
	weights Weights
	strict  bool
}

// NewScorer constructs a scorer, validating the weights up front.
func NewScorer(calc *pricing.Calculator, weights Weights, strictSpecMatch bool) (*Scorer, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{calc: calc, weights: weights, strict: strictSpecMatch}, nil
}

// ScoreBuyer computes the buyer-side score bundle for one offer.
func (s *Scorer) ScoreBuyer(req *domain.Request, vendor *domain.VendorProfile, offer domain.OfferComponents) (domain.OfferScore, error) {
	tco, err := s.calc.TCO(offer, vendor.Cadence)
	if err != nil {
		return domain.OfferScore{}, err
	}

	score := domain.OfferScore{TCO: tco}
	score.SpecMatch = s.specMatch(req, vendor)
	score.Compliance = complianceScore(req, vendor)

	budget := req.EffectiveBudget(offer.TermMonths)
	if tco > 0 {
		score.TCOFit = math.Min(1.0, budget/tco)
	}
	score.Risk = 1.0 - vendor.RiskLevel.Normalized()
	score.Time = 1.0 - clamp(float64(vendor.LeadTimeDays)/90.0, 0, 1)

	score.Utility = s.weights.TCOFit*score.TCOFit +
		s.weights.SpecMatch*score.SpecMatch +
		s.weights.Compliance*score.Compliance +
		s.weights.Risk*score.Risk +
		s.weights.Time*score.Time
	return score, nil
}

// specMatch is the fraction of must-haves the vendor covers. In strict
// mode a single missing must-have zeroes the dimension.
func (s *Scorer) specMatch(req *domain.Request, vendor *domain.VendorProfile) float64 {
	if len(req.MustHaves) == 0 {
		return 1.0
	}
	covered := 0
	for _, tag := range req.MustHaves {
		if vendor.HasCapability(tag) {
			covered++
		}
	}
	if s.strict && covered < len(req.MustHaves) {
		return 0
	}
	return float64(covered) / float64(len(req.MustHaves))
}

func complianceScore(req *domain.Request, vendor *domain.VendorProfile) float64 {
	for _, cert := range req.Compliance {
		if !vendor.HasCertification(cert) {
			return 0
		}
	}
	return 1.0
}

// SellerUtility blends margin fit against the vendor floor with term
// length and payment speed preferences. Margin fit is 0 at floor and
// 1 at list.
func SellerUtility(vendor *domain.VendorProfile, offer domain.OfferComponents, listPrice float64) float64 {
	floor := vendor.Guardrails.PriceFloor
	marginFit := 1.0
	if listPrice > floor {
		marginFit = clamp((offer.UnitPrice-floor)/(listPrice-floor), 0, 1)
	}
	termPref := math.Min(1.0, float64(offer.TermMonths)/36.0)
	return sellerMarginWeight*marginFit + sellerTermWeight*termPref + sellerPaymentWeight*paymentSpeedPref(offer.Payment)
}

// paymentSpeedPref scores how quickly the seller gets paid, NET_15
// best down to NET_45 worst.
func paymentSpeedPref(p domain.PaymentTerms) float64 {
	switch p {
	case domain.PaymentNet15:
		return 1.0
	case domain.PaymentDeposit:
		return 0.9
	case domain.PaymentNet30:
		return 0.85
	case domain.PaymentMilestones:
		return 0.8
	case domain.PaymentNet45:
		return 0.7
	default:
		return 0.7
	}
}

// Sensitivity reports the linear buyer-utility change for a +10%
// perturbation of each score dimension. Exported for explainability;
// never consulted during negotiation.
func (s *Scorer) Sensitivity(score domain.OfferScore) map[string]float64 {
	return map[string]float64{
		"tco_fit":    s.weights.TCOFit * 0.1 * score.TCOFit,
		"spec_match": s.weights.SpecMatch * 0.1 * score.SpecMatch,
		"compliance": s.weights.Compliance * 0.1 * score.Compliance,
		"risk":       s.weights.Risk * 0.1 * score.Risk,
		"time":       s.weights.Time * 0.1 * score.Time,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procurehub/dealengine/internal/domain"
	"github.com/procurehub/dealengine/internal/pricing"
)

func testVendor() *domain.VendorProfile {
	return &domain.VendorProfile{
		ID:             "crm_pro",
		Name:           "CRM Pro",
		Capabilities:   []string{"crm", "api", "sso"},
		Certifications: []string{"soc2"},
		Cadence:        domain.CadencePerUnitPerYear,
		PriceTiers:     []domain.PriceTier{{MinQuantity: 0, UnitPrice: 1200}},
		Guardrails: domain.VendorGuardrails{
			PriceFloor:          1060,
			PaymentTermsAllowed: []domain.PaymentTerms{domain.PaymentNet15, domain.PaymentNet30, domain.PaymentNet45},
		},
		Reliability:  domain.Reliability{SLA: 0.99, Uptime: 0.995},
		RiskLevel:    domain.RiskLow,
		LeadTimeDays: 14,
	}
}

func testRequest() *domain.Request {
	return &domain.Request{
		ID:         "req-1",
		Category:   "crm",
		Quantity:   150,
		BudgetMax:  172500,
		Currency:   "USD",
		Cadence:    domain.CadencePerUnitPerYear,
		MustHaves:  []string{"crm", "api"},
		Compliance: []string{"soc2"},
	}
}

func newTestScorer(t *testing.T) *Scorer {
	t.Helper()
	calc, err := pricing.NewCalculator(0)
	require.NoError(t, err)
	scorer, err := NewScorer(calc, DefaultWeights(), false)
	require.NoError(t, err)
	return scorer
}

func TestWeights_Validate(t *testing.T) {
	require.NoError(t, DefaultWeights().Validate())

	bad := DefaultWeights()
	bad.TCOFit = -0.1
	err := bad.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfig)

	skewed := Weights{TCOFit: 0.9, SpecMatch: 0.9}
	assert.ErrorIs(t, skewed.Validate(), domain.ErrConfig)
}

func TestScoreBuyer_FullMatch(t *testing.T) {
	scorer := newTestScorer(t)
	req := testRequest()
	vendor := testVendor()

	offer := domain.OfferComponents{
		UnitPrice:  1100,
		Quantity:   150,
		TermMonths: 12,
		Payment:    domain.PaymentNet30,
	}

	score, err := scorer.ScoreBuyer(req, vendor, offer)
	require.NoError(t, err)

	assert.Equal(t, 1.0, score.SpecMatch)
	assert.Equal(t, 1.0, score.Compliance)
	assert.InDelta(t, 165000.0, score.TCO, 0.01)
	assert.Equal(t, 1.0, score.TCOFit, "budget 172500 covers TCO 165000")
	assert.InDelta(t, 0.9, score.Risk, 1e-9)
	assert.Greater(t, score.Utility, 0.9)
	assert.LessOrEqual(t, score.Utility, 1.0)
}

func TestScoreBuyer_MissingCompliance(t *testing.T) {
	scorer := newTestScorer(t)
	req := testRequest()
	req.Compliance = []string{"gdpr", "soc2"}
	vendor := testVendor() // holds soc2 only

	offer := domain.OfferComponents{UnitPrice: 1100, Quantity: 150, TermMonths: 12, Payment: domain.PaymentNet30}
	score, err := scorer.ScoreBuyer(req, vendor, offer)
	require.NoError(t, err)
	assert.Equal(t, 0.0, score.Compliance)
}

func TestScoreBuyer_StrictSpecMatch(t *testing.T) {
	calc, err := pricing.NewCalculator(0)
	require.NoError(t, err)
	strict, err := NewScorer(calc, DefaultWeights(), true)
	require.NoError(t, err)

	req := testRequest()
	req.MustHaves = []string{"crm", "warehouse_sync"}
	vendor := testVendor()

	offer := domain.OfferComponents{UnitPrice: 1100, Quantity: 150, TermMonths: 12, Payment: domain.PaymentNet30}
	score, err := strict.ScoreBuyer(req, vendor, offer)
	require.NoError(t, err)
	assert.Equal(t, 0.0, score.SpecMatch, "one absent must-have zeroes spec match in strict mode")

	lenient := newTestScorer(t)
	score, err = lenient.ScoreBuyer(req, vendor, offer)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, score.SpecMatch, 1e-9)
}

func TestScoreBuyer_UtilityMonotoneInPrice(t *testing.T) {
	scorer := newTestScorer(t)
	req := testRequest()
	vendor := testVendor()

	prev := 2.0
	for price := 1000.0; price <= 1500; price += 50 {
		offer := domain.OfferComponents{UnitPrice: price, Quantity: 150, TermMonths: 12, Payment: domain.PaymentNet30}
		score, err := scorer.ScoreBuyer(req, vendor, offer)
		require.NoError(t, err)
		assert.LessOrEqual(t, score.Utility, prev, "buyer utility must not rise with unit price (at %.0f)", price)
		prev = score.Utility
	}
}

func TestScoreBuyer_DoesNotMutateInputs(t *testing.T) {
	scorer := newTestScorer(t)
	req := testRequest()
	vendor := testVendor()
	offer := domain.OfferComponents{
		UnitPrice: 1100, Quantity: 150, TermMonths: 12, Payment: domain.PaymentNet30,
		ValueAdds: map[string]float64{"onboarding": 5000},
	}

	before := offer.Clone()
	_, err := scorer.ScoreBuyer(req, vendor, offer)
	require.NoError(t, err)
	assert.Equal(t, before, offer)
	assert.Equal(t, 150, req.Quantity)
}

func TestSellerUtility_MarginFitBounds(t *testing.T) {
	vendor := testVendor()
	list := 1200.0

	atFloor := domain.OfferComponents{UnitPrice: 1060, TermMonths: 36, Payment: domain.PaymentNet15}
	atList := domain.OfferComponents{UnitPrice: 1200, TermMonths: 36, Payment: domain.PaymentNet15}

	// With term and payment maxed the only varying part is margin fit:
	// 0 at floor, 1 at list.
	assert.InDelta(t, 0.3, SellerUtility(vendor, atFloor, list), 1e-9)
	assert.InDelta(t, 1.0, SellerUtility(vendor, atList, list), 1e-9)
}

func TestSellerUtility_PrefersFasterPayment(t *testing.T) {
	vendor := testVendor()
	fast := domain.OfferComponents{UnitPrice: 1150, TermMonths: 12, Payment: domain.PaymentNet15}
	slow := domain.OfferComponents{UnitPrice: 1150, TermMonths: 12, Payment: domain.PaymentNet45}
	assert.Greater(t, SellerUtility(vendor, fast, 1200), SellerUtility(vendor, slow, 1200))
}

func TestSensitivity(t *testing.T) {
	scorer := newTestScorer(t)
	score := domain.OfferScore{TCOFit: 1.0, SpecMatch: 0.5, Compliance: 1.0, Risk: 0.9, Time: 0.8}

	sens := scorer.Sensitivity(score)
	assert.InDelta(t, 0.04, sens["tco_fit"], 1e-9, "0.4 weight * 10%% * 1.0")
	assert.InDelta(t, 0.01, sens["spec_match"], 1e-9, "0.2 weight * 10%% * 0.5")
	assert.Len(t, sens, 5)
}

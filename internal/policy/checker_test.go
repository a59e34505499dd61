package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procurehub/dealengine/internal/domain"
	"github.com/procurehub/dealengine/internal/pricing"
)

func newChecker(t *testing.T) *Checker {
	t.Helper()
	calc, err := pricing.NewCalculator(0)
	require.NoError(t, err)
	checker, err := NewChecker(calc, domain.RunModeSimulation)
	require.NoError(t, err)
	return checker
}

func vendorFixture() *domain.VendorProfile {
	return &domain.VendorProfile{
		ID:             "secure_suite",
		Certifications: []string{"gdpr"},
		Regions:        []string{"eu", "us"},
		Currency:       "USD",
		Cadence:        domain.CadencePerUnitPerYear,
		PriceTiers:     []domain.PriceTier{{MinQuantity: 0, UnitPrice: 950}},
		Guardrails: domain.VendorGuardrails{
			PriceFloor:          820,
			PaymentTermsAllowed: []domain.PaymentTerms{domain.PaymentNet15, domain.PaymentNet30},
		},
	}
}

func requestFixture() *domain.Request {
	return &domain.Request{
		ID:         "req-sec",
		Category:   "security",
		Quantity:   80,
		BudgetMax:  72000,
		Currency:   "USD",
		Compliance: []string{"gdpr", "soc2"},
	}
}

func TestNewChecker_UnknownMode(t *testing.T) {
	calc, err := pricing.NewCalculator(0)
	require.NoError(t, err)
	_, err = NewChecker(calc, "dry_run")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfig)
}

func TestNewChecker_DefaultsToSimulation(t *testing.T) {
	calc, err := pricing.NewCalculator(0)
	require.NoError(t, err)
	checker, err := NewChecker(calc, "")
	require.NoError(t, err)
	assert.Equal(t, domain.RunModeSimulation, checker.Mode())
}

func TestPrecheckRequest(t *testing.T) {
	checker := newChecker(t)

	require.NoError(t, checker.PrecheckRequest(requestFixture()))

	bad := requestFixture()
	bad.BudgetMax = 0
	err := checker.PrecheckRequest(bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPolicyViolation)
}

func TestCheckPolicy_MissingCertification(t *testing.T) {
	checker := newChecker(t)
	offer := domain.OfferComponents{UnitPrice: 850, Quantity: 80, TermMonths: 12, Payment: domain.PaymentNet30}

	violations, err := checker.CheckPolicy(requestFixture(), vendorFixture(), offer)
	require.NoError(t, err)

	var certViolation *domain.Violation
	for i := range violations {
		if violations[i].Code == CodeMissingCert {
			certViolation = &violations[i]
		}
	}
	require.NotNil(t, certViolation, "soc2 is not held by the vendor")
	assert.Equal(t, domain.SeverityHard, certViolation.Severity)
	assert.Equal(t, "missing_certification: soc2", certViolation.Detail)
	assert.False(t, Eligible(violations))
}

func TestCheckPolicy_BudgetCapBreach(t *testing.T) {
	checker := newChecker(t)
	req := requestFixture()
	req.Compliance = []string{"gdpr"}

	// 950 * 80 = 76000 > 72000 annual budget.
	offer := domain.OfferComponents{UnitPrice: 950, Quantity: 80, TermMonths: 12, Payment: domain.PaymentNet30}
	violations, err := checker.CheckPolicy(req, vendorFixture(), offer)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, CodeBudgetCapBreach, violations[0].Code)
	assert.Equal(t, domain.SeverityHard, violations[0].Severity)

	// Within budget: 850 * 80 = 68000.
	offer.UnitPrice = 850
	violations, err = checker.CheckPolicy(req, vendorFixture(), offer)
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestCheckPolicy_MixedCurrencyIsHardStop(t *testing.T) {
	checker := newChecker(t)
	offer := domain.OfferComponents{UnitPrice: 850, Currency: "EUR", Quantity: 80, TermMonths: 12, Payment: domain.PaymentNet30}

	violations, err := checker.CheckPolicy(requestFixture(), vendorFixture(), offer)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, CodeMixedCurrency, violations[0].Code)
	assert.Equal(t, domain.SeverityHard, violations[0].Severity)
}

func TestCheckPolicy_UnsupportedRegion(t *testing.T) {
	checker := newChecker(t)
	req := requestFixture()
	req.Compliance = nil
	req.Region = "apac"

	offer := domain.OfferComponents{UnitPrice: 850, Quantity: 80, TermMonths: 12, Payment: domain.PaymentNet30}
	violations, err := checker.CheckPolicy(req, vendorFixture(), offer)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, CodeUnsupportedRegion, violations[0].Code)
}

func TestCheckGuardrails(t *testing.T) {
	checker := newChecker(t)
	vendor := vendorFixture()

	t.Run("clean offer", func(t *testing.T) {
		offer := domain.OfferComponents{UnitPrice: 850, Quantity: 80, TermMonths: 12, Payment: domain.PaymentNet30}
		assert.Empty(t, checker.CheckGuardrails(vendor, offer))
	})

	t.Run("below floor", func(t *testing.T) {
		offer := domain.OfferComponents{UnitPrice: 700, Quantity: 80, TermMonths: 12, Payment: domain.PaymentNet30}
		violations := checker.CheckGuardrails(vendor, offer)
		require.Len(t, violations, 1)
		assert.Equal(t, CodePriceBelowFloor, violations[0].Code)
		assert.Equal(t, domain.SeverityHard, violations[0].Severity)
	})

	t.Run("above list cap", func(t *testing.T) {
		offer := domain.OfferComponents{UnitPrice: 1100, Quantity: 80, TermMonths: 12, Payment: domain.PaymentNet30}
		violations := checker.CheckGuardrails(vendor, offer)
		require.Len(t, violations, 1)
		assert.Equal(t, CodePriceAboveListCap, violations[0].Code)
	})

	t.Run("payment not allowed", func(t *testing.T) {
		offer := domain.OfferComponents{UnitPrice: 850, Quantity: 80, TermMonths: 12, Payment: domain.PaymentNet45}
		violations := checker.CheckGuardrails(vendor, offer)
		require.Len(t, violations, 1)
		assert.Equal(t, CodePaymentNotAllowed, violations[0].Code)
	})
}

func TestCheckOffer_Idempotent(t *testing.T) {
	checker := newChecker(t)
	offer := domain.OfferComponents{UnitPrice: 700, Quantity: 80, TermMonths: 12, Payment: domain.PaymentNet45}

	first, err := checker.CheckOffer(requestFixture(), vendorFixture(), offer)
	require.NoError(t, err)
	second, err := checker.CheckOffer(requestFixture(), vendorFixture(), offer)
	require.NoError(t, err)
	assert.Equal(t, first, second, "validation must be a pure function of its inputs")
}

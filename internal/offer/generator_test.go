package offer

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procurehub/dealengine/internal/domain"
)

func sellerCtx() *Context {
	return &Context{
		Side: domain.ActorSeller,
		Request: &domain.Request{
			ID: "req-1", Quantity: 150, BudgetMax: 172500,
			Cadence: domain.CadencePerUnitPerYear,
		},
		Vendor: &domain.VendorProfile{
			ID:      "crm_pro",
			Cadence: domain.CadencePerUnitPerYear,
			Guardrails: domain.VendorGuardrails{
				PriceFloor:          1060,
				PaymentTermsAllowed: []domain.PaymentTerms{domain.PaymentNet15, domain.PaymentNet30, domain.PaymentNet45},
			},
		},
		ListPrice: 1200,
		OwnTarget: 1200,
	}
}

func buyerCtx() *Context {
	ctx := sellerCtx()
	ctx.Side = domain.ActorBuyer
	ctx.OwnTarget = ctx.Request.TargetUnitPrice(ctx.ListPrice, ctx.Vendor.Cadence)
	return ctx
}

func sellerOffer(price float64) domain.OfferComponents {
	return domain.OfferComponents{UnitPrice: price, Quantity: 150, TermMonths: 12, Payment: domain.PaymentNet30}
}

var neutral = domain.Personality{ConcessionWillingness: 0.5}

func TestAnchorHigh(t *testing.T) {
	g := NewGenerator()

	res, err := g.Generate(domain.StrategyAnchorHigh, neutral, sellerOffer(1200), sellerOffer(1000), sellerCtx())
	require.NoError(t, err)
	assert.InDelta(t, 1260.0, res.Offer.UnitPrice, 1e-9, "seller anchors at list * 1.05")
	assert.False(t, res.Clamped)

	ctx := buyerCtx()
	res, err = g.Generate(domain.StrategyAnchorHigh, neutral, sellerOffer(1100), sellerOffer(1260), ctx)
	require.NoError(t, err)
	assert.Less(t, res.Offer.UnitPrice, ctx.OwnTarget, "buyer anchor sits below its own target")
}

func TestValueJustification(t *testing.T) {
	g := NewGenerator()
	own := sellerOffer(1260)
	counter := sellerOffer(1000)
	counter.TermMonths = 24

	res, err := g.Generate(domain.StrategyValueJustification, neutral, own, counter, sellerCtx())
	require.NoError(t, err)
	assert.InDelta(t, 1260-0.15*260, res.Offer.UnitPrice, 1e-9)
	assert.Equal(t, 24, res.Offer.TermMonths, "term stretches to the longer of the two")
}

func TestCompetitiveMatch(t *testing.T) {
	g := NewGenerator()
	own := sellerOffer(1260)
	counter := sellerOffer(1100)
	counter.Payment = domain.PaymentNet15
	counter.TermMonths = 24

	res, err := g.Generate(domain.StrategyCompetitiveMatch, neutral, own, counter, sellerCtx())
	require.NoError(t, err)
	assert.InDelta(t, 1260-0.40*160, res.Offer.UnitPrice, 1e-9)
	assert.Equal(t, domain.PaymentNet15, res.Offer.Payment)
	assert.Equal(t, 24, res.Offer.TermMonths)
}

func TestVolumeIncentive(t *testing.T) {
	g := NewGenerator()
	own := sellerOffer(1200)
	counter := sellerOffer(1000)
	counter.Quantity = 300 // ratio 2.0

	res, err := g.Generate(domain.StrategyVolumeIncentive, neutral, own, counter, sellerCtx())
	require.NoError(t, err)
	assert.Equal(t, 300, res.Offer.Quantity)
	// Discount capped at 15%.
	assert.InDelta(t, 1200*0.85, res.Offer.UnitPrice, 1e-9)
}

func TestTermPremium(t *testing.T) {
	g := NewGenerator()
	own := sellerOffer(1200)
	counter := sellerOffer(1000)
	counter.TermMonths = 36 // (36/12 - 1) * 0.08 = 0.16, capped to 0.12

	res, err := g.Generate(domain.StrategyTermPremium, neutral, own, counter, sellerCtx())
	require.NoError(t, err)
	assert.InDelta(t, 1200*0.88, res.Offer.UnitPrice, 1e-9)
	assert.Equal(t, 36, res.Offer.TermMonths)
}

func TestRelationshipInvestment(t *testing.T) {
	g := NewGenerator()
	own := sellerOffer(1260)
	counter := sellerOffer(1160)
	counter.Payment = domain.PaymentNet45

	res, err := g.Generate(domain.StrategyRelationshipInvestment, neutral, own, counter, sellerCtx())
	require.NoError(t, err)
	assert.InDelta(t, 1260-0.60*100, res.Offer.UnitPrice, 1e-9)
	assert.Equal(t, domain.PaymentNet45, res.Offer.Payment)
}

func TestGradualConcession_Deterministic(t *testing.T) {
	g := NewGenerator()
	own := sellerOffer(1260)
	counter := sellerOffer(1060)
	p := domain.Personality{ConcessionWillingness: 0.8}

	ctx1 := sellerCtx()
	ctx1.Rand = rand.New(rand.NewSource(42))
	first, err := g.Generate(domain.StrategyGradualConcession, p, own, counter, ctx1)
	require.NoError(t, err)

	ctx2 := sellerCtx()
	ctx2.Rand = rand.New(rand.NewSource(42))
	second, err := g.Generate(domain.StrategyGradualConcession, p, own, counter, ctx2)
	require.NoError(t, err)

	assert.Equal(t, first.Offer.UnitPrice, second.Offer.UnitPrice, "same seed, same jitter")

	// Step is willingness * 0.25 * gap = 40, jittered within +/-2%.
	assert.InDelta(t, 1260-40, first.Offer.UnitPrice, 40*0.02+1e-9)
}

func TestSplitDifference(t *testing.T) {
	g := NewGenerator()
	res, err := g.Generate(domain.StrategySplitDifference, neutral, sellerOffer(1260), sellerOffer(1100), sellerCtx())
	require.NoError(t, err)
	assert.InDelta(t, 1180.0, res.Offer.UnitPrice, 1e-9)
}

func TestFinalOffer_Seller(t *testing.T) {
	g := NewGenerator()
	res, err := g.Generate(domain.StrategyFinalOffer, neutral, sellerOffer(1150), sellerOffer(1000), sellerCtx())
	require.NoError(t, err)
	assert.True(t, res.Final)
	// max(floor*1.02, counter*1.05) = max(1081.2, 1050) = 1081.2
	assert.InDelta(t, 1081.2, res.Offer.UnitPrice, 1e-9)
}

func TestHoldFirm(t *testing.T) {
	g := NewGenerator()
	own := sellerOffer(1150)
	res, err := g.Generate(domain.StrategyHoldFirm, neutral, own, sellerOffer(1000), sellerCtx())
	require.NoError(t, err)
	assert.Equal(t, own.UnitPrice, res.Offer.UnitPrice)
	assert.NotEmpty(t, res.Rationale)
}

func TestConditionalDiscount(t *testing.T) {
	g := NewGenerator()
	res, err := g.Generate(domain.StrategyConditionalDiscount, neutral, sellerOffer(1260), sellerOffer(1100), sellerCtx())
	require.NoError(t, err)
	assert.InDelta(t, 1260-0.30*160, res.Offer.UnitPrice, 1e-9)
	assert.Equal(t, 24, res.Offer.TermMonths)
	assert.Equal(t, domain.PaymentNet15, res.Offer.Payment)
}

func TestWalkAway(t *testing.T) {
	g := NewGenerator()
	res, err := g.Generate(domain.StrategyWalkAway, neutral, sellerOffer(1260), sellerOffer(500), sellerCtx())
	require.NoError(t, err)
	assert.True(t, res.WalkAway)
}

func TestClamp_SellerNeverBelowOwnFloor(t *testing.T) {
	g := NewGenerator()
	own := sellerOffer(1100)
	counter := sellerOffer(200) // a 60% relationship concession would land below floor

	res, err := g.Generate(domain.StrategyRelationshipInvestment, neutral, own, counter, sellerCtx())
	require.NoError(t, err)
	assert.True(t, res.Clamped)
	assert.Equal(t, 1060.0, res.Offer.UnitPrice, "clamped to vendor floor, never silently below")
}

func TestClamp_SellerPaymentPulledToAllowed(t *testing.T) {
	g := NewGenerator()
	own := sellerOffer(1260)
	counter := sellerOffer(1100)
	counter.Payment = domain.PaymentDeposit // not in the vendor allow-list

	res, err := g.Generate(domain.StrategySplitDifference, neutral, own, counter, sellerCtx())
	require.NoError(t, err)
	assert.True(t, res.Clamped)
	assert.True(t, res.Offer.Payment == domain.PaymentNet15 || res.Offer.Payment == domain.PaymentNet30,
		"pulled to the nearest allowed payment term, got %s", res.Offer.Payment)
}

func TestClamp_BuyerAnchorMayUndercutSellerFloor(t *testing.T) {
	g := NewGenerator()
	ctx := buyerCtx()
	own := sellerOffer(1100)

	res, err := g.Generate(domain.StrategyAnchorHigh, neutral, own, sellerOffer(1260), ctx)
	require.NoError(t, err)
	assert.Less(t, res.Offer.UnitPrice, ctx.Vendor.Guardrails.PriceFloor,
		"buyer anchors are allowed to cross the counterparty's floor")
	assert.False(t, res.Clamped)
}

func TestGenerate_EmittedPriceWithinOwnBounds(t *testing.T) {
	g := NewGenerator()
	ctx := sellerCtx()
	strategies := []domain.Strategy{
		domain.StrategyAnchorHigh, domain.StrategyValueJustification, domain.StrategyCompetitiveMatch,
		domain.StrategyVolumeIncentive, domain.StrategyTermPremium, domain.StrategyRelationshipInvestment,
		domain.StrategyGradualConcession, domain.StrategySplitDifference, domain.StrategyFinalOffer,
		domain.StrategyHoldFirm, domain.StrategyConditionalDiscount,
	}
	counters := []float64{200, 800, 1060, 1150, 1400}

	for _, s := range strategies {
		for _, c := range counters {
			res, err := g.Generate(s, neutral, sellerOffer(1200), sellerOffer(c), ctx)
			require.NoError(t, err, "strategy %s counter %.0f", s, c)
			assert.GreaterOrEqual(t, res.Offer.UnitPrice, ctx.Vendor.Guardrails.PriceFloor,
				"strategy %s counter %.0f below floor", s, c)
			assert.LessOrEqual(t, res.Offer.UnitPrice, ctx.ListPrice*1.1+1e-9,
				"strategy %s counter %.0f above list cap", s, c)
		}
	}
}

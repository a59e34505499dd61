// Package offer turns a selected strategy into a concrete counter-offer,
// keeping every emitted offer inside the issuing side's own guardrails.
package offer

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/procurehub/dealengine/internal/domain"
	"github.com/procurehub/dealengine/internal/opponent"
)

// Context is the read-only surrounding state a generator sees.
type Context struct {
	Side      domain.Actor
	Request   *domain.Request
	Vendor    *domain.VendorProfile
	ListPrice float64
	OwnTarget float64
	Opponent  *opponent.Model
	Rand      *rand.Rand

	personalityRef *domain.Personality
}

// Result is one generated move.
type Result struct {
	Offer     domain.OfferComponents
	Rationale string
	Clamped   bool
	Final     bool
	WalkAway  bool
}

// genFunc is a pure strategy implementation.
type genFunc func(own, counter domain.OfferComponents, ctx *Context) (Result, error)

// Generator dispatches the closed strategy set. Adding a strategy means
// adding a table row in the selector and an entry here.
type Generator struct {
	funcs map[domain.Strategy]genFunc
}

// NewGenerator builds the dispatch map.
func NewGenerator() *Generator {
	g := &Generator{}
	g.funcs = map[domain.Strategy]genFunc{
		domain.StrategyAnchorHigh:             anchorHigh,
		domain.StrategyValueJustification:     valueJustification,
		domain.StrategyCompetitiveMatch:       competitiveMatch,
		domain.StrategyVolumeIncentive:        volumeIncentive,
		domain.StrategyTermPremium:            termPremium,
		domain.StrategyRelationshipInvestment: relationshipInvestment,
		domain.StrategyGradualConcession:      gradualConcession,
		domain.StrategySplitDifference:        splitDifference,
		domain.StrategyFinalOffer:             finalOffer,
		domain.StrategyHoldFirm:               holdFirm,
		domain.StrategyConditionalDiscount:    conditionalDiscount,
		domain.StrategyWalkAway:               walkAway,
	}
	return g
}

// Generate produces the next offer for the given strategy, personality
// supplied through the context, then clamps to the issuing side's own
// guardrails.
func (g *Generator) Generate(s domain.Strategy, personality domain.Personality, own, counter domain.OfferComponents, ctx *Context) (Result, error) {
	fn, ok := g.funcs[s]
	if !ok {
		return Result{}, fmt.Errorf("%w: no generator for strategy %s", domain.ErrStrategyInfeasible, s)
	}

	res, err := fn(own, counter, withPersonality(ctx, personality))
	if err != nil {
		return Result{}, err
	}
	if res.WalkAway {
		return res, nil
	}

	clamped, wasClamped, err := clampOwnSide(res.Offer, ctx)
	if err != nil {
		return Result{}, err
	}
	res.Offer = clamped
	res.Clamped = res.Clamped || wasClamped
	return res, nil
}

func withPersonality(ctx *Context, p domain.Personality) *Context {
	// Personality only matters to gradualConcession; thread it through
	// the context copy to keep the genFunc signature uniform.
	out := *ctx
	out.personalityRef = &p
	return &out
}

// movement returns how far own price moves toward the counter price for
// a concession fraction f. Works for both sides: the sign of the gap
// already points at the counterparty.
func movement(own, counter domain.OfferComponents, f float64) float64 {
	return f * (own.UnitPrice - counter.UnitPrice)
}

func anchorHigh(own, counter domain.OfferComponents, ctx *Context) (Result, error) {
	out := own.Clone()
	if ctx.Side == domain.ActorSeller {
		out.UnitPrice = ctx.ListPrice * 1.05
	} else {
		// The buyer's mirror anchor sits well under its target, shaping
		// the range downward; it may undercut the seller floor.
		out.UnitPrice = ctx.OwnTarget * 0.85
	}
	return Result{Offer: out, Rationale: "opening anchor to frame the bargaining range"}, nil
}

func valueJustification(own, counter domain.OfferComponents, ctx *Context) (Result, error) {
	out := own.Clone()
	out.UnitPrice = own.UnitPrice - movement(own, counter, 0.15)
	out.TermMonths = maxInt(own.TermMonths, counter.TermMonths)
	return Result{Offer: out, Rationale: "small concession backed by the value delivered over a longer term"}, nil
}

func competitiveMatch(own, counter domain.OfferComponents, ctx *Context) (Result, error) {
	out := own.Clone()
	out.UnitPrice = own.UnitPrice - movement(own, counter, 0.40)
	out.TermMonths = counter.TermMonths
	out.Payment = counter.Payment
	return Result{Offer: out, Rationale: "matching competitive terms to stay in the running"}, nil
}

func volumeIncentive(own, counter domain.OfferComponents, ctx *Context) (Result, error) {
	out := own.Clone()
	ratio := 1.2
	if own.Quantity > 0 && counter.Quantity > 0 {
		ratio = math.Max(1.2, float64(counter.Quantity)/float64(own.Quantity))
	}
	out.Quantity = int(math.Round(float64(own.Quantity) * ratio))
	discount := math.Min(0.15, (ratio-1.0)*0.5)
	out.UnitPrice = own.UnitPrice * (1.0 - discount)
	return Result{Offer: out, Rationale: fmt.Sprintf("volume incentive: %.0f%% off at %d units", discount*100, out.Quantity)}, nil
}

func termPremium(own, counter domain.OfferComponents, ctx *Context) (Result, error) {
	out := own.Clone()
	discount := math.Min(0.12, (float64(counter.TermMonths)/12.0-1.0)*0.08)
	if discount < 0 {
		discount = 0
	}
	out.UnitPrice = own.UnitPrice * (1.0 - discount)
	out.TermMonths = maxInt(counter.TermMonths, 24)
	return Result{Offer: out, Rationale: fmt.Sprintf("term discount for a %d month commitment", out.TermMonths)}, nil
}

func relationshipInvestment(own, counter domain.OfferComponents, ctx *Context) (Result, error) {
	out := own.Clone()
	out.UnitPrice = own.UnitPrice - movement(own, counter, 0.60)
	out.TermMonths = counter.TermMonths
	out.Payment = counter.Payment
	return Result{Offer: out, Rationale: "investing in the relationship with a substantial concession"}, nil
}

func gradualConcession(own, counter domain.OfferComponents, ctx *Context) (Result, error) {
	out := own.Clone()
	willingness := 0.5
	if ctx.personalityRef != nil {
		willingness = ctx.personalityRef.ConcessionWillingness
	}
	step := movement(own, counter, willingness*0.25)
	if ctx.Rand != nil && step != 0 {
		// Seeded jitter within +/-2% of the step keeps runs reproducible.
		step *= 1.0 + (ctx.Rand.Float64()-0.5)*0.04
	}
	out.UnitPrice = own.UnitPrice - step
	return Result{Offer: out, Rationale: "measured concession toward the counterparty"}, nil
}

func splitDifference(own, counter domain.OfferComponents, ctx *Context) (Result, error) {
	out := own.Clone()
	out.UnitPrice = (own.UnitPrice + counter.UnitPrice) / 2.0
	out.TermMonths = counter.TermMonths
	out.Payment = counter.Payment
	return Result{Offer: out, Rationale: "splitting the remaining difference to close"}, nil
}

func finalOffer(own, counter domain.OfferComponents, ctx *Context) (Result, error) {
	out := own.Clone()
	if ctx.Side == domain.ActorSeller {
		floor := ctx.Vendor.Guardrails.PriceFloor
		out.UnitPrice = math.Max(floor*1.02, counter.UnitPrice*1.05)
	} else {
		// The buyer's final lands just above its target but never past
		// the budget ceiling, in the vendor's quote cadence.
		ceiling := ctx.Request.CeilingInCadence(ctx.Vendor.Cadence)
		out.UnitPrice = math.Min(math.Min(ceiling*0.98, counter.UnitPrice*0.95), ctx.OwnTarget*1.01)
	}
	return Result{Offer: out, Final: true, Rationale: "best and final offer, no further concessions"}, nil
}

func holdFirm(own, counter domain.OfferComponents, ctx *Context) (Result, error) {
	return Result{Offer: own.Clone(), Rationale: "holding position: the price reflects the value delivered"}, nil
}

func conditionalDiscount(own, counter domain.OfferComponents, ctx *Context) (Result, error) {
	out := own.Clone()
	out.UnitPrice = own.UnitPrice - movement(own, counter, 0.30)
	out.TermMonths = maxInt(counter.TermMonths, 24)
	out.Payment = domain.PaymentNet15
	return Result{Offer: out, Rationale: "discount conditional on a 24 month term and NET_15 payment"}, nil
}

func walkAway(own, counter domain.OfferComponents, ctx *Context) (Result, error) {
	return Result{WalkAway: true, Rationale: "gap too wide to bridge, ending the negotiation"}, nil
}

// clampOwnSide pulls an offer back inside the issuing side's own hard
// constraints. Counterparty constraints are deliberately not applied:
// anchors may cross them.
func clampOwnSide(o domain.OfferComponents, ctx *Context) (domain.OfferComponents, bool, error) {
	out := o.Clone()
	clamped := false

	if ctx.Side == domain.ActorSeller {
		floor := ctx.Vendor.Guardrails.PriceFloor
		cap := ctx.ListPrice * 1.1
		if out.UnitPrice < floor {
			out.UnitPrice = floor
			clamped = true
		}
		if cap > 0 && out.UnitPrice > cap {
			out.UnitPrice = cap
			clamped = true
		}
		if !ctx.Vendor.Guardrails.AllowsPayment(out.Payment) {
			nearest, err := nearestAllowedPayment(out.Payment, ctx.Vendor.Guardrails.PaymentTermsAllowed)
			if err != nil {
				return out, clamped, err
			}
			out.Payment = nearest
			clamped = true
		}
		if !ctx.Vendor.Guardrails.OffersTerm(out.TermMonths) {
			out.TermMonths = nearestTerm(out.TermMonths, ctx.Vendor.Guardrails.TermMonthsOffered)
			clamped = true
		}
	} else {
		ceiling := ctx.Request.CeilingInCadence(ctx.Vendor.Cadence)
		if ceiling > 0 && out.UnitPrice > ceiling {
			out.UnitPrice = ceiling
			clamped = true
		}
		if out.UnitPrice < 0 {
			out.UnitPrice = 0
			clamped = true
		}
	}

	return out, clamped, nil
}

func nearestAllowedPayment(p domain.PaymentTerms, allowed []domain.PaymentTerms) (domain.PaymentTerms, error) {
	if len(allowed) == 0 {
		return p, nil
	}
	best := allowed[0]
	bestDist := math.MaxInt32
	for _, a := range allowed {
		dist := absInt(a.SpeedRank() - p.SpeedRank())
		if dist < bestDist {
			best = a
			bestDist = dist
		}
	}
	if bestDist == math.MaxInt32 {
		return p, fmt.Errorf("%w: no feasible payment terms", domain.ErrStrategyInfeasible)
	}
	return best, nil
}

func nearestTerm(term int, offered []int) int {
	if len(offered) == 0 {
		return term
	}
	best := offered[0]
	for _, t := range offered {
		if absInt(t-term) < absInt(best-term) {
			best = t
		}
	}
	return best
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

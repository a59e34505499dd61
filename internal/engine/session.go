// Package engine drives negotiations: the per-session round state
// machine and the coordinator that runs sessions in parallel.
package engine

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/procurehub/dealengine/internal/collab"
	"github.com/procurehub/dealengine/internal/domain"
	"github.com/procurehub/dealengine/internal/offer"
	"github.com/procurehub/dealengine/internal/opponent"
	"github.com/procurehub/dealengine/internal/policy"
	"github.com/procurehub/dealengine/internal/pricing"
	"github.com/procurehub/dealengine/internal/scoring"
	"github.com/procurehub/dealengine/internal/strategy"
	"github.com/procurehub/dealengine/internal/telemetry"
)

// Acceptance tolerance: a price within 1% of list of the own target is
// close enough to take.
const acceptBandOfList = 0.01

// Stalemate detection: four consecutive post-anchor turns where nobody
// moved price by 10 currency units or touched term/payment.
const (
	stalemateWindow    = 4
	stalemateThreshold = 10.0
	stalemateMinRound  = 3
)

// Outcome reasons surfaced on SessionState and the terminated event.
const (
	ReasonNoZopa       = "no_zopa"
	ReasonCancelled    = "cancelled"
	ReasonWalkAway     = "walk_away"
	ReasonNoMovement   = "no_movement"
	ReasonRoundTimeout = "round_timeout"
	ReasonRoundLimit   = "round_limit"
	ReasonAgreed       = "agreed"
)

// SessionConfig is the engine-level slice of configuration a single
// session needs.
type SessionConfig struct {
	RunMode      domain.RunMode
	RoundTimeout time.Duration
}

// Deps bundles the injected collaborators shared by all sessions of a
// request. All of them are reentrant-safe. Metrics may be nil.
type Deps struct {
	Checker *policy.Checker
	Scorer  *scoring.Scorer
	Calc    *pricing.Calculator
	Gen     *offer.Generator
	Emitter *collab.Emitter
	Metrics *telemetry.Metrics
	Clock   func() time.Time
	Log     zerolog.Logger
}

// Session is the single buyer<->vendor round state machine. It is not
// safe for concurrent use; the coordinator runs each session on its own
// goroutine and never shares it.
type Session struct {
	id     string
	req    *domain.Request
	vendor *domain.VendorProfile
	plan   domain.NegotiationPlan
	cfg    SessionConfig
	deps   Deps

	vendorCtx strategy.VendorContext

	state       domain.SessionState
	buyerModel  *opponent.Model // buyer's beliefs about the seller
	sellerModel *opponent.Model // seller's beliefs about the buyer

	buyerPersona  domain.Personality
	sellerPersona domain.Personality

	rng         *rand.Rand
	list        float64
	buyerTarget float64

	lastBuyer  domain.OfferComponents
	lastSeller domain.OfferComponents
	haveBuyer  bool

	finalIssued map[domain.Actor]bool
}

// NewSession builds a session in the in_progress state. The vendor
// context shapes only the seller side; the buyer negotiates on the raw
// plan personality.
func NewSession(req *domain.Request, vendor *domain.VendorProfile, plan domain.NegotiationPlan, vendorCtx strategy.VendorContext, cfg SessionConfig, deps Deps) *Session {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if plan.MaxRounds <= 0 {
		plan.MaxRounds = 8
	}
	if len(plan.ConcessionSchedule) == 0 {
		plan.ConcessionSchedule = domain.DefaultConcessionSchedule
	}

	id := uuid.NewString()
	list := vendor.ListPrice(req.Quantity)

	s := &Session{
		id:            id,
		req:           req,
		vendor:        vendor,
		plan:          plan,
		cfg:           cfg,
		deps:          deps,
		vendorCtx:     vendorCtx,
		buyerModel:    opponent.New(list),
		sellerModel:   opponent.New(req.CeilingInCadence(vendor.Cadence)),
		buyerPersona:  plan.Personality,
		sellerPersona: strategy.AdjustForContext(plan.Personality, vendorCtx),
		rng:           rand.New(rand.NewSource(sessionSeed(plan.Seed, vendor.ID))),
		list:          list,
		buyerTarget:   req.TargetUnitPrice(list, vendor.Cadence),
		finalIssued:   map[domain.Actor]bool{},
		state: domain.SessionState{
			ID:        id,
			RequestID: req.ID,
			VendorID:  vendor.ID,
			Outcome:   domain.OutcomeInProgress,
		},
	}
	s.deps.Log = deps.Log.With().
		Str("session_id", id).
		Str("request_id", req.ID).
		Str("vendor_id", vendor.ID).
		Logger()
	return s
}

// sessionSeed derives a per-vendor seed so parallel sessions of one
// request draw independent but reproducible jitter.
func sessionSeed(base int64, vendorID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(vendorID))
	return base ^ int64(h.Sum64())
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns a snapshot of the current session state.
func (s *Session) State() domain.SessionState { return s.state }

// Run executes the whole negotiation: compatibility prechecks, the
// seller's opening anchor, then alternating buyer/seller turns until a
// terminal outcome. Cancellation is honored at round granularity: the
// current turn finishes, then the session drops.
func (s *Session) Run(ctx context.Context) (domain.SessionState, error) {
	s.state.StartedAt = s.deps.Clock()
	s.deps.Metrics.SessionStarted()
	defer func() { s.deps.Metrics.SessionFinished(s.state, s.listSpend()) }()
	s.deps.Emitter.Emit(ctx, s.event(domain.EventSessionStarted, 0, domain.SessionStartedPayload{
		MaxRounds:            s.plan.MaxRounds,
		MinAcceptableUtility: s.plan.MinAcceptableUtility,
		PersonalityPreset:    s.plan.PersonalityPreset,
		ListPrice:            s.list,
	}))

	if err := s.precheck(ctx); err != nil || s.state.Outcome.Terminal() {
		return s.state, err
	}

	s.openingAnchor(ctx)

	for round := 1; round <= s.plan.MaxRounds && !s.state.Outcome.Terminal(); round++ {
		if err := s.step(ctx, round); err != nil {
			return s.state, domain.WrapSession(s.id, round, err)
		}
		// Atomicity at round granularity: cancellation takes effect
		// after the in-flight turn completes.
		if !s.state.Outcome.Terminal() && ctx.Err() != nil {
			s.terminate(ctx, domain.OutcomeDropped, ReasonCancelled)
		}
	}

	if !s.state.Outcome.Terminal() {
		s.terminate(ctx, domain.OutcomeMaxRounds, ReasonRoundLimit)
	}
	return s.state, nil
}

// step executes one turn: odd rounds are the buyer's, even rounds the
// seller's. Exposed separately so hosts with their own schedulers can
// drive the machine turn by turn.
func (s *Session) step(ctx context.Context, round int) error {
	turnCtx := ctx
	var cancel context.CancelFunc
	if s.cfg.RoundTimeout > 0 {
		turnCtx, cancel = context.WithTimeout(ctx, s.cfg.RoundTimeout)
		defer cancel()
	}

	s.state.Round = round
	var err error
	if round%2 == 1 {
		err = s.buyerTurn(turnCtx, round)
	} else {
		err = s.sellerTurn(turnCtx, round)
	}
	if err != nil {
		return err
	}

	// A blown per-round deadline counts as counterparty refusal and
	// takes the round-limit termination path.
	if !s.state.Outcome.Terminal() && turnCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		s.terminate(ctx, domain.OutcomeMaxRounds, ReasonRoundTimeout)
	}
	return nil
}

// precheck refuses sessions that can never produce an acceptable deal:
// invalid requests, missing certifications, currency mismatch. These
// terminate with zero rounds executed.
func (s *Session) precheck(ctx context.Context) error {
	if err := s.deps.Checker.PrecheckRequest(s.req); err != nil {
		return domain.WrapSession(s.id, 0, err)
	}
	if s.list <= 0 {
		s.terminate(ctx, domain.OutcomeRejected, "vendor_cannot_quote")
		return nil
	}
	for _, cert := range s.req.Compliance {
		if !s.vendor.HasCertification(cert) {
			s.terminate(ctx, domain.OutcomeRejected, fmt.Sprintf("missing_certification: %s", cert))
			return nil
		}
	}
	if s.req.Currency != "" && s.vendor.Currency != "" && s.req.Currency != s.vendor.Currency {
		s.terminate(ctx, domain.OutcomeRejected, policy.CodeMixedCurrency)
		return nil
	}
	if !s.vendor.ServesRegion(s.req.Region) {
		s.terminate(ctx, domain.OutcomeRejected, policy.CodeUnsupportedRegion)
		return nil
	}
	return nil
}

// openingAnchor records the seller's round-zero anchor: list price,
// NET_30, twelve months.
func (s *Session) openingAnchor(ctx context.Context) {
	anchor := domain.OfferComponents{
		UnitPrice:  s.list,
		Currency:   s.vendor.Currency,
		Quantity:   s.req.Quantity,
		TermMonths: 12,
		Payment:    domain.PaymentNet30,
	}
	s.lastSeller = anchor
	s.record(ctx, 0, domain.ActorSeller, anchor, domain.StrategyAnchorHigh,
		"opening anchor at list price", false, false, nil, domain.DecisionCounter)
}

func (s *Session) buyerTurn(ctx context.Context, round int) error {
	s.buyerModel.Observe(s.lastSeller)

	// Static ZOPA test on the first buyer turn: if the prior floor
	// estimate already clears the budget ceiling there is nothing to
	// negotiate over. Both sides of the comparison are in the vendor's
	// quote cadence.
	if round == 1 {
		ceiling := s.req.CeilingInCadence(s.vendor.Cadence)
		if s.buyerModel.FloorEstimate > ceiling*1.05 {
			s.terminate(ctx, domain.OutcomeDropped, ReasonNoZopa)
			return nil
		}
	}

	accepted, err := s.tryBuyerAccept(ctx, round)
	if err != nil || accepted {
		return err
	}

	own := s.lastBuyer
	if !s.haveBuyer {
		own = domain.OfferComponents{
			UnitPrice:  s.buyerTarget,
			Currency:   s.req.Currency,
			Quantity:   s.req.Quantity,
			TermMonths: s.lastSeller.TermMonths,
			Payment:    s.lastSeller.Payment,
		}
	}

	sel := domain.StrategyHoldFirm
	if !s.finalIssued[domain.ActorBuyer] {
		sel = strategy.Select(strategy.Inputs{
			Round:        round,
			TotalRounds:  s.plan.MaxRounds,
			PriceGap:     (s.lastSeller.UnitPrice - s.buyerTarget) / s.buyerTarget,
			Personality:  s.buyerPersona,
			Opponent:     s.buyerModel,
			ScheduleHint: s.scheduleHint(round),
		})
	}
	if sel == domain.StrategyWalkAway {
		s.terminate(ctx, domain.OutcomeDropped, ReasonWalkAway)
		return nil
	}

	res, err := s.deps.Gen.Generate(sel, s.buyerPersona, own, s.lastSeller, &offer.Context{
		Side:      domain.ActorBuyer,
		Request:   s.req,
		Vendor:    s.vendor,
		ListPrice: s.list,
		OwnTarget: s.buyerTarget,
		Opponent:  s.buyerModel,
		Rand:      s.rng,
	})
	if err != nil {
		s.terminate(ctx, domain.OutcomeDropped, ReasonNoZopa)
		return nil
	}
	if res.WalkAway {
		s.terminate(ctx, domain.OutcomeDropped, ReasonWalkAway)
		return nil
	}
	if res.Final {
		s.finalIssued[domain.ActorBuyer] = true
	}

	return s.commitTurn(ctx, round, domain.ActorBuyer, sel, res)
}

func (s *Session) sellerTurn(ctx context.Context, round int) error {
	s.sellerModel.Observe(s.lastBuyer)

	accepted, err := s.trySellerAccept(ctx, round)
	if err != nil || accepted {
		return err
	}

	sel := domain.StrategyHoldFirm
	if !s.finalIssued[domain.ActorSeller] {
		sel = strategy.Select(strategy.Inputs{
			Round:        round,
			TotalRounds:  s.plan.MaxRounds,
			PriceGap:     (s.lastBuyer.UnitPrice - s.list) / s.list,
			Personality:  s.sellerPersona,
			Context:      s.vendorCtx,
			Opponent:     s.sellerModel,
			ScheduleHint: s.scheduleHint(round),
		})
	}
	if sel == domain.StrategyWalkAway {
		s.terminate(ctx, domain.OutcomeDropped, ReasonWalkAway)
		return nil
	}

	res, err := s.deps.Gen.Generate(sel, s.sellerPersona, s.lastSeller, s.lastBuyer, &offer.Context{
		Side:      domain.ActorSeller,
		Request:   s.req,
		Vendor:    s.vendor,
		ListPrice: s.list,
		OwnTarget: s.list,
		Opponent:  s.sellerModel,
		Rand:      s.rng,
	})
	if err != nil {
		s.terminate(ctx, domain.OutcomeDropped, ReasonNoZopa)
		return nil
	}
	if res.WalkAway {
		s.terminate(ctx, domain.OutcomeDropped, ReasonWalkAway)
		return nil
	}
	if res.Final {
		s.finalIssued[domain.ActorSeller] = true
	}

	return s.commitTurn(ctx, round, domain.ActorSeller, sel, res)
}

// tryBuyerAccept applies the acceptance test to the seller's latest
// offer: utility clears the plan threshold, TCO fits the budget, no
// hard policy violations, and the price lands inside the acceptance
// band around the buyer's target.
func (s *Session) tryBuyerAccept(ctx context.Context, round int) (bool, error) {
	score, err := s.deps.Scorer.ScoreBuyer(s.req, s.vendor, s.lastSeller)
	if err != nil {
		return false, err
	}
	violations, err := s.deps.Checker.CheckOffer(s.req, s.vendor, s.lastSeller)
	if err != nil {
		return false, err
	}

	withinBand := s.lastSeller.UnitPrice <= s.buyerTarget+acceptBandOfList*s.list
	budgetOK := score.TCO <= s.req.EffectiveBudget(s.lastSeller.TermMonths)
	if score.Utility >= s.plan.MinAcceptableUtility && budgetOK && !domain.HasHard(violations) && withinBand {
		s.accept(ctx, round, domain.ActorBuyer, s.lastSeller)
		return true, nil
	}
	return false, nil
}

// trySellerAccept mirrors the acceptance test: the buyer's offer passes
// the seller's own guardrails, stays policy-eligible, and clears the
// seller's round-decayed reservation price.
func (s *Session) trySellerAccept(ctx context.Context, round int) (bool, error) {
	if !s.haveBuyer {
		return false, nil
	}
	violations, err := s.deps.Checker.CheckOffer(s.req, s.vendor, s.lastBuyer)
	if err != nil {
		return false, err
	}
	if domain.HasHard(violations) {
		return false, nil
	}

	if s.lastBuyer.UnitPrice >= s.sellerReservation(round)-acceptBandOfList*s.list {
		s.accept(ctx, round, domain.ActorSeller, s.lastBuyer)
		return true, nil
	}
	return false, nil
}

// sellerReservation decays from list toward just above the floor as the
// round budget is spent; willingness controls how much of that distance
// the seller will ultimately give.
func (s *Session) sellerReservation(round int) float64 {
	floorPoint := s.vendor.Guardrails.PriceFloor * 1.02
	if floorPoint > s.list {
		return s.list
	}
	progress := float64(round) / float64(s.plan.MaxRounds)
	give := math.Min(1.0, progress*(0.5+s.sellerPersona.ConcessionWillingness))
	return s.list - (s.list-floorPoint)*give
}

// commitTurn validates, narrates, and records a generated counter-offer.
func (s *Session) commitTurn(ctx context.Context, round int, actor domain.Actor, sel domain.Strategy, res offer.Result) error {
	out := res.Offer
	out.Currency = s.currencyFor(actor)

	violations, err := s.deps.Checker.CheckOffer(s.req, s.vendor, out)
	if err != nil {
		return err
	}
	// Enforce mode trips only on the issuing side's own rule set. A buyer
	// anchor crossing the seller's floor is a bargaining position, not a
	// rule breach; it stays recorded as a violation either way.
	if s.cfg.RunMode == domain.RunModeEnforce {
		if code, hard := ownSideHard(actor, violations); hard {
			s.record(ctx, round, actor, out, sel, res.Rationale, res.Clamped, false, violations, domain.DecisionReject)
			s.terminate(ctx, domain.OutcomeRejected, code)
			return nil
		}
	}

	rationale, degraded := s.deps.Emitter.Rationale(ctx, collab.RationalePrompt{
		SessionID: s.id,
		Round:     round,
		Actor:     actor,
		Strategy:  sel.String(),
		Offer:     out,
	}, res.Rationale)

	if actor == domain.ActorBuyer {
		s.lastBuyer = out
		s.haveBuyer = true
	} else {
		s.lastSeller = out
	}
	s.record(ctx, round, actor, out, sel, rationale, res.Clamped, degraded, violations, domain.DecisionCounter)

	if s.stalemate() {
		s.terminate(ctx, domain.OutcomeStalemate, ReasonNoMovement)
	}
	return nil
}

// ownSideHard returns the first hard violation of the issuing actor's
// own rule set: policy for the buyer, guardrails for the seller.
func ownSideHard(actor domain.Actor, violations []domain.Violation) (string, bool) {
	want := domain.SourcePolicy
	if actor == domain.ActorSeller {
		want = domain.SourceGuardrail
	}
	for _, v := range violations {
		if v.Source == want && v.Severity == domain.SeverityHard {
			return v.Code, true
		}
	}
	return "", false
}

// listSpend is the annualized full-list contract spend, the baseline
// savings are expressed against.
func (s *Session) listSpend() float64 {
	return pricing.NormalizeAnnual(s.list, s.vendor.Cadence) * float64(s.req.Quantity)
}

func (s *Session) currencyFor(actor domain.Actor) string {
	if actor == domain.ActorBuyer {
		return s.req.Currency
	}
	return s.vendor.Currency
}

// accept freezes the session on the given offer.
func (s *Session) accept(ctx context.Context, round int, actor domain.Actor, accepted domain.OfferComponents) {
	s.record(ctx, round, actor, accepted, domain.StrategyHoldFirm, "offer accepted", false, false, nil, domain.DecisionAccept)
	final := accepted.Clone()
	s.state.FinalOffer = &final
	s.state.SavingsAchieved = pricing.Savings(s.list, accepted.UnitPrice, s.vendor.Cadence, accepted.Quantity, accepted.TermMonths)
	s.terminate(ctx, domain.OutcomeAccepted, ReasonAgreed)
}

// record appends one RoundMemory and emits round.completed.
func (s *Session) record(ctx context.Context, round int, actor domain.Actor, o domain.OfferComponents, sel domain.Strategy, rationale string, clamped, degraded bool, violations []domain.Violation, decision domain.Decision) {
	utility := 0.0
	if actor == domain.ActorBuyer {
		if score, err := s.deps.Scorer.ScoreBuyer(s.req, s.vendor, o); err == nil {
			utility = score.Utility
		}
	} else {
		utility = scoring.SellerUtility(s.vendor, o, s.list)
	}

	for _, v := range violations {
		if v.Severity == domain.SeverityHard {
			s.deps.Metrics.HardViolation(v.Source)
		}
	}

	mem := domain.RoundMemory{
		Round:             round,
		Actor:             actor,
		Offer:             o.Clone(),
		Strategy:          sel,
		StrategyTag:       sel.String(),
		Utility:           utility,
		Violations:        violations,
		Decision:          decision,
		Clamped:           clamped,
		Rationale:         rationale,
		RationaleDegraded: degraded,
	}
	s.state.Memories = append(s.state.Memories, mem)

	s.deps.Emitter.Emit(ctx, s.event(domain.EventRoundCompleted, round, domain.RoundCompletedPayload{
		Actor:       actor,
		Offer:       o,
		StrategyTag: sel.String(),
		Utility:     utility,
		Violations:  violations,
	}))
}

// stalemate scans the trailing window of post-anchor turns for economic
// movement.
func (s *Session) stalemate() bool {
	var window []domain.RoundMemory
	for _, m := range s.state.Memories {
		if m.Round >= stalemateMinRound {
			window = append(window, m)
		}
	}
	if len(window) < stalemateWindow {
		return false
	}
	window = window[len(window)-stalemateWindow:]

	for _, m := range window {
		prev, ok := s.previousOfferBy(m.Actor, m.Round)
		if !ok {
			return false
		}
		if math.Abs(m.Offer.UnitPrice-prev.UnitPrice) >= stalemateThreshold {
			return false
		}
		if m.Offer.TermMonths != prev.TermMonths || m.Offer.Payment != prev.Payment {
			return false
		}
	}
	return true
}

// previousOfferBy finds the actor's offer immediately before the given
// round.
func (s *Session) previousOfferBy(actor domain.Actor, beforeRound int) (domain.OfferComponents, bool) {
	for i := len(s.state.Memories) - 1; i >= 0; i-- {
		m := s.state.Memories[i]
		if m.Actor == actor && m.Round < beforeRound {
			return m.Offer, true
		}
	}
	return domain.OfferComponents{}, false
}

// terminate freezes the session exactly once and emits the terminal
// event.
func (s *Session) terminate(ctx context.Context, outcome domain.Outcome, reason string) {
	if s.state.Outcome.Terminal() {
		return
	}
	s.state.Outcome = outcome
	s.state.OutcomeReason = reason
	s.state.TerminatedAt = s.deps.Clock()

	s.deps.Log.Info().
		Str("outcome", string(outcome)).
		Str("reason", reason).
		Int("rounds", s.state.Round).
		Float64("savings", s.state.SavingsAchieved).
		Msg("session terminated")

	s.deps.Emitter.Emit(ctx, s.event(domain.EventSessionTerminated, s.state.Round, domain.SessionTerminatedPayload{
		Outcome:         outcome,
		OutcomeReason:   reason,
		FinalOffer:      s.state.FinalOffer,
		SavingsAchieved: s.state.SavingsAchieved,
		Rounds:          s.state.Round,
	}))
}

// scheduleHint maps the round onto the plan's concession schedule: one
// entry per exchange, sticking on the last entry once exhausted.
func (s *Session) scheduleHint(round int) string {
	idx := (round - 1) / 2
	if idx < 0 {
		idx = 0
	}
	if idx >= len(s.plan.ConcessionSchedule) {
		idx = len(s.plan.ConcessionSchedule) - 1
	}
	return s.plan.ConcessionSchedule[idx]
}

func (s *Session) event(t domain.EventType, round int, payload interface{}) domain.Event {
	return domain.Event{
		Type:      t,
		SessionID: s.id,
		RequestID: s.req.ID,
		VendorID:  s.vendor.ID,
		Round:     round,
		Timestamp: s.deps.Clock(),
		Payload:   payload,
	}
}

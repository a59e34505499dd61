package strategy

import (
	"math"

	"github.com/procurehub/dealengine/internal/domain"
	"github.com/procurehub/dealengine/internal/opponent"
)

// Inputs is everything the selector looks at for one turn.
type Inputs struct {
	Round       int
	TotalRounds int

	// PriceGap is (counter_price - own_target) / own_target. The table
	// branches on its magnitude.
	PriceGap float64

	Personality domain.Personality
	Context     VendorContext
	Opponent    *opponent.Model

	// ScheduleHint is the plan's current concession-schedule entry,
	// consulted only where the table leaves the move open.
	ScheduleHint string
}

// Phase of the negotiation relative to the round budget.
type Phase int

const (
	PhaseEarly Phase = iota
	PhaseMid
	PhaseLate
)

// PhaseOf classifies a round: the first two rounds are early, the last
// two of the budget are late, everything between is mid.
func PhaseOf(round, totalRounds int) Phase {
	if round <= 2 {
		return PhaseEarly
	}
	if round >= totalRounds-1 {
		return PhaseLate
	}
	return PhaseMid
}

// Select picks the next move. Deterministic: equal applicability breaks
// toward the lower strategy ordinal, which is the order the branches
// are written in.
func Select(in Inputs) domain.Strategy {
	gap := math.Abs(in.PriceGap)
	p := in.Personality

	switch PhaseOf(in.Round, in.TotalRounds) {
	case PhaseEarly:
		switch {
		case p.ValueEmphasis > 0.7:
			return domain.StrategyValueJustification
		case p.CompetitiveResponse > 0.7:
			return domain.StrategyCompetitiveMatch
		default:
			return domain.StrategyAnchorHigh
		}

	case PhaseMid:
		switch {
		case in.Context.CompetitivePressure > 0.7 && p.ConcessionWillingness > 0.6:
			return domain.StrategyVolumeIncentive
		case gap > 0.20 && p.RelationshipFocus > 0.7:
			return domain.StrategyRelationshipInvestment
		case gap > 0.20 && p.ValueEmphasis > 0.6:
			return domain.StrategyValueJustification
		case gap > 0.20:
			return domain.StrategyGradualConcession
		case in.ScheduleHint == "term_trade" && termLengthened(in.Opponent):
			return domain.StrategyTermPremium
		case p.ConcessionWillingness > 0.6:
			return domain.StrategySplitDifference
		default:
			return domain.StrategyConditionalDiscount
		}

	default: // PhaseLate
		switch {
		case gap < 0.10 && in.Context.DealImportance > 0.7:
			return domain.StrategySplitDifference
		case gap < 0.10:
			return domain.StrategyFinalOffer
		case gap > 0.30 && p.Patience < 0.3:
			return domain.StrategyWalkAway
		case gap > 0.30:
			return domain.StrategyHoldFirm
		case p.ConcessionWillingness > 0.5:
			return domain.StrategyFinalOffer
		default:
			return domain.StrategyHoldFirm
		}
	}
}

// termLengthened reports whether the counterparty stretched its term in
// its latest counter relative to the prior one.
func termLengthened(m *opponent.Model) bool {
	if m == nil {
		return false
	}
	hist := m.History()
	if len(hist) < 2 {
		return false
	}
	return hist[len(hist)-1].TermMonths > hist[len(hist)-2].TermMonths
}

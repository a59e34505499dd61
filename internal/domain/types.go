package domain

// Actor identifies which side of the table produced an offer or decision.
type Actor string

const (
	ActorBuyer  Actor = "BUYER"
	ActorSeller Actor = "SELLER"
)

// Opposite returns the counterparty side.
func (a Actor) Opposite() Actor {
	if a == ActorBuyer {
		return ActorSeller
	}
	return ActorBuyer
}

// PaymentTerms enumerates the supported payment schedules.
type PaymentTerms string

const (
	PaymentNet15      PaymentTerms = "NET_15"
	PaymentNet30      PaymentTerms = "NET_30"
	PaymentNet45      PaymentTerms = "NET_45"
	PaymentMilestones PaymentTerms = "MILESTONES"
	PaymentDeposit    PaymentTerms = "DEPOSIT"
)

// Valid reports whether p is a known payment term.
func (p PaymentTerms) Valid() bool {
	switch p {
	case PaymentNet15, PaymentNet30, PaymentNet45, PaymentMilestones, PaymentDeposit:
		return true
	}
	return false
}

// SpeedRank orders payment terms by how quickly the seller is paid.
// Lower rank means faster payment.
func (p PaymentTerms) SpeedRank() int {
	switch p {
	case PaymentNet15:
		return 0
	case PaymentDeposit:
		return 1
	case PaymentMilestones:
		return 2
	case PaymentNet30:
		return 3
	case PaymentNet45:
		return 4
	default:
		return 5
	}
}

// BillingCadence describes how a quoted amount recurs.
type BillingCadence string

const (
	CadencePerSeatPerYear  BillingCadence = "per_seat_per_year"
	CadencePerSeatPerMonth BillingCadence = "per_seat_per_month"
	CadencePerUnitPerYear  BillingCadence = "per_unit_per_year"
	CadencePerUnitPerMonth BillingCadence = "per_unit_per_month"
)

// AnnualFactor is how many billing periods of the cadence make up one
// year. Unknown cadences are treated as annual.
func (c BillingCadence) AnnualFactor() float64 {
	switch c {
	case CadencePerSeatPerMonth, CadencePerUnitPerMonth:
		return 12.0
	default:
		return 1.0
	}
}

// RiskLevel is the coarse vendor risk classification.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Normalized maps a risk level onto [0,1]. Unknown levels are treated
// as HIGH so scoring stays conservative.
func (r RiskLevel) Normalized() float64 {
	switch r {
	case RiskLow:
		return 0.1
	case RiskMedium:
		return 0.4
	case RiskHigh:
		return 0.8
	default:
		return 0.8
	}
}

// Outcome is the terminal (or in-flight) disposition of a session.
type Outcome string

const (
	OutcomeInProgress Outcome = "in_progress"
	OutcomeAccepted   Outcome = "accepted"
	OutcomeRejected   Outcome = "rejected"
	OutcomeDropped    Outcome = "dropped"
	OutcomeStalemate  Outcome = "stalemate"
	OutcomeMaxRounds  Outcome = "max_rounds"
)

// Terminal reports whether the outcome closes the session.
func (o Outcome) Terminal() bool {
	return o != OutcomeInProgress && o != ""
}

// Strategy is a closed set of bargaining moves. The declaration order is
// the tie-break ordinal: when two strategies are equally applicable the
// lower ordinal wins.
type Strategy int

const (
	StrategyAnchorHigh Strategy = iota
	StrategyValueJustification
	StrategyCompetitiveMatch
	StrategyVolumeIncentive
	StrategyTermPremium
	StrategyRelationshipInvestment
	StrategyGradualConcession
	StrategySplitDifference
	StrategyFinalOffer
	StrategyHoldFirm
	StrategyConditionalDiscount
	StrategyWalkAway
)

var strategyNames = map[Strategy]string{
	StrategyAnchorHigh:             "ANCHOR_HIGH",
	StrategyValueJustification:     "VALUE_JUSTIFICATION",
	StrategyCompetitiveMatch:       "COMPETITIVE_MATCH",
	StrategyVolumeIncentive:        "VOLUME_INCENTIVE",
	StrategyTermPremium:            "TERM_PREMIUM",
	StrategyRelationshipInvestment: "RELATIONSHIP_INVESTMENT",
	StrategyGradualConcession:      "GRADUAL_CONCESSION",
	StrategySplitDifference:        "SPLIT_DIFFERENCE",
	StrategyFinalOffer:             "FINAL_OFFER",
	StrategyHoldFirm:               "HOLD_FIRM",
	StrategyConditionalDiscount:    "CONDITIONAL_DISCOUNT",
	StrategyWalkAway:               "WALK_AWAY",
}

func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// RunMode controls how violations affect a live session.
type RunMode string

const (
	// RunModeSimulation records violations and lets the session continue.
	RunModeSimulation RunMode = "simulation"
	// RunModeEnforce terminates the session on the first HARD violation.
	RunModeEnforce RunMode = "enforce"
)

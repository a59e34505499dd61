package domain

import "time"

// Severity classifies a violation's effect on acceptance.
type Severity string

const (
	// SeverityHard blocks acceptance of the offer.
	SeverityHard Severity = "HARD"
	// SeveritySoft is recorded as a warning only.
	SeveritySoft Severity = "SOFT"
)

// ViolationSource distinguishes buyer-side policy from vendor-side guardrails.
type ViolationSource string

const (
	SourcePolicy    ViolationSource = "policy"
	SourceGuardrail ViolationSource = "guardrail"
)

// Violation is one structured rule breach attached to an offer.
type Violation struct {
	Code      string          `json:"code"`
	Source    ViolationSource `json:"source"`
	Severity  Severity        `json:"severity"`
	Detail    string          `json:"detail"`
	Value     float64         `json:"value,omitempty"`
	Threshold float64         `json:"threshold,omitempty"`
}

// HasHard reports whether any violation in the set blocks acceptance.
func HasHard(violations []Violation) bool {
	for _, v := range violations {
		if v.Severity == SeverityHard {
			return true
		}
	}
	return false
}

// Decision is the per-turn hint recorded alongside an offer.
type Decision string

const (
	DecisionCounter Decision = "counter"
	DecisionAccept  Decision = "accept"
	DecisionReject  Decision = "reject"
	DecisionDrop    Decision = "drop"
)

// RoundMemory is the immutable record appended after every turn.
type RoundMemory struct {
	Round             int             `json:"round"`
	Actor             Actor           `json:"actor"`
	Offer             OfferComponents `json:"offer"`
	Strategy          Strategy        `json:"strategy"`
	StrategyTag       string          `json:"strategy_tag"`
	Utility           float64         `json:"utility"`
	Violations        []Violation     `json:"violations,omitempty"`
	Decision          Decision        `json:"decision"`
	Clamped           bool            `json:"clamped,omitempty"`
	Rationale         string          `json:"rationale,omitempty"`
	RationaleDegraded bool            `json:"rationale_degraded,omitempty"`
}

// SessionState is one buyer<->vendor negotiation. Mutated only by the
// round state machine during its own turn and frozen once the outcome
// is terminal.
type SessionState struct {
	ID               string           `json:"id"`
	RequestID        string           `json:"request_id"`
	VendorID         string           `json:"vendor_id"`
	Round            int              `json:"round"`
	Memories         []RoundMemory    `json:"memories"`
	Outcome          Outcome          `json:"outcome"`
	OutcomeReason    string           `json:"outcome_reason,omitempty"`
	FinalOffer       *OfferComponents `json:"final_offer,omitempty"`
	SavingsAchieved  float64          `json:"savings_achieved"`
	StartedAt        time.Time        `json:"started_at"`
	TerminatedAt     time.Time        `json:"terminated_at,omitempty"`
}

// LastOfferBy returns the most recent offer made by the given actor.
func (s *SessionState) LastOfferBy(actor Actor) (OfferComponents, bool) {
	for i := len(s.Memories) - 1; i >= 0; i-- {
		if s.Memories[i].Actor == actor {
			return s.Memories[i].Offer, true
		}
	}
	return OfferComponents{}, false
}

// Personality is the eight-dimension trait vector driving strategy
// selection. All values live in [0,1]. Immutable: context adjustment
// returns a new value.
type Personality struct {
	ConcessionWillingness float64 `yaml:"concession_willingness" json:"concession_willingness"`
	FloorFlexibility      float64 `yaml:"floor_flexibility" json:"floor_flexibility"`
	PressureSensitivity   float64 `yaml:"pressure_sensitivity" json:"pressure_sensitivity"`
	RelationshipFocus     float64 `yaml:"relationship_focus" json:"relationship_focus"`
	CompetitiveResponse   float64 `yaml:"competitive_response" json:"competitive_response"`
	RiskTolerance         float64 `yaml:"risk_tolerance" json:"risk_tolerance"`
	Patience              float64 `yaml:"patience" json:"patience"`
	ValueEmphasis         float64 `yaml:"value_emphasis" json:"value_emphasis"`
}

// NegotiationPlan holds the parameters chosen once per request.
type NegotiationPlan struct {
	MaxRounds            int         `yaml:"max_rounds" json:"max_rounds"`
	MinAcceptableUtility float64     `yaml:"min_acceptable_utility" json:"min_acceptable_utility"`
	ConcessionSchedule   []string    `yaml:"concession_schedule" json:"concession_schedule"`
	Personality          Personality `yaml:"personality" json:"personality"`
	PersonalityPreset    string      `yaml:"personality_preset" json:"personality_preset"`
	Seed                 int64       `yaml:"random_seed" json:"random_seed"`
}

// DefaultConcessionSchedule is the ordered concession sequence applied
// when a plan does not specify one.
var DefaultConcessionSchedule = []string{
	"price_anchor", "term_trade", "payment_trade", "value_add", "final_offer",
}

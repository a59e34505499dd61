package domain

import "time"

// EventType names the session lifecycle events the engine emits.
type EventType string

const (
	EventSessionStarted    EventType = "session.started"
	EventRoundCompleted    EventType = "round.completed"
	EventSessionTerminated EventType = "session.terminated"
	EventShortlistProduced EventType = "shortlist.produced"
)

// Event is the envelope every emission carries. Payload holds the
// type-specific body.
type Event struct {
	Type      EventType   `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	RequestID string      `json:"request_id"`
	VendorID  string      `json:"vendor_id,omitempty"`
	Round     int         `json:"round_number,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// SessionStartedPayload summarizes the plan at session start.
type SessionStartedPayload struct {
	MaxRounds            int     `json:"max_rounds"`
	MinAcceptableUtility float64 `json:"min_acceptable_utility"`
	PersonalityPreset    string  `json:"personality_preset"`
	ListPrice            float64 `json:"list_price"`
}

// RoundCompletedPayload carries the turn that just finished.
type RoundCompletedPayload struct {
	Actor       Actor           `json:"actor"`
	Offer       OfferComponents `json:"offer"`
	StrategyTag string          `json:"strategy_tag"`
	Utility     float64         `json:"utility"`
	Violations  []Violation     `json:"violations,omitempty"`
}

// SessionTerminatedPayload carries the terminal disposition.
type SessionTerminatedPayload struct {
	Outcome         Outcome          `json:"outcome"`
	OutcomeReason   string           `json:"outcome_reason,omitempty"`
	FinalOffer      *OfferComponents `json:"final_offer,omitempty"`
	SavingsAchieved float64          `json:"savings_achieved"`
	Rounds          int              `json:"rounds"`
}

// ShortlistProducedPayload carries the ranked result set for a request.
type ShortlistProducedPayload struct {
	SessionIDs []string `json:"session_ids"`
	Accepted   int      `json:"accepted"`
}

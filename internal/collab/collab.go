// Package collab wraps the external collaborators the engine talks to:
// the event bus and the language-model client that writes human-readable
// justifications. Both are unreliable by assumption; everything here is
// retried, breaker-guarded, and falls back deterministically.
package collab

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/procurehub/dealengine/internal/domain"
)

// EventBus is the outbound event collaborator. Implementations must be
// reentrant-safe: sessions publish concurrently.
type EventBus interface {
	Publish(ctx context.Context, event domain.Event) error
}

// RationalePrompt is the input handed to the language-model client.
type RationalePrompt struct {
	SessionID string
	Round     int
	Actor     domain.Actor
	Strategy  string
	Offer     domain.OfferComponents
}

// RationaleClient synthesizes justification text for a move. In-flight
// calls must honor context cancellation.
type RationaleClient interface {
	Rationale(ctx context.Context, prompt RationalePrompt) (string, error)
}

const (
	maxAttempts    = 3
	initialBackoff = 50 * time.Millisecond

	// One rationale call per move is plenty; burst covers parallel sessions.
	rationaleRPS   = 10
	rationaleBurst = 20
)

// Emitter is the resilient front for both collaborators.
type Emitter struct {
	bus     EventBus
	llm     RationaleClient
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewEmitter wires the collaborators. Either may be nil: a nil bus
// drops events, a nil client always uses the deterministic fallback.
func NewEmitter(bus EventBus, llm RationaleClient, logger zerolog.Logger) *Emitter {
	return &Emitter{
		bus: bus,
		llm: llm,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "rationale-llm",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		limiter: rate.NewLimiter(rate.Limit(rationaleRPS), rationaleBurst),
		log:     logger,
	}
}

// Emit publishes an event, retrying up to three times with exponential
// backoff. Fire-and-forget: the final failure is logged, never surfaced
// to the negotiation path.
func (e *Emitter) Emit(ctx context.Context, event domain.Event) {
	if e.bus == nil {
		return
	}

	var err error
	backoff := initialBackoff
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = e.bus.Publish(ctx, event); err == nil {
			return
		}
		if attempt == maxAttempts {
			break
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		backoff *= 2
	}

	e.log.Warn().
		Err(fmt.Errorf("%w: %v", domain.ErrCollaborator, err)).
		Str("event", string(event.Type)).
		Str("session_id", event.SessionID).
		Msg("event emission failed after retries")
}

// Rationale asks the language model for justification text, falling
// back to the deterministic text when the model is unavailable. The
// second return reports degradation.
func (e *Emitter) Rationale(ctx context.Context, prompt RationalePrompt, fallback string) (string, bool) {
	if e.llm == nil {
		return fallback, false
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return fallback, true
	}

	var text string
	var err error
	backoff := initialBackoff
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		var out interface{}
		out, err = e.breaker.Execute(func() (interface{}, error) {
			return e.llm.Rationale(ctx, prompt)
		})
		if err == nil {
			text = out.(string)
			return text, false
		}
		if ctx.Err() != nil || attempt == maxAttempts {
			break
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return fallback, true
		}
		backoff *= 2
	}

	e.log.Debug().
		Err(err).
		Str("session_id", prompt.SessionID).
		Int("round", prompt.Round).
		Msg("rationale generation degraded to deterministic fallback")
	return fallback, true
}

// NopBus discards every event. Useful for pure scoring paths and tests.
type NopBus struct{}

func (NopBus) Publish(context.Context, domain.Event) error { return nil }

// LogBus writes events to the structured log, the default when no real
// bus is configured.
type LogBus struct {
	Log zerolog.Logger
}

func (b LogBus) Publish(_ context.Context, event domain.Event) error {
	b.Log.Info().
		Str("event", string(event.Type)).
		Str("session_id", event.SessionID).
		Str("request_id", event.RequestID).
		Str("vendor_id", event.VendorID).
		Int("round", event.Round).
		Msg("negotiation event")
	return nil
}

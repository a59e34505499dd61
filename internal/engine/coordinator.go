package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/procurehub/dealengine/internal/domain"
	"github.com/procurehub/dealengine/internal/strategy"
)

// DefaultMaxConcurrent caps how many vendor sessions negotiate at once.
const DefaultMaxConcurrent = 8

// SessionStore persists terminal session states. Implementations must
// be idempotent on session ID; the coordinator saves each exactly once.
type SessionStore interface {
	SaveSession(ctx context.Context, state domain.SessionState) error
}

// CoordinatorConfig shapes a negotiation run across vendors.
type CoordinatorConfig struct {
	MaxConcurrent int
	Session       SessionConfig
}

// Coordinator fans one request out to parallel per-vendor sessions and
// folds the terminal states into a ranked shortlist.
type Coordinator struct {
	cfg   CoordinatorConfig
	deps  Deps
	store SessionStore
}

// NewCoordinator wires a coordinator. A nil store skips persistence.
func NewCoordinator(cfg CoordinatorConfig, deps Deps, store SessionStore) *Coordinator {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Coordinator{cfg: cfg, deps: deps, store: store}
}

// RankedSession is one vendor's terminal state with its ranking keys.
type RankedSession struct {
	State       domain.SessionState `json:"state"`
	Utility     float64             `json:"utility"`
	TCO         float64             `json:"tco"`
	Reliability float64             `json:"reliability"`
}

// Result is the ranked outcome of one request across all vendors.
type Result struct {
	RequestID string          `json:"request_id"`
	Sessions  []RankedSession `json:"sessions"`
	Accepted  int             `json:"accepted"`
}

// DefaultVendorContext is the neutral selling-side situation assumed
// when the catalog carries no context for a vendor.
func DefaultVendorContext() strategy.VendorContext {
	return strategy.VendorContext{
		CapacityUtilization: 0.7,
		QuarterPosition:     0.5,
		YearPosition:        0.5,
		PipelineStrength:    0.7,
		CompetitivePressure: 0.5,
		DealImportance:      0.5,
	}
}

// Negotiate runs one session per vendor, at most MaxConcurrent in
// flight, and returns the shortlist ranked by buyer utility, then TCO,
// then vendor reliability. A failed session is logged and excluded from
// the ranking; it never takes the other sessions down with it.
func (c *Coordinator) Negotiate(ctx context.Context, req *domain.Request, vendors []*domain.VendorProfile, plan domain.NegotiationPlan, contexts map[string]strategy.VendorContext) (Result, error) {
	if err := c.deps.Checker.PrecheckRequest(req); err != nil {
		return Result{}, err
	}
	if len(vendors) == 0 {
		return Result{}, fmt.Errorf("%w: no vendors to negotiate with", domain.ErrConfig)
	}

	type slot struct {
		state domain.SessionState
		err   error
	}
	slots := make([]slot, len(vendors))

	sem := semaphore.NewWeighted(int64(c.cfg.MaxConcurrent))
	g, runCtx := errgroup.WithContext(ctx)
	var mu sync.Mutex

	for i, vendor := range vendors {
		i, vendor := i, vendor
		g.Go(func() error {
			if err := sem.Acquire(runCtx, 1); err != nil {
				mu.Lock()
				slots[i].err = err
				mu.Unlock()
				return nil
			}
			defer sem.Release(1)

			vctx, ok := contexts[vendor.ID]
			if !ok {
				vctx = DefaultVendorContext()
			}
			sess := NewSession(req, vendor, plan, vctx, c.cfg.Session, c.deps)
			state, err := sess.Run(runCtx)

			mu.Lock()
			slots[i] = slot{state: state, err: err}
			mu.Unlock()
			return nil
		})
	}
	// Goroutines never return errors; Wait only joins them.
	_ = g.Wait()

	result := Result{RequestID: req.ID}
	for i, s := range slots {
		if s.err != nil {
			c.deps.Log.Warn().
				Err(s.err).
				Str("vendor_id", vendors[i].ID).
				Msg("session failed, excluded from shortlist")
			continue
		}
		c.persist(ctx, s.state)
		result.Sessions = append(result.Sessions, c.ranked(req, vendors[i], s.state))
		if s.state.Outcome == domain.OutcomeAccepted {
			result.Accepted++
		}
	}

	c.rank(result.Sessions)

	ids := make([]string, 0, len(result.Sessions))
	for _, s := range result.Sessions {
		ids = append(ids, s.State.ID)
	}
	c.deps.Emitter.Emit(ctx, domain.Event{
		Type:      domain.EventShortlistProduced,
		RequestID: req.ID,
		Timestamp: c.deps.Clock(),
		Payload:   domain.ShortlistProducedPayload{SessionIDs: ids, Accepted: result.Accepted},
	})
	return result, nil
}

// ranked computes the ranking keys for one terminal state. Sessions
// without an accepted final offer carry zero utility and rank last.
func (c *Coordinator) ranked(req *domain.Request, vendor *domain.VendorProfile, state domain.SessionState) RankedSession {
	rs := RankedSession{State: state, Reliability: vendor.Reliability.Composite()}
	if state.Outcome == domain.OutcomeAccepted && state.FinalOffer != nil {
		if score, err := c.deps.Scorer.ScoreBuyer(req, vendor, *state.FinalOffer); err == nil {
			rs.Utility = score.Utility
			rs.TCO = score.TCO
		}
	}
	return rs
}

// rank orders accepted sessions first by utility descending, then TCO
// ascending, then reliability descending, with vendor ID as the stable
// last resort.
func (c *Coordinator) rank(sessions []RankedSession) {
	sort.SliceStable(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		aAcc := a.State.Outcome == domain.OutcomeAccepted
		bAcc := b.State.Outcome == domain.OutcomeAccepted
		if aAcc != bAcc {
			return aAcc
		}
		if a.Utility != b.Utility {
			return a.Utility > b.Utility
		}
		if a.TCO != b.TCO {
			return a.TCO < b.TCO
		}
		if a.Reliability != b.Reliability {
			return a.Reliability > b.Reliability
		}
		return a.State.VendorID < b.State.VendorID
	})
}

func (c *Coordinator) persist(ctx context.Context, state domain.SessionState) {
	if c.store == nil {
		return
	}
	if err := c.store.SaveSession(ctx, state); err != nil {
		c.deps.Log.Error().
			Err(err).
			Str("session_id", state.ID).
			Msg("failed to persist terminal session state")
	}
}

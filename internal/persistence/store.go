// Package persistence stores terminal negotiation sessions in Postgres.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/procurehub/dealengine/internal/domain"
)

// ErrNotFound is returned when a session ID has no stored state.
var ErrNotFound = errors.New("session not found")

// Schema creates the session table. Applied idempotently at startup.
const Schema = `
CREATE TABLE IF NOT EXISTS negotiation_sessions (
    id             TEXT PRIMARY KEY,
    request_id     TEXT NOT NULL,
    vendor_id      TEXT NOT NULL,
    rounds         INT NOT NULL,
    outcome        TEXT NOT NULL,
    outcome_reason TEXT NOT NULL DEFAULT '',
    savings        DOUBLE PRECISION NOT NULL DEFAULT 0,
    final_offer    JSONB,
    memories       JSONB NOT NULL,
    started_at     TIMESTAMPTZ NOT NULL,
    terminated_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS negotiation_sessions_request_idx ON negotiation_sessions (request_id);
`

// sessionRow is the flat table shape of a SessionState.
type sessionRow struct {
	ID            string          `db:"id"`
	RequestID     string          `db:"request_id"`
	VendorID      string          `db:"vendor_id"`
	Rounds        int             `db:"rounds"`
	Outcome       string          `db:"outcome"`
	OutcomeReason string          `db:"outcome_reason"`
	Savings       float64         `db:"savings"`
	FinalOffer    []byte          `db:"final_offer"`
	Memories      json.RawMessage `db:"memories"`
	StartedAt     time.Time       `db:"started_at"`
	TerminatedAt  time.Time       `db:"terminated_at"`
}

func toRow(state domain.SessionState) (sessionRow, error) {
	memories, err := json.Marshal(state.Memories)
	if err != nil {
		return sessionRow{}, fmt.Errorf("marshal memories: %w", err)
	}
	row := sessionRow{
		ID:            state.ID,
		RequestID:     state.RequestID,
		VendorID:      state.VendorID,
		Rounds:        state.Round,
		Outcome:       string(state.Outcome),
		OutcomeReason: state.OutcomeReason,
		Savings:       state.SavingsAchieved,
		Memories:      memories,
		StartedAt:     state.StartedAt,
		TerminatedAt:  state.TerminatedAt,
	}
	if state.FinalOffer != nil {
		if row.FinalOffer, err = json.Marshal(state.FinalOffer); err != nil {
			return sessionRow{}, fmt.Errorf("marshal final offer: %w", err)
		}
	}
	return row, nil
}

func (r sessionRow) toState() (domain.SessionState, error) {
	state := domain.SessionState{
		ID:              r.ID,
		RequestID:       r.RequestID,
		VendorID:        r.VendorID,
		Round:           r.Rounds,
		Outcome:         domain.Outcome(r.Outcome),
		OutcomeReason:   r.OutcomeReason,
		SavingsAchieved: r.Savings,
		StartedAt:       r.StartedAt,
		TerminatedAt:    r.TerminatedAt,
	}
	if len(r.Memories) > 0 {
		if err := json.Unmarshal(r.Memories, &state.Memories); err != nil {
			return domain.SessionState{}, fmt.Errorf("unmarshal memories: %w", err)
		}
	}
	if len(r.FinalOffer) > 0 {
		var offer domain.OfferComponents
		if err := json.Unmarshal(r.FinalOffer, &offer); err != nil {
			return domain.SessionState{}, fmt.Errorf("unmarshal final offer: %w", err)
		}
		state.FinalOffer = &offer
	}
	return state, nil
}

// PostgresStore persists sessions in Postgres via sqlx.
type PostgresStore struct {
	db  *sqlx.DB
	log zerolog.Logger
}

// Open connects, pings, and applies the schema.
func Open(ctx context.Context, dsn string, logger zerolog.Logger) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &PostgresStore{db: db, log: logger}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error { return s.db.Close() }

const insertSession = `
INSERT INTO negotiation_sessions
    (id, request_id, vendor_id, rounds, outcome, outcome_reason, savings, final_offer, memories, started_at, terminated_at)
VALUES
    (:id, :request_id, :vendor_id, :rounds, :outcome, :outcome_reason, :savings, :final_offer, :memories, :started_at, :terminated_at)
ON CONFLICT (id) DO NOTHING`

// SaveSession writes one terminal state. Replays of the same session ID
// are ignored, which keeps coordinator retries exactly-once.
func (s *PostgresStore) SaveSession(ctx context.Context, state domain.SessionState) error {
	row, err := toRow(state)
	if err != nil {
		return err
	}
	if _, err := s.db.NamedExecContext(ctx, insertSession, row); err != nil {
		return fmt.Errorf("insert session %s: %w", state.ID, err)
	}
	return nil
}

// GetSession loads one stored session by ID.
func (s *PostgresStore) GetSession(ctx context.Context, id string) (domain.SessionState, error) {
	var row sessionRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM negotiation_sessions WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SessionState{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return domain.SessionState{}, fmt.Errorf("get session %s: %w", id, err)
	}
	return row.toState()
}

// ListByRequest loads every stored session for a request, newest first.
func (s *PostgresStore) ListByRequest(ctx context.Context, requestID string) ([]domain.SessionState, error) {
	var rows []sessionRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM negotiation_sessions WHERE request_id = $1 ORDER BY terminated_at DESC`, requestID)
	if err != nil {
		return nil, fmt.Errorf("list sessions for %s: %w", requestID, err)
	}
	out := make([]domain.SessionState, 0, len(rows))
	for _, r := range rows {
		state, err := r.toState()
		if err != nil {
			return nil, err
		}
		out = append(out, state)
	}
	return out, nil
}

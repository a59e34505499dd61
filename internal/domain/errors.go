package domain

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Callers classify failures with errors.Is.
var (
	ErrConfig             = errors.New("config error")
	ErrPolicyViolation    = errors.New("policy violation")
	ErrGuardrailViolation = errors.New("guardrail violation")
	ErrStrategyInfeasible = errors.New("strategy infeasible")
	ErrTimeout            = errors.New("round timeout")
	ErrCancelled          = errors.New("session cancelled")
	ErrCollaborator       = errors.New("collaborator failure")
)

// SessionError decorates an error with the session and round it came
// from, so every surfaced failure is attributable.
type SessionError struct {
	SessionID string
	Round     int
	Err       error
}

func (e *SessionError) Error() string {
	if e.Round > 0 {
		return fmt.Sprintf("session %s round %d: %v", e.SessionID, e.Round, e.Err)
	}
	return fmt.Sprintf("session %s: %v", e.SessionID, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// WrapSession attaches session context to err. Nil in, nil out.
func WrapSession(sessionID string, round int, err error) error {
	if err == nil {
		return nil
	}
	return &SessionError{SessionID: sessionID, Round: round, Err: err}
}

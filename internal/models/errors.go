package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrPositionNotFound means the position data provider has no holding for
	// the ticker. Challenges fail rather than guess.
	ErrPositionNotFound = errors.New("position not found")

	// ErrNoThesis means no consensus was ever recorded for the ticker.
	ErrNoThesis = errors.New("no recorded thesis for ticker")
)

// RateLimitError is returned when the daily call budget is exhausted. It is
// never retried automatically; callers wait for ResetsAt.
type RateLimitError struct {
	Remaining int
	ResetsAt  time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("daily call budget exhausted (remaining %d, resets %s)",
		e.Remaining, e.ResetsAt.Format(time.RFC3339))
}

// InsufficientConsensusError is returned when fewer than Required backends
// answered. The partial result is never cached or upgraded.
type InsufficientConsensusError struct {
	Symbol    string
	Succeeded int
	Required  int
}

func (e *InsufficientConsensusError) Error() string {
	return fmt.Sprintf("insufficient consensus for %s: %d of required %d backends responded",
		e.Symbol, e.Succeeded, e.Required)
}

// AgentCallError wraps a single backend failure (timeout or call error). It is
// absorbed by the orchestrator as long as the minimum-response rule holds.
type AgentCallError struct {
	AgentID string
	Err     error
}

func (e *AgentCallError) Error() string {
	return fmt.Sprintf("agent %s call failed: %v", e.AgentID, e.Err)
}

func (e *AgentCallError) Unwrap() error { return e.Err }

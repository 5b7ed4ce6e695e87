package store

import (
	"context"
	"time"
)

// =============================================================================
// Run Record
// =============================================================================

// Outcome is the terminal result of a deployment run.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// Run is one recorded deployment run.
type Run struct {
	ID            string
	Service       string
	ResourceGroup string
	Profile       string
	Outcome       Outcome
	Detail        string // failure detail, empty on success
	StartedAt     time.Time
	FinishedAt    time.Time
}

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for deployment run history.
type Store interface {
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	Close() error
}

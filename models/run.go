package models

import (
	"time"

	"github.com/google/uuid"
)

// Run is the bookkeeping record of one pipeline run for a constraint
type Run struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	ConstraintName string     `json:"constraint_name" db:"constraint_name"`
	Passes         int        `json:"passes" db:"passes"`
	StartedAt      time.Time  `json:"started_at" db:"started_at"`
	FinishedAt     *time.Time `json:"finished_at" db:"finished_at"`
	NewCount       int        `json:"new" db:"new"`
	DuplicateCount int        `json:"duplicate" db:"duplicate"`
	IgnoredCount   int        `json:"ignored" db:"ignored"`
}

// NewRun starts a run record
func NewRun(constraintName string, passes int) *Run {
	return &Run{
		ID:             uuid.New(),
		ConstraintName: constraintName,
		Passes:         passes,
		StartedAt:      time.Now(),
	}
}

// Finish stamps the counts of a result onto the run
func (r *Run) Finish(res Result) {
	now := time.Now()
	r.FinishedAt = &now
	r.NewCount = len(res.New)
	r.DuplicateCount = len(res.Duplicate)
	r.IgnoredCount = len(res.Ignored)
}

package coordinator

import (
	"time"
)

// Metrics captures one coordination run. Created when coordination starts,
// finalized once when it ends, read-only afterwards.
type Metrics struct {
	CoordinationID  string
	TaskID          string
	StepCount       int
	FailedSteps     int
	SkippedSteps    int
	StepDurations   map[string]time.Duration
	DecomposeTime   time.Duration
	TotalDuration   time.Duration
	Success         bool
	Err             error
	StartedAt       time.Time
	FinishedAt      time.Time
}

// stepOutcome is the recorded result of one step.
type stepOutcome struct {
	stepID   string
	output   string
	err      error
	skipped  bool
	missing  string // unmet dependency ID when skipped
	duration time.Duration
}

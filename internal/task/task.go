// Package task defines the submission-level types shared across the runtime.
package task

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Priority classifies how urgently a task should be dispatched.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

// Weight returns the numeric base weight used by the scheduler's
// effective-priority function.
func (p Priority) Weight() int {
	switch p {
	case PriorityCritical:
		return 1000
	case PriorityHigh:
		return 500
	case PriorityMedium:
		return 100
	default:
		return 10
	}
}

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	default:
		return "low"
	}
}

// ParsePriority maps a user-supplied string to a Priority.
// Unknown values default to medium.
func ParsePriority(s string) Priority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return PriorityCritical
	case "high":
		return PriorityHigh
	case "low":
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// Task is an immutable submission record.
type Task struct {
	ID          string
	Description string
	Priority    Priority
	CreatedAt   time.Time
}

// New creates a Task with a fresh ID and creation timestamp.
func New(description string, prio Priority) Task {
	return Task{
		ID:          uuid.NewString(),
		Description: description,
		Priority:    prio,
		CreatedAt:   time.Now(),
	}
}

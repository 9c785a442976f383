package events

import (
	"time"

	"github.com/taskmesh/taskmesh/internal/task"
)

// Event is the base interface for everything published on the bus.
type Event interface {
	EventType() string
}

// Topic constants.
const (
	TopicTask      = "task"
	TopicStep      = "step"
	TopicScheduler = "scheduler"
)

// Event type constants.
const (
	EventTypeTaskQueued     = "task.queued"
	EventTypeTaskStarted    = "task.started"
	EventTypeTaskCompleted  = "task.completed"
	EventTypeTaskFailed     = "task.failed"
	EventTypeTaskRetried    = "task.retried"
	EventTypeStepStarted    = "step.started"
	EventTypeStepCompleted  = "step.completed"
	EventTypeStepFailed     = "step.failed"
	EventTypeStepSkipped    = "step.skipped"
	EventTypeSchedulerStats = "scheduler.stats"
)

// TaskQueuedEvent is published when a task enters the ready queue.
type TaskQueuedEvent struct {
	ID        string
	Priority  task.Priority
	Attempt   int
	Timestamp time.Time
}

func (e TaskQueuedEvent) EventType() string { return EventTypeTaskQueued }

// TaskStartedEvent is published when the dispatcher begins executing a task.
type TaskStartedEvent struct {
	ID        string
	Timestamp time.Time
}

func (e TaskStartedEvent) EventType() string { return EventTypeTaskStarted }

// TaskCompletedEvent is published when a task finishes successfully.
type TaskCompletedEvent struct {
	ID        string
	Result    string
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskCompletedEvent) EventType() string { return EventTypeTaskCompleted }

// TaskFailedEvent is published when a task fails permanently.
type TaskFailedEvent struct {
	ID        string
	Err       error
	Attempts  int
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskFailedEvent) EventType() string { return EventTypeTaskFailed }

// TaskRetriedEvent is published when a failed task is re-queued for
// another attempt.
type TaskRetriedEvent struct {
	ID        string
	Attempt   int
	Backoff   time.Duration
	Reason    string
	Timestamp time.Time
}

func (e TaskRetriedEvent) EventType() string { return EventTypeTaskRetried }

// StepStartedEvent is published when a coordination step begins executing.
type StepStartedEvent struct {
	CoordinationID string
	StepID         string
	AgentType      string
	AgentID        string
	Timestamp      time.Time
}

func (e StepStartedEvent) EventType() string { return EventTypeStepStarted }

// StepCompletedEvent is published when a coordination step succeeds.
type StepCompletedEvent struct {
	CoordinationID string
	StepID         string
	Duration       time.Duration
	Timestamp      time.Time
}

func (e StepCompletedEvent) EventType() string { return EventTypeStepCompleted }

// StepFailedEvent is published when a coordination step fails.
type StepFailedEvent struct {
	CoordinationID string
	StepID         string
	Err            error
	Duration       time.Duration
	Timestamp      time.Time
}

func (e StepFailedEvent) EventType() string { return EventTypeStepFailed }

// StepSkippedEvent is published when a step is skipped because a
// dependency produced no result.
type StepSkippedEvent struct {
	CoordinationID string
	StepID         string
	MissingDep     string
	Timestamp      time.Time
}

func (e StepSkippedEvent) EventType() string { return EventTypeStepSkipped }

// SchedulerStatsEvent is a periodic observability sample from the
// scheduler's monitor loop.
type SchedulerStatsEvent struct {
	Active    int
	Queued    int
	AvgLoad   float64
	OldestAge time.Duration
	Timestamp time.Time
}

func (e SchedulerStatsEvent) EventType() string { return EventTypeSchedulerStats }

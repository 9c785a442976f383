// Package coordinator runs multi-step tasks: it decomposes the
// description, executes the resulting step graph, and aggregates the
// per-step outputs into one report.
//
// Steps execute as concurrent waves: each round collects every step whose
// dependencies are resolved and runs the wave under the concurrency
// bound, so independent siblings proceed in parallel while the dependency
// order is preserved. A failed step never aborts the coordination; its
// dependents are recorded as skipped with the unmet dependency named.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskmesh/taskmesh/internal/allocate"
	"github.com/taskmesh/taskmesh/internal/decompose"
	"github.com/taskmesh/taskmesh/internal/events"
	"github.com/taskmesh/taskmesh/internal/executor"
	"github.com/taskmesh/taskmesh/internal/task"
)

// ErrDependencyUnmet marks a step skipped because a declared dependency
// produced no result.
var ErrDependencyUnmet = errors.New("dependency unmet")

// state is the coordination lifecycle.
type state int

const (
	stateCreated state = iota
	stateDecomposing
	stateExecuting
	stateAggregating
	stateDone
	stateFailed
)

func (s state) String() string {
	switch s {
	case stateCreated:
		return "created"
	case stateDecomposing:
		return "decomposing"
	case stateExecuting:
		return "executing"
	case stateAggregating:
		return "aggregating"
	case stateDone:
		return "done"
	default:
		return "failed"
	}
}

// stepStatus tracks one step through the wave loop.
type stepStatus int

const (
	stepPending stepStatus = iota
	stepCompleted
	stepFailed
	stepSkipped
)

// Config holds the coordinator's tunables.
type Config struct {
	StepConcurrency int           // wave execution bound, defaults to 4
	MinStepTimeout  time.Duration // floor for per-step timeouts, defaults to 1s
}

func (c Config) withDefaults() Config {
	if c.StepConcurrency <= 0 {
		c.StepConcurrency = 4
	}
	if c.MinStepTimeout <= 0 {
		c.MinStepTimeout = time.Second
	}
	return c
}

// Coordinator ties the decomposer, allocator, and executor together.
type Coordinator struct {
	cfg        Config
	decomposer *decompose.Decomposer
	alloc      *allocate.Allocator
	bus        *events.Bus
	logger     *zap.Logger
	locks      *resourceLocks

	mu      sync.Mutex
	metrics map[string]*Metrics // taskID -> finalized metrics
}

// New creates a Coordinator.
func New(cfg Config, dec *decompose.Decomposer, alloc *allocate.Allocator, bus *events.Bus, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		cfg:        cfg.withDefaults(),
		decomposer: dec,
		alloc:      alloc,
		bus:        bus,
		logger:     logger.With(zap.String("component", "coordinator")),
		locks:      newResourceLocks(),
		metrics:    make(map[string]*Metrics),
	}
}

// Coordinate decomposes and executes one description end to end.
func (c *Coordinator) Coordinate(ctx context.Context, description string, prio task.Priority) (string, error) {
	return c.Run(ctx, task.New(description, prio))
}

// Runner adapts the coordinator for the scheduler: every submitted task
// is coordinated as a multi-step run.
func (c *Coordinator) Runner() func(ctx context.Context, t task.Task) (string, error) {
	return c.Run
}

// transition records a lifecycle change for one coordination.
func (c *Coordinator) transition(coordID string, from, to state) {
	c.logger.Debug("coordination state transition",
		zap.String("coordination_id", coordID),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
}

// MetricsFor returns the finalized metrics of a past coordination.
func (c *Coordinator) MetricsFor(taskID string) (*Metrics, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.metrics[taskID]
	return m, ok
}

// Run coordinates one task. The returned string is the aggregate report.
func (c *Coordinator) Run(ctx context.Context, t task.Task) (string, error) {
	m := &Metrics{
		CoordinationID: uuid.NewString(),
		TaskID:         t.ID,
		StepDurations:  make(map[string]time.Duration),
		StartedAt:      time.Now(),
	}

	defer func() {
		m.FinishedAt = time.Now()
		m.TotalDuration = m.FinishedAt.Sub(m.StartedAt)
		c.mu.Lock()
		c.metrics[t.ID] = m
		c.mu.Unlock()
	}()

	c.transition(m.CoordinationID, stateCreated, stateDecomposing)
	decomposeStart := time.Now()
	dec := c.decomposer.Decompose(t.ID, t.Description, t.Priority)
	m.DecomposeTime = time.Since(decomposeStart)
	m.StepCount = len(dec.Steps)

	c.logger.Info("coordination started",
		zap.String("coordination_id", m.CoordinationID),
		zap.String("task_id", t.ID),
		zap.Float64("complexity", dec.Complexity),
		zap.Int("steps", len(dec.Steps)),
	)

	c.transition(m.CoordinationID, stateDecomposing, stateExecuting)
	outcomes, err := c.executeSteps(ctx, m.CoordinationID, dec, m)
	if err != nil {
		c.transition(m.CoordinationID, stateExecuting, stateFailed)
		m.Success = false
		m.Err = err
		return "", fmt.Errorf("task coordination failed: %w", err)
	}

	c.transition(m.CoordinationID, stateExecuting, stateAggregating)
	report := c.aggregate(t, dec, outcomes)

	m.Success = m.FailedSteps == 0
	c.transition(m.CoordinationID, stateAggregating, stateDone)

	c.logger.Info("coordination finished",
		zap.String("coordination_id", m.CoordinationID),
		zap.Int("failed_steps", m.FailedSteps),
		zap.Int("skipped_steps", m.SkippedSteps),
		zap.Bool("success", m.Success),
	)
	return report, nil
}

// executeSteps runs the step graph in dependency waves. It returns an
// error only on context cancellation; step failures are recorded in the
// outcomes and metrics.
func (c *Coordinator) executeSteps(ctx context.Context, coordID string, dec *decompose.Decomposition, m *Metrics) (map[string]*stepOutcome, error) {
	statuses := make(map[string]stepStatus, len(dec.Steps))
	outcomes := make(map[string]*stepOutcome, len(dec.Steps))
	for _, s := range dec.Steps {
		statuses[s.ID] = stepPending
	}

	for {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}

		// Steps with a dependency that can never produce a result are
		// recorded as skipped, not silently dropped.
		var wave []decompose.Step
		progressed := false
		for _, s := range dec.Steps {
			if statuses[s.ID] != stepPending {
				continue
			}
			ready := true
			for _, dep := range s.DependsOn {
				depStatus, known := statuses[dep]
				if !known || depStatus == stepFailed || depStatus == stepSkipped {
					c.skipStep(coordID, s, dep, statuses, outcomes, m)
					progressed = true
					ready = false
					break
				}
				if depStatus != stepCompleted {
					ready = false
					break
				}
			}
			if ready && statuses[s.ID] == stepPending {
				wave = append(wave, s)
			}
		}

		if len(wave) == 0 {
			if progressed {
				continue
			}
			break
		}

		units := make([]executor.Unit[*stepOutcome], len(wave))
		for i, s := range wave {
			units[i] = func(uctx context.Context) (*stepOutcome, error) {
				return c.runStep(uctx, coordID, s), nil
			}
		}
		results := executor.RunAll(ctx, units, c.cfg.StepConcurrency)

		for _, res := range results {
			out := res.Value
			if out == nil {
				out = &stepOutcome{stepID: wave[res.Index].ID, err: res.Err}
			}
			outcomes[out.stepID] = out
			m.StepDurations[out.stepID] = out.duration
			if out.err != nil {
				statuses[out.stepID] = stepFailed
				m.FailedSteps++
			} else {
				statuses[out.stepID] = stepCompleted
			}
		}
	}

	// Anything still pending has dependencies that never resolved (the
	// decomposer's cycle fallback can produce such steps). Record them
	// as skipped rather than dropping them.
	for _, s := range dec.Steps {
		if statuses[s.ID] == stepPending {
			c.skipStep(coordID, s, strings.Join(s.DependsOn, ","), statuses, outcomes, m)
		}
	}

	return outcomes, nil
}

// skipStep records a "dependency unmet" outcome.
func (c *Coordinator) skipStep(coordID string, s decompose.Step, missingDep string, statuses map[string]stepStatus, outcomes map[string]*stepOutcome, m *Metrics) {
	statuses[s.ID] = stepSkipped
	outcomes[s.ID] = &stepOutcome{
		stepID:  s.ID,
		skipped: true,
		missing: missingDep,
		err:     fmt.Errorf("%w: %s", ErrDependencyUnmet, missingDep),
	}
	m.SkippedSteps++

	c.publish(events.TopicStep, events.StepSkippedEvent{
		CoordinationID: coordID,
		StepID:         s.ID,
		MissingDep:     missingDep,
		Timestamp:      time.Now(),
	})
	c.logger.Warn("step skipped, dependency unmet",
		zap.String("coordination_id", coordID),
		zap.String("step_id", s.ID),
		zap.String("missing_dep", missingDep),
	)
}

// runStep executes one step on an allocated agent of the step's required
// type, under the step's estimated-duration timeout. The reservation and
// any resource lock are released on every exit path.
func (c *Coordinator) runStep(ctx context.Context, coordID string, s decompose.Step) *stepOutcome {
	start := time.Now()
	out := &stepOutcome{stepID: s.ID}

	holder := coordID + "/" + s.ID
	a, err := c.alloc.AllocateTyped(ctx, s.AgentType, s.Description, s.Priority, holder)
	if err != nil {
		out.err = fmt.Errorf("allocation: %w", err)
		out.duration = time.Since(start)
		c.publishStepEnd(coordID, s.ID, out)
		return out
	}
	defer c.alloc.Release(a.ID())

	if resource, ok := s.Metadata[decompose.MetaResource]; ok {
		c.locks.lock(resource)
		defer c.locks.unlock(resource)
	}

	c.publish(events.TopicStep, events.StepStartedEvent{
		CoordinationID: coordID,
		StepID:         s.ID,
		AgentType:      string(s.AgentType),
		AgentID:        a.ID(),
		Timestamp:      time.Now(),
	})

	timeout := s.EstimatedDuration
	if timeout < c.cfg.MinStepTimeout {
		timeout = c.cfg.MinStepTimeout
	}
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := a.Execute(stepCtx, s.Description)
	out.duration = time.Since(start)
	if err != nil {
		out.err = err
	} else {
		out.output = result
	}
	c.publishStepEnd(coordID, s.ID, out)
	return out
}

func (c *Coordinator) publishStepEnd(coordID, stepID string, out *stepOutcome) {
	if out.err != nil {
		c.publish(events.TopicStep, events.StepFailedEvent{
			CoordinationID: coordID,
			StepID:         stepID,
			Err:            out.err,
			Duration:       out.duration,
			Timestamp:      time.Now(),
		})
		return
	}
	c.publish(events.TopicStep, events.StepCompletedEvent{
		CoordinationID: coordID,
		StepID:         stepID,
		Duration:       out.duration,
		Timestamp:      time.Now(),
	})
}

// aggregate concatenates per-step outputs with the task metadata into the
// final report. Every step appears: completed with output, failed with
// its error, skipped with the unmet dependency.
func (c *Coordinator) aggregate(t task.Task, dec *decompose.Decomposition, outcomes map[string]*stepOutcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task %s (complexity %.2f, %d steps, estimated %s)\n",
		t.ID, dec.Complexity, len(dec.Steps), dec.EstimatedDuration)

	for _, s := range dec.Steps {
		assigned := dec.Assignments[s.ID]
		out, ok := outcomes[s.ID]
		switch {
		case !ok:
			fmt.Fprintf(&b, "- [%s/%s] no result recorded\n", s.ID, assigned)
		case out.skipped:
			fmt.Fprintf(&b, "- [%s/%s] skipped: dependency unmet (%s)\n", s.ID, assigned, out.missing)
		case out.err != nil:
			fmt.Fprintf(&b, "- [%s/%s] failed: %v\n", s.ID, assigned, out.err)
		default:
			fmt.Fprintf(&b, "- [%s/%s] %s\n", s.ID, assigned, out.output)
		}
	}
	return b.String()
}

func (c *Coordinator) publish(topic string, e events.Event) {
	if c.bus != nil {
		c.bus.Publish(topic, e)
	}
}

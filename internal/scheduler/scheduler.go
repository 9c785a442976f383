// Package scheduler owns the ready queue and the dispatch loop. Tasks
// move QUEUED -> EXECUTING -> COMPLETED or FAILED; a failure below the
// retry ceiling re-queues the task with a priority penalty after a linear
// backoff. All internal errors are converted into failed handles; nothing
// escapes the public API unhandled.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/taskmesh/taskmesh/internal/agent"
	"github.com/taskmesh/taskmesh/internal/allocate"
	"github.com/taskmesh/taskmesh/internal/events"
	"github.com/taskmesh/taskmesh/internal/task"
)

var (
	// ErrValidation marks a malformed submission. Never retried.
	ErrValidation = errors.New("invalid submission")
	// ErrClosed is returned for submissions to a closed scheduler and
	// set on queued handles dropped by Close.
	ErrClosed = errors.New("scheduler closed")
)

// Runner executes one task's body. The scheduler wraps it with the
// per-task timeout and the retry policy.
type Runner func(ctx context.Context, t task.Task) (string, error)

// AgentRunner returns a Runner that allocates an agent for the whole task
// and executes the description on it. The reservation is released on
// every exit path before the scheduler applies any retry backoff.
func AgentRunner(alloc *allocate.Allocator) Runner {
	return func(ctx context.Context, t task.Task) (string, error) {
		a, err := alloc.Allocate(ctx, t.Description, t.Priority, t.ID)
		if err != nil {
			return "", err
		}
		defer alloc.Release(a.ID())
		return a.Execute(ctx, t.Description)
	}
}

// Config holds the scheduler's tunables.
type Config struct {
	MaxConcurrency int
	TaskTimeout    time.Duration
	MaxRetries     int
	BackoffUnit    time.Duration // retry delay = attempt * BackoffUnit
	DispatchTick   time.Duration
	MonitorTick    time.Duration
}

// withDefaults fills unset fields.
func (c Config) withDefaults() Config {
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 4
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = 30 * time.Second
	}
	if c.BackoffUnit <= 0 {
		c.BackoffUnit = 100 * time.Millisecond
	}
	if c.DispatchTick <= 0 {
		c.DispatchTick = 100 * time.Millisecond
	}
	if c.MonitorTick <= 0 {
		c.MonitorTick = time.Second
	}
	return c
}

// Scheduler dispatches queued tasks to the runner under the global
// concurrency bound.
type Scheduler struct {
	cfg    Config
	runner Runner
	pool   *agent.Pool
	bus    *events.Bus
	logger *zap.Logger

	mu      sync.Mutex
	queue   *readyQueue
	tasks   map[string]*scheduled
	active  map[string]*scheduled
	timers  map[string]*time.Timer // pending retry re-queues
	closed  bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Scheduler. The runner is required; pool and bus feed the
// monitor loop and may be nil in tests.
func New(cfg Config, runner Runner, pool *agent.Pool, bus *events.Bus, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cfg:    cfg.withDefaults(),
		runner: runner,
		pool:   pool,
		bus:    bus,
		logger: logger.With(zap.String("component", "scheduler")),
		queue:  newReadyQueue(),
		tasks:  make(map[string]*scheduled),
		active: make(map[string]*scheduled),
		timers: make(map[string]*time.Timer),
	}
}

// Start launches the dispatch and monitor loops. They run until Close or
// until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(2)
	go s.dispatchLoop(runCtx)
	go s.monitorLoop(runCtx)
}

// Submit validates and enqueues a task, returning its result handle.
func (s *Scheduler) Submit(description string, prio task.Priority) (*Handle, error) {
	if strings.TrimSpace(description) == "" {
		return nil, fmt.Errorf("%w: empty description", ErrValidation)
	}

	t := task.New(description, prio)
	st := &scheduled{
		task:       t,
		handle:     newHandle(t.ID),
		state:      StateQueued,
		enqueuedAt: time.Now(),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.tasks[t.ID] = st
	s.queue.push(st)
	s.mu.Unlock()

	s.publish(events.TopicTask, events.TaskQueuedEvent{
		ID:        t.ID,
		Priority:  prio,
		Timestamp: time.Now(),
	})
	s.logger.Debug("task queued",
		zap.String("task_id", t.ID),
		zap.String("priority", prio.String()),
	)
	return st.handle, nil
}

// Status returns the current state of a tracked task.
func (s *Scheduler) Status(taskID string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.tasks[taskID]
	if !ok {
		return 0, false
	}
	return st.state, true
}

// ActiveCount returns the number of tasks currently executing.
func (s *Scheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// QueuedCount returns the number of tasks waiting in the ready queue.
func (s *Scheduler) QueuedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// Close stops the loops, cancels every in-flight task, and fails all
// queued tasks explicitly, including tasks waiting out a retry backoff.
// No queued task is silently lost: each handle completes with ErrClosed.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	dropped := s.queue.drain()
	// Tasks sitting in their retry-backoff window are queued too. A
	// stopped timer means the re-queue callback will never run, so the
	// handle must be failed here; if Stop reports the timer already
	// fired, the callback owns the handle and completes it on seeing
	// closed.
	for id, timer := range s.timers {
		if timer.Stop() {
			if st, ok := s.tasks[id]; ok {
				dropped = append(dropped, st)
			}
		}
		delete(s.timers, id)
	}
	for _, st := range dropped {
		st.state = StateFailed
	}
	s.mu.Unlock()

	for _, st := range dropped {
		st.handle.complete("", ErrClosed)
	}

	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// dispatchLoop pops ready tasks on a fixed tick while capacity remains.
func (s *Scheduler) dispatchLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.DispatchTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatchReady(ctx)
		}
	}
}

// dispatchReady starts queued tasks until the concurrency bound is hit.
func (s *Scheduler) dispatchReady(ctx context.Context) {
	for {
		s.mu.Lock()
		if s.closed || len(s.active) >= s.cfg.MaxConcurrency || s.queue.Len() == 0 {
			s.mu.Unlock()
			return
		}
		st := s.queue.pop()
		st.state = StateExecuting
		st.startedAt = time.Now()
		s.active[st.task.ID] = st
		s.mu.Unlock()

		s.wg.Add(1)
		go s.execute(ctx, st)
	}
}

// execute runs one attempt of a task under the per-task timeout and
// applies the retry policy on failure.
func (s *Scheduler) execute(ctx context.Context, st *scheduled) {
	defer s.wg.Done()

	s.publish(events.TopicTask, events.TaskStartedEvent{
		ID:        st.task.ID,
		Timestamp: time.Now(),
	})

	taskCtx, cancel := context.WithTimeout(ctx, s.cfg.TaskTimeout)
	result, err := s.runner(taskCtx, st.task)
	cancel()

	s.mu.Lock()
	delete(s.active, st.task.ID)
	s.mu.Unlock()

	if err == nil {
		s.finish(st, result, nil)
		return
	}

	// Timeouts and execution errors share retry accounting. Validation
	// errors and scheduler shutdown are never retried.
	if errors.Is(err, ErrValidation) || ctx.Err() != nil {
		s.finish(st, "", err)
		return
	}
	if st.retryCount >= s.cfg.MaxRetries {
		s.finish(st, "", fmt.Errorf("task failed after %d attempts: %w", st.retryCount+1, err))
		return
	}
	s.requeue(st, err)
}

// requeue schedules another attempt after a linear backoff. The backoff
// timer runs outside any agent reservation; the runner released its agent
// before returning the error.
func (s *Scheduler) requeue(st *scheduled, cause error) {
	st.retryCount++
	delay := time.Duration(st.retryCount) * s.cfg.BackoffUnit

	s.publish(events.TopicTask, events.TaskRetriedEvent{
		ID:        st.task.ID,
		Attempt:   st.retryCount,
		Backoff:   delay,
		Reason:    cause.Error(),
		Timestamp: time.Now(),
	})
	s.logger.Debug("task re-queued",
		zap.String("task_id", st.task.ID),
		zap.Int("attempt", st.retryCount),
		zap.Duration("backoff", delay),
		zap.Error(cause),
	)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		st.state = StateFailed
		go st.handle.complete("", ErrClosed)
		return
	}
	s.timers[st.task.ID] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, st.task.ID)
		if s.closed {
			st.state = StateFailed
			s.mu.Unlock()
			st.handle.complete("", ErrClosed)
			return
		}
		st.state = StateQueued
		st.enqueuedAt = time.Now()
		s.queue.push(st)
		s.mu.Unlock()

		s.publish(events.TopicTask, events.TaskQueuedEvent{
			ID:        st.task.ID,
			Priority:  st.task.Priority,
			Attempt:   st.retryCount,
			Timestamp: time.Now(),
		})
	})
}

// finish moves a task to its terminal state and resolves the handle.
func (s *Scheduler) finish(st *scheduled, result string, err error) {
	s.mu.Lock()
	st.endedAt = time.Now()
	if err == nil {
		st.state = StateCompleted
	} else {
		st.state = StateFailed
	}
	s.mu.Unlock()

	duration := st.endedAt.Sub(st.startedAt)
	if err == nil {
		s.publish(events.TopicTask, events.TaskCompletedEvent{
			ID:        st.task.ID,
			Result:    result,
			Duration:  duration,
			Timestamp: st.endedAt,
		})
		s.logger.Info("task completed",
			zap.String("task_id", st.task.ID),
			zap.Duration("duration", duration),
		)
		st.handle.complete(fmt.Sprintf("Task completed: %s", result), nil)
		return
	}

	s.publish(events.TopicTask, events.TaskFailedEvent{
		ID:        st.task.ID,
		Err:       err,
		Attempts:  st.retryCount + 1,
		Duration:  duration,
		Timestamp: st.endedAt,
	})
	s.logger.Warn("task failed",
		zap.String("task_id", st.task.ID),
		zap.Int("attempts", st.retryCount+1),
		zap.Error(err),
	)
	st.handle.complete("", err)
}

// monitorLoop samples active-task ages and pool load on a slow tick. It
// is observability only; it takes no corrective action.
func (s *Scheduler) monitorLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.MonitorTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.sample(now)
		}
	}
}

func (s *Scheduler) sample(now time.Time) {
	s.mu.Lock()
	activeCount := len(s.active)
	queuedCount := s.queue.Len()
	var oldest time.Duration
	for _, st := range s.active {
		if age := now.Sub(st.startedAt); age > oldest {
			oldest = age
		}
	}
	s.mu.Unlock()

	var avgLoad float64
	if s.pool != nil {
		avgLoad = s.pool.AvgLoad()
	}

	if oldest > s.cfg.TaskTimeout {
		s.logger.Warn("task exceeding soft timeout",
			zap.Duration("oldest_age", oldest),
			zap.Duration("task_timeout", s.cfg.TaskTimeout),
		)
	}
	s.logger.Debug("scheduler sample",
		zap.Int("active", activeCount),
		zap.Int("queued", queuedCount),
		zap.Float64("avg_load", avgLoad),
	)
	s.publish(events.TopicScheduler, events.SchedulerStatsEvent{
		Active:    activeCount,
		Queued:    queuedCount,
		AvgLoad:   avgLoad,
		OldestAge: oldest,
		Timestamp: now,
	})
}

func (s *Scheduler) publish(topic string, e events.Event) {
	if s.bus != nil {
		s.bus.Publish(topic, e)
	}
}

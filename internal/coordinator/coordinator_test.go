package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taskmesh/taskmesh/internal/agent"
	"github.com/taskmesh/taskmesh/internal/allocate"
	"github.com/taskmesh/taskmesh/internal/decompose"
	"github.com/taskmesh/taskmesh/internal/events"
	"github.com/taskmesh/taskmesh/internal/task"
)

// newTestCoordinator wires a coordinator over a pool with two simulated
// agents of every type.
func newTestCoordinator(t *testing.T, bus *events.Bus) (*Coordinator, *agent.Pool) {
	t.Helper()
	pool := agent.NewPool(zap.NewNop())
	for _, typ := range agent.AllTypes() {
		for _, suffix := range []string{"1", "2"} {
			sim := agent.NewSimAgent(string(typ)+"-"+suffix, typ, agent.SimConfig{
				MaxConcurrency: 2,
				WorkDelay:      time.Millisecond,
			})
			require.NoError(t, pool.Register(sim))
		}
	}
	alloc := allocate.New(pool, allocate.Config{}, zap.NewNop())
	dec := decompose.New(zap.NewNop())
	return New(Config{StepConcurrency: 4}, dec, alloc, bus, zap.NewNop()), pool
}

func TestRun_SimpleTask(t *testing.T) {
	c, pool := newTestCoordinator(t, nil)

	tk := task.New("Respond to the user simply", task.PriorityMedium)
	report, err := c.Run(context.Background(), tk)
	require.NoError(t, err)
	assert.Contains(t, report, "Task "+tk.ID)
	assert.Contains(t, report, "[interaction]")
	assert.Zero(t, pool.ReservedCount(), "all reservations released")
}

func TestRun_PhasedTaskProducesAnalysisAndReport(t *testing.T) {
	c, _ := newTestCoordinator(t, nil)

	tk := task.New("Analyze system architecture and produce a report", task.PriorityMedium)
	report, err := c.Run(context.Background(), tk)
	require.NoError(t, err)

	// The phased chain routes through a planning, analysis, processing,
	// and reporting agent; their outputs all land in the report.
	assert.Contains(t, report, "[planning]")
	assert.Contains(t, report, "[analysis]")
	assert.Contains(t, report, "[processing]")
	assert.Contains(t, report, "[reporting]")
	assert.Contains(t, report, "5 steps")
}

func TestRun_RecordsMetrics(t *testing.T) {
	c, _ := newTestCoordinator(t, nil)

	tk := task.New("Analyze system architecture and produce a report", task.PriorityMedium)
	_, err := c.Run(context.Background(), tk)
	require.NoError(t, err)

	m, ok := c.MetricsFor(tk.ID)
	require.True(t, ok)
	assert.Equal(t, 5, m.StepCount)
	assert.Zero(t, m.FailedSteps)
	assert.Zero(t, m.SkippedSteps)
	assert.True(t, m.Success)
	assert.Len(t, m.StepDurations, 5)
	assert.Greater(t, m.TotalDuration, time.Duration(0))
}

func TestRun_FailedDependencySkipsDownstream(t *testing.T) {
	// A pool with no reporting or planning agents: the planning phase
	// fails allocation and everything chained behind it is skipped.
	pool := agent.NewPool(zap.NewNop())
	require.NoError(t, pool.Register(agent.NewSimAgent("an-1", agent.TypeAnalysis, agent.SimConfig{})))
	alloc := allocate.New(pool, allocate.Config{}, zap.NewNop())
	c := New(Config{}, decompose.New(zap.NewNop()), alloc, nil, zap.NewNop())

	tk := task.New("Analyze system architecture and produce a report", task.PriorityMedium)
	report, err := c.Run(context.Background(), tk)
	require.NoError(t, err, "step failures do not fail the coordination")

	assert.Contains(t, report, "failed: allocation")
	assert.Contains(t, report, "skipped: dependency unmet (planning)")

	m, ok := c.MetricsFor(tk.ID)
	require.True(t, ok)
	assert.Equal(t, 1, m.FailedSteps, "only the planning phase itself fails")
	assert.Equal(t, 4, m.SkippedSteps, "the chain behind it is skipped")
	assert.False(t, m.Success)
}

func TestRun_EveryStepAppearsInReport(t *testing.T) {
	c, _ := newTestCoordinator(t, nil)

	tk := task.New("Design the schema. Build the service. Test the endpoints", task.PriorityMedium)
	report, err := c.Run(context.Background(), tk)
	require.NoError(t, err)

	for _, id := range []string{"bucket-design", "bucket-build", "bucket-test"} {
		assert.Contains(t, report, "["+id+"/")
	}
}

func TestRun_CancelledContext(t *testing.T) {
	c, _ := newTestCoordinator(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tk := task.New("Analyze system architecture and produce a report", task.PriorityMedium)
	_, err := c.Run(ctx, tk)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "task coordination failed")

	m, ok := c.MetricsFor(tk.ID)
	require.True(t, ok)
	assert.False(t, m.Success)
}

func TestRun_PublishesStepEvents(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	sub := bus.Subscribe(events.TopicStep, 64)

	c, _ := newTestCoordinator(t, bus)
	tk := task.New("Analyze system architecture and produce a report", task.PriorityMedium)
	_, err := c.Run(context.Background(), tk)
	require.NoError(t, err)

	started, completed := 0, 0
	timeout := time.After(time.Second)
	for started < 5 || completed < 5 {
		select {
		case e := <-sub:
			switch e.EventType() {
			case events.EventTypeStepStarted:
				started++
			case events.EventTypeStepCompleted:
				completed++
			}
		case <-timeout:
			t.Fatalf("expected 5 started and 5 completed step events, got %d/%d", started, completed)
		}
	}
}

func TestRunner_AdaptsForScheduler(t *testing.T) {
	c, _ := newTestCoordinator(t, nil)
	run := c.Runner()

	out, err := run(context.Background(), task.New("Respond to the user simply", task.PriorityLow))
	require.NoError(t, err)
	assert.Contains(t, out, "[interaction]")
}

func TestResourceLocks_SerializeSameResource(t *testing.T) {
	locks := newResourceLocks()

	locked := make(chan struct{})
	released := make(chan struct{})
	go func() {
		locks.lock("workspace")
		close(locked)
		<-released
		locks.unlock("workspace")
	}()
	<-locked

	acquired := make(chan struct{})
	go func() {
		locks.lock("workspace")
		close(acquired)
		locks.unlock("workspace")
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held resource")
	case <-time.After(20 * time.Millisecond):
	}

	// A different resource is unaffected.
	locks.lock("other")
	locks.unlock("other")

	close(released)
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock not handed over after release")
	}
}

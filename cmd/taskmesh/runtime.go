package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/taskmesh/taskmesh/internal/agent"
	"github.com/taskmesh/taskmesh/internal/allocate"
	"github.com/taskmesh/taskmesh/internal/config"
	"github.com/taskmesh/taskmesh/internal/coordinator"
	"github.com/taskmesh/taskmesh/internal/decompose"
	"github.com/taskmesh/taskmesh/internal/events"
	"github.com/taskmesh/taskmesh/internal/scheduler"
)

// runtime bundles the wired components behind the CLI commands.
type runtime struct {
	cfg    *config.Config
	logger *zap.Logger
	bus    *events.Bus
	pool   *agent.Pool
	alloc  *allocate.Allocator
	coord  *coordinator.Coordinator
	sched  *scheduler.Scheduler
}

// buildRuntime loads configuration and wires the full component stack:
// pool of simulated agents, allocator (with optional oracle), decomposer,
// coordinator, and a scheduler whose runner coordinates each task.
func buildRuntime(ctx context.Context, logger *zap.Logger) (*runtime, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}

	bus := events.NewBus()
	pool := agent.NewPool(logger)

	for _, spec := range cfg.Agents {
		for i := 0; i < spec.Count; i++ {
			id := fmt.Sprintf("%s-%d", spec.Type, i+1)
			sim := agent.NewSimAgent(id, agent.Type(spec.Type), agent.SimConfig{
				MaxConcurrency: spec.MaxConcurrency,
				MaxLoad:        spec.MaxLoad,
				WorkDelay:      spec.WorkDelay,
			})
			if err := pool.Register(sim); err != nil {
				return nil, fmt.Errorf("registering agent %s: %w", id, err)
			}
		}
	}

	allocCfg := allocate.Config{OracleTimeout: cfg.Oracle.Timeout}
	if cfg.Oracle.Enabled {
		oracle := allocate.NewChannelOracle(16, loadOracle)
		oracle.Start(ctx)
		allocCfg.Oracle = oracle
	}
	alloc := allocate.New(pool, allocCfg, logger)

	dec := decompose.New(logger)
	coord := coordinator.New(coordinator.Config{
		StepConcurrency: cfg.StepConcurrency,
		MinStepTimeout:  cfg.MinStepTimeout,
	}, dec, alloc, bus, logger)

	sched := scheduler.New(scheduler.Config{
		MaxConcurrency: cfg.MaxConcurrency,
		TaskTimeout:    cfg.TaskTimeout,
		MaxRetries:     cfg.MaxRetries,
		BackoffUnit:    cfg.BackoffUnit,
		DispatchTick:   cfg.DispatchTick,
		MonitorTick:    cfg.MonitorTick,
	}, coord.Runner(), pool, bus, logger)

	return &runtime{
		cfg:    cfg,
		logger: logger,
		bus:    bus,
		pool:   pool,
		alloc:  alloc,
		coord:  coord,
		sched:  sched,
	}, nil
}

// loadOracle is the built-in allocation oracle: it answers with the
// least-loaded candidate and a confidence derived from the load spread.
func loadOracle(ctx context.Context, req allocate.Request) (allocate.Decision, error) {
	if len(req.Candidates) == 0 {
		return allocate.Decision{}, fmt.Errorf("no candidates")
	}
	best, worst := 0, 0
	for i, c := range req.Candidates {
		if c.Load < req.Candidates[best].Load {
			best = i
		}
		if c.Load > req.Candidates[worst].Load {
			worst = i
		}
	}
	spread := req.Candidates[worst].Load - req.Candidates[best].Load
	return allocate.Decision{
		SelectedIndex: best,
		Confidence:    0.5 + spread/2,
		Rationale:     "least loaded candidate",
	}, nil
}

// close tears the runtime down in dependency order.
func (r *runtime) close() {
	r.sched.Close()
	r.bus.Close()
	_ = r.logger.Sync()
}

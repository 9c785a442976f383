// Package allocate selects the best available agent for a task or step.
// An optional external decision oracle is consulted first; on oracle
// absence, timeout, error, or an invalid response, allocation falls back
// to a deterministic composite score.
package allocate

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/taskmesh/taskmesh/internal/agent"
	"github.com/taskmesh/taskmesh/internal/decompose"
	"github.com/taskmesh/taskmesh/internal/task"
)

// ErrNoAgent is returned when no accepting, unreserved agent exists.
// This is the only allocation outcome treated as a real failure.
var ErrNoAgent = errors.New("no accepting agent available")

// Composite score weights for the heuristic fallback.
const (
	weightLoad       = 0.3
	weightCompletion = 0.2
	weightCapability = 0.5
)

// DefaultOracleTimeout bounds one oracle consultation.
const DefaultOracleTimeout = 5 * time.Second

// Config configures an Allocator.
type Config struct {
	Oracle        Oracle        // nil disables oracle consultation
	OracleTimeout time.Duration // defaults to DefaultOracleTimeout
	Retry         RetryConfig
}

// Allocator picks agents from the pool.
type Allocator struct {
	pool    *agent.Pool
	cfg     Config
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// New creates an Allocator over the pool.
func New(pool *agent.Pool, cfg Config, logger *zap.Logger) *Allocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.OracleTimeout <= 0 {
		cfg.OracleTimeout = DefaultOracleTimeout
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig()
	}
	return &Allocator{
		pool:    pool,
		cfg:     cfg,
		breaker: newOracleBreaker(logger),
		logger:  logger.With(zap.String("component", "allocator")),
	}
}

// Allocate selects, reserves, and returns an agent for the task. The
// holder string identifies the reservation owner and must be passed to
// Release on every exit path of the task's execution.
func (al *Allocator) Allocate(ctx context.Context, description string, prio task.Priority, holder string) (agent.Agent, error) {
	return al.allocate(ctx, "", description, prio, holder)
}

// AllocateTyped selects among agents of one required type, picking the
// lowest-loaded accepting candidate. Used for coordination steps, which
// are bound to an agent type by the decomposer.
func (al *Allocator) AllocateTyped(ctx context.Context, typ agent.Type, description string, prio task.Priority, holder string) (agent.Agent, error) {
	return al.allocate(ctx, typ, description, prio, holder)
}

// Release drops the reservation for the agent. Safe on every exit path.
func (al *Allocator) Release(agentID string) {
	al.pool.Release(agentID)
}

func (al *Allocator) allocate(ctx context.Context, typ agent.Type, description string, prio task.Priority, holder string) (agent.Agent, error) {
	candidates := al.pool.Candidates(typ)
	if len(candidates) == 0 {
		return nil, ErrNoAgent
	}

	if al.cfg.Oracle != nil {
		if a := al.consultOracle(ctx, candidates, description, prio, holder); a != nil {
			return a, nil
		}
	}

	// Deterministic fallback. Typed allocation picks the lowest-loaded
	// candidate of the required type; untyped allocation uses the
	// composite score. Ties break by agent ID in both cases because
	// candidates arrive sorted by ID and comparisons are strict.
	var best agent.Agent
	bestScore := -1.0
	for _, c := range candidates {
		var score float64
		if typ != "" {
			score = 1 - c.LoadScore()
		} else {
			score = al.score(c, description)
		}
		if score > bestScore {
			best = c
			bestScore = score
		}
	}

	// Reservation can race with another allocation; fall through the
	// remaining candidates in score order.
	if best != nil && al.pool.Reserve(best.ID(), holder) {
		return best, nil
	}
	for _, c := range candidates {
		if c == best {
			continue
		}
		if al.pool.Reserve(c.ID(), holder) {
			return c, nil
		}
	}
	return nil, ErrNoAgent
}

// score computes the composite heuristic for one candidate:
// 0.3*(1-load) + 0.2*completionRate + 0.5*capabilityMatch.
func (al *Allocator) score(c agent.Agent, description string) float64 {
	return weightLoad*(1-c.LoadScore()) +
		weightCompletion*c.CompletionRate() +
		weightCapability*decompose.CapabilityScore(c.Type(), description)
}

// consultOracle asks the configured oracle to pick a candidate. Any
// failure, timeout, or structurally invalid answer returns nil so the
// caller falls back to the heuristic.
func (al *Allocator) consultOracle(ctx context.Context, candidates []agent.Agent, description string, prio task.Priority, holder string) agent.Agent {
	req := Request{
		TaskDescription: description,
		Priority:        prio,
		Candidates:      make([]Candidate, len(candidates)),
	}
	for i, c := range candidates {
		req.Candidates[i] = Candidate{
			AgentID:        c.ID(),
			Type:           c.Type(),
			Capabilities:   decompose.Capabilities(c.Type()),
			Load:           c.LoadScore(),
			CompletionRate: c.CompletionRate(),
		}
		if counter, ok := c.(interface{ Active() int }); ok {
			req.Candidates[i].Active = counter.Active()
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, al.cfg.OracleTimeout)
	defer cancel()

	decision, err := decideWithRetry(callCtx, al.cfg.Oracle, req, al.breaker, al.cfg.Retry)
	if err != nil {
		al.logger.Debug("oracle unavailable, using heuristic fallback", zap.Error(err))
		return nil
	}
	if decision.SelectedIndex < 0 || decision.SelectedIndex >= len(candidates) {
		al.logger.Warn("oracle returned out-of-range selection, using heuristic fallback",
			zap.Int("selected_index", decision.SelectedIndex),
			zap.Int("candidates", len(candidates)),
		)
		return nil
	}

	selected := candidates[decision.SelectedIndex]
	if !al.pool.Reserve(selected.ID(), holder) {
		al.logger.Debug("oracle selection lost reservation race, using heuristic fallback",
			zap.String("agent_id", selected.ID()),
		)
		return nil
	}

	al.logger.Debug("oracle selected agent",
		zap.String("agent_id", selected.ID()),
		zap.Float64("confidence", decision.Confidence),
		zap.String("rationale", decision.Rationale),
	)
	return selected
}

package agent

import (
	"context"
	"fmt"
	"time"
)

// SimConfig configures a simulated agent.
type SimConfig struct {
	MaxConcurrency int
	MaxLoad        float64
	WorkDelay      time.Duration // simulated execution time per task
}

// behavior renders a simulated response for one task.
type behavior func(task string) string

// behaviors maps each agent type to its response template. Adding a new
// agent kind means adding a row here; no dispatcher changes.
var behaviors = map[Type]behavior{
	TypeInteraction: func(task string) string {
		return fmt.Sprintf("[interaction] handled dialogue turn for: %s", task)
	},
	TypeProcessing: func(task string) string {
		return fmt.Sprintf("[processing] processed work item: %s", task)
	},
	TypeKnowledge: func(task string) string {
		return fmt.Sprintf("[knowledge] retrieved background material for: %s", task)
	},
	TypeAnalysis: func(task string) string {
		return fmt.Sprintf("[analysis] produced findings for: %s", task)
	},
	TypePlanning: func(task string) string {
		return fmt.Sprintf("[planning] drafted plan for: %s", task)
	},
	TypeReporting: func(task string) string {
		return fmt.Sprintf("[reporting] compiled report for: %s", task)
	},
}

// SimAgent is an in-process worker that renders templated output for its
// type. It exists for the CLI demo and for tests; real deployments plug in
// their own Agent implementations.
type SimAgent struct {
	id    string
	typ   Type
	stats *Stats
	delay time.Duration
	run   behavior
}

// NewSimAgent creates a simulated agent of the given type.
func NewSimAgent(id string, typ Type, cfg SimConfig) *SimAgent {
	run, ok := behaviors[typ]
	if !ok {
		typ = FallbackType
		run = behaviors[typ]
	}
	return &SimAgent{
		id:    id,
		typ:   typ,
		stats: NewStats(cfg.MaxConcurrency, cfg.MaxLoad),
		delay: cfg.WorkDelay,
		run:   run,
	}
}

func (a *SimAgent) ID() string { return a.id }
func (a *SimAgent) Type() Type { return a.typ }

// Execute simulates work for the configured delay, honoring cancellation.
func (a *SimAgent) Execute(ctx context.Context, task string) (string, error) {
	a.stats.Begin()
	if a.delay > 0 {
		timer := time.NewTimer(a.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			a.stats.Finish(false)
			return "", ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		a.stats.Finish(false)
		return "", err
	}
	out := a.run(task)
	a.stats.Finish(true)
	return out, nil
}

func (a *SimAgent) Active() int             { return a.stats.Active() }
func (a *SimAgent) LoadScore() float64      { return a.stats.LoadScore() }
func (a *SimAgent) CompletionRate() float64 { return a.stats.CompletionRate() }
func (a *SimAgent) CanAccept() bool         { return a.stats.CanAccept() }

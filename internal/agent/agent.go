// Package agent defines the worker capability interface and the pool that
// owns worker registration, load state, and exclusive reservation.
package agent

import (
	"context"
	"sync"
)

// Type classifies what kind of work an agent is built for.
type Type string

const (
	TypeInteraction Type = "interaction"
	TypeProcessing  Type = "processing"
	TypeKnowledge   Type = "knowledge"
	TypeAnalysis    Type = "analysis"
	TypePlanning    Type = "planning"
	TypeReporting   Type = "reporting"
)

// FallbackType is assigned when no capability keyword matches anywhere.
const FallbackType = TypeProcessing

// AllTypes lists every registered agent type in stable order.
func AllTypes() []Type {
	return []Type{
		TypeInteraction,
		TypeProcessing,
		TypeKnowledge,
		TypeAnalysis,
		TypePlanning,
		TypeReporting,
	}
}

// Agent is the capability interface every worker kind implements.
// Execute may block; callers wrap it with their own timeout context.
type Agent interface {
	ID() string
	Type() Type
	Execute(ctx context.Context, task string) (string, error)
	LoadScore() float64
	CompletionRate() float64
	CanAccept() bool
}

// Stats tracks per-agent execution counters and derives the load score.
// Embed it in agent implementations; Begin/Finish bracket every execution.
type Stats struct {
	mu             sync.Mutex
	active         int
	completed      int
	failed         int
	maxConcurrency int
	maxLoad        float64
	load           float64
}

// NewStats creates counters for an agent with the given limits.
func NewStats(maxConcurrency int, maxLoad float64) *Stats {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	if maxLoad <= 0 {
		maxLoad = 0.9
	}
	return &Stats{maxConcurrency: maxConcurrency, maxLoad: maxLoad}
}

// Begin records the start of one execution and recomputes the load score.
func (s *Stats) Begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active++
	s.recompute()
}

// Finish records the end of one execution and recomputes the load score.
func (s *Stats) Finish(success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active > 0 {
		s.active--
	}
	if success {
		s.completed++
	} else {
		s.failed++
	}
	s.recompute()
}

// recompute derives load = 0.7*utilization + 0.3*failureRate.
// Caller must hold s.mu.
func (s *Stats) recompute() {
	utilization := float64(s.active) / float64(s.maxConcurrency)
	s.load = 0.7*utilization + 0.3*s.failureRate()
}

// failureRate returns failed/(completed+failed), zero before any finish.
// Caller must hold s.mu.
func (s *Stats) failureRate() float64 {
	total := s.completed + s.failed
	if total == 0 {
		return 0
	}
	return float64(s.failed) / float64(total)
}

// LoadScore returns the current load in [0,1].
func (s *Stats) LoadScore() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.load > 1 {
		return 1
	}
	return s.load
}

// CompletionRate returns completed/(completed+failed), 1.0 before any finish.
func (s *Stats) CompletionRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := s.completed + s.failed
	if total == 0 {
		return 1
	}
	return float64(s.completed) / float64(total)
}

// CanAccept reports whether a new execution may start: active below the
// concurrency cap and load below the load ceiling.
func (s *Stats) CanAccept() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active < s.maxConcurrency && s.load < s.maxLoad
}

// Active returns the number of in-flight executions.
func (s *Stats) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

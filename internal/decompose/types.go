package decompose

import (
	"time"

	"github.com/taskmesh/taskmesh/internal/agent"
	"github.com/taskmesh/taskmesh/internal/task"
)

// DependencyKind classifies an edge between two steps.
type DependencyKind int

const (
	DepSequence DependencyKind = iota
	DepParallel
	DepConditional
	DepResource
)

func (k DependencyKind) String() string {
	switch k {
	case DepSequence:
		return "sequence"
	case DepParallel:
		return "parallel"
	case DepConditional:
		return "conditional"
	default:
		return "resource"
	}
}

// Dependency is a typed edge between two steps of one decomposition.
type Dependency struct {
	From string
	To   string
	Kind DependencyKind
}

// Step is one unit of a decomposed task, bound to exactly one agent type.
// DependsOn references step IDs within the same decomposition only.
type Step struct {
	ID                string
	Description       string
	AgentType         agent.Type
	EstimatedDuration time.Duration
	DependsOn         []string
	Priority          task.Priority
	Metadata          map[string]string
}

// MetaResource is the metadata key naming a shared resource. Steps naming
// the same resource are serialized by the coordinator's lock manager.
const MetaResource = "resource"

// Decomposition is the immutable result of one Decompose call.
type Decomposition struct {
	TaskID            string
	Steps             []Step
	Complexity        float64
	EstimatedDuration time.Duration
	Assignments       map[string]agent.Type
	Dependencies      []Dependency
}

// StepCount returns the number of steps.
func (d *Decomposition) StepCount() int { return len(d.Steps) }

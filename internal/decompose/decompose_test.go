package decompose

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taskmesh/taskmesh/internal/agent"
	"github.com/taskmesh/taskmesh/internal/task"
)

func TestComplexity_Bounds(t *testing.T) {
	tests := []struct {
		name        string
		description string
	}{
		{"empty-ish", "x"},
		{"simple", "simple chat"},
		{"medium", "Design the schema. Build the service. Test the endpoints"},
		{"heavy", "Orchestrate a distributed migration across services. Analyze risks. Integrate and optimize the architecture"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := Complexity(tt.description)
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 1.0)
		})
	}
}

func TestComplexity_MonotoneAcrossKeywordTiers(t *testing.T) {
	simple := Complexity("simple chat")
	medium := Complexity("Design the schema. Build the service. Test the endpoints")
	heavy := Complexity("Orchestrate a distributed migration across services. Analyze risks. Integrate and optimize the architecture")

	assert.Less(t, simple, medium)
	assert.Less(t, medium, heavy)
}

func TestComplexity_AppendingHighWeightTextNeverDecreases(t *testing.T) {
	// Growing a description with top-tier keywords can only raise the
	// keyword average, the length factor, and the sentence count, so the
	// score must be non-decreasing at every extension.
	desc := "Respond to the user"
	prev := Complexity(desc)
	for i := 0; i < 6; i++ {
		desc += ". Then orchestrate the distributed migration"
		cur := Complexity(desc)
		assert.GreaterOrEqual(t, cur, prev, "score dropped after extending to %q", desc)
		prev = cur
	}
}

func TestDecompose_Deterministic(t *testing.T) {
	d := New(zap.NewNop())
	desc := "Design the schema. Build the service. Test the endpoints"

	a := d.Decompose("t1", desc, task.PriorityMedium)
	b := d.Decompose("t1", desc, task.PriorityMedium)

	assert.Equal(t, a, b, "same input must produce an identical decomposition")
}

func TestDecompose_EmptyInputYieldsMinimal(t *testing.T) {
	d := New(zap.NewNop())

	dec := d.Decompose("t1", "   ", task.PriorityLow)
	require.Len(t, dec.Steps, 1)
	assert.Equal(t, agent.FallbackType, dec.Steps[0].AgentType)
	assert.Equal(t, "unspecified task", dec.Steps[0].Description)
	assert.NotEmpty(t, dec.Assignments)
}

func TestDecompose_GeneratesTaskID(t *testing.T) {
	d := New(zap.NewNop())
	dec := d.Decompose("", "simple chat", task.PriorityMedium)
	assert.NotEmpty(t, dec.TaskID)
}

func TestDecompose_SentenceStrategy(t *testing.T) {
	d := New(zap.NewNop())
	desc := "Respond to the user simply. Then ask a simple follow-up"

	dec := d.Decompose("t1", desc, task.PriorityHigh)
	require.Less(t, dec.Complexity, 0.3)
	require.Len(t, dec.Steps, 2)

	// One dominant type for the whole description.
	assert.Equal(t, agent.TypeInteraction, dec.Steps[0].AgentType)
	assert.Equal(t, agent.TypeInteraction, dec.Steps[1].AgentType)

	// "Then ..." orders the second sentence after the first.
	assert.Equal(t, []string{"s1"}, dec.Steps[1].DependsOn)
	require.Len(t, dec.Dependencies, 1)
	assert.Equal(t, DepSequence, dec.Dependencies[0].Kind)

	for _, s := range dec.Steps {
		assert.Equal(t, task.PriorityHigh, s.Priority)
	}
}

func TestDecompose_ConditionalConnector(t *testing.T) {
	d := New(zap.NewNop())
	desc := "Ask the user a simple question. If the answer is yes, respond with a greeting"

	dec := d.Decompose("t1", desc, task.PriorityMedium)
	require.Less(t, dec.Complexity, 0.3)
	require.Len(t, dec.Dependencies, 1)
	assert.Equal(t, DepConditional, dec.Dependencies[0].Kind)
}

func TestDecompose_BucketStrategy(t *testing.T) {
	d := New(zap.NewNop())
	desc := "Design the schema. Build the service. Test the endpoints"

	dec := d.Decompose("t1", desc, task.PriorityMedium)
	require.GreaterOrEqual(t, dec.Complexity, 0.3)
	require.Less(t, dec.Complexity, 0.6)

	ids := make([]string, 0, len(dec.Steps))
	for _, s := range dec.Steps {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"bucket-design", "bucket-build", "bucket-test"}, ids)

	// Each bucket picks its type from its own text.
	assert.Equal(t, agent.TypePlanning, dec.Assignments["bucket-design"])
	assert.Equal(t, agent.TypeProcessing, dec.Assignments["bucket-build"])
	assert.Equal(t, agent.TypeProcessing, dec.Assignments["bucket-test"])

	// Sibling buckets are linked with non-gating parallel edges only.
	for _, dep := range dec.Dependencies {
		assert.Equal(t, DepParallel, dep.Kind)
	}
	for _, s := range dec.Steps {
		assert.Empty(t, s.DependsOn, "parallel edges must not gate execution")
	}
}

func TestDecompose_PhasedStrategy(t *testing.T) {
	d := New(zap.NewNop())
	desc := "Analyze system architecture and produce a report"

	dec := d.Decompose("t1", desc, task.PriorityMedium)
	require.GreaterOrEqual(t, dec.Complexity, 0.6)
	require.Less(t, dec.Complexity, 0.8)
	require.Len(t, dec.Steps, 5)

	ids := make([]string, 0, 5)
	for _, s := range dec.Steps {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"planning", "analysis", "execution", "validation", "reporting"}, ids)

	// Strict chain: each phase depends on its predecessor.
	for i := 1; i < len(dec.Steps); i++ {
		assert.Equal(t, []string{dec.Steps[i-1].ID}, dec.Steps[i].DependsOn)
	}
	assert.Equal(t, agent.TypeAnalysis, dec.Assignments["analysis"])
	assert.Equal(t, agent.TypeReporting, dec.Assignments["reporting"])
}

func TestDecompose_DeepPhasedStrategy(t *testing.T) {
	d := New(zap.NewNop())
	desc := "Orchestrate a distributed migration across services. Analyze risks. Integrate and optimize the architecture"

	dec := d.Decompose("t1", desc, task.PriorityCritical)
	require.GreaterOrEqual(t, dec.Complexity, 0.8)
	require.Len(t, dec.Steps, 8)

	byID := make(map[string]Step, len(dec.Steps))
	for _, s := range dec.Steps {
		byID[s.ID] = s
	}

	// Both execution phases share the workspace resource.
	assert.Equal(t, "workspace", byID["execution"].Metadata[MetaResource])
	assert.Equal(t, "workspace", byID["subtask-execution"].Metadata[MetaResource])

	var hasResourceEdge bool
	for _, dep := range dec.Dependencies {
		if dep.Kind == DepResource {
			hasResourceEdge = true
			assert.Equal(t, "execution", dep.From)
			assert.Equal(t, "subtask-execution", dep.To)
		}
	}
	assert.True(t, hasResourceEdge)
}

func TestDecompose_EstimatedDurationSumsSteps(t *testing.T) {
	d := New(zap.NewNop())
	dec := d.Decompose("t1", "Design the schema. Build the service. Test the endpoints", task.PriorityMedium)

	var sum time.Duration
	for _, s := range dec.Steps {
		sum += s.EstimatedDuration
	}
	assert.Equal(t, sum, dec.EstimatedDuration)
}

func TestTextDuration_Cap(t *testing.T) {
	long := make([]byte, 1000)
	for i := range long {
		long[i] = 'a'
	}
	assert.Equal(t, 3*time.Second, textDuration(string(long)))
	assert.Equal(t, 600*time.Millisecond, textDuration("0123456789"))
}

func TestDominantType_TieBreaksDeterministically(t *testing.T) {
	// No capability keyword matches: fallback wins.
	assert.Equal(t, agent.FallbackType, DominantType("zzzz qqqq"))

	// Repeated calls agree.
	first := DominantType("analyze and report on the plan")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, DominantType("analyze and report on the plan"))
	}
}

func TestCapabilityScore_Range(t *testing.T) {
	for _, typ := range agent.AllTypes() {
		score := CapabilityScore(typ, "analyze process report plan chat research")
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	}
	assert.Zero(t, CapabilityScore(agent.Type("bogus"), "analyze"))
}

func TestHasConnector_WordBoundaries(t *testing.T) {
	assert.False(t, hasConnector("authenticate the request", sequenceConnectors),
		"substring of a word must not match")
	assert.True(t, hasConnector("then validate the output", sequenceConnectors))
	assert.True(t, hasConnector("followed by a review", sequenceConnectors))
}

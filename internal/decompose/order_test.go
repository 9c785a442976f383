package decompose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func stepWithDeps(id string, deps ...string) Step {
	return Step{ID: id, Description: id, DependsOn: deps}
}

func assertDepsPrecede(t *testing.T, ordered []Step) {
	t.Helper()
	pos := make(map[string]int, len(ordered))
	for i, s := range ordered {
		pos[s.ID] = i
	}
	for _, s := range ordered {
		for _, dep := range s.DependsOn {
			depPos, ok := pos[dep]
			if !ok || dep == s.ID {
				continue // unsatisfiable, lives in the fallback tail
			}
			assert.Less(t, depPos, pos[s.ID], "dependency %s must precede %s", dep, s.ID)
		}
	}
}

func TestOrderSteps_LinearChain(t *testing.T) {
	steps := []Step{
		stepWithDeps("c", "b"),
		stepWithDeps("a"),
		stepWithDeps("b", "a"),
	}

	ordered := OrderSteps(steps, zap.NewNop())
	require.Len(t, ordered, 3)
	assert.Equal(t, "a", ordered[0].ID)
	assert.Equal(t, "b", ordered[1].ID)
	assert.Equal(t, "c", ordered[2].ID)
}

func TestOrderSteps_Diamond(t *testing.T) {
	steps := []Step{
		stepWithDeps("d", "b", "c"),
		stepWithDeps("b", "a"),
		stepWithDeps("c", "a"),
		stepWithDeps("a"),
	}

	ordered := OrderSteps(steps, zap.NewNop())
	require.Len(t, ordered, 4)
	assertDepsPrecede(t, ordered)
	assert.Equal(t, "a", ordered[0].ID)
	assert.Equal(t, "d", ordered[3].ID)
}

func TestOrderSteps_CycleTerminatesAndKeepsAllSteps(t *testing.T) {
	steps := []Step{
		stepWithDeps("a", "b"),
		stepWithDeps("b", "a"),
		stepWithDeps("c"),
	}

	ordered := OrderSteps(steps, zap.NewNop())
	require.Len(t, ordered, 3, "no step may be dropped")

	// The independent step is emitted first; the cycle members are appended
	// in original order.
	assert.Equal(t, "c", ordered[0].ID)
	assert.Equal(t, "a", ordered[1].ID)
	assert.Equal(t, "b", ordered[2].ID)
}

func TestOrderSteps_DanglingAndSelfReferences(t *testing.T) {
	steps := []Step{
		stepWithDeps("a", "ghost"),
		stepWithDeps("b", "b"),
		stepWithDeps("c"),
	}

	ordered := OrderSteps(steps, zap.NewNop())
	require.Len(t, ordered, 3)
	assert.Equal(t, "c", ordered[0].ID)
}

func TestOrderSteps_EmptyAndSingle(t *testing.T) {
	assert.Empty(t, OrderSteps(nil, zap.NewNop()))

	one := []Step{stepWithDeps("a")}
	assert.Equal(t, one, OrderSteps(one, zap.NewNop()))
}

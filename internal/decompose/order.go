package decompose

import (
	"github.com/gammazero/toposort"
	"go.uber.org/zap"
)

// OrderSteps linearizes steps so that every step appears after all of its
// dependencies. Emission is fixed-point: steps with no unmet dependencies
// are emitted first, then repeated passes emit steps whose dependencies
// have all been emitted. Steps whose dependencies never resolve (cycle or
// dangling reference) are appended in original order at the end, so the
// function terminates for any input.
func OrderSteps(steps []Step, logger *zap.Logger) []Step {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(steps) <= 1 {
		return steps
	}

	known := make(map[string]bool, len(steps))
	for _, s := range steps {
		known[s.ID] = true
	}

	// Cycle detection up front so the fallback append is logged as the
	// deliberate safety path it is, not a silent reordering.
	if err := checkAcyclic(steps); err != nil {
		logger.Warn("step graph is not a DAG, unresolved steps will be appended in input order",
			zap.Error(err),
		)
	}

	ordered := make([]Step, 0, len(steps))
	emitted := make(map[string]bool, len(steps))

	for {
		progressed := false
		for _, s := range steps {
			if emitted[s.ID] {
				continue
			}
			// Self and dangling references can never be satisfied;
			// they fall through to the final append below.
			ready := true
			for _, dep := range s.DependsOn {
				if dep == s.ID || !known[dep] || !emitted[dep] {
					ready = false
					break
				}
			}
			if ready {
				ordered = append(ordered, s)
				emitted[s.ID] = true
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}

	// Safety fallback: anything still unemitted (cycles, dangling or
	// self references) goes to the end in original order.
	for _, s := range steps {
		if !emitted[s.ID] {
			ordered = append(ordered, s)
		}
	}
	return ordered
}

// checkAcyclic runs a topological sort over the dependency edges purely to
// detect cycles. Unknown references are excluded; they are handled by the
// fixed-point fallback.
func checkAcyclic(steps []Step) error {
	known := make(map[string]bool, len(steps))
	for _, s := range steps {
		known[s.ID] = true
	}

	var edges []toposort.Edge
	for _, s := range steps {
		if len(s.DependsOn) == 0 {
			edges = append(edges, toposort.Edge{nil, s.ID})
			continue
		}
		for _, dep := range s.DependsOn {
			if !known[dep] {
				continue
			}
			edges = append(edges, toposort.Edge{dep, s.ID})
		}
	}

	_, err := toposort.Toposort(edges)
	return err
}

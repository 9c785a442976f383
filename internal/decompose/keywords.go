package decompose

import (
	"sort"
	"strings"

	"github.com/taskmesh/taskmesh/internal/agent"
)

// complexityWeights assigns a fixed weight to each domain keyword.
// The complexity score averages the weights of the keywords present.
var complexityWeights = map[string]float64{
	"simple":       0.1,
	"basic":        0.1,
	"small":        0.2,
	"summarize":    0.3,
	"document":     0.3,
	"list":         0.2,
	"test":         0.4,
	"research":     0.5,
	"implement":    0.5,
	"design":       0.5,
	"build":        0.5,
	"analyze":      0.6,
	"deploy":       0.6,
	"secure":       0.6,
	"scale":        0.6,
	"refactor":     0.6,
	"integrate":    0.7,
	"optimize":     0.7,
	"concurrent":   0.7,
	"architecture": 0.7,
	"migrate":      0.8,
	"distributed":  0.8,
	"orchestrate":  0.8,
}

// capabilityWeights lists the weighted capability keywords per agent type.
// The same table backs the decomposer's type assignment and the
// allocator's heuristic capability match.
var capabilityWeights = map[agent.Type]map[string]float64{
	agent.TypeInteraction: {
		"chat": 0.6, "conversation": 0.7, "dialogue": 0.7,
		"respond": 0.5, "ask": 0.4, "user": 0.3,
	},
	agent.TypeProcessing: {
		"process": 0.6, "transform": 0.6, "compute": 0.6,
		"execute": 0.5, "convert": 0.5, "build": 0.5, "implement": 0.6,
	},
	agent.TypeKnowledge: {
		"knowledge": 0.7, "lookup": 0.5, "research": 0.7,
		"search": 0.5, "retrieve": 0.6, "learn": 0.4,
	},
	agent.TypeAnalysis: {
		"analyze": 0.8, "analysis": 0.8, "evaluate": 0.6,
		"measure": 0.5, "assess": 0.6, "investigate": 0.6, "architecture": 0.5,
	},
	agent.TypePlanning: {
		"plan": 0.7, "design": 0.6, "schedule": 0.5,
		"organize": 0.5, "coordinate": 0.6, "strategy": 0.6,
	},
	agent.TypeReporting: {
		"report": 0.8, "summarize": 0.6, "document": 0.6,
		"present": 0.5, "publish": 0.5, "write": 0.4,
	},
}

// buckets are the functional groups used by the medium-complexity strategy,
// in emission order.
var buckets = []struct {
	name     string
	agent    agent.Type
	keywords []string
}{
	{"design", agent.TypePlanning, []string{"design", "plan", "architecture", "organize"}},
	{"build", agent.TypeProcessing, []string{"build", "implement", "create", "develop", "integrate"}},
	{"test", agent.TypeProcessing, []string{"test", "verify", "validate", "check"}},
	{"deploy", agent.TypeProcessing, []string{"deploy", "release", "ship", "migrate"}},
	{"analyze", agent.TypeAnalysis, []string{"analyze", "analysis", "evaluate", "measure", "assess"}},
	{"document", agent.TypeReporting, []string{"document", "report", "summarize", "write"}},
}

// sequenceConnectors mark a sentence as ordered after its predecessor.
var sequenceConnectors = []string{
	"then", "next", "after", "afterward", "afterwards",
	"subsequently", "finally", "once", "followed by", "lastly",
}

// conditionalConnectors mark a sentence as conditionally ordered after its
// predecessor.
var conditionalConnectors = []string{"if ", "unless ", "otherwise", "in case"}

// CapabilityScore returns the weighted keyword match for a single agent
// type against the text, normalized to [0,1] by the type's total weight.
func CapabilityScore(typ agent.Type, text string) float64 {
	weights, ok := capabilityWeights[typ]
	if !ok {
		return 0
	}
	lower := strings.ToLower(text)
	var matched, total float64
	for kw, w := range weights {
		total += w
		if strings.Contains(lower, kw) {
			matched += w
		}
	}
	if total == 0 {
		return 0
	}
	return matched / total
}

// CapabilityProfile scores every agent type against the text and
// normalizes the scores to sum to 1. When nothing matches, the fallback
// type receives the full weight.
func CapabilityProfile(text string) map[agent.Type]float64 {
	raw := make(map[agent.Type]float64)
	var sum float64
	lower := strings.ToLower(text)
	for typ, weights := range capabilityWeights {
		var s float64
		for kw, w := range weights {
			if strings.Contains(lower, kw) {
				s += w
			}
		}
		raw[typ] = s
		sum += s
	}
	if sum == 0 {
		return map[agent.Type]float64{agent.FallbackType: 1}
	}
	for typ := range raw {
		raw[typ] /= sum
	}
	return raw
}

// DominantType returns the highest-scoring agent type for the text, with
// ties broken by type name for determinism.
func DominantType(text string) agent.Type {
	profile := CapabilityProfile(text)
	types := make([]agent.Type, 0, len(profile))
	for typ := range profile {
		types = append(types, typ)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	best := agent.FallbackType
	bestScore := -1.0
	for _, typ := range types {
		if profile[typ] > bestScore {
			best = typ
			bestScore = profile[typ]
		}
	}
	return best
}

// Capabilities returns the capability keywords of one agent type, sorted.
// Used to describe oracle candidates.
func Capabilities(typ agent.Type) []string {
	weights, ok := capabilityWeights[typ]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(weights))
	for kw := range weights {
		out = append(out, kw)
	}
	sort.Strings(out)
	return out
}

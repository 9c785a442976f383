// Package decompose turns a free-form task description into a
// dependency-ordered step graph with per-step agent-type assignments.
// Decomposition is a pure, deterministic function of its inputs and the
// static rule tables in keywords.go.
package decompose

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskmesh/taskmesh/internal/agent"
	"github.com/taskmesh/taskmesh/internal/task"
)

// Complexity thresholds selecting the decomposition strategy.
const (
	thresholdSentence = 0.3
	thresholdBucket   = 0.6
	thresholdPhased   = 0.8
)

// Decomposer builds decompositions from task descriptions.
type Decomposer struct {
	logger *zap.Logger
}

// New creates a Decomposer.
func New(logger *zap.Logger) *Decomposer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decomposer{logger: logger.With(zap.String("component", "decomposer"))}
}

// Decompose builds the step graph for a description. It never fails:
// malformed or empty input yields a minimal single-step decomposition.
// An empty taskID gets a generated one.
func (d *Decomposer) Decompose(taskID, description string, prio task.Priority) *Decomposition {
	if taskID == "" {
		taskID = uuid.NewString()
	}

	description = strings.TrimSpace(description)
	if description == "" {
		return d.minimal(taskID, description, prio)
	}

	sentences := splitSentences(description)
	complexity := Complexity(description)

	var steps []Step
	var deps []Dependency
	switch {
	case complexity < thresholdSentence:
		steps, deps = sentenceSteps(sentences, description, prio)
	case complexity < thresholdBucket:
		steps, deps = bucketSteps(sentences, description, prio)
		if len(steps) == 0 {
			steps, deps = sentenceSteps(sentences, description, prio)
		}
	case complexity < thresholdPhased:
		steps, deps = phaseSteps(description, prio, complexity, false)
	default:
		steps, deps = phaseSteps(description, prio, complexity, true)
	}

	if len(steps) == 0 {
		return d.minimal(taskID, description, prio)
	}

	steps = OrderSteps(steps, d.logger)

	assignments := make(map[string]agent.Type, len(steps))
	var total time.Duration
	for _, s := range steps {
		assignments[s.ID] = s.AgentType
		total += s.EstimatedDuration
	}

	d.logger.Debug("decomposed task",
		zap.String("task_id", taskID),
		zap.Float64("complexity", complexity),
		zap.Int("steps", len(steps)),
	)

	return &Decomposition{
		TaskID:            taskID,
		Steps:             steps,
		Complexity:        complexity,
		EstimatedDuration: total,
		Assignments:       assignments,
		Dependencies:      deps,
	}
}

// minimal is the safety decomposition for empty or unusable input.
func (d *Decomposer) minimal(taskID, description string, prio task.Priority) *Decomposition {
	if description == "" {
		description = "unspecified task"
	}
	step := Step{
		ID:                "s1",
		Description:       description,
		AgentType:         agent.FallbackType,
		EstimatedDuration: 500 * time.Millisecond,
		Priority:          prio,
	}
	return &Decomposition{
		TaskID:            taskID,
		Steps:             []Step{step},
		Complexity:        thresholdSentence, // default base when nothing matches
		EstimatedDuration: step.EstimatedDuration,
		Assignments:       map[string]agent.Type{step.ID: step.AgentType},
	}
}

// Complexity scores a description in [0,1]. The base is the mean weight of
// matched domain keywords (0.3 when nothing matches), scaled up by a
// length factor contributing up to +20% and an estimated-step-count factor
// contributing up to +30%, then capped at 1.0.
func Complexity(description string) float64 {
	lower := strings.ToLower(description)

	var sum float64
	hits := 0
	for kw, w := range complexityWeights {
		if strings.Contains(lower, kw) {
			sum += w
			hits++
		}
	}

	base := 0.3
	if hits > 0 {
		base = sum / float64(hits)
	}

	lengthFactor := float64(len(description)) / 100.0
	if lengthFactor > 2.0 {
		lengthFactor = 2.0
	}
	stepFactor := float64(len(splitSentences(description))) / 5.0
	if stepFactor > 3.0 {
		stepFactor = 3.0
	}

	score := base * (1 + 0.1*lengthFactor) * (1 + 0.1*stepFactor)
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// splitSentences breaks text on sentence terminators and newlines,
// dropping empties.
func splitSentences(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == ';' || r == '\n'
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// sentenceSteps emits one step per sentence with a single dominant agent
// type for the whole description. A SEQUENCE edge links sentence i to i+1
// whenever the following sentence opens with a sequencing connector; a
// conditional connector produces a CONDITIONAL edge instead.
func sentenceSteps(sentences []string, description string, prio task.Priority) ([]Step, []Dependency) {
	if len(sentences) == 0 {
		sentences = []string{description}
	}
	dominant := DominantType(description)

	steps := make([]Step, 0, len(sentences))
	var deps []Dependency
	for i, sentence := range sentences {
		id := fmt.Sprintf("s%d", i+1)
		step := Step{
			ID:                id,
			Description:       sentence,
			AgentType:         dominant,
			EstimatedDuration: textDuration(sentence),
			Priority:          prio,
		}
		if i > 0 {
			prev := fmt.Sprintf("s%d", i)
			switch {
			case hasConnector(sentence, conditionalConnectors):
				step.DependsOn = []string{prev}
				deps = append(deps, Dependency{From: prev, To: id, Kind: DepConditional})
			case hasConnector(sentence, sequenceConnectors):
				step.DependsOn = []string{prev}
				deps = append(deps, Dependency{From: prev, To: id, Kind: DepSequence})
			}
		}
		steps = append(steps, step)
	}
	return steps, deps
}

// bucketSteps groups sentences into functional buckets. Each matched
// bucket becomes one step whose agent type is chosen independently from
// the bucket's own text. Sibling buckets are linked with non-gating
// PARALLEL edges.
func bucketSteps(sentences []string, description string, prio task.Priority) ([]Step, []Dependency) {
	lower := strings.ToLower(description)

	var steps []Step
	var deps []Dependency
	for _, b := range buckets {
		if !containsAny(lower, b.keywords) {
			continue
		}

		var grouped []string
		for _, s := range sentences {
			if containsAny(strings.ToLower(s), b.keywords) {
				grouped = append(grouped, s)
			}
		}
		text := strings.Join(grouped, ". ")
		if text == "" {
			text = fmt.Sprintf("%s work for: %s", b.name, description)
		}

		typ := DominantType(text)
		if typ == agent.FallbackType {
			typ = b.agent
		}

		id := "bucket-" + b.name
		if len(steps) > 0 {
			deps = append(deps, Dependency{
				From: steps[len(steps)-1].ID,
				To:   id,
				Kind: DepParallel,
			})
		}
		steps = append(steps, Step{
			ID:                id,
			Description:       text,
			AgentType:         typ,
			EstimatedDuration: textDuration(text),
			Priority:          prio,
		})
	}
	return steps, deps
}

// phase describes one entry of the fixed high-complexity chains.
type phase struct {
	name   string
	prefix string
	agent  agent.Type
	base   time.Duration
}

var corePhases = []phase{
	{"planning", "Plan the approach for", agent.TypePlanning, time.Second},
	{"analysis", "Analyze requirements and constraints for", agent.TypeAnalysis, 2 * time.Second},
	{"execution", "Execute the main work for", agent.TypeProcessing, 3 * time.Second},
	{"validation", "Validate the results of", agent.TypeProcessing, 1500 * time.Millisecond},
	{"reporting", "Report the outcome of", agent.TypeReporting, time.Second},
}

var deepPhases = []phase{
	{"subtask-planning", "Break remaining work into subtasks for", agent.TypePlanning, time.Second},
	{"subtask-execution", "Execute the subtasks for", agent.TypeProcessing, 2 * time.Second},
	{"result-integration", "Integrate all results for", agent.TypeProcessing, 1500 * time.Millisecond},
}

// phaseSteps emits the fixed 5-phase chain, extended to 8 phases for deep
// decompositions. Every phase depends on its predecessor via SEQUENCE.
// The execution phases share the workspace resource and are additionally
// linked with a RESOURCE edge so the coordinator serializes them on it.
func phaseSteps(description string, prio task.Priority, complexity float64, deep bool) ([]Step, []Dependency) {
	phases := corePhases
	if deep {
		phases = append(append([]phase{}, corePhases...), deepPhases...)
	}

	scale := 1 + complexity
	steps := make([]Step, 0, len(phases))
	var deps []Dependency
	for i, p := range phases {
		step := Step{
			ID:                p.name,
			Description:       fmt.Sprintf("%s: %s", p.prefix, description),
			AgentType:         p.agent,
			EstimatedDuration: time.Duration(float64(p.base) * scale),
			Priority:          prio,
		}
		if i > 0 {
			prev := phases[i-1].name
			step.DependsOn = []string{prev}
			deps = append(deps, Dependency{From: prev, To: p.name, Kind: DepSequence})
		}
		if deep && (p.name == "execution" || p.name == "subtask-execution") {
			step.Metadata = map[string]string{MetaResource: "workspace"}
		}
		steps = append(steps, step)
	}
	if deep {
		deps = append(deps, Dependency{From: "execution", To: "subtask-execution", Kind: DepResource})
	}
	return steps, deps
}

// textDuration estimates a step's duration from its text length:
// 500ms plus 10ms per character, capped at 3s.
func textDuration(text string) time.Duration {
	n := len(text)
	if n > 250 {
		n = 250
	}
	return time.Duration(500+n*10) * time.Millisecond
}

// hasConnector matches single-word connectors on word boundaries and
// multi-word connectors as phrases, so "authenticate" never matches "then".
func hasConnector(sentence string, connectors []string) bool {
	lower := strings.ToLower(sentence)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return r == ' ' || r == ',' || r == ':'
	})
	for _, c := range connectors {
		if strings.ContainsAny(c, " ") {
			if strings.Contains(lower, c) {
				return true
			}
			continue
		}
		for _, w := range words {
			if w == strings.TrimSpace(c) {
				return true
			}
		}
	}
	return false
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

package agent

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Pool is the registry of live agents. It owns the exclusive reservation
// set: an agent ID is held by at most one in-flight task at a time.
// The pool is constructed explicitly and passed by reference; there is no
// process-wide registry.
type Pool struct {
	mu       sync.RWMutex
	agents   map[string]Agent
	reserved map[string]string // agentID -> holder (task or step ID)
	logger   *zap.Logger
}

// NewPool creates an empty pool.
func NewPool(logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		agents:   make(map[string]Agent),
		reserved: make(map[string]string),
		logger:   logger.With(zap.String("component", "agent_pool")),
	}
}

// Register adds an agent. Duplicate IDs are rejected.
func (p *Pool) Register(a Agent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.agents[a.ID()]; exists {
		return fmt.Errorf("agent %q already registered", a.ID())
	}
	p.agents[a.ID()] = a
	p.logger.Info("agent registered",
		zap.String("agent_id", a.ID()),
		zap.String("agent_type", string(a.Type())),
	)
	return nil
}

// Get returns the agent with the given ID.
func (p *Pool) Get(id string) (Agent, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	a, ok := p.agents[id]
	return a, ok
}

// Candidates returns agents that pass CanAccept and hold no reservation,
// sorted by ID so selection order is deterministic. A zero-value want
// matches every type.
func (p *Pool) Candidates(want Type) []Agent {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []Agent
	for id, a := range p.agents {
		if want != "" && a.Type() != want {
			continue
		}
		if _, held := p.reserved[id]; held {
			continue
		}
		if !a.CanAccept() {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Reserve places an exclusive hold on the agent for the given holder.
// Returns false if the agent is unknown or already held.
func (p *Pool) Reserve(agentID, holder string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.agents[agentID]; !ok {
		return false
	}
	if _, held := p.reserved[agentID]; held {
		return false
	}
	p.reserved[agentID] = holder
	return true
}

// Release drops the reservation on the agent. Idempotent: releasing an
// unheld agent is a no-op, so every exit path may call it safely.
func (p *Pool) Release(agentID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.reserved, agentID)
}

// IsReserved reports whether the agent is currently held.
func (p *Pool) IsReserved(agentID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, held := p.reserved[agentID]
	return held
}

// ReservedCount returns the number of held agents.
func (p *Pool) ReservedCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.reserved)
}

// AvgLoad returns the mean load score across all agents, 0 for an empty pool.
func (p *Pool) AvgLoad() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.agents) == 0 {
		return 0
	}
	var sum float64
	for _, a := range p.agents {
		sum += a.LoadScore()
	}
	return sum / float64(len(p.agents))
}

// AgentInfo is a read-only snapshot row for observability surfaces.
type AgentInfo struct {
	ID             string
	Type           Type
	Load           float64
	CompletionRate float64
	Reserved       bool
}

// Snapshot returns the current state of every agent, sorted by ID.
func (p *Pool) Snapshot() []AgentInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]AgentInfo, 0, len(p.agents))
	for id, a := range p.agents {
		_, held := p.reserved[id]
		out = append(out, AgentInfo{
			ID:             id,
			Type:           a.Type(),
			Load:           a.LoadScore(),
			CompletionRate: a.CompletionRate(),
			Reserved:       held,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Size returns the number of registered agents.
func (p *Pool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.agents)
}

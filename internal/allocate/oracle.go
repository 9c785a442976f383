package allocate

import (
	"context"
	"time"

	"github.com/taskmesh/taskmesh/internal/agent"
	"github.com/taskmesh/taskmesh/internal/task"
)

// Candidate describes one selectable agent in an oracle request.
type Candidate struct {
	AgentID        string
	Type           agent.Type
	Capabilities   []string
	Load           float64
	CompletionRate float64
	Active         int
}

// Request is the structured task description sent to the decision oracle.
type Request struct {
	TaskDescription string
	Priority        task.Priority
	Candidates      []Candidate
}

// Decision is the oracle's answer. SelectedIndex indexes into
// Request.Candidates; anything out of range is treated as oracle failure.
type Decision struct {
	SelectedIndex     int
	Confidence        float64
	Rationale         string
	PredictedDuration time.Duration
}

// Oracle is the optional external decision service consulted before the
// heuristic scorer. Implementations may call out to an LLM or any other
// service; the allocator bounds the call with its own timeout.
type Oracle interface {
	Decide(ctx context.Context, req Request) (Decision, error)
}

// DecideFunc answers one oracle request.
type DecideFunc func(ctx context.Context, req Request) (Decision, error)

// oracleCall carries a request and its private response channel.
type oracleCall struct {
	req        Request
	responseCh chan oracleAnswer
}

type oracleAnswer struct {
	decision Decision
	err      error
}

// ChannelOracle is an in-process Oracle that funnels requests through a
// buffered channel to a single answering goroutine, keeping the answer
// function free of locking concerns. Buffer the channel at roughly twice
// the allocation concurrency to avoid blocking callers.
type ChannelOracle struct {
	calls    chan oracleCall
	decideFn DecideFunc
	done     chan struct{}
}

// NewChannelOracle creates a ChannelOracle around the answer function.
func NewChannelOracle(bufferSize int, fn DecideFunc) *ChannelOracle {
	if bufferSize <= 0 {
		bufferSize = 8
	}
	return &ChannelOracle{
		calls:    make(chan oracleCall, bufferSize),
		decideFn: fn,
		done:     make(chan struct{}),
	}
}

// Start launches the answering goroutine. It serves requests until the
// context is cancelled.
func (o *ChannelOracle) Start(ctx context.Context) {
	go func() {
		defer close(o.done)
		for {
			select {
			case <-ctx.Done():
				return
			case call := <-o.calls:
				decision, err := o.decideFn(ctx, call.req)
				select {
				case call.responseCh <- oracleAnswer{decision: decision, err: err}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
}

// Decide submits a request and waits for the answer or context expiry.
func (o *ChannelOracle) Decide(ctx context.Context, req Request) (Decision, error) {
	call := oracleCall{req: req, responseCh: make(chan oracleAnswer, 1)}

	select {
	case o.calls <- call:
	case <-ctx.Done():
		return Decision{}, ctx.Err()
	case <-o.done:
		return Decision{}, context.Canceled
	}

	select {
	case ans := <-call.responseCh:
		return ans.decision, ans.err
	case <-ctx.Done():
		return Decision{}, ctx.Err()
	case <-o.done:
		return Decision{}, context.Canceled
	}
}

package scheduler

import (
	"context"
	"sync"
)

// Handle is the caller-visible future for one submitted task. It completes
// exactly once, with either a result or an error.
type Handle struct {
	taskID string
	once   sync.Once
	done   chan struct{}
	result string
	err    error
}

func newHandle(taskID string) *Handle {
	return &Handle{taskID: taskID, done: make(chan struct{})}
}

// TaskID returns the ID of the submitted task.
func (h *Handle) TaskID() string { return h.taskID }

// Done returns a channel closed when the task reaches a terminal state.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the task completes or the context expires.
func (h *Handle) Wait(ctx context.Context) (string, error) {
	select {
	case <-h.done:
		return h.result, h.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// complete resolves the handle. Later calls are no-ops.
func (h *Handle) complete(result string, err error) {
	h.once.Do(func() {
		h.result = result
		h.err = err
		close(h.done)
	})
}

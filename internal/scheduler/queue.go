package scheduler

import (
	"container/heap"
	"time"

	"github.com/taskmesh/taskmesh/internal/task"
)

// State is the lifecycle of a scheduled task.
type State int

const (
	StateQueued State = iota
	StateExecuting
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateExecuting:
		return "executing"
	case StateCompleted:
		return "completed"
	default:
		return "failed"
	}
}

// scheduled is the runtime wrapper around one submitted task.
type scheduled struct {
	task       task.Task
	handle     *Handle
	state      State
	retryCount int
	enqueuedAt time.Time
	startedAt  time.Time
	endedAt    time.Time
}

// effectivePriority is the aging priority function, recomputed at every
// comparison: base weight plus one point per second of queue wait, minus a
// 100-point penalty per retry. Aging prevents starvation of low-priority
// tasks; the retry term demotes flaky ones.
func (s *scheduled) effectivePriority(now time.Time) int {
	wait := int(now.Sub(s.enqueuedAt) / time.Second)
	return s.task.Priority.Weight() + wait - s.retryCount*100
}

// readyQueue is a max-heap over effective priority. The comparison clock
// is snapshotted once per heap operation: within a single Push or Pop all
// comparisons agree, so the heap invariant cannot be corrupted by the
// wall clock moving between comparisons. Between operations, aging takes
// effect because every dispatch pops with a fresh snapshot.
type readyQueue struct {
	items []*scheduled
	now   time.Time
}

func newReadyQueue() *readyQueue {
	return &readyQueue{}
}

func (q *readyQueue) Len() int { return len(q.items) }

func (q *readyQueue) Less(i, j int) bool {
	pi := q.items[i].effectivePriority(q.now)
	pj := q.items[j].effectivePriority(q.now)
	if pi != pj {
		return pi > pj
	}
	// Equal priority: older submission wins.
	return q.items[i].enqueuedAt.Before(q.items[j].enqueuedAt)
}

func (q *readyQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
}

func (q *readyQueue) Push(x any) {
	q.items = append(q.items, x.(*scheduled))
}

func (q *readyQueue) Pop() any {
	old := q.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	q.items = old[:n-1]
	return item
}

// push enqueues with a fresh clock snapshot.
func (q *readyQueue) push(s *scheduled) {
	q.now = time.Now()
	heap.Push(q, s)
}

// pop removes and returns the highest-effective-priority task, nil when
// empty. Re-establishes the heap order under a fresh clock snapshot first
// so aging is applied at dispatch time.
func (q *readyQueue) pop() *scheduled {
	if len(q.items) == 0 {
		return nil
	}
	q.now = time.Now()
	heap.Init(q)
	return heap.Pop(q).(*scheduled)
}

// drain empties the queue and returns the remaining entries.
func (q *readyQueue) drain() []*scheduled {
	out := q.items
	q.items = nil
	return out
}

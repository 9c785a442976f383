package coordinator

import (
	"sync"
)

// resourceLocks provides per-resource mutual exclusion for concurrently
// executing steps: steps naming different resources proceed in parallel,
// steps naming the same resource serialize. A step holds at most one
// resource, so no ordering discipline across resources is needed.
type resourceLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newResourceLocks() *resourceLocks {
	return &resourceLocks{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the mutex for one resource, creating it on first use.
func (r *resourceLocks) lock(resource string) {
	r.mu.Lock()
	m, ok := r.locks[resource]
	if !ok {
		m = &sync.Mutex{}
		r.locks[resource] = m
	}
	r.mu.Unlock()

	m.Lock()
}

// unlock releases the mutex for one resource.
func (r *resourceLocks) unlock(resource string) {
	r.mu.Lock()
	m, ok := r.locks[resource]
	r.mu.Unlock()

	if ok {
		m.Unlock()
	}
}

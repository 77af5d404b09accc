// Package util holds small concurrency primitives shared across the core
// packages.
package util

import "sync"

// CondMonitor lets callers acquire exclusive access to a single int64-keyed
// critical section without taking a lock over every other key: Enter(id)
// blocks only while another goroutine is inside Enter(id)..Release() for
// the *same* id. It is built from `shards` independent buckets (chosen by
// id modulo shards); only ids that fall in the same bucket share a mutex,
// and that mutex is held just long enough to claim or release an id.
type CondMonitor struct {
	shards []*monitorShard
	n      int64
}

type monitorShard struct {
	mu     sync.Mutex
	cond   *sync.Cond
	active map[int64]bool
}

// NewCondMonitor creates a CondMonitor with the given number of shards.
// shards must be >= 1.
func NewCondMonitor(shards int) *CondMonitor {
	if shards < 1 {
		shards = 1
	}
	m := &CondMonitor{shards: make([]*monitorShard, shards), n: int64(shards)}
	for i := range m.shards {
		s := &monitorShard{active: map[int64]bool{}}
		s.cond = sync.NewCond(&s.mu)
		m.shards[i] = s
	}
	return m
}

// Releaser releases the critical section acquired by Enter.
type Releaser struct {
	shard *monitorShard
	id    int64
}

// Release exits the critical section for id, waking any goroutine blocked
// in Enter(id).
func (r Releaser) Release() {
	r.shard.mu.Lock()
	delete(r.shard.active, r.id)
	r.shard.cond.Broadcast()
	r.shard.mu.Unlock()
}

// Enter blocks until no other goroutine holds the critical section for id,
// then claims it and returns a Releaser.
func (m *CondMonitor) Enter(id int64) Releaser {
	idx := id % m.n
	if idx < 0 {
		idx += m.n
	}
	s := m.shards[idx]
	s.mu.Lock()
	for s.active[id] {
		s.cond.Wait()
	}
	s.active[id] = true
	s.mu.Unlock()
	return Releaser{shard: s, id: id}
}

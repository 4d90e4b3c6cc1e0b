// Package task implements the runtime's work-stealing queue: a shard-per-worker
// FIFO for opaque deferred work items, with guaranteed drainage at shutdown.
package task

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Thunk is a movable unit of work.
type Thunk func()

// shard is a deque protected by a try-lock, giving optimistic lock-free
// latency in the common case.
type shard struct {
	mu    sync.Mutex
	items []Thunk
}

// tryPop moves the front of the shard into the return value. It fails fast on
// contention or emptiness.
func (s *shard) tryPop() (Thunk, bool) {
	if !s.mu.TryLock() {
		return nil, false
	}
	defer s.mu.Unlock()
	if len(s.items) == 0 {
		return nil, false
	}
	t := s.items[0]
	s.items[0] = nil
	s.items = s.items[1:]
	return t, true
}

// tryPush appends to the shard, failing fast on contention.
func (s *shard) tryPush(t Thunk) bool {
	if !s.mu.TryLock() {
		return false
	}
	defer s.mu.Unlock()
	s.items = append(s.items, t)
	return true
}

// eject empties the shard under an exclusive lock.
func (s *shard) eject() []Thunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.items
	s.items = nil
	return items
}

// Queue is a roughly-FIFO thread-safe task-stealing queue. Two monotonic
// counters pick a starting shard for push and pop, spreading contention.
//
// After SignalDone, Push returns false and no new items can appear.
// DrainAndEject returns every item ever successfully pushed and never
// observed by TryPop; none is lost, none is duplicated.
type Queue struct {
	shards []shard

	pushIndex atomic.Uint64
	popIndex  atomic.Uint64

	inPush atomic.Int64
	done   atomic.Bool
}

// New creates a queue with the given number of shards. A shard count of zero
// is raised to one.
func New(shardCount int) *Queue {
	if shardCount < 1 {
		shardCount = 1
	}
	return &Queue{shards: make([]shard, shardCount)}
}

// Done reports whether SignalDone has been called.
func (q *Queue) Done() bool { return q.done.Load() }

// Push enqueues a thunk, retrying shards round-robin until one accepts.
// Returns false, without enqueueing, once done has been signalled.
//
// The inPush counter closes the race where a pusher sees done==false and
// inserts an item after DrainAndEject has swept the shards: the drain
// busy-waits on the counter after setting done.
func (q *Queue) Push(t Thunk) bool {
	q.inPush.Add(1)
	defer q.inPush.Add(-1)
	if q.done.Load() {
		return false
	}
	for {
		offset := q.pushIndex.Add(1)
		for i := range q.shards {
			idx := (offset + uint64(i)) % uint64(len(q.shards))
			if q.shards[idx].tryPush(t) {
				return true
			}
		}
	}
}

// TryPop attempts to pop one thunk, round-robin across shards starting at a
// per-call monotonic index. Non-blocking.
func (q *Queue) TryPop() (Thunk, bool) {
	offset := q.popIndex.Add(1)
	for i := range q.shards {
		idx := (offset + uint64(i)) % uint64(len(q.shards))
		if t, ok := q.shards[idx].tryPop(); ok {
			return t, true
		}
	}
	return nil, false
}

// SignalDone marks the queue closed for pushes.
func (q *Queue) SignalDone() { q.done.Store(true) }

// DrainAndEject signals done, waits out any pushes already in flight, and
// returns the concatenation of every shard's remaining items.
func (q *Queue) DrainAndEject() []Thunk {
	q.SignalDone()
	var out []Thunk
	for {
		for i := range q.shards {
			out = append(out, q.shards[i].eject()...)
		}
		if q.inPush.Load() == 0 {
			break
		}
		runtime.Gosched()
	}
	// One final sweep: a racing Push may have landed between the last eject
	// and the counter reaching zero.
	for i := range q.shards {
		out = append(out, q.shards[i].eject()...)
	}
	return out
}

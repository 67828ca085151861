// Package expiry tracks live uploads ordered by the expiration embedded in
// their IDs so that a sweeper can find everything that is due.
package expiry

import (
	"container/heap"
	"sync"

	"github.com/dharsanguruparan/expiredrop/internal/uploadid"
)

// Queue is a min-heap of upload IDs keyed on expiration. A *Queue is safe
// for concurrent use; every copy of the pointer sees the same entries.
type Queue struct {
	mu      sync.Mutex
	entries entryHeap
}

type entry struct {
	id      uploadid.ID
	expires uint64
}

// NewQueue returns an empty Queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push adds id. The same ID may be pushed more than once and is then
// returned once per push.
func (q *Queue) Push(id uploadid.ID) {
	e := entry{id: id, expires: id.Expires()}
	q.mu.Lock()
	defer q.mu.Unlock()
	heap.Push(&q.entries, e)
}

// PushAll adds every id under a single lock acquisition. It is meant for
// rebuilding the queue from a storage listing at start up.
func (q *Queue) PushAll(ids ...uploadid.ID) {
	if len(ids) == 0 {
		return
	}
	add := make([]entry, len(ids))
	for i, id := range ids {
		add[i] = entry{id: id, expires: id.Expires()}
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, add...)
	heap.Init(&q.entries)
}

// PopExpired removes and returns every ID whose expiration is at or before
// asOf, soonest first. Returned IDs are gone from the queue for good.
func (q *Queue) PopExpired(asOf uint64) []uploadid.ID {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []uploadid.ID
	for len(q.entries) > 0 && q.entries[0].expires <= asOf {
		e := heap.Pop(&q.entries).(entry)
		out = append(out, e.id)
	}
	return out
}

// Next returns the ID that expires soonest without removing it.
func (q *Queue) Next() (uploadid.ID, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return uploadid.ID{}, false
	}
	return q.entries[0].id, true
}

// Len returns the number of tracked IDs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// entryHeap implements heap.Interface.
type entryHeap []entry

func (h entryHeap) Len() int           { return len(h) }
func (h entryHeap) Less(i, j int) bool { return h[i].expires < h[j].expires }
func (h entryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) { *h = append(*h, x.(entry)) }

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

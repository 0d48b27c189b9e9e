// Package queue implements the matchmaking waiting list.
//
// Enqueue only records the player; pairing is a separate serialized step so a
// cancellation arriving between enqueue and the next pairing pass still pulls
// the player out. Run drives that pass on a fixed tick, popping the two oldest
// waiters per pair in strict FIFO order.
package queue

import (
	"context"
	"sync"
	"time"
)

// Pair is two matched player IDs in queue order.
type Pair struct {
	First  string
	Second string
}

// Queue is a FIFO matchmaking queue. The zero value is not usable; use New.
type Queue struct {
	mu      sync.Mutex
	waiting []string
	index   map[string]struct{}
	onPair  func(Pair)
}

// New builds a queue that invokes onPair for every match formed. onPair runs
// outside the queue lock, from whichever goroutine drives the pairing pass.
func New(onPair func(Pair)) *Queue {
	return &Queue{
		index:  make(map[string]struct{}),
		onPair: onPair,
	}
}

// Enqueue adds the player to the waiting list. No pairing happens here: the
// player stays cancellable until the next pairing pass. Enqueueing a player
// already in the queue is a no-op: no duplicate entry, no position change.
func (q *Queue) Enqueue(playerID string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.index[playerID]; ok {
		return
	}
	q.waiting = append(q.waiting, playerID)
	q.index[playerID] = struct{}{}
}

// Cancel removes a waiting player. Unknown or already-paired players are a
// no-op: a pairing that has fired stays fired.
func (q *Queue) Cancel(playerID string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.index[playerID]; !ok {
		return
	}
	delete(q.index, playerID)
	for i, id := range q.waiting {
		if id == playerID {
			q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
			break
		}
	}
}

// TryPair pops the two oldest waiters and hands them to the pair callback.
// It reports whether a pair formed; callers drain the queue by looping until
// it returns false.
func (q *Queue) TryPair() bool {
	q.mu.Lock()
	if len(q.waiting) < 2 {
		q.mu.Unlock()
		return false
	}
	first, second := q.waiting[0], q.waiting[1]
	q.waiting = q.waiting[2:]
	delete(q.index, first)
	delete(q.index, second)
	q.mu.Unlock()

	if q.onPair != nil {
		q.onPair(Pair{First: first, Second: second})
	}
	return true
}

// Run drives the pairing pass on the given interval until ctx is cancelled.
func (q *Queue) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for q.TryPair() {
			}
		}
	}
}

// Waiting reports how many players are queued.
func (q *Queue) Waiting() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}

// Contains reports whether the player is currently waiting.
func (q *Queue) Contains(playerID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.index[playerID]
	return ok
}

package conveyor

import (
	"runtime"
	"sync/atomic"
)

// removalQueue is an unbounded lock-free multi-producer single-consumer
// queue of slot indices pending removal. Any goroutine may push mid-
// iteration; the single consumer is the unlock transition, which drains the
// queue under the iterable's transition mutex.
type removalNode struct {
	index int
	next  atomic.Pointer[removalNode]
}

type removalQueue struct {
	head atomic.Pointer[removalNode]
	tail atomic.Pointer[removalNode]
}

func newRemovalQueue() *removalQueue {
	sentinel := &removalNode{}
	q := &removalQueue{}
	q.head.Store(sentinel)
	q.tail.Store(sentinel)
	return q
}

// push appends an index. Safe for concurrent producers.
func (q *removalQueue) push(index int) {
	newNode := &removalNode{index: index}
	var backoff uint8
	for {
		tailNode := q.tail.Load()
		next := tailNode.next.Load()
		if next == nil {
			if tailNode.next.CompareAndSwap(nil, newNode) {
				// Tail update may be raced by a helping producer; either way
				// it lands eventually.
				q.tail.CompareAndSwap(tailNode, newNode)
				return
			}
		} else {
			// Help a stalled producer finish its tail update.
			q.tail.CompareAndSwap(tailNode, next)
		}
		if backoff < 10 {
			backoff++
		}
		for i := 0; i < 1<<backoff; i++ {
			runtime.Gosched()
		}
	}
}

// drain removes and returns every queued index. Single consumer only.
func (q *removalQueue) drain() []int {
	var out []int
	for {
		head := q.head.Load()
		next := head.next.Load()
		if next == nil {
			return out
		}
		q.head.Store(next)
		out = append(out, next.index)
	}
}

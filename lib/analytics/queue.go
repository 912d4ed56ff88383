package analytics

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// qnode represents a single element in the intake queue
type qnode struct {
	value *Event
	next  atomic.Pointer[qnode]
}

// eventQueue is a lock-free multi-producer single-consumer queue carrying
// recorded events from any goroutine to the recorder's consumer goroutine.
// Producers never block, so Record stays cheap on hot paths; there is no
// strict FIFO guarantee under concurrent pushes, which is irrelevant here
// because the ring only aggregates counts.
type eventQueue struct {
	head   atomic.Pointer[qnode]
	tail   atomic.Pointer[qnode]
	out    chan *Event
	closed atomic.Bool

	// Condition variable for efficient waiting
	mu   sync.Mutex
	cond *sync.Cond
}

// newEventQueue creates the queue and starts its consumer pump
func newEventQueue() *eventQueue {
	// Sentinel node so producers and the consumer never contend on nil
	sentinel := &qnode{}

	q := &eventQueue{
		out: make(chan *Event),
	}
	q.cond = sync.NewCond(&q.mu)
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	go q.pump()
	return q
}

// push adds an event to the queue.
// Returns true if the event was added, or false if the queue is closed.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (q *eventQueue) push(value *Event) bool {
	if value == nil || q.closed.Load() {
		return false
	}

	newNode := &qnode{value: value}

	var backoff uint8
	for {
		tailNode := q.tail.Load()

		next := tailNode.next.Load()
		if next == nil {
			// The tail has no next node yet, try to append our node
			if tailNode.next.CompareAndSwap(nil, newNode) {
				// Appended; the tail CAS may fail if another producer
				// helps update it, which is fine
				q.tail.CompareAndSwap(tailNode, newNode)
				q.cond.Signal()
				return true
			}
		} else {
			// Help update the tail pointer for a producer that appended
			// but has not updated the tail yet
			q.tail.CompareAndSwap(tailNode, next)
		}

		// Exponential backoff under contention: spin first, then yield
		if backoff < 10 {
			backoff++
			for i := 0; i < 1<<backoff; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// pump continuously moves events from the linked list to the output channel
func (q *eventQueue) pump() {
	defer close(q.out)

	for {
		hasItems := false

		for {
			head := q.head.Load()
			next := head.next.Load()
			if next == nil {
				break
			}

			hasItems = true
			value := next.value

			// Move head pointer to free the consumed node
			q.head.Store(next)

			q.out <- value
			next.value = nil
		}

		if !hasItems && q.closed.Load() {
			return
		}

		if !hasItems {
			q.mu.Lock()
			// Double-check after acquiring the lock
			head := q.head.Load()
			if head.next.Load() == nil && !q.closed.Load() {
				q.cond.Wait()
			}
			q.mu.Unlock()
		}
	}
}

// recv returns the receive side of the queue. The channel is closed after
// close() once all pending events were delivered.
func (q *eventQueue) recv() <-chan *Event {
	return q.out
}

// close stops the queue; pending events are still delivered
func (q *eventQueue) close() {
	q.closed.Store(true)
	q.cond.Signal()
}

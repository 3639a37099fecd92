/**
 * Copyright (c) 2019, The Selene Authors.
 *
 * Permission to use, copy, modify, and/or distribute this software for any
 * purpose with or without fee is hereby granted, provided that the above
 * copyright notice and this permission notice appear in all copies.
 *
 * THE SOFTWARE IS PROVIDED "AS IS" AND THE AUTHOR DISCLAIMS ALL WARRANTIES
 * WITH REGARD TO THIS SOFTWARE INCLUDING ALL IMPLIED WARRANTIES OF
 * MERCHANTABILITY AND FITNESS. IN NO EVENT SHALL THE AUTHOR BE LIABLE FOR
 * ANY SPECIAL, DIRECT, INDIRECT, OR CONSEQUENTIAL DAMAGES OR ANY DAMAGES
 * WHATSOEVER RESULTING FROM LOSS OF USE, DATA OR PROFITS, WHETHER IN AN
 * ACTION OF CONTRACT, NEGLIGENCE OR OTHER TORTIOUS ACTION, ARISING OUT OF
 * OR IN CONNECTION WITH THE USE OR PERFORMANCE OF THIS SOFTWARE.
 */

package concurrent

import (
	"errors"
	"sync"
	"time"

	"github.com/gammazero/deque"
)

var (
	// ErrQueueClosed is returned by Push to indicate the queue cannot accept the
	// new element because it is closed.
	ErrQueueClosed = errors.New("queue: closed")

	// ErrQueuePollTimeout is returned by Poll to indicate the poll doesn't find
	// an element within timeout.
	ErrQueuePollTimeout = errors.New("queue: poll timeout")
)

// Queue implements container which stores a collection of objects.
// Implementations must be thread-safe. That is, they need to allow concurrent
// accesses.
type Queue interface {
	// Push inserts the specified element at the tail of this queue. Return nil if
	// the element is successfully inserted. Note that element cannot be nil.
	Push(element interface{}) error

	// Poll pops one element from the head of this queue. When the queue is
	// empty, Poll blocks until an element arrives, the queue is closed (in which
	// case it returns nil, nil), or timeout elapses (in which case it returns
	// nil, ErrQueuePollTimeout). A zero timeout means no timeout.
	Poll(timeout time.Duration) (interface{}, error)

	// Empty returns true if the queue contains no elements.
	Empty() bool

	// Close stops queue to accept new elements. Elements that were pushed to the
	// queue are still available via Poll. Calls to Push will return
	// ErrQueueClosed. Once the queue becomes empty, any calls to Poll will
	// immediately return with nil.
	Close()
}

// actionQueue is the default Queue used by WorkerPoolExecutor. Elements are
// stored in a deque guarded by a mutex; Poll blocks on a condition variable.
type actionQueue struct {
	mutex    sync.Mutex
	elements deque.Deque

	// Condition variable for Poll to wait for Push; set to nil once the queue is
	// closed.
	pollCond *sync.Cond
}

var _ Queue = (*actionQueue)(nil)

func newActionQueue() *actionQueue {
	queue := &actionQueue{}
	queue.pollCond = sync.NewCond(&queue.mutex)
	return queue
}

// Push implements Queue.
func (queue *actionQueue) Push(element interface{}) error {
	mutex := &queue.mutex
	mutex.Lock()

	cond := queue.pollCond
	if cond == nil {
		mutex.Unlock()
		return ErrQueueClosed
	}

	queue.elements.PushBack(element)
	cond.Signal()

	mutex.Unlock()

	return nil
}

// Poll implements Queue. The timed wait is implemented with a timer that
// broadcasts on the condition variable at the deadline; waiters woken without
// an element re-check the deadline before waiting again.
func (queue *actionQueue) Poll(timeout time.Duration) (interface{}, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	mutex := &queue.mutex
	mutex.Lock()

	for queue.elements.Len() == 0 {
		cond := queue.pollCond
		if cond == nil {
			// Closed and drained.
			mutex.Unlock()
			return nil, nil
		}

		if timeout <= 0 {
			cond.Wait()
			continue
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			mutex.Unlock()
			return nil, ErrQueuePollTimeout
		}

		timer := time.AfterFunc(remaining, cond.Broadcast)
		cond.Wait()
		timer.Stop()
	}

	element := queue.elements.PopFront()
	mutex.Unlock()

	return element, nil
}

// Empty implements Queue.
func (queue *actionQueue) Empty() bool {
	mutex := &queue.mutex
	mutex.Lock()
	empty := queue.elements.Len() == 0
	mutex.Unlock()
	return empty
}

// Close implements Queue.
func (queue *actionQueue) Close() {
	mutex := &queue.mutex
	mutex.Lock()
	cond := queue.pollCond
	if cond != nil {
		// Unblock current waiters.
		cond.Broadcast()
		queue.pollCond = nil
	}
	mutex.Unlock()
}

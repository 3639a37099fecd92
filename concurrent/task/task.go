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

// Package task provides a composable asynchronous task primitive: a
// single-assignment container for an eventual result, error or cancellation,
// with chainable continuations that may run on caller-selected executors.
//
// A Task finishes exactly once, in one of three ways: with a result, with an
// error ("faulted"), or cancelled. Consumers attach continuations with the
// ContinueWith family of methods; each registration produces a new downstream
// Task, which enables arbitrary chaining. Producers either use one of the
// pre-resolved constructors, run a block on an executor with FromExecutor, or
// drive a pending task by hand through a CompletionSource.
package task

import (
	"bytes"
	"log"
	"runtime"
	"sync"

	"github.com/botobag/selene/concurrent"
)

// A Block performs the work behind a task created by FromExecutor. The
// returned value becomes the result of the task; a returned error faults it. A
// returned *Task is unwrapped: the outer task adopts the inner task's terminal
// state once it finishes.
type Block func() (interface{}, error)

// status is the state tag of a Task. A task starts in statusPending and
// transitions exactly once to one of the terminal states; the transition is
// one-way and the terminal payload never changes afterwards.
type status int

const (
	statusPending status = iota
	statusCompleted
	statusFaulted
	statusCancelled
)

// Task is the consumer view of an asynchronous operation. It has methods to
// inspect the state of the operation and to add continuations to be run once
// the operation finishes.
//
// A Task may be shared freely between goroutines.
type Task struct {
	// mutex guards status, result, err, continuations and cond. It is the single
	// synchronization point for the task: completion and continuation
	// registration both go through it, so no continuation is ever lost and none
	// fires more than once.
	mutex sync.Mutex

	status status
	result interface{}
	err    error

	// Continuations registered while the task was pending, in registration
	// order. Collected (and set to nil) by the completing goroutine, which
	// dispatches them in the same order.
	continuations []*continuation

	// cond is created lazily by the first Wait on a pending task and broadcast
	// on completion.
	cond *sync.Cond
}

// FromResult creates a task that has already completed with the given result.
func FromResult(result interface{}) *Task {
	return &Task{status: statusCompleted, result: result}
}

// FromError creates a task that has already faulted with the given error.
func FromError(err error) *Task {
	return &Task{status: statusFaulted, err: err}
}

// FromCancelled creates a task that is already cancelled.
func FromCancelled() *Task {
	return &Task{status: statusCancelled}
}

// FromExecutor submits block to executor and returns a task that finishes with
// the block's outcome. See Block for how the outcome is interpreted; in
// particular a *Task returned from block defers completion of the returned
// task until the inner task finishes (recursively).
//
// A panic inside block is caught and faults the returned task. If the executor
// rejects the submission, the returned task faults with the rejection error.
func FromExecutor(executor concurrent.Executor, block Block) *Task {
	return FromExecutorToken(executor, block, nil)
}

// FromExecutorToken is like FromExecutor but additionally observes a
// cancellation token: if token is already cancelled, or becomes cancelled
// before the block starts, the returned task is cancelled and block is never
// invoked.
func FromExecutorToken(executor concurrent.Executor, block Block, token *CancellationToken) *Task {
	if token != nil && token.Cancelled() {
		return FromCancelled()
	}

	t := &Task{}
	if err := executor.Submit(func() {
		if token != nil && token.Cancelled() {
			t.trySet(statusCancelled, nil, nil, 0)
			return
		}

		result, err := func() (result interface{}, err error) {
			defer func() {
				if r := recover(); r != nil {
					err = newPanicError(r)
				}
			}()
			return block()
		}()
		t.finish(result, err, 0)
	}); err != nil {
		t.trySet(statusFaulted, nil, err, 0)
	}

	return t
}

// Result returns the result of a successfully completed task, or nil.
func (t *Task) Result() interface{} {
	t.mutex.Lock()
	result := t.result
	t.mutex.Unlock()
	return result
}

// Err returns the error of a faulted task, or nil.
func (t *Task) Err() error {
	t.mutex.Lock()
	err := t.err
	t.mutex.Unlock()
	return err
}

// Completed reports whether the task finished, regardless of outcome: with a
// result, with an error, or cancelled.
func (t *Task) Completed() bool {
	t.mutex.Lock()
	completed := t.status != statusPending
	t.mutex.Unlock()
	return completed
}

// Faulted reports whether the task finished due to an error.
func (t *Task) Faulted() bool {
	t.mutex.Lock()
	faulted := t.status == statusFaulted
	t.mutex.Unlock()
	return faulted
}

// Cancelled reports whether the task has been cancelled.
func (t *Task) Cancelled() bool {
	t.mutex.Lock()
	cancelled := t.status == statusCancelled
	t.mutex.Unlock()
	return cancelled
}

// Wait blocks the calling goroutine until the task finishes.
//
// Wait never consumes an executor worker slot; it only parks the calling
// goroutine. Calling it from inside a continuation dispatch can starve or
// deadlock the executor running the continuation, so a warning is logged in
// that case before blocking.
func (t *Task) Wait() {
	t.mutex.Lock()
	if t.status != statusPending {
		t.mutex.Unlock()
		return
	}

	if calledFromDispatch() {
		log.Printf("task: Wait called from inside a continuation dispatch; " +
			"this can starve the executor running the continuation")
	}

	if t.cond == nil {
		t.cond = sync.NewCond(&t.mutex)
	}
	for t.status == statusPending {
		t.cond.Wait()
	}
	t.mutex.Unlock()
}

// dispatchMarker appears in a goroutine's stack while it is running a
// continuation block.
var dispatchMarker = []byte("task.(*continuation).run(")

// calledFromDispatch reports whether the current goroutine is inside the
// continuation engine, by inspecting its own stack.
func calledFromDispatch() bool {
	buf := make([]byte, 16384)
	n := runtime.Stack(buf, false)
	return bytes.Contains(buf[:n], dispatchMarker)
}

// trySet transitions the task from pending to the given terminal state. It
// returns false, changing nothing, if the task already finished; completion is
// exactly-once. On a successful transition it wakes waiters and dispatches the
// queued continuations in registration order. depth counts how many
// continuations the current call chain has already run inline (see dispatch).
func (t *Task) trySet(s status, result interface{}, err error, depth int) bool {
	t.mutex.Lock()
	if t.status != statusPending {
		t.mutex.Unlock()
		return false
	}

	t.status = s
	t.result = result
	t.err = err

	continuations := t.continuations
	t.continuations = nil

	if t.cond != nil {
		t.cond.Broadcast()
	}
	t.mutex.Unlock()

	for _, c := range continuations {
		t.dispatch(c, depth)
	}
	return true
}

// finish resolves the task from a block outcome, applying the unwrapping rule
// for *Task results.
func (t *Task) finish(result interface{}, err error, depth int) {
	if err != nil {
		t.trySet(statusFaulted, nil, err, depth)
		return
	}
	if inner, ok := result.(*Task); ok && inner != nil {
		t.adopt(inner, depth)
		return
	}
	t.trySet(statusCompleted, result, nil, depth)
}

// adopt arranges for the task to take on the terminal state of inner once
// inner finishes. A chain of tasks each resolving to another task therefore
// collapses, link by link, into the outermost one.
func (t *Task) adopt(inner *Task, depth int) {
	c := &continuation{adopt: t}

	inner.mutex.Lock()
	if inner.status == statusPending {
		inner.continuations = append(inner.continuations, c)
		inner.mutex.Unlock()
		return
	}
	inner.mutex.Unlock()

	inner.dispatch(c, depth)
}

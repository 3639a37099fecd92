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

package task

import (
	"runtime"
	"sync"

	"github.com/botobag/selene/concurrent"
)

// A ContinuationBlock is a continuation for a task. It receives the finished
// antecedent task, which it can inspect through Result, Err, Faulted and
// Cancelled. The returned value (or error) resolves the downstream task the
// same way a Block resolves a task created by FromExecutor, including the
// unwrapping rule for *Task return values.
type ContinuationBlock func(t *Task) (interface{}, error)

// A continuation pairs a registered block with the executor and cancellation
// token it was registered with, plus the downstream task that receives the
// block's outcome.
type continuation struct {
	block ContinuationBlock

	// Executor to run block on; nil selects the default execution policy (see
	// dispatch).
	executor concurrent.Executor

	// Optional cancellation token observed at dispatch time
	token *CancellationToken

	// When set, block only runs if the antecedent completed successfully; a
	// fault or cancellation propagates verbatim to next.
	successOnly bool

	// The downstream task resolved by the outcome of block
	next *Task

	// adopt, when non-nil, marks an internal continuation that copies the
	// antecedent's terminal state into the given task (unwrapping). The other
	// fields are unused.
	adopt *Task
}

// maxInlineDispatchDepth bounds how many continuations one call chain may run
// synchronously before further dispatches are offloaded to the background
// executor. This bounds stack growth for long synchronous chains without
// changing dispatch order.
const maxInlineDispatchDepth = 20

var (
	backgroundExecutorOnce sync.Once
	backgroundExecutor     concurrent.Executor
)

// BackgroundExecutor returns the shared worker pool executor that runs
// continuations registered without an executor once the inline dispatch depth
// of a call chain exceeds its bound. It is created on first use with one
// worker per available CPU.
func BackgroundExecutor() concurrent.Executor {
	backgroundExecutorOnce.Do(func() {
		executor, err := concurrent.NewWorkerPoolExecutor(concurrent.WorkerPoolExecutorConfig{
			MaxPoolSize: uint32(runtime.GOMAXPROCS(-1)),
		})
		if err != nil {
			panic(err)
		}
		backgroundExecutor = executor
	})
	return backgroundExecutor
}

// ContinueWith registers block to run once the task finishes, using the
// default execution policy: the block runs synchronously on whichever
// goroutine finishes the task (or on the caller's goroutine when the task
// already finished), unless the inline dispatch depth of the call chain
// exceeds its bound, in which case it runs on BackgroundExecutor.
//
// The returned task finishes with the outcome of block.
func (t *Task) ContinueWith(block ContinuationBlock) *Task {
	return t.continueWith(nil, block, nil, false)
}

// ContinueWithToken is like ContinueWith but additionally observes a
// cancellation token: if token is already cancelled at registration time, or
// cancelled by the time the task finishes, the returned task is cancelled and
// block is never invoked.
func (t *Task) ContinueWithToken(block ContinuationBlock, token *CancellationToken) *Task {
	return t.continueWith(nil, block, token, false)
}

// ContinueWithExecutor is like ContinueWith but runs block on the given
// executor instead of applying the default execution policy.
func (t *Task) ContinueWithExecutor(executor concurrent.Executor, block ContinuationBlock) *Task {
	return t.continueWith(executor, block, nil, false)
}

// ContinueWithExecutorToken combines ContinueWithExecutor and
// ContinueWithToken.
func (t *Task) ContinueWithExecutorToken(
	executor concurrent.Executor, block ContinuationBlock, token *CancellationToken) *Task {
	return t.continueWith(executor, block, token, false)
}

// ContinueOnSuccessWith is identical to ContinueWith, except that block only
// runs if the task completed successfully. A fault or cancellation of the task
// is propagated verbatim to the returned task without invoking block.
func (t *Task) ContinueOnSuccessWith(block ContinuationBlock) *Task {
	return t.continueWith(nil, block, nil, true)
}

// ContinueOnSuccessWithToken is like ContinueOnSuccessWith with a cancellation
// token; see ContinueWithToken for the token contract.
func (t *Task) ContinueOnSuccessWithToken(block ContinuationBlock, token *CancellationToken) *Task {
	return t.continueWith(nil, block, token, true)
}

// ContinueOnSuccessWithExecutor is like ContinueOnSuccessWith but runs block
// on the given executor.
func (t *Task) ContinueOnSuccessWithExecutor(
	executor concurrent.Executor, block ContinuationBlock) *Task {
	return t.continueWith(executor, block, nil, true)
}

// ContinueOnSuccessWithExecutorToken combines ContinueOnSuccessWithExecutor
// and ContinueOnSuccessWithToken.
func (t *Task) ContinueOnSuccessWithExecutorToken(
	executor concurrent.Executor, block ContinuationBlock, token *CancellationToken) *Task {
	return t.continueWith(executor, block, token, true)
}

// continueWith registers a continuation on the task. The continuation is
// queued if the task is still pending, or dispatched right away if the task
// already finished; the append and the state check happen under the task
// mutex, so a registration racing with completion can neither be lost nor
// double-fired.
func (t *Task) continueWith(
	executor concurrent.Executor,
	block ContinuationBlock,
	token *CancellationToken,
	successOnly bool) *Task {

	if token != nil && token.Cancelled() {
		return FromCancelled()
	}

	c := &continuation{
		block:       block,
		executor:    executor,
		token:       token,
		successOnly: successOnly,
		next:        &Task{},
	}

	t.mutex.Lock()
	if t.status == statusPending {
		t.continuations = append(t.continuations, c)
		t.mutex.Unlock()
		return c.next
	}
	t.mutex.Unlock()

	t.dispatch(c, 0)
	return c.next
}

// dispatch delivers the terminal state of the task to continuation c. The
// task is terminal here, so its payload is immutable and safe to read without
// the mutex. depth counts the continuations already run inline on the current
// call chain; it starts at zero on every executor-run action and on every
// external completion.
func (t *Task) dispatch(c *continuation, depth int) {
	if c.adopt != nil {
		c.adopt.trySet(t.status, t.result, t.err, depth)
		return
	}

	if c.token != nil && c.token.Cancelled() {
		c.next.trySet(statusCancelled, nil, nil, depth)
		return
	}

	if c.successOnly {
		switch t.status {
		case statusFaulted:
			c.next.trySet(statusFaulted, nil, t.err, depth)
			return
		case statusCancelled:
			c.next.trySet(statusCancelled, nil, nil, depth)
			return
		}
	}

	executor := c.executor
	if executor == nil {
		if depth < maxInlineDispatchDepth {
			c.run(t, depth+1)
			return
		}
		executor = BackgroundExecutor()
	}

	if err := executor.Submit(func() { c.run(t, 0) }); err != nil {
		c.next.trySet(statusFaulted, nil, err, depth)
	}
}

// run invokes the continuation block with the finished antecedent and resolves
// the downstream task with its outcome. A panic raised by the block is caught
// and converted into a fault on the downstream task; it never escapes to the
// executor.
func (c *continuation) run(source *Task, depth int) {
	result, err := func() (result interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = newPanicError(r)
			}
		}()
		return c.block(source)
	}()
	c.next.finish(result, err, depth)
}

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

import "errors"

// ErrExecutorShutdown is returned by Submit to indicate the executor rejected
// the action because it has been shut down.
var ErrExecutorShutdown = errors.New("executor: shut down")

// Executor runs actions asynchronously. Submit only arranges an action for
// execution; the actual execution may occur sometime later, on an arbitrary
// goroutine. An Executor makes no ordering guarantee between submitted actions
// unless the concrete implementation documents one.
//
// An action must not panic. Executors run actions as-is; recovery, result and
// error delivery belong to the layers built on top (see the task package).
type Executor interface {
	// Submit arranges action to be run. A non-nil error indicates the action was
	// rejected and will never run.
	Submit(action func()) error
}

// The ExecutorFunc type is an adapter to allow the use of ordinary functions
// as an Executor.
type ExecutorFunc func(action func()) error

// ExecutorFunc implements Executor.
var _ Executor = (ExecutorFunc)(nil)

// Submit implements Executor. It calls f(action).
func (f ExecutorFunc) Submit(action func()) error {
	return f(action)
}

// Type for Immediate
type immediateExecutor int

// Submit implements Executor. It runs action synchronously on the calling
// goroutine before returning.
func (immediateExecutor) Submit(action func()) error {
	action()
	return nil
}

// Immediate is an Executor that runs each action inline on the goroutine that
// submits it. It is primarily useful in tests and for callers that explicitly
// want current-goroutine execution.
const Immediate = immediateExecutor(0)

var _ Executor = Immediate

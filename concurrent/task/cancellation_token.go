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

import "sync"

// CancellationToken is a cooperative abort signal shared between the producer
// of an operation and the tasks that should stop when the producer loses
// interest.
//
// The flag is monotonic: once cancelled, a token never resets. Cancellation is
// cooperative only; signalling a token never forcibly stops in-flight work, it
// only makes dependent tasks resolve as cancelled instead of invoking their
// blocks.
type CancellationToken struct {
	// mutex guards cancelled and callbacks.
	mutex sync.Mutex

	cancelled bool

	// Registered callbacks in registration order. The list is append-only while
	// the token is live; callers are expected to register once per dependent
	// operation, not in hot loops.
	callbacks []func()
}

// NewCancellationToken creates a token with cancellation not requested.
func NewCancellationToken() *CancellationToken {
	return &CancellationToken{}
}

// Cancel requests cancellation. The first call invokes every registered
// callback exactly once, in registration order, synchronously on the calling
// goroutine; callbacks are expected to be fast and must not block. Subsequent
// calls are no-ops.
func (token *CancellationToken) Cancel() {
	token.mutex.Lock()
	if token.cancelled {
		token.mutex.Unlock()
		return
	}
	token.cancelled = true

	callbacks := token.callbacks
	token.callbacks = nil
	token.mutex.Unlock()

	for _, callback := range callbacks {
		callback()
	}
}

// Cancelled reports whether cancellation has been requested. It never blocks.
func (token *CancellationToken) Cancelled() bool {
	token.mutex.Lock()
	cancelled := token.cancelled
	token.mutex.Unlock()
	return cancelled
}

// Register adds callback to be invoked when cancellation is requested. If the
// token is already cancelled, callback runs inline before Register returns; a
// registration is never silently dropped.
func (token *CancellationToken) Register(callback func()) {
	token.mutex.Lock()
	if token.cancelled {
		token.mutex.Unlock()
		callback()
		return
	}
	token.callbacks = append(token.callbacks, callback)
	token.mutex.Unlock()
}

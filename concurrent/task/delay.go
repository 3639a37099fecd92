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

import "time"

// Delay returns a task that completes with a nil result after approximately d.
func Delay(d time.Duration) *Task {
	return DelayToken(d, nil)
}

// DelayToken is like Delay but observes a cancellation token: if token is
// signalled before the delay elapses, the returned task resolves as cancelled
// and the pending timer is released without firing its success path.
//
// There is no first-class timeout primitive; compose DelayToken with WhenAny
// to time out another task.
func DelayToken(d time.Duration, token *CancellationToken) *Task {
	if token != nil && token.Cancelled() {
		return FromCancelled()
	}

	t := &Task{}
	timer := time.AfterFunc(d, func() {
		t.trySet(statusCompleted, nil, nil, 0)
	})

	if token != nil {
		token.Register(func() {
			if t.trySet(statusCancelled, nil, nil, 0) {
				timer.Stop()
			}
		})
	}

	return t
}

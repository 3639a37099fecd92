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

// WhenAny returns a task that finishes with the terminal state (result, error
// or cancellation) of whichever input task finishes first. The remaining
// inputs keep running to completion independently; their later outcomes are
// discarded by the combinator, not cancelled.
//
// The caller must supply at least one task; with an empty input the returned
// task never finishes.
func WhenAny(tasks ...*Task) *Task {
	first := &Task{}

	for _, t := range tasks {
		t.ContinueWith(func(finished *Task) (interface{}, error) {
			// finished is terminal; its payload is immutable. Only the first
			// arrival wins the transition.
			first.trySet(finished.status, finished.result, finished.err, 0)
			return nil, nil
		})
	}

	return first
}

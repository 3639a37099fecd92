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

import "sync/atomic"

// WhenAll returns a task that finishes once every input task has finished.
//
// The returned task completes with a nil result when every input completed
// successfully. If one or more inputs faulted, the returned task faults: with
// the single error when exactly one input faulted, or with an aggregate error
// (see NewAggregateError) carrying the underlying errors in input order when
// several did. If any input was cancelled and none faulted, the returned task
// is cancelled.
//
// A fault or cancellation never short-circuits the combinator: every input is
// still awaited. An empty input finishes immediately with a nil result.
func WhenAll(tasks ...*Task) *Task {
	if len(tasks) == 0 {
		return FromResult(nil)
	}

	var (
		combined  = &Task{}
		remaining = int32(len(tasks))
		cancelled int32
		// One slot per input so that the aggregate error preserves input order
		// regardless of completion order. Each continuation writes only its own
		// slot; the final decrement of remaining publishes the writes.
		errs = make([]error, len(tasks))
	)

	for i, t := range tasks {
		i := i
		t.ContinueWith(func(finished *Task) (interface{}, error) {
			switch {
			case finished.Faulted():
				errs[i] = finished.Err()
			case finished.Cancelled():
				atomic.StoreInt32(&cancelled, 1)
			}

			if atomic.AddInt32(&remaining, -1) > 0 {
				return nil, nil
			}

			var faults []error
			for _, err := range errs {
				if err != nil {
					faults = append(faults, err)
				}
			}

			switch {
			case len(faults) == 1:
				combined.trySet(statusFaulted, nil, faults[0], 0)
			case len(faults) > 1:
				combined.trySet(statusFaulted, nil, NewAggregateError(faults), 0)
			case atomic.LoadInt32(&cancelled) != 0:
				combined.trySet(statusCancelled, nil, nil, 0)
			default:
				combined.trySet(statusCompleted, nil, nil, 0)
			}
			return nil, nil
		})
	}

	return combined
}

// WhenAllResults is like WhenAll, except that on success the result of the
// returned task is a []interface{} of each input task's result, index-aligned
// with the input order (not the order of completion).
func WhenAllResults(tasks ...*Task) *Task {
	return WhenAll(tasks...).ContinueOnSuccessWith(func(*Task) (interface{}, error) {
		results := make([]interface{}, len(tasks))
		for i, t := range tasks {
			results[i] = t.Result()
		}
		return results, nil
	})
}

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

// CompletionSource is the producer view of a Task. It holds a pending task
// and exposes the operations that finish it.
//
// Completion is single-assignment: the Set methods panic when the task has
// already finished, while the TrySet methods report the failed attempt through
// their return value and leave the first outcome untouched.
type CompletionSource struct {
	task *Task
}

// NewCompletionSource creates a CompletionSource holding a new pending task.
func NewCompletionSource() *CompletionSource {
	return &CompletionSource{task: &Task{}}
}

// Task returns the task controlled by the source.
func (s *CompletionSource) Task() *Task {
	return s.task
}

// SetResult completes the task with the given result. It panics if the task
// has already finished.
func (s *CompletionSource) SetResult(result interface{}) {
	if !s.TrySetResult(result) {
		panic("task: cannot set the result of a completed task")
	}
}

// SetError faults the task with the given error. It panics if the task has
// already finished.
func (s *CompletionSource) SetError(err error) {
	if !s.TrySetError(err) {
		panic("task: cannot set the error of a completed task")
	}
}

// SetCancelled cancels the task. It panics if the task has already finished.
func (s *CompletionSource) SetCancelled() {
	if !s.TrySetCancelled() {
		panic("task: cannot cancel a completed task")
	}
}

// TrySetResult completes the task with the given result. It returns false,
// changing nothing, if the task has already finished.
func (s *CompletionSource) TrySetResult(result interface{}) bool {
	return s.task.trySet(statusCompleted, result, nil, 0)
}

// TrySetError faults the task with the given error. It returns false, changing
// nothing, if the task has already finished.
func (s *CompletionSource) TrySetError(err error) bool {
	return s.task.trySet(statusFaulted, nil, err, 0)
}

// TrySetCancelled cancels the task. It returns false, changing nothing, if the
// task has already finished.
func (s *CompletionSource) TrySetCancelled() bool {
	return s.task.trySet(statusCancelled, nil, nil, 0)
}

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

package task_test

import (
	"errors"

	"github.com/botobag/selene/concurrent"
	"github.com/botobag/selene/concurrent/task"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Task", func() {
	Describe("pre-resolved constructors", func() {
		It("creates a completed task from a result", func() {
			t := task.FromResult(42)
			Expect(t.Completed()).Should(BeTrue())
			Expect(t.Faulted()).Should(BeFalse())
			Expect(t.Cancelled()).Should(BeFalse())
			Expect(t.Result()).Should(Equal(42))
			Expect(t.Err()).ShouldNot(HaveOccurred())
		})

		It("creates a faulted task from an error", func() {
			err := errors.New("boom")
			t := task.FromError(err)
			Expect(t.Completed()).Should(BeTrue())
			Expect(t.Faulted()).Should(BeTrue())
			Expect(t.Cancelled()).Should(BeFalse())
			Expect(t.Result()).Should(BeNil())
			Expect(t.Err()).Should(MatchError(err))
		})

		It("creates a cancelled task", func() {
			t := task.FromCancelled()
			Expect(t.Completed()).Should(BeTrue())
			Expect(t.Faulted()).Should(BeFalse())
			Expect(t.Cancelled()).Should(BeTrue())
			Expect(t.Result()).Should(BeNil())
			Expect(t.Err()).ShouldNot(HaveOccurred())
		})
	})

	Describe("FromExecutor", func() {
		It("finishes with the result of the block", func() {
			t := task.FromExecutor(concurrent.Immediate, func() (interface{}, error) {
				return "result", nil
			})
			Expect(t.Completed()).Should(BeTrue())
			Expect(t.Result()).Should(Equal("result"))
		})

		It("faults with the error returned by the block", func() {
			err := errors.New("boom")
			t := task.FromExecutor(concurrent.Immediate, func() (interface{}, error) {
				return nil, err
			})
			Expect(t.Faulted()).Should(BeTrue())
			Expect(t.Err()).Should(MatchError(err))
		})

		It("faults when the block panics", func() {
			t := task.FromExecutor(concurrent.Immediate, func() (interface{}, error) {
				panic("kaboom")
			})
			Expect(t.Faulted()).Should(BeTrue())

			e, ok := t.Err().(*task.Error)
			Expect(ok).Should(BeTrue())
			Expect(e.Code).Should(Equal(task.CodePanic))
			Expect(e.Error()).Should(ContainSubstring("kaboom"))
		})

		It("faults when the executor rejects the block", func() {
			rejection := errors.New("rejected")
			executor := concurrent.ExecutorFunc(func(action func()) error {
				return rejection
			})

			t := task.FromExecutor(executor, func() (interface{}, error) {
				return nil, nil
			})
			Expect(t.Faulted()).Should(BeTrue())
			Expect(t.Err()).Should(MatchError(rejection))
		})

		It("cancels without invoking the block when the token is cancelled", func() {
			token := task.NewCancellationToken()
			token.Cancel()

			invoked := false
			t := task.FromExecutorToken(concurrent.Immediate, func() (interface{}, error) {
				invoked = true
				return nil, nil
			}, token)

			Expect(t.Cancelled()).Should(BeTrue())
			Expect(invoked).Should(BeFalse())
		})

		It("runs the block on the given executor", func() {
			executor, err := concurrent.NewWorkerPoolExecutor(concurrent.WorkerPoolExecutorConfig{
				MaxPoolSize: 1,
			})
			Expect(err).ShouldNot(HaveOccurred())

			t := task.FromExecutor(executor, func() (interface{}, error) {
				return "from worker", nil
			})
			t.Wait()
			Expect(t.Result()).Should(Equal("from worker"))

			terminated, err := executor.Shutdown()
			Expect(err).ShouldNot(HaveOccurred())
			Eventually(terminated).Should(Receive())
		})
	})

	Describe("unwrapping", func() {
		It("adopts the terminal state of a task returned by the block", func() {
			source := task.NewCompletionSource()
			t := task.FromExecutor(concurrent.Immediate, func() (interface{}, error) {
				return source.Task(), nil
			})

			Expect(t.Completed()).Should(BeFalse())

			source.SetResult("inner result")
			Expect(t.Completed()).Should(BeTrue())
			Expect(t.Result()).Should(Equal("inner result"))
		})

		It("adopts a fault from the inner task", func() {
			err := errors.New("inner boom")
			source := task.NewCompletionSource()
			t := task.FromExecutor(concurrent.Immediate, func() (interface{}, error) {
				return source.Task(), nil
			})

			source.SetError(err)
			Expect(t.Faulted()).Should(BeTrue())
			Expect(t.Err()).Should(MatchError(err))
		})

		It("adopts a cancellation from the inner task", func() {
			source := task.NewCompletionSource()
			t := task.FromExecutor(concurrent.Immediate, func() (interface{}, error) {
				return source.Task(), nil
			})

			source.SetCancelled()
			Expect(t.Cancelled()).Should(BeTrue())
		})

		It("collapses nested tasks recursively", func() {
			source := task.NewCompletionSource()
			middle := task.FromExecutor(concurrent.Immediate, func() (interface{}, error) {
				return source.Task(), nil
			})
			outer := task.FromExecutor(concurrent.Immediate, func() (interface{}, error) {
				return middle, nil
			})

			Expect(outer.Completed()).Should(BeFalse())

			source.SetResult(42)
			Expect(middle.Result()).Should(Equal(42))
			Expect(outer.Result()).Should(Equal(42))
		})
	})

	Describe("Wait", func() {
		It("returns immediately on a finished task", func() {
			task.FromResult(1).Wait()
			task.FromError(errors.New("boom")).Wait()
			task.FromCancelled().Wait()
		})

		It("blocks until the task finishes", func() {
			source := task.NewCompletionSource()

			waited := make(chan interface{}, 1)
			go func() {
				t := source.Task()
				t.Wait()
				waited <- t.Result()
			}()

			Consistently(waited).ShouldNot(Receive())

			source.SetResult("done")
			Eventually(waited).Should(Receive(Equal("done")))
		})

		It("releases every waiter", func() {
			source := task.NewCompletionSource()

			const numWaiters = 8
			waited := make(chan bool, numWaiters)
			for i := 0; i < numWaiters; i++ {
				go func() {
					source.Task().Wait()
					waited <- true
				}()
			}

			Consistently(waited).ShouldNot(Receive())

			source.SetResult(nil)
			for i := 0; i < numWaiters; i++ {
				Eventually(waited).Should(Receive())
			}
		})
	})
})

var _ = Describe("CompletionSource", func() {
	It("completes its task with a result", func() {
		source := task.NewCompletionSource()
		t := source.Task()
		Expect(t.Completed()).Should(BeFalse())

		source.SetResult("result")
		Expect(t.Completed()).Should(BeTrue())
		Expect(t.Result()).Should(Equal("result"))
	})

	It("faults its task with an error", func() {
		err := errors.New("boom")
		source := task.NewCompletionSource()
		source.SetError(err)
		Expect(source.Task().Faulted()).Should(BeTrue())
		Expect(source.Task().Err()).Should(MatchError(err))
	})

	It("cancels its task", func() {
		source := task.NewCompletionSource()
		source.SetCancelled()
		Expect(source.Task().Cancelled()).Should(BeTrue())
	})

	It("panics when setting a finished task", func() {
		source := task.NewCompletionSource()
		source.SetResult(1)

		Expect(func() { source.SetResult(2) }).Should(Panic())
		Expect(func() { source.SetError(errors.New("boom")) }).Should(Panic())
		Expect(func() { source.SetCancelled() }).Should(Panic())
	})

	It("keeps the first outcome on a failed TrySet", func() {
		source := task.NewCompletionSource()
		Expect(source.TrySetResult(1)).Should(BeTrue())

		Expect(source.TrySetResult(2)).Should(BeFalse())
		Expect(source.TrySetError(errors.New("boom"))).Should(BeFalse())
		Expect(source.TrySetCancelled()).Should(BeFalse())

		Expect(source.Task().Result()).Should(Equal(1))
		Expect(source.Task().Faulted()).Should(BeFalse())
		Expect(source.Task().Cancelled()).Should(BeFalse())
	})
})

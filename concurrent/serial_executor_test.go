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

package concurrent_test

import (
	"sync"
	"sync/atomic"

	"github.com/botobag/selene/concurrent"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("SerialExecutor", func() {
	It("runs actions in submission order", func() {
		executor := concurrent.NewSerialExecutor()

		const numActions = 100
		var order []int
		for i := 0; i < numActions; i++ {
			i := i
			Expect(executor.Submit(func() {
				order = append(order, i)
			})).Should(Succeed())
		}

		terminated, err := executor.Shutdown()
		Expect(err).ShouldNot(HaveOccurred())
		Eventually(terminated).Should(Receive())

		expected := make([]int, numActions)
		for i := range expected {
			expected[i] = i
		}
		Expect(order).Should(Equal(expected))
	})

	It("never runs two actions concurrently", func() {
		executor := concurrent.NewSerialExecutor()

		var running, maxRunning int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				for j := 0; j < 50; j++ {
					Expect(executor.Submit(func() {
						n := atomic.AddInt32(&running, 1)
						if n > atomic.LoadInt32(&maxRunning) {
							atomic.StoreInt32(&maxRunning, n)
						}
						atomic.AddInt32(&running, -1)
					})).Should(Succeed())
				}
			}()
		}
		wg.Wait()

		terminated, err := executor.Shutdown()
		Expect(err).ShouldNot(HaveOccurred())
		Eventually(terminated).Should(Receive())

		Expect(atomic.LoadInt32(&maxRunning)).Should(Equal(int32(1)))
	})

	It("rejects submissions after shutdown", func() {
		executor := concurrent.NewSerialExecutor()

		terminated, err := executor.Shutdown()
		Expect(err).ShouldNot(HaveOccurred())
		Eventually(terminated).Should(Receive())

		Expect(executor.Submit(func() {})).Should(MatchError(concurrent.ErrExecutorShutdown))
	})
})

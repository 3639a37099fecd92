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
	"github.com/botobag/selene/concurrent"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Immediate", func() {
	It("runs the action inline before Submit returns", func() {
		ran := false
		Expect(concurrent.Immediate.Submit(func() {
			ran = true
		})).Should(Succeed())
		Expect(ran).Should(BeTrue())
	})
})

var _ = Describe("ExecutorFunc", func() {
	It("adapts an ordinary function into an Executor", func() {
		var submitted []func()
		executor := concurrent.ExecutorFunc(func(action func()) error {
			submitted = append(submitted, action)
			return nil
		})

		ran := false
		Expect(executor.Submit(func() { ran = true })).Should(Succeed())
		Expect(submitted).Should(HaveLen(1))
		Expect(ran).Should(BeFalse())

		submitted[0]()
		Expect(ran).Should(BeTrue())
	})

	It("passes through the rejection error", func() {
		executor := concurrent.ExecutorFunc(func(action func()) error {
			return concurrent.ErrExecutorShutdown
		})
		Expect(executor.Submit(func() {})).Should(MatchError(concurrent.ErrExecutorShutdown))
	})
})

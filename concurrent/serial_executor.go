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

import (
	"sync"

	"github.com/gammazero/deque"
)

// SerialExecutor runs actions one at a time, in submission order (FIFO). It
// keeps no dedicated goroutine: a drainer goroutine is started when an action
// is submitted to an idle executor and exits once the queue is emptied.
type SerialExecutor struct {
	// mutex guards actions, running, shutdown and terminations.
	mutex sync.Mutex

	// Queued actions in submission order
	actions deque.Deque

	// True while a drainer goroutine is running
	running bool

	// True once Shutdown was called
	shutdown bool

	// Channels that are used for waiting termination
	terminations []chan<- bool
}

// SerialExecutor implements Executor.
var _ Executor = (*SerialExecutor)(nil)

// NewSerialExecutor creates an empty SerialExecutor ready for use.
func NewSerialExecutor() *SerialExecutor {
	return &SerialExecutor{}
}

// Submit implements Executor. Actions run in the order they were submitted,
// never concurrently with each other.
func (executor *SerialExecutor) Submit(action func()) error {
	mutex := &executor.mutex
	mutex.Lock()

	if executor.shutdown {
		mutex.Unlock()
		return ErrExecutorShutdown
	}

	executor.actions.PushBack(action)

	if executor.running {
		mutex.Unlock()
		return nil
	}
	executor.running = true

	mutex.Unlock()

	go executor.drain()

	return nil
}

// Shutdown stops the executor from accepting new actions. Previously submitted
// actions still run. The returned channel receives a notification once all
// remaining actions have completed.
func (executor *SerialExecutor) Shutdown() (terminated <-chan bool, err error) {
	termination := make(chan bool, 1)

	mutex := &executor.mutex
	mutex.Lock()

	executor.shutdown = true
	if !executor.running && executor.actions.Len() == 0 {
		termination <- true
	} else {
		executor.terminations = append(executor.terminations, termination)
	}

	mutex.Unlock()

	return termination, nil
}

// drain runs queued actions until the queue is emptied.
func (executor *SerialExecutor) drain() {
	mutex := &executor.mutex

	for {
		mutex.Lock()

		if executor.actions.Len() == 0 {
			executor.running = false

			var terminations []chan<- bool
			if executor.shutdown {
				terminations = executor.terminations
				executor.terminations = nil
			}

			mutex.Unlock()

			for _, termination := range terminations {
				termination <- true
			}
			return
		}

		action := executor.actions.PopFront().(func())
		mutex.Unlock()

		action()
	}
}

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
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

//===----------------------------------------------------------------------------------------====//
// WorkerPoolExecutorConfig
//===----------------------------------------------------------------------------------------====//

// WorkerPoolExecutorConfig contains options to configure a WorkerPoolExecutor.
type WorkerPoolExecutorConfig struct {
	// The maximum number of workers allowed in pool (required, must be greater than 0)
	MaxPoolSize uint32

	// The minimum number of workers to maintain in pool
	MinPoolSize uint32

	// The maximum time for an idle worker to wait for a new action before it exits
	KeepAliveTime time.Duration

	// Queue provides storage for queueing actions. If not set, an actionQueue will be created and be
	// used.
	Queue Queue
}

// Validate verifies config values.
func (config *WorkerPoolExecutorConfig) Validate() error {
	if config.MaxPoolSize == 0 {
		return errors.New(`WorkerPoolExecutor: MaxPoolSize must be a non-zero value which specifies ` +
			`the maximum number of workers to be created by the executor. If you have no idea, try to ` +
			`set the value to uint32(runtime.GOMAXPROCS(-1)).`)
	}

	if config.MaxPoolSize < config.MinPoolSize {
		return fmt.Errorf(`WorkerPoolExecutor: MaxPoolSize (%d) should be greater than MinPoolSize (%d)`,
			config.MaxPoolSize, config.MinPoolSize)
	}
	return nil
}

//===----------------------------------------------------------------------------------------====//
// poolState
//===----------------------------------------------------------------------------------------====//

// poolState contains current state of the WorkerPoolExecutor. It packs the pool size and the
// running state of the WorkerPoolExecutor into one word so both can be updated atomically with CAS.
type poolState int64

// poolRunState indicates the running state of WorkerPoolExecutor. It is stored in the high 32 bits
// of poolState. The low 32 bits in poolRunState must be 0.
type poolRunState int64

// Enumeration of poolRunState
const (
	poolRunStateMask int64 = -4294967296 // 0xffffffff00000000

	// Executor accepts and processes actions. The constant is the one and the only one in
	// poolRunState that sets the HSB. This makes poolState with running state be a negative value
	// and thus enables fast check IsRunning.
	poolRunStateRunning poolRunState = poolRunState(poolRunStateMask)

	// Shutdown is invoked on the executor. Queued actions are processed but no new actions will be
	// accepted.
	poolRunStateShutdown = 0 // 0x0 << 32

	// There's no actions in the queue and no new actions is accepted.
	poolRunStateTerminated = 4294967296 // 0x1 << 32
)

// RunState reads run state from state word.
func (s poolState) RunState() poolRunState {
	return poolRunState(int64(s) & poolRunStateMask)
}

// WorkerCount returns number of workers in the pool currently.
func (s poolState) WorkerCount() uint32 {
	return uint32(s & 0xffffffff)
}

// Load loads state word with atomic.LoadInt64 because it is a lock-free variable. This suppresses
// the errors from Go's race detector. On conventional machines (e.g., x86-64), this is the same as
// dereferencing an int64 pointer.
func (s *poolState) Load() poolState {
	return poolState(atomic.LoadInt64((*int64)(s)))
}

// SetRunState sets the run state.
func (s *poolState) SetRunState(newRunState poolRunState) (oldState poolState) {
	for {
		oldState = s.Load()
		if int64(oldState) >= int64(newRunState) {
			// States are only allowed to transition from RUNNING to SHUTDOWN to TERMINATED.
			return
		}

		newState := makePoolState(newRunState, oldState.WorkerCount())
		if atomic.CompareAndSwapInt64((*int64)(s), int64(oldState), int64(newState)) {
			return
		}
	}
}

// IsRunning returns true if the run state is poolRunStateRunning.
func (s poolState) IsRunning() bool {
	return s < 0
}

// IsShutdown returns true if the executor receives an shutdown request.
func (s poolState) IsShutdown() bool {
	return s >= poolRunStateShutdown
}

// IsTerminated returns true if the executor is terminated.
func (s poolState) IsTerminated() bool {
	return s >= poolRunStateTerminated
}

// CompareAndIncWorkerCount increments the worker count in the given state by 1 with CAS.
func (s *poolState) CompareAndIncWorkerCount(old poolState) (done bool) {
	return atomic.CompareAndSwapInt64((*int64)(s), int64(old), int64(old+1))
}

// CompareAndDecWorkerCount decrements the worker count in the given state by 1 with CAS.
func (s *poolState) CompareAndDecWorkerCount(old poolState) (done bool) {
	return atomic.CompareAndSwapInt64((*int64)(s), int64(old), int64(old-1))
}

// DecWorkerCount decrements the worker count in the given state by 1. Return the new state after
// decrement.
func (s *poolState) DecWorkerCount() poolState {
	return poolState(atomic.AddInt64((*int64)(s), int64(-1)))
}

// makePoolState creates a poolState from given run state and worker count.
func makePoolState(runState poolRunState, workerCount uint32) poolState {
	return poolState(int64(runState) | int64(workerCount))
}

//===----------------------------------------------------------------------------------------====//
// poolWorker
//===----------------------------------------------------------------------------------------====//

type poolWorker struct {
	// Executor that pools this worker
	executor *WorkerPoolExecutor
}

// newPoolWorker creates a worker for WorkerPoolExecutor.
func newPoolWorker(executor *WorkerPoolExecutor) poolWorker {
	return poolWorker{
		executor: executor,
	}
}

// Start creates a goroutine to execute run loop.
func (w poolWorker) Start(firstAction func()) {
	go w.run(firstAction)
}

// run implements run loop for worker to execute actions in the queue.
func (w poolWorker) run(firstAction func()) {
	action := firstAction

	// The run loop
	for {
		if action == nil {
			// Retrieve one action from executor.
			action = w.executor.pollAction()
			if action == nil {
				// No action to be executed; Terminate the worker.
				break
			}
		}

		action()

		// Reset action.
		action = nil
	}

	w.executor.terminateWorker(w)
}

//===----------------------------------------------------------------------------------------====//
// WorkerPoolExecutor
//===----------------------------------------------------------------------------------------====//

// WorkerPoolExecutor runs submitted actions with one of the pooled workers backed by a goroutine.
// The implementation is heavily influenced by Doug Lea's PooledExecutor [0] which was released into
// the public domain [1].
//
// We avoid using defer, channel and even lock in the critical path to make it perform efficiently.
//
// The pool does not by default preallocate worker goroutines. Instead, a worker is created if
// necessary when an action arrives. A worker beyond MinPoolSize that stays idle for KeepAliveTime
// exits to shrink the pool.
//
// [0]: http://gee.cs.oswego.edu/dl/classes/EDU/oswego/cs/dl/util/concurrent/intro.html
// [1]: http://creativecommons.org/publicdomain/zero/1.0/
type WorkerPoolExecutor struct {
	// A lock-free word that contains pool running state and worker count
	state poolState

	// Configuration
	config *WorkerPoolExecutorConfig

	// Queue contains actions to be executed
	actions Queue

	// Mutex for guarding terminations
	mutex sync.Mutex

	// Channels that are used for waiting termination. This is guarded by mutex.
	terminations []chan<- bool
}

// WorkerPoolExecutor implements Executor.
var _ Executor = (*WorkerPoolExecutor)(nil)

// NewWorkerPoolExecutor creates a WorkerPoolExecutor from given config and uses the supplied Queue
// for queuing actions.
func NewWorkerPoolExecutor(config WorkerPoolExecutorConfig) (*WorkerPoolExecutor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	actions := config.Queue
	if actions == nil {
		actions = newActionQueue()
	}

	return &WorkerPoolExecutor{
		state:   makePoolState(poolRunStateRunning, 0),
		config:  &config,
		actions: actions,
	}, nil
}

// Shutdown shuts down the executor. Previously submitted actions are executed but no new actions
// will be accepted. It is a no-op if the executor has already shut down. It returns a channel which
// will receive a notification when all remaining actions have completed after the shutdown request.
func (executor *WorkerPoolExecutor) Shutdown() (terminated <-chan bool, err error) {
	mutex := &executor.mutex

	// Hold lock for potential modification on executor.terminations. This also avoids races with
	// signals in tryTerminate.
	mutex.Lock()

	// Create a channel for return which notifies the completion of termination.
	termination := make(chan bool, 1)

	// Transition the state to SHUTDOWN. After that, addWorker and addAction would refuse any
	// request.
	prevState := executor.state.SetRunState(poolRunStateShutdown)

	if prevState.IsTerminated() {
		// Executor was already terminated. Fill the returning channel with termination signal.
		termination <- true
	} else {
		// Append a termination to executor.terminations.
		executor.terminations = append(executor.terminations, termination)

		// Transition from RUNNING.
		if prevState.IsRunning() {
			// Close queue. This will also unblock all workers that are waiting for actions on empty
			// queue.
			executor.actions.Close()
		}
	}

	// Unlock mutex to call tryTerminate.
	mutex.Unlock()

	// Try to advance to TERMINATED.
	executor.tryTerminate()

	return termination, nil
}

// loadState loads current state. See comment for the Load method in poolState.
func (executor *WorkerPoolExecutor) loadState() poolState {
	return executor.state.Load()
}

// tryTerminate tries to transition to TERMINATED if the executor is shut down, and there's no
// action in the queue and all workers are terminated.
func (executor *WorkerPoolExecutor) tryTerminate() {
	// Load state.
	state := executor.loadState()

	// Quick return if we have not received shutdown request or is already terminated.
	if !state.IsShutdown() || state.IsTerminated() {
		return
	}

	// Quick return if the action queue is not empty.
	if !executor.actions.Empty() {
		return
	}

	// Quick return if there're some workers.
	if state.WorkerCount() > 0 {
		return
	}

	// No workers in the pool.

	// Lock mutex to send termination signal after transition to TERMINATED.
	mutex := &executor.mutex
	mutex.Lock()
	defer mutex.Unlock()

	if !executor.loadState().IsTerminated() {
		// Transition to TERMINATED. No new worker can be added to the executor after the state was
		// transitioned to SHUTDOWN.
		executor.state.SetRunState(poolRunStateTerminated)

		// Send termination signals.
		terminations := executor.terminations
		executor.terminations = nil
		for _, termination := range terminations {
			termination <- true
		}
	}
}

// Submit implements Executor.
//
// On receiving an action, if fewer than config.MinPoolSize workers are running, a new worker is
// always created to process the action even if other workers are idly waiting. Otherwise, a new
// worker is created only if there are fewer than config.MaxPoolSize workers and the action cannot
// immediately be queued.
func (executor *WorkerPoolExecutor) Submit(action func()) error {
	// Load config into local stack.
	config := executor.config

	// Load state.
	state := executor.loadState()

	// Ensure minimum number of workers.
	if state.WorkerCount() < config.MinPoolSize {
		if err := executor.addWorker(action, config.MinPoolSize); err == nil {
			return nil
		}
		// Ignore errors and reload state.
		state = executor.loadState()
	}

	if state.IsRunning() {
		// Try to give the action to an existing worker by putting it to the queue. Note that this
		// assumes that there's always a worker in the pool to process it.
		return executor.addAction(action)
	}

	// Final try by directly requesting a worker to perform the action.
	return executor.addWorker(action, config.MaxPoolSize)
}

var (
	errRejectWorkerDueToShuttingDown = errors.New("unable to add new worker because executor is shutting down")
	errTooManyWorkers                = errors.New("unable to add new worker because worker pool is full")
)

// addWorker tries to create a worker to execute the action. limit specifies the bound of pool
// size. An error will be returned if the pool size exceeds the limit after adding the newly created
// worker.
func (executor *WorkerPoolExecutor) addWorker(firstAction func(), limit uint32) error {
	for {
		// Load state.
		state := executor.loadState()
		if state.IsShutdown() {
			return errRejectWorkerDueToShuttingDown
		}

		// Check pool size limit.
		if (state.WorkerCount() + 1) > limit {
			return errTooManyWorkers
		}

		// Atomically increment pool size.
		if executor.state.CompareAndIncWorkerCount(state) {
			break
		}

		// CAS failed. Restart the loop to load new state.
	}

	// Create a new worker and start running with initial action.
	newPoolWorker(executor).Start(firstAction)

	return nil
}

// terminateWorker is called upon termination of worker w. It should be called from the goroutine
// that runs w.
func (executor *WorkerPoolExecutor) terminateWorker(w poolWorker) {
	// Note that worker count should have been decremented (by pollAction).
	state := executor.loadState()

	if state.IsShutdown() {
		// Try to advance to TERMINATED.
		executor.tryTerminate()
	} else {
		// Create a replacement as needed.
		minPoolSize := executor.config.MinPoolSize
		if minPoolSize == 0 && !executor.actions.Empty() {
			minPoolSize = 1
		}
		if minPoolSize < state.WorkerCount() {
			executor.addWorker(nil, minPoolSize)
		}
	}
}

// addAction puts the action in the queue and ensures that there'll be a worker to run it.
func (executor *WorkerPoolExecutor) addAction(action func()) error {
	// Put action to the queue.
	if err := executor.actions.Push(action); err != nil {
		if err == ErrQueueClosed {
			return ErrExecutorShutdown
		}
		return err
	}

	// The action was successfully enqueued. But during the enqueue, there may be no worker left to
	// execute it. This may happen when config.MinPoolSize is zero. Ensure a worker exists.
	for {
		state := executor.loadState()
		if !state.IsRunning() || state.WorkerCount() > 0 {
			break
		}
		if err := executor.addWorker(nil, 1); err == nil {
			break
		}
		// Retry.
	}

	return nil
}

// pollAction blocks the calling worker to wait for an action. This could return nil in the
// following cases to indicate that no further action could be run:
//
//  1. The executor received a shutdown request and the action queue is empty.
//  2. The worker doesn't get an action within config.KeepAliveTime and current size of worker pool
//     is greater than config.MinPoolSize.
//
// Note that upon returning nil, the worker count in state word is decremented.
func (executor *WorkerPoolExecutor) pollAction() func() {
	isIdle := false
	// Cache the config and action queue locally.
	actions := executor.actions
	config := executor.config

	for {
		// Reload state.
		state := executor.state.Load()
		noActions := actions.Empty()

		if state.IsShutdown() && noActions {
			executor.state.DecWorkerCount()
			return nil
		}

		redundantWorker := state.WorkerCount() > config.MinPoolSize

		if redundantWorker &&
			isIdle &&
			(state.WorkerCount() > 1 || noActions) {
			// Cause idle worker to die. The check depends on state.WorkerCount. Other workers may also
			// be here. Perform CAS on decrementing worker count before return. This would limit at most
			// one idle worker to be removed at a time to keep number of config.MinPoolSize workers in
			// the pool.
			if executor.state.CompareAndDecWorkerCount(state) {
				return nil
			}
		}

		// Reset isIdle.
		isIdle = false

		// Determine timeout for polling.
		var timeout time.Duration
		if state.WorkerCount() > config.MinPoolSize {
			timeout = config.KeepAliveTime
		}

		// Poll queue.
		action, err := actions.Poll(timeout)
		if err == ErrQueuePollTimeout {
			isIdle = true
			// Restart loop to reload state and check whether the worker can be killed.
		} else if action != nil {
			return action.(func())
		}
		// A nil action without timeout means the queue was closed; restart the loop to observe the
		// shutdown state.
	}
}

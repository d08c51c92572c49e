package task

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Status represents the current state of a task
type Status string

// Possible task status values
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether no further transition can happen.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// WorkItem is a unit of work submitted to a JobQueue.
//
// Execute receives the task's cancellation context and should return
// promptly once it is done. The returned value becomes the task result.
type WorkItem interface {
	Execute(ctx context.Context) (any, error)
}

// WorkFunc adapts a plain function to WorkItem.
type WorkFunc func(ctx context.Context) (any, error)

// Execute calls f.
func (f WorkFunc) Execute(ctx context.Context) (any, error) {
	return f(ctx)
}

// Reclaimable is implemented by results that the retention sweep may
// evict. Results that do not implement it are retained until shutdown.
type Reclaimable interface {
	// IsTerminalAndEmpty reports that the work reached a successful final
	// state and nothing is left for a caller to look at.
	IsTerminalAndEmpty() bool

	// ReleaseResources frees whatever the result still holds, such as an
	// upload directory lock. It is called once, right before eviction.
	ReleaseResources() error
}

// Task wraps one submitted work item and tracks its execution.
type Task struct {
	id     int64
	item   WorkItem
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	received atomic.Bool

	mu          sync.RWMutex
	status      Status
	result      any
	err         error
	submittedAt time.Time
	startedAt   time.Time
	finishedAt  time.Time
}

func newTask(parent context.Context, id int64, item WorkItem) *Task {
	ctx, cancel := context.WithCancel(parent)
	return &Task{
		id:          id,
		item:        item,
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
		status:      StatusPending,
		submittedAt: time.Now(),
	}
}

// ID returns the queue-assigned identifier.
func (t *Task) ID() int64 {
	return t.id
}

// Status returns the current status.
func (t *Task) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// IsDone reports whether the task completed, failed or was cancelled.
func (t *Task) IsDone() bool {
	return t.Status().IsTerminal()
}

// IsCancelled reports whether the task was cancelled.
func (t *Task) IsCancelled() bool {
	return t.Status() == StatusCancelled
}

// Received reports whether a caller has fetched this task by id.
func (t *Task) Received() bool {
	return t.received.Load()
}

// Result returns what the work item returned. It is nil until the task is done.
func (t *Task) Result() any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.result
}

// Err returns the work item's error, a *PanicError, or context.Canceled
// for a task cancelled before it started.
func (t *Task) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

// SubmittedAt returns when the task was created.
func (t *Task) SubmittedAt() time.Time {
	return t.submittedAt
}

// StartedAt returns when execution began, or the zero time.
func (t *Task) StartedAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.startedAt
}

// FinishedAt returns when the task reached a terminal status, or the zero time.
func (t *Task) FinishedAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.finishedAt
}

// Done returns a channel that is closed once the task is done.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Cancel requests cancellation. A pending task is cancelled at once and its
// work item never runs; a running task is cancelled through its context and
// becomes cancelled when the work item returns. It returns false if the task
// was already done.
func (t *Task) Cancel() bool {
	if t.IsDone() {
		return false
	}
	t.cancel()
	t.cancelPending()
	return true
}

// markReceived flips the received flag and reports whether this call did it.
func (t *Task) markReceived() bool {
	return t.received.CompareAndSwap(false, true)
}

// cancelPending moves a task that has not started straight to cancelled.
func (t *Task) cancelPending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != StatusPending {
		return false
	}
	t.status = StatusCancelled
	t.err = context.Canceled
	t.finishedAt = time.Now()
	close(t.done)
	return true
}

// started is called by the executing worker. It returns false if the task
// was cancelled while it waited, in which case the work item must not run.
func (t *Task) started() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != StatusPending {
		return false
	}
	t.status = StatusRunning
	t.startedAt = time.Now()
	return true
}

// complete records the outcome of a run and returns the resulting status.
// A task whose context was cancelled before the work item returned is
// cancelled, whatever the work item reported.
func (t *Task) complete(result any, err error) Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status.IsTerminal() {
		return t.status
	}

	t.result = result
	t.err = err
	switch {
	case t.ctx.Err() != nil:
		t.status = StatusCancelled
	case err != nil:
		t.status = StatusFailed
	default:
		t.status = StatusCompleted
	}
	t.finishedAt = time.Now()
	close(t.done)

	// Releases the context.
	t.cancel()
	return t.status
}

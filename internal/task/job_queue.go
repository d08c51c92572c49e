package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/phrazzld/jobqueue/internal/events"
	"github.com/phrazzld/jobqueue/internal/upload"
)

// NoTaskID is returned by Submit alongside an error. Ids start at 0.
const NoTaskID int64 = -1

// ScratchPurger removes scratch directories that were flagged for deletion.
// *upload.Area implements it.
type ScratchPurger interface {
	PurgeMarked() (upload.PurgeReport, error)
}

// JobQueueConfig holds configuration for the job queue
type JobQueueConfig struct {
	// MaxPoolSize bounds how many tasks execute concurrently; 0 is unbounded
	MaxPoolSize int

	// QueueCapacity bounds the backlog once MaxPoolSize is reached; 0 is unbounded
	QueueCapacity int

	// IdleTimeout is how long idle workers linger
	IdleTimeout time.Duration

	// SweepInterval defines how often the retention sweep runs.
	// If zero, defaults to 60 seconds
	SweepInterval time.Duration

	// Scratch, when set, is purged of marked directories after every sweep
	Scratch ScratchPurger

	// Emitter, when set, receives task lifecycle events
	Emitter events.EventEmitter
}

// DefaultJobQueueConfig returns a JobQueueConfig with reasonable defaults
func DefaultJobQueueConfig() JobQueueConfig {
	return JobQueueConfig{
		MaxPoolSize:   0,
		QueueCapacity: 0,
		IdleTimeout:   60 * time.Second,
		SweepInterval: 60 * time.Second,
	}
}

// JobQueue executes submitted work items in the background and retains
// their tasks until the sweep finds them finished, received and reclaimable.
type JobQueue struct {
	// counter is the next id to hand out; it is never reset
	counter atomic.Int64

	// tasks maps int64 ids to *Task
	tasks sync.Map

	pool   *WorkerPool
	config JobQueueConfig
	logger *slog.Logger

	// ctx is the parent of every task context and is cancelled by Shutdown
	ctx    context.Context
	cancel context.CancelFunc

	// sweepMu keeps sweep cycles from overlapping
	sweepMu   sync.Mutex
	stopSweep chan struct{}
	sweepDone chan struct{}

	closed       atomic.Bool
	shutdownOnce sync.Once
}

// NewJobQueue creates a JobQueue and starts its periodic sweep.
func NewJobQueue(config JobQueueConfig, logger *slog.Logger) *JobQueue {
	if config.SweepInterval <= 0 {
		config.SweepInterval = DefaultJobQueueConfig().SweepInterval
	}

	logger = logger.With("component", "job_queue")
	ctx, cancel := context.WithCancel(context.Background())

	q := &JobQueue{
		pool: NewWorkerPool(WorkerPoolConfig{
			MaxWorkers:    config.MaxPoolSize,
			QueueCapacity: config.QueueCapacity,
			IdleTimeout:   config.IdleTimeout,
		}, logger),
		config:    config,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		stopSweep: make(chan struct{}),
		sweepDone: make(chan struct{}),
	}

	go q.sweepLoop()

	return q
}

// Submit schedules item for execution and returns its id without waiting
// for it to run. Errors from the work item itself are recorded on the task.
// A rejected item gets NoTaskID; an id consumed by a rejection is never
// reissued.
func (q *JobQueue) Submit(item WorkItem) (int64, error) {
	if item == nil {
		return NoTaskID, ErrNilWorkItem
	}
	if fn, ok := item.(WorkFunc); ok && fn == nil {
		return NoTaskID, ErrNilWorkItem
	}
	if q.closed.Load() {
		return NoTaskID, ErrQueueClosed
	}

	id := q.counter.Add(1) - 1
	t := newTask(q.ctx, id, item)
	q.tasks.Store(id, t)
	q.emit(id, events.TaskSubmitted, nil)

	if err := q.pool.Submit(func() { q.execute(t) }); err != nil {
		q.tasks.Delete(id)
		t.cancel()
		q.emit(id, events.TaskCancelled, err)
		if errors.Is(err, ErrPoolClosed) {
			return NoTaskID, ErrQueueClosed
		}
		q.logger.Warn("task rejected", "task_id", id, "error", err)
		return NoTaskID, fmt.Errorf("failed to schedule task %d: %w", id, err)
	}

	q.logger.Debug("task submitted", "task_id", id)
	return id, nil
}

// Get returns the task with the given id and marks it received.
// It never waits for the task to finish.
func (q *JobQueue) Get(id int64) (*Task, error) {
	t, ok := q.lookup(id)
	if !ok {
		return nil, fmt.Errorf("task %d: %w", id, ErrTaskNotFound)
	}

	if t.markReceived() {
		q.logger.Debug("task received", "task_id", id, "status", t.Status())
	}
	return t, nil
}

// Cancel cancels the task with the given id. It does not mark the task
// received.
func (q *JobQueue) Cancel(id int64) error {
	t, ok := q.lookup(id)
	if !ok {
		return fmt.Errorf("task %d: %w", id, ErrTaskNotFound)
	}

	if !t.Cancel() {
		return nil
	}

	q.logger.Info("task cancellation requested", "task_id", id)
	// A running task reports its own cancellation when the work item returns.
	if t.Status() == StatusCancelled && t.StartedAt().IsZero() {
		q.emit(id, events.TaskCancelled, t.Err())
	}
	return nil
}

// Tasks returns a snapshot of every retained task, ordered by id.
func (q *JobQueue) Tasks() []*Task {
	var tasks []*Task
	q.tasks.Range(func(_, value any) bool {
		tasks = append(tasks, value.(*Task))
		return true
	})

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].ID() < tasks[j].ID()
	})
	return tasks
}

// SetMaximumPoolSize changes how many tasks may execute at once; 0 is unbounded.
func (q *JobQueue) SetMaximumPoolSize(n int) {
	q.pool.SetMaxWorkers(n)
}

// MaximumPoolSize returns the current execution bound.
func (q *JobQueue) MaximumPoolSize() int {
	return q.pool.MaxWorkers()
}

// PoolStats returns a snapshot of the worker pool.
func (q *JobQueue) PoolStats() PoolStats {
	return q.pool.Stats()
}

// Shutdown stops the sweep, rejects new work, cancels every outstanding
// task and waits for running work items to return until ctx is done.
// Work items that ignore their context may still be running when it
// returns ctx's error.
func (q *JobQueue) Shutdown(ctx context.Context) error {
	q.shutdownOnce.Do(func() {
		q.closed.Store(true)
		close(q.stopSweep)

		dropped := q.pool.Close()
		q.cancel()

		cancelled := 0
		q.tasks.Range(func(_, value any) bool {
			t := value.(*Task)
			if t.cancelPending() {
				cancelled++
				q.emit(t.ID(), events.TaskCancelled, t.Err())
			}
			return true
		})

		q.logger.Info("job queue shutting down",
			"dropped_jobs", len(dropped),
			"cancelled_pending", cancelled)
	})

	select {
	case <-q.sweepDone:
	case <-ctx.Done():
		return ctx.Err()
	}
	return q.pool.Wait(ctx)
}

func (q *JobQueue) lookup(id int64) (*Task, bool) {
	value, ok := q.tasks.Load(id)
	if !ok {
		return nil, false
	}
	return value.(*Task), true
}

// execute runs on a pool worker.
func (q *JobQueue) execute(t *Task) {
	if !t.started() {
		return
	}

	logger := q.logger.With("task_id", t.ID())
	logger.Debug("task started")
	q.emit(t.ID(), events.TaskStarted, nil)

	result, err := invoke(t)

	switch status := t.complete(result, err); status {
	case StatusCompleted:
		logger.Info("task completed", "duration", t.FinishedAt().Sub(t.StartedAt()))
		q.emit(t.ID(), events.TaskCompleted, nil)
	case StatusCancelled:
		logger.Info("task cancelled", "error", err)
		q.emit(t.ID(), events.TaskCancelled, err)
	default:
		var panicErr *PanicError
		if errors.As(err, &panicErr) {
			logger.Error("task panicked", "error", err, "stack", string(panicErr.Stack))
		} else {
			logger.Warn("task failed", "error", err)
		}
		q.emit(t.ID(), events.TaskFailed, err)
	}
}

// invoke calls the work item, turning a panic into a *PanicError.
func invoke(t *Task) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return t.item.Execute(t.ctx)
}

func (q *JobQueue) emit(id int64, eventType events.EventType, err error) {
	if q.config.Emitter == nil {
		return
	}
	// Handler failures are logged by the emitter and never affect the task.
	_ = q.config.Emitter.EmitEvent(context.Background(), events.NewTaskEvent(id, eventType, err))
}

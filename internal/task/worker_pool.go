package task

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// WorkerPoolConfig holds configuration options for the worker pool
type WorkerPoolConfig struct {
	// MaxWorkers bounds how many jobs execute concurrently.
	// Zero or negative means unbounded.
	MaxWorkers int

	// QueueCapacity bounds the backlog of jobs waiting for a free slot
	// once MaxWorkers is reached. Zero or negative means unbounded.
	QueueCapacity int

	// IdleTimeout is how long a worker without work lingers before exiting.
	// If zero or negative, defaults to 60 seconds.
	IdleTimeout time.Duration
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with reasonable defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		MaxWorkers:    0,
		QueueCapacity: 0,
		IdleTimeout:   60 * time.Second,
	}
}

// PoolStats is a point-in-time view of a WorkerPool.
type PoolStats struct {
	Workers    int `json:"workers"`
	Idle       int `json:"idle"`
	Active     int `json:"active"`
	Backlog    int `json:"backlog"`
	MaxWorkers int `json:"max_workers"`
}

// WorkerPool is a demand-sized pool of worker goroutines. It keeps no
// workers around while there is nothing to do: a job is handed directly to
// an idle worker when one exists, otherwise a new worker is started as long
// as fewer than MaxWorkers jobs are executing. Beyond that, jobs wait in a
// FIFO backlog. Workers that stay idle for IdleTimeout exit.
type WorkerPool struct {
	mu            sync.Mutex
	maxWorkers    int
	queueCapacity int
	idleTimeout   time.Duration

	// workers counts live goroutines, idle ones included
	workers int
	// active counts jobs currently executing
	active int
	// idle holds one mailbox per parked worker, most recently parked last
	idle    []chan func()
	backlog []func()
	closed  bool

	// done is closed by Close to wake parked workers
	done chan struct{}
	wg   sync.WaitGroup

	logger *slog.Logger
}

// NewWorkerPool creates a new worker pool with the specified configuration
func NewWorkerPool(config WorkerPoolConfig, logger *slog.Logger) *WorkerPool {
	idleTimeout := config.IdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = DefaultWorkerPoolConfig().IdleTimeout
		logger.Warn("invalid idle timeout specified, using default",
			"specified_timeout", config.IdleTimeout,
			"default_timeout", idleTimeout)
	}

	return &WorkerPool{
		maxWorkers:    max(config.MaxWorkers, 0),
		queueCapacity: max(config.QueueCapacity, 0),
		idleTimeout:   idleTimeout,
		done:          make(chan struct{}),
		logger:        logger.With("component", "worker_pool"),
	}
}

// Submit schedules job. It never blocks: the job is started on an idle or
// new worker, or queued in the backlog. It fails with ErrPoolClosed after
// Close and with ErrPoolFull when the backlog is bounded and full.
func (p *WorkerPool) Submit(job func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}

	if p.hasSlotLocked() {
		p.dispatchLocked(job)
		return nil
	}

	if p.queueCapacity > 0 && len(p.backlog) >= p.queueCapacity {
		return ErrPoolFull
	}
	p.backlog = append(p.backlog, job)
	p.logger.Debug("job queued in backlog",
		"backlog_len", len(p.backlog),
		"active", p.active,
		"max_workers", p.maxWorkers)
	return nil
}

// SetMaxWorkers changes the concurrency bound at runtime. Raising it starts
// waiting backlog jobs immediately; lowering it takes effect as running jobs
// finish.
func (p *WorkerPool) SetMaxWorkers(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.maxWorkers = max(n, 0)
	p.drainBacklogLocked()
	p.logger.Info("maximum pool size changed", "max_workers", p.maxWorkers)
}

// MaxWorkers returns the current concurrency bound (0 means unbounded).
func (p *WorkerPool) MaxWorkers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxWorkers
}

// Stats returns a snapshot of the pool's counters.
func (p *WorkerPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		Workers:    p.workers,
		Idle:       len(p.idle),
		Active:     p.active,
		Backlog:    len(p.backlog),
		MaxWorkers: p.maxWorkers,
	}
}

// Close stops accepting jobs, wakes idle workers so they exit and returns
// the backlog jobs that never started. Running jobs are left to finish.
// Calling Close more than once returns nil.
func (p *WorkerPool) Close() []func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	dropped := p.backlog
	p.backlog = nil
	close(p.done)

	p.logger.Info("worker pool closed",
		"dropped_jobs", len(dropped),
		"active", p.active)
	return dropped
}

// Wait blocks until every worker has exited or ctx is done.
func (p *WorkerPool) Wait(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *WorkerPool) hasSlotLocked() bool {
	return p.maxWorkers == 0 || p.active < p.maxWorkers
}

// dispatchLocked starts job on the most recently parked worker, or on a new
// one. The caller has checked hasSlotLocked.
func (p *WorkerPool) dispatchLocked(job func()) {
	p.active++

	if n := len(p.idle); n > 0 {
		mailbox := p.idle[n-1]
		p.idle[n-1] = nil
		p.idle = p.idle[:n-1]
		// Buffered with capacity one and owned by a single worker.
		mailbox <- job
		return
	}

	p.workers++
	p.wg.Add(1)
	go p.worker(job)
}

func (p *WorkerPool) drainBacklogLocked() {
	for len(p.backlog) > 0 && !p.closed && p.hasSlotLocked() {
		job := p.popBacklogLocked()
		p.dispatchLocked(job)
	}
}

func (p *WorkerPool) popBacklogLocked() func() {
	job := p.backlog[0]
	p.backlog[0] = nil
	p.backlog = p.backlog[1:]
	return job
}

func (p *WorkerPool) worker(job func()) {
	defer p.wg.Done()

	for job != nil {
		p.run(job)
		job = p.next()
	}
}

// run executes one job. Jobs are expected to handle their own panics;
// this keeps a stray one from taking the worker down with the process.
func (p *WorkerPool) run(job func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("job panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	job()
}

// next returns the worker's following job, parking it until one arrives.
// It returns nil when the worker should exit.
func (p *WorkerPool) next() func() {
	p.mu.Lock()
	p.active--

	if len(p.backlog) > 0 && p.hasSlotLocked() {
		p.active++
		job := p.popBacklogLocked()
		p.mu.Unlock()
		return job
	}

	if p.closed {
		p.workers--
		p.mu.Unlock()
		return nil
	}

	mailbox := make(chan func(), 1)
	p.idle = append(p.idle, mailbox)
	p.mu.Unlock()

	timer := time.NewTimer(p.idleTimeout)
	defer timer.Stop()

	select {
	case job := <-mailbox:
		return job
	case <-timer.C:
	case <-p.done:
	}

	p.mu.Lock()
	if p.removeIdleLocked(mailbox) {
		p.workers--
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	// A submitter claimed this worker before it could leave; the job is
	// already in the mailbox.
	return <-mailbox
}

func (p *WorkerPool) removeIdleLocked(mailbox chan func()) bool {
	for i, m := range p.idle {
		if m == mailbox {
			p.idle = append(p.idle[:i], p.idle[i+1:]...)
			return true
		}
	}
	return false
}

package task

import (
	"context"
	"fmt"
	"time"

	"github.com/phrazzld/jobqueue/internal/events"
)

// SweepReport summarizes one sweep cycle.
type SweepReport struct {
	// Examined is the number of tasks looked at
	Examined int `json:"examined"`
	// Evicted is the number of tasks removed from the retention table
	Evicted int `json:"evicted"`
	// Failed counts tasks kept because inspecting or releasing their result failed
	Failed int `json:"failed"`
	// PurgedDirs is the number of marked scratch directories deleted
	PurgedDirs int `json:"purged_dirs"`
	// PurgeFailures is the number of marked scratch directories that could not be deleted
	PurgeFailures int `json:"purge_failures"`
}

type sweepOutcome int

const (
	outcomeRunning sweepOutcome = iota
	outcomeUnreceived
	outcomeRetained
	outcomeFailed
	outcomeEvicted
)

// sweepLoop periodically reclaims finished tasks until Shutdown.
func (q *JobQueue) sweepLoop() {
	defer close(q.sweepDone)

	ticker := time.NewTicker(q.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.stopSweep:
			return
		case <-ticker.C:
			q.Sweep(q.ctx)
		}
	}
}

// Sweep runs one retention cycle now. Cycles never overlap: a call made
// while the periodic sweep is running waits for it. A cancelled ctx stops
// the task pass early.
//
// Every task that is done and either cancelled or received is inspected.
// If its result is Reclaimable and reports terminal-and-empty, its
// resources are released and it is evicted. Failures are logged and the
// task is kept for the next cycle. Finally the scratch area, if any, is
// purged of marked directories.
func (q *JobQueue) Sweep(ctx context.Context) SweepReport {
	q.sweepMu.Lock()
	defer q.sweepMu.Unlock()

	var report SweepReport
	q.tasks.Range(func(_, value any) bool {
		if ctx.Err() != nil {
			return false
		}
		report.Examined++
		switch q.reclaim(value.(*Task)) {
		case outcomeEvicted:
			report.Evicted++
		case outcomeFailed:
			report.Failed++
		}
		return true
	})

	if q.config.Scratch != nil {
		purge, err := q.config.Scratch.PurgeMarked()
		report.PurgedDirs = len(purge.Removed)
		report.PurgeFailures = len(purge.Failed)
		if err != nil {
			q.logger.Warn("scratch cleanup incomplete", "error", err)
		}
	}

	if report.Evicted > 0 || report.Failed > 0 || report.PurgedDirs > 0 || report.PurgeFailures > 0 {
		q.logger.Info("sweep finished",
			"examined", report.Examined,
			"evicted", report.Evicted,
			"failed", report.Failed,
			"purged_dirs", report.PurgedDirs,
			"purge_failures", report.PurgeFailures)
	} else {
		q.logger.Debug("sweep finished", "examined", report.Examined)
	}

	return report
}

func (q *JobQueue) reclaim(t *Task) sweepOutcome {
	if !t.IsDone() {
		return outcomeRunning
	}
	if !t.IsCancelled() && !t.Received() {
		return outcomeUnreceived
	}

	logger := q.logger.With("task_id", t.ID(), "status", t.Status())

	reclaimable, empty, err := inspect(t)
	if err != nil {
		logger.Warn("failed to inspect task result", "error", err)
		return outcomeFailed
	}
	if reclaimable == nil {
		logger.Debug("task result is not reclaimable, retaining")
		return outcomeRetained
	}
	if !empty {
		return outcomeRetained
	}

	if err := release(reclaimable); err != nil {
		logger.Warn("failed to release task resources", "error", err)
		return outcomeFailed
	}

	q.tasks.CompareAndDelete(t.ID(), t)
	logger.Debug("task evicted")
	q.emit(t.ID(), events.TaskEvicted, nil)
	return outcomeEvicted
}

// inspect examines a finished task's result. A failed or cancelled task
// without a result, or a result that panics, cannot be inspected.
func inspect(t *Task) (reclaimable Reclaimable, empty bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			reclaimable, empty = nil, false
			err = fmt.Errorf("%w: result panicked: %v", ErrResultUnavailable, r)
		}
	}()

	result := t.Result()
	if result == nil {
		if t.Status() == StatusCompleted {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: %s task has no result: %v", ErrResultUnavailable, t.Status(), t.Err())
	}

	r, ok := result.(Reclaimable)
	if !ok {
		return nil, false, nil
	}
	return r, r.IsTerminalAndEmpty(), nil
}

func release(r Reclaimable) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("release panicked: %v", rec)
		}
	}()
	return r.ReleaseResources()
}

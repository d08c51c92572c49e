package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/phrazzld/jobqueue/internal/events"
)

// setupTestLogger returns a logger that discards everything
func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// newTestQueue creates a queue whose periodic sweep will not fire during a
// test and shuts it down on cleanup.
func newTestQueue(t *testing.T, config JobQueueConfig) *JobQueue {
	t.Helper()
	if config.SweepInterval == 0 {
		config.SweepInterval = time.Hour
	}
	if config.IdleTimeout == 0 {
		config.IdleTimeout = time.Second
	}
	q := NewJobQueue(config, setupTestLogger())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = q.Shutdown(ctx)
	})
	return q
}

// waitDone blocks until the task with id is done.
func waitDone(t *testing.T, q *JobQueue, id int64) *Task {
	t.Helper()
	value, ok := q.tasks.Load(id)
	require.True(t, ok, "task %d not retained", id)
	tk := value.(*Task)
	select {
	case <-tk.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("task %d did not finish", id)
	}
	return tk
}

// returning builds a work item that returns result.
func returning(result any) WorkFunc {
	return func(ctx context.Context) (any, error) {
		return result, nil
	}
}

// failing builds a work item that returns err.
func failing(err error) WorkFunc {
	return func(ctx context.Context) (any, error) {
		return nil, err
	}
}

// blocking builds a work item that waits for release or cancellation.
func blocking(release <-chan struct{}, result any) WorkFunc {
	return func(ctx context.Context) (any, error) {
		select {
		case <-release:
			return result, nil
		case <-ctx.Done():
			return result, ctx.Err()
		}
	}
}

// fakeResult is a Reclaimable with controllable behavior.
type fakeResult struct {
	empty          bool
	panicOnInspect bool
	releaseErr     error
	releases       atomic.Int32
	releaseMu      sync.Mutex
}

func (r *fakeResult) IsTerminalAndEmpty() bool {
	if r.panicOnInspect {
		panic("result is unusable")
	}
	return r.empty
}

func (r *fakeResult) ReleaseResources() error {
	r.releaseMu.Lock()
	defer r.releaseMu.Unlock()
	if r.releaseErr != nil {
		return r.releaseErr
	}
	r.releases.Add(1)
	return nil
}

func (r *fakeResult) setReleaseErr(err error) {
	r.releaseMu.Lock()
	defer r.releaseMu.Unlock()
	r.releaseErr = err
}

var errWorkFailed = errors.New("work failed")

// recordingHandler collects emitted events.
type recordingHandler struct {
	mu     sync.Mutex
	events []*events.TaskEvent
}

func (h *recordingHandler) HandleEvent(ctx context.Context, event *events.TaskEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return nil
}

func (h *recordingHandler) typesFor(taskID int64) []events.EventType {
	h.mu.Lock()
	defer h.mu.Unlock()
	var types []events.EventType
	for _, e := range h.events {
		if e.TaskID == taskID {
			types = append(types, e.Type)
		}
	}
	return types
}

package task

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_IsTerminal(t *testing.T) {
	t.Parallel()

	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusRunning.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
}

func TestTask_Lifecycle(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		result     any
		err        error
		cancelCtx  bool
		wantStatus Status
	}{
		{name: "completed", result: "ok", wantStatus: StatusCompleted},
		{name: "failed", err: errWorkFailed, wantStatus: StatusFailed},
		{name: "cancelled while running", result: "partial", err: context.Canceled, cancelCtx: true, wantStatus: StatusCancelled},
		{name: "cancelled but returned cleanly", result: "ok", cancelCtx: true, wantStatus: StatusCancelled},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tk := newTask(context.Background(), 7, returning(nil))
			assert.Equal(t, int64(7), tk.ID())
			assert.Equal(t, StatusPending, tk.Status())
			assert.False(t, tk.IsDone())
			assert.False(t, tk.SubmittedAt().IsZero())
			assert.True(t, tk.StartedAt().IsZero())

			require.True(t, tk.started())
			assert.Equal(t, StatusRunning, tk.Status())
			assert.False(t, tk.IsDone())
			assert.False(t, tk.StartedAt().IsZero())
			assert.False(t, tk.started(), "a task starts once")

			if tc.cancelCtx {
				tk.cancel()
			}
			status := tk.complete(tc.result, tc.err)

			assert.Equal(t, tc.wantStatus, status)
			assert.Equal(t, tc.wantStatus, tk.Status())
			assert.True(t, tk.IsDone())
			assert.Equal(t, tc.wantStatus == StatusCancelled, tk.IsCancelled())
			assert.Equal(t, tc.result, tk.Result())
			assert.Equal(t, tc.err, tk.Err())
			assert.False(t, tk.FinishedAt().IsZero())

			select {
			case <-tk.Done():
			default:
				t.Fatal("Done channel should be closed")
			}

			assert.Equal(t, tc.wantStatus, tk.complete("again", nil), "completion is recorded once")
			assert.Equal(t, tc.result, tk.Result())
		})
	}
}

func TestTask_CancelBeforeStart(t *testing.T) {
	t.Parallel()

	tk := newTask(context.Background(), 1, returning("never"))

	assert.True(t, tk.Cancel())
	assert.Equal(t, StatusCancelled, tk.Status())
	assert.True(t, tk.IsDone())
	assert.True(t, tk.IsCancelled())
	assert.True(t, errors.Is(tk.Err(), context.Canceled))
	assert.False(t, tk.started(), "a cancelled task must not start")
	assert.False(t, tk.Cancel(), "cancelling a done task reports false")
}

func TestTask_CancelWhileRunning(t *testing.T) {
	t.Parallel()

	tk := newTask(context.Background(), 1, returning(nil))
	require.True(t, tk.started())

	assert.True(t, tk.Cancel())
	assert.Equal(t, StatusRunning, tk.Status(), "running task waits for its work item")
	assert.Error(t, tk.ctx.Err())

	tk.complete(nil, tk.ctx.Err())
	assert.Equal(t, StatusCancelled, tk.Status())
}

func TestTask_MarkReceived(t *testing.T) {
	t.Parallel()

	tk := newTask(context.Background(), 1, returning(nil))
	assert.False(t, tk.Received())

	assert.True(t, tk.markReceived(), "first call flips the flag")
	assert.True(t, tk.Received())
	assert.False(t, tk.markReceived(), "later calls leave it set")
	assert.True(t, tk.Received())
}

func TestPanicError(t *testing.T) {
	t.Parallel()

	err := &PanicError{Value: "kaboom"}
	assert.Equal(t, "work item panicked: kaboom", err.Error())
	assert.Nil(t, err.Unwrap())

	wrapped := &PanicError{Value: errWorkFailed}
	assert.ErrorIs(t, wrapped, errWorkFailed)
}

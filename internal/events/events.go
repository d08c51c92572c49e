package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType identifies the lifecycle change a TaskEvent describes.
type EventType string

// Lifecycle event types
const (
	TaskSubmitted EventType = "submitted"
	TaskStarted   EventType = "started"
	TaskCompleted EventType = "completed"
	TaskFailed    EventType = "failed"
	TaskCancelled EventType = "cancelled"
	TaskEvicted   EventType = "evicted"
)

// TaskEvent records one lifecycle change of a queued task.
type TaskEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// TaskID is the queue-assigned identifier of the task
	TaskID int64 `json:"task_id"`

	// Type is the lifecycle change
	Type EventType `json:"type"`

	// Error carries the task error message for failed and cancelled events
	Error string `json:"error,omitempty"`

	// At is when the change happened
	At time.Time `json:"at"`
}

// NewTaskEvent creates a TaskEvent stamped with a fresh id and the current time.
func NewTaskEvent(taskID int64, eventType EventType, err error) *TaskEvent {
	event := &TaskEvent{
		ID:     uuid.New(),
		TaskID: taskID,
		Type:   eventType,
		At:     time.Now(),
	}
	if err != nil {
		event.Error = err.Error()
	}
	return event
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *TaskEvent) error
}

// HandlerFunc adapts a function to EventHandler.
type HandlerFunc func(ctx context.Context, event *TaskEvent) error

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *TaskEvent) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
// This allows the queue to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *TaskEvent) error
}

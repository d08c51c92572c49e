package events

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"go.uber.org/multierr"
)

// subscription is one registered handler and the event types it wants.
// An empty types list means every type.
type subscription struct {
	handler EventHandler
	types   []EventType
}

func (s subscription) wants(t EventType) bool {
	return len(s.types) == 0 || slices.Contains(s.types, t)
}

// InMemoryEventEmitter dispatches task events to in-process handlers,
// synchronously and in registration order, on the emitting goroutine.
type InMemoryEventEmitter struct {
	mu     sync.RWMutex
	subs   []subscription
	logger *slog.Logger
}

// NewInMemoryEventEmitter creates an emitter with no handlers.
func NewInMemoryEventEmitter(logger *slog.Logger) *InMemoryEventEmitter {
	return &InMemoryEventEmitter{
		logger: logger.With("component", "task_events"),
	}
}

// RegisterHandler subscribes handler to the given event types, or to all
// of them when none are given.
func (e *InMemoryEventEmitter) RegisterHandler(handler EventHandler, types ...EventType) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subs = append(e.subs, subscription{handler: handler, types: slices.Clone(types)})
	e.logger.Debug("task event handler registered",
		"handler_count", len(e.subs),
		"event_types", types)
}

// EmitEvent delivers event to every subscribed handler. A failing or
// panicking handler does not stop delivery to the rest; all failures are
// returned together.
func (e *InMemoryEventEmitter) EmitEvent(ctx context.Context, event *TaskEvent) error {
	e.mu.RLock()
	subs := slices.Clone(e.subs)
	e.mu.RUnlock()

	var errs error
	for i, sub := range subs {
		if !sub.wants(event.Type) {
			continue
		}
		if err := deliver(ctx, sub.handler, event); err != nil {
			e.logger.Error("task event handler failed",
				"error", err,
				"handler_index", i,
				"event_id", event.ID,
				"event_type", event.Type,
				"task_id", event.TaskID,
				"task_error", event.Error)
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func deliver(ctx context.Context, handler EventHandler, event *TaskEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked on %s event for task %d: %v", event.Type, event.TaskID, r)
		}
	}()
	return handler.HandleEvent(ctx, event)
}

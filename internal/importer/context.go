package importer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/phrazzld/jobqueue/internal/task"
	"github.com/phrazzld/jobqueue/internal/upload"
)

// State is the progress of an import.
type State string

// Import states
const (
	StatePending            State = "pending"
	StateRunning            State = "running"
	StateComplete           State = "complete"
	StateCompleteWithErrors State = "complete_with_errors"
	StateFailed             State = "failed"
	StateCancelled          State = "cancelled"
)

// IsTerminal reports whether the import has stopped.
func (s State) IsTerminal() bool {
	switch s {
	case StateComplete, StateCompleteWithErrors, StateFailed, StateCancelled:
		return true
	}
	return false
}

var _ task.Reclaimable = (*Context)(nil)

// Context is the result of an import job.
type Context struct {
	id  uuid.UUID
	dir *upload.Directory

	mu       sync.RWMutex
	state    State
	items    []string
	failures map[string]error
	released bool
}

// NewContext creates a pending Context for dir.
func NewContext(dir *upload.Directory) *Context {
	return &Context{
		id:       uuid.New(),
		dir:      dir,
		state:    StatePending,
		failures: make(map[string]error),
	}
}

// ID returns the import's identifier.
func (c *Context) ID() uuid.UUID {
	return c.id
}

// Directory returns the upload directory the import works on.
func (c *Context) Directory() *upload.Directory {
	return c.dir
}

// State returns the current state.
func (c *Context) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Items returns the files that have not been imported.
func (c *Context) Items() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	items := make([]string, len(c.items))
	copy(items, c.items)
	return items
}

// Failure returns the error recorded for item, if any.
func (c *Context) Failure(item string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.failures[item]
}

// IsTerminalAndEmpty reports a clean, complete import with nothing left over.
func (c *Context) IsTerminalAndEmpty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state == StateComplete && len(c.items) == 0
}

// ReleaseResources unlocks the upload directory and marks it for deletion.
// Releasing an already released Context does nothing.
func (c *Context) ReleaseResources() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released || c.dir == nil {
		return nil
	}

	if err := c.dir.Unlock(); err != nil && !errors.Is(err, upload.ErrNotLocked) {
		return fmt.Errorf("failed to release import %s: %w", c.id, err)
	}
	if err := c.dir.MarkForDeletion(); err != nil {
		return fmt.Errorf("failed to release import %s: %w", c.id, err)
	}
	c.released = true
	return nil
}

func (c *Context) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

func (c *Context) setItems(items []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = items
}

// finishItem drops item from the outstanding list, or records why it failed.
func (c *Context) finishItem(item string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.failures[item] = err
		return
	}
	for i, it := range c.items {
		if it == item {
			c.items = append(c.items[:i], c.items[i+1:]...)
			break
		}
	}
}

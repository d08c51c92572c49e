package importer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/jobqueue/internal/task"
	"github.com/phrazzld/jobqueue/internal/upload"
)

// Processor imports a single staged file.
type Processor interface {
	Process(ctx context.Context, dir *upload.Directory, name string) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, dir *upload.Directory, name string) error

// Process calls f.
func (f ProcessorFunc) Process(ctx context.Context, dir *upload.Directory, name string) error {
	return f(ctx, dir, name)
}

var _ task.WorkItem = (*Job)(nil)

// Job imports every file staged in one upload directory.
type Job struct {
	result    *Context
	processor Processor
	logger    *slog.Logger
}

// NewJob creates a Job for dir.
func NewJob(dir *upload.Directory, processor Processor, logger *slog.Logger) *Job {
	return &Job{
		result:    NewContext(dir),
		processor: processor,
		logger:    logger.With("component", "import_job", "dir", dir.Name()),
	}
}

// Context returns the job's Context, which is also its result.
func (j *Job) Context() *Context {
	return j.result
}

// Execute runs the import. It always returns the Context, alongside an error
// when the import failed or was cancelled. Cancellation is checked between
// files; a file already being processed is not interrupted except through
// the context the Processor receives.
func (j *Job) Execute(ctx context.Context) (any, error) {
	c := j.result
	dir := c.Directory()

	if err := dir.Lock(); err != nil {
		c.setState(StateFailed)
		return c, fmt.Errorf("failed to lock upload directory: %w", err)
	}
	c.setState(StateRunning)

	files, err := dir.Files()
	if err != nil {
		c.setState(StateFailed)
		// A failed import is never released by the sweep, so drop the lock here.
		if unlockErr := dir.Unlock(); unlockErr != nil {
			j.logger.Warn("failed to unlock upload directory", "import_id", c.ID(), "error", unlockErr)
		}
		return c, fmt.Errorf("failed to list upload directory: %w", err)
	}
	c.setItems(files)
	j.logger.Info("import started", "import_id", c.ID(), "files", len(files))

	failed := 0
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			c.setState(StateCancelled)
			j.logger.Info("import cancelled", "import_id", c.ID(), "remaining", len(c.Items()))
			return c, err
		}

		err := j.processor.Process(ctx, dir, name)
		if err != nil {
			failed++
			j.logger.Warn("failed to import file", "import_id", c.ID(), "file", name, "error", err)
		}
		c.finishItem(name, err)
	}

	if failed > 0 {
		c.setState(StateCompleteWithErrors)
	} else {
		c.setState(StateComplete)
	}
	j.logger.Info("import finished", "import_id", c.ID(), "state", c.State(), "failed", failed)
	return c, nil
}

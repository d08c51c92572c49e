// Package main implements the entry point for the import job queue daemon.
// It loads configuration, sets up logging and the upload area, runs the job
// queue with its retention sweep and shuts it down on SIGINT or SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"

	"github.com/phrazzld/jobqueue/internal/config"
	"github.com/phrazzld/jobqueue/internal/events"
	"github.com/phrazzld/jobqueue/internal/platform/logger"
	"github.com/phrazzld/jobqueue/internal/task"
	"github.com/phrazzld/jobqueue/internal/upload"
)

func main() {
	configPath := flag.String("config", "", "optional configuration file")
	flag.Parse()

	app, err := initializeApp(*configPath, afero.NewOsFs())
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	app.logger.Info("shutdown signal received")

	if err := app.shutdown(); err != nil {
		app.logger.Error("shutdown incomplete", "error", err)
		os.Exit(1)
	}
}

// application holds the wired components of a running daemon.
type application struct {
	config  *config.Config
	logger  *slog.Logger
	area    *upload.Area
	emitter *events.InMemoryEventEmitter
	queue   *task.JobQueue
}

// initializeApp loads configuration and sets up application components.
func initializeApp(configPath string, fs afero.Fs) (*application, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	l, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	return newApplication(cfg, fs, l)
}

// newApplication wires the upload area, event emitter and job queue.
func newApplication(cfg *config.Config, fs afero.Fs, l *slog.Logger) (*application, error) {
	area, err := upload.NewArea(fs, cfg.Upload.Root, l)
	if err != nil {
		return nil, fmt.Errorf("failed to set up upload area: %w", err)
	}

	emitter := events.NewInMemoryEventEmitter(l)
	emitter.RegisterHandler(auditHandler(l))

	queue := task.NewJobQueue(queueConfig(cfg.Queue, area, emitter), l)

	l.Info("job queue started",
		"max_pool_size", cfg.Queue.MaxPoolSize,
		"queue_capacity", cfg.Queue.QueueCapacity,
		"sweep_interval", cfg.Queue.SweepInterval,
		"upload_root", area.Root())

	return &application{
		config:  cfg,
		logger:  l,
		area:    area,
		emitter: emitter,
		queue:   queue,
	}, nil
}

// queueConfig maps loaded settings onto the job queue's configuration.
func queueConfig(cfg config.QueueConfig, scratch task.ScratchPurger, emitter events.EventEmitter) task.JobQueueConfig {
	return task.JobQueueConfig{
		MaxPoolSize:   cfg.MaxPoolSize,
		QueueCapacity: cfg.QueueCapacity,
		IdleTimeout:   cfg.IdleTimeout,
		SweepInterval: cfg.SweepInterval,
		Scratch:       scratch,
		Emitter:       emitter,
	}
}

// auditHandler records every task lifecycle event at debug level.
func auditHandler(l *slog.Logger) events.EventHandler {
	audit := l.With("component", "task_audit")
	return events.HandlerFunc(func(ctx context.Context, event *events.TaskEvent) error {
		audit.Debug("task event",
			"event_id", event.ID,
			"task_id", event.TaskID,
			"event_type", event.Type,
			"error", event.Error)
		return nil
	})
}

func (a *application) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.config.Queue.ShutdownTimeout)
	defer cancel()

	if err := a.queue.Shutdown(ctx); err != nil {
		return fmt.Errorf("job queue did not stop within %s: %w", a.config.Queue.ShutdownTimeout, err)
	}
	a.logger.Info("job queue stopped")
	return nil
}

// Package logger provides structured logging functionality for the job queue.
//
// It utilizes Go's standard library log/slog package to implement structured JSON logging
// with configurable log levels. Components never reach for a global logger: they receive
// the *slog.Logger built here and derive their own with a "component" attribute.
package logger

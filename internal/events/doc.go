// Package events publishes task lifecycle changes to interested parties.
//
// The job queue emits a TaskEvent whenever a task is submitted, starts,
// finishes, is cancelled or is evicted by the retention sweep. Handlers are
// registered with an EventEmitter and never influence the queue itself: a
// failing handler is logged and the remaining handlers still run.
//
// The primary components are:
// - TaskEvent: one lifecycle change of one task
// - EventHandler: Interface for components that can handle events
// - EventEmitter: Interface for components that can emit events
package events

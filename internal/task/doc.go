// Package task runs submitted work asynchronously and keeps track of it.
//
// A JobQueue accepts opaque work items, numbers them with strictly
// increasing int64 ids and executes them on an elastic WorkerPool. Every
// task stays in the queue's retention table after it finishes so that the
// submitter can poll it by id. Fetching a task with Get marks it received;
// a periodic sweep evicts tasks that are finished, have been received (or
// were cancelled) and whose result reports that it is terminal and empty,
// releasing whatever resources the result still holds.
package task

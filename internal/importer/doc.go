// Package importer provides the import job that runs on the job queue and
// the Context it produces.
//
// A Job owns one upload directory: it locks the directory, hands each staged
// file to a Processor and records the outcome in its Context. A Context that
// finished cleanly with nothing left over tells the queue's sweep it can be
// evicted; releasing it unlocks the directory and marks it for deletion so
// the same sweep removes the staged files.
package importer

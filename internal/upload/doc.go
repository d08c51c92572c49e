// Package upload manages the scratch storage that import jobs stage their
// files in. Every job gets its own directory under a single root; a job
// holds a lock file in its directory while it works, and a directory that
// is no longer needed is flagged with a marker file so that the periodic
// sweep can delete it later.
//
// All filesystem access goes through afero so that callers (and tests) can
// substitute an in-memory or read-only filesystem.
package upload

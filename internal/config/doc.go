// Package config handles configuration loading, parsing, and validation
// from various sources (environment variables, files). It provides type-safe
// access to the settings needed by the job queue, the upload area and the
// logger while keeping configuration details separate from queue logic.
package config

// Package engine is the driver-side entry point to the solvers. It enforces
// the configured catalog and table size limits, times and logs every run
// and compares strategies concurrently.
package engine

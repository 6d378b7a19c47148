// Package diagnostics collects failure reports for a test run.
//
// A [Recorder] turns the errors returned by polls and lifecycle operations
// into [Failure] entries that keep the last observed status code and
// document. [Publish] writes the report and the metrics textfile to the
// artifact directory and, when a bucket is configured, uploads them.
package diagnostics

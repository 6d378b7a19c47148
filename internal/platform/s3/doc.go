// Package s3 uploads test artifacts to S3-compatible object storage.
//
// Failure reports and metrics textfiles are stored under a per-run prefix
// so that CI jobs can link to them after the cluster has been torn down.
package s3

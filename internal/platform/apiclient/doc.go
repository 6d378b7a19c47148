// Package apiclient is a minimal JSON REST client for the Harvester and
// Rancher APIs.
//
// Every call returns the HTTP status code together with the decoded
// [document.Document]. Non-2xx codes are not errors: callers assert on them
// or feed them to a converge predicate. Only transport failures are
// returned as errors.
package apiclient

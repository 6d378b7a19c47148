// Package lifecycle wraps remote resources in a create, converge and
// teardown cycle.
//
// [EnsureOperation] looks a resource up by its natural key, creates it when
// absent and waits for it to become ready. [DeleteOperation] issues a delete
// inside a converge loop so that deletes rejected while the resource is in
// use are retried, then optionally waits until the resource is gone.
// [Scope] collects teardown steps and runs them in reverse order when a
// test ends, even if earlier steps failed.
package lifecycle

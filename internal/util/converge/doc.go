// Package converge polls a remote resource until it reaches a target state.
//
// [AwaitCondition] fetches immediately, then at a fixed interval, until a
// predicate over the response (status code and document) holds or the
// timeout elapses. A timeout is reported exactly once as a [*TimeoutError]
// carrying the last observation. A predicate that returns an error stops
// polling with a [*FailedError]; this is how callers mark response codes as
// non-retryable.
//
// Transport errors from a fetch are treated as observations: they are
// recorded on the outcome and polling continues. Wrap an error with [Stop]
// to end polling from inside a fetch.
package converge

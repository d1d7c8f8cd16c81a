// Package poll provides the bounded retry primitive used to reconcile
// the asynchronous ingestion path with the eventually-consistent query
// path.
//
// A probe is invoked at a fixed short interval until it reports success
// or a wall-clock deadline expires. Probes report a tri-state outcome:
//   - not yet: keep retrying
//   - success: stop, return the probed value
//   - permanent: stop, propagate the error immediately
//
// Polling blocks the calling goroutine for up to the configured
// timeout. There is no mid-poll abort signal; once a wait starts it
// runs to success, permanent failure, or deadline.
package poll

import (
	"fmt"
	"time"

	retry "github.com/avast/retry-go"
)

// DefaultInterval is the delay between probe attempts.
const DefaultInterval = 50 * time.Millisecond

// Outcome is the result of a single probe attempt.
// Construct values with NotYet, Success, or Permanent.
type Outcome[T any] struct {
	value T
	ok    bool
	err   error
}

// NotYet reports that the awaited condition does not hold yet.
func NotYet[T any]() Outcome[T] {
	return Outcome[T]{}
}

// Success reports that the condition holds and carries the probed value.
func Success[T any](value T) Outcome[T] {
	return Outcome[T]{value: value, ok: true}
}

// Permanent reports a failure that further retrying cannot fix.
// The error is propagated to the caller of Wait unchanged.
func Permanent[T any](err error) Outcome[T] {
	return Outcome[T]{err: err}
}

// Probe is a single check invoked repeatedly by Wait.
type Probe[T any] func() Outcome[T]

// TimeoutError indicates that no probe attempt succeeded before the
// deadline.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("condition not reached within %s", e.Timeout)
}

// errNotYet marks an attempt that should be retried. Never escapes Wait.
var errNotYet = fmt.Errorf("not yet")

// Wait invokes probe at the given fixed interval until it succeeds,
// fails permanently, or the timeout elapses.
//
// On success the probed value is returned. On deadline a *TimeoutError
// is returned no earlier than timeout and no later than timeout plus
// one interval.
func Wait[T any](probe Probe[T], timeout, interval time.Duration) (T, error) {
	var zero T
	if interval <= 0 {
		interval = DefaultInterval
	}

	// Enough attempts to span the deadline; the deadline check below
	// trims the overrun to at most one interval.
	attempts := uint((timeout+interval-1)/interval) + 1
	deadline := time.Now().Add(timeout)

	var result T
	var terminal error
	err := retry.Do(
		func() error {
			if time.Now().After(deadline) {
				terminal = &TimeoutError{Timeout: timeout}
				return retry.Unrecoverable(terminal)
			}
			out := probe()
			switch {
			case out.err != nil:
				terminal = out.err
				return retry.Unrecoverable(out.err)
			case out.ok:
				result = out.value
				return nil
			default:
				return errNotYet
			}
		},
		retry.Attempts(attempts),
		retry.Delay(interval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		if terminal != nil {
			return zero, terminal
		}
		// Attempts exhausted without tripping the deadline check.
		return zero, &TimeoutError{Timeout: timeout}
	}
	return result, nil
}

// WaitFor is Wait with the default polling interval.
func WaitFor[T any](probe Probe[T], timeout time.Duration) (T, error) {
	return Wait(probe, timeout, DefaultInterval)
}

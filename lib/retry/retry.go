// Package retry converts exceptional control flow into values and bounds transient RPC failures. Go surfaces a
// function's error as a value; chain and API operations go through Do, which retries with doubling backoff.
package retry

import (
	"context"
	"time"
)

// OperationRetries is the number of extra attempts for transient chain and API errors. Semantic per-request errors
// (decoding, authorization) are never retried.
const OperationRetries = 2

// AttemptTimeout bounds a single attempt of a retried operation.
const AttemptTimeout = 10 * time.Second

const baseBackoff = 500 * time.Millisecond

// Go runs fn and surfaces its error as a value.
func Go[T any](fn func() (T, error)) (error, T) {
	v, err := fn()

	return err, v
}

// Do runs op up to 1+OperationRetries times with doubling backoff between attempts. Each attempt gets its own
// deadline. The last error is returned when all attempts fail.
func Do[T any](ctx context.Context, op func(context.Context) (T, error)) (v T, err error) {
	backoff := baseBackoff

	for attempt := 0; attempt <= OperationRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				err = ctx.Err()

				return
			case <-time.After(backoff):
			}

			backoff *= 2
		}

		actx, cancel := context.WithTimeout(ctx, AttemptTimeout)
		v, err = op(actx)

		cancel()

		if err == nil {
			return
		}
	}

	return
}

// Package retry wraps a single asynchronous operation with bounded,
// classification-driven retries. Only errors that declare themselves
// retriable are attempted again; everything else surfaces immediately.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// Policy configures one call's retry behavior. Exponential doubles the
// delay after each failed attempt, otherwise the delay stays constant.
// Both are in use: analysis calls back off exponentially, image calls
// retry on a fixed cadence.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Exponential  bool
}

// retriable is implemented by classified errors.
type retriable interface {
	IsRetriable() bool
}

func isRetriable(err error) bool {
	var r retriable
	return errors.As(err, &r) && r.IsRetriable()
}

func (p Policy) backoff(ctx context.Context) backoff.BackOff {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var b backoff.BackOff
	if p.Exponential {
		b = &backoff.ExponentialBackOff{
			InitialInterval: p.InitialDelay,
			// Deterministic delays: d, 2d, 4d, ...
			RandomizationFactor: 0,
			Multiplier:          2,
			MaxInterval:         time.Hour,
			MaxElapsedTime:      0,
			Stop:                backoff.Stop,
			Clock:               backoff.SystemClock,
		}
	} else {
		b = backoff.NewConstantBackOff(p.InitialDelay)
	}

	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// Do runs fn up to p.MaxAttempts times, strictly sequentially. A
// non-retriable error is returned on first occurrence; when attempts are
// exhausted the last error is returned unmodified so the caller sees the
// true cause. The delay between attempts is a suspension, not a busy
// wait, and is cut short when ctx is cancelled.
func Do[T any](ctx context.Context, p Policy, fn func() (T, error)) (T, error) {
	var result T

	op := func() error {
		var err error
		result, err = fn()
		if err != nil && !isRetriable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, delay time.Duration) {
		log.Warn().Err(err).Dur("delay", delay).Msg("retriable provider failure, backing off")
	}

	err := backoff.RetryNotify(op, p.backoff(ctx), notify)
	return result, err
}

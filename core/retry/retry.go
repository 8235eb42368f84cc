// Package retry configures the exponential backoff shared by the feed
// fetchers and the batch write collector.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds a retry loop.
type Policy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
	// Backoff is the delay before the second try. It doubles after each try.
	Backoff time.Duration
	// MaxBackoff caps the delay. Zero falls back to the backoff library default.
	MaxBackoff time.Duration
}

func (p Policy) attempts() int {
	if p.Attempts <= 0 {
		return 1
	}
	return p.Attempts
}

// BackOff builds the schedule for p: no jitter, doubling from Backoff up to
// MaxBackoff, stopping after Attempts-1 retries or when ctx is done.
func (p Policy) BackOff(ctx context.Context) backoff.BackOffContext {
	retries := p.attempts() - 1
	if retries == 0 {
		// WithMaxRetries treats zero as unlimited.
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.Backoff
	exp.RandomizationFactor = 0
	exp.Multiplier = 2
	exp.MaxElapsedTime = 0
	if p.MaxBackoff > 0 {
		exp.MaxInterval = p.MaxBackoff
	} else if p.Backoff > exp.MaxInterval {
		exp.MaxInterval = p.Backoff
	}
	exp.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(retries)), ctx)
}

// Permanent marks err as not worth retrying. Do returns the wrapped error as is.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Do calls fn until it succeeds, the attempts are spent, or ctx is done.
// fn receives the 1-based attempt number. The last error from fn is returned,
// even when ctx ended the loop.
func Do(ctx context.Context, p Policy, fn func(attempt int) error) error {
	var (
		attempt int
		lastErr error
	)
	err := backoff.Retry(func() error {
		attempt++
		lastErr = fn(attempt)
		return lastErr
	}, p.BackOff(ctx))
	if err == nil {
		return nil
	}

	var perm *backoff.PermanentError
	if errors.As(lastErr, &perm) {
		return perm.Err
	}
	if lastErr != nil && ctx.Err() != nil {
		return lastErr
	}
	return err
}

// Package retry runs hardware calls under a bounded exponential backoff.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds retries of one operation. The zero value makes a single
// attempt.
type Policy struct {
	// Retries is the number of attempts after the first.
	Retries int
	// Base is the first backoff interval; each retry doubles it.
	Base time.Duration
	// Notify, if set, is called before each retry.
	Notify func(err error, wait time.Duration)
}

// Do runs op until it succeeds, returns a Permanent error, retries are
// exhausted, or ctx is done. It returns op's last error, or ctx.Err() if
// the context ended the loop.
func (p Policy) Do(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	if p.Base > 0 {
		b.InitialInterval = p.Base
	}
	b.Multiplier = 2
	b.RandomizationFactor = 0.1
	b.MaxElapsedTime = 0

	retries := p.Retries
	if retries < 0 {
		retries = 0
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
	if p.Notify != nil {
		return backoff.RetryNotify(op, bo, p.Notify)
	}
	return backoff.Retry(op, bo)
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

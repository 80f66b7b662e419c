package store

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/cenkalti/backoff/v5"
)

type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryPolicy(maxAttempts int) RetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 5
	}
	return RetryPolicy{
		MaxAttempts:     maxAttempts,
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     250 * time.Millisecond,
	}
}

// Run executes fn in a transaction, retrying on ErrConflict with jittered
// exponential backoff. Any other error stops immediately. When attempts run
// out the last conflict is returned.
func Run(ctx context.Context, s Store, policy RetryPolicy, fn TxFunc) error {
	if policy.MaxAttempts < 1 {
		policy = DefaultRetryPolicy(0)
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.InitialInterval
	b.MaxInterval = policy.MaxInterval
	b.RandomizationFactor = 0.5
	b.Multiplier = 2

	attempt := 0
	op := func() (struct{}, error) {
		attempt++
		err := s.RunInTx(ctx, fn)
		if err == nil {
			return struct{}{}, nil
		}
		if errors.Is(err, ErrConflict) {
			if attempt > 1 {
				log.Printf("[store] conflict on attempt %d: %v", attempt, err)
			}
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(policy.MaxAttempts)),
	)
	return err
}

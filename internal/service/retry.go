package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	apperrors "cardvault/internal/errors"
)

// RetryPolicy bounds automatic retries of storage contention failures.
type RetryPolicy struct {
	Attempts int
	Base     time.Duration
}

// DefaultRetryPolicy retries three times starting at 50ms.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Base: 50 * time.Millisecond}

// retryOnLockTimeout runs op until it succeeds, fails with a non-retryable
// error, or the attempts are used up. Business rule failures are returned at once.
func retryOnLockTimeout(ctx context.Context, policy RetryPolicy, log logrus.FieldLogger, op func() error) error {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = policy.Base
	exp.MaxInterval = policy.Base * 8
	exp.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(policy.Attempts-1)), ctx)

	return backoff.RetryNotify(func() error {
		err := op()
		if err == nil || apperrors.IsRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, b, func(err error, wait time.Duration) {
		log.WithError(err).WithField("retry_in", wait).Warn("lock contention, retrying")
	})
}

package oracle

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retryPolicy retries oracle calls with jittered exponential backoff. The
// attempt budget counts the first call, so maxAttempts of 3 allows two
// retries. Errors wrapped by backoffPermanent stop the loop immediately.
type retryPolicy struct {
	maxAttempts int
	base        time.Duration
	logger      *slog.Logger
}

// backoffPermanent marks err as not worth retrying.
func backoffPermanent(err error) error {
	return backoff.Permanent(err)
}

// retryableStatus reports whether an HTTP status from a provider warrants
// another attempt. A zero status means the request never produced a
// response, which transport hiccups do.
func retryableStatus(status int) bool {
	return status == 0 || status == 429 || status >= 500
}

func (p retryPolicy) run(ctx context.Context, op func(context.Context) (string, error)) (string, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.base
	exp.Multiplier = 2.0
	exp.MaxInterval = 10 * time.Second
	exp.MaxElapsedTime = 0

	var out string
	attempt := 0
	call := func() error {
		attempt++
		text, err := op(ctx)
		if err != nil {
			return err
		}
		out = text
		return nil
	}
	notify := func(err error, wait time.Duration) {
		p.logger.Warn("oracle call failed, retrying",
			"attempt", attempt,
			"max_attempts", p.maxAttempts,
			"wait", wait,
			"error", err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.maxAttempts-1)), ctx)
	if err := backoff.RetryNotify(call, policy, notify); err != nil {
		return "", err
	}
	return out, nil
}

package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/opencode-ai/workflow/internal/logging"
	"github.com/opencode-ai/workflow/pkg/types"
)

// newCountBackoff creates the retry policy for token counting.
func (c *Client) newCountBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.RetryInterval
	b.MaxInterval = 10 * c.RetryInterval
	b.MaxElapsedTime = time.Minute
	b.RandomizationFactor = 0.5
	b.Multiplier = 2.0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, c.CountRetries), ctx)
}

// CountTokens returns the exact input token count for req. Rate limits and
// server errors are retried; other API errors are not.
func (c *Client) CountTokens(ctx context.Context, req *types.Request) (int, error) {
	params, err := newCountParams(req)
	if err != nil {
		return 0, err
	}
	messages := c.messages()

	var tokens int
	op := func() error {
		res, err := messages.CountTokens(ctx, params)
		if err != nil {
			err = asAPIError(err)
			var apiErr *APIError
			if errors.As(err, &apiErr) && !apiErr.Retryable() {
				return backoff.Permanent(err)
			}
			return err
		}
		tokens = int(res.InputTokens)
		return nil
	}

	notify := func(err error, wait time.Duration) {
		logging.Debug().Err(err).Dur("wait", wait).Msg("Retrying token count")
	}
	if err := backoff.RetryNotify(op, c.newCountBackoff(ctx), notify); err != nil {
		return 0, err
	}
	return tokens, nil
}

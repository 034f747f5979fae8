// Package retry provides backoff strategies and retry logic for Flickr API
// calls.
//
// Two policies live here:
//   - Do retries transient transport failures (network errors, 5xx) with
//     exponential backoff. API errors are returned untouched.
//   - BackoffStrategy values also drive the crawl's rate-limit cooldown and
//     page pacing, so callers can inject a zero-delay strategy in tests.
//
// Basic usage:
//
//	err := retry.Do(ctx, func() error {
//		return fetch()
//	}, &retry.Config{
//		MaxAttempts: 3,
//		Backoff:     retry.DefaultExponentialBackoff(),
//		Logger:      logger.GetLogger(),
//	})
//
//	cooldown := &retry.ConstantBackoff{Delay: retry.DefaultRateLimitCooldown}
//	_ = retry.Wait(ctx, cooldown.NextDelay(1))
package retry

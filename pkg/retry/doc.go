// Package retry runs an operation under an explicit retry policy:
// a maximum attempt count, a backoff strategy, and a predicate that
// separates transient failures from terminal ones.
//
//	cfg := retry.FromConfig(appCfg.Retry, log)
//	resp, err := retry.DoWithResult(ctx, func(ctx context.Context) (*Response, error) {
//		return client.Search(ctx, req)
//	}, cfg)
//
// Network failures, rate limiting (429) and server errors (5xx) are
// retried. A RetryAfter carried by the error raises the next delay to at
// least that value. Waiting between attempts stops as soon as ctx is
// cancelled.
package retry

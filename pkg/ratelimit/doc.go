// Package ratelimit paces requests to the remote issue tracker.
//
// The harvester waits on a SlidingWindow before every page request so a
// long harvest stays under a fixed number of requests per rolling minute.
// This is courtesy pacing only; server-side throttling (HTTP 429) is handled
// by the retry policy.
//
//	limiter := ratelimit.New(cfg.RateLimit.RequestsPerMinute)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err // cancelled
//	}
package ratelimit

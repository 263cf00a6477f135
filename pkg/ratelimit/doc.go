// Package ratelimit provides optional client-side pacing of outgoing requests.
//
// Pacing is off by default: the crawler's only load control is the worker
// count and the per-request timeout. Setting rate_limit.requests_per_second
// spaces page fetches and downloads with a token bucket.
//
// Usage:
//
//	limiter := ratelimit.New(2, 1) // two requests per second, no burst
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
package ratelimit

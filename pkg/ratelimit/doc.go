// Package ratelimit paces outgoing Flickr API calls on the client side.
//
// The Flickr API allows a fixed number of calls per key per hour and answers
// with error code 201 once the quota is exhausted. Pacing requests keeps a
// long crawl under that ceiling; the downloader's cooldown handles the case
// where the quota is hit anyway.
//
// Usage:
//
//	// 60 requests per minute, bursts of 5
//	limiter := ratelimit.NewTokenBucket(60, 5)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
package ratelimit

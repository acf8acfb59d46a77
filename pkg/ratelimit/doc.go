// Package ratelimit paces grabbot's two kinds of outbound traffic.
//
// Telegram throttles bots that send too quickly, so every transport call
// goes through a TokenBucket before hitting the wire. The scrape
// strategies pace their image downloads through a SlidingWindow so a
// large gallery does not hammer the source host.
//
// Both implement the Limiter interface:
//
//	limiter := ratelimit.NewTokenBucket(20, time.Minute)
//	limiter.Wait()
//	// send the message
package ratelimit

package ratelimit

import "context"

// RateLimiter caps outbound provider throughput per channel. Every worker
// send waits here first so a burst of campaigns cannot flood the relay.
type RateLimiter interface {
	Allow(ctx context.Context, channel string) (bool, error)
	Wait(ctx context.Context, channel string) error
}

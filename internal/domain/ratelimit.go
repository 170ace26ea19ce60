package domain

import (
	"context"
	"time"
)

// RateLimiter provides distributed rate limiting for the status API.
type RateLimiter interface {
	// Allow reports whether a request for key is permitted under a sliding
	// window of the given limit, counting the request when it is.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

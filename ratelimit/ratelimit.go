package ratelimit

import (
	"math/rand/v2"
	"time"
)

const (
	DefaultTrackDownloadConcurrency = 8
	MaxRequestRetries               = 5
	RetryBackoffFactor              = 500 * time.Millisecond
	MaxStreamAttempts               = 3
)

// RetryDelay is the wait before retry number attempt, counted from 1. It grows
// linearly with attempt.
func RetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(attempt) * RetryBackoffFactor
}

// StreamRetryDelay spreads re-stream attempts of concurrent workers over a
// random window so that they do not hit the file server in lockstep.
func StreamRetryDelay() time.Duration {
	const (
		from = 1
		to   = 3
	)
	millis := (rand.IntN(to-from)+from)*1000 + rand.N(1000) //nolint:gosec
	return time.Duration(millis) * time.Millisecond
}

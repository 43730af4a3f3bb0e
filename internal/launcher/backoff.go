package launcher

import (
	"math"
	"math/rand/v2"
	"time"
)

// Restart backoff defaults.
const (
	DefaultBackoffBase = 100 * time.Millisecond
	DefaultBackoffMax  = 5 * time.Second
	// A worker that stays up this long resets its slot's backoff.
	DefaultStableAfter = 10 * time.Second
)

// Jitter adds random jitter to a duration to prevent thundering herd.
// fraction is between 0.0 (no jitter) and 1.0 (up to 100% jitter).
func Jitter(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return d
	}
	if fraction > 1.0 {
		fraction = 1.0
	}

	// d * (1 ± fraction)
	multiplier := 1.0 + (rand.Float64() * fraction * 2.0) - fraction
	return time.Duration(float64(d) * multiplier)
}

// ExponentialBackoff returns base * 2^attempt capped at max, with ±25% jitter.
// attempt is the number of failed attempts, 0-indexed.
func ExponentialBackoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if delay > max || delay <= 0 {
		delay = max
	}

	return Jitter(delay, 0.25)
}

package session

import "time"

// Backoff is min(base * 2^retryCount, max).
func Backoff(retryCount int, base, max time.Duration) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	if base <= 0 || base >= max {
		return max
	}
	delay := base
	for i := 0; i < retryCount; i++ {
		// Doubling would overflow or pass the cap
		if delay > max/2 {
			return max
		}
		delay *= 2
	}
	return delay
}

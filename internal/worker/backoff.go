package worker

import (
	"math"
	"math/rand"
	"time"
)

// ExponentialBackoff is the wait before the next audit after `attempt`
// consecutive failures.
func ExponentialBackoff(attempt int) time.Duration {
	base := 1 * time.Second

	capDelay := 1 * time.Minute
	// attempt=0 => 1s
	// attempt=1 => 2s
	// attempt=2 => 4s

	multiple := math.Pow(2, float64(attempt))
	delay := time.Duration(float64(base) * multiple)

	if delay > capDelay || delay <= 0 {
		delay = capDelay
	}

	// small jitter (0–250ms) so replicas do not retry in lockstep
	delay += time.Duration(rand.Intn(250)) * time.Millisecond
	return delay
}

// Package backoff computes growing wait times between repeated attempts.
package backoff

import (
	"math/rand"
	"time"
)

// Exponential multiplies Initial by Multiplier per attempt, capped at Max.
// Jitter in [0, 1] adds up to that fraction of the delay at random.
type Exponential struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

// Default waits 200ms, then doubles up to 5s with 10% jitter.
func Default() Exponential {
	return Exponential{
		Initial:    200 * time.Millisecond,
		Max:        5 * time.Second,
		Multiplier: 2,
		Jitter:     0.1,
	}
}

// Delay returns the wait before the given zero based attempt.
func (e Exponential) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// keeps pow from overflowing
	if attempt > 30 {
		attempt = 30
	}

	multiplier := e.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	delay := time.Duration(float64(e.Initial) * pow(multiplier, attempt))
	if delay < 0 || (e.Max > 0 && delay > e.Max) {
		delay = e.Max
	}

	jitter := clampJitter(e.Jitter)
	if jitter > 0 {
		delay += time.Duration(float64(delay) * jitter * rand.Float64())
		if e.Max > 0 && delay > e.Max {
			delay = e.Max
		}
	}
	return delay
}

func clampJitter(jitter float64) float64 {
	if jitter < 0 {
		return 0
	}
	if jitter > 1 {
		return 1
	}
	return jitter
}

func pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}

package jembatan

import (
	"context"
	"sync/atomic"
	"time"
)

// RateLimiter is a token bucket that cancels requests once it is empty.
type RateLimiter struct {
	tokens     int64
	maxTokens  int64
	refillRate time.Duration
	lastRefill int64
	behavior   CancelBehavior
	name       string
	metrics    atomic.Pointer[MetricsCollector]
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(maxTokens int, refillRate time.Duration) *RateLimiter {
	return &RateLimiter{
		maxTokens:  int64(maxTokens),
		tokens:     int64(maxTokens),
		refillRate: refillRate,
		lastRefill: time.Now().UnixNano(),
		behavior:   CancelThrow,
		name:       "default",
	}
}

// WithBehavior sets how limited requests are canceled.
func (rl *RateLimiter) WithBehavior(behavior CancelBehavior) *RateLimiter {
	rl.behavior = behavior
	return rl
}

// WithName sets the name label of the token gauge.
func (rl *RateLimiter) WithName(name string) *RateLimiter {
	rl.name = name
	return rl
}

// Allow checks if a request is allowed by the rate limiter
func (rl *RateLimiter) Allow() bool {
	rl.refillTokens()
	return rl.consumeToken()
}

// Tokens returns the currently available tokens.
func (rl *RateLimiter) Tokens() int {
	rl.refillTokens()
	return int(atomic.LoadInt64(&rl.tokens))
}

func (rl *RateLimiter) InterceptGet(context.Context, *GetRequest) Interception {
	return rl.verdict()
}

func (rl *RateLimiter) InterceptPost(context.Context, PostMessage) Interception {
	return rl.verdict()
}

func (rl *RateLimiter) verdict() Interception {
	allowed := rl.Allow()
	rl.metrics.Load().RecordRateLimiterTokens(rl.name, int(atomic.LoadInt64(&rl.tokens)))
	if allowed {
		return Continue
	}
	return Cancel(rl.behavior, ErrRateLimited.Error())
}

func (rl *RateLimiter) reportTo(mc *MetricsCollector) {
	if rl.metrics.CompareAndSwap(nil, mc) {
		mc.RecordRateLimiterTokens(rl.name, rl.Tokens())
	}
}

// refillTokens refills tokens based on elapsed time since last refill
func (rl *RateLimiter) refillTokens() {
	now := time.Now().UnixNano()

	for {
		currentTokens := atomic.LoadInt64(&rl.tokens)
		lastRefill := atomic.LoadInt64(&rl.lastRefill)

		elapsed := now - lastRefill
		tokensToAdd := int64(0)
		if rl.refillRate > 0 {
			tokensToAdd = elapsed / int64(rl.refillRate)
		}

		if tokensToAdd <= 0 {
			break
		}

		newTokens := currentTokens + tokensToAdd
		if newTokens > rl.maxTokens {
			newTokens = rl.maxTokens
		}

		newLastRefill := lastRefill + (tokensToAdd * int64(rl.refillRate))

		if !atomic.CompareAndSwapInt64(&rl.lastRefill, lastRefill, newLastRefill) {
			continue
		}

		atomic.StoreInt64(&rl.tokens, newTokens)
		break
	}
}

// consumeToken attempts to consume one token
func (rl *RateLimiter) consumeToken() bool {
	for {
		currentTokens := atomic.LoadInt64(&rl.tokens)
		if currentTokens <= 0 {
			return false
		}

		if atomic.CompareAndSwapInt64(&rl.tokens, currentTokens, currentTokens-1) {
			return true
		}
	}
}

package jembatan

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// CircuitBreaker vetoes requests while open. Register it both as an
// interceptor and as a listener so it sees the outcome of each dispatch.
type CircuitBreaker struct {
	config      CircuitBreakerConfig
	state       int64
	failures    int64
	lastFailure int64
	successes   int64
	now         func() time.Time
	metrics     atomic.Pointer[MetricsCollector]
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if config.RecoveryTimeout == 0 {
		config.RecoveryTimeout = 60 * time.Second
	}
	if config.SuccessThreshold == 0 {
		config.SuccessThreshold = 2
	}
	if config.Name == "" {
		config.Name = "default"
	}

	return &CircuitBreaker{
		config: config,
		state:  int64(StateClosed),
		now:    time.Now,
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitState {
	return CircuitState(atomic.LoadInt64(&cb.state))
}

// Allow checks if the request should be allowed through the circuit breaker
func (cb *CircuitBreaker) Allow() bool {
	now := cb.now().UnixNano()
	state := CircuitState(atomic.LoadInt64(&cb.state))

	switch state {
	case StateClosed:
		return true
	case StateOpen:
		lastFailure := atomic.LoadInt64(&cb.lastFailure)
		if now-lastFailure >= int64(cb.config.RecoveryTimeout) {
			if atomic.CompareAndSwapInt64(&cb.state, int64(StateOpen), int64(StateHalfOpen)) {
				atomic.StoreInt64(&cb.successes, 0)
				return true
			}
		}
		return false
	case StateHalfOpen:
		return true
	default:
		return false
	}
}

// RecordFailure records a failure in the circuit breaker
func (cb *CircuitBreaker) RecordFailure() {
	atomic.StoreInt64(&cb.lastFailure, cb.now().UnixNano())

	switch CircuitState(atomic.LoadInt64(&cb.state)) {
	case StateClosed:
		failures := atomic.AddInt64(&cb.failures, 1)
		if failures >= int64(cb.config.FailureThreshold) {
			atomic.StoreInt64(&cb.state, int64(StateOpen))
		}
	case StateHalfOpen:
		// a failure while probing reopens the circuit
		atomic.AddInt64(&cb.failures, 1)
		atomic.StoreInt64(&cb.state, int64(StateOpen))
		atomic.StoreInt64(&cb.successes, 0)
	}
	cb.recordState()
}

// RecordSuccess records a success in the circuit breaker
func (cb *CircuitBreaker) RecordSuccess() {
	switch CircuitState(atomic.LoadInt64(&cb.state)) {
	case StateClosed:
		atomic.StoreInt64(&cb.failures, 0)
	case StateHalfOpen:
		successes := atomic.AddInt64(&cb.successes, 1)
		if successes >= int64(cb.config.SuccessThreshold) {
			atomic.StoreInt64(&cb.state, int64(StateClosed))
			atomic.StoreInt64(&cb.failures, 0)
			atomic.StoreInt64(&cb.successes, 0)
		}
	}
	cb.recordState()
}

func (cb *CircuitBreaker) InterceptGet(context.Context, *GetRequest) Interception {
	return cb.verdict()
}

func (cb *CircuitBreaker) InterceptPost(context.Context, PostMessage) Interception {
	return cb.verdict()
}

func (cb *CircuitBreaker) verdict() Interception {
	allowed := cb.Allow()
	cb.recordState()
	if allowed {
		return Continue
	}
	return Cancel(CancelThrow, ErrCircuitOpen.Error())
}

func (cb *CircuitBreaker) reportTo(mc *MetricsCollector) {
	if cb.metrics.CompareAndSwap(nil, mc) {
		cb.recordState()
	}
}

func (cb *CircuitBreaker) recordState() {
	cb.metrics.Load().RecordCircuitBreakerState(cb.config.Name, cb.State())
}

func (cb *CircuitBreaker) OnExecuting(context.Context, *Request) {}

func (cb *CircuitBreaker) OnExecuted(context.Context, *Request) {
	cb.RecordSuccess()
}

// OnError counts transport failures and 5xx responses. Other errors, such
// as 4xx responses or decoding failures, count as success for the remote.
func (cb *CircuitBreaker) OnError(_ context.Context, _ *Request, err error) {
	var transportErr *TransportError
	if errors.As(err, &transportErr) || statusCodeOf(err) >= 500 {
		cb.RecordFailure()
		return
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		cb.RecordSuccess()
	}
}

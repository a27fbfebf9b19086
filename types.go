package jembatan

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Method represents the HTTP method of a request
type Method int

const (
	MethodGet Method = iota + 1
	MethodPost
	MethodPut
	MethodDelete
)

// IsDefined reports whether m is one of the declared methods.
func (m Method) IsDefined() bool {
	return m >= MethodGet && m <= MethodDelete
}

func (m Method) String() string {
	switch m {
	case MethodGet:
		return http.MethodGet
	case MethodPost:
		return http.MethodPost
	case MethodPut:
		return http.MethodPut
	case MethodDelete:
		return http.MethodDelete
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// RequestKey identifies a single dispatch of a request. Two keys are equal only
// when method, full URI and identifier all match.
type RequestKey struct {
	Method Method
	URI    string
	ID     uuid.UUID
}

func (k RequestKey) String() string {
	return fmt.Sprintf("%s %s [%s]", k.Method, k.URI, k.ID)
}

// InterceptionResult is the outcome of an interceptor
type InterceptionResult int

const (
	InterceptionContinue InterceptionResult = iota
	InterceptionCancel
)

// CancelBehavior tells the client what to do after a cancel verdict
type CancelBehavior int

const (
	// CancelReturn makes the client return the empty result without error.
	CancelReturn CancelBehavior = iota
	// CancelThrow makes the client return an interception error.
	CancelThrow
)

func (b CancelBehavior) String() string {
	if b == CancelThrow {
		return "throw"
	}
	return "return"
}

// Interception is the verdict produced by an interceptor
type Interception struct {
	result   InterceptionResult
	behavior CancelBehavior
	reason   string
}

// Continue lets the request proceed.
var Continue = Interception{}

// Cancel stops the request. The reason is used as the error message when
// behavior is CancelThrow.
func Cancel(behavior CancelBehavior, reason string) Interception {
	return Interception{result: InterceptionCancel, behavior: behavior, reason: reason}
}

// Result is Continue or Cancel.
func (i Interception) Result() InterceptionResult { return i.result }

// Behavior says how a canceled request ends.
func (i Interception) Behavior() CancelBehavior { return i.behavior }

// Reason is the text of the error raised for CancelThrow.
func (i Interception) Reason() string { return i.reason }

// IsCanceled reports whether the request must not be sent.
func (i Interception) IsCanceled() bool { return i.result == InterceptionCancel }

// CacheContent is a cached response body
type CacheContent struct {
	Key         string
	Value       string
	ContentType string
	ExpiresAt   time.Time
}

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	// Name labels the state gauge. The default is "default".
	Name             string
	FailureThreshold int
	RecoveryTimeout  time.Duration
	SuccessThreshold int
}

// CircuitState represents the state of the circuit breaker
type CircuitState int64

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Option represents a configuration option
type Option func(*Client)

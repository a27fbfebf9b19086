package jembatan

import (
	"errors"
	"fmt"
	"time"
)

// Error types carried by RequestError.
const (
	ErrorTypeValidation   = "ValidationError"
	ErrorTypeInterception = "InterceptionError"
	ErrorTypeRequest      = "RequestError"
)

const (
	// DefaultInterceptionMessage is used when a canceling interceptor gives no reason.
	DefaultInterceptionMessage = "the request was intercepted"

	requestMessageFormat = "unexpected error while performing HTTP %s request"
)

// Sentinel errors for common failure scenarios
var (
	// ErrInvalidRequest is returned for a malformed path or method
	ErrInvalidRequest = errors.New("jembatan: invalid request")

	// ErrInvalidHeader is returned when a header name or value breaks the wire rules
	ErrInvalidHeader = errors.New("jembatan: invalid header")

	// ErrDuplicateHeader is returned when adding a header name that already exists
	ErrDuplicateHeader = errors.New("jembatan: duplicate header")

	// ErrDuplicateParameter is returned when adding a query parameter name that already exists
	ErrDuplicateParameter = errors.New("jembatan: duplicate parameter")

	// ErrIntercepted is the cause of every interception error
	ErrIntercepted = errors.New("jembatan: request intercepted")

	// ErrRequestCanceled is returned when a canceled request reaches the transport
	ErrRequestCanceled = errors.New("jembatan: request canceled")

	// ErrResponseTooLarge is returned when a response body exceeds the client's limit
	ErrResponseTooLarge = errors.New("jembatan: response body too large")

	// ErrUnknownPurpose is returned by address providers for an unconfigured purpose
	ErrUnknownPurpose = errors.New("jembatan: unknown purpose")

	// ErrUnsupportedFormat is returned for a payload format without a codec
	ErrUnsupportedFormat = errors.New("jembatan: unsupported format")

	// ErrCircuitOpen is the veto reason of an open circuit breaker
	ErrCircuitOpen = errors.New("jembatan: circuit open")

	// ErrRateLimited is the veto reason of an exhausted rate limiter
	ErrRateLimited = errors.New("jembatan: rate limited")
)

// RequestError is the single error kind returned by the client for
// validation, interception and execution failures.
type RequestError struct {
	Type       string
	Message    string
	Cause      error
	Request    *Request
	StatusCode int
	Timestamp  time.Time
}

// Error implements error interface. An interception error reads as its
// message alone.
func (e *RequestError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Type == ErrorTypeInterception {
		return e.Message
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause.
func (e *RequestError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error types for errors.Is.
func (e *RequestError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*RequestError); ok {
		return e.Type == targetErr.Type
	}
	return false
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *RequestError) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	info := fmt.Sprintf("Error Type: %s\n", e.Type)
	info += fmt.Sprintf("Message: %s\n", e.Message)
	if e.Request != nil {
		info += fmt.Sprintf("Request: %s\n", e.Request.Key())
	}
	if e.StatusCode > 0 {
		info += fmt.Sprintf("Status Code: %d\n", e.StatusCode)
	}
	if !e.Timestamp.IsZero() {
		info += fmt.Sprintf("Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Cause != nil {
		info += fmt.Sprintf("Cause: %v\n", e.Cause)
	}
	return info
}

// IsInterception reports whether err is an interception refusal.
func IsInterception(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.Type == ErrorTypeInterception
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.Type == ErrorTypeValidation
}

func newValidationError(cause error, format string, args ...interface{}) *RequestError {
	return &RequestError{
		Type:      ErrorTypeValidation,
		Message:   fmt.Sprintf(format, args...),
		Cause:     cause,
		Timestamp: time.Now(),
	}
}

// StatusError reports a transport exchange that completed with a non-2xx status.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// TransportError reports a failure below the HTTP exchange, such as DNS,
// connection refused or timeout.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// errorMessage extracts the human readable message of err.
func errorMessage(err error) string {
	var reqErr *RequestError
	if errors.As(err, &reqErr) && reqErr.Message != "" {
		return reqErr.Message
	}
	return err.Error()
}

func statusCodeOf(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

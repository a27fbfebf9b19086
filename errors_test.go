package jembatan

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRequestErrorFormatting(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := &RequestError{Type: ErrorTypeRequest, Message: "unexpected error while performing HTTP GET request", Cause: cause}
	require.Equal(t, "RequestError: unexpected error while performing HTTP GET request (dial tcp: connection refused)", err.Error())

	err = &RequestError{Type: ErrorTypeInterception, Message: "X", Cause: ErrIntercepted}
	require.Equal(t, "X", err.Error())
	require.ErrorIs(t, err, ErrIntercepted)

	var nilErr *RequestError
	require.Equal(t, "<nil>", nilErr.Error())
	require.NoError(t, nilErr.Unwrap())
}

func TestRequestErrorIsAndAs(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &RequestError{Type: ErrorTypeInterception, Message: "no", Cause: ErrIntercepted})

	require.ErrorIs(t, err, &RequestError{Type: ErrorTypeInterception})
	require.NotErrorIs(t, err, &RequestError{Type: ErrorTypeValidation})
	require.ErrorIs(t, err, ErrIntercepted)
	require.True(t, IsInterception(err))
	require.False(t, IsValidation(err))
	require.False(t, IsInterception(errors.New("plain")))
}

func TestRequestErrorDebugInfo(t *testing.T) {
	req, err := NewRequest(MethodGet, "api/cars")
	require.NoError(t, err)

	reqErr := &RequestError{
		Type:       ErrorTypeRequest,
		Message:    "boom",
		Cause:      &StatusError{StatusCode: 503, Body: "down"},
		Request:    req,
		StatusCode: 503,
		Timestamp:  time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	info := reqErr.DebugInfo()

	require.True(t, strings.HasPrefix(info, "Error Type: RequestError\n"))
	require.Contains(t, info, "Message: boom\n")
	require.Contains(t, info, "Request: GET api/cars ["+req.ID().String()+"]\n")
	require.Contains(t, info, "Status Code: 503\n")
	require.Contains(t, info, "Timestamp: 2026-05-01T10:00:00Z\n")
	require.Contains(t, info, "Cause: unexpected status 503: down\n")

	var nilErr *RequestError
	require.Equal(t, "Error: <nil>", nilErr.DebugInfo())
}

func TestStatusAndTransportErrors(t *testing.T) {
	require.Equal(t, "unexpected status 500", (&StatusError{StatusCode: 500}).Error())

	inner := errors.New("i/o timeout")
	transportErr := &TransportError{Method: "GET", URL: "https://example.com/x", Err: inner}
	require.Equal(t, "GET https://example.com/x: i/o timeout", transportErr.Error())
	require.ErrorIs(t, transportErr, inner)

	require.Equal(t, 418, statusCodeOf(fmt.Errorf("x: %w", &StatusError{StatusCode: 418})))
	require.Zero(t, statusCodeOf(inner))
}

func TestErrorMessage(t *testing.T) {
	require.Equal(t, "bad header", errorMessage(newValidationError(ErrInvalidHeader, "bad header")))
	require.Equal(t, "plain", errorMessage(errors.New("plain")))
}

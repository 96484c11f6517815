package httpclient

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the failure kinds a call can produce.
//
// Every typed error returned by a Call matches exactly one of these with
// errors.Is, so callers can branch on the kind without type assertions:
//
//	res, err := call.Wait()
//	switch {
//	case errors.Is(err, httpclient.ErrTimeout):
//	    // budget elapsed
//	case errors.Is(err, httpclient.ErrHTTPStatus):
//	    // non-2xx with ThrowOnHTTPError enabled
//	}
var (
	// ErrInvalidArgument reports a malformed call. It is returned
	// synchronously, before any transport work begins.
	ErrInvalidArgument = errors.New("httpclient: invalid argument")

	// ErrNetwork reports that the transport could not complete.
	ErrNetwork = errors.New("httpclient: network error")

	// ErrTimeout reports that the timeout budget elapsed before completion.
	ErrTimeout = errors.New("httpclient: timeout")

	// ErrParse reports a 2xx body that could not be decoded as JSON.
	ErrParse = errors.New("httpclient: parse error")

	// ErrHTTPStatus reports a non-2xx status.
	ErrHTTPStatus = errors.New("httpclient: http status error")
)

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// NetworkError is returned when the transport fails before a response is
// received: DNS failure, refused or reset connection, caller cancellation.
type NetworkError struct {
	Method string
	URL    string

	// ErrorType is the classification used for the error.type span
	// attribute, e.g. "connection_refused" or "cancelled".
	ErrorType string

	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// TimeoutError is returned when the call's timeout budget elapses before the
// transport settles. The underlying operation is abandoned.
type TimeoutError struct {
	Method string
	URL    string
	Budget time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request expired after %d ms", e.Budget.Milliseconds())
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// ParseError is returned when a 2xx body is not valid JSON and
// ThrowOnHTTPError is enabled.
type ParseError struct {
	StatusCode int
	Body       []byte
	Err        error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse response body (HTTP %d): %v", e.StatusCode, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// HTTPStatusError is returned for any status outside [200,300) when
// ThrowOnHTTPError is enabled. Body holds the raw response body.
type HTTPStatusError struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}

func (e *HTTPStatusError) Is(target error) bool { return target == ErrHTTPStatus }

package httpclient

import (
	"bytes"
	"errors"
	"net/http"

	json "github.com/goccy/go-json"
)

// RawBody is an undecoded body.
//
// As a request body it is sent verbatim. As Result.Value it marks a
// passthrough: the response was handed back without JSON decoding.
type RawBody []byte

func (b RawBody) String() string { return string(b) }

// Result is the resolved value of a successful call.
type Result struct {
	StatusCode int
	Status     string
	Header     http.Header

	// Value is the decoded JSON body (map[string]any, []any, string,
	// float64, bool or nil), or a RawBody when Passthrough is true.
	Value any

	// Raw is the response body as received.
	Raw []byte

	// Passthrough is true when the body was not decoded, either because
	// it was not valid JSON or because the status was outside [200,300).
	// Both only happen with ThrowOnHTTPError disabled.
	Passthrough bool
}

// Decode unmarshals the raw body into v.
func (r *Result) Decode(v any) error {
	return json.Unmarshal(r.Raw, v)
}

// Interpret resolves a transport outcome into a result or one of the typed
// errors.
//
// Transport failures reject regardless of throwOnHTTPError. The flag only
// decides whether a non-2xx status or an undecodable 2xx body rejects or
// is passed through as a RawBody.
func Interpret(outcome TransportOutcome, throwOnHTTPError bool) (*Result, error) {
	switch outcome.Kind {
	case OutcomeNetworkFailure:
		return nil, &NetworkError{
			Method:    string(outcome.Method),
			URL:       outcome.URL,
			ErrorType: classifyError(outcome.Err),
			Err:       outcome.Err,
		}

	case OutcomeTimedOut:
		return nil, &TimeoutError{
			Method: string(outcome.Method),
			URL:    outcome.URL,
			Budget: outcome.Budget,
		}
	}

	res := &Result{
		StatusCode: outcome.StatusCode,
		Status:     outcome.Status,
		Header:     outcome.Header,
		Raw:        outcome.Body,
	}

	if outcome.StatusCode < 200 || outcome.StatusCode >= 300 {
		if throwOnHTTPError {
			return nil, &HTTPStatusError{
				StatusCode: outcome.StatusCode,
				Status:     outcome.Status,
				Body:       outcome.Body,
			}
		}
		return passthrough(res), nil
	}

	value, err := decodeJSON(outcome.Body)
	if err != nil {
		if throwOnHTTPError {
			return nil, &ParseError{
				StatusCode: outcome.StatusCode,
				Body:       outcome.Body,
				Err:        err,
			}
		}
		return passthrough(res), nil
	}

	res.Value = value
	return res, nil
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(body []byte) (any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errEmptyBody
	}
	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		return nil, err
	}
	return value, nil
}

func passthrough(res *Result) *Result {
	res.Value = RawBody(res.Raw)
	res.Passthrough = true
	return res
}

package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// OutcomeKind tags the terminal result of one transport operation.
type OutcomeKind int

const (
	// OutcomeCompleted means a response was received, whatever its status.
	OutcomeCompleted OutcomeKind = iota
	// OutcomeNetworkFailure means no response could be obtained.
	OutcomeNetworkFailure
	// OutcomeTimedOut means the timeout budget elapsed first.
	OutcomeTimedOut
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCompleted:
		return "completed"
	case OutcomeNetworkFailure:
		return "network_failure"
	case OutcomeTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// TransportOutcome is the single terminal result of one transport operation.
// Which fields are meaningful depends on Kind.
type TransportOutcome struct {
	Kind OutcomeKind

	Method Method
	URL    string

	// Completed
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte

	// NetworkFailure
	Err error

	// TimedOut
	Budget time.Duration
}

// errBudgetElapsed is the cancellation cause set when a call's timeout fires.
var errBudgetElapsed = errors.New("httpclient: timeout budget elapsed")

// withBudget arms the call's timeout, if any.
func withBudget(ctx context.Context, budget time.Duration) (context.Context, context.CancelFunc) {
	if budget <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeoutCause(ctx, budget, errBudgetElapsed)
}

// encodedBody is a request body ready for the wire.
type encodedBody struct {
	reader      io.Reader
	length      int64 // -1 when unknown
	contentType string

	// replay is a copy of the payload for curl generation; nil for streams.
	replay []byte
}

// encodeBody serializes the descriptor's body according to its kind.
func encodeBody(desc RequestDescriptor) (encodedBody, error) {
	switch desc.BodyKind {
	case BodyJSON:
		data, err := json.Marshal(desc.Body)
		if err != nil {
			return encodedBody{}, fmt.Errorf("%w: failed to encode json body: %w", ErrInvalidArgument, err)
		}
		return bytesBody(data, "application/json"), nil

	case BodyMultipart:
		buf, contentType, err := desc.Body.(*MultipartForm).encode()
		if err != nil {
			return encodedBody{}, fmt.Errorf("%w: failed to encode multipart body: %w", ErrInvalidArgument, err)
		}
		return bytesBody(buf.Bytes(), contentType), nil

	case BodyRaw:
		switch b := desc.Body.(type) {
		case string:
			return bytesBody([]byte(b), "text/plain; charset=utf-8"), nil
		case []byte:
			return bytesBody(b, "application/octet-stream"), nil
		case RawBody:
			return bytesBody(b, "application/octet-stream"), nil
		case io.Reader:
			return encodedBody{reader: b, length: readerLength(b)}, nil
		}
	}

	return encodedBody{length: 0}, nil
}

func bytesBody(data []byte, contentType string) encodedBody {
	return encodedBody{
		reader:      bytes.NewReader(data),
		length:      int64(len(data)),
		contentType: contentType,
		replay:      data,
	}
}

// readerLength returns the remaining length of readers that know it.
func readerLength(r io.Reader) int64 {
	switch v := r.(type) {
	case *bytes.Reader:
		return int64(v.Len())
	case *bytes.Buffer:
		return int64(v.Len())
	case *strings.Reader:
		return int64(v.Len())
	default:
		return -1
	}
}

// newRequest builds the single http.Request for a call. When sink is set
// and there is a body, reads from the body are reported through the
// returned tracker.
func newRequest(
	ctx context.Context,
	desc RequestDescriptor,
	enc encodedBody,
	sink ProgressSink,
) (*http.Request, *progressTracker, error) {
	var body io.Reader
	var tracker *progressTracker

	if enc.reader != nil && enc.length != 0 {
		body = enc.reader
		if sink != nil {
			tracker = newProgressTracker(sink, enc.length)
			body = &progressReader{r: enc.reader, tracker: tracker}
		}
	}

	req, err := http.NewRequestWithContext(ctx, string(desc.Method), desc.URL, body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if body != nil && enc.length > 0 {
		req.ContentLength = enc.length
	}
	if tracker != nil && enc.replay != nil {
		// Redirects that keep the body (307, 308) resend it through
		// GetBody. Counting restarts so Loaded never exceeds Total.
		req.GetBody = func() (io.ReadCloser, error) {
			tracker.restart()
			return io.NopCloser(&progressReader{r: bytes.NewReader(enc.replay), tracker: tracker}), nil
		}
	}

	keys := slices.Sorted(maps.Keys(desc.Headers))
	for _, k := range keys {
		req.Header.Set(k, desc.Headers[k])
	}
	if body != nil && enc.contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", enc.contentType)
	}

	return req, tracker, nil
}

// invoke performs the one transport operation of a call and reads the whole
// response body within the call's budget.
func (c *Client) invoke(ctx context.Context, req *http.Request, desc RequestDescriptor) TransportOutcome {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return failureOutcome(ctx, desc, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return failureOutcome(ctx, desc, err)
	}

	return TransportOutcome{
		Kind:       OutcomeCompleted,
		Method:     desc.Method,
		URL:        desc.URL,
		StatusCode: resp.StatusCode,
		Status:     statusText(resp),
		Header:     resp.Header,
		Body:       body,
	}
}

func failureOutcome(ctx context.Context, desc RequestDescriptor, err error) TransportOutcome {
	if errors.Is(context.Cause(ctx), errBudgetElapsed) {
		return TransportOutcome{
			Kind:   OutcomeTimedOut,
			Method: desc.Method,
			URL:    desc.URL,
			Budget: desc.Timeout,
		}
	}

	// *url.Error repeats the method and URL already carried by NetworkError.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}

	return TransportOutcome{
		Kind:   OutcomeNetworkFailure,
		Method: desc.Method,
		URL:    desc.URL,
		Err:    err,
	}
}

// statusText returns the reason phrase of a response, e.g. "Not Found".
func statusText(resp *http.Response) string {
	text, ok := strings.CutPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" ")
	if !ok {
		text = resp.Status
	}
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

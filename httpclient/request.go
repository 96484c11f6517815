package httpclient

import (
	"context"
	"net/http"
	"time"
)

// RequestBuilder collects RequestOptions and a ProgressSink for one call.
//
// Create a RequestBuilder using Client.Request():
//
//	call, err := client.Request().
//	    Header("X-Trace", "1").
//	    Body(map[string]any{"name": "Jane Doe"}).
//	    Post(ctx, "users")
//
// A builder is not safe for concurrent use. It may be reused for several
// calls; each call copies the options collected so far.
type RequestBuilder struct {
	client *Client
	opts   RequestOptions
	sink   ProgressSink
}

// Header sets one call header, overriding a default with the same key.
func (rb *RequestBuilder) Header(key, value string) *RequestBuilder {
	if rb.opts.Headers == nil {
		rb.opts.Headers = make(map[string]string)
	}
	rb.opts.Headers[key] = value
	return rb
}

// Headers sets several call headers.
func (rb *RequestBuilder) Headers(headers map[string]string) *RequestBuilder {
	for k, v := range headers {
		rb.Header(k, v)
	}
	return rb
}

// Body sets the call body. See Build for how each body type is sent.
func (rb *RequestBuilder) Body(body any) *RequestBuilder {
	rb.opts.Body = body
	return rb
}

// Timeout replaces the default timeout for this call. Zero disables it.
func (rb *RequestBuilder) Timeout(d time.Duration) *RequestBuilder {
	rb.opts.Timeout = &d
	return rb
}

// ThrowOnHTTPError replaces the default error policy for this call.
func (rb *RequestBuilder) ThrowOnHTTPError(throw bool) *RequestBuilder {
	rb.opts.ThrowOnHTTPError = &throw
	return rb
}

// Progress sets the upload progress sink.
func (rb *RequestBuilder) Progress(sink ProgressSink) *RequestBuilder {
	rb.sink = sink
	return rb
}

// Get sends the request as GET.
func (rb *RequestBuilder) Get(ctx context.Context, endpoint string) (*Call, error) {
	return rb.Send(ctx, http.MethodGet, endpoint)
}

// Post sends the request as POST.
func (rb *RequestBuilder) Post(ctx context.Context, endpoint string) (*Call, error) {
	return rb.Send(ctx, http.MethodPost, endpoint)
}

// Put sends the request as PUT.
func (rb *RequestBuilder) Put(ctx context.Context, endpoint string) (*Call, error) {
	return rb.Send(ctx, http.MethodPut, endpoint)
}

// Patch sends the request as PATCH.
func (rb *RequestBuilder) Patch(ctx context.Context, endpoint string) (*Call, error) {
	return rb.Send(ctx, http.MethodPatch, endpoint)
}

// Delete sends the request as DELETE.
func (rb *RequestBuilder) Delete(ctx context.Context, endpoint string) (*Call, error) {
	return rb.Send(ctx, http.MethodDelete, endpoint)
}

// Send sends the request with any of the supported methods, matched
// case-insensitively.
func (rb *RequestBuilder) Send(ctx context.Context, method, endpoint string) (*Call, error) {
	opts := rb.opts
	if rb.opts.Headers != nil {
		opts.Headers = make(map[string]string, len(rb.opts.Headers))
		for k, v := range rb.opts.Headers {
			opts.Headers[k] = v
		}
	}
	return rb.client.Do(ctx, method, endpoint, opts, rb.sink)
}

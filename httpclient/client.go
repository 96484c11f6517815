package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client issues HTTP calls against a single base address.
//
// Every call merges the immutable ClientConfig with its own RequestOptions,
// performs exactly one transport operation and returns a Call that settles
// with a decoded Result or a typed error. A Client is safe for concurrent
// use; calls are independent of each other.
//
// Example:
//
//	client, err := httpclient.New("https://api.example.com",
//	    httpclient.WithDefaultHeader("Authorization", "Bearer "+token),
//	    httpclient.WithDefaultTimeout(5*time.Second),
//	)
//	if err != nil {
//	    return err
//	}
//
//	call, err := client.Post(ctx, "users", map[string]any{"name": "Jane Doe"})
//	if err != nil {
//	    return err
//	}
//	res, err := call.Wait()
type Client struct {
	// httpClient is the underlying HTTP client with the instrumented transport.
	httpClient *http.Client

	// config is the immutable set of request defaults.
	config ClientConfig

	cfg *internalConfig
}

// New creates a Client for baseAddress.
//
// baseAddress must be an absolute http or https URL; trailing slashes are
// stripped once here. New fails with ErrInvalidArgument for a malformed
// address or a negative default timeout.
func New(baseAddress string, opts ...Option) (*Client, error) {
	if err := validateBaseAddress(baseAddress); err != nil {
		return nil, err
	}

	cfg := newConfig(opts...)
	cfg.client.BaseAddress = strings.TrimRight(baseAddress, "/")

	if cfg.client.Timeout < 0 {
		return nil, invalidArgument("timeout must be >= 0, got %s", cfg.client.Timeout)
	}

	body, err := bufferDefaultBody(cfg.client.Body)
	if err != nil {
		return nil, err
	}
	cfg.client.Body = body

	// No http.Client.Timeout: each call carries its own budget.
	httpClient := &http.Client{
		Transport: newOtelTransport(cfg.buildTransport(), cfg),
	}

	return &Client{
		httpClient: httpClient,
		config:     cfg.client.clone(),
		cfg:        cfg,
	}, nil
}

func validateBaseAddress(baseAddress string) error {
	if strings.TrimSpace(baseAddress) == "" {
		return invalidArgument("base address must not be empty")
	}

	u, err := url.Parse(baseAddress)
	if err != nil {
		return invalidArgument("base address %q: %v", baseAddress, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return invalidArgument("base address %q: scheme must be http or https", baseAddress)
	}
	if u.Host == "" {
		return invalidArgument("base address %q: missing host", baseAddress)
	}
	return nil
}

// bufferDefaultBody reads a reader default body once, so every call that
// falls back to it sends the same bytes. Reader parts of a form can only be
// sent once and are rejected.
func bufferDefaultBody(body any) (any, error) {
	switch b := body.(type) {
	case *MultipartForm:
		if b == nil {
			return body, nil
		}
		for _, file := range b.files {
			if file.Reader != nil {
				return nil, invalidArgument("default body: file %q must be read from a path", file.FileName)
			}
		}
	case io.Reader:
		data, err := io.ReadAll(b)
		if err != nil {
			return nil, invalidArgument("default body: %v", err)
		}
		return RawBody(data), nil
	}
	return body, nil
}

// Config returns a copy of the client's defaults.
func (c *Client) Config() ClientConfig {
	return c.config.clone()
}

// HTTP returns the underlying *http.Client, e.g. to share the instrumented
// transport with code expecting a plain client.
func (c *Client) HTTP() *http.Client {
	return c.httpClient
}

// Do starts one call and returns its handle.
//
// The error return is only for ErrInvalidArgument: an unsupported method,
// an empty endpoint, a negative timeout or a body that cannot be encoded.
// Everything that happens after the transport operation starts is reported
// through the Call. sink may be nil.
func (c *Client) Do(
	ctx context.Context,
	method, endpoint string,
	opts RequestOptions,
	sink ProgressSink,
) (*Call, error) {
	desc, err := Build(c.config, method, endpoint, opts)
	if err != nil {
		return nil, err
	}

	enc, err := encodeBody(desc)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withBudget(ctx, desc.Timeout)
	req, tracker, err := newRequest(ctx, desc, enc, sink)
	if err != nil {
		cancel()
		return nil, err
	}

	call := newCall(desc)
	if c.cfg.GenerateCurl {
		call.curl = generateCurlCommand(req, desc, enc)
		c.cfg.Logger.Debug().Str("curl", call.curl).Msg("cURL command")
	}
	if c.cfg.Debug {
		logRequest(c.cfg.Logger, desc)
	}

	start := time.Now()
	go func() {
		defer cancel()

		outcome := c.invoke(ctx, req, desc)
		if tracker != nil {
			tracker.close()
		}

		duration := time.Since(start)
		c.cfg.Metrics.recordCallOutcome(ctx, outcome.Kind, duration, c.cfg.baseAttributes())
		if c.cfg.Debug {
			logOutcome(c.cfg.Logger, desc, outcome, duration)
		}

		call.settle(Interpret(outcome, desc.ThrowOnHTTPError))
	}()

	return call, nil
}

// Get starts a GET call with the client defaults.
func (c *Client) Get(ctx context.Context, endpoint string) (*Call, error) {
	return c.Do(ctx, http.MethodGet, endpoint, RequestOptions{}, nil)
}

// Delete starts a DELETE call with the client defaults.
func (c *Client) Delete(ctx context.Context, endpoint string) (*Call, error) {
	return c.Do(ctx, http.MethodDelete, endpoint, RequestOptions{}, nil)
}

// Post starts a POST call sending body. A nil body falls back to the
// client's default body.
func (c *Client) Post(ctx context.Context, endpoint string, body any) (*Call, error) {
	return c.Do(ctx, http.MethodPost, endpoint, RequestOptions{Body: body}, nil)
}

// Put starts a PUT call sending body.
func (c *Client) Put(ctx context.Context, endpoint string, body any) (*Call, error) {
	return c.Do(ctx, http.MethodPut, endpoint, RequestOptions{Body: body}, nil)
}

// Patch starts a PATCH call sending body.
func (c *Client) Patch(ctx context.Context, endpoint string, body any) (*Call, error) {
	return c.Do(ctx, http.MethodPatch, endpoint, RequestOptions{Body: body}, nil)
}

// Request starts a fluent request.
//
// Example:
//
//	call, err := client.Request().
//	    Header("X-Request-Source", "cli").
//	    Timeout(2 * time.Second).
//	    ThrowOnHTTPError(false).
//	    Get(ctx, "users")
func (c *Client) Request() *RequestBuilder {
	return &RequestBuilder{client: c}
}

// Package httpclient provides a minimal HTTP client with configurable
// defaults, per-call overrides, timeouts, upload progress and automatic JSON
// handling, instrumented with OpenTelemetry.
//
// # Features
//
//   - Immutable client defaults merged with per-call options
//   - URL joining that tolerates any slash placement
//   - JSON encoding of structured bodies, verbatim multipart and raw payloads
//   - A per-call timeout budget covering the whole exchange
//   - Upload progress notifications
//   - A policy flag choosing between rejecting and passing through HTTP errors
//   - OpenTelemetry spans and metrics for every round trip
//
// # Quick Start
//
//	client, err := httpclient.New("https://api.example.com",
//	    httpclient.WithDefaultHeader("Authorization", "Bearer "+token),
//	    httpclient.WithDefaultTimeout(5*time.Second),
//	)
//	if err != nil {
//	    return err
//	}
//
//	call, err := client.Get(ctx, "users")
//	if err != nil {
//	    return err
//	}
//	res, err := call.Wait()
//	if err != nil {
//	    return err
//	}
//
//	var users []User
//	err = res.Decode(&users)
//
// # Calls
//
// Every call returns a *Call right away. The only synchronous error is
// ErrInvalidArgument. The Call settles exactly once with a *Result or with
// one of *NetworkError, *TimeoutError, *ParseError or *HTTPStatusError.
//
// Each call performs exactly one transport operation. There are no retries,
// no caching and no request coalescing.
//
// # Error Policy
//
// ThrowOnHTTPError (default true) decides how HTTP-level problems surface:
//
//	status      body         throw=true          throw=false
//	2xx         valid JSON   Result{Value}       Result{Value}
//	2xx         not JSON     *ParseError         Result{RawBody, Passthrough}
//	other       any          *HTTPStatusError    Result{RawBody, Passthrough}
//
// Transport failures and timeouts always reject.
//
//	_, err := call.Wait()
//	var statusErr *httpclient.HTTPStatusError
//	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
//	    // handle missing resource
//	}
//
// # Upload Progress
//
//	form := httpclient.NewMultipartForm().
//	    Field("name", "Jean Dupont").
//	    File("file", "/tmp/report.pdf")
//
//	call, err := client.Request().
//	    Body(form).
//	    Progress(httpclient.ProgressFunc(func(p httpclient.Progress) {
//	        fmt.Printf("Progress: %.0f%%\n", p.Percent)
//	    })).
//	    Post(ctx, "api/data")
//
// Notifications are delivered from the transport goroutine and never after
// the Call settles.
//
// # OpenTelemetry
//
// Spans and metrics use the global providers unless WithTracerProvider and
// WithMeterProvider are given. Metrics emitted:
//
//   - http.client.request.duration: round trip duration histogram
//   - http.client.request.body.size: request body size histogram
//   - http.client.response.body.size: response body size histogram
//   - http.client.active_requests: in-flight round trips
//   - http.client.request.error: transport errors by error.type
//   - http.client.call.duration: whole call duration by outcome
//   - http.client.call.outcome: settled calls by outcome
//
// # Testing
//
// MockTransport stubs responses without a network:
//
//	mock := httpclient.NewMockTransport().
//	    StubPath("/users", http.StatusOK, `[{"id":1}]`)
//	client, _ := httpclient.New("https://api.example.com",
//	    httpclient.WithTransport(mock),
//	)
package httpclient

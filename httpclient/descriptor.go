package httpclient

import (
	"io"
	"maps"
	"net/http"
	"strings"
	"time"
)

// Method is one of the five verbs the client issues.
type Method string

const (
	MethodGet    Method = http.MethodGet
	MethodPost   Method = http.MethodPost
	MethodPut    Method = http.MethodPut
	MethodPatch  Method = http.MethodPatch
	MethodDelete Method = http.MethodDelete
)

// ParseMethod matches s case-insensitively against the supported verbs.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToUpper(strings.TrimSpace(s))); m {
	case MethodGet, MethodPost, MethodPut, MethodPatch, MethodDelete:
		return m, nil
	default:
		return "", invalidArgument("unsupported HTTP method %q", s)
	}
}

// BodyKind describes how a request body is put on the wire.
type BodyKind int

const (
	// BodyNone sends no body.
	BodyNone BodyKind = iota
	// BodyJSON encodes the body as JSON text immediately before sending.
	BodyJSON
	// BodyMultipart sends a *MultipartForm as-is.
	BodyMultipart
	// BodyRaw sends a string, []byte, RawBody or io.Reader verbatim.
	BodyRaw
)

func (k BodyKind) String() string {
	switch k {
	case BodyJSON:
		return "json"
	case BodyMultipart:
		return "multipart"
	case BodyRaw:
		return "raw"
	default:
		return "none"
	}
}

// RequestOptions are the per-call overrides merged over ClientConfig.
//
// Nil fields mean "not supplied" and fall back to the client default.
// Supplied values replace the default entirely, except Headers, which are
// merged key by key with the call winning.
type RequestOptions struct {
	Headers          map[string]string
	Body             any
	Timeout          *time.Duration
	ThrowOnHTTPError *bool
}

// RequestDescriptor is the fully resolved description of one outgoing call.
// It is built fresh per call and never mutated afterwards.
type RequestDescriptor struct {
	Method           Method
	URL              string
	Headers          map[string]string
	Body             any
	BodyKind         BodyKind
	Timeout          time.Duration
	ThrowOnHTTPError bool
}

// Build merges cfg with the call's options into a RequestDescriptor.
//
// Build is pure: identical inputs always produce value-equal descriptors.
// It fails with ErrInvalidArgument for an unsupported method, an empty
// endpoint or a negative timeout override.
func Build(cfg ClientConfig, method, endpoint string, opts RequestOptions) (RequestDescriptor, error) {
	m, err := ParseMethod(method)
	if err != nil {
		return RequestDescriptor{}, err
	}
	if endpoint == "" {
		return RequestDescriptor{}, invalidArgument("endpoint must not be empty")
	}

	timeout := cfg.Timeout
	if opts.Timeout != nil {
		timeout = *opts.Timeout
	}
	if timeout < 0 {
		return RequestDescriptor{}, invalidArgument("timeout must be >= 0, got %s", timeout)
	}

	throw := cfg.ThrowOnHTTPError
	if opts.ThrowOnHTTPError != nil {
		throw = *opts.ThrowOnHTTPError
	}

	body := cfg.Body
	if opts.Body != nil {
		body = opts.Body
	}

	return RequestDescriptor{
		Method:           m,
		URL:              joinURL(cfg.BaseAddress, endpoint),
		Headers:          mergeHeaders(cfg.Headers, opts.Headers),
		Body:             body,
		BodyKind:         classifyBody(body),
		Timeout:          timeout,
		ThrowOnHTTPError: throw,
	}, nil
}

// joinURL joins base and endpoint with exactly one slash. Only the path of
// the endpoint is trimmed; a query or fragment is kept as written.
func joinURL(base, endpoint string) string {
	path, rest := endpoint, ""
	if i := strings.IndexAny(endpoint, "?#"); i >= 0 {
		path, rest = endpoint[:i], endpoint[i:]
	}
	return strings.TrimRight(base, "/") + "/" + strings.Trim(path, "/") + rest
}

// mergeHeaders copies defaults and overwrites with overrides key by key.
func mergeHeaders(defaults, overrides map[string]string) map[string]string {
	merged := make(map[string]string, len(defaults)+len(overrides))
	maps.Copy(merged, defaults)
	maps.Copy(merged, overrides)
	return merged
}

func classifyBody(body any) BodyKind {
	switch b := body.(type) {
	case nil:
		return BodyNone
	case *MultipartForm:
		if b == nil {
			return BodyNone
		}
		return BodyMultipart
	case string:
		if b == "" {
			return BodyNone
		}
		return BodyRaw
	case []byte:
		if len(b) == 0 {
			return BodyNone
		}
		return BodyRaw
	case RawBody:
		if len(b) == 0 {
			return BodyNone
		}
		return BodyRaw
	case io.Reader:
		return BodyRaw
	default:
		return BodyJSON
	}
}

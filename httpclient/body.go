package httpclient

import (
	"io"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// responseBody keeps the round trip span open while invoke buffers the
// response, so the span covers the download as well as the headers.
// The span ends at EOF, on the first read error or on Close, whichever
// comes first. A budget that runs out mid-body shows up as the read error.
type responseBody struct {
	io.ReadCloser

	span   trace.Span
	size   atomic.Int64
	once   sync.Once
	report func(size int64)
}

// newResponseBody wraps body. report, when set, receives the number of
// bytes read once the span ends.
func newResponseBody(span trace.Span, body io.ReadCloser, report func(size int64)) *responseBody {
	return &responseBody{ReadCloser: body, span: span, report: report}
}

func (b *responseBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	b.size.Add(int64(n))

	if err == io.EOF {
		b.finish(nil)
	} else if err != nil {
		b.finish(err)
	}
	return n, err
}

func (b *responseBody) Close() error {
	b.finish(nil)
	return b.ReadCloser.Close()
}

func (b *responseBody) finish(readErr error) {
	b.once.Do(func() {
		size := b.size.Load()
		if readErr != nil {
			b.span.RecordError(readErr)
			b.span.SetStatus(codes.Error, readErr.Error())
		}
		b.span.SetAttributes(attribute.Int64("http.response.body.size", size))
		if b.report != nil {
			b.report(size)
		}
		b.span.End()
	})
}

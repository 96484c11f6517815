package httpclient

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http/httptrace"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "given nil error, then returns empty", err: nil, want: ""},
		{name: "given context cancelled, then returns cancelled", err: context.Canceled, want: ErrorTypeCancelled},
		{
			name: "given context deadline exceeded, then returns timeout",
			err:  context.DeadlineExceeded,
			want: ErrorTypeTimeout,
		},
		{
			name: "given wrapped cancellation, then returns cancelled",
			err:  fmt.Errorf("upload aborted: %w", context.Canceled),
			want: ErrorTypeCancelled,
		},
		{
			name: "given DNS error, then returns dns_error",
			err:  &net.DNSError{Err: "no such host", Name: "api.example.invalid"},
			want: ErrorTypeDNSError,
		},
		{
			name: "given TLS record header error, then returns tls_error",
			err:  &tls.RecordHeaderError{Msg: "first record does not look like a TLS handshake"},
			want: ErrorTypeTLSError,
		},
		{
			name: "given ECONNREFUSED, then returns connection_refused",
			err:  &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED},
			want: ErrorTypeConnectionRefused,
		},
		{
			name: "given ECONNRESET, then returns connection_reset",
			err:  &net.OpError{Op: "read", Net: "tcp", Err: syscall.ECONNRESET},
			want: ErrorTypeConnectionReset,
		},
		{name: "given unexpected EOF, then returns eof", err: io.ErrUnexpectedEOF, want: ErrorTypeEOF},
		{
			name: "given refused connection message, then returns connection_refused",
			err:  errors.New("connect: connection refused"),
			want: ErrorTypeConnectionRefused,
		},
		{
			name: "given x509 message, then returns tls_error",
			err:  errors.New("x509: certificate signed by unknown authority"),
			want: ErrorTypeTLSError,
		},
		{name: "given unrecognized error, then returns unknown", err: errors.New("boom"), want: ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, classifyError(tt.err))
		})
	}
}

func TestNetworkTrace_Record(t *testing.T) {
	t.Parallel()

	span, exporter := startTestSpan(t)
	m, reader := newTestMetrics(t)

	base := time.Now()
	nt := &networkTrace{
		dnsStart:     base,
		dnsDone:      base.Add(2 * time.Millisecond),
		dnsAddrs:     []string{"127.0.0.1"},
		connectStart: base.Add(2 * time.Millisecond),
		connectDone:  base.Add(5 * time.Millisecond),
		gotConn:      base.Add(5 * time.Millisecond),
		remoteAddr:   "127.0.0.1:8080",
		wroteRequest: base.Add(6 * time.Millisecond),
		firstByte:    base.Add(16 * time.Millisecond),
	}

	nt.record(context.Background(), span, m, nil)
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	var events []string
	for _, e := range spans[0].Events {
		events = append(events, e.Name)
	}
	assert.Equal(t, []string{
		"dns.done",
		"connect.done",
		"got_conn",
		"wrote_request",
		"got_first_response_byte",
	}, events)

	collectMetric(t, reader, "http.client.dns.duration")
	collectMetric(t, reader, "http.client.connection.duration")
	collectMetric(t, reader, "http.client.ttfb")
}

func TestNetworkTrace_ClientTrace(t *testing.T) {
	t.Parallel()

	nt := &networkTrace{}
	ct := nt.clientTrace()

	require.NotNil(t, ct)
	assert.NotNil(t, ct.DNSStart)
	assert.NotNil(t, ct.DNSDone)
	assert.NotNil(t, ct.ConnectStart)
	assert.NotNil(t, ct.ConnectDone)
	assert.NotNil(t, ct.TLSHandshakeStart)
	assert.NotNil(t, ct.TLSHandshakeDone)
	assert.NotNil(t, ct.GotConn)
	assert.NotNil(t, ct.WroteRequest)
	assert.NotNil(t, ct.GotFirstResponseByte)

	ct.WroteRequest(httptrace.WroteRequestInfo{})
	ct.GotFirstResponseByte()
	assert.False(t, nt.wroteRequest.IsZero())
	assert.False(t, nt.firstByte.IsZero())
}

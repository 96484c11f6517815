package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/kroma-labs/ocho-go/httpclient"
	"github.com/kroma-labs/ocho-go/internal/telemetry"
	"github.com/spf13/cobra"
)

// newClient builds a client from the resolved config. When an OTLP endpoint
// is configured its spans are exported and the returned shutdown flushes
// them; otherwise shutdown is a no-op.
func (a *app) newClient(ctx context.Context) (*httpclient.Client, func(context.Context) error, error) {
	c := a.cfg.Client
	opts := []httpclient.Option{
		httpclient.WithDefaultHeaders(c.Headers),
		httpclient.WithDefaultTimeout(c.Timeout),
		httpclient.WithThrowOnHTTPError(c.ThrowOnHTTPError),
		httpclient.WithServiceName(a.cfg.Telemetry.ServiceName),
		httpclient.WithLogger(a.logger),
		httpclient.WithDebug(c.Debug),
		httpclient.WithGenerateCurl(c.Curl),
	}

	shutdown := func(context.Context) error { return nil }
	if a.cfg.Telemetry.OTLPEndpoint != "" {
		provider, err := telemetry.Setup(ctx, a.telemetryConfig())
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts,
			httpclient.WithTracerProvider(provider.TracerProvider),
			httpclient.WithMeterProvider(provider.MeterProvider),
		)
		shutdown = provider.Shutdown
	}

	client, err := httpclient.New(c.BaseAddress, opts...)
	if err != nil {
		_ = shutdown(ctx)
		return nil, nil, err
	}
	return client, shutdown, nil
}

func (a *app) telemetryConfig() telemetry.Config {
	t := a.cfg.Telemetry
	return telemetry.Config{
		ServiceName:    t.ServiceName,
		ServiceVersion: version,
		OTLPEndpoint:   t.OTLPEndpoint,
		Insecure:       t.Insecure,
		SampleRatio:    t.SampleRatio,
	}
}

// newMethodCommand builds one of get, delete, post, put and patch.
func (a *app) newMethodCommand(method string, withBody bool) *cobra.Command {
	var (
		data string
		raw  bool
	)

	use := method + " <endpoint>"
	if withBody {
		use += " [-d data]"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("Send a %s request", strings.ToUpper(method)),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := parseBody(data, raw)
			if err != nil {
				return err
			}
			return a.send(cmd.Context(), method, args[0], body)
		},
	}

	if withBody {
		cmd.Flags().StringVarP(&data, "data", "d", "", "Request body; JSON unless --raw, @path reads a file")
		cmd.Flags().BoolVar(&raw, "raw", false, "Send --data as is instead of as JSON")
	}
	return cmd
}

func (a *app) send(ctx context.Context, method, endpoint string, body any) error {
	if ctx == nil {
		ctx = context.Background()
	}

	client, shutdown, err := a.newClient(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = shutdown(context.WithoutCancel(ctx)) }()

	call, err := client.Do(ctx, method, endpoint, httpclient.RequestOptions{Body: body}, nil)
	if err != nil {
		return err
	}
	if curl := call.Curl(); curl != "" {
		fmt.Fprintln(a.errOut, curl)
	}

	res, err := call.Wait()
	if err != nil {
		return describe(err)
	}
	return printResult(a.out, res)
}

// parseBody resolves --data. "@path" reads the file. Without raw the data
// must be valid JSON and is sent verbatim with a JSON content type.
func parseBody(data string, raw bool) (any, error) {
	if data == "" {
		return nil, nil
	}

	b := []byte(data)
	if path, ok := strings.CutPrefix(data, "@"); ok {
		var err error
		b, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read body file: %w", err)
		}
	}

	if raw {
		return httpclient.RawBody(b), nil
	}
	if !json.Valid(b) {
		return nil, errors.New("data is not valid JSON, use --raw to send it as is")
	}
	return json.RawMessage(b), nil
}

// printResult writes the decoded value as indented JSON, or the body as
// received when it was passed through.
func printResult(w io.Writer, res *httpclient.Result) error {
	if res.Passthrough {
		if _, err := w.Write(res.Raw); err != nil {
			return err
		}
		if len(res.Raw) > 0 && res.Raw[len(res.Raw)-1] != '\n' {
			_, err := io.WriteString(w, "\n")
			return err
		}
		return nil
	}

	out, err := json.MarshalIndent(res.Value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format response: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// describe adds the peer's message to status errors. An {"error": ...}
// envelope contributes its message, any other body is appended as is.
func describe(err error) error {
	var statusErr *httpclient.HTTPStatusError
	if !errors.As(err, &statusErr) || len(statusErr.Body) == 0 {
		return err
	}

	var envelope struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(statusErr.Body, &envelope) == nil && envelope.Error != "" {
		return fmt.Errorf("%w: %s", err, envelope.Error)
	}
	return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(statusErr.Body)))
}

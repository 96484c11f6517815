package cli

import (
	"context"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kroma-labs/ocho-go/httpclient"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func (a *app) newUploadCommand() *cobra.Command {
	var (
		endpoint string
		field    string
		fields   []string
	)

	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload files as multipart form data",
		Long: `Upload posts each file in its own multipart request, together with the
--field values, and prints progress followed by the echoed response.

Examples:
  ocho upload cv.pdf --field name=Jane --field email=jane@example.com
  ocho upload a.png b.png --endpoint api/data`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseFields(fields)
			if err != nil {
				return err
			}
			return a.upload(cmd.Context(), endpoint, field, values, args)
		},
	}

	cmd.Flags().StringVar(&endpoint, "endpoint", "api/data", "Endpoint the form is posted to")
	cmd.Flags().StringVar(&field, "file-field", "file", "Form field carrying the file")
	cmd.Flags().StringArrayVarP(&fields, "field", "F", nil, "Extra form field as name=value (repeatable)")
	return cmd
}

// formValue is one --field, kept in flag order.
type formValue struct {
	name  string
	value string
}

func parseFields(pairs []string) ([]formValue, error) {
	values := make([]formValue, 0, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid field %q, want name=value", pair)
		}
		values = append(values, formValue{name: name, value: value})
	}
	return values, nil
}

// upload sends one request per file, at most Client.Concurrency at a time.
// The first failure cancels the uploads still running.
func (a *app) upload(ctx context.Context, endpoint, fileField string, fields []formValue, paths []string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	client, shutdown, err := a.newClient(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = shutdown(context.WithoutCancel(ctx)) }()

	printer := &progressPrinter{w: a.out, prefixed: len(paths) > 1}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Client.Concurrency)

	for _, path := range paths {
		g.Go(func() error {
			form := httpclient.NewMultipartForm().File(fileField, path)
			for _, f := range fields {
				form.Field(f.name, f.value)
			}

			name := filepath.Base(path)
			sink := httpclient.ProgressFunc(func(p httpclient.Progress) {
				printer.progress(name, p)
			})

			call, err := client.Do(gctx, string(httpclient.MethodPost), endpoint,
				httpclient.RequestOptions{Body: form}, sink)
			if err != nil {
				return err
			}
			res, err := call.Wait()
			if err != nil {
				return fmt.Errorf("%s: %w", name, describe(err))
			}
			return printer.result(name, res)
		})
	}

	return g.Wait()
}

// progressPrinter serializes output from concurrent uploads. With more
// than one file every line is prefixed with the file name.
type progressPrinter struct {
	mu       sync.Mutex
	w        io.Writer
	prefixed bool
}

func (p *progressPrinter) progress(name string, pr httpclient.Progress) {
	line := "Progress: unknown"
	if pr.LengthComputable {
		pct := math.Floor(pr.Percent)
		line = fmt.Sprintf("Progress: %d%%", int(pct))
		if pct >= 100 {
			line = "Processing..."
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, p.prefix(name)+line)
}

func (p *progressPrinter) result(name string, res *httpclient.Result) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.prefixed {
		fmt.Fprintln(p.w, p.prefix(name)+"done")
	}
	return printResult(p.w, res)
}

func (p *progressPrinter) prefix(name string) string {
	if !p.prefixed {
		return ""
	}
	return "[" + name + "] "
}

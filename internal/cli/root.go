package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/kroma-labs/ocho-go/internal/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// SetVersion sets the version info shown by --version.
func SetVersion(v, bt string) {
	version = v
	buildTime = bt
}

// SetGitCommit sets the commit shown by --version.
func SetGitCommit(c string) {
	gitCommit = c
}

func versionString() string {
	return fmt.Sprintf("%s (commit %s, built %s)", version, gitCommit, buildTime)
}

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	logLevel   string
	baseURL    string
	headers    []string
	timeout    time.Duration
	noThrow    bool
	debug      bool
	curl       bool
}

// app is the state a command run shares with its subcommands.
type app struct {
	opts   rootOptions
	cfg    *config.Config
	logger zerolog.Logger
	out    io.Writer
	errOut io.Writer
}

// NewRootCommand builds the ocho command tree writing results to out and
// logs to errOut.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	cmd := &cobra.Command{
		Use:   "ocho",
		Short: "Minimal HTTP client and demo peer",
		Long: `ocho sends JSON, raw and multipart requests against a base address and
prints the decoded response. It also ships the demo peer those requests
were written against.

Get started:
  ocho serve                        Run the demo peer on :8080
  ocho get api/data                 List the demo contacts
  ocho post resource -d '{"name":"x"}'
  ocho upload report.pdf --field name=Jane`,
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	f := cmd.PersistentFlags()
	f.StringVarP(&a.opts.configPath, "config", "c", "", "Path to a YAML config file")
	f.StringVar(&a.opts.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error, disabled)")
	f.StringVarP(&a.opts.baseURL, "base-url", "b", "", "Base address requests are sent to")
	f.StringArrayVarP(&a.opts.headers, "header", "H", nil, `Default header as "Name: value" (repeatable)`)
	f.DurationVar(&a.opts.timeout, "timeout", 0, "Per-request timeout, 0 disables it")
	f.BoolVar(&a.opts.noThrow, "no-throw", false, "Print non-2xx responses instead of failing")
	f.BoolVar(&a.opts.debug, "debug", false, "Log every request and response")
	f.BoolVar(&a.opts.curl, "curl", false, "Print an equivalent curl command for each request")

	cmd.AddCommand(
		a.newMethodCommand("get", false),
		a.newMethodCommand("delete", false),
		a.newMethodCommand("post", true),
		a.newMethodCommand("put", true),
		a.newMethodCommand("patch", true),
		a.newUploadCommand(),
		a.newServeCommand(),
	)
	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	cmd := NewRootCommand(os.Stdout, os.Stderr)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// load reads the config file, applies flag overrides and builds the logger.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.LoadOrDefault(a.opts.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.Client.BaseAddress = a.opts.baseURL
	}
	if flags.Changed("timeout") {
		cfg.Client.Timeout = a.opts.timeout
	}
	if flags.Changed("no-throw") {
		cfg.Client.ThrowOnHTTPError = !a.opts.noThrow
	}
	if flags.Changed("debug") {
		cfg.Client.Debug = a.opts.debug
	}
	if flags.Changed("curl") {
		cfg.Client.Curl = a.opts.curl
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.opts.logLevel
	}
	if len(a.opts.headers) > 0 {
		headers, err := parseHeaders(a.opts.headers)
		if err != nil {
			return err
		}
		if cfg.Client.Headers == nil {
			cfg.Client.Headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			cfg.Client.Headers[k] = v
		}
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := newLogger(cfg.Log.Level, a.errOut)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}

func newLogger(level string, w io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		Level(lvl).
		With().
		Timestamp().
		Logger(), nil
}

// parseHeaders turns "Name: value" pairs into a map. A later pair for the
// same name wins.
func parseHeaders(pairs []string) (map[string]string, error) {
	headers := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q, want \"Name: value\"", pair)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

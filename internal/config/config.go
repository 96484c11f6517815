package config

import "time"

// Config is the root of the ocho configuration file.
type Config struct {
	Client    Client    `yaml:"client"`
	Peer      Peer      `yaml:"peer"`
	Telemetry Telemetry `yaml:"telemetry"`
	Log       Log       `yaml:"log"`
}

// Client configures the client commands (get, post, put, patch, delete,
// upload).
type Client struct {
	BaseAddress      string            `yaml:"base_address"        validate:"required,http_url"`
	Headers          map[string]string `yaml:"headers,omitempty"`
	Timeout          time.Duration     `yaml:"timeout"             validate:"gte=0"`
	ThrowOnHTTPError bool              `yaml:"throw_on_http_error"`
	Debug            bool              `yaml:"debug"`
	Curl             bool              `yaml:"curl"`
	Concurrency      int               `yaml:"concurrency"         validate:"gte=1,lte=64"`
}

// Peer configures `ocho serve`.
type Peer struct {
	Addr            string        `yaml:"addr"                      validate:"required"`
	UploadDir       string        `yaml:"upload_dir"                validate:"required"`
	Driver          string        `yaml:"driver"                    validate:"required_with=DSN"`
	DSN             string        `yaml:"dsn,omitempty"`
	AllowedHeaders  []string      `yaml:"allowed_headers,omitempty" validate:"dive,required"`
	Development     bool          `yaml:"development"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"          validate:"gte=0"`
	RateLimit       RateLimit     `yaml:"rate_limit"`
}

// RateLimit configures the peer's token bucket.
type RateLimit struct {
	Enabled   bool    `yaml:"enabled"`
	RPS       float64 `yaml:"rps"                  validate:"gte=0"`
	Burst     int     `yaml:"burst"                validate:"gte=0"`
	PerIP     bool    `yaml:"per_ip"`
	RedisAddr string  `yaml:"redis_addr,omitempty" validate:"omitempty,hostname_port"`
}

// Telemetry configures tracing and metrics for both the client and the peer.
type Telemetry struct {
	ServiceName  string  `yaml:"service_name"            validate:"required"`
	OTLPEndpoint string  `yaml:"otlp_endpoint,omitempty" validate:"omitempty,hostname_port"`
	Insecure     bool    `yaml:"insecure"`
	SampleRatio  float64 `yaml:"sample_ratio"            validate:"gte=0,lte=1"`
	Metrics      bool    `yaml:"metrics"`
}

// Log configures the CLI logger.
type Log struct {
	Level string `yaml:"level" validate:"oneof=trace debug info warn error disabled"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Client: Client{
			BaseAddress:      "http://localhost:8080",
			Timeout:          30 * time.Second,
			ThrowOnHTTPError: true,
			Concurrency:      4,
		},
		Peer: Peer{
			Addr:            ":8080",
			UploadDir:       "uploads",
			Driver:          "postgres",
			ShutdownTimeout: 10 * time.Second,
			RateLimit: RateLimit{
				RPS:   100,
				Burst: 200,
			},
		},
		Telemetry: Telemetry{
			ServiceName: "ocho",
			SampleRatio: 1,
			Metrics:     true,
		},
		Log: Log{Level: "info"},
	}
}

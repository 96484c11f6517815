package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/kroma-labs/ocho-go/internal/telemetry"
	"github.com/kroma-labs/ocho-go/peer"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

func (a *app) newServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the demo peer",
		Long: `Serve runs the peer the client commands talk to:

  GET  /api/data    contact list
  POST /api/data    multipart upload echo
  GET  /resource    resource list
  POST /resource    create a resource from {"name", "description"}
  GET  /livez       liveness probe
  GET  /readyz      readiness probe over the database and Redis

Resources live in memory unless peer.dsn is set. Metrics are served on
GET /metrics when telemetry.metrics is on.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Peer.Addr = addr
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			srv, cleanup, err := a.buildPeer(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address, overrides peer.addr")
	return cmd
}

// buildPeer assembles the peer from the config. cleanup releases the
// database, Redis and telemetry resources and must run once the server
// has stopped.
func (a *app) buildPeer(ctx context.Context) (*peer.Server, func(), error) {
	pc := a.cfg.Peer

	base := peer.DefaultConfig()
	if pc.Development {
		base = peer.DevelopmentConfig()
	}

	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				a.logger.Warn().Err(err).Msg("cleanup failed")
			}
		}
	}

	provider, err := telemetry.Setup(ctx, a.telemetryConfig())
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, func() error {
		return provider.Shutdown(context.WithoutCancel(ctx))
	})

	opts := []peer.Option{
		peer.WithConfig(base),
		peer.WithAddr(pc.Addr),
		peer.WithServiceName(a.cfg.Telemetry.ServiceName),
		peer.WithLogger(a.logger),
		peer.WithUploadDir(pc.UploadDir),
		peer.WithAllowedHeaders(pc.AllowedHeaders...),
		peer.WithTracing(peer.TracingConfig{
			TracerProvider: provider.TracerProvider,
			SkipPaths:      []string{"/metrics"},
		}),
		peer.WithLogging(peer.LoggerConfig{
			Logger:    a.logger,
			SkipPaths: []string{"/metrics"},
		}),
	}
	if pc.ShutdownTimeout > 0 {
		opts = append(opts, func(c *peer.Config) { c.ShutdownTimeout = pc.ShutdownTimeout })
	}

	if a.cfg.Telemetry.Metrics {
		mcfg := peer.DefaultMetricsConfig()
		mcfg.MeterProvider = provider.MeterProvider
		mcfg.SkipPaths = []string{"/metrics"}
		opts = append(opts,
			peer.WithMetrics(mcfg),
			peer.WithMetricsHandler(provider.MetricsHandler()),
		)
	}

	if pc.DSN != "" {
		db, store, err := openSQLStore(ctx, pc.Driver, pc.DSN)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, db.Close)
		opts = append(opts,
			peer.WithStore(store),
			peer.WithReadinessCheck("database", db.PingContext),
		)
	}

	if rl := pc.RateLimit; rl.Enabled {
		rcfg := peer.RateLimitConfig{
			Limit: rate.Limit(rl.RPS),
			Burst: rl.Burst,
		}
		if rl.PerIP {
			rcfg.KeyFunc = peer.KeyFuncByIP()
		}
		if rl.RedisAddr != "" {
			rdb := redis.NewClient(&redis.Options{Addr: rl.RedisAddr})
			closers = append(closers, rdb.Close)
			rcfg.Redis = rdb
			opts = append(opts, peer.WithReadinessCheck("redis", func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			}))
		}
		opts = append(opts, peer.WithRateLimit(rcfg))
	}

	srv, err := peer.New(opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return srv, cleanup, nil
}

// openSQLStore connects, creates the resources table and seeds it.
func openSQLStore(ctx context.Context, driver, dsn string) (*sqlx.DB, *peer.SQLStore, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, nil, errors.Join(fmt.Errorf("failed to reach database: %w", err), db.Close())
	}

	store := peer.NewSQLStore(db)
	if err := store.Migrate(ctx); err != nil {
		return nil, nil, errors.Join(err, db.Close())
	}
	return db, store, nil
}

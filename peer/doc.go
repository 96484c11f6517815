// Package peer is the demo HTTP peer that ocho clients talk to.
//
// It serves two endpoints:
//
//	GET  /api/data   [{"name": "Jean Dupont", "email": ...}, ...]
//	POST /api/data   multipart form; stores "file" and echoes "name" and "email"
//	GET  /resource   [{"id": 1, "name": "Resource 1", "description": ...}, ...]
//	POST /resource   {"name": "...", "description": "..."} -> 201
//
// Every other method on those paths gets 405 and every other path 404, both
// as {"error": "..."}. CORS headers go on every response and OPTIONS
// preflight requests get 204.
//
// # Quick Start
//
//	srv, err := peer.New(
//	    peer.WithAddr(":8080"),
//	    peer.WithUploadDir("uploads"),
//	    peer.WithLogging(peer.LoggerConfig{Logger: logger}),
//	)
//	if err != nil {
//	    return err
//	}
//	return srv.ListenAndServe(ctx)
//
// # Resource Stores
//
// /resource is served from a MemoryStore unless WithStore is given. SQLStore
// keeps resources in a SQL database through sqlx:
//
//	db, err := sqlx.Open("postgres", dsn)
//	store := peer.NewSQLStore(db)
//	if err := store.Migrate(ctx); err != nil {
//	    return err
//	}
//	srv, err := peer.New(peer.WithStore(store))
//
// # Probes and Profiling
//
// GET /livez always answers 200 while the process serves. GET /readyz runs
// the checks added with WithReadinessCheck and answers 503 when any fails.
// DevelopmentConfig also mounts pprof under /debug/pprof.
//
// # Middleware
//
// The stack, outermost first: Recovery, RequestID, Tracing, Metrics, Logger,
// CORS and RateLimit. Tracing, Metrics, Logger and RateLimit are enabled by
// their options. RateLimit keeps token buckets in memory, or in Redis when
// RateLimitConfig.Redis is set.
package peer

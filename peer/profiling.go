package peer

import (
	"net/http"
	"net/http/pprof"

	"github.com/go-chi/chi/v5"
)

// profiler serves the runtime profiles. Mount it at /debug/pprof: the
// handlers read the full request path, not the routed one.
//
// Available endpoints:
//   - /debug/pprof/            index
//   - /debug/pprof/cmdline     command line
//   - /debug/pprof/profile     CPU profile
//   - /debug/pprof/symbol      symbol lookup
//   - /debug/pprof/trace       execution trace
//   - /debug/pprof/{name}      heap, goroutine, block, mutex, allocs, threadcreate
func profiler() http.Handler {
	r := chi.NewRouter()
	r.HandleFunc("/cmdline", pprof.Cmdline)
	r.HandleFunc("/profile", pprof.Profile)
	r.HandleFunc("/symbol", pprof.Symbol)
	r.HandleFunc("/trace", pprof.Trace)
	r.HandleFunc("/*", pprof.Index)
	return r
}

package peer

import "net/http"

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain composes middleware so that the first one is the outermost.
//
//	handler := peer.Chain(
//	    peer.Recovery(logger),
//	    peer.RequestID(),
//	    peer.CORS(peer.DefaultCORSConfig()),
//	)(mux)
//
// Request flow:
//
//	Recovery -> RequestID -> CORS -> mux -> CORS -> RequestID -> Recovery
func Chain(middlewares ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

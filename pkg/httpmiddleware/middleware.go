// Package httpmiddleware provides net/http middleware shared by the API server
// and the worker probe listeners.
package httpmiddleware

import (
	"net/http"

	"github.com/go-faster/jx"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Wrap applies mws to h. The first middleware is the outermost.
func Wrap(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// RouteFinder returns the route pattern that will serve r.
type RouteFinder func(r *http.Request) (string, bool)

// MakeRouteFinder resolves routes against mux without serving the request.
func MakeRouteFinder(mux *http.ServeMux) RouteFinder {
	return func(r *http.Request) (string, bool) {
		_, pattern := mux.Handler(r)
		if pattern == "" {
			return "", false
		}
		return pattern, true
	}
}

func routeName(find RouteFinder, r *http.Request) string {
	if find == nil {
		return r.Method
	}
	if route, ok := find(r); ok {
		return route
	}
	return r.Method + " unmatched"
}

// WriteError writes the JSON error body {"code": status, "message": msg}.
func WriteError(w http.ResponseWriter, status int, msg string) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(status) })
		e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

package router

import (
	"net/http"
	"strings"
)

type Middleware func(http.Handler) http.Handler

// Chain wraps h so that the first middleware runs first.
func Chain(h http.Handler, mw ...Middleware) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

type Router struct {
	mux        *http.ServeMux
	middleware []Middleware
}

func New() *Router {
	return &Router{
		mux: http.NewServeMux(),
	}
}

func (rt *Router) Use(mw ...Middleware) {
	rt.middleware = append(rt.middleware, mw...)
}

// Handle registers handler for pattern. Patterns may carry a method ("GET /users/{id}").
// Route specific middleware wraps only this handler and runs after the router-wide one.
func (rt *Router) Handle(pattern string, handler http.Handler, mw ...Middleware) {
	rt.mux.Handle(normalize(pattern), Chain(handler, mw...))
}

func (rt *Router) HandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request), mw ...Middleware) {
	rt.Handle(pattern, http.HandlerFunc(handler), mw...)
}

// Mount serves h under prefix with the prefix stripped from the request path.
func (rt *Router) Mount(prefix string, h http.Handler) {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		panic("empty mount prefix")
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}

	rt.mux.Handle(prefix+"/", http.StripPrefix(prefix, h))
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	Chain(rt.mux, rt.middleware...).ServeHTTP(w, r)
}

func normalize(pattern string) string {
	method, path, ok := strings.Cut(pattern, " ")
	if !ok {
		path, method = pattern, ""
	}

	path = strings.TrimSpace(path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	if method == "" {
		return path
	}
	return method + " " + path
}

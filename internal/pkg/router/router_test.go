package router_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/decentrahub/hub/internal/pkg/router"
	"github.com/stretchr/testify/assert"
)

func TestHandle(t *testing.T) {
	tbl := []struct {
		method       string
		pattern      string
		path         string
		responseBody string
		status       int
	}{
		{"GET", "/hello", "/hello", "ok", http.StatusOK},
		{"GET", "hello", "/hello", "ok", http.StatusOK},
		{"DELETE", "/hello", "/hello", "forbidden", http.StatusForbidden},
		{"GET", "/", "/", "root hit", http.StatusOK},
		{"POST", "/long/path/", "/long/path/x", "long", http.StatusOK},
		{"GET", "GET /users/{id}", "/users/0xabc", "user", http.StatusOK},
		{"GET", "GET users/{id}", "/users/0xabc", "user", http.StatusOK},
	}

	for i, c := range tbl {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			r := router.New()

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(c.method, c.path, nil)

			r.Handle(c.pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(c.status)
				fmt.Fprint(w, c.responseBody)
			}))
			r.ServeHTTP(rec, req)

			assert.Equal(t, c.status, rec.Code)
			assert.Equal(t, c.responseBody, rec.Body.String())
		})
	}
}

func TestHandle_MethodMismatch(t *testing.T) {
	r := router.New()
	r.HandleFunc("PUT /users/profile/me", func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("POST", "/users/profile/me", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandle_PathValue(t *testing.T) {
	r := router.New()
	r.HandleFunc("GET /users/{identifier}", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, r.PathValue("identifier"))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/users/alice.lens", nil))

	assert.Equal(t, "alice.lens", rec.Body.String())
}

func TestHandle_RouteMiddleware(t *testing.T) {
	r := router.New()
	deny := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
	}

	r.HandleFunc("GET /private", func(w http.ResponseWriter, r *http.Request) {}, deny)
	r.HandleFunc("GET /public", func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/private", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/public", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMount(t *testing.T) {
	tbl := []struct {
		method       string
		mountPoint   string
		pattern      string
		path         string
		responseBody string
		status       int
	}{
		{"GET", "/api/v1", "GET /hello", "/api/v1/hello", "hello from sub", http.StatusOK},
		{"POST", "v1", "/hello/", "/v1/hello/world", "hello from sub", http.StatusForbidden},
		{"POST", "/long/prefix/", "hello", "/long/prefix/hello", "", http.StatusConflict},
	}

	for i, c := range tbl {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			r := router.New()
			sub := router.New()
			r.Mount(c.mountPoint, sub)

			sub.HandleFunc(c.pattern, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(c.status)
				fmt.Fprint(w, c.responseBody)
			})

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(c.method, c.path, nil)

			r.ServeHTTP(rec, req)

			assert.Equal(t, c.status, rec.Code)
			assert.Equal(t, c.responseBody, rec.Body.String())
		})
	}
}

func TestMount_PanicsWhenEmpty(t *testing.T) {
	r := router.New()
	assert.Panics(t, func() {
		r.Mount("/", router.New())
	})
}

func TestMount_MiddlewareAppliedOnce(t *testing.T) {
	var calls int
	count := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			next.ServeHTTP(w, r)
		})
	}

	r := router.New()
	r.Use(count)
	sub := router.New()
	sub.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {})
	r.Mount("/api", sub)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/x", nil))

	assert.Equal(t, 1, calls)
}

func TestMiddleware(t *testing.T) {
	r := router.New()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Custom-Header", "value-123")
			next.ServeHTTP(w, r)
		})
	})

	r.HandleFunc("/test", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "testing middleware")
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/test", strings.NewReader(""))

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "testing middleware", rec.Body.String())
	assert.Equal(t, "value-123", rec.Header().Get("X-Custom-Header"))
}

func TestMiddleware_Order(t *testing.T) {
	r := router.New()

	callOrder := make(chan int, 2)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			callOrder <- 1
			next.ServeHTTP(w, r)
		})
	})
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			callOrder <- 2
			next.ServeHTTP(w, r)
		})
	})

	r.HandleFunc("/test", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "testing middleware order")
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/test", nil)

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	close(callOrder)
	assert.Equal(t, 1, <-callOrder)
	assert.Equal(t, 2, <-callOrder)
}

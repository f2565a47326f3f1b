package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/decentrahub/hub/internal/pkg/httpx"
	"github.com/decentrahub/hub/internal/pkg/router"
	"github.com/decentrahub/hub/internal/pkg/serr"
)

// Recover turns a handler panic into a 500. http.ErrAbortHandler is re-raised so
// the server can drop the connection as intended.
func Recover() router.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				err := serr.NewServiceError(fmt.Errorf("panic: %v", rec), http.StatusInternalServerError, "Internal Server Error").
					With("stack_trace", string(debug.Stack()))
				httpx.HandleErr(w, r, err)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

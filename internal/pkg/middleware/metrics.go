package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/decentrahub/hub/internal/pkg/metrics"
	"github.com/decentrahub/hub/internal/pkg/router"
)

// Metrics records request counts and latency labelled by the matched route pattern,
// so path parameters do not explode label cardinality.
func Metrics(m *metrics.Metrics) router.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			done := m.TrackInFlight()
			defer done()

			sr := &statusRecorder{ResponseWriter: w}
			t := time.Now()

			next.ServeHTTP(sr, r)

			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			m.ObserveRequest(r.Method, route, strconv.Itoa(sr.status()), time.Since(t))
		})
	}
}

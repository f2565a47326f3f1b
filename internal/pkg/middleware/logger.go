package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/decentrahub/hub/internal/pkg/httpx"
	"github.com/decentrahub/hub/internal/pkg/router"
	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-Id"

// statusRecorder remembers the first status written. A handler that never calls
// WriteHeader answered 200.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (sr *statusRecorder) WriteHeader(status int) {
	if sr.code == 0 {
		sr.code = status
	}
	sr.ResponseWriter.WriteHeader(status)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.code == 0 {
		sr.code = http.StatusOK
	}
	return sr.ResponseWriter.Write(b)
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func (sr *statusRecorder) status() int {
	if sr.code == 0 {
		return http.StatusOK
	}
	return sr.code
}

func Log() router.Middleware {
	return LogWith(slog.Default())
}

// LogWith logs one line per request. The request id is taken from X-Request-Id or
// generated, echoed in the response and set on the request so proxied calls share it.
func LogWith(l *slog.Logger) router.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = uuid.NewString()
				r.Header.Set(RequestIDHeader, id)
			}
			w.Header().Set(RequestIDHeader, id)
			r = r.WithContext(httpx.ContextWithRequestID(r.Context(), id))

			sr := &statusRecorder{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(sr, r)

			status := sr.status()
			lvl := slog.LevelInfo
			switch {
			case status >= http.StatusInternalServerError:
				lvl = slog.LevelError
			case status >= http.StatusBadRequest:
				lvl = slog.LevelWarn
			}

			l.Log(r.Context(), lvl, "request handled",
				"request_id", id,
				"duration", time.Since(start),
				"method", r.Method,
				"url", r.URL.String(),
				"ip", r.RemoteAddr,
				"status", status,
				"agent", r.UserAgent())
		})
	}
}

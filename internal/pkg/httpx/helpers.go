package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/decentrahub/hub/internal/pkg/serr"
)

// ErrorResponse is the body written for every failed request.
type ErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type requestIDKey struct{}

func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func ReadJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(out)
}

func WriteJSON(w http.ResponseWriter, status int, resp any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	return enc.Encode(resp)
}

// HandleErr logs err and writes it as an ErrorResponse. ServiceErrors keep their status
// and message, anything else becomes a 500 without details.
func HandleErr(w http.ResponseWriter, r *http.Request, err error) {
	attrs := []any{
		"error", err,
		"method", r.Method,
		"url", r.URL.String(),
		"remote_addr", r.RemoteAddr,
	}
	if id := RequestID(r.Context()); id != "" {
		attrs = append(attrs, "request_id", id)
	}

	var se *serr.ServiceError
	if !errors.As(err, &se) {
		slog.Error("request error", attrs...)
		_ = WriteJSON(w, http.StatusInternalServerError, ErrorResponse{Message: "Internal Server Error"})
		return
	}

	for k, v := range se.Env {
		attrs = append(attrs, k, v)
	}

	resp := ErrorResponse{Message: se.Msg}
	if se.StatusCode >= http.StatusInternalServerError {
		slog.Error("request error", append(attrs, "status", se.StatusCode)...)
	} else {
		slog.Info("request rejected", append(attrs, "status", se.StatusCode)...)
		if se.Err != nil {
			resp.Error = se.Err.Error()
		}
	}

	_ = WriteJSON(w, se.StatusCode, resp)
}

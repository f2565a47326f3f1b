package serr

import (
	"fmt"
	"net/http"
	"runtime/debug"
)

// ServiceError is an error that carries the HTTP status and the message shown to the caller.
// Env holds diagnostic key/values that are logged but never sent to the client.
type ServiceError struct {
	Err        error
	Msg        string
	StackTrace string
	StatusCode int
	Env        map[string]string
}

func NewServiceError(err error, statusCode int, msg string, args ...any) *ServiceError {
	return &ServiceError{
		Err:        err,
		Msg:        fmt.Sprintf(msg, args...),
		StatusCode: statusCode,
		StackTrace: string(debug.Stack()),
		Env:        make(map[string]string),
	}
}

func BadRequest(err error, msg string, args ...any) *ServiceError {
	return NewServiceError(err, http.StatusBadRequest, msg, args...)
}

func Unauthorized(err error, msg string, args ...any) *ServiceError {
	return NewServiceError(err, http.StatusUnauthorized, msg, args...)
}

func NotFound(err error, msg string, args ...any) *ServiceError {
	return NewServiceError(err, http.StatusNotFound, msg, args...)
}

func Conflict(err error, msg string, args ...any) *ServiceError {
	return NewServiceError(err, http.StatusConflict, msg, args...)
}

// With records an Env entry and returns the error for chaining.
func (e *ServiceError) With(key, val string) *ServiceError {
	e.Env[key] = val
	return e
}

func (e *ServiceError) Error() string {
	return e.Msg
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

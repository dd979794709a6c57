// Package common contains the error model shared by the API and the
// storage client.
package common

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrBadRequest is returned when the provided HTTP request
	// is malformed.
	ErrBadRequest = errors.New("invalid request parameters")
	// ErrNotFound is returned for routes that do not exist. A block that
	// does not exist is not an error.
	ErrNotFound = errors.New("not found")
)

// ErrStorageError wraps a failure of the underlying storage.
type ErrStorageError struct{ Err error }

func (e ErrStorageError) Error() string {
	if e.Err == nil {
		return "storage error: internal bug, constructed with nil error"
	}
	return fmt.Sprintf("storage error: %s", e.Err.Error())
}

func (e ErrStorageError) Unwrap() error {
	return e.Err
}

// BadRequestf returns an ErrBadRequest with details.
func BadRequestf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, fmt.Sprintf(format, args...))
}

// HttpCodeForError maps an error to the HTTP status code to reply with.
func HttpCodeForError(err error) int {
	var storageErr ErrStorageError
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &storageErr):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse is a JSON error.
type ErrorResponse struct {
	Msg string `json:"msg"`
}

// PublicMessage is the error text shown to clients. Server-side failures
// are reduced to the status text; their details belong in the logs.
func PublicMessage(err error) string {
	code := HttpCodeForError(err)
	if code >= http.StatusInternalServerError {
		return http.StatusText(code)
	}
	return err.Error()
}

// ReplyWithError replies to an HTTP request with err as JSON.
func ReplyWithError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(HttpCodeForError(err))
	_ = json.NewEncoder(w).Encode(ErrorResponse{Msg: PublicMessage(err)})
}

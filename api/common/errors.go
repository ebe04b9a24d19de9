// Package common implements error types shared by API handlers.
package common

import (
	"encoding/json"
	"errors"
	"net/http"
)

var (
	// ErrBadRequest is returned when the provided HTTP request is
	// malformed.
	ErrBadRequest = errors.New("invalid request parameters")
	// ErrNotFound is returned when the requested resource does not
	// exist.
	ErrNotFound = errors.New("resource not found")
	// ErrAlreadyExists is returned when the resource being created
	// already exists.
	ErrAlreadyExists = errors.New("resource already exists")
	// ErrStorageError is returned when the underlying storage suffers
	// from an internal error.
	ErrStorageError = errors.New("internal storage error")
)

// ErrorResponse is a JSON error.
type ErrorResponse struct {
	Msg string `json:"msg"`
}

// ReplyWithError replies to an HTTP request with an error as JSON.
func ReplyWithError(w http.ResponseWriter, err error) {
	var code int
	switch {
	case errors.Is(err, ErrBadRequest):
		code = http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists):
		code = http.StatusConflict
	default:
		code = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Msg: err.Error()})
}

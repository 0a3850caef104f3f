package dataservice

import (
	"errors"
	"fmt"
	"net/http"
)

// TransportError means no usable response arrived: the connection failed,
// the request timed out or the circuit breaker rejected it.
type TransportError struct {
	Op       string
	Resource string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Resource, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServerError is a non-2xx response. Message is taken from the JSON body's
// "message" or "error" field when present.
type ServerError struct {
	Status  int
	Message string
	Body    []byte
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// IsUnauthorized reports whether err is a 401 ServerError.
func IsUnauthorized(err error) bool {
	return IsServerStatus(err, http.StatusUnauthorized)
}

// IsNotFound reports whether err is a 404 ServerError.
func IsNotFound(err error) bool {
	return IsServerStatus(err, http.StatusNotFound)
}

// IsServerStatus reports whether err is a ServerError with status.
func IsServerStatus(err error, status int) bool {
	var serverErr *ServerError
	return errors.As(err, &serverErr) && serverErr.Status == status
}

// tripsBreaker limits breaker failures to transport errors and 5xx.
func tripsBreaker(err error) bool {
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return serverErr.Status >= http.StatusInternalServerError
	}
	return true
}

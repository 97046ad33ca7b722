package searchapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrBadRequest marks errors caused by the caller's parameters.
var ErrBadRequest = errors.New("bad request")

// Error is the structured failure returned to API clients:
// {"error": {"message": ...}} with an HTTP status.
type Error struct {
	Status  int
	Message string
	err     error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.err }

// MarshalJSON renders the wire shape.
func (e *Error) MarshalJSON() ([]byte, error) {
	type body struct {
		Message string `json:"message"`
	}
	return json.Marshal(struct {
		Error body `json:"error"`
	}{body{Message: e.Message}})
}

// BadRequest builds a 400 error.
func BadRequest(format string, args ...any) *Error {
	return &Error{
		Status:  http.StatusBadRequest,
		Message: fmt.Sprintf(format, args...),
		err:     ErrBadRequest,
	}
}

// Upstream wraps a search engine failure. status is the engine's HTTP
// status when it answered, 0 when it could not be reached.
func Upstream(status int, err error) *Error {
	code := http.StatusBadGateway
	switch {
	case status == 0:
		code = http.StatusInternalServerError
	case status >= 400 && status < 500:
		code = http.StatusBadRequest
	}
	return &Error{Status: code, Message: err.Error(), err: err}
}

// AsError converts any error into an *Error, defaulting to 500.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Status: http.StatusInternalServerError, Message: err.Error(), err: err}
}
